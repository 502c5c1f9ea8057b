// Package backfill re-posts stored player snapshots to a tracker ingest
// endpoint in batches.
package backfill

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/mfbotde/tracker/internal/logging"
	"github.com/mfbotde/tracker/internal/metrics"
	"github.com/mfbotde/tracker/internal/store"
)

// Exporter reads stored player snapshots in id order.
type Exporter interface {
	ExportPlayers(ctx context.Context, afterID int64, limit int) ([]store.RawPlayer, error)
}

// Config controls batching and concurrency.
type Config struct {
	Endpoint    string
	BatchSize   int
	Concurrency int
}

// Stats summarizes a completed backfill.
type Stats struct {
	Players int
	Batches int
	Failed  int
}

// Poster exports stored players and posts them batch by batch to the
// configured endpoint with a bounded number of in-flight requests.
type Poster struct {
	exporter Exporter
	client   *http.Client
	logger   *logging.Logger
	cfg      Config
}

// NewPoster creates a Poster. A nil client falls back to a default with
// a 30 second timeout; Concurrency below 1 is clamped to 1 so Run always
// has a worker draining the batch channel.
func NewPoster(exporter Exporter, client *http.Client, logger *logging.Logger, cfg Config) *Poster {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}

	return &Poster{exporter: exporter, client: client, logger: logger, cfg: cfg}
}

// Run exports all stored players and posts them. Export pages feed a
// worker pool; a failed batch is counted and logged but does not stop
// the remaining batches.
func (p *Poster) Run(ctx context.Context) (Stats, error) {
	batches := make(chan []store.RawPlayer, p.cfg.Concurrency)

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed int
	)

	for range p.cfg.Concurrency {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for batch := range batches {
				if err := p.postBatch(ctx, batch); err != nil {
					p.logger.Error("posting batch", err, zap.Int("size", len(batch)))
					metrics.BackfillErrorsTotal.Inc()

					mu.Lock()
					failed++
					mu.Unlock()

					continue
				}

				metrics.BackfillBatchesTotal.Inc()
			}
		}()
	}

	stats := Stats{}
	afterID := int64(0)

	var exportErr error

	for {
		players, err := p.exporter.ExportPlayers(ctx, afterID, p.cfg.BatchSize)
		if err != nil {
			exportErr = fmt.Errorf("exporting players after id %d: %w", afterID, err)
			break
		}

		if len(players) == 0 {
			break
		}

		afterID = players[len(players)-1].PlayerID
		stats.Players += len(players)
		stats.Batches++

		select {
		case batches <- players:
		case <-ctx.Done():
			exportErr = ctx.Err()
		}

		if exportErr != nil {
			break
		}
	}

	close(batches)
	wg.Wait()

	stats.Failed = failed

	if exportErr != nil {
		return stats, exportErr
	}

	return stats, nil
}

func (p *Poster) postBatch(ctx context.Context, batch []store.RawPlayer) error {
	body, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("encoding batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting batch: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // nothing useful to do with it

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("posting batch: unexpected status %d", resp.StatusCode)
	}

	return nil
}
