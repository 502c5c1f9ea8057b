// Package store persists and exports tracker domain data.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/mfbotde/tracker/internal/codec"
	"github.com/mfbotde/tracker/internal/logging"
)

// copyThreshold is the batch size at which inserts switch to the COPY
// protocol.
const copyThreshold = 100

// RawPlayer is one reported player snapshot as it crosses the wire.
// Info is the plain-text player response; it is only zstd-compressed
// inside otherplayer_resp, never in raw_player or in transit.
type RawPlayer struct {
	Name          string  `json:"name"`
	Server        string  `json:"server"`
	Info          string  `json:"info"`
	Description   *string `json:"description"`
	Guild         *string `json:"guild"`
	SoldierAdvice *int64  `json:"soldier_advice"`
	FetchDate     string  `json:"fetch_date"`
	PlayerID      int64   `json:"-"`
}

// CrashReport is a client crash submission.
type CrashReport struct {
	Version        int32   `json:"version"`
	OS             string  `json:"os"`
	Arch           string  `json:"arch"`
	HWID           string  `json:"hwid"`
	Stacktrace     *string `json:"stacktrace"`
	AdditionalInfo *string `json:"additional_info"`
	ErrorText      *string `json:"error_text"`
}

// Store wraps a pgx pool with the tracker's queries.
type Store struct {
	pool   *pgxpool.Pool
	logger *logging.Logger
}

// New creates a Store.
func New(pool *pgxpool.Pool, logger *logging.Logger) *Store {
	return &Store{pool: pool, logger: logger}
}

// InsertRawPlayers writes a batch of player reports in one transaction.
// Large batches use the COPY protocol.
func (s *Store) InsertRawPlayers(ctx context.Context, players []RawPlayer) error {
	if len(players) == 0 {
		return nil
	}

	if len(players) >= copyThreshold {
		return s.insertRawPlayersCopy(ctx, players)
	}

	return s.insertRawPlayersTx(ctx, players)
}

func (s *Store) insertRawPlayersTx(ctx context.Context, players []RawPlayer) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	const query = `
		INSERT INTO raw_player (fetch_date, name, server, info, description, guild, soldier_advice)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	for _, p := range players {
		if _, err := tx.Exec(ctx, query,
			p.FetchDate, p.Name, p.Server, p.Info,
			p.Description, p.Guild, p.SoldierAdvice,
		); err != nil {
			return fmt.Errorf("inserting raw player %s@%s: %w", p.Name, p.Server, err)
		}
	}

	return tx.Commit(ctx)
}

func (s *Store) insertRawPlayersCopy(ctx context.Context, players []RawPlayer) error {
	rows := make([][]any, 0, len(players))
	for _, p := range players {
		rows = append(rows, []any{
			p.FetchDate, p.Name, p.Server, p.Info,
			p.Description, p.Guild, p.SoldierAdvice,
		})
	}

	n, err := s.pool.CopyFrom(ctx,
		pgx.Identifier{"raw_player"},
		[]string{"fetch_date", "name", "server", "info", "description", "guild", "soldier_advice"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("copying raw players: %w", err)
	}

	s.logger.Debug("raw players copied", zap.Int64("rows", n))

	return nil
}

// InsertCrashReport stores a single crash submission.
func (s *Store) InsertCrashReport(ctx context.Context, r CrashReport) error {
	const query = `
		INSERT INTO error (version, os, arch, hwid, stacktrace, additional_info, error_text, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	if _, err := s.pool.Exec(ctx, query,
		r.Version, r.OS, r.Arch, r.HWID,
		r.Stacktrace, r.AdditionalInfo, r.ErrorText,
		time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("inserting crash report: %w", err)
	}

	return nil
}

// exportRow is the raw join result before payload decompression.
type exportRow struct {
	PlayerID      int64
	Name          string
	Server        string
	Info          []byte
	Description   *string
	Guild         *string
	SoldierAdvice *int64
	FetchTime     int64
}

// ExportPlayers reads stored player snapshots ordered by player id,
// decompressing the otherplayer_resp payload for each. Limit caps the
// number of rows; afterID resumes a previous export.
func (s *Store) ExportPlayers(ctx context.Context, afterID int64, limit int) ([]RawPlayer, error) {
	const query = `
		SELECT p.player_id, p.name, s.url, o.otherplayer_resp,
		       d.description, g.name, i.soldier_advice, i.fetch_time
		FROM player_info i
		JOIN player p ON p.player_id = i.player_id
		JOIN server s ON s.server_id = p.server_id
		JOIN description d ON d.description_id = i.description_id
		JOIN otherplayer_resp o ON o.otherplayer_resp_id = i.otherplayer_resp_id
		LEFT JOIN guild g ON g.guild_id = i.guild_id
		WHERE p.player_id > $1
		ORDER BY p.player_id
		LIMIT $2`

	rows, err := s.pool.Query(ctx, query, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying player export: %w", err)
	}

	raw, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (exportRow, error) {
		var r exportRow
		err := row.Scan(&r.PlayerID, &r.Name, &r.Server, &r.Info,
			&r.Description, &r.Guild, &r.SoldierAdvice, &r.FetchTime)

		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning player export: %w", err)
	}

	players := make([]RawPlayer, 0, len(raw))

	for _, r := range raw {
		info, err := codec.Decompress(r.Info)
		if err != nil {
			return nil, fmt.Errorf("decompressing payload for player %d: %w", r.PlayerID, err)
		}

		players = append(players, RawPlayer{
			Name:          r.Name,
			Server:        r.Server,
			Info:          string(info),
			Description:   r.Description,
			Guild:         r.Guild,
			SoldierAdvice: r.SoldierAdvice,
			FetchDate:     time.Unix(r.FetchTime, 0).UTC().Format(time.RFC3339),
			PlayerID:      r.PlayerID,
		})
	}

	return players, nil
}

// InsertEquipment records the packed equipment idents seen on a player.
// Already-known idents are ignored.
func (s *Store) InsertEquipment(ctx context.Context, playerID int64, idents []EquipmentIdent) error {
	if len(idents) == 0 {
		return nil
	}

	const query = `
		INSERT INTO equipment (player_id, ident)
		VALUES ($1, $2)
		ON CONFLICT (player_id, ident) DO NOTHING`

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	for _, ident := range idents {
		if _, err := tx.Exec(ctx, query, playerID, PackIdent(ident)); err != nil {
			return fmt.Errorf("inserting equipment for player %d: %w", playerID, err)
		}
	}

	return tx.Commit(ctx)
}
