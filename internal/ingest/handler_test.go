package ingest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfbotde/tracker/internal/logging"
	"github.com/mfbotde/tracker/internal/store"
)

// mockStore records what the handlers persist.
type mockStore struct {
	players    []store.RawPlayer
	reports    []store.CrashReport
	playersErr error
	reportErr  error
}

func (m *mockStore) InsertRawPlayers(_ context.Context, players []store.RawPlayer) error {
	if m.playersErr != nil {
		return m.playersErr
	}

	m.players = append(m.players, players...)

	return nil
}

func (m *mockStore) InsertCrashReport(_ context.Context, r store.CrashReport) error {
	if m.reportErr != nil {
		return m.reportErr
	}

	m.reports = append(m.reports, r)

	return nil
}

func newTestRouter(ms *mockStore) http.Handler {
	h := NewHandler(ms, logging.NewNop(), "https://forum.mfbot.de/")

	return NewRouter(h, logging.NewNop())
}

func TestRoot_redirectsToForum(t *testing.T) {
	t.Parallel()

	router := newTestRouter(&mockStore{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusPermanentRedirect, rec.Code)
	assert.Equal(t, "https://forum.mfbot.de/", rec.Header().Get("Location"))
}

func TestHealth(t *testing.T) {
	t.Parallel()

	router := newTestRouter(&mockStore{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUpdatePlayers(t *testing.T) {
	t.Parallel()

	t.Run("stores reports with normalized server host", func(t *testing.T) {
		t.Parallel()

		ms := &mockStore{}
		router := newTestRouter(ms)

		body := `[
			{"name":"Knight42","server":"https://s1.sfgame.net/index.php","info":"{}","fetch_date":"2024-05-01T12:00:00Z"},
			{"name":"Mage17","server":"S2.SFGAME.NET","info":"{}","fetch_date":"2024-05-01T12:00:00Z"}
		]`

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/updatePlayers", strings.NewReader(body)))

		assert.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, ms.players, 2)
		assert.Equal(t, "s1.sfgame.net", ms.players[0].Server)
		assert.Equal(t, "s2.sfgame.net", ms.players[1].Server)
	})

	t.Run("skips reports with unparseable server", func(t *testing.T) {
		t.Parallel()

		ms := &mockStore{}
		router := newTestRouter(ms)

		body := `[
			{"name":"Knight42","server":"http://bad host/","info":"{}","fetch_date":"2024-05-01T12:00:00Z"},
			{"name":"Mage17","server":"s2.sfgame.net","info":"{}","fetch_date":"2024-05-01T12:00:00Z"}
		]`

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/updatePlayers", strings.NewReader(body)))

		assert.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, ms.players, 1)
		assert.Equal(t, "Mage17", ms.players[0].Name)
	})

	t.Run("invalid body is a 400", func(t *testing.T) {
		t.Parallel()

		ms := &mockStore{}
		router := newTestRouter(ms)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/updatePlayers", strings.NewReader("{not json")))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, ms.players)
	})

	t.Run("storage failure is a 500", func(t *testing.T) {
		t.Parallel()

		ms := &mockStore{playersErr: errors.New("connection refused")}
		router := newTestRouter(ms)

		body := `[{"name":"Knight42","server":"s1.sfgame.net","info":"{}","fetch_date":"2024-05-01T12:00:00Z"}]`

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/updatePlayers", strings.NewReader(body)))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestReport(t *testing.T) {
	t.Parallel()

	t.Run("stores crash report", func(t *testing.T) {
		t.Parallel()

		ms := &mockStore{}
		router := newTestRouter(ms)

		body := `{"version":312,"os":"linux","arch":"x86_64","hwid":"abc123","error_text":"panic at startup"}`

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/report", strings.NewReader(body)))

		assert.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, ms.reports, 1)
		assert.Equal(t, int32(312), ms.reports[0].Version)
		assert.Equal(t, "linux", ms.reports[0].OS)
		require.NotNil(t, ms.reports[0].ErrorText)
		assert.Equal(t, "panic at startup", *ms.reports[0].ErrorText)
	})

	t.Run("invalid body is a 400", func(t *testing.T) {
		t.Parallel()

		ms := &mockStore{}
		router := newTestRouter(ms)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/report", strings.NewReader("[]")))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("storage failure is a 500", func(t *testing.T) {
		t.Parallel()

		ms := &mockStore{reportErr: errors.New("connection refused")}
		router := newTestRouter(ms)

		body := `{"version":312,"os":"linux","arch":"x86_64","hwid":"abc123"}`

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/report", strings.NewReader(body)))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestNormalizeServer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{name: "full url", raw: "https://s1.sfgame.net/index.php", want: "s1.sfgame.net"},
		{name: "bare host", raw: "s1.sfgame.net", want: "s1.sfgame.net"},
		{name: "uppercase host", raw: "S1.SFGAME.NET", want: "s1.sfgame.net"},
		{name: "host with port", raw: "http://s1.sfgame.net:8080", want: "s1.sfgame.net:8080"},
		{name: "whitespace trimmed", raw: "  s1.sfgame.net ", want: "s1.sfgame.net"},
		{name: "space in host", raw: "http://bad host/", wantErr: true},
		{name: "empty", raw: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := normalizeServer(tt.raw)

			if tt.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
