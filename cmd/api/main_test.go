package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/finsec-io/finsec-api/internal/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "app.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestInitializeAPI(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "finsec.db")
	cfg, err := config.LoadConfig(writeConfig(t, `
apiPort: 8080
database:
  type: sqlite
  path: `+dbPath+`
scheduler:
  sessionSweep: "@every 1h"
  billStatus: ""
`))
	require.NoError(t, err)

	app, err := initializeAPI(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer app.Close()

	rec := httptest.NewRecorder()
	app.api.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/heartbeat", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.FileExists(t, dbPath)
}

func TestInitializeAPIBadSchedule(t *testing.T) {
	cfg, err := config.LoadConfig(writeConfig(t, `
apiPort: 8080
database:
  path: `+filepath.Join(t.TempDir(), "finsec.db")+`
scheduler:
  sessionSweep: "not a schedule"
`))
	require.NoError(t, err)

	app, err := initializeAPI(context.Background(), cfg, zerolog.Nop())
	assert.Error(t, err)
	assert.Nil(t, app)
}

func TestInitializeAPIBadDatabase(t *testing.T) {
	cfg, err := config.LoadConfig(writeConfig(t, "apiPort: 8080\n"))
	require.NoError(t, err)
	cfg.Database.Type = "oracle"

	_, err = initializeAPI(context.Background(), cfg, zerolog.Nop())
	assert.ErrorContains(t, err, "unsupported database type")
}
