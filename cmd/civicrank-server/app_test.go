package main

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"civicrank/adapters/jsonfile"
	mem "civicrank/adapters/memory"
	"civicrank/config"
)

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLogLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLogLevel("warn"))
	assert.Equal(t, slog.LevelError, parseLogLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLogLevel("verbose"))
}

func TestProvideStorage(t *testing.T) {
	ctx := context.Background()
	cfg := config.DefaultConfig()

	s, cleanup, err := provideStorage(ctx, cfg, quietLogger())
	require.NoError(t, err)
	cleanup()
	assert.IsType(t, &mem.Store{}, s)

	cfg.Storage.Adapter = "file"
	cfg.Storage.File.Path = filepath.Join(t.TempDir(), "civic.json")
	s, cleanup, err = provideStorage(ctx, cfg, quietLogger())
	require.NoError(t, err)
	cleanup()
	assert.IsType(t, &jsonfile.Store{}, s)

	cfg.Storage.Adapter = "mongo"
	_, _, err = provideStorage(ctx, cfg, quietLogger())
	assert.Error(t, err)
}

func TestProvideWebhook(t *testing.T) {
	cfg := config.DefaultConfig()
	assert.Nil(t, provideWebhook(cfg, quietLogger()))

	cfg.Integrations.WebhookEndpoints = []string{"https://hooks.example.com/civic"}
	assert.NotNil(t, provideWebhook(cfg, quietLogger()))
}

func TestProvideSchedulerAndHandler(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Engine.DispatchMode = "sync"
	log := quietLogger()
	svc, closeSvc := provideService(cfg, log, mem.New(), provideHub(), provideLeaderboard(), provideStats(), provideDAU(cfg), nil)
	defer closeSvc()

	sched, err := provideScheduler(cfg, svc, log)
	require.NoError(t, err)
	require.NotNil(t, sched)

	cfg.Jobs.Enabled = false
	sched, err = provideScheduler(cfg, svc, log)
	require.NoError(t, err)
	assert.Nil(t, sched)

	srv := provideServer(cfg, provideHandler(cfg, log, svc, provideHub(), provideLeaderboard(), provideStats(), provideDAU(cfg)))
	assert.Equal(t, ":8080", srv.Addr)
}
