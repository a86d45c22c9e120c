package refdata

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTables(t *testing.T, dir, conditions, exchanges string) (string, string) {
	t.Helper()
	cPath := filepath.Join(dir, "conditions.csv")
	ePath := filepath.Join(dir, "exchanges.csv")
	require.NoError(t, os.WriteFile(cPath, []byte(conditions), 0o644))
	require.NoError(t, os.WriteFile(ePath, []byte(exchanges), 0o644))
	return cPath, ePath
}

func TestLoadTables(t *testing.T) {
	cPath, ePath := writeTables(t, t.TempDir(),
		"code,last\n0,true\n7,false\n",
		"code,exchange\n1,NYSE\n")

	tables, err := LoadTables(cPath, ePath, IncludeByDefault)
	require.NoError(t, err)
	assert.Equal(t, 2, tables.Rules.Len())
	assert.Equal(t, 1, tables.Exchanges.Len())
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	cPath, ePath := writeTables(t, dir,
		"code,last\n0,true\n",
		"code,exchange\n1,NYSE\n")

	reloaded := make(chan *Tables, 1)
	w, err := NewWatcher(WatcherConfig{
		ConditionsPath: cPath,
		ExchangesPath:  ePath,
		Cooldown:       time.Millisecond,
	}, nil, func(tbl *Tables) { reloaded <- tbl })
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	// 避免与启动时间落在同一冷却窗口
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, os.WriteFile(cPath, []byte("code,last\n0,true\n7,false\n"), 0o644))

	select {
	case tables := <-reloaded:
		assert.Equal(t, 2, tables.Rules.Len())
	case <-time.After(2 * time.Second):
		t.Fatalf("expected reload callback")
	}
}

func TestWatcherKeepsTablesOnBadFile(t *testing.T) {
	dir := t.TempDir()
	cPath, ePath := writeTables(t, dir,
		"code,last\n0,true\n",
		"code,exchange\n1,NYSE\n")

	reloaded := make(chan *Tables, 1)
	w, err := NewWatcher(WatcherConfig{
		ConditionsPath: cPath,
		ExchangesPath:  ePath,
		Cooldown:       time.Millisecond,
	}, nil, func(tbl *Tables) { reloaded <- tbl })
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	time.Sleep(10 * time.Millisecond)
	// Broken table: reload must not fire the callback.
	require.NoError(t, os.WriteFile(cPath, []byte("exchange,open\n,true\n"), 0o644))

	select {
	case <-reloaded:
		t.Fatalf("callback fired for a broken table")
	case <-time.After(300 * time.Millisecond):
	}
}
