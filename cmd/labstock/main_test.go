package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/labstock/internal/app"
	_ "github.com/odyssey-erp/labstock/internal/testing/guard"
)

func sqliteEnv(t *testing.T) {
	t.Helper()
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", filepath.Join(t.TempDir(), "labstock.db"))
	t.Setenv("REDIS_ADDR", "127.0.0.1:1")
	t.Setenv("LOG_LEVEL", "error")
}

func TestMigrateCommand(t *testing.T) {
	sqliteEnv(t)
	var out bytes.Buffer
	require.NoError(t, newApp(&out).RunContext(context.Background(), []string{"labstock", "migrate"}))
	require.Contains(t, out.String(), "schema up to date")
}

func TestStockCommand(t *testing.T) {
	sqliteEnv(t)
	var out bytes.Buffer
	args := []string{"labstock", "stock", "-w", "1", "-c", "reagent", "-p", "7"}
	require.NoError(t, newApp(&out).RunContext(context.Background(), args))

	var got struct {
		WarehouseID   int64  `json:"warehouse_id"`
		TotalQuantity string `json:"total_quantity"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	require.Equal(t, int64(1), got.WarehouseID)
	require.Equal(t, "0", got.TotalQuantity)
}

func TestStockCommandRejectsCategory(t *testing.T) {
	sqliteEnv(t)
	args := []string{"labstock", "stock", "-w", "1", "-c", "glassware", "-p", "7"}
	err := newApp(&bytes.Buffer{}).RunContext(context.Background(), args)
	require.ErrorContains(t, err, "glassware")
}

func TestSweepCommandWithoutRedis(t *testing.T) {
	sqliteEnv(t)
	var out bytes.Buffer
	require.NoError(t, newApp(&out).RunContext(context.Background(), []string{"labstock", "sweep"}))
	require.JSONEq(t, "[]", out.String())
}

func TestGuardEnablesTestMode(t *testing.T) {
	require.True(t, app.RefreshTestMode())
	require.True(t, app.InTestMode())
}
