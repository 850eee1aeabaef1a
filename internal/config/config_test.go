package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsAndEnv(t *testing.T) {
	t.Setenv("PDV_ID", "7")
	t.Setenv("STORE_DRIVER", " Redis ")
	t.Setenv("CURRENCY_DECIMALS", "0")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.PDVID)
	assert.Equal(t, "redis", cfg.StoreDriver)
	assert.Equal(t, 0, cfg.CurrencyDecimals)
	assert.Equal(t, 50, cfg.HistoryLimit)
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.AllowedOrigins())
}

func TestAllowedOrigins(t *testing.T) {
	cfg := Config{CORSOrigins: " http://localhost:5173, ,http://127.0.0.1:5173 "}
	assert.Equal(t, []string{"http://localhost:5173", "http://127.0.0.1:5173"}, cfg.AllowedOrigins())
	assert.Empty(t, (&Config{}).AllowedOrigins())
}

func TestValidate(t *testing.T) {
	base := Config{PDVID: 1, CurrencyDecimals: 2, StoreDriver: "memory", BackendURL: "http://x"}
	require.NoError(t, base.Validate())

	bad := base
	bad.PDVID = 0
	assert.Error(t, bad.Validate())

	bad = base
	bad.StoreDriver = "mongo"
	assert.Error(t, bad.Validate())

	bad = base
	bad.CurrencyDecimals = 9
	assert.Error(t, bad.Validate())
}
