package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	require.Equal(t, "8080", cfg.Port)
	require.Equal(t, "http://localhost:8080/checkout/success", cfg.SuccessURL)
	require.Equal(t, 5*time.Second, cfg.UpstreamTimeout)
	require.True(t, cfg.TaxRate.IsZero())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("PUBLIC_BASE_URL", "https://shop.example.com")
	t.Setenv("UPSTREAM_TIMEOUT", "250ms")
	t.Setenv("TAX_RATE", "0.12")

	cfg := Load()
	require.Equal(t, "9000", cfg.Port)
	require.Equal(t, "https://shop.example.com/checkout/cancel", cfg.CancelURL)
	require.Equal(t, 250*time.Millisecond, cfg.UpstreamTimeout)
	require.True(t, cfg.TaxRate.Equal(decimal.RequireFromString("0.12")))
}

func TestBadDurationFallsBack(t *testing.T) {
	t.Setenv("ORDER_POLL_INTERVAL", "soon")
	cfg := Load()
	require.Equal(t, 3*time.Second, cfg.PollInterval)
}
