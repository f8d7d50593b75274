package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://pncp.gov.br/api/consulta", cfg.PNCP.BaseURL)
	assert.Equal(t, 50, cfg.Pipeline.PageSize)
	assert.Equal(t, 60*time.Second, cfg.Pipeline.HTTPBudget)
	assert.Equal(t, 20*time.Second, cfg.Pipeline.BudgetSafetyMargin)
	assert.Equal(t, time.Hour, cfg.Pipeline.ScheduleInterval)
	assert.Equal(t, 50*time.Minute, cfg.Pipeline.ScheduleBudget)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Redis.StreamEnabled)
	assert.Zero(t, cfg.DB.StatementTimeoutMS)
	assert.Equal(t, 1.0, cfg.Tracing.SampleRatio)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SYNC_PAGE_SIZE", "25")
	t.Setenv("SYNC_HTTP_BUDGET_SEC", "120")
	t.Setenv("PNCP_RATE_LIMIT_RPS", "2.5")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("REDIS_STREAM_ENABLED", "true")
	t.Setenv("REDIS_URL", "redis://cache:6379")
	t.Setenv("DB_STATEMENT_TIMEOUT_MS", "15000")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 25, cfg.Pipeline.PageSize)
	assert.Equal(t, 120*time.Second, cfg.Pipeline.HTTPBudget)
	assert.Equal(t, 2.5, cfg.PNCP.RateLimitRPS)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Redis.StreamEnabled)
	assert.Equal(t, 15000, cfg.DB.StatementTimeoutMS)
}

func TestLoad_InvalidIntFallsBack(t *testing.T) {
	t.Setenv("SYNC_PAGE_SIZE", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Pipeline.PageSize)
}

func TestValidate_SafetyMarginMustFitBudget(t *testing.T) {
	t.Setenv("SYNC_BUDGET_SAFETY_MARGIN_SEC", "60")
	t.Setenv("SYNC_HTTP_BUDGET_SEC", "60")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SYNC_BUDGET_SAFETY_MARGIN_SEC")
}

func TestValidate_PageSizeMustBePositive(t *testing.T) {
	t.Setenv("SYNC_PAGE_SIZE", "0")

	_, err := Load()
	require.Error(t, err)
}

func TestValidate_StreamNeedsRedisURL(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	cfg.Redis.StreamEnabled = true
	cfg.Redis.URL = ""
	err = cfg.validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REDIS_URL")
}
