package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("CRYPTOPAY_TOKEN", "cp-token")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, int64(100), cfg.CashPerFiat)
	assert.Equal(t, 4.0, cfg.RefPct)
	assert.Equal(t, int64(1000), cfg.MaterialsLotSize)
	assert.Equal(t, int64(2000), cfg.MaterialsMinHolding)
	assert.Equal(t, int64(40), cfg.PaymentSharePct)
	assert.Equal(t, 20.0, cfg.MinSwapCash)
	assert.Equal(t, 60*time.Second, cfg.PriceCacheTTL)
	assert.Equal(t, 45*time.Second, cfg.PriceRefreshInterval)
	assert.Equal(t, 17.0, cfg.PriceFallback)
	assert.Equal(t, "https://pay.crypt.bot/api", cfg.CryptoPayBaseURL)
	assert.Empty(t, cfg.AdminIDs)
}

func TestLoad_AdminIDs(t *testing.T) {
	setRequired(t)
	t.Setenv("ADMIN_IDS", " 42, 7 ,")
	t.Setenv("ADMIN_PASSWORD_HASH", "$argon2id$v=19$m=65536,t=3,p=2$c2FsdA$aGFzaA")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []int64{42, 7}, cfg.AdminIDs)
	assert.True(t, cfg.IsAdmin(7))
	assert.False(t, cfg.IsAdmin(8))
}

func TestLoad_AdminIDsWithoutHash(t *testing.T) {
	setRequired(t)
	t.Setenv("ADMIN_IDS", "42")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_BadAdminIDs(t *testing.T) {
	setRequired(t)
	t.Setenv("ADMIN_IDS", "42,abc")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate_EconomyBounds(t *testing.T) {
	setRequired(t)
	cfg, err := Load()
	require.NoError(t, err)

	bad := *cfg
	bad.MaterialsMinHolding = bad.MaterialsLotSize - 1
	assert.Error(t, bad.Validate())

	bad = *cfg
	bad.PaymentSharePct = 101
	assert.Error(t, bad.Validate())

	bad = *cfg
	bad.PriceMin, bad.PriceMax = 10, 5
	assert.Error(t, bad.Validate())
}

func TestDatabaseDSN(t *testing.T) {
	cfg := &Config{DBUser: "u", DBPassword: "p", DBHost: "h", DBPort: 5432, DBName: "d", DBSSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@h:5432/d?sslmode=disable", cfg.DatabaseDSN())
}
