package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("POS_HTTP_TIMEOUT", "")
	t.Setenv("SYNC_INVENTORY_AT", "")
	t.Setenv("STORE_ORDER_NO_PREFIX", "")

	cfg := Load()

	assert.Equal(t, 5*time.Second, cfg.POS.Timeout)
	assert.Equal(t, 5, cfg.POS.MaxRedirects)
	assert.Equal(t, 10*time.Minute, cfg.Sync.RecoveryInterval)
	assert.Equal(t, []string{"00:00", "06:00", "12:00", "18:00"}, cfg.Sync.InventorySyncAt)
	assert.Equal(t, 501*time.Millisecond, cfg.Sync.PushInterval)
	assert.Equal(t, "SW04W", cfg.Store.OrderNoPrefix)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("POS_HTTP_TIMEOUT", "2s")
	t.Setenv("POS_BASE_URL", "http://pos.local/api/")
	t.Setenv("SYNC_INVENTORY_AT", " 03:00 , ,09:30")
	t.Setenv("REDIS_ENABLED", "yes")

	cfg := Load()

	assert.Equal(t, 2*time.Second, cfg.POS.Timeout)
	assert.Equal(t, "http://pos.local/api", cfg.POS.BaseURL)
	assert.Equal(t, []string{"03:00", "09:30"}, cfg.Sync.InventorySyncAt)
	assert.True(t, cfg.Redis.Enabled)
}

func TestAllowedAPIVersions(t *testing.T) {
	sf := StorefrontConfig{APIVersion: "2022-01", LegacyAPIVersion: "2021-07"}
	assert.Equal(t, []string{"2022-01", "2021-07"}, sf.AllowedAPIVersions())

	sf.LegacyAPIVersion = " "
	assert.Equal(t, []string{"2022-01"}, sf.AllowedAPIVersions())
}

func TestPOSLocationFallsBackToUTC(t *testing.T) {
	assert.Equal(t, time.UTC, POSConfig{TimeZone: "Not/AZone"}.Location())
	assert.Equal(t, time.UTC, POSConfig{}.Location())
}

func TestStoreProfileHolderReadsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "posbridge.yml")
	content := []byte(`store:
  cashier: NIGHT
paymentCodes:
  - name: Amex
    code: AE
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg := Config{
		Store: StoreConfig{ShopCode: "SW004", OrderNoPrefix: "SW04W", Cashier: "BOSS"},
		Sync:  SyncConfig{StoreConfigFile: path},
	}
	holder, err := NewStoreProfileHolder(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)

	profile := holder.Get()
	assert.Equal(t, "NIGHT", profile.Store.Cashier)
	assert.Equal(t, "SW004", profile.Store.ShopCode)
	assert.Equal(t, []PaymentCode{{Name: "Amex", Code: "AE"}}, profile.PaymentCodes)
	assert.Equal(t, "OT", profile.DefaultPayCode)
	assert.Equal(t, 40, profile.ItemNameMaxRunes)
}

func TestStoreProfileHolderDefaultsWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg := Config{Store: StoreConfig{ShopCode: "SW004", OrderNoPrefix: "SW04W"}}
	holder, err := NewStoreProfileHolder(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)

	profile := holder.Get()
	assert.Equal(t, DefaultPaymentCodes(), profile.PaymentCodes)
	assert.Equal(t, 15, profile.MemberMaxRunes)
}
