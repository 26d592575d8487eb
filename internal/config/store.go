package config

import (
	"errors"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// PaymentCode maps a payment processor name to the short POS tender code.
type PaymentCode struct {
	Name string `mapstructure:"name"`
	Code string `mapstructure:"code"`
}

// StoreProfile is the hot-reloadable part of the store configuration.
type StoreProfile struct {
	Store            StoreConfig   `mapstructure:"store"`
	PaymentCodes     []PaymentCode `mapstructure:"paymentCodes"`
	DefaultPayCode   string        `mapstructure:"defaultPaymentCode"`
	ItemNameMaxRunes int           `mapstructure:"itemNameMaxRunes"`
	MemberMaxRunes   int           `mapstructure:"memberMaxRunes"`
}

func DefaultPaymentCodes() []PaymentCode {
	return []PaymentCode{
		{Name: "Visa", Code: "VI"},
		{Name: "Mastercard", Code: "MC"},
		{Name: "paypal", Code: "PL"},
		{Name: "shopify_payments", Code: "SP"},
	}
}

// DefaultStoreProfile builds a profile from the env-derived store codes.
func DefaultStoreProfile(store StoreConfig) StoreProfile {
	return StoreProfile{
		Store:            store,
		PaymentCodes:     DefaultPaymentCodes(),
		DefaultPayCode:   "OT",
		ItemNameMaxRunes: 40,
		MemberMaxRunes:   15,
	}
}

// StoreProfileHolder serves the current store profile and swaps it when the file changes.
type StoreProfileHolder struct {
	current atomic.Value // holds StoreProfile
}

// NewStaticStoreProfileHolder returns a holder that never reloads.
func NewStaticStoreProfileHolder(profile StoreProfile) *StoreProfileHolder {
	holder := &StoreProfileHolder{}
	holder.current.Store(profile)
	return holder
}

// NewStoreProfileHolder reads the optional store profile file and watches it for changes.
func NewStoreProfileHolder(cfg Config, log *zap.Logger) (*StoreProfileHolder, error) {
	defaults := DefaultStoreProfile(cfg.Store)
	log = log.Named("config.store")

	v := viper.New()
	if path := strings.TrimSpace(cfg.Sync.StoreConfigFile); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("posbridge")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/posbridge")
		v.AddConfigPath(".")
	}

	v.SetDefault("store.salesmanCode", defaults.Store.SalesmanCode)
	v.SetDefault("store.shopCode", defaults.Store.ShopCode)
	v.SetDefault("store.cashier", defaults.Store.Cashier)
	v.SetDefault("store.cashierNo", defaults.Store.CashierNo)
	v.SetDefault("store.orderNoPrefix", defaults.Store.OrderNoPrefix)
	v.SetDefault("store.handlingChargeCode", defaults.Store.HandlingChargeCode)
	v.SetDefault("paymentCodes", paymentCodeMaps(defaults.PaymentCodes))
	v.SetDefault("defaultPaymentCode", defaults.DefaultPayCode)
	v.SetDefault("itemNameMaxRunes", defaults.ItemNameMaxRunes)
	v.SetDefault("memberMaxRunes", defaults.MemberMaxRunes)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		fileLoaded = false
	}

	profile, err := decodeStoreProfile(v, defaults)
	if err != nil {
		return nil, err
	}

	holder := NewStaticStoreProfileHolder(profile)
	if !fileLoaded {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodeStoreProfile(v, defaults)
		if err != nil {
			log.Warn("config.store.reload_failed", zap.String("file", e.Name), zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("config.store.reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *StoreProfileHolder) Get() StoreProfile {
	return h.current.Load().(StoreProfile)
}

func decodeStoreProfile(v *viper.Viper, defaults StoreProfile) (StoreProfile, error) {
	var profile StoreProfile
	if err := v.Unmarshal(&profile); err != nil {
		return StoreProfile{}, err
	}
	if profile.Store.OrderNoPrefix == "" {
		profile.Store.OrderNoPrefix = defaults.Store.OrderNoPrefix
	}
	if profile.ItemNameMaxRunes <= 0 {
		profile.ItemNameMaxRunes = defaults.ItemNameMaxRunes
	}
	if profile.MemberMaxRunes <= 0 {
		profile.MemberMaxRunes = defaults.MemberMaxRunes
	}
	if strings.TrimSpace(profile.DefaultPayCode) == "" {
		profile.DefaultPayCode = defaults.DefaultPayCode
	}
	if err := validateStoreProfile(profile); err != nil {
		return StoreProfile{}, err
	}
	return profile, nil
}

func paymentCodeMaps(codes []PaymentCode) []map[string]any {
	out := make([]map[string]any, 0, len(codes))
	for _, pc := range codes {
		out = append(out, map[string]any{"name": pc.Name, "code": pc.Code})
	}
	return out
}

func validateStoreProfile(p StoreProfile) error {
	if strings.TrimSpace(p.Store.OrderNoPrefix) == "" {
		return errors.New("store.orderNoPrefix cannot be empty")
	}
	if strings.TrimSpace(p.Store.ShopCode) == "" {
		return errors.New("store.shopCode cannot be empty")
	}
	for _, pc := range p.PaymentCodes {
		if strings.TrimSpace(pc.Name) == "" || strings.TrimSpace(pc.Code) == "" {
			return errors.New("paymentCodes entries need a name and a code")
		}
	}
	return nil
}
