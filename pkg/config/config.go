package config

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config is built once in main and handed to every constructor. Nothing reads
// the environment after Load returns.
type Config struct {
	App           AppConfig       `mapstructure:"app"`
	DB            DBConfig        `mapstructure:"db"`
	Redis         RedisConfig     `mapstructure:"redis"`
	Treasury      string          `mapstructure:"treasury" validate:"required,eth_addr"`
	Notify        NotifyConfig    `mapstructure:"notify"`
	Price         PriceConfig     `mapstructure:"price"`
	TopUp         TopUpConfig     `mapstructure:"topup"`
	Chain         ChainConfig     `mapstructure:"chain"`
	Auth          AuthConfig      `mapstructure:"auth"`
	Reconcile     ReconcileConfig `mapstructure:"reconcile"`
	WalletConnect string          `mapstructure:"walletconnect"`
}

type AppConfig struct {
	Name         string   `mapstructure:"name" validate:"required"`
	Port         string   `mapstructure:"port" validate:"required"`
	LogLevel     string   `mapstructure:"log_level"`
	AllowOrigins []string `mapstructure:"allow_origins"`
}

type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// RedisConfig with an empty Addr keeps the pending slots and rates in process memory.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type NotifyConfig struct {
	WebhookURL     string `mapstructure:"webhook_url"`
	NotificationID string `mapstructure:"notification_id"`
	TelegramToken  string `mapstructure:"telegram_token"`
	MailjetKey     string `mapstructure:"mailjet_key"`
	MailjetSecret  string `mapstructure:"mailjet_secret"`
	SMTPHost       string `mapstructure:"smtp_host"`
	SMTPPort       int    `mapstructure:"smtp_port"`
	SMTPUser       string `mapstructure:"smtp_user"`
	SMTPPassword   string `mapstructure:"smtp_password"`
	MailFrom       string `mapstructure:"mail_from" validate:"omitempty,email"`
	MailTo         string `mapstructure:"mail_to" validate:"omitempty,email"`
	QueueSize      int    `mapstructure:"queue_size" validate:"gt=0"`
}

type PriceConfig struct {
	APIURL          string          `mapstructure:"api_url" validate:"required,url"`
	APIKey          string          `mapstructure:"api_key"`
	TokenID         string          `mapstructure:"token_id" validate:"required"`
	Fallback        decimal.Decimal `mapstructure:"-"`
	RefreshInterval time.Duration   `mapstructure:"refresh_interval" validate:"gt=0"`
	Timeout         time.Duration   `mapstructure:"timeout" validate:"gt=0"`
}

type TopUpConfig struct {
	RawAmounts string            `mapstructure:"usd_amounts"`
	USDAmounts []decimal.Decimal `mapstructure:"-"`
}

type ChainConfig struct {
	ID             int64         `mapstructure:"id" validate:"gt=0"`
	Name           string        `mapstructure:"name" validate:"required"`
	RPCURL         string        `mapstructure:"rpc_url" validate:"required,url"`
	CurrencySymbol string        `mapstructure:"currency_symbol" validate:"required"`
	Decimals       int32         `mapstructure:"decimals" validate:"gte=0,lte=36"`
	ExplorerName   string        `mapstructure:"explorer_name"`
	ExplorerURL    string        `mapstructure:"explorer_url" validate:"required,url"`
	PollInterval   time.Duration `mapstructure:"poll_interval" validate:"gt=0"`
}

// AuthConfig with an empty JWTSecret accepts the X-Wallet-Address header as identity.
type AuthConfig struct {
	JWTSecret    string        `mapstructure:"jwt_secret"`
	SessionTTL   time.Duration `mapstructure:"session_ttl" validate:"gt=0"`
	SignInWindow time.Duration `mapstructure:"signin_window" validate:"gt=0"`
}

type ReconcileConfig struct {
	Schedule   string        `mapstructure:"schedule" validate:"required"`
	PendingAge time.Duration `mapstructure:"pending_age" validate:"gt=0"`
	BatchSize  int           `mapstructure:"batch_size" validate:"gt=0"`
}

// FallbackPrice is returned whenever the price API cannot be used.
var FallbackPrice = decimal.RequireFromString("0.01")

var defaults = map[string]interface{}{
	"app.name":          "SOMI CARDS",
	"app.port":          "8000",
	"app.log_level":     "info",
	"app.allow_origins": []string{"http://localhost:5173"},

	"db.host":     "localhost",
	"db.port":     "5432",
	"db.username": "postgres",
	"db.password": "",
	"db.dbname":   "debitcard",
	"db.sslmode":  "disable",

	"redis.addr":     "",
	"redis.password": "",
	"redis.db":       0,

	"treasury": "0x582ca7856CEbAbC9eE62E24a7b8D1Bb2fF9814aa",

	"notify.webhook_url":     "",
	"notify.notification_id": "",
	"notify.telegram_token":  "",
	"notify.mailjet_key":     "",
	"notify.mailjet_secret":  "",
	"notify.smtp_host":       "",
	"notify.smtp_port":       587,
	"notify.smtp_user":       "",
	"notify.smtp_password":   "",
	"notify.mail_from":       "",
	"notify.mail_to":         "",
	"notify.queue_size":      64,

	"price.api_url":          "https://api.coingecko.com/api/v3",
	"price.api_key":          "",
	"price.token_id":         "somnia",
	"price.refresh_interval": 60 * time.Second,
	"price.timeout":          10 * time.Second,

	"topup.usd_amounts": "50,100,200,500,1000",

	"chain.id":              5031,
	"chain.name":            "Somnia",
	"chain.rpc_url":         "https://api.infra.mainnet.somnia.network/",
	"chain.currency_symbol": "SOM",
	"chain.decimals":        18,
	"chain.explorer_name":   "Somnia Explorer",
	"chain.explorer_url":    "https://explorer.somnia.network",
	"chain.poll_interval":   2 * time.Second,

	"auth.jwt_secret":    "",
	"auth.session_ttl":   24 * time.Hour,
	"auth.signin_window": 5 * time.Minute,

	"reconcile.schedule":    "@every 5m",
	"reconcile.pending_age": 10 * time.Minute,
	"reconcile.batch_size":  50,

	"walletconnect": "your-project-id",
}

// envAliases keeps the dashboard's VITE_ variable names working next to the plain ones.
var envAliases = map[string][]string{
	"treasury":               {"TREASURY_ADDRESS", "VITE_TREASURY_ADDRESS"},
	"notify.webhook_url":     {"BACKEND_WEBHOOK_URL", "VITE_BACKEND_WEBHOOK_URL"},
	"notify.notification_id": {"BACKEND_NOTIFICATION_ID", "VITE_BACKEND_NOTIFICATION_ID"},
	"price.api_url":          {"COINGECKO_API_URL", "VITE_COINGECKO_API_URL"},
	"price.api_key":          {"COINGECKO_API_KEY", "VITE_COINGECKO_API_KEY"},
	"topup.usd_amounts":      {"TOP_UP_USD_AMOUNTS", "VITE_TOP_UP_USD_AMOUNTS"},
	"chain.id":               {"CHAIN_ID", "VITE_CHAIN_ID"},
	"chain.name":             {"CHAIN_NAME", "VITE_CHAIN_NAME"},
	"chain.rpc_url":          {"RPC_URL", "VITE_RPC_URL"},
	"chain.currency_symbol":  {"NATIVE_CURRENCY_SYMBOL", "VITE_NATIVE_CURRENCY_SYMBOL"},
	"chain.decimals":         {"NATIVE_CURRENCY_DECIMALS", "VITE_NATIVE_CURRENCY_DECIMALS"},
	"chain.explorer_name":    {"BLOCK_EXPLORER_NAME", "VITE_BLOCK_EXPLORER_NAME"},
	"chain.explorer_url":     {"BLOCK_EXPLORER_URL", "VITE_BLOCK_EXPLORER_URL"},
	"walletconnect":          {"WALLETCONNECT_PROJECT_ID", "VITE_WALLETCONNECT_PROJECT_ID"},
	"db.password":            {"DB_PASSWORD", "DB_PASS_LOCAL"},
	"app.port":               {"PORT", "APP_PORT"},
}

// Load resolves defaults, then configs/config.yml, then .env and the process
// environment, in increasing priority.
func Load(configPath string) (Config, error) {
	if err := godotenv.Load(); err != nil {
		logrus.Debugf("no .env file loaded: %s", err)
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range envAliases {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return Config{}, errors.Wrapf(err, "bind env for %s", key)
		}
	}

	if configPath != "" {
		v.AddConfigPath(configPath)
		v.SetConfigName("config")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, errors.Wrap(err, "read config file")
			}
			logrus.Debugf("no config file in %s, using defaults", configPath)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "decode config")
	}

	amounts, err := ParseAmounts(cfg.TopUp.RawAmounts)
	if err != nil {
		return Config{}, err
	}
	cfg.TopUp.USDAmounts = amounts
	cfg.Price.Fallback = FallbackPrice

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, errors.Wrap(err, "invalid config")
	}
	return cfg, nil
}

// ParseAmounts reads a comma-separated list of positive USD amounts.
func ParseAmounts(raw string) ([]decimal.Decimal, error) {
	var amounts []decimal.Decimal
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		d, err := decimal.NewFromString(p)
		if err != nil {
			return nil, errors.Wrapf(err, "top-up amount %q", p)
		}
		if !d.IsPositive() {
			return nil, errors.Errorf("top-up amount %q must be positive", p)
		}
		amounts = append(amounts, d)
	}
	if len(amounts) == 0 {
		return nil, errors.New("no top-up amounts configured")
	}
	return amounts, nil
}

// AllowsAmount reports whether usd is one of the selectable amounts.
func (c TopUpConfig) AllowsAmount(usd decimal.Decimal) bool {
	for _, a := range c.USDAmounts {
		if a.Equal(usd) {
			return true
		}
	}
	return false
}

func (c NotifyConfig) WebhookEnabled() bool {
	return c.WebhookURL != "" && c.NotificationID != ""
}
