package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Orion      OrionConfig      `mapstructure:"orion"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Email      EmailConfig      `mapstructure:"email"`
	Payment    PaymentConfig    `mapstructure:"payment"`
	Pricing    PricingConfig    `mapstructure:"pricing"`
	Cart       CartConfig       `mapstructure:"cart"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	CORS       CORSConfig       `mapstructure:"cors"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	Log        LogConfig        `mapstructure:"log"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN builds the lib/pq connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
}

type CacheConfig struct {
	DirectoryTTL    time.Duration `mapstructure:"directory_ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

type OrionConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout"`

	// DefaultInclude is sent as `incluir` when a detail request names none.
	DefaultInclude  []string      `mapstructure:"default_include"`
	BreakerFailures uint32        `mapstructure:"breaker_failures"`
	BreakerTimeout  time.Duration `mapstructure:"breaker_timeout"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
	AdminRole string `mapstructure:"admin_role"`
}

type EmailConfig struct {
	// Driver is "template" (hosted email-template service) or "smtp".
	Driver   string         `mapstructure:"driver"`
	Template TemplateConfig `mapstructure:"template"`
	SMTP     SMTPConfig     `mapstructure:"smtp"`

	// NotifyTo receives the lab's copy of every checkout.
	NotifyTo string        `mapstructure:"notify_to"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type TemplateConfig struct {
	Endpoint    string `mapstructure:"endpoint"`
	ServiceID   string `mapstructure:"service_id"`
	TemplateID  string `mapstructure:"template_id"`
	PublicKey   string `mapstructure:"public_key"`
	AccessToken string `mapstructure:"access_token"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	Subject  string `mapstructure:"subject"`
}

type PaymentConfig struct {
	MerchantPhone string `mapstructure:"merchant_phone"`
	Message       string `mapstructure:"message"`
}

type PricingConfig struct {
	PublicReference   string   `mapstructure:"public_reference"`
	BaseTariff        string   `mapstructure:"base_tariff"`
	ReferentialTariff string   `mapstructure:"referential_tariff"`
	ReferentialRefs   []string `mapstructure:"referential_references"`
	// ReferentialFactor derives the referential price when an exam has no reference price.
	ReferentialFactor float64  `mapstructure:"referential_factor"`
	MigrationBatch    int      `mapstructure:"migration_batch"`
}

type CartConfig struct {
	// Store is "redis" or "memory".
	Store string        `mapstructure:"store"`
	TTL   time.Duration `mapstructure:"ttl"`
}

type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool   `mapstructure:"prometheus_enabled"`
	Namespace         string `mapstructure:"namespace"`
}

type LogConfig struct {
	Level   string `mapstructure:"level"`
	Console bool   `mapstructure:"console"`
}

// Secrets are read from the environment only, never from the config file.
type Secrets struct {
	DatabasePassword string `envconfig:"DB_PASSWORD"`
	OrionToken       string `envconfig:"ORION_TOKEN"`
	JWTSecret        string `envconfig:"JWT_SECRET"`
	EmailPublicKey   string `envconfig:"EMAIL_PUBLIC_KEY"`
	EmailAccessToken string `envconfig:"EMAIL_ACCESS_TOKEN"`
	SMTPPassword     string `envconfig:"SMTP_PASSWORD"`
	RedisURL         string `envconfig:"REDIS_URL"`
	PaymentPhone     string `envconfig:"PAYMENT_PHONE"`
}

const envPrefix = "LAB"

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("server.max_body_bytes", 1<<20)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "require")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)

	v.SetDefault("redis.max_retries", 2)
	v.SetDefault("redis.retry_backoff", 100*time.Millisecond)
	v.SetDefault("redis.pool_size", 10)

	v.SetDefault("cache.directory_ttl", 5*time.Minute)
	v.SetDefault("cache.cleanup_interval", 10*time.Minute)

	v.SetDefault("orion.timeout", 20*time.Second)
	v.SetDefault("orion.default_include", []string{"paciente", "medico", "examenes", "detallesOrdenes"})
	v.SetDefault("orion.breaker_failures", 5)
	v.SetDefault("orion.breaker_timeout", 30*time.Second)

	v.SetDefault("auth.admin_role", "admin")

	v.SetDefault("email.driver", "template")
	v.SetDefault("email.template.endpoint", "https://api.emailjs.com/api/v1.0/email/send")
	v.SetDefault("email.smtp.port", 587)
	v.SetDefault("email.smtp.subject", "Nueva solicitud de toma de muestra")
	v.SetDefault("email.timeout", 15*time.Second)

	v.SetDefault("payment.message", "Pago de analisis clinicos")

	v.SetDefault("pricing.public_reference", "Public")
	v.SetDefault("pricing.base_tariff", "Base")
	v.SetDefault("pricing.referential_tariff", "Referential with tax")
	v.SetDefault("pricing.referential_references", []string{"Doctors", "Companies"})
	v.SetDefault("pricing.referential_factor", 0.8)
	v.SetDefault("pricing.migration_batch", 20)

	v.SetDefault("cart.store", "redis")
	v.SetDefault("cart.ttl", 72*time.Hour)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_second", 20)
	v.SetDefault("rate_limit.burst", 40)

	v.SetDefault("cors.allowed_origins", []string{"*"})

	v.SetDefault("monitoring.prometheus_enabled", true)
	v.SetDefault("monitoring.namespace", "labportal")

	v.SetDefault("log.level", "info")
}

// LoadConfig reads config.yaml (when present), applies LAB_* environment
// overrides and overlays secrets. A .env file is loaded first for local runs.
func LoadConfig() (*Config, error) {
	v, err := readConfig()
	if err != nil {
		return nil, err
	}
	return load(v, (*Config).Validate)
}

// LoadToolConfig is LoadConfig for labctl, which talks to the database only
// and so does not require the server's secrets.
func LoadToolConfig() (*Config, error) {
	v, err := readConfig()
	if err != nil {
		return nil, err
	}
	return load(v, (*Config).ValidatePricing)
}

func readConfig() (*viper.Viper, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/app/config")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return v, nil
}

func load(v *viper.Viper, validate func(*Config) error) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	var secrets Secrets
	if err := envconfig.Process(envPrefix, &secrets); err != nil {
		return nil, fmt.Errorf("failed to read secrets: %w", err)
	}
	config.applySecrets(secrets)

	if err := validate(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) applySecrets(s Secrets) {
	overlay := func(dst *string, val string) {
		if val != "" {
			*dst = val
		}
	}
	overlay(&c.Database.Password, s.DatabasePassword)
	overlay(&c.Orion.Token, s.OrionToken)
	overlay(&c.Auth.JWTSecret, s.JWTSecret)
	overlay(&c.Email.Template.PublicKey, s.EmailPublicKey)
	overlay(&c.Email.Template.AccessToken, s.EmailAccessToken)
	overlay(&c.Email.SMTP.Password, s.SMTPPassword)
	overlay(&c.Redis.URL, s.RedisURL)
	overlay(&c.Payment.MerchantPhone, s.PaymentPhone)
}

// Validate checks the settings the service cannot start without.
func (c *Config) Validate() error {
	var missing []string
	if c.Orion.BaseURL == "" {
		missing = append(missing, "orion.base_url")
	}
	if c.Orion.Token == "" {
		missing = append(missing, "LAB_ORION_TOKEN")
	}
	if c.Auth.JWTSecret == "" {
		missing = append(missing, "LAB_JWT_SECRET")
	}
	if c.Payment.MerchantPhone == "" {
		missing = append(missing, "payment.merchant_phone")
	}
	if c.Cart.Store == "redis" && c.Redis.URL == "" {
		missing = append(missing, "redis.url")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	switch c.Email.Driver {
	case "template", "smtp":
	default:
		return fmt.Errorf("unsupported email driver %q", c.Email.Driver)
	}
	return c.ValidatePricing()
}

// ValidatePricing checks the settings price resolution and the legacy
// migration need.
func (c *Config) ValidatePricing() error {
	if c.Pricing.PublicReference == "" || c.Pricing.BaseTariff == "" || c.Pricing.ReferentialTariff == "" {
		return fmt.Errorf("pricing reference and tariff names must be set")
	}
	if c.Pricing.ReferentialFactor <= 0 || c.Pricing.ReferentialFactor > 1 {
		return fmt.Errorf("pricing.referential_factor must be in (0, 1]")
	}
	if c.Pricing.MigrationBatch <= 0 {
		return fmt.Errorf("pricing.migration_batch must be greater than 0")
	}
	return nil
}
