package configs

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/shopspring/decimal"

	domain "github.com/aq2208/gcart-api/internal/entity"
)

const envPrefix = "GCART_"

type Config struct {
	App struct {
		Name     string `koanf:"name"`
		Version  string `koanf:"version"`
		HTTPAddr string `koanf:"http_addr"`
		GRPCAddr string `koanf:"grpc_addr"`
	} `koanf:"app"`

	HTTP struct {
		ReadTimeout     time.Duration `koanf:"read_timeout"`
		WriteTimeout    time.Duration `koanf:"write_timeout"`
		IdleTimeout     time.Duration `koanf:"idle_timeout"`
		ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	} `koanf:"http"`

	Log struct {
		Level string `koanf:"level"`
		File  string `koanf:"file"`
	} `koanf:"log"`

	MySQL struct {
		DSN             string        `koanf:"dsn"`
		MaxOpenConns    int           `koanf:"max_open_conns"`
		MaxIdleConns    int           `koanf:"max_idle_conns"`
		ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	} `koanf:"mysql"`

	Redis struct {
		Addr     string `koanf:"addr"`
		Password string `koanf:"password"`
		DB       int    `koanf:"db"`
	} `koanf:"redis"`

	Session struct {
		TTL        time.Duration `koanf:"ttl"`
		SummaryTTL time.Duration `koanf:"summary_ttl"`
	} `koanf:"session"`

	Pricing struct {
		TaxRate           string            `koanf:"tax_rate"`
		ShippingThreshold string            `koanf:"shipping_threshold"`
		ShippingFee       string            `koanf:"shipping_fee"`
		DiscountCodes     map[string]string `koanf:"discount_codes"`
	} `koanf:"pricing"`

	Rabbit struct {
		URL        string        `koanf:"url"`
		Exchange   string        `koanf:"exchange"`
		RoutingKey string        `koanf:"routing_key"`
		Queue      string        `koanf:"queue"`
		Prefetch   int           `koanf:"prefetch"`
		Timeout    time.Duration `koanf:"timeout"`
	} `koanf:"rabbitmq"`

	Kafka struct {
		Brokers     []string `koanf:"brokers"`
		GroupID     string   `koanf:"group_id"`
		TopicEvents string   `koanf:"topic_events"`
	} `koanf:"kafka"`

	Security struct {
		JWTSecret     string        `koanf:"jwt_secret"`
		Issuer        string        `koanf:"issuer"`
		Audience      string        `koanf:"audience"`
		TTL           time.Duration `koanf:"ttl"`
		WebhookSecret string        `koanf:"webhook_secret"`
	} `koanf:"security"`

	WhatsApp struct {
		APIKey  string        `koanf:"api_key"`
		BaseURL string        `koanf:"base_url"`
		Timeout time.Duration `koanf:"timeout"`
	} `koanf:"whatsapp"`

	Agent struct {
		Engine   string        `koanf:"engine"` // projects/<p>/locations/<l>/reasoningEngines/<id>
		Location string        `koanf:"location"`
		BaseURL  string        `koanf:"base_url"`
		Timeout  time.Duration `koanf:"timeout"`
	} `koanf:"agent"`

	Relay struct {
		VerifyToken string        `koanf:"verify_token"`
		DedupTTL    time.Duration `koanf:"dedup_ttl"`
		InflightTTL time.Duration `koanf:"inflight_ttl"`
	} `koanf:"relay"`

	MCP struct {
		SessionID string `koanf:"session_id"`
	} `koanf:"mcp"`
}

// Load reads base.yaml, the optional <env>.yaml, then GCART_ variables.
// A .env file in the working directory is loaded first when present.
func Load(pathDir, envName string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	k := koanf.New(".")
	// 1) base
	if err := k.Load(file.Provider(fmt.Sprintf("%s/base.yaml", pathDir)), yaml.Parser()); err != nil {
		return Config{}, fmt.Errorf("load base: %w", err)
	}

	// 2) env override (dev/staging/prod). Optional: allow missing for local runs.
	_ = k.Load(file.Provider(fmt.Sprintf("%s/%s.yaml", pathDir, envName)), yaml.Parser())

	// 3) environment variables override (prefix GCART_, nested with __)
	// e.g. GCART_MYSQL__DSN, GCART_REDIS__PASSWORD
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, envPrefix)
		s = strings.ReplaceAll(s, "__", ".")
		return strings.ToLower(s)
	}), nil); err != nil {
		return Config{}, fmt.Errorf("env overlay: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks what every binary needs. Server-only keys are checked by ValidateServer.
func (c Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("app.name required")
	}
	if _, err := c.PricingRules(); err != nil {
		return err
	}
	return nil
}

func (c Config) ValidateServer() error {
	if c.App.HTTPAddr == "" {
		return fmt.Errorf("app.http_addr required")
	}
	if c.MySQL.DSN == "" {
		return fmt.Errorf("mysql.dsn required")
	}
	if c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr required")
	}
	if c.Rabbit.URL == "" {
		return fmt.Errorf("rabbitmq.url required")
	}
	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers required")
	}
	if c.Security.JWTSecret == "" {
		return fmt.Errorf("security.jwt_secret required")
	}
	return nil
}

// PricingRules builds the domain pricing from config, starting from the defaults.
func (c Config) PricingRules() (domain.Pricing, error) {
	p := domain.DefaultPricing()
	parse := func(key, raw string, dst *decimal.Decimal) error {
		if raw == "" {
			return nil
		}
		d, err := decimal.NewFromString(raw)
		if err != nil || d.IsNegative() {
			return fmt.Errorf("pricing.%s: invalid amount %q", key, raw)
		}
		*dst = d
		return nil
	}
	if err := parse("tax_rate", c.Pricing.TaxRate, &p.TaxRate); err != nil {
		return domain.Pricing{}, err
	}
	if err := parse("shipping_threshold", c.Pricing.ShippingThreshold, &p.ShippingThreshold); err != nil {
		return domain.Pricing{}, err
	}
	if err := parse("shipping_fee", c.Pricing.ShippingFee, &p.ShippingFee); err != nil {
		return domain.Pricing{}, err
	}
	if len(c.Pricing.DiscountCodes) > 0 {
		p.DiscountCodes = make(map[string]decimal.Decimal, len(c.Pricing.DiscountCodes))
		for code, raw := range c.Pricing.DiscountCodes {
			rate, err := decimal.NewFromString(raw)
			if err != nil || rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
				return domain.Pricing{}, fmt.Errorf("pricing.discount_codes.%s: rate must be within [0,1]", code)
			}
			p.DiscountCodes[domain.NormalizeCode(code)] = rate
		}
	}
	return p, nil
}
