package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(NewOrderPolicyHolder),
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string
	Currency    string

	AuthJWTSecret   string
	AuthJWTIssuer   string
	AuthJWTTokenTTL time.Duration

	Telemetry TelemetryConfig

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Hub       HubConfig
	Events    EventsConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig

	CORSAllowedOrigins []string

	// SeedDemoOutletID, when set, seeds a small catalog for that outlet on
	// startup if it has none.
	SeedDemoOutletID string
}

// TelemetryConfig carries logging and OpenTelemetry exporter settings.
type TelemetryConfig struct {
	LogLevel      string
	LogFormat     string
	OtelEnabled   bool
	OtlpEndpoint  string
	OtlpProtocol  string
	SamplingRatio float64
}

type HubConfig struct {
	ClientBuffer  int
	IngressBuffer int
}

type EventsConfig struct {
	QueueSize    int
	FeedSize     int
	KafkaBrokers []string
	KafkaTopic   string
	RedisChannel string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type RateLimitConfig struct {
	Enabled             bool
	OrderCreateRate     float64
	OrderCreateBurst    int
	PaymentLockTTLMilli int64
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:         getenv("APP_SERVICE", "kasir"),
		AppVersion:      getenv("APP_VERSION", "0.1.0"),
		Environment:     getenv("ENVIRONMENT", "development"),
		HTTPAddr:        getenv("HTTP_ADDR", ":8080"),
		Currency:        strings.ToUpper(strings.TrimSpace(getenv("CURRENCY", "IDR"))),
		AuthJWTSecret:   strings.TrimSpace(getenv("AUTH_JWT_SECRET", "")),
		AuthJWTIssuer:   strings.TrimSpace(getenv("AUTH_JWT_ISSUER", "")),
		AuthJWTTokenTTL: time.Duration(getenvInt64("AUTH_JWT_TTL_SECONDS", 12*60*60)) * time.Second,
		Telemetry: TelemetryConfig{
			LogLevel:      strings.ToLower(strings.TrimSpace(getenv("LOG_LEVEL", "info"))),
			LogFormat:     strings.ToLower(strings.TrimSpace(getenv("LOG_FORMAT", "json"))),
			OtelEnabled:   getenvBool("OTEL_ENABLED", false),
			OtlpEndpoint:  strings.TrimSpace(getenv("OTEL_EXPORTER_OTLP_ENDPOINT", getenv("OTLP_ENDPOINT", "localhost:4317"))),
			OtlpProtocol:  strings.ToLower(strings.TrimSpace(getenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc"))),
			SamplingRatio: getenvFloat("OTEL_SAMPLING_RATIO", 0.1),
		},

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "kasir"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     int(getenvInt64("DATABASE_MAX_IDLE_CONN", 10)),
		DBMaxOpenConn:     int(getenvInt64("DATABASE_MAX_OPEN_CONN", 50)),
		DBConnMaxLifetime: int(getenvInt64("DATABASE_CONN_MAX_LIFETIME", 300)),
		DBConnMaxIdleTime: int(getenvInt64("DATABASE_CONN_MAX_IDLE_TIME", 60)),

		Hub: HubConfig{
			ClientBuffer:  int(getenvInt64("HUB_CLIENT_BUFFER", 16)),
			IngressBuffer: int(getenvInt64("HUB_INGRESS_BUFFER", 256)),
		},
		Events: EventsConfig{
			QueueSize:    int(getenvInt64("EVENT_QUEUE_SIZE", 1024)),
			FeedSize:     int(getenvInt64("EVENT_FEED_SIZE", 200)),
			KafkaBrokers: splitList(getenv("KAFKA_BROKERS", "")),
			KafkaTopic:   strings.TrimSpace(getenv("KAFKA_TOPIC", "kasir.order-events")),
			RedisChannel: strings.TrimSpace(getenv("REDIS_EVENT_CHANNEL", "")),
		},
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password: strings.TrimSpace(getenv("REDIS_PASSWORD", "")),
			DB:       int(getenvInt64("REDIS_DB", 0)),
		},
		RateLimit: RateLimitConfig{
			Enabled:             getenvBool("RATE_LIMIT_ENABLED", false),
			OrderCreateRate:     getenvFloat("RATE_LIMIT_ORDER_CREATE_RATE", 5),
			OrderCreateBurst:    int(getenvInt64("RATE_LIMIT_ORDER_CREATE_BURST", 20)),
			PaymentLockTTLMilli: getenvInt64("RATE_LIMIT_PAYMENT_LOCK_TTL_MS", 5000),
		},
		CORSAllowedOrigins: splitList(getenv("CORS_ALLOWED_ORIGINS", "*")),
		SeedDemoOutletID:   strings.TrimSpace(getenv("SEED_DEMO_OUTLET_ID", "")),
	}

	return cfg
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
