package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Env carries every runtime setting. Secrets stay empty when not configured;
// handlers refuse to serve (HTTP 500) rather than falling through.
type Env struct {
	AppAddr  string `yaml:"app_addr" env:"APP_ADDR" env-default:":8080"`
	GinMode  string `yaml:"gin_mode" env:"GIN_MODE"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`

	DBDSN string `yaml:"db_dsn" env:"DB_DSN" env-default:"root:@tcp(127.0.0.1:3306)/freight_app?parseTime=true&loc=UTC&charset=utf8mb4&timeout=5s&readTimeout=30s&writeTimeout=30s"`

	PaystackSecretKey string        `yaml:"paystack_secret_key" env:"PAYSTACK_SECRET_KEY"`
	PaystackBaseURL   string        `yaml:"paystack_base_url" env:"PAYSTACK_BASE_URL" env-default:"https://api.paystack.co"`
	PaystackTimeout   time.Duration `yaml:"paystack_timeout" env:"PAYSTACK_TIMEOUT" env-default:"15s"`

	RefundEndpointSecret string `yaml:"refund_endpoint_secret" env:"REFUND_ENDPOINT_SECRET"`
	AppBaseURL           string `yaml:"app_base_url" env:"APP_BASE_URL" env-default:"http://localhost:3000"`
	IdentityJWTSecret    string `yaml:"identity_jwt_secret" env:"IDENTITY_JWT_SECRET"`

	CORSAllowedOrigins []string `yaml:"cors_allowed_origins" env:"CORS_ALLOWED_ORIGINS" env-separator:","`

	RedisAddr     string   `yaml:"redis_addr" env:"REDIS_ADDR"`
	RedisPassword string   `yaml:"redis_password" env:"REDIS_PASSWORD"`
	KafkaBrokers  []string `yaml:"kafka_brokers" env:"KAFKA_BROKERS" env-separator:","`
	KafkaTopic    string   `yaml:"kafka_topic" env:"KAFKA_TOPIC" env-default:"freight-payment-events"`

	HoldTTL       time.Duration `yaml:"hold_ttl" env:"HOLD_TTL" env-default:"30m"`
	SweepInterval time.Duration `yaml:"sweep_interval" env:"SWEEP_INTERVAL" env-default:"1m"`
}

// LoadEnv reads config.yaml when present and lets environment variables override it.
func LoadEnv() (Env, error) {
	var env Env
	path := strings.TrimSpace(os.Getenv("CONFIG_FILE"))
	if path == "" {
		path = "config.yaml"
	}

	if _, statErr := os.Stat(path); statErr == nil {
		if err := cleanenv.ReadConfig(path, &env); err != nil {
			return Env{}, fmt.Errorf("config error: %w", err)
		}
	} else if err := cleanenv.ReadEnv(&env); err != nil {
		return Env{}, fmt.Errorf("config error: %w", err)
	}

	env.PaystackSecretKey = strings.TrimSpace(env.PaystackSecretKey)
	env.RefundEndpointSecret = strings.TrimSpace(env.RefundEndpointSecret)
	env.IdentityJWTSecret = strings.TrimSpace(env.IdentityJWTSecret)
	env.AppBaseURL = strings.TrimRight(strings.TrimSpace(env.AppBaseURL), "/")
	return env, nil
}

// CallbackURL is where the gateway sends the customer after checkout.
func (e Env) CallbackURL() string {
	return e.AppBaseURL + "/payment/callback"
}
