package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds everything the fetch command and the server need at startup
type Config struct {
	DatabaseURL string

	CWAAPIKey      string
	CWABaseURL     string        `validate:"required,url"`
	CWADatasetID   string        `validate:"required"`
	CWATimeout     time.Duration `validate:"gt=0"`
	CWAInsecureTLS bool

	Port string `validate:"required,numeric"`
	Env  string `validate:"oneof=development production test"`

	// FetchInterval enables the in-server scheduler when non-zero
	FetchInterval time.Duration `validate:"gte=0"`
	RefreshRPS    float64       `validate:"gt=0"`
	RefreshBurst  int           `validate:"gte=1"`
	TrendBatches  int           `validate:"gte=1,lte=100"`

	MQTTBrokerURL string
	MQTTTopic     string `validate:"required_with=MQTTBrokerURL"`
	MQTTClientID  string `validate:"required_with=MQTTBrokerURL"`
}

var validate = validator.New()

// Load reads the .env file (if any) and the environment
func Load() (*Config, error) {
	// a missing .env is fine; the environment may already be populated
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		CWAAPIKey:     getEnv("CWA_API_KEY", ""),
		CWABaseURL:    getEnv("CWA_BASE_URL", "https://opendata.cwa.gov.tw/fileapi/v1/opendataapi"),
		CWADatasetID:  getEnv("CWA_DATASET_ID", "F-A0010-001"),
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("GO_ENV", "development"),
		MQTTBrokerURL: getEnv("MQTT_BROKER_URL", ""),
		MQTTTopic:     getEnv("MQTT_TOPIC", "cwa/weather/batches"),
		MQTTClientID:  getEnv("MQTT_CLIENT_ID", "cwa-weather"),
	}

	var err error
	if cfg.CWATimeout, err = getEnvDuration("CWA_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.FetchInterval, err = getEnvDuration("FETCH_INTERVAL", 0); err != nil {
		return nil, err
	}
	if cfg.CWAInsecureTLS, err = getEnvBool("CWA_INSECURE_TLS", false); err != nil {
		return nil, err
	}
	if cfg.RefreshRPS, err = getEnvFloat("REFRESH_RPS", 1.0/60); err != nil {
		return nil, err
	}
	if cfg.RefreshBurst, err = getEnvInt("REFRESH_BURST", 1); err != nil {
		return nil, err
	}
	if cfg.TrendBatches, err = getEnvInt("TREND_BATCHES", 10); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// RequireFetch reports whether the settings needed by the fetch pipeline are present
func (c *Config) RequireFetch() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("config: DATABASE_URL environment variable is not set")
	}
	if c.CWAAPIKey == "" {
		return fmt.Errorf("config: CWA_API_KEY environment variable is not set")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: expected an integer, got '%s'", key, valueStr)
	}
	return value, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: expected a number, got '%s'", key, valueStr)
	}
	return value, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return false, fmt.Errorf("invalid value for %s: expected a boolean, got '%s'", key, valueStr)
	}
	return value, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}
