package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Config carries every environment setting the services read. Each binary
// validates only the fields it actually needs at startup.
type Config struct {
	Port             string
	PostgresURL      string
	RedisURL         string
	KafkaBrokers     []string
	OrdersServiceURL string
	EmailServiceURL  string
	EmailSender      string
	OTLPEndpoint     string
	ConsumerGroup    string
}

func Load() *Config {
	// Load .env file if exists
	godotenv.Load()

	return &Config{
		Port:             os.Getenv("PORT"),
		PostgresURL:      os.Getenv("POSTGRES_URL"),
		RedisURL:         getEnv("REDIS_URL", "redis://localhost:6379"),
		KafkaBrokers:     splitBrokers(os.Getenv("KAFKA_BROKERS")),
		OrdersServiceURL: os.Getenv("ORDERS_SERVICE_URL"),
		EmailServiceURL:  os.Getenv("EMAIL_SERVICE_URL"),
		EmailSender:      getEnv("EMAIL_SENDER", "orders@aerobooks.example"),
		OTLPEndpoint:     getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		ConsumerGroup:    getEnv("CONSUMER_GROUP", "notification-worker"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitBrokers(value string) []string {
	if value == "" {
		return nil
	}
	brokers := strings.Split(value, ",")
	for i := range brokers {
		brokers[i] = strings.TrimSpace(brokers[i])
	}
	return brokers
}
