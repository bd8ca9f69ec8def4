package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppMode           string
	APIBaseURL        string
	BrokerURL         string
	AccessToken       string
	RequestTimeout    time.Duration
	HeartbeatInterval time.Duration
	ReconnectDelay    time.Duration
}

func LoadConfig() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return &Config{
		AppMode:           getEnv("APP_MODE", "development"),
		APIBaseURL:        getEnv("API_BASE_URL", "http://localhost:8080"),
		BrokerURL:         getEnv("BROKER_URL", "ws://localhost:8080/ws"),
		AccessToken:       getEnv("ACCESS_TOKEN", ""),
		RequestTimeout:    getEnvAsDuration("REQUEST_TIMEOUT_SEC", 15),
		HeartbeatInterval: getEnvAsDuration("HEARTBEAT_SEC", 4),
		ReconnectDelay:    getEnvAsDuration("RECONNECT_DELAY_SEC", 5),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallbackSeconds int) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(value) * time.Second
	}
	return time.Duration(fallbackSeconds) * time.Second
}
