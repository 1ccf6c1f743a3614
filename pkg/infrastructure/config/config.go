package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Item store backends
const (
	ItemStoreMongo    = "mongo"
	ItemStorePostgres = "postgres"
)

type Config struct {
	ServerPort        string
	ServiceID         string
	ServiceAddress    string
	MongoURI          string
	MongoDB           string
	ItemStore         string
	DatabaseURL       string
	KafkaBrokers      []string
	KafkaTopic        string
	ConsulAddr        string
	CacheTTL          time.Duration
	SlowJoinThreshold time.Duration
	SyncMaxAttempts   int
	EventRetention    int
}

func LoadConfig() (*Config, error) {
	serviceID := os.Getenv("SERVICE_ID")
	if serviceID == "" {
		serviceID = uuid.New().String()
	}

	cacheTTL, err := parseDuration("CACHE_TTL", "30s")
	if err != nil {
		return nil, err
	}
	slowJoin, err := parseDuration("SLOW_JOIN_THRESHOLD", "2s")
	if err != nil {
		return nil, err
	}
	maxAttempts, err := strconv.Atoi(getEnv("SYNC_MAX_ATTEMPTS", "3"))
	if err != nil {
		return nil, fmt.Errorf("SYNC_MAX_ATTEMPTS must be an integer: %w", err)
	}
	retention, err := strconv.Atoi(getEnv("EVENT_RETENTION", "10000"))
	if err != nil {
		return nil, fmt.Errorf("EVENT_RETENTION must be an integer: %w", err)
	}

	serviceAddress := os.Getenv("SERVICE_ADDRESS")
	if serviceAddress == "" {
		if serviceAddress, err = os.Hostname(); err != nil {
			return nil, fmt.Errorf("SERVICE_ADDRESS is unset and the hostname is unknown: %w", err)
		}
	}

	cfg := &Config{
		ServerPort:        getEnv("SERVER_PORT", "8080"),
		ServiceID:         serviceID,
		ServiceAddress:    serviceAddress,
		MongoURI:          getEnv("MONGO_URI", "mongodb://mongo:27017"),
		MongoDB:           getEnv("MONGO_DB", "podsync"),
		ItemStore:         getEnv("ITEM_STORE", ItemStoreMongo),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		KafkaBrokers:      parseKafkaBrokers(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:        getEnv("KAFKA_TOPIC", "pod-events"),
		ConsulAddr:        os.Getenv("CONSUL_ADDR"),
		CacheTTL:          cacheTTL,
		SlowJoinThreshold: slowJoin,
		SyncMaxAttempts:   maxAttempts,
		EventRetention:    retention,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.ServerPort == "" {
		return fmt.Errorf("SERVER_PORT is required")
	}
	if c.MongoURI == "" {
		return fmt.Errorf("MONGO_URI is required")
	}
	if c.MongoDB == "" {
		return fmt.Errorf("MONGO_DB is required")
	}
	switch c.ItemStore {
	case ItemStoreMongo:
	case ItemStorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when ITEM_STORE=postgres")
		}
	default:
		return fmt.Errorf("ITEM_STORE must be %q or %q, got %q", ItemStoreMongo, ItemStorePostgres, c.ItemStore)
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		return fmt.Errorf("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}
	if c.ConsulAddr != "" && c.ServiceAddress == "" {
		return fmt.Errorf("SERVICE_ADDRESS is required when CONSUL_ADDR is set")
	}
	if c.EventRetention < 1 {
		return fmt.Errorf("EVENT_RETENTION must be at least 1, got %d", c.EventRetention)
	}
	if c.SyncMaxAttempts < 1 {
		return fmt.Errorf("SYNC_MAX_ATTEMPTS must be at least 1, got %d", c.SyncMaxAttempts)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDuration(key, defaultValue string) (time.Duration, error) {
	d, err := time.ParseDuration(getEnv(key, defaultValue))
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	return d, nil
}

func parseKafkaBrokers(brokers string) []string {
	if strings.TrimSpace(brokers) == "" {
		return nil
	}
	parts := strings.Split(brokers, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			result = append(result, p)
		}
	}
	return result
}
