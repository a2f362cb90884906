package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DataDir              string
	CompanyListPath      string
	CompanyIDMappingPath string

	ShareSansarURL string
	FloorsheetURL  string
	UserAgent      string
	RequestTimeout time.Duration

	PageDelayMin   time.Duration
	PageDelayMax   time.Duration
	EntityDelayMin time.Duration
	EntityDelayMax time.Duration

	OffsetBatchSize  int
	RetryMaxAttempts int
	RetryBackoff     time.Duration
	MaxPages         int

	SyncConcurrency int
	SyncInterval    time.Duration
	SyncCategories  []string

	// StoreBackend is "csv" or "mongo".
	StoreBackend string
	MongoURI     string
	MongoDBName  string
	MongoColl    string

	// KafkaBrokers is empty when events go to the log only.
	KafkaBrokers      []string
	KafkaTopic        string
	KafkaTriggerTopic string
	KafkaDLQTopic     string

	ServerPort  string
	LogLevel    string
	LogFormat   string
	OTelEnabled bool
}

func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		DataDir:              getEnv("DATA_DIR", "data"),
		CompanyListPath:      os.Getenv("COMPANY_LIST_PATH"),
		CompanyIDMappingPath: os.Getenv("COMPANY_ID_MAPPING_PATH"),

		ShareSansarURL: strings.TrimRight(getEnv("SHARESANSAR_BASE_URL", "https://www.sharesansar.com"), "/"),
		FloorsheetURL:  getEnv("FLOORSHEET_URL", "https://merolagani.com/Floorsheet.aspx"),
		UserAgent:      os.Getenv("USER_AGENT"),
		RequestTimeout: getDurationEnv("REQUEST_TIMEOUT", 30*time.Second),

		PageDelayMin:   getDurationEnv("PAGE_DELAY_MIN", 1*time.Second),
		PageDelayMax:   getDurationEnv("PAGE_DELAY_MAX", 2*time.Second),
		EntityDelayMin: getDurationEnv("ENTITY_DELAY_MIN", 800*time.Millisecond),
		EntityDelayMax: getDurationEnv("ENTITY_DELAY_MAX", 1500*time.Millisecond),

		OffsetBatchSize:  getIntEnv("OFFSET_BATCH_SIZE", 50),
		RetryMaxAttempts: getIntEnv("RETRY_MAX_ATTEMPTS", 3),
		RetryBackoff:     getDurationEnv("RETRY_BACKOFF", 2*time.Second),
		MaxPages:         getIntEnv("MAX_PAGES", 0),

		SyncConcurrency: getIntEnv("SYNC_CONCURRENCY", 1),
		SyncInterval:    getDurationEnv("SYNC_INTERVAL", 6*time.Hour),
		SyncCategories:  getListEnv("SYNC_CATEGORIES", []string{"prices", "floorsheet"}),

		StoreBackend: strings.ToLower(getEnv("STORE_BACKEND", "csv")),
		MongoURI:     getEnv("MONGO_URI", "mongodb://mongodb:27017"),
		MongoDBName:  getEnv("MONGO_DB_NAME", "nepsy"),
		MongoColl:    getEnv("MONGO_COLLECTION", "records"),

		KafkaBrokers:      getListEnv("KAFKA_BROKERS", nil),
		KafkaTopic:        getEnv("KAFKA_TOPIC", "nepsy_sync_events"),
		KafkaTriggerTopic: getEnv("KAFKA_TRIGGER_TOPIC", "nepsy_sync_requests"),
		KafkaDLQTopic:     getEnv("KAFKA_DLQ_TOPIC", "nepsy_sync_requests_dlq"),

		ServerPort:  getEnv("SERVER_PORT", "8080"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "json"),
		OTelEnabled: getBoolEnv("OTEL_ENABLED", false),
	}

	if cfg.CompanyListPath == "" {
		cfg.CompanyListPath = cfg.DataDir + "/company_list.json"
	}
	if cfg.CompanyIDMappingPath == "" {
		cfg.CompanyIDMappingPath = cfg.DataDir + "/company_id_mapping.json"
	}
	if cfg.PageDelayMax < cfg.PageDelayMin {
		slog.Warn("PAGE_DELAY_MAX below PAGE_DELAY_MIN, using the minimum", "min", cfg.PageDelayMin, "max", cfg.PageDelayMax)
		cfg.PageDelayMax = cfg.PageDelayMin
	}
	if cfg.EntityDelayMax < cfg.EntityDelayMin {
		cfg.EntityDelayMax = cfg.EntityDelayMin
	}
	return cfg
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		i, err := strconv.Atoi(value)
		if err == nil {
			return i
		}
	}
	return fallback
}

func getBoolEnv(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		b, err := strconv.ParseBool(value)
		if err == nil {
			return b
		}
	}
	return fallback
}

// getListEnv splits a comma-separated value, dropping empty items.
func getListEnv(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		// Try parsing as duration string (e.g. "1m", "60s")
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		// Try parsing as integer seconds
		if i, err := strconv.Atoi(value); err == nil {
			return time.Duration(i) * time.Second
		}
	}
	return fallback
}
