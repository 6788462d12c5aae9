package config

import (
	"os"
	"strconv"
	"time"

	commoncfg "remediation-engine/common/config"
)

// Config remediation-engine（HTTP API）配置
type Config struct {
	HTTP struct {
		Addr string
	}
	DBEnabled bool
	Database  commoncfg.DatabaseConfig
	Redis     commoncfg.RedisConfig
	Log       struct {
		Level  string
		Format string
	}
	Accounting AccountingConfig
	Storage    StorageConfig
	Catalog    CatalogConfig
	Events     EventsConfig
	Photos     PhotosConfig
	Sessions   SessionsConfig
}

// AccountingConfig 外部会计系统配置
type AccountingConfig struct {
	BaseURL      string
	MinorVersion string
	// 默认凭证；请求头中的凭证优先
	AccessToken string
	RealmID     string
	// Timeout 为 0 表示不设超时，只受请求 context 控制
	Timeout time.Duration
}

// StorageConfig 照片存储配置；S3.Bucket 为空时使用内存存储
type StorageConfig struct {
	S3            commoncfg.S3Config
	MemoryBaseURL string
}

// CatalogConfig 计费目录缓存配置
type CatalogConfig struct {
	CacheKey string
	CacheTTL time.Duration
}

// EventsConfig 领域事件（Redis Streams）配置
type EventsConfig struct {
	Enabled bool
	Stream  string
	MaxLen  int64
}

// PhotosConfig 照片上传限制
type PhotosConfig struct {
	MaxUploadBytes int64
	MaxBatchSize   int
	// UploadConcurrency 单批照片同时上传的数量
	UploadConcurrency int
}

// SessionsConfig 编辑会话回收
type SessionsConfig struct {
	IdleTTL       time.Duration // 0 表示不回收
	SweepInterval time.Duration
}

func Load() *Config {
	cfg := &Config{}
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")

	// DB 不可用时回退到内存 repo（见 cmd/remediation-engine）
	cfg.DBEnabled = getEnv("DB_ENABLED", "true") == "true"
	cfg.Database = commoncfg.DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "postgres",
		Database: "fieldops",
		SSLMode:  "disable",
	}
	cfg.Database.LoadFromEnv("DB")

	cfg.Redis = commoncfg.RedisConfig{Addr: "localhost:6379"}
	cfg.Redis.LoadFromEnv("REDIS")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	cfg.Accounting.BaseURL = getEnv("ACCOUNTING_BASE_URL", "https://sandbox-quickbooks.api.intuit.com")
	cfg.Accounting.MinorVersion = getEnv("ACCOUNTING_MINOR_VERSION", "65")
	cfg.Accounting.AccessToken = getEnv("ACCOUNTING_ACCESS_TOKEN", "")
	cfg.Accounting.RealmID = getEnv("ACCOUNTING_REALM_ID", "")
	cfg.Accounting.Timeout = parseDuration(getEnv("ACCOUNTING_TIMEOUT", "0"), 0)

	cfg.Storage.S3 = commoncfg.S3Config{Region: "us-east-1", Prefix: "remediation/"}
	cfg.Storage.S3.LoadFromEnv("PHOTOS_S3")
	cfg.Storage.MemoryBaseURL = getEnv("PHOTOS_MEMORY_BASE_URL", "http://localhost:8080/photos")

	cfg.Catalog.CacheKey = getEnv("CATALOG_CACHE_KEY", "remediation:catalog:items")
	cfg.Catalog.CacheTTL = parseDuration(getEnv("CATALOG_CACHE_TTL", "15m"), 15*time.Minute)

	cfg.Events.Enabled = getEnv("EVENTS_ENABLED", "true") == "true"
	cfg.Events.Stream = getEnv("EVENTS_STREAM", "remediation:events")
	cfg.Events.MaxLen = int64(parseInt(getEnv("EVENTS_MAXLEN", "10000"), 10000))

	cfg.Photos.MaxUploadBytes = int64(parseInt(getEnv("PHOTOS_MAX_UPLOAD_BYTES", "52428800"), 50<<20))
	cfg.Photos.MaxBatchSize = parseInt(getEnv("PHOTOS_MAX_BATCH_SIZE", "20"), 20)
	cfg.Photos.UploadConcurrency = parseInt(getEnv("PHOTOS_UPLOAD_CONCURRENCY", "4"), 4)

	cfg.Sessions.IdleTTL = parseDuration(getEnv("SESSIONS_IDLE_TTL", "2h"), 2*time.Hour)
	cfg.Sessions.SweepInterval = parseDuration(getEnv("SESSIONS_SWEEP_INTERVAL", "5m"), 5*time.Minute)

	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "0" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
