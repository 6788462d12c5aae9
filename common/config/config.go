package config

import (
	"fmt"
	"os"
	"time"
)

// DatabaseConfig 数据库配置（jobs / catalog_items 所在的 PostgreSQL）
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// RedisConfig Redis配置（catalog 缓存 + 领域事件 streams）
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// S3Config 照片对象存储配置
type S3Config struct {
	Bucket        string
	Region        string
	Endpoint      string // 可选：MinIO / LocalStack
	Prefix        string
	PresignExpiry time.Duration
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// LoadFromEnv 从环境变量加载配置
func (c *DatabaseConfig) LoadFromEnv(prefix string) {
	if host := os.Getenv(prefix + "_HOST"); host != "" {
		c.Host = host
	}
	if port := os.Getenv(prefix + "_PORT"); port != "" {
		fmt.Sscanf(port, "%d", &c.Port)
	}
	if user := os.Getenv(prefix + "_USER"); user != "" {
		c.User = user
	}
	if password := os.Getenv(prefix + "_PASSWORD"); password != "" {
		c.Password = password
	}
	if database := os.Getenv(prefix + "_NAME"); database != "" {
		c.Database = database
	}
	if sslMode := os.Getenv(prefix + "_SSLMODE"); sslMode != "" {
		c.SSLMode = sslMode
	}
	if maxConns := os.Getenv(prefix + "_MAX_CONNS"); maxConns != "" {
		fmt.Sscanf(maxConns, "%d", &c.MaxConns)
	}
	if maxIdle := os.Getenv(prefix + "_MAX_IDLE"); maxIdle != "" {
		fmt.Sscanf(maxIdle, "%d", &c.MaxIdle)
	}
}

// LoadFromEnv 从环境变量加载Redis配置
func (c *RedisConfig) LoadFromEnv(prefix string) {
	if addr := os.Getenv(prefix + "_ADDR"); addr != "" {
		c.Addr = addr
	}
	if password := os.Getenv(prefix + "_PASSWORD"); password != "" {
		c.Password = password
	}
	if db := os.Getenv(prefix + "_DB"); db != "" {
		fmt.Sscanf(db, "%d", &c.DB)
	}
}

// LoadFromEnv 从环境变量加载S3配置
func (c *S3Config) LoadFromEnv(prefix string) {
	if bucket := os.Getenv(prefix + "_BUCKET"); bucket != "" {
		c.Bucket = bucket
	}
	if region := os.Getenv(prefix + "_REGION"); region != "" {
		c.Region = region
	}
	if endpoint := os.Getenv(prefix + "_ENDPOINT"); endpoint != "" {
		c.Endpoint = endpoint
	}
	if p := os.Getenv(prefix + "_PREFIX"); p != "" {
		c.Prefix = p
	}
	if expiry := os.Getenv(prefix + "_PRESIGN_EXPIRY"); expiry != "" {
		if d, err := time.ParseDuration(expiry); err == nil {
			c.PresignExpiry = d
		}
	}
}
