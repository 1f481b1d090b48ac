package config

import (
	"os"
	"strings"
	"sync"
	"time"
)

const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

type Config struct {
	LogLevel  string
	LogFormat string
	LocalHost string
	LocalPort int
	TaskStore string
	DBDSN     string
	QueueSize int
	ConfigDir string
}

var (
	cacheTTL         = 10 * time.Second
	nowFunc          = time.Now
	cacheMu          sync.RWMutex
	cachedCfg        Config
	cachedAt         time.Time
	cacheValid       bool
	defaultLocalPort = "8000"
)

func LoadConfig() Config {
	cfg := loadFromEnv()
	cacheMu.Lock()
	cachedCfg = cfg
	cachedAt = nowFunc()
	cacheValid = true
	cacheMu.Unlock()
	return cfg
}

func GetConfig() *Config {
	now := nowFunc()
	cacheMu.RLock()
	valid := cacheValid && now.Sub(cachedAt) < cacheTTL
	if valid {
		out := cachedCfg
		cacheMu.RUnlock()
		return &out
	}
	cacheMu.RUnlock()

	cfg := loadFromEnv()
	cacheMu.Lock()
	cachedCfg = cfg
	cachedAt = now
	cacheValid = true
	cacheMu.Unlock()

	out := cfg
	return &out
}

func loadFromEnv() Config {
	level := os.Getenv("MASHIRO_LOG_LEVEL")
	if level == "" {
		level = "info"
	}
	format := strings.ToLower(strings.TrimSpace(os.Getenv("MASHIRO_LOG_FORMAT")))
	if format != "text" {
		format = "json"
	}
	localHost := os.Getenv("MASHIRO_LOCAL_HOST")
	if localHost == "" {
		localHost = "127.0.0.1"
	}
	fallbackPort := atoiOrDefault(defaultLocalPort, 8000)
	localPort := fallbackPort
	if p := os.Getenv("MASHIRO_LOCAL_PORT"); p != "" {
		if n := atoiOrDefault(p, fallbackPort); n > 0 && n < 65536 {
			localPort = n
		}
	}
	store := NormalizeStore(os.Getenv("MASHIRO_TASK_STORE"))
	queueSize := atoiOrDefault(os.Getenv("MASHIRO_QUEUE_SIZE"), 64)

	return Config{
		LogLevel:  level,
		LogFormat: format,
		LocalHost: localHost,
		LocalPort: localPort,
		TaskStore: store,
		DBDSN:     strings.TrimSpace(os.Getenv("MASHIRO_DB_DSN")),
		QueueSize: queueSize,
		ConfigDir: strings.TrimSpace(os.Getenv("MASHIRO_CONFIG_DIR")),
	}
}

// NormalizeStore maps unknown backends to memory.
func NormalizeStore(v string) string {
	if strings.EqualFold(strings.TrimSpace(v), StoreSQLite) {
		return StoreSQLite
	}
	return StoreMemory
}

func atoiOrDefault(v string, fallback int) int {
	n := 0
	for i := 0; i < len(v); i++ {
		if v[i] < '0' || v[i] > '9' {
			return fallback
		}
		n = n*10 + int(v[i]-'0')
	}
	if n == 0 {
		return fallback
	}
	return n
}
