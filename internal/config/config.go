package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/pflag"
)

// Store backends
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

// Config application configuration
type Config struct {
	ListenAddr string

	StoreBackend  string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SQLitePath    string

	TrafficInterval   time.Duration
	AnalyticsInterval time.Duration
	AlertInterval     time.Duration
	LogCapacity       int
	HistoryPoints     int

	// AlertRescheduleOnMiss pushes the next alert threshold forward even when
	// no device was eligible on a due check.
	AlertRescheduleOnMiss bool

	CostPerKWh       float64
	AnomalyThreshold float64
	Seed             int64

	LogLevel  string
	LogFormat string
}

// Load reads the configuration from environment variables.
func Load() *Config {
	return &Config{
		ListenAddr:            getEnv("SIM_LISTEN_ADDR", ":8080"),
		StoreBackend:          getEnv("SIM_STORE", BackendMemory),
		RedisAddr:             getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:         getEnv("REDIS_PASSWORD", ""),
		RedisDB:               getEnvAsInt("REDIS_DB", 0),
		SQLitePath:            getEnv("SIM_SQLITE_PATH", "devices.db"),
		TrafficInterval:       getEnvAsDuration("SIM_TRAFFIC_INTERVAL", 2*time.Second),
		AnalyticsInterval:     getEnvAsDuration("SIM_ANALYTICS_INTERVAL", 3*time.Second),
		AlertInterval:         getEnvAsDuration("SIM_ALERT_INTERVAL", 2*time.Second),
		LogCapacity:           getEnvAsInt("SIM_LOG_CAPACITY", 200),
		HistoryPoints:         getEnvAsInt("SIM_HISTORY_POINTS", 20),
		AlertRescheduleOnMiss: getEnvAsBool("SIM_ALERT_RESCHEDULE_ON_MISS", false),
		CostPerKWh:            getEnvAsFloat("SIM_COST_PER_KWH", 0.12),
		AnomalyThreshold:      getEnvAsFloat("ANOMALY_THRESHOLD", 2.0),
		Seed:                  int64(getEnvAsInt("SIM_SEED", 0)),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		LogFormat:             getEnv("LOG_FORMAT", "console"),
	}
}

// BindFlags registers flags for every setting; flags override the values
// already loaded from the environment.
func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.ListenAddr, "addr", c.ListenAddr, "HTTP listen address")
	fs.StringVar(&c.StoreBackend, "store", c.StoreBackend, "Device store backend (memory, redis, sqlite)")
	fs.StringVar(&c.RedisAddr, "redis-addr", c.RedisAddr, "Redis address")
	fs.StringVar(&c.RedisPassword, "redis-password", c.RedisPassword, "Redis password")
	fs.IntVar(&c.RedisDB, "redis-db", c.RedisDB, "Redis database number")
	fs.StringVar(&c.SQLitePath, "sqlite-path", c.SQLitePath, "SQLite database file")
	fs.DurationVar(&c.TrafficInterval, "traffic-interval", c.TrafficInterval, "Traffic generation cadence")
	fs.DurationVar(&c.AnalyticsInterval, "analytics-interval", c.AnalyticsInterval, "Analytics refresh cadence")
	fs.DurationVar(&c.AlertInterval, "alert-interval", c.AlertInterval, "Alert scheduler check cadence")
	fs.IntVar(&c.LogCapacity, "log-capacity", c.LogCapacity, "Traffic log capacity")
	fs.IntVar(&c.HistoryPoints, "history-points", c.HistoryPoints, "Speed history points kept by analytics")
	fs.BoolVar(&c.AlertRescheduleOnMiss, "alert-reschedule-on-miss", c.AlertRescheduleOnMiss, "Reschedule alerts when no device is eligible")
	fs.Float64Var(&c.CostPerKWh, "cost-per-kwh", c.CostPerKWh, "Electricity price used for cost estimates")
	fs.Float64Var(&c.AnomalyThreshold, "anomaly-threshold", c.AnomalyThreshold, "Z-score threshold for speed anomalies")
	fs.Int64Var(&c.Seed, "seed", c.Seed, "Random seed (0 uses the clock)")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level (debug, info, warn, error)")
	fs.StringVar(&c.LogFormat, "log-format", c.LogFormat, "Log format (console, json)")
}

// Validate checks the configuration for unusable values.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendMemory, BackendRedis, BackendSQLite:
	default:
		return fmt.Errorf("unknown store backend %q", c.StoreBackend)
	}
	if c.TrafficInterval <= 0 || c.AnalyticsInterval <= 0 || c.AlertInterval <= 0 {
		return fmt.Errorf("intervals must be positive")
	}
	if c.LogCapacity <= 0 {
		return fmt.Errorf("log capacity must be positive, got %d", c.LogCapacity)
	}
	if c.HistoryPoints <= 0 {
		return fmt.Errorf("history points must be positive, got %d", c.HistoryPoints)
	}
	return nil
}

// getEnv returns the environment variable or the default when unset
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
