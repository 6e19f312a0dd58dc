package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	CORS      CORSConfig
	Log       LogConfig
	Scheduler SchedulerConfig
	Exports   ExportsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	AutoMigrate  bool
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// SlotConfig is one weekly grid entry as written in configuration.
type SlotConfig struct {
	Weekday int    `mapstructure:"weekday"`
	Start   string `mapstructure:"start"`
	End     string `mapstructure:"end"`
}

// SchedulerConfig tunes the timetable generator and its proposal store.
type SchedulerConfig struct {
	Enabled                   bool
	ProposalTTL               time.Duration
	SnapshotCacheTTL          time.Duration
	GridFile                  string
	Grid                      []SlotConfig
	SessionHours              float64
	SubjectPriority           string
	PreferSameDepartment      bool
	AllowDepartmentRelaxation bool
	MaxRangeDays              int
}

// ExportsConfig configures asynchronous timetable exports.
type ExportsConfig struct {
	Enabled           bool
	StorageDir        string
	SignedURLSecret   string
	SignedURLTTL      time.Duration
	CleanupInterval   time.Duration
	WorkerConcurrency int
	WorkerRetries     int
	Timezone          string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
		AutoMigrate:  v.GetBool("DB_AUTO_MIGRATE"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Scheduler = SchedulerConfig{
		Enabled:                   v.GetBool("ENABLE_SCHEDULER"),
		ProposalTTL:               parseDuration(v.GetString("SCHEDULER_PROPOSAL_TTL"), 30*time.Minute),
		SnapshotCacheTTL:          parseDuration(v.GetString("SCHEDULER_SNAPSHOT_CACHE_TTL"), 5*time.Minute),
		GridFile:                  v.GetString("SCHEDULER_GRID_FILE"),
		SessionHours:              v.GetFloat64("SCHEDULER_SESSION_HOURS"),
		SubjectPriority:           v.GetString("SCHEDULER_SUBJECT_PRIORITY"),
		PreferSameDepartment:      v.GetBool("SCHEDULER_PREFER_SAME_DEPARTMENT"),
		AllowDepartmentRelaxation: v.GetBool("SCHEDULER_ALLOW_DEPARTMENT_RELAXATION"),
		MaxRangeDays:              v.GetInt("SCHEDULER_MAX_RANGE_DAYS"),
	}

	grid, err := loadGrid(cfg.Scheduler.GridFile, v.GetString("SCHEDULER_SLOT_GRID"))
	if err != nil {
		return nil, err
	}
	cfg.Scheduler.Grid = grid

	cfg.Exports = ExportsConfig{
		Enabled:           v.GetBool("ENABLE_EXPORTS"),
		StorageDir:        v.GetString("EXPORTS_STORAGE_DIR"),
		SignedURLSecret:   v.GetString("EXPORTS_SIGNED_URL_SECRET"),
		SignedURLTTL:      parseDuration(v.GetString("EXPORTS_SIGNED_URL_TTL"), 24*time.Hour),
		CleanupInterval:   parseDuration(v.GetString("EXPORTS_CLEANUP_INTERVAL"), time.Hour),
		WorkerConcurrency: v.GetInt("EXPORTS_WORKER_CONCURRENCY"),
		WorkerRetries:     v.GetInt("EXPORTS_WORKER_RETRIES"),
		Timezone:          v.GetString("EXPORTS_TIMEZONE"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "uni_timetable")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_AUTO_MIGRATE", true)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENABLE_SCHEDULER", true)
	v.SetDefault("SCHEDULER_PROPOSAL_TTL", "30m")
	v.SetDefault("SCHEDULER_SNAPSHOT_CACHE_TTL", "5m")
	v.SetDefault("SCHEDULER_GRID_FILE", "")
	v.SetDefault("SCHEDULER_SLOT_GRID", "")
	v.SetDefault("SCHEDULER_SESSION_HOURS", 0)
	v.SetDefault("SCHEDULER_SUBJECT_PRIORITY", "remaining")
	v.SetDefault("SCHEDULER_PREFER_SAME_DEPARTMENT", true)
	v.SetDefault("SCHEDULER_ALLOW_DEPARTMENT_RELAXATION", true)
	v.SetDefault("SCHEDULER_MAX_RANGE_DAYS", 366)

	v.SetDefault("ENABLE_EXPORTS", true)
	v.SetDefault("EXPORTS_STORAGE_DIR", "./exports")
	v.SetDefault("EXPORTS_SIGNED_URL_SECRET", "dev_exports_secret")
	v.SetDefault("EXPORTS_SIGNED_URL_TTL", "24h")
	v.SetDefault("EXPORTS_CLEANUP_INTERVAL", "1h")
	v.SetDefault("EXPORTS_WORKER_CONCURRENCY", 1)
	v.SetDefault("EXPORTS_WORKER_RETRIES", 3)
	v.SetDefault("EXPORTS_TIMEZONE", "UTC")
}

// loadGrid resolves the weekly slot grid. A grid file wins over the compact
// env form; an empty result means the generator default applies.
func loadGrid(file, compact string) ([]SlotConfig, error) {
	if file != "" {
		return loadGridFile(file)
	}
	return ParseSlotGrid(compact)
}

// loadGridFile reads a YAML or JSON document with a top level "grid" list.
func loadGridFile(path string) ([]SlotConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read grid file %s: %w", path, err)
	}
	return decodeGrid(v.Get("grid"))
}

func decodeGrid(raw interface{}) ([]SlotConfig, error) {
	if raw == nil {
		return nil, fmt.Errorf("grid file has no grid entries")
	}
	var grid []SlotConfig
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &grid,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("build grid decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("decode grid: %w", err)
	}
	return grid, nil
}

// ParseSlotGrid parses the compact "weekday@HH:MM-HH:MM" comma separated form.
func ParseSlotGrid(raw string) ([]SlotConfig, error) {
	entries := splitAndTrim(raw)
	if len(entries) == 0 {
		return nil, nil
	}
	grid := make([]SlotConfig, 0, len(entries))
	for _, entry := range entries {
		dayPart, span, ok := strings.Cut(entry, "@")
		if !ok {
			return nil, fmt.Errorf("slot %q: expected weekday@start-end", entry)
		}
		weekday, err := strconv.Atoi(strings.TrimSpace(dayPart))
		if err != nil || weekday < 0 || weekday > 6 {
			return nil, fmt.Errorf("slot %q: weekday must be 0..6", entry)
		}
		start, end, ok := strings.Cut(span, "-")
		if !ok {
			return nil, fmt.Errorf("slot %q: expected start-end", entry)
		}
		grid = append(grid, SlotConfig{
			Weekday: weekday,
			Start:   strings.TrimSpace(start),
			End:     strings.TrimSpace(end),
		})
	}
	return grid, nil
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
