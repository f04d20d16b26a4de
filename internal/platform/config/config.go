package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "config/config.yaml"

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
}

type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

// RemoteConfig: リモート文書ストア（mysql | mongo | sqlite）
type RemoteConfig struct {
	Type   string         `yaml:"type"`
	MySQL  DatabaseConfig `yaml:"mysql"`
	Mongo  MongoConfig    `yaml:"mongo"`
	SQLite string         `yaml:"sqlite_path"` // 単一ノード運用・検証用
}

type CacheConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"` // 空ならプロセス内レジャー
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type Certs struct {
	Cert string `yaml:"cert"`
	Key  string `yaml:"key"`
}

type ServerConfig struct {
	Addr        string   `yaml:"addr"`
	Certificate Certs    `yaml:"certificate"`
	CORSOrigins []string `yaml:"cors_origins"`
}

type LoggerConfig struct {
	Level      string `yaml:"level"`     // debug, info, warn, error
	Format     string `yaml:"format"`    // json, console
	Output     string `yaml:"output"`    // stdout, file
	FilePath   string `yaml:"file_path"` // output=file の時のみ
	MaxSize    int    `yaml:"max_size"`  // MB
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"` // days
	Compress   bool   `yaml:"compress"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type AttendanceConfig struct {
	WorkStart            string `yaml:"work_start"` // "HH:MM"
	LateThresholdMinutes int    `yaml:"late_threshold_minutes"`
	HistoryDays          int    `yaml:"history_days"`
	TimeZone             string `yaml:"timezone"`
	OfflineQueue         bool   `yaml:"offline_queue"`
}

type ProductionConfig struct {
	OfflineQueue bool `yaml:"offline_queue"`
}

type ScanConfig struct {
	LockTTL          time.Duration `yaml:"lock_ttl"`
	AllowedLocations []string      `yaml:"allowed_locations"`
	DefaultLocation  string        `yaml:"default_location"`
}

type MetricsConfig struct {
	Enabled   bool      `yaml:"enabled"`
	Namespace string    `yaml:"namespace"`
	Buckets   []float64 `yaml:"buckets"`
}

type TracingConfig struct {
	Enabled     bool              `yaml:"enabled"`
	ServiceName string            `yaml:"service_name"`
	Endpoint    string            `yaml:"endpoint"`
	Protocol    string            `yaml:"protocol"` // grpc or http
	Insecure    bool              `yaml:"insecure"`
	SamplerRate float64           `yaml:"sampler_rate"`
	Environment string            `yaml:"environment"`
	Headers     map[string]string `yaml:"headers"`
}

type Config struct {
	Version    string           `yaml:"version"`
	Mode       string           `yaml:"mode"` // dev | release
	Server     ServerConfig     `yaml:"server"`
	Logger     LoggerConfig     `yaml:"logger"`
	Cache      CacheConfig      `yaml:"cache"`
	Remote     RemoteConfig     `yaml:"remote"`
	Redis      RedisConfig      `yaml:"redis"`
	Auth       AuthConfig       `yaml:"auth"`
	Attendance AttendanceConfig `yaml:"attendance"`
	Production ProductionConfig `yaml:"production"`
	Scan       ScanConfig       `yaml:"scan"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Tracing    TracingConfig    `yaml:"tracing"`
}

func Load(path string) (*Config, error) {
	// .env があれば読む（無くてもよい）
	_ = godotenv.Load()

	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(buf)
}

func Parse(buf []byte) (*Config, error) {
	buf = resolveEnv(buf)

	var cfg Config
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Mode == "" {
		c.Mode = "dev"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8443"
	}
	if c.Cache.Path == "" {
		c.Cache.Path = "data/cache.db"
	}
	if c.Remote.Type == "" {
		c.Remote.Type = "mysql"
	}
	if c.Remote.MySQL.Port == 0 {
		c.Remote.MySQL.Port = 3306
	}
	if c.Remote.Mongo.Database == "" {
		c.Remote.Mongo.Database = "costura"
	}
	if c.Auth.TokenTTL <= 0 {
		c.Auth.TokenTTL = 24 * time.Hour
	}
	if c.Attendance.WorkStart == "" {
		c.Attendance.WorkStart = "08:00"
	}
	if c.Attendance.LateThresholdMinutes == 0 {
		c.Attendance.LateThresholdMinutes = 15
	}
	if c.Attendance.HistoryDays == 0 {
		c.Attendance.HistoryDays = 30
	}
	if c.Attendance.TimeZone == "" {
		c.Attendance.TimeZone = "Local"
	}
	if c.Scan.LockTTL <= 0 {
		c.Scan.LockTTL = 2 * time.Second
	}
	if c.Scan.DefaultLocation == "" {
		c.Scan.DefaultLocation = "costura_pro"
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "costura"
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "costura-backend"
	}
}

func (c *Config) Validate() error {
	if c.Mode != "dev" && c.Mode != "release" {
		return fmt.Errorf("mode must be dev or release, got %q", c.Mode)
	}
	switch c.Remote.Type {
	case "mysql", "mongo", "sqlite":
	default:
		return fmt.Errorf("remote.type must be mysql, mongo or sqlite, got %q", c.Remote.Type)
	}
	if _, err := time.Parse("15:04", c.Attendance.WorkStart); err != nil {
		return fmt.Errorf("attendance.work_start must be HH:MM: %w", err)
	}
	if c.Attendance.LateThresholdMinutes < 0 {
		return fmt.Errorf("attendance.late_threshold_minutes must be >= 0")
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("attendance.timezone: %w", err)
	}
	if c.Mode == "release" && c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required in release mode")
	}
	return nil
}

// Location: 勤怠の日付境界に使うタイムゾーン
func (c *Config) Location() (*time.Location, error) {
	if c.Attendance.TimeZone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Attendance.TimeZone)
}

var envPattern = regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

// resolveEnv: ${KEY} / ${KEY:default} を環境変数で置換
func resolveEnv(content []byte) []byte {
	return envPattern.ReplaceAllFunc(content, func(match []byte) []byte {
		m := envPattern.FindSubmatch(match)
		key := string(m[1])
		var def string
		if len(m) > 2 {
			def = string(m[2])
		}
		if v, ok := os.LookupEnv(key); ok {
			return []byte(v)
		}
		return []byte(def)
	})
}
