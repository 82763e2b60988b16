package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultPath は CONFIG_PATH 未指定時に読み込む設定ファイルです。
	DefaultPath = "assets/local.yaml"

	BlobDriverLocal = "local"
	BlobDriverS3    = "s3"
)

// Config はアプリケーション全体の設定を表現します。
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
	Blob     BlobConfig     `yaml:"blob"`
	Backup   BackupConfig   `yaml:"backup"`
	Sweeper  SweeperConfig  `yaml:"sweeper"`
}

// ServerConfig は HTTP サーバーに関する設定です。
type ServerConfig struct {
	ListenAddr         string        `yaml:"listen_addr"`
	BodyLimit          string        `yaml:"body_limit"`
	ShutdownTimeout    time.Duration `yaml:"-"`
	ShutdownTimeoutRaw string        `yaml:"shutdown_timeout"`
}

// DatabaseConfig は PostgreSQL 接続に関する設定です。
type DatabaseConfig struct {
	Host               string        `yaml:"host"`
	Port               int           `yaml:"port"`
	User               string        `yaml:"user"`
	Password           string        `yaml:"password"`
	Name               string        `yaml:"name"`
	SSLMode            string        `yaml:"ssl_mode"`
	MaxOpenConns       int           `yaml:"max_open_conns"`
	MaxIdleConns       int           `yaml:"max_idle_conns"`
	ConnMaxLifetime    time.Duration `yaml:"-"`
	ConnMaxIdleTime    time.Duration `yaml:"-"`
	ConnMaxLifetimeRaw string        `yaml:"conn_max_lifetime"`
	ConnMaxIdleTimeRaw string        `yaml:"conn_max_idle_time"`
}

// LogConfig はロガーの設定です。
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// BlobConfig はバイナリ保存先の設定です。
type BlobConfig struct {
	Driver string          `yaml:"driver"`
	Local  LocalBlobConfig `yaml:"local"`
	S3     S3BlobConfig    `yaml:"s3"`
}

// LocalBlobConfig はローカルファイルシステム保存先です。
type LocalBlobConfig struct {
	Root string `yaml:"root"`
}

// S3BlobConfig は S3 互換ストレージの設定です。
type S3BlobConfig struct {
	Bucket       string `yaml:"bucket"`
	Region       string `yaml:"region"`
	Prefix       string `yaml:"prefix"`
	Endpoint     string `yaml:"endpoint"`
	UsePathStyle bool   `yaml:"use_path_style"`
}

// BackupConfig はバックアップ処理の設定です。
type BackupConfig struct {
	BatchSize           int           `yaml:"batch_size"`
	ScheduleInterval    time.Duration `yaml:"-"`
	ScheduleIntervalRaw string        `yaml:"schedule_interval"`
}

// SweeperConfig は削除待ちバイナリを掃除するワーカーの設定です。
type SweeperConfig struct {
	BatchSize     int           `yaml:"batch_size"`
	MaxAttempts   int           `yaml:"max_attempts"`
	Interval      time.Duration `yaml:"-"`
	MaxBackoff    time.Duration `yaml:"-"`
	IntervalRaw   string        `yaml:"interval"`
	MaxBackoffRaw string        `yaml:"max_backoff"`
}

// ResolvePath は flag、環境変数、既定値の順で設定ファイルのパスを決定します。
// カレントディレクトリに .env があれば先に読み込みます。
func ResolvePath(flagValue string) string {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "config: load .env: %v\n", err)
	}
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv("CONFIG_PATH"); env != "" {
		return env
	}
	return DefaultPath
}

// Load は指定されたパスから設定ファイルを読み込みます。
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.validateAndNormalize(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyEnvOverrides はコンテナ運用向けに一部の値を環境変数で上書きします。
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("DB_HOST"); v != "" {
		c.Database.Host = v
	}
	if v := os.Getenv("DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Database.Port = port
		}
	}
	if v := os.Getenv("DB_USER"); v != "" {
		c.Database.User = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		c.Database.Password = v
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		c.Database.Name = v
	}
}

func (c *Config) validateAndNormalize() error {
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("config: server.listen_addr must be set")
	}
	if c.Server.BodyLimit == "" {
		c.Server.BodyLimit = "10M"
	}
	shutdown, err := parseDurationAllowEmpty(c.Server.ShutdownTimeoutRaw)
	if err != nil {
		return fmt.Errorf("config: server.shutdown_timeout: %w", err)
	}
	if shutdown == 0 {
		shutdown = 10 * time.Second
	}
	c.Server.ShutdownTimeout = shutdown

	if err := c.Database.validateAndNormalize(); err != nil {
		return err
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	if err := c.Blob.validateAndNormalize(); err != nil {
		return err
	}

	if err := c.Backup.validateAndNormalize(); err != nil {
		return err
	}

	return c.Sweeper.validateAndNormalize()
}

func (d *DatabaseConfig) validateAndNormalize() error {
	if d.Host == "" {
		return fmt.Errorf("config: database.host must be set")
	}
	if d.Port == 0 {
		return fmt.Errorf("config: database.port must be set")
	}
	if d.User == "" {
		return fmt.Errorf("config: database.user must be set")
	}
	if d.Password == "" {
		return fmt.Errorf("config: database.password must be set")
	}
	if d.Name == "" {
		return fmt.Errorf("config: database.name must be set")
	}
	if d.SSLMode == "" {
		d.SSLMode = "disable"
	}

	lifetime, err := parseDurationAllowEmpty(d.ConnMaxLifetimeRaw)
	if err != nil {
		return fmt.Errorf("config: database.conn_max_lifetime: %w", err)
	}
	d.ConnMaxLifetime = lifetime

	idleTime, err := parseDurationAllowEmpty(d.ConnMaxIdleTimeRaw)
	if err != nil {
		return fmt.Errorf("config: database.conn_max_idle_time: %w", err)
	}
	d.ConnMaxIdleTime = idleTime

	return nil
}

func (b *BlobConfig) validateAndNormalize() error {
	if b.Driver == "" {
		b.Driver = BlobDriverLocal
	}
	switch b.Driver {
	case BlobDriverLocal:
		if b.Local.Root == "" {
			b.Local.Root = "data/blobs"
		}
	case BlobDriverS3:
		if b.S3.Bucket == "" {
			return fmt.Errorf("config: blob.s3.bucket must be set")
		}
		if b.S3.Region == "" {
			return fmt.Errorf("config: blob.s3.region must be set")
		}
	default:
		return fmt.Errorf("config: blob.driver %q is not supported", b.Driver)
	}
	return nil
}

func (b *BackupConfig) validateAndNormalize() error {
	if b.BatchSize <= 0 {
		b.BatchSize = 500
	}
	interval, err := parseDurationAllowEmpty(b.ScheduleIntervalRaw)
	if err != nil {
		return fmt.Errorf("config: backup.schedule_interval: %w", err)
	}
	b.ScheduleInterval = interval
	return nil
}

func (s *SweeperConfig) validateAndNormalize() error {
	if s.BatchSize <= 0 {
		s.BatchSize = 50
	}
	if s.MaxAttempts <= 0 {
		s.MaxAttempts = 10
	}

	interval, err := parseDurationAllowEmpty(s.IntervalRaw)
	if err != nil {
		return fmt.Errorf("config: sweeper.interval: %w", err)
	}
	if interval == 0 {
		interval = 30 * time.Second
	}
	s.Interval = interval

	maxBackoff, err := parseDurationAllowEmpty(s.MaxBackoffRaw)
	if err != nil {
		return fmt.Errorf("config: sweeper.max_backoff: %w", err)
	}
	if maxBackoff == 0 {
		maxBackoff = time.Hour
	}
	s.MaxBackoff = maxBackoff
	return nil
}

func parseDurationAllowEmpty(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	return d, nil
}

// DSN は pgx 用の接続文字列を返します。
func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     "/" + d.Name,
		RawQuery: "sslmode=" + url.QueryEscape(d.SSLMode),
	}
	return u.String()
}
