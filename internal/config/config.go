package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	SSH      SSHConfig      `mapstructure:"ssh"`
	Detect   DetectConfig   `mapstructure:"detect"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	Parser   ParserConfig   `mapstructure:"parser"`
	Log      LogConfig      `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Batch    BatchConfig    `mapstructure:"batch"`
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// SSHConfig 远程会话配置
type SSHConfig struct {
	Port              int           `mapstructure:"port"`
	ConnectTimeout    time.Duration `mapstructure:"connect_timeout"`
	CommandTimeout    time.Duration `mapstructure:"command_timeout"`
	KeepAliveInterval time.Duration `mapstructure:"keep_alive_interval"`
	// Banners SSH 服务端版本串特征 -> 平台，用于握手后判定平台
	Banners map[string]string `mapstructure:"banners"`
}

// DetectConfig 平台识别配置
type DetectConfig struct {
	// Strategy autodetect（会话层探测）| introspect（握手后读取）
	Strategy string `mapstructure:"strategy"`
}

// CatalogConfig 命令目录配置
type CatalogConfig struct {
	Path  string `mapstructure:"path"`
	Watch bool   `mapstructure:"watch"`
}

// ParserConfig 解析配置
type ParserConfig struct {
	// RawWhenMissing 无解析器时降级为原文输出，而非整体失败
	RawWhenMissing bool `mapstructure:"raw_when_missing"`
	// EchoLines debug 日志中记录的回显首尾行数
	EchoLines int `mapstructure:"echo_lines"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// DatabaseConfig 执行记录库配置
type DatabaseConfig struct {
	Enabled bool         `mapstructure:"enabled"`
	SQLite  SQLiteConfig `mapstructure:"sqlite"`
}

// SQLiteConfig SQLite配置
type SQLiteConfig struct {
	Path            string        `mapstructure:"path"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// StorageConfig 原始回显归档配置
type StorageConfig struct {
	// Backend none | local | minio
	Backend string             `mapstructure:"backend"`
	Prefix  string             `mapstructure:"prefix"`
	Local   LocalStorageConfig `mapstructure:"local"`
	Minio   MinioConfig        `mapstructure:"minio"`
}

// LocalStorageConfig 本地目录归档
type LocalStorageConfig struct {
	BaseDir string `mapstructure:"base_dir"`
}

// MinioConfig 对象存储配置
type MinioConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Secure    bool   `mapstructure:"secure"`
}

// BatchConfig 多设备并发配置
type BatchConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}

// Load 加载配置文件；configPath 为空且默认位置不存在配置文件时使用默认值
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath("./configs")
		v.AddConfigPath("../configs")
		v.AddConfigPath("../../configs")
	}

	v.SetEnvPrefix("DEVEXTRACT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Storage.Minio.AccessKey = expandEnv(cfg.Storage.Minio.AccessKey)
	cfg.Storage.Minio.SecretKey = expandEnv(cfg.Storage.Minio.SecretKey)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default 仅含默认值的配置
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// Validate 校验取值范围
func (c *Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Detect.Strategy)) {
	case "autodetect", "introspect":
	default:
		return fmt.Errorf("detect.strategy: unsupported value %q", c.Detect.Strategy)
	}
	switch strings.ToLower(strings.TrimSpace(c.Storage.Backend)) {
	case "", "none", "local", "minio":
	default:
		return fmt.Errorf("storage.backend: unsupported value %q", c.Storage.Backend)
	}
	if c.SSH.Port < 1 || c.SSH.Port > 65535 {
		return fmt.Errorf("ssh.port: %d out of range", c.SSH.Port)
	}
	if c.Batch.Concurrency < 1 {
		c.Batch.Concurrency = 1
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 18080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 60*time.Second)
	v.SetDefault("server.write_timeout", 300*time.Second)

	v.SetDefault("ssh.port", 22)
	v.SetDefault("ssh.connect_timeout", 10*time.Second)
	v.SetDefault("ssh.command_timeout", 60*time.Second)
	v.SetDefault("ssh.keep_alive_interval", 30*time.Second)
	// 服务端版本串特征：大小写不敏感的子串匹配
	v.SetDefault("ssh.banners", map[string]string{
		"cisco":     "cisco_ios",
		"huawei":    "huawei",
		"arista":    "arista_eos",
		"netscreen": "juniper_screenos",
	})

	v.SetDefault("detect.strategy", "autodetect")

	v.SetDefault("catalog.path", "configs/commands.yaml")
	v.SetDefault("catalog.watch", true)

	v.SetDefault("parser.raw_when_missing", false)
	v.SetDefault("parser.echo_lines", 5)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.output", "console")
	v.SetDefault("log.file_path", "logs/devextract.log")
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age", 30)

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.sqlite.path", "data/devextract.db")
	v.SetDefault("database.sqlite.conn_max_lifetime", time.Hour)

	v.SetDefault("storage.backend", "none")
	v.SetDefault("storage.prefix", "raw")
	v.SetDefault("storage.local.base_dir", "./data/raw")
	v.SetDefault("storage.minio.port", 9000)
	v.SetDefault("storage.minio.bucket", "devextract-raw")

	v.SetDefault("batch.concurrency", 8)
}

// expandEnv 支持 ${VAR} 形式引用环境变量
func expandEnv(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		return os.Getenv(strings.TrimSuffix(strings.TrimPrefix(s, "${"), "}"))
	}
	return s
}
