package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port         string        `yaml:"port"`
	APIURL       string        `yaml:"api_url"`
	APITimeout   time.Duration `yaml:"api_timeout"`
	DBDSN        string        `yaml:"db_dsn"`
	TemplatesDir string        `yaml:"templates_dir"`
	StaticDir    string        `yaml:"static_dir"`
	BannerTTL    time.Duration `yaml:"banner_ttl"`

	// SessionMaxIdle is how long an untouched view session is kept.
	SessionMaxIdle time.Duration `yaml:"session_max_idle"`

	LogFile   string `yaml:"log_file"`
	LogFormat string `yaml:"log_format"`
	LogLevel  string `yaml:"log_level"`

	FluentEnabled bool   `yaml:"fluentbit_enabled"`
	FluentHost    string `yaml:"fluentbit_host"`
	FluentPort    int    `yaml:"fluentbit_port"`
}

func Defaults() Config {
	return Config{
		Port:         "8081",
		APIURL:       "http://localhost:8080/properties",
		APITimeout:   10 * time.Second,
		DBDSN:        "estatelist.db",
		TemplatesDir: "./web/templates",
		StaticDir:    "./web/static",
		BannerTTL:    3 * time.Second,
		LogFormat:    "json",
		LogLevel:     "info",
		FluentPort:   24224,

		SessionMaxIdle: 24 * time.Hour,
	}
}

// Load layers defaults, the optional YAML file named by CONFIG_FILE, an optional
// .env file and finally the process environment.
func Load() (Config, error) {
	cfg := Defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadYAML(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("[config] could not load .env: %v", err)
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	log.Printf("[config] PORT=%s API_URL=%s API_TIMEOUT=%s DB_DSN=%s LOG_FILE=%s LOG_FORMAT=%s",
		cfg.Port, cfg.APIURL, cfg.APITimeout, redactDSN(cfg.DBDSN), cfg.LogFile, cfg.LogFormat)
	return cfg, nil
}

func loadYAML(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	str("PORT", &cfg.Port)
	str("API_URL", &cfg.APIURL)
	str("DB_DSN", &cfg.DBDSN)
	str("TEMPLATES_DIR", &cfg.TemplatesDir)
	str("STATIC_DIR", &cfg.StaticDir)
	str("LOG_FILE", &cfg.LogFile)
	str("LOG_FORMAT", &cfg.LogFormat)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("FLUENTBIT_HOST", &cfg.FluentHost)

	var err error
	if cfg.APITimeout, err = envDuration("API_TIMEOUT", cfg.APITimeout); err != nil {
		return err
	}
	if cfg.BannerTTL, err = envDuration("BANNER_TTL", cfg.BannerTTL); err != nil {
		return err
	}
	if cfg.SessionMaxIdle, err = envDuration("SESSION_MAX_IDLE", cfg.SessionMaxIdle); err != nil {
		return err
	}
	if v, ok := os.LookupEnv("FLUENTBIT_PORT"); ok && v != "" {
		n, perr := strconv.Atoi(v)
		if perr != nil {
			return fmt.Errorf("FLUENTBIT_PORT: %w", perr)
		}
		cfg.FluentPort = n
	}
	if v, ok := os.LookupEnv("FLUENTBIT_ENABLED"); ok && v != "" {
		b, perr := strconv.ParseBool(v)
		if perr != nil {
			return fmt.Errorf("FLUENTBIT_ENABLED: %w", perr)
		}
		cfg.FluentEnabled = b
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	return nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

// redactDSN hides credentials in postgres URLs.
func redactDSN(dsn string) string {
	at := strings.LastIndex(dsn, "@")
	scheme := strings.Index(dsn, "://")
	if at < 0 || scheme < 0 || at < scheme {
		return dsn
	}
	return dsn[:scheme+3] + "***" + dsn[at:]
}
