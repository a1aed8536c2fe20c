package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	RenderAPI RenderAPIConfig
	Proxy     ProxyConfig
	Postgres  PostgresConfig
	Supabase  SupabaseConfig
	S3        S3Config
	Scheduler SchedulerConfig
	Ingest    IngestConfig
	AMQPURL   string
	OpsDBPath string
	BatchDir  string
	APIAddr   string
	LogPath   string
	Sources   map[string]*SourceConfig
}

// RenderAPIConfig points at a Firecrawl-style render service that returns
// {html, markdown} for a URL. Empty URL means raw HTTP fetch only.
type RenderAPIConfig struct {
	URL string
	Key string
}

type ProxyConfig struct {
	URL string
}

type PostgresConfig struct {
	DSN string
}

type SupabaseConfig struct {
	URL        string
	ServiceKey string
}

type S3Config struct {
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
	Endpoint  string
	PublicURL string
}

type SchedulerConfig struct {
	Interval time.Duration
	Cron     string
}

// IngestConfig tunes request pacing and collection caps. Delay and jitter
// apply between detail fetches within a run.
type IngestConfig struct {
	DelayMS      int
	JitterMS     int
	PerZipCap    int
	MediaEnabled bool
	RefreshAge   time.Duration
}

// SourceConfig is one config/sites/*.yaml seed file: which site, where to
// search, and how its grammar should be tuned.
type SourceConfig struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	SearchURL   string   `yaml:"search_url"`
	Zips        []string `yaml:"zips"`
	SeedURLs    []string `yaml:"seed_urls"`
	StateKeys   []string `yaml:"state_keys"`
	ImageHosts  []string `yaml:"image_hosts"`
	RateLimitMS int      `yaml:"rate_limit_ms"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		RenderAPI: RenderAPIConfig{
			URL: os.Getenv("RENDER_API_URL"),
			Key: os.Getenv("RENDER_API_KEY"),
		},
		Proxy: ProxyConfig{
			URL: os.Getenv("PROXY_URL"),
		},
		Postgres: PostgresConfig{
			DSN: os.Getenv("POSTGRES_DSN"),
		},
		Supabase: SupabaseConfig{
			URL:        os.Getenv("SUPABASE_URL"),
			ServiceKey: os.Getenv("SUPABASE_SERVICE_KEY"),
		},
		S3: S3Config{
			Bucket:    os.Getenv("S3_BUCKET"),
			Region:    getEnv("S3_REGION", "us-east-1"),
			AccessKey: os.Getenv("S3_ACCESS_KEY"),
			SecretKey: os.Getenv("S3_SECRET_KEY"),
			Endpoint:  os.Getenv("S3_ENDPOINT"),
			PublicURL: os.Getenv("S3_PUBLIC_URL"),
		},
		Scheduler: SchedulerConfig{
			Cron: os.Getenv("INGEST_CRON"),
		},
		Ingest: IngestConfig{
			DelayMS:      getEnvInt("INGEST_DELAY_MS", 1500),
			JitterMS:     getEnvInt("INGEST_JITTER_MS", 1000),
			PerZipCap:    getEnvInt("INGEST_PER_ZIP_CAP", 40),
			MediaEnabled: getEnvBool("MEDIA_ENABLED", true),
			RefreshAge:   24 * time.Hour,
		},
		AMQPURL:   os.Getenv("AMQP_URL"),
		OpsDBPath: getEnv("OPS_DB_PATH", "propsift.db"),
		BatchDir:  getEnv("BATCH_DIR", "data/batches"),
		APIAddr:   os.Getenv("API_ADDR"),
		LogPath:   getEnv("LOG_PATH", "daemon.log"),
		Sources:   make(map[string]*SourceConfig),
	}

	if interval := os.Getenv("INGEST_INTERVAL"); interval != "" {
		d, err := time.ParseDuration(interval)
		if err == nil {
			cfg.Scheduler.Interval = d
		}
	}

	if age := os.Getenv("REFRESH_MAX_AGE"); age != "" {
		d, err := time.ParseDuration(age)
		if err == nil {
			cfg.Ingest.RefreshAge = d
		}
	}

	if err := cfg.loadSourceConfigs(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadSourceConfigs() error {
	configDir := getEnv("SOURCES_DIR", "config/sites")
	entries, err := os.ReadDir(configDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}

		path := filepath.Join(configDir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		var src SourceConfig
		if err := yaml.Unmarshal(data, &src); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		if src.ID == "" {
			return fmt.Errorf("source config %s: missing id", path)
		}

		c.Sources[src.ID] = &src
	}

	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}
