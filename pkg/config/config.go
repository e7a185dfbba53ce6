// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. Every subsystem (server, storage,
// messaging, the proximity core, retrieval) has its own typed section.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	Logging   LoggingConfig   `yaml:"logging"`
	Tracing   TracingConfig   `yaml:"tracing"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Proximity ProximityConfig `yaml:"proximity"`
	Library   LibraryConfig   `yaml:"library"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Analytics AnalyticsConfig `yaml:"analytics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	RequestTimeout  time.Duration `yaml:"requestTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	// ClientRatePerSecond limits requests per client address; 0 disables it.
	ClientRatePerSecond float64 `yaml:"clientRatePerSecond"`
	ClientBurst         int     `yaml:"clientBurst"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Enabled       bool        `yaml:"enabled"`
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	NetworkEvents string `yaml:"networkEvents"`
}

// RedisConfig holds Redis connection and response-cache parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TracingConfig controls span logging.
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled"`
	SampleRate float64 `yaml:"sampleRate"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// ProximityConfig holds the defaults of a network computation.
type ProximityConfig struct {
	MaxResults           int        `yaml:"maxResults"`
	WeightMode           string     `yaml:"weightMode"`
	LimitDistance        int        `yaml:"limitDistance"`
	SummarizeMode        string     `yaml:"summarizeMode"`
	IncludeReferenceTerm bool       `yaml:"includeReferenceTerm"`
	TopN                 int        `yaml:"topN"`
	Workers              int        `yaml:"workers"`
	StopWords            []string   `yaml:"stopWords"`
	DefaultStopWords     bool       `yaml:"defaultStopWords"`
	Lemmatize            bool       `yaml:"lemmatize"`
	Stem                 bool       `yaml:"stem"`
	NodeSizeRange        [2]float64 `yaml:"nodeSizeRange"`
	EdgeWidthRange       [2]float64 `yaml:"edgeWidthRange"`
}

// LibraryConfig selects where the local document library is loaded from.
// Source is one of "file", "bolt" or "postgres".
type LibraryConfig struct {
	Source     string `yaml:"source"`
	CorpusPath string `yaml:"corpusPath"`
	BoltPath   string `yaml:"boltPath"`
}

// RetrievalConfig guards calls to the document source.
type RetrievalConfig struct {
	RatePerSecond    float64       `yaml:"ratePerSecond"`
	Burst            int           `yaml:"burst"`
	MaxAttempts      int           `yaml:"maxAttempts"`
	InitialBackoff   time.Duration `yaml:"initialBackoff"`
	FailureThreshold int           `yaml:"failureThreshold"`
	ResetTimeout     time.Duration `yaml:"resetTimeout"`
	Timeout          time.Duration `yaml:"timeout"`
}

// AnalyticsConfig controls the in-memory aggregator and snapshot cadence.
type AnalyticsConfig struct {
	Port             int           `yaml:"port"`
	BufferSize       int           `yaml:"bufferSize"`
	MaxLatencies     int           `yaml:"maxLatencies"`
	TopK             int           `yaml:"topK"`
	SnapshotInterval time.Duration `yaml:"snapshotInterval"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides on top of the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used for local development.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8000,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			RequestTimeout:  20 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			ClientBurst:     20,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "proximity",
			User:            "proximity",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "proximity-analytics",
			Topics: KafkaTopics{
				NetworkEvents: "network-events",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 10 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			SampleRate: 1.0,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
		Proximity: ProximityConfig{
			MaxResults:       10,
			WeightMode:       "none",
			LimitDistance:    4,
			SummarizeMode:    "none",
			TopN:             15,
			Workers:          4,
			DefaultStopWords: true,
			Lemmatize:        true,
			NodeSizeRange:    [2]float64{1, 3},
			EdgeWidthRange:   [2]float64{1, 5},
		},
		Library: LibraryConfig{
			Source:     "file",
			CorpusPath: "data/corpus.json",
			BoltPath:   "data/library.db",
		},
		Retrieval: RetrievalConfig{
			RatePerSecond:    20,
			Burst:            5,
			MaxAttempts:      3,
			InitialBackoff:   200 * time.Millisecond,
			FailureThreshold: 5,
			ResetTimeout:     30 * time.Second,
			Timeout:          10 * time.Second,
		},
		Analytics: AnalyticsConfig{
			Port:             8083,
			BufferSize:       10000,
			MaxLatencies:     10000,
			TopK:             10,
			SnapshotInterval: time.Minute,
		},
	}
}

var (
	validWeightModes    = map[string]bool{"": true, "none": true, "linear": true, "inverse": true}
	validSummarizeModes = map[string]bool{"": true, "none": true, "mean": true, "median": true}
	validLibrarySources = map[string]bool{"file": true, "bolt": true, "postgres": true}
)

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error
	p := c.Proximity
	if !validWeightModes[p.WeightMode] {
		errs = append(errs, fmt.Errorf("proximity.weightMode: unknown mode %q", p.WeightMode))
	}
	if !validSummarizeModes[p.SummarizeMode] {
		errs = append(errs, fmt.Errorf("proximity.summarizeMode: unknown mode %q", p.SummarizeMode))
	}
	if p.LimitDistance < -1 {
		errs = append(errs, fmt.Errorf("proximity.limitDistance: %d (use -1 for unbounded)", p.LimitDistance))
	}
	if p.TopN < 0 {
		errs = append(errs, fmt.Errorf("proximity.topN: negative value %d", p.TopN))
	}
	if p.MaxResults <= 0 {
		errs = append(errs, fmt.Errorf("proximity.maxResults: must be positive, got %d", p.MaxResults))
	}
	if !validLibrarySources[c.Library.Source] {
		errs = append(errs, fmt.Errorf("library.source: unknown source %q", c.Library.Source))
	}
	if c.Library.Source == "postgres" && !c.Postgres.Enabled {
		errs = append(errs, errors.New("library.source postgres requires postgres.enabled"))
	}
	if c.Server.ClientRatePerSecond < 0 {
		errs = append(errs, fmt.Errorf("server.clientRatePerSecond: negative value %v", c.Server.ClientRatePerSecond))
	}
	if c.Retrieval.RatePerSecond < 0 {
		errs = append(errs, fmt.Errorf("retrieval.ratePerSecond: negative value %v", c.Retrieval.RatePerSecond))
	}
	return errors.Join(errs...)
}

// applyEnvOverrides reads TPN_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	setInt("TPN_SERVER_PORT", &cfg.Server.Port)
	setBool("TPN_POSTGRES_ENABLED", &cfg.Postgres.Enabled)
	setString("TPN_POSTGRES_HOST", &cfg.Postgres.Host)
	setInt("TPN_POSTGRES_PORT", &cfg.Postgres.Port)
	setString("TPN_POSTGRES_DATABASE", &cfg.Postgres.Database)
	setString("TPN_POSTGRES_USER", &cfg.Postgres.User)
	setString("TPN_POSTGRES_PASSWORD", &cfg.Postgres.Password)
	setString("TPN_POSTGRES_SSLMODE", &cfg.Postgres.SSLMode)
	setBool("TPN_KAFKA_ENABLED", &cfg.Kafka.Enabled)
	if v := os.Getenv("TPN_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	setBool("TPN_REDIS_ENABLED", &cfg.Redis.Enabled)
	setString("TPN_REDIS_ADDR", &cfg.Redis.Addr)
	setString("TPN_REDIS_PASSWORD", &cfg.Redis.Password)
	setString("TPN_LOGGING_LEVEL", &cfg.Logging.Level)
	setString("TPN_LOGGING_FORMAT", &cfg.Logging.Format)
	setInt("TPN_METRICS_PORT", &cfg.Metrics.Port)
	setString("TPN_LIBRARY_SOURCE", &cfg.Library.Source)
	setString("TPN_LIBRARY_CORPUS_PATH", &cfg.Library.CorpusPath)
	setString("TPN_LIBRARY_BOLT_PATH", &cfg.Library.BoltPath)
	setInt("TPN_PROXIMITY_MAX_RESULTS", &cfg.Proximity.MaxResults)
	setString("TPN_PROXIMITY_WEIGHT_MODE", &cfg.Proximity.WeightMode)
	setInt("TPN_PROXIMITY_LIMIT_DISTANCE", &cfg.Proximity.LimitDistance)
	setInt("TPN_PROXIMITY_TOP_N", &cfg.Proximity.TopN)
}

func setString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
