package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	Logger     LoggerConfig
	Database   DatabaseConfig
	Storage    StorageConfig
	Pointer    PointerConfig
	Kubernetes KubernetesConfig
	Redis      RedisConfig
	Geocoder   GeocoderConfig
	OpenData   OpenDataConfig
	Baseline   BaselineConfig
	Pipeline   PipelineConfig
	Model      ModelConfig
	CORS       CORSConfig
}

type ServerConfig struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
}

type LoggerConfig struct {
	Level  string
	Format string
}

type DatabaseConfig struct {
	Enabled         bool
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	AutoMigrate     bool
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

// Storage backends.
const (
	StorageLocal = "local"
	StorageGCS   = "gcs"
)

type StorageConfig struct {
	Backend            string
	LocalRoot          string
	GCSBucket          string
	GCSPrefix          string
	GCSCredentialsFile string
	GCSEmulatorHost    string
	OpTimeout          time.Duration
}

// Pointer backends.
const (
	PointerPostgres  = "postgres"
	PointerConfigMap = "configmap"
	PointerObject    = "object"
)

type PointerConfig struct {
	Backend string
}

type KubernetesConfig struct {
	InCluster      bool
	KubeConfigPath string
	Namespace      string
	ConfigMapName  string
}

type RedisConfig struct {
	Enabled          bool
	Addr             string
	Password         string
	DB               int
	PromotionChannel string
	GeocodeTTL       time.Duration
}

type GeocoderConfig struct {
	Enabled   bool
	URL       string
	UserAgent string
	Suffix    string
	Timeout   time.Duration
}

type OpenDataConfig struct {
	URL              string
	SnapshotResource string
	HistoryResource  string
	SnapshotColumn   string
	Limit            int
	Timeout          time.Duration
	MaxAttempts      int
	BaseDelay        time.Duration
}

type BaselineConfig struct {
	AnchorYear       int
	HistoryYears     []int
	TargetYear       int
	CityAggregate    string
	MaxDecadeDecline float64
}

type PipelineConfig struct {
	Samples        int
	Seed           uint64
	Weighting      string
	SplitSeed      uint64
	Trees          int
	MaxDepth       int
	MinSamplesLeaf int
	MaxFeatures    float64
	ForestSeed     uint64
	Workers        int
}

type ModelConfig struct {
	LoadTimeout         time.Duration
	RetryAfter          time.Duration
	DefaultNeighborhood string
	GeocodeTimeout      time.Duration
	AuditTimeout        time.Duration
}

type CORSConfig struct {
	AllowOrigins []string
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug("no .env file found, using process environment")
	}

	v := viper.New()

	// Defaults
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", 8080)
	v.SetDefault("SERVER_SHUTDOWN_TIMEOUT", "10s")
	v.SetDefault("LOGGER_LEVEL", "info")
	v.SetDefault("LOGGER_FORMAT", "json")

	v.SetDefault("DATABASE_ENABLED", false)
	v.SetDefault("DATABASE_HOST", "localhost")
	v.SetDefault("DATABASE_PORT", 5432)
	v.SetDefault("DATABASE_USER", "valuation")
	v.SetDefault("DATABASE_PASSWORD", "valuation")
	v.SetDefault("DATABASE_NAME", "valuation")
	v.SetDefault("DATABASE_SSLMODE", "disable")
	v.SetDefault("DATABASE_MAX_OPEN_CONNS", 10)
	v.SetDefault("DATABASE_MAX_IDLE_CONNS", 2)
	v.SetDefault("DATABASE_CONN_MAX_LIFETIME", "30m")
	v.SetDefault("DATABASE_AUTO_MIGRATE", true)

	v.SetDefault("STORAGE_BACKEND", StorageLocal)
	v.SetDefault("STORAGE_LOCAL_ROOT", "./data")
	v.SetDefault("STORAGE_GCS_BUCKET", "")
	v.SetDefault("STORAGE_GCS_PREFIX", "")
	v.SetDefault("STORAGE_GCS_CREDENTIALS_FILE", "")
	v.SetDefault("STORAGE_GCS_EMULATOR_HOST", "")
	v.SetDefault("STORAGE_OP_TIMEOUT", "2m")

	v.SetDefault("POINTER_BACKEND", PointerObject)
	v.SetDefault("KUBERNETES_IN_CLUSTER", false)
	v.SetDefault("KUBERNETES_KUBECONFIG", "")
	v.SetDefault("KUBERNETES_NAMESPACE", "default")
	v.SetDefault("KUBERNETES_CONFIGMAP_NAME", "valuation-production-model")

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_PROMOTION_CHANNEL", "valuation:promotions")
	v.SetDefault("REDIS_GEOCODE_TTL", "168h")

	v.SetDefault("GEOCODER_ENABLED", true)
	v.SetDefault("GEOCODER_URL", "https://nominatim.openstreetmap.org/search")
	v.SetDefault("GEOCODER_USER_AGENT", "apartment-valuation-service/1.0")
	v.SetDefault("GEOCODER_SUFFIX", ", Barcelona, Spain")
	v.SetDefault("GEOCODER_TIMEOUT", "5s")

	v.SetDefault("OPENDATA_URL", "https://opendata-ajuntament.barcelona.cat/data/api/action/datastore_search")
	v.SetDefault("OPENDATA_SNAPSHOT_RESOURCE", "cd9118c6-427c-4390-8334-3670cc3f3f6a")
	v.SetDefault("OPENDATA_HISTORY_RESOURCE", "fd130d85-d893-49de-9003-564bbd1d7aff")
	v.SetDefault("OPENDATA_SNAPSHOT_COLUMN", "2015")
	v.SetDefault("OPENDATA_LIMIT", 1000)
	v.SetDefault("OPENDATA_TIMEOUT", "30s")
	v.SetDefault("OPENDATA_MAX_ATTEMPTS", 3)
	v.SetDefault("OPENDATA_BASE_DELAY", "1s")

	v.SetDefault("BASELINE_ANCHOR_YEAR", 2015)
	v.SetDefault("BASELINE_HISTORY_YEARS", "2007,2008,2009,2010,2011")
	v.SetDefault("BASELINE_TARGET_YEAR", 2025)
	v.SetDefault("BASELINE_CITY_AGGREGATE", "Barcelona")
	v.SetDefault("BASELINE_MAX_DECADE_DECLINE", 0.2)

	v.SetDefault("PIPELINE_SAMPLES", 3000)
	v.SetDefault("PIPELINE_SEED", 0)
	v.SetDefault("PIPELINE_WEIGHTING", "price")
	v.SetDefault("PIPELINE_SPLIT_SEED", 42)
	v.SetDefault("PIPELINE_TREES", 100)
	v.SetDefault("PIPELINE_MAX_DEPTH", 0)
	v.SetDefault("PIPELINE_MIN_SAMPLES_LEAF", 1)
	v.SetDefault("PIPELINE_MAX_FEATURES", 1.0)
	v.SetDefault("PIPELINE_FOREST_SEED", 42)
	v.SetDefault("PIPELINE_WORKERS", 0)

	v.SetDefault("MODEL_LOAD_TIMEOUT", "20s")
	v.SetDefault("MODEL_RETRY_AFTER", "30s")
	v.SetDefault("MODEL_DEFAULT_NEIGHBORHOOD", "la Dreta de l'Eixample")
	v.SetDefault("MODEL_GEOCODE_TIMEOUT", "5s")
	v.SetDefault("MODEL_AUDIT_TIMEOUT", "5s")

	v.SetDefault("CORS_ALLOW_ORIGINS", "*")

	// Env
	v.AutomaticEnv()

	historyYears, err := parseYears(v.GetString("BASELINE_HISTORY_YEARS"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:            v.GetString("SERVER_HOST"),
			Port:            v.GetInt("SERVER_PORT"),
			ShutdownTimeout: v.GetDuration("SERVER_SHUTDOWN_TIMEOUT"),
		},
		Logger: LoggerConfig{
			Level:  v.GetString("LOGGER_LEVEL"),
			Format: v.GetString("LOGGER_FORMAT"),
		},
		Database: DatabaseConfig{
			Enabled:         v.GetBool("DATABASE_ENABLED"),
			Host:            v.GetString("DATABASE_HOST"),
			Port:            v.GetInt("DATABASE_PORT"),
			User:            v.GetString("DATABASE_USER"),
			Password:        v.GetString("DATABASE_PASSWORD"),
			Name:            v.GetString("DATABASE_NAME"),
			SSLMode:         v.GetString("DATABASE_SSLMODE"),
			MaxOpenConns:    v.GetInt("DATABASE_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DATABASE_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetDuration("DATABASE_CONN_MAX_LIFETIME"),
			AutoMigrate:     v.GetBool("DATABASE_AUTO_MIGRATE"),
		},
		Storage: StorageConfig{
			Backend:            strings.ToLower(v.GetString("STORAGE_BACKEND")),
			LocalRoot:          v.GetString("STORAGE_LOCAL_ROOT"),
			GCSBucket:          v.GetString("STORAGE_GCS_BUCKET"),
			GCSPrefix:          v.GetString("STORAGE_GCS_PREFIX"),
			GCSCredentialsFile: v.GetString("STORAGE_GCS_CREDENTIALS_FILE"),
			GCSEmulatorHost:    v.GetString("STORAGE_GCS_EMULATOR_HOST"),
			OpTimeout:          v.GetDuration("STORAGE_OP_TIMEOUT"),
		},
		Pointer: PointerConfig{
			Backend: strings.ToLower(v.GetString("POINTER_BACKEND")),
		},
		Kubernetes: KubernetesConfig{
			InCluster:      v.GetBool("KUBERNETES_IN_CLUSTER"),
			KubeConfigPath: v.GetString("KUBERNETES_KUBECONFIG"),
			Namespace:      v.GetString("KUBERNETES_NAMESPACE"),
			ConfigMapName:  v.GetString("KUBERNETES_CONFIGMAP_NAME"),
		},
		Redis: RedisConfig{
			Enabled:          v.GetBool("REDIS_ENABLED"),
			Addr:             v.GetString("REDIS_ADDR"),
			Password:         v.GetString("REDIS_PASSWORD"),
			DB:               v.GetInt("REDIS_DB"),
			PromotionChannel: v.GetString("REDIS_PROMOTION_CHANNEL"),
			GeocodeTTL:       v.GetDuration("REDIS_GEOCODE_TTL"),
		},
		Geocoder: GeocoderConfig{
			Enabled:   v.GetBool("GEOCODER_ENABLED"),
			URL:       v.GetString("GEOCODER_URL"),
			UserAgent: v.GetString("GEOCODER_USER_AGENT"),
			Suffix:    v.GetString("GEOCODER_SUFFIX"),
			Timeout:   v.GetDuration("GEOCODER_TIMEOUT"),
		},
		OpenData: OpenDataConfig{
			URL:              v.GetString("OPENDATA_URL"),
			SnapshotResource: v.GetString("OPENDATA_SNAPSHOT_RESOURCE"),
			HistoryResource:  v.GetString("OPENDATA_HISTORY_RESOURCE"),
			SnapshotColumn:   v.GetString("OPENDATA_SNAPSHOT_COLUMN"),
			Limit:            v.GetInt("OPENDATA_LIMIT"),
			Timeout:          v.GetDuration("OPENDATA_TIMEOUT"),
			MaxAttempts:      v.GetInt("OPENDATA_MAX_ATTEMPTS"),
			BaseDelay:        v.GetDuration("OPENDATA_BASE_DELAY"),
		},
		Baseline: BaselineConfig{
			AnchorYear:       v.GetInt("BASELINE_ANCHOR_YEAR"),
			HistoryYears:     historyYears,
			TargetYear:       v.GetInt("BASELINE_TARGET_YEAR"),
			CityAggregate:    v.GetString("BASELINE_CITY_AGGREGATE"),
			MaxDecadeDecline: v.GetFloat64("BASELINE_MAX_DECADE_DECLINE"),
		},
		Pipeline: PipelineConfig{
			Samples:        v.GetInt("PIPELINE_SAMPLES"),
			Seed:           v.GetUint64("PIPELINE_SEED"),
			Weighting:      strings.ToLower(v.GetString("PIPELINE_WEIGHTING")),
			SplitSeed:      v.GetUint64("PIPELINE_SPLIT_SEED"),
			Trees:          v.GetInt("PIPELINE_TREES"),
			MaxDepth:       v.GetInt("PIPELINE_MAX_DEPTH"),
			MinSamplesLeaf: v.GetInt("PIPELINE_MIN_SAMPLES_LEAF"),
			MaxFeatures:    v.GetFloat64("PIPELINE_MAX_FEATURES"),
			ForestSeed:     v.GetUint64("PIPELINE_FOREST_SEED"),
			Workers:        v.GetInt("PIPELINE_WORKERS"),
		},
		Model: ModelConfig{
			LoadTimeout:         v.GetDuration("MODEL_LOAD_TIMEOUT"),
			RetryAfter:          v.GetDuration("MODEL_RETRY_AFTER"),
			DefaultNeighborhood: v.GetString("MODEL_DEFAULT_NEIGHBORHOOD"),
			GeocodeTimeout:      v.GetDuration("MODEL_GEOCODE_TIMEOUT"),
			AuditTimeout:        v.GetDuration("MODEL_AUDIT_TIMEOUT"),
		},
		CORS: CORSConfig{
			AllowOrigins: splitList(v.GetString("CORS_ALLOW_ORIGINS")),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage.Backend {
	case StorageLocal:
	case StorageGCS:
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("STORAGE_GCS_BUCKET is required for the gcs backend")
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.Storage.Backend)
	}

	switch c.Pointer.Backend {
	case PointerObject, PointerConfigMap:
	case PointerPostgres:
		if !c.Database.Enabled {
			return fmt.Errorf("POINTER_BACKEND=postgres requires DATABASE_ENABLED=true")
		}
	default:
		return fmt.Errorf("unknown POINTER_BACKEND %q", c.Pointer.Backend)
	}

	for _, y := range c.Baseline.HistoryYears {
		if y >= c.Baseline.AnchorYear {
			return fmt.Errorf("BASELINE_HISTORY_YEARS must precede BASELINE_ANCHOR_YEAR (%d)", c.Baseline.AnchorYear)
		}
	}
	if c.Baseline.TargetYear < c.Baseline.AnchorYear {
		return fmt.Errorf("BASELINE_TARGET_YEAR must not precede BASELINE_ANCHOR_YEAR")
	}
	if c.Baseline.MaxDecadeDecline <= 0 || c.Baseline.MaxDecadeDecline > 1 {
		return fmt.Errorf("BASELINE_MAX_DECADE_DECLINE must be in (0, 1]")
	}

	if c.Pipeline.Weighting != "price" && c.Pipeline.Weighting != "uniform" {
		return fmt.Errorf("unknown PIPELINE_WEIGHTING %q", c.Pipeline.Weighting)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseYears(s string) ([]int, error) {
	var out []int
	for _, part := range splitList(s) {
		y, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid year %q in BASELINE_HISTORY_YEARS", part)
		}
		out = append(out, y)
	}
	return out, nil
}
