package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration. It is constructed once at
// startup and passed to each component; nothing reads it as ambient state.
type Config struct {
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Kakao  KakaoConfig  `yaml:"kakao" mapstructure:"kakao"`
	Crawl  CrawlConfig  `yaml:"crawl" mapstructure:"crawl"`
	Ingest IngestConfig `yaml:"ingest" mapstructure:"ingest"`
	JWT    JWTConfig    `yaml:"jwt" mapstructure:"jwt"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string     `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string     `yaml:"database_url" mapstructure:"database_url"`
	Pool        PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the query HTTP server.
type ServerConfig struct {
	Port           int     `yaml:"port" mapstructure:"port"`
	APIKey         string  `yaml:"api_key" mapstructure:"api_key"`
	DefaultRadiusM float64 `yaml:"default_radius_m" mapstructure:"default_radius_m"`
}

// KakaoConfig holds the Kakao local-search geocoding credential and limits.
type KakaoConfig struct {
	APIKey  string  `yaml:"api_key" mapstructure:"api_key"`
	BaseURL string  `yaml:"base_url" mapstructure:"base_url"`
	RateRPS float64 `yaml:"rate_rps" mapstructure:"rate_rps"`
}

// CrawlConfig configures the directory-site crawl.
type CrawlConfig struct {
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	MaxPages    int     `yaml:"max_pages" mapstructure:"max_pages"`
	PageRPS     float64 `yaml:"page_rps" mapstructure:"page_rps"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// IngestConfig configures ingestion behavior.
type IngestConfig struct {
	// NormalizeNames switches the dedupe comparison from verbatim to
	// trimmed + case-folded name matching.
	NormalizeNames bool `yaml:"normalize_names" mapstructure:"normalize_names"`
}

// JWTConfig is read into config but exercised by no endpoint; reserved.
type JWTConfig struct {
	Secret        string `yaml:"secret" mapstructure:"secret"`
	Algorithm     string `yaml:"algorithm" mapstructure:"algorithm"`
	ExpireMinutes int    `yaml:"expire_minutes" mapstructure:"expire_minutes"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("MENTALMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Credential keys carry no defaults, and AutomaticEnv alone never
	// surfaces default-less keys to Unmarshal; bind them explicitly so
	// MENTALMAP_SERVER_API_KEY and friends work without a config file.
	for _, key := range []string{
		"store.database_url",
		"server.api_key",
		"kakao.api_key",
		"jwt.secret",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, eris.Wrapf(err, "config: bind env for %s", key)
		}
	}

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.pool.max_conns", 10)
	v.SetDefault("store.pool.min_conns", 2)
	v.SetDefault("server.port", 8002)
	v.SetDefault("server.default_radius_m", 10000)
	v.SetDefault("kakao.base_url", "https://dapi.kakao.com")
	v.SetDefault("kakao.rate_rps", 10)
	v.SetDefault("crawl.base_url", "https://www.hugmom.co.kr/hugmom/center/index.html")
	v.SetDefault("crawl.max_pages", 25)
	v.SetDefault("crawl.page_rps", 1)
	v.SetDefault("crawl.timeout_secs", 30)
	v.SetDefault("ingest.normalize_names", false)
	v.SetDefault("jwt.algorithm", "HS256")
	v.SetDefault("jwt.expire_minutes", 30)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that everything a given scope needs is present. Missing
// configuration is fatal at startup, so errors aggregate every missing key
// rather than stopping at the first.
func (c *Config) Validate(scope string) error {
	var missing []string

	needStore := func() {
		if c.Store.Driver != "postgres" && c.Store.Driver != "sqlite" {
			missing = append(missing, "store.driver must be postgres or sqlite")
			return
		}
		if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
			missing = append(missing, "store.database_url is required (MENTALMAP_STORE_DATABASE_URL)")
		}
	}

	switch scope {
	case "serve":
		needStore()
		if c.Server.Port <= 0 {
			missing = append(missing, "server.port must be > 0")
		}
		if c.Server.APIKey == "" {
			missing = append(missing, "server.api_key is required (MENTALMAP_SERVER_API_KEY)")
		}
	case "ingest":
		needStore()
		if c.Kakao.APIKey == "" {
			missing = append(missing, "kakao.api_key is required (MENTALMAP_KAKAO_API_KEY)")
		}
		if c.Crawl.BaseURL == "" {
			missing = append(missing, "crawl.base_url is required")
		}
	case "geocode":
		if c.Kakao.APIKey == "" {
			missing = append(missing, "kakao.api_key is required (MENTALMAP_KAKAO_API_KEY)")
		}
	case "store":
		needStore()
	default:
		return eris.Errorf("config: unknown validation scope %q", scope)
	}

	if len(missing) > 0 {
		return eris.New("config: " + strings.Join(missing, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
