package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/thushan/ladle/internal/core/domain"
)

const (
	DefaultPort = 9090
	DefaultHost = "localhost"
)

// DefaultConfig returns a configuration with sensible defaults for a
// single-node local gateway.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            DefaultHost,
			Port:            DefaultPort,
			ReadTimeout:     30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			MaxBodySize:     10 << 20,
		},
		Inference: InferenceConfig{
			URL:             "http://localhost:11434",
			GenerateTimeout: 60 * time.Second,
			EmbedTimeout:    10 * time.Second,
			EmbedModel:      "nomic-embed-text",
		},
		Vector: VectorConfig{
			URL:        "http://localhost:6333",
			Collection: domain.DefaultVectorCollection,
			Dimension:  domain.DefaultVectorDimension,
			Similarity: domain.DefaultSimilarityThreshold,
			Timeout:    5 * time.Second,
		},
		Cache: CacheConfig{
			L1Capacity: domain.DefaultCacheCapacity,
		},
		Breaker: BreakerConfig{
			FailureThreshold: domain.DefaultFailureThreshold,
			RecoveryTimeout:  domain.DefaultRecoveryTimeout,
		},
		Upstreams: UpstreamsConfig{
			File:            "config/servers.json",
			ShutdownTimeout: 10 * time.Second,
		},
		Enhance: EnhanceConfig{
			RulesFile: "config/rules.json",
		},
		SSE: SSEConfig{
			IdleTimeout:       5 * time.Minute,
			KeepaliveInterval: 30 * time.Second,
			MaxSessions:       1000,
		},
		RequestLog: RequestLogConfig{
			Capacity: domain.DefaultRequestLogCapacity,
		},
	}
}

// Load reads ladle.yaml (optional) and environment variables on top of the
// defaults. onChange fires when the file changes on disk; ladle logs it and
// keeps running with the startup config, changes apply on restart.
func Load(onChange func(fsnotify.Event)) (*Config, error) {
	config := DefaultConfig()

	viper.SetConfigName("ladle")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.SetEnvPrefix("LADLE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Register every key so AutomaticEnv resolves them during Unmarshal,
	// and bind the bare variable names the gateway documents.
	setDefaults(config)
	bindLegacyEnv()

	if err := viper.ReadInConfig(); err != nil {
		// It's okay if the config file doesn't exist
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if configFile := os.Getenv("LADLE_CONFIG_FILE"); configFile != "" {
			viper.SetConfigFile(configFile)
			if err := viper.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
			}
		}
	}

	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	if onChange != nil {
		viper.OnConfigChange(onChange)
		viper.WatchConfig()
	}

	return config, nil
}

func setDefaults(c *Config) {
	viper.SetDefault("server.host", c.Server.Host)
	viper.SetDefault("server.port", c.Server.Port)
	viper.SetDefault("server.read_timeout", c.Server.ReadTimeout)
	viper.SetDefault("server.shutdown_timeout", c.Server.ShutdownTimeout)
	viper.SetDefault("server.max_body_size", c.Server.MaxBodySize)
	viper.SetDefault("server.trust_proxy_headers", c.Server.TrustProxyHeaders)
	viper.SetDefault("server.trusted_proxy_cidrs", c.Server.TrustedProxyCIDRs)

	viper.SetDefault("inference.url", c.Inference.URL)
	viper.SetDefault("inference.generate_timeout", c.Inference.GenerateTimeout)
	viper.SetDefault("inference.embed_timeout", c.Inference.EmbedTimeout)
	viper.SetDefault("inference.embed_model", c.Inference.EmbedModel)

	viper.SetDefault("vector.url", c.Vector.URL)
	viper.SetDefault("vector.collection", c.Vector.Collection)
	viper.SetDefault("vector.dimension", c.Vector.Dimension)
	viper.SetDefault("vector.similarity_threshold", c.Vector.Similarity)
	viper.SetDefault("vector.timeout", c.Vector.Timeout)

	viper.SetDefault("cache.l1_capacity", c.Cache.L1Capacity)

	viper.SetDefault("breaker.failure_threshold", c.Breaker.FailureThreshold)
	viper.SetDefault("breaker.recovery_timeout", c.Breaker.RecoveryTimeout)

	viper.SetDefault("upstreams.file", c.Upstreams.File)
	viper.SetDefault("upstreams.shutdown_timeout", c.Upstreams.ShutdownTimeout)

	viper.SetDefault("enhance.rules_file", c.Enhance.RulesFile)

	viper.SetDefault("sse.idle_timeout", c.SSE.IdleTimeout)
	viper.SetDefault("sse.keepalive_interval", c.SSE.KeepaliveInterval)
	viper.SetDefault("sse.max_sessions", c.SSE.MaxSessions)

	viper.SetDefault("request_log.capacity", c.RequestLog.Capacity)
}

// bindLegacyEnv keeps the bare variable names working alongside the LADLE_
// prefixed forms: INFERENCE_URL, VECTOR_STORE_URL, LISTEN_PORT.
func bindLegacyEnv() {
	_ = viper.BindEnv("inference.url", "LADLE_INFERENCE_URL", "INFERENCE_URL")
	_ = viper.BindEnv("vector.url", "LADLE_VECTOR_URL", "VECTOR_STORE_URL")
	_ = viper.BindEnv("server.port", "LADLE_SERVER_PORT", "LISTEN_PORT")
}
