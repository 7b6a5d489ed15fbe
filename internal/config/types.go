package config

import (
	"fmt"
	"net"
	"time"

	"github.com/thushan/ladle/internal/util"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Inference  InferenceConfig  `mapstructure:"inference"`
	Vector     VectorConfig     `mapstructure:"vector"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Breaker    BreakerConfig    `mapstructure:"breaker"`
	Upstreams  UpstreamsConfig  `mapstructure:"upstreams"`
	Enhance    EnhanceConfig    `mapstructure:"enhance"`
	SSE        SSEConfig        `mapstructure:"sse"`
	RequestLog RequestLogConfig `mapstructure:"request_log"`
}

// ServerConfig is the gateway's own listener, not an upstream.
type ServerConfig struct {
	Host                    string        `mapstructure:"host"`
	TrustedProxyCIDRs       []string      `mapstructure:"trusted_proxy_cidrs"`
	TrustedProxyCIDRsParsed []*net.IPNet  `mapstructure:"-"` // filled by Validate
	Port                    int           `mapstructure:"port"`
	ReadTimeout             time.Duration `mapstructure:"read_timeout"`
	ShutdownTimeout         time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodySize             int64         `mapstructure:"max_body_size"`
	TrustProxyHeaders       bool          `mapstructure:"trust_proxy_headers"`
}

func (c ServerConfig) GetAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type InferenceConfig struct {
	URL             string        `mapstructure:"url"`
	GenerateTimeout time.Duration `mapstructure:"generate_timeout"`
	EmbedTimeout    time.Duration `mapstructure:"embed_timeout"`
	EmbedModel      string        `mapstructure:"embed_model"`
}

type VectorConfig struct {
	URL        string        `mapstructure:"url"`
	Collection string        `mapstructure:"collection"`
	Dimension  int           `mapstructure:"dimension"`
	Similarity float64       `mapstructure:"similarity_threshold"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// Enabled reports whether an L2 tier is configured at all.
func (c VectorConfig) Enabled() bool {
	return c.URL != ""
}

type CacheConfig struct {
	L1Capacity int `mapstructure:"l1_capacity"`
}

type BreakerConfig struct {
	FailureThreshold int           `mapstructure:"failure_threshold"`
	RecoveryTimeout  time.Duration `mapstructure:"recovery_timeout"`
}

type UpstreamsConfig struct {
	File            string        `mapstructure:"file"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type EnhanceConfig struct {
	RulesFile string `mapstructure:"rules_file"`
}

type SSEConfig struct {
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	KeepaliveInterval time.Duration `mapstructure:"keepalive_interval"`
	MaxSessions       int           `mapstructure:"max_sessions"`
}

type RequestLogConfig struct {
	Capacity int `mapstructure:"capacity"`
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	parsed, err := util.ParseTrustedCIDRs(c.Server.TrustedProxyCIDRs)
	if err != nil {
		return fmt.Errorf("server.trusted_proxy_cidrs: %w", err)
	}
	c.Server.TrustedProxyCIDRsParsed = parsed
	if c.Cache.L1Capacity <= 0 {
		return fmt.Errorf("cache.l1_capacity must be positive, got %d", c.Cache.L1Capacity)
	}
	if c.Breaker.FailureThreshold <= 0 {
		return fmt.Errorf("breaker.failure_threshold must be positive, got %d", c.Breaker.FailureThreshold)
	}
	if c.Vector.Enabled() && c.Vector.Dimension <= 0 {
		return fmt.Errorf("vector.dimension must be positive, got %d", c.Vector.Dimension)
	}
	if c.Vector.Similarity < 0 || c.Vector.Similarity > 1 {
		return fmt.Errorf("vector.similarity_threshold %f out of range [0,1]", c.Vector.Similarity)
	}
	if c.RequestLog.Capacity <= 0 {
		return fmt.Errorf("request_log.capacity must be positive, got %d", c.RequestLog.Capacity)
	}
	if c.SSE.MaxSessions <= 0 {
		return fmt.Errorf("sse.max_sessions must be positive, got %d", c.SSE.MaxSessions)
	}
	if c.SSE.IdleTimeout <= 0 {
		return fmt.Errorf("sse.idle_timeout must be positive, got %s", c.SSE.IdleTimeout)
	}
	if c.SSE.KeepaliveInterval <= 0 {
		return fmt.Errorf("sse.keepalive_interval must be positive, got %s", c.SSE.KeepaliveInterval)
	}
	return nil
}
