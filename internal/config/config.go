package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type PerceptionConfig struct {
	Workers     int           `mapstructure:"workers"`
	LaneDepth   int           `mapstructure:"lane_depth"`
	DetectorURL string        `mapstructure:"detector_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type SignalingConfig struct {
	// Global relays offer/answer/ice-candidate to every connection instead
	// of the sender's room.
	Global bool `mapstructure:"global"`
}

type ICEServer struct {
	URLs       []string `mapstructure:"urls"`
	Username   string   `mapstructure:"username"`
	Credential string   `mapstructure:"credential"`
}

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	StaticPath string        `mapstructure:"static_path"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	SendBuffer int           `mapstructure:"send_buffer"`
	Secret     string        `mapstructure:"secret"`
	PublicURL  string        `mapstructure:"public_url"`
	LogLevel   string        `mapstructure:"log_level"`

	ThrottleInterval time.Duration `mapstructure:"throttle_interval"`
	SessionTTL       time.Duration `mapstructure:"session_ttl"`
	ReapInterval     time.Duration `mapstructure:"reap_interval"`
	SnapshotQuality  int           `mapstructure:"snapshot_quality"`
	MaxFramePixels   int           `mapstructure:"max_frame_pixels"`

	MaxEventsPerSecond float64 `mapstructure:"max_events_per_second"`
	EventBurst         int     `mapstructure:"event_burst"`

	Signaling  SignalingConfig  `mapstructure:"signaling"`
	Perception PerceptionConfig `mapstructure:"perception"`
	ICEServers []ICEServer      `mapstructure:"ice_servers"`
}

var (
	ErrInvalidPort     = errors.New("port out of range")
	ErrInvalidThrottle = errors.New("throttle_interval must not be negative")
	ErrInvalidWorkers  = errors.New("perception.workers must not be negative")
)

// SetDefaults registers every key so env overrides work even without a file.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 4<<20)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("send_buffer", 64)
	v.SetDefault("secret", "")
	v.SetDefault("public_url", "")
	v.SetDefault("log_level", "info")

	v.SetDefault("throttle_interval", "2s")
	v.SetDefault("session_ttl", "30m")
	v.SetDefault("reap_interval", "1m")
	v.SetDefault("snapshot_quality", 80)
	v.SetDefault("max_frame_pixels", 3840*2160)

	v.SetDefault("max_events_per_second", 120)
	v.SetDefault("event_burst", 240)

	v.SetDefault("signaling.global", false)

	v.SetDefault("perception.workers", 4)
	v.SetDefault("perception.lane_depth", 8)
	v.SetDefault("perception.detector_url", "")
	v.SetDefault("perception.timeout", "500ms")

	v.SetDefault("ice_servers", []map[string]any{
		{"urls": []string{"stun:stun.l.google.com:19302"}},
	})
}

// New returns a viper instance wired for CAMLINK_* env overrides
// (perception.workers -> CAMLINK_PERCEPTION_WORKERS).
func New() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("camlink")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

// Load reads config/config.<CONFIG_ENV>.yaml on top of the defaults.
func Load(v *viper.Viper) (*Config, error) {
	if v == nil {
		v = New()
	}
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	return Decode(v)
}

// Decode unmarshals and validates whatever v currently holds.
func Decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.Info().
		Str("module", "config").
		Str("mode", cfg.Mode).
		Int("port", cfg.Port).
		Str("static", cfg.StaticPath).
		Dur("throttle", cfg.ThrottleInterval).
		Dur("session_ttl", cfg.SessionTTL).
		Int("perception_workers", cfg.Perception.Workers).
		Msg("config ready")
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, c.Port)
	}
	if c.ThrottleInterval < 0 {
		return ErrInvalidThrottle
	}
	if c.Perception.Workers < 0 {
		return ErrInvalidWorkers
	}
	if c.Perception.LaneDepth <= 0 {
		c.Perception.LaneDepth = 1
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = 64
	}
	return nil
}
