package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	StaticPath string        `mapstructure:"static_path"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	Secret     string        `mapstructure:"secret"`

	Room   RoomConfig   `mapstructure:"room"`
	Chat   ChatConfig   `mapstructure:"chat"`
	Signal SignalConfig `mapstructure:"signal"`
}

type RoomConfig struct {
	ParticipantLimit int           `mapstructure:"participant_limit"`
	IdleTimeout      time.Duration `mapstructure:"idle_timeout"`
	SweepInterval    time.Duration `mapstructure:"sweep_interval"`
	HostControlled   bool          `mapstructure:"host_controlled"`
}

type ChatConfig struct {
	MaxLength    int           `mapstructure:"max_length"`
	RateLimit    int           `mapstructure:"rate_limit"`
	RateInterval time.Duration `mapstructure:"rate_interval"`
}

type SignalConfig struct {
	RateLimit    int           `mapstructure:"rate_limit"`
	RateInterval time.Duration `mapstructure:"rate_interval"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("secret", "")

	v.SetDefault("room.participant_limit", 50)
	v.SetDefault("room.idle_timeout", "30m")
	v.SetDefault("room.sweep_interval", "5m")
	v.SetDefault("room.host_controlled", false)

	v.SetDefault("chat.max_length", 200)
	v.SetDefault("chat.rate_limit", 5)
	v.SetDefault("chat.rate_interval", "10s")

	v.SetDefault("signal.rate_limit", 30)
	v.SetDefault("signal.rate_interval", "1s")
}

// Load reads config/config.<CONFIG_ENV>.yaml on top of the defaults.
// VOTE_* environment variables override both, e.g. VOTE_ROOM_IDLE_TIMEOUT.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	setDefaults(v)
	v.SetEnvPrefix("VOTE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	for key, d := range map[string]time.Duration{
		"ping_period":         cfg.PingPeriod,
		"room.idle_timeout":   cfg.Room.IdleTimeout,
		"room.sweep_interval": cfg.Room.SweepInterval,
	} {
		if d <= 0 {
			return nil, fmt.Errorf("%s must be positive, got %s", key, d)
		}
	}
	if cfg.Secret == "" {
		log.Warn().Str("module", "config").Msg("secret is empty, session cookies are signed with an empty key")
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Str("static", cfg.StaticPath).Msg("config ready")
	return &cfg, nil
}
