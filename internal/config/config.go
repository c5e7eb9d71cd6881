// Package config assembles the bot configuration from flags, an optional
// YAML file and the environment, in that order of precedence (lowest first).
package config

import (
	"flag"
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/reinodovo/boto-heapsort/internal/bot"
	"github.com/reinodovo/boto-heapsort/internal/database"
	"github.com/reinodovo/boto-heapsort/internal/logging"
)

var ErrMissingToken = errors.New("telegram token is required")

type HTTPConfig struct {
	ListenAddress string `yaml:"listen_address"`
}

func (cfg *HTTPConfig) RegisterFlags(f *flag.FlagSet) {
	f.StringVar(&cfg.ListenAddress, "http.listen-address", ":8080", "Address serving /metrics and /ready, empty disables it.")
}

type Config struct {
	Telegram bot.Config      `yaml:"telegram"`
	Database database.Config `yaml:"database"`
	Log      logging.Config  `yaml:"log"`
	HTTP     HTTPConfig      `yaml:"http"`
}

func (cfg *Config) RegisterFlags(f *flag.FlagSet) {
	cfg.Telegram.RegisterFlags(f)
	cfg.Database.RegisterFlags(f)
	cfg.Log.RegisterFlags(f)
	cfg.HTTP.RegisterFlags(f)
}

func (cfg *Config) Validate() error {
	if cfg.Telegram.Token == "" {
		return ErrMissingToken
	}
	if err := cfg.Database.Validate(); err != nil {
		return errors.Wrap(err, "invalid database config")
	}
	if err := cfg.Log.Validate(); err != nil {
		return errors.Wrap(err, "invalid log config")
	}
	return nil
}

// LoadFile merges the YAML file at path over cfg. Keys missing from the
// file keep their current values.
func LoadFile(path string, cfg *Config) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "reading config file")
	}
	if err := yaml.UnmarshalStrict(buf, cfg); err != nil {
		return errors.Wrapf(err, "parsing config file %s", path)
	}
	return nil
}

// ApplyEnv overrides cfg with the environment variables the bot has always
// been configured with.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"BOT_TOKEN":        &cfg.Telegram.Token,
		"DATABASE_BACKEND": &cfg.Database.Backend,
		"MONGODB_URI":      &cfg.Database.MongoURI,
		"BOLT_PATH":        &cfg.Database.BoltPath,
		"REDIS_ADDR":       &cfg.Database.RedisAddr,
		"LOG_LEVEL":        &cfg.Log.Level,
	}
	for name, dst := range strs {
		if v, ok := lookup(name); ok && v != "" {
			*dst = v
		}
	}

	if v, ok := lookup("REDIS_TTL"); ok && v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return errors.Wrap(err, "parsing REDIS_TTL")
		}
		cfg.Database.RedisTTL = ttl
	}
	return nil
}

// Load builds a validated Config from args, the YAML file named by
// -config.file and the environment.
func Load(args []string, lookup func(string) (string, bool)) (Config, error) {
	var (
		cfg        Config
		configFile string
	)
	f := flag.NewFlagSet("boto_sort", flag.ContinueOnError)
	f.StringVar(&configFile, "config.file", "", "YAML configuration file.")
	cfg.RegisterFlags(f)
	if err := f.Parse(args); err != nil {
		return cfg, err
	}

	if configFile != "" {
		if err := LoadFile(configFile, &cfg); err != nil {
			return cfg, err
		}
		// flags given explicitly win over the file
		if err := f.Parse(args); err != nil {
			return cfg, err
		}
	}

	if err := ApplyEnv(&cfg, lookup); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}
