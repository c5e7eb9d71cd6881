package logging

import (
	"flag"
	"io"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
)

var ErrInvalidLogConfig = errors.New("invalid log configuration")

type Config struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func (cfg *Config) RegisterFlags(f *flag.FlagSet) {
	f.StringVar(&cfg.Level, "log.level", "info", "Only log messages with the given severity or above: debug, info, warn, error.")
	f.StringVar(&cfg.Format, "log.format", "logfmt", "Output format of log messages: logfmt or json.")
}

func (cfg *Config) Validate() error {
	if _, err := levelOption(cfg.Level); err != nil {
		return err
	}
	if cfg.Format != "logfmt" && cfg.Format != "json" {
		return errors.Wrapf(ErrInvalidLogConfig, "unknown format %q", cfg.Format)
	}
	return nil
}

func levelOption(lvl string) (level.Option, error) {
	switch lvl {
	case "debug":
		return level.AllowDebug(), nil
	case "info":
		return level.AllowInfo(), nil
	case "warn":
		return level.AllowWarn(), nil
	case "error":
		return level.AllowError(), nil
	}
	return nil, errors.Wrapf(ErrInvalidLogConfig, "unknown level %q", lvl)
}

// New returns a leveled logger writing to w.
func New(cfg Config, w io.Writer) (log.Logger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	lvl, _ := levelOption(cfg.Level)

	var logger log.Logger
	if cfg.Format == "json" {
		logger = log.NewJSONLogger(log.NewSyncWriter(w))
	} else {
		logger = log.NewLogfmtLogger(log.NewSyncWriter(w))
	}
	logger = level.NewFilter(logger, lvl)
	return log.With(logger, "ts", log.DefaultTimestampUTC, "caller", log.DefaultCaller), nil
}
