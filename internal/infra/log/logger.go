package logs

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"rewardnet/config"

	"github.com/pkg/errors"
	"go.uber.org/fx"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Params defines the parameters required for the logger
type Params struct {
	fx.In

	Lc     fx.Lifecycle `optional:"true"`
	Config *config.Config
}

// New creates and initializes slog.Logger
func New(params Params) (*slog.Logger, error) {
	level, err := parseLogLevel(params.Config.Env.Log.Level)
	if err != nil {
		return nil, err
	}

	var out io.Writer = os.Stdout
	if rotator := newRotator(params.Config.Env.Log.File); rotator != nil {
		out = io.MultiWriter(os.Stdout, rotator)
		if params.Lc != nil {
			params.Lc.Append(fx.Hook{
				OnStop: func(_ context.Context) error {
					return rotator.Close()
				},
			})
		}
	}

	return newLogger(out, level, params.Config.Env.Log.Pretty), nil
}

func newLogger(out io.Writer, level slog.Level, pretty bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if pretty {
		return slog.New(slog.NewTextHandler(out, opts))
	}

	return slog.New(slog.NewJSONHandler(out, opts))
}

// newRotator returns nil when no log file is configured.
func newRotator(cfg config.LogFile) *lumberjack.Logger {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil
	}

	return &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
}

// parseLogLevel converts string log level to slog.Level
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, errors.Errorf("unknown log level: %s", level)
	}
}
