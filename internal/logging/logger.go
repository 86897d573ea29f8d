package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Options struct {
	Level      string // debug|info|warn|error
	Directory  string // empty disables file output
	MaxSize    int    // megabytes
	MaxBackups int
	MaxAge     int // days
	Compress   bool
	Console    bool
}

// New builds a logger that tees a console core and, when a directory is
// set, one rotating JSON file per level. The returned AtomicLevel governs
// every core and can be changed at runtime.
func New(opts Options) (*zap.Logger, zap.AtomicLevel, error) {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if opts.Level != "" {
		if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
			return nil, level, fmt.Errorf("log level %q: %w", opts.Level, err)
		}
	}

	var cores []zapcore.Core
	if opts.Directory != "" {
		if err := os.MkdirAll(opts.Directory, 0o755); err != nil {
			return nil, level, fmt.Errorf("could not create log directory: %w", err)
		}
		enc := zapcore.EncoderConfig{
			MessageKey:   "message",
			LevelKey:     "level",
			TimeKey:      "time",
			CallerKey:    "caller",
			EncodeLevel:  zapcore.CapitalLevelEncoder,
			EncodeTime:   zapcore.ISO8601TimeEncoder,
			EncodeCaller: zapcore.ShortCallerEncoder,
		}
		for _, l := range []zapcore.Level{zapcore.DebugLevel, zapcore.InfoLevel, zapcore.WarnLevel, zapcore.ErrorLevel} {
			cores = append(cores, fileCore(opts, l, level, enc))
		}
	}
	if opts.Console || len(cores) == 0 {
		cores = append(cores, consoleCore(level))
	}
	return zap.New(zapcore.NewTee(cores...), zap.AddCaller()), level, nil
}

// fileCore writes exactly one level to its own rotating file.
func fileCore(opts Options, only zapcore.Level, lvl zap.AtomicLevel, enc zapcore.EncoderConfig) zapcore.Core {
	w := zapcore.AddSync(&lumberjack.Logger{
		Filename:   filepath.Join(opts.Directory, fmt.Sprintf("testseries-%s.log", only.String())),
		MaxSize:    opts.MaxSize,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAge,
		Compress:   opts.Compress,
	})
	enabled := zap.LevelEnablerFunc(func(l zapcore.Level) bool {
		return l == only && lvl.Enabled(l)
	})
	return zapcore.NewCore(zapcore.NewJSONEncoder(enc), w, enabled)
}

func consoleCore(lvl zap.AtomicLevel) zapcore.Core {
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return zapcore.NewCore(zapcore.NewConsoleEncoder(cfg), zapcore.AddSync(os.Stdout), lvl)
}
