package gologger

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-whatsflow/core"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLogger satisfies glog.Logger and glog.FieldsLogger on top of a zap core.
// Variadic args are read as key/value pairs.
type ZapLogger struct {
	base  *zap.Logger
	sugar *zap.SugaredLogger
}

func NewZapLogger(base *zap.Logger) *ZapLogger {
	if base == nil {
		base = zap.NewNop()
	}
	return &ZapLogger{base: base, sugar: base.Sugar()}
}

// New builds the process logger from config. out defaults to stdout.
func New(cfg core.LogConfig, out io.Writer) (*ZapLogger, error) {
	level := zapcore.InfoLevel
	if raw := strings.TrimSpace(cfg.Level); raw != "" {
		parsed, err := zapcore.ParseLevel(strings.ToLower(raw))
		if err != nil {
			return nil, fmt.Errorf("gologger: invalid log level %q", cfg.Level)
		}
		level = parsed
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "timestamp"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "", "json":
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewJSONEncoder(encCfg)
	case "console":
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
	default:
		return nil, fmt.Errorf("gologger: invalid log format %q", cfg.Format)
	}

	if out == nil {
		out = os.Stdout
	}
	zcore := zapcore.NewCore(encoder, zapcore.AddSync(out), level)
	return NewZapLogger(zap.New(zcore, zap.AddCaller(), zap.AddCallerSkip(1), zap.AddStacktrace(zapcore.ErrorLevel))), nil
}

func (l *ZapLogger) Trace(msg string, args ...any) { l.sugar.Debugw(msg, args...) }
func (l *ZapLogger) Debug(msg string, args ...any) { l.sugar.Debugw(msg, args...) }
func (l *ZapLogger) Info(msg string, args ...any)  { l.sugar.Infow(msg, args...) }
func (l *ZapLogger) Warn(msg string, args ...any)  { l.sugar.Warnw(msg, args...) }
func (l *ZapLogger) Error(msg string, args ...any) { l.sugar.Errorw(msg, args...) }
func (l *ZapLogger) Fatal(msg string, args ...any) { l.sugar.Fatalw(msg, args...) }

func (l *ZapLogger) WithContext(context.Context) glog.Logger {
	return l
}

func (l *ZapLogger) WithFields(fields map[string]any) glog.Logger {
	if len(fields) == 0 {
		return l
	}
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	zfields := make([]zap.Field, 0, len(keys))
	for _, key := range keys {
		zfields = append(zfields, zap.Any(key, fields[key]))
	}
	return NewZapLogger(l.base.With(zfields...))
}

func (l *ZapLogger) Named(name string) *ZapLogger {
	name = strings.TrimSpace(name)
	if name == "" {
		return l
	}
	return NewZapLogger(l.base.Named(name))
}

func (l *ZapLogger) Zap() *zap.Logger {
	return l.base
}

func (l *ZapLogger) Sync() error {
	return l.base.Sync()
}

// Provider hands out named children of one root logger.
type Provider struct {
	root *ZapLogger
}

func NewProvider(root *ZapLogger) *Provider {
	if root == nil {
		root = NewZapLogger(nil)
	}
	return &Provider{root: root}
}

func (p *Provider) GetLogger(name string) glog.Logger {
	if p == nil || p.root == nil {
		return glog.Nop()
	}
	return p.root.Named(name)
}

var (
	_ glog.Logger         = (*ZapLogger)(nil)
	_ glog.FieldsLogger   = (*ZapLogger)(nil)
	_ glog.LoggerProvider = (*Provider)(nil)
)
