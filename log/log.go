// Package log provides the logging setup shared by vdfcache components.
//
// Components never build their own loggers: they receive a named *zap.Logger from
// the node and default to zap.NewNop() when none is given.
package log

import (
	"fmt"
	"io"
	"math/big"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	// ConsoleEncoder logs in plain text.
	ConsoleEncoder = "console"
	// JSONEncoder logs one JSON object per line.
	JSONEncoder = "json"
)

// where logs go by default.
var logWriter io.Writer = os.Stdout

// NewNop creates silent logger.
func NewNop() *zap.Logger {
	return zap.NewNop()
}

// NewWithLevel creates a logger with a fixed level and with a set of (optional) hooks.
func NewWithLevel(module string,
	level zap.AtomicLevel,
	encoder zapcore.Encoder,
	hooks ...func(zapcore.Entry) error,
) *zap.Logger {
	return NewWithWriter(zapcore.AddSync(logWriter), module, level, encoder, hooks...)
}

// NewWithWriter is NewWithLevel for an explicit destination.
func NewWithWriter(w zapcore.WriteSyncer,
	module string,
	level zap.AtomicLevel,
	encoder zapcore.Encoder,
	hooks ...func(zapcore.Entry) error,
) *zap.Logger {
	core := zapcore.NewCore(encoder, w, level)
	return zap.New(zapcore.RegisterHooks(core, hooks...)).Named(module)
}

// Encoder returns the zap encoder for the given name. Unknown names fall back to console.
func Encoder(name string) zapcore.Encoder {
	if strings.EqualFold(name, JSONEncoder) {
		cfg := zap.NewProductionEncoderConfig()
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		return zapcore.NewJSONEncoder(cfg)
	}
	return zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
}

// ParseLevel parses a textual level into an atomic level that can be changed later.
func ParseLevel(text string) (zap.AtomicLevel, error) {
	lvl := zap.NewAtomicLevel()
	if text == "" {
		return lvl, nil
	}
	if err := lvl.UnmarshalText([]byte(text)); err != nil {
		return lvl, fmt.Errorf("parse log level %q: %w", text, err)
	}
	return lvl, nil
}

// Levels tracks the atomic level of every named module logger so that levels can be
// changed at runtime.
type Levels struct {
	root   *zap.Logger
	levels map[string]zap.AtomicLevel
}

// NewLevels wraps the root logger.
func NewLevels(root *zap.Logger) *Levels {
	return &Levels{root: root, levels: make(map[string]zap.AtomicLevel)}
}

// Named returns a child logger for the module, gated by the given level.
func (l *Levels) Named(name, level string) (*zap.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	l.levels[name] = lvl
	logger := l.root.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return &levelCore{Core: core, level: lvl}
	}))
	return logger.Named(name), nil
}

// Set updates the level of an existing module logger.
func (l *Levels) Set(name, level string) error {
	lvl, ok := l.levels[name]
	if !ok {
		return fmt.Errorf("cannot find logger %v", name)
	}
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("unmarshal text: %w", err)
	}
	return nil
}

// levelCore narrows the enabled levels of the wrapped core.
type levelCore struct {
	zapcore.Core
	level zapcore.LevelEnabler
}

func (c *levelCore) Enabled(lvl zapcore.Level) bool {
	return c.level.Enabled(lvl) && c.Core.Enabled(lvl)
}

func (c *levelCore) With(fields []zapcore.Field) zapcore.Core {
	return &levelCore{Core: c.Core.With(fields), level: c.level}
}

func (c *levelCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.level.Enabled(ent.Level) {
		return ce
	}
	return c.Core.Check(ent, ce)
}

// ZBigInt logs a big integer as its decimal form.
func ZBigInt(name string, v *big.Int) zap.Field {
	if v == nil {
		return zap.Skip()
	}
	return zap.Stringer(name, v)
}

// ZShortBigInt logs the first and last digits of a big integer, enough to tell
// moduli and seeds apart in the log without printing hundreds of digits.
func ZShortBigInt(name string, v *big.Int) zap.Field {
	if v == nil {
		return zap.Skip()
	}
	return zap.String(name, Shorten(v.String(), 8))
}

// Shorten keeps n leading and trailing characters of s.
func Shorten(s string, n int) string {
	if len(s) <= 2*n+3 {
		return s
	}
	return s[:n] + "..." + s[len(s)-n:]
}
