package config

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap/zapcore"

	"github.com/spacemeshos/vdfcache/log"
)

// LogEncoder defines a log encoder kind.
type LogEncoder = string

const (
	defaultLoggingLevel = zapcore.InfoLevel
	// ConsoleLogEncoder represents logging with plain text.
	ConsoleLogEncoder LogEncoder = log.ConsoleEncoder
	// JSONLogEncoder represents logging with JSON.
	JSONLogEncoder LogEncoder = log.JSONEncoder
)

// Names of the module loggers.
const (
	AppLogger       = "app"
	StoreLogger     = "store"
	SchedulerLogger = "scheduler"
	WorkerLogger    = "worker"
	SnapshotLogger  = "snapshot"
	APILogger       = "api"
	EventsLogger    = "events"
	MetricsLogger   = "metrics"
	VDFLogger       = "vdf"
)

// LoggerConfig holds the logging level for each module.
type LoggerConfig struct {
	Encoder              LogEncoder `mapstructure:"log-encoder"`
	AppLoggerLevel       string     `mapstructure:"app"`
	StoreLoggerLevel     string     `mapstructure:"store"`
	SchedulerLoggerLevel string     `mapstructure:"scheduler"`
	WorkerLoggerLevel    string     `mapstructure:"worker"`
	SnapshotLoggerLevel  string     `mapstructure:"snapshot"`
	APILoggerLevel       string     `mapstructure:"api"`
	EventsLoggerLevel    string     `mapstructure:"events"`
	MetricsLoggerLevel   string     `mapstructure:"metrics"`
	VDFLoggerLevel       string     `mapstructure:"vdf"`
}

func defaultLoggingConfig() LoggerConfig {
	return LoggerConfig{
		Encoder:              ConsoleLogEncoder,
		AppLoggerLevel:       defaultLoggingLevel.String(),
		StoreLoggerLevel:     defaultLoggingLevel.String(),
		SchedulerLoggerLevel: defaultLoggingLevel.String(),
		WorkerLoggerLevel:    defaultLoggingLevel.String(),
		SnapshotLoggerLevel:  defaultLoggingLevel.String(),
		APILoggerLevel:       defaultLoggingLevel.String(),
		EventsLoggerLevel:    defaultLoggingLevel.String(),
		MetricsLoggerLevel:   defaultLoggingLevel.String(),
		VDFLoggerLevel:       defaultLoggingLevel.String(),
	}
}

// Level returns the configured level of a module logger. Modules without a
// configured level log at the default level.
func (c LoggerConfig) Level(name string) (string, error) {
	loggers := map[string]string{}
	if err := mapstructure.Decode(c, &loggers); err != nil {
		return "", fmt.Errorf("error decoding mapstructure: %w", err)
	}
	if level, ok := loggers[name]; ok && level != "" {
		return level, nil
	}
	return defaultLoggingLevel.String(), nil
}

// Validate checks the encoder and every level.
func (c LoggerConfig) Validate() error {
	switch c.Encoder {
	case ConsoleLogEncoder, JSONLogEncoder:
	default:
		return fmt.Errorf("unknown log encoder %q", c.Encoder)
	}
	loggers := map[string]string{}
	if err := mapstructure.Decode(c, &loggers); err != nil {
		return fmt.Errorf("error decoding mapstructure: %w", err)
	}
	for name, level := range loggers {
		if name == "log-encoder" {
			continue
		}
		if _, err := log.ParseLevel(level); err != nil {
			return fmt.Errorf("logger %v: %w", name, err)
		}
	}
	return nil
}
