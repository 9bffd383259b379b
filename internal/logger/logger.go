// Package logger is the process-wide structured log. Each process writes its own rotating
// file under the log directory, named after the process.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

const defaultProcess = "affirm"

// Logger stays nil until Init; the helpers below are no-ops until then.
var Logger *log.Logger

type Config struct {
	Debug bool
	Dir   string
	// Process names both the log file and the line prefix, e.g. "affirm-agent".
	Process string
}

func (c Config) process() string {
	if c.Process == "" {
		return defaultProcess
	}
	return c.Process
}

// File is the path Init writes to for this configuration.
func (c Config) File() string {
	return filepath.Join(c.Dir, c.process()+".log")
}

func Init(cfg Config) error {
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	var out io.Writer = &lumberjack.Logger{
		Filename:   cfg.File(),
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	}
	level := log.InfoLevel
	if cfg.Debug {
		// Mirror to the terminal as well.
		out = io.MultiWriter(os.Stderr, out)
		level = log.DebugLevel
	}

	Logger = log.NewWithOptions(out, log.Options{
		Prefix:          cfg.process(),
		Level:           level,
		ReportTimestamp: true,
		ReportCaller:    cfg.Debug,
	})
	return nil
}

func logAt(level log.Level, msg string, keyvals []interface{}) {
	if Logger == nil {
		return
	}
	Logger.Log(level, msg, keyvals...)
}

func Debug(msg string, keyvals ...interface{}) { logAt(log.DebugLevel, msg, keyvals) }

func Info(msg string, keyvals ...interface{}) { logAt(log.InfoLevel, msg, keyvals) }

func Warn(msg string, keyvals ...interface{}) { logAt(log.WarnLevel, msg, keyvals) }

func Error(msg string, keyvals ...interface{}) { logAt(log.ErrorLevel, msg, keyvals) }
