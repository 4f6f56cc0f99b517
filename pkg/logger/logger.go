// Package logger configures the process-wide logrus instance with optional
// rotating file output.
package logger

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	// Logger is the shared instance; components derive entries from it
	// with WithField("component", ...).
	Logger = logrus.New()

	initMu sync.Mutex
)

// Config controls level, format and rotation.
type Config struct {
	Level      string // debug, info, warn, error
	OutputFile string // empty: stdout only
	MaxSize    int    // MB per file before rotation
	MaxBackups int    // old files kept
	MaxAge     int    // days old files kept
	Compress   bool
}

// Init applies the config to both Logger and the global logrus, so entries
// created with logrus.WithField elsewhere share the same sinks.
func Init(config Config) error {
	initMu.Lock()
	defer initMu.Unlock()

	level, err := logrus.ParseLevel(config.Level)
	if err != nil {
		level = logrus.InfoLevel
	}

	writers := []io.Writer{os.Stdout}
	if config.OutputFile != "" {
		if err := os.MkdirAll(filepath.Dir(config.OutputFile), 0o755); err != nil {
			return err
		}
		writers = append(writers, &lumberjack.Logger{
			Filename:   config.OutputFile,
			MaxSize:    config.MaxSize,
			MaxBackups: config.MaxBackups,
			MaxAge:     config.MaxAge,
			Compress:   config.Compress,
		})
	}
	out := io.MultiWriter(writers...)

	formatter := &logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "06-01-02 15:04:05",
	}

	Logger.SetLevel(level)
	Logger.SetOutput(out)
	Logger.SetFormatter(formatter)

	logrus.SetLevel(level)
	logrus.SetOutput(out)
	logrus.SetFormatter(formatter)
	return nil
}

func Debug(args ...interface{})                 { Logger.Debug(args...) }
func Debugf(format string, args ...interface{}) { Logger.Debugf(format, args...) }
func Info(args ...interface{})                  { Logger.Info(args...) }
func Infof(format string, args ...interface{})  { Logger.Infof(format, args...) }
func Warn(args ...interface{})                  { Logger.Warn(args...) }
func Warnf(format string, args ...interface{})  { Logger.Warnf(format, args...) }
func Error(args ...interface{})                 { Logger.Error(args...) }
func Errorf(format string, args ...interface{}) { Logger.Errorf(format, args...) }

func WithField(key string, value interface{}) *logrus.Entry {
	return Logger.WithField(key, value)
}
