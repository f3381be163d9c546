package logging

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/labstack/gommon/log"
	"github.com/ziflex/lecho/v3"
)

var levels = map[string]log.Lvl{
	"debug": log.DEBUG,
	"info":  log.INFO,
	"warn":  log.WARN,
	"error": log.ERROR,
	"off":   log.OFF,
}

// Logger writes to stdout, or to a dated file when logFilePath is set.
// Unknown levels fall back to debug.
func Logger(logFilePath, level string) *lecho.Logger {
	lvl, ok := levels[strings.ToLower(level)]
	if !ok {
		lvl = log.DEBUG
	}
	logger := lecho.New(
		os.Stdout,
		lecho.WithLevel(lvl),
		lecho.WithTimestamp(),
	)
	if logFilePath != "" {
		file, err := OpenLogFile(logFilePath, time.Now())
		if err != nil {
			logger.Errorf("failed to open log file %s: %v", logFilePath, err)
			return logger
		}
		logger.SetOutput(file)
	}
	return logger
}

// OpenLogFile appends to path with the day stamped before its extension,
// so restarts on the same day share one file.
func OpenLogFile(path string, now time.Time) (*os.File, error) {
	return os.OpenFile(DatedPath(path, now), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0664)
}

func DatedPath(path string, now time.Time) string {
	extension := filepath.Ext(path)
	stamp := now.Format("-2006-01-02")
	if extension == "" {
		return path + stamp + ".log"
	}
	return strings.TrimSuffix(path, extension) + stamp + extension
}
