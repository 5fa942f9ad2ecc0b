package lib

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/labstack/gommon/log"
	"github.com/ziflex/lecho/v3"
)

// Logger writes to STDOUT, or to a dated file next to logFilePath when set.
func Logger(logFilePath string) *lecho.Logger {
	logger := lecho.New(
		os.Stdout,
		lecho.WithLevel(log.DEBUG),
		lecho.WithTimestamp(),
	)
	if logFilePath != "" {
		file, err := LoggingFile(logFilePath, time.Now())
		if err != nil {
			logger.Errorf("failed to create logging file: %v", err)
			return logger
		}
		logger.SetOutput(file)
	}
	return logger
}

// LoggingFile opens the log file for the given day, e.g. billinghub.log
// becomes billinghub-2025-03-10.log. Existing files are appended to.
func LoggingFile(path string, day time.Time) (*os.File, error) {
	extension := filepath.Ext(path)
	suffix := day.Format("-2006-01-02")
	if extension != "" {
		path = strings.TrimSuffix(path, extension) + suffix + extension
	} else {
		path = path + suffix + ".log"
	}
	return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0664)
}
