package app

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/DeRuina/timberjack"
	"go.uber.org/zap/zapcore"
)

type fileLogSettings struct {
	Path           string
	MaxSizeMB      int
	MaxBackups     int
	MaxAgeDays     int
	Compress       bool
	RotateInterval time.Duration
}

// newFileSyncer creates the rotating file writer shared by the file logger core.
func newFileSyncer(s fileLogSettings) (zapcore.WriteSyncer, *timberjack.Logger, error) {
	logDir := filepath.Dir(s.Path)
	if logDir != "." && logDir != "/" {
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return nil, nil, fmt.Errorf("failed to ensure log directory %s exists: %w", logDir, err)
		}
	}
	tj := &timberjack.Logger{
		Filename:         s.Path,
		MaxSize:          s.MaxSizeMB,
		MaxBackups:       s.MaxBackups,
		MaxAge:           s.MaxAgeDays,
		Compress:         s.Compress,
		LocalTime:        true,
		RotationInterval: s.RotateInterval,
	}
	return zapcore.AddSync(tj), tj, nil
}
