package logging

import (
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	globalFileLogger *zap.Logger
	globalLoggersMu  sync.RWMutex
)

// Options selects the level and identity of the application logger.
type Options struct {
	AppEnv      string
	Level       string
	LogFilePath string
	Console     zapcore.WriteSyncer // defaults to stdout
}

// bracketLevelEncoder renders levels as [INFO].
func bracketLevelEncoder(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString("[" + level.CapitalString() + "]")
}

var levelColors = map[zapcore.Level]string{
	zapcore.DebugLevel:  "\x1b[35m", // Magenta
	zapcore.InfoLevel:   "\x1b[32m", // Green
	zapcore.WarnLevel:   "\x1b[33m", // Yellow
	zapcore.ErrorLevel:  "\x1b[31m", // Red
	zapcore.DPanicLevel: "\x1b[31m",
	zapcore.PanicLevel:  "\x1b[31m",
	zapcore.FatalLevel:  "\x1b[31m",
}

// colorBracketLevelEncoder renders levels as [INFO] wrapped in an ANSI color for terminals.
func colorBracketLevelEncoder(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	color, ok := levelColors[level]
	if !ok {
		bracketLevelEncoder(level, enc)
		return
	}
	enc.AppendString(color + "[" + level.CapitalString() + "]\x1b[0m")
}

// CreateFileConsoleEncoderConfigs returns the console (colored) and file (plain) encoder configs.
func CreateFileConsoleEncoderConfigs() (zapcore.EncoderConfig, zapcore.EncoderConfig) {
	consoleEncoderCfg := zap.NewDevelopmentEncoderConfig()
	consoleEncoderCfg.EncodeLevel = colorBracketLevelEncoder
	consoleEncoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	consoleEncoderCfg.EncodeCaller = zapcore.ShortCallerEncoder

	fileEncoderCfg := zap.NewProductionEncoderConfig()
	fileEncoderCfg.EncodeLevel = bracketLevelEncoder
	fileEncoderCfg.TimeKey = "timestamp"
	fileEncoderCfg.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	fileEncoderCfg.EncodeCaller = zapcore.ShortCallerEncoder

	return consoleEncoderCfg, fileEncoderCfg
}

// InitializeLogger creates the file/console application logger. Extra cores (such as
// the relay core that forwards entries to a collector) are teed in after the file core.
func InitializeLogger(opts Options, fileSyncer zapcore.WriteSyncer, extra ...zapcore.Core) *zap.Logger {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
		fmt.Fprintf(os.Stderr, "[WARN] Invalid LOG_LEVEL '%s' for file/console logger, defaulting to info: %v\n", opts.Level, err)
		level = zapcore.InfoLevel
	}

	consoleEncoderCfg, fileEncoderCfg := CreateFileConsoleEncoderConfigs()
	consoleSyncer := opts.Console
	if consoleSyncer == nil {
		consoleSyncer = zapcore.Lock(os.Stdout)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleEncoderCfg), consoleSyncer, level),
	}
	if fileSyncer != nil {
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(fileEncoderCfg), fileSyncer, level))
	}
	cores = append(cores, extra...)

	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	logger.Info("======================================================================================")
	logger.Info("File/Console application logger initialized",
		zap.String("environment", opts.AppEnv),
		zap.String("configuredLevel", opts.Level),
		zap.String("effectiveLevel", level.String()),
		zap.String("logFile", opts.LogFilePath),
	)
	return logger
}

// SetGlobalLogger sets the global logger instance.
func SetGlobalLogger(logger *zap.Logger) {
	globalLoggersMu.Lock()
	defer globalLoggersMu.Unlock()
	globalFileLogger = logger
}

// GetFileLogger returns the initialized global file/console logger.
func GetFileLogger() *zap.Logger {
	globalLoggersMu.RLock()
	l := globalFileLogger
	globalLoggersMu.RUnlock()

	if l == nil {
		fallbackLogger, _ := zap.NewProduction()
		fallbackLogger.Warn("Global file/console logger accessed before being set!")
		return fallbackLogger
	}
	return l
}
