package config

import (
	"fmt"
	"os"
	"time"

	"github.com/natefinch/lumberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var Logger *zap.Logger

// InitLogger initializes the Zap logger with Lumberjack rotation under 'logs/'.
// LOG_LEVEL=debug widens the file core; APP_ENV=development mirrors to stderr.
func InitLogger() {
	if err := os.MkdirAll("logs", os.ModePerm); err != nil {
		panic(fmt.Sprintf("Failed to create logs directory: %v", err))
	}

	// Log rotation using Lumberjack, one file per day of first write
	logFile := &lumberjack.Logger{
		Filename:   fmt.Sprintf("logs/%s.log", time.Now().Format("2006-01-02")),
		MaxSize:    10, // Megabytes before rotation
		MaxBackups: 7,  // Keep the last 7 backups
		MaxAge:     28, // Days
		Compress:   true,
	}

	level := zapcore.InfoLevel
	if GetEnv("LOG_LEVEL", "info") == "debug" {
		level = zapcore.DebugLevel
	}

	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoder := zapcore.NewConsoleEncoder(encoderConfig)

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.AddSync(logFile), level),
	}
	if GetEnv("APP_ENV", "production") == "development" {
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(os.Stderr), level))
	}

	Logger = zap.New(zapcore.NewTee(cores...))

	// Ensure logs are flushed to the file
	defer Logger.Sync()
}
