package common

import (
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var logger = zap.NewNop()

func GetLogger() *zap.Logger {
	return logger
}

func InitLog(conf Config) {
	logger = NewLogger(conf)
}

// NewLogger builds a console encoded zap logger. Output goes to a rotated
// file when LogPath is set and to stdout otherwise.
func NewLogger(conf Config) *zap.Logger {
	var writeSyncer zapcore.WriteSyncer
	if conf.LogPath != "" {
		// 配置日志轮转
		writeSyncer = zapcore.AddSync(&lumberjack.Logger{
			Filename:   conf.LogPath, // 日志文件路径
			MaxSize:    10,           // 单个文件最大大小（MB）
			MaxBackups: 10,           // 保留最大备份数
			MaxAge:     7,            // 保留最大天数（天）
			LocalTime:  true,
		})
	} else {
		writeSyncer = zapcore.AddSync(os.Stdout)
	}

	// 自定义时间编码器：使用本地时间并格式化
	customTimeEncoder := func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.Local().Format("2006-01-02 15:04:05.000"))
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "T",
		LevelKey:       "L",
		MessageKey:     "M",
		CallerKey:      "C",
		NameKey:        "N",
		StacktraceKey:  "S",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder, // 级别大写（INFO/WARN/ERROR）
		EncodeTime:     customTimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder, // 短路径，如 pkg/file.go:123
	}

	encoder := zapcore.NewConsoleEncoder(encoderConfig)

	level, err := zapcore.ParseLevel(conf.LogLevel)
	if err != nil {
		level = zapcore.InfoLevel
	}

	core := zapcore.NewCore(encoder, writeSyncer, level)
	return zap.New(core, zap.AddCaller())
}
