// Package logging 全局 zap 日志，写入滚动文件，可选同时输出到 stderr
package logging

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log 全局 SugaredLogger。Init 之前为空实现，测试里无需初始化
var Log = zap.NewNop().Sugar()

// Options 日志输出配置
type Options struct {
	Path   string        // 日志文件路径，空则不写文件
	Format string        // console | json
	Level  zapcore.Level // 最低级别
	Stderr bool          // 同时输出到 stderr
}

// DefaultOptions 写 app.log，console 格式，Debug 级别
func DefaultOptions() Options {
	return Options{Path: "app.log", Format: "console", Level: zapcore.DebugLevel}
}

// Init 按配置替换全局 Log
func Init(opts Options) error {
	l, err := New(opts)
	if err != nil {
		return err
	}
	Log = l.Sugar()
	return nil
}

// New 构建 logger，不修改全局状态
func New(opts Options) (*zap.Logger, error) {
	encCfg := zapcore.EncoderConfig{
		TimeKey:       "ts",
		LevelKey:      "level",
		NameKey:       "logger",
		CallerKey:     "caller",
		MessageKey:    "msg",
		StacktraceKey: "stack",
		LineEnding:    zapcore.DefaultLineEnding,
		EncodeLevel:   zapcore.CapitalLevelEncoder,
		EncodeTime:    zapcore.ISO8601TimeEncoder,
		EncodeCaller:  zapcore.ShortCallerEncoder,
	}
	var encoder zapcore.Encoder
	switch opts.Format {
	case "", "console":
		encoder = zapcore.NewConsoleEncoder(encCfg)
	case "json":
		encoder = zapcore.NewJSONEncoder(encCfg)
	default:
		return nil, fmt.Errorf("logging: unknown format %q", opts.Format)
	}

	var cores []zapcore.Core
	if opts.Path != "" {
		// 10MB 每文件，保留 3 个备份，最长 7 天
		lj := &lumberjack.Logger{
			Filename:   opts.Path,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     7,
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(lj), opts.Level))
	}
	if opts.Stderr {
		cores = append(cores, zapcore.NewCore(encoder.Clone(), zapcore.Lock(os.Stderr), opts.Level))
	}
	if len(cores) == 0 {
		return zap.NewNop(), nil
	}
	return zap.New(zapcore.NewTee(cores...), zap.AddCaller()), nil
}

// Set 直接替换全局 Log，测试里配合 zaptest/observer 使用
func Set(l *zap.Logger) { Log = l.Sugar() }

// Sync 清理和同步缓冲
func Sync() {
	if Log != nil {
		_ = Log.Sync()
	}
}
