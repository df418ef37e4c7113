package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap/zapcore"

	"bombarena/game"
	"bombarena/logging"
	"bombarena/server"
)

// 入口：加载地图，启动 HTTP + WebSocket 服务与主循环
func main() {
	cfg := server.DefaultConfig()
	var (
		logPath   string
		logFormat string
		logLevel  string
		logStderr bool
	)
	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "server listen address, e.g. :1337")
	flag.StringVar(&cfg.MapPath, "map", cfg.MapPath, "map file")
	flag.DurationVar(&cfg.PollInterval, "poll", cfg.PollInterval, "loop poll interval")
	flag.IntVar(&cfg.SendQueue, "send-queue", cfg.SendQueue, "per-connection send queue length")
	flag.IntVar(&cfg.MaxSessions, "max-sessions", cfg.MaxSessions, "maximum concurrent connections")
	flag.IntVar(&cfg.Game.TickRate, "tick-rate", cfg.Game.TickRate, "ticks per second")
	flag.DurationVar(&cfg.Game.BombTimer, "bomb-timer", cfg.Game.BombTimer, "bomb fuse")
	flag.DurationVar(&cfg.Game.FireTimer, "fire-timer", cfg.Game.FireTimer, "fire duration")
	flag.IntVar(&cfg.Game.BombCount, "bomb-count", cfg.Game.BombCount, "bombs per player")
	flag.IntVar(&cfg.Game.BombRange, "bomb-range", cfg.Game.BombRange, "blast range")
	flag.StringVar(&logPath, "log", "app.log", "log file")
	flag.StringVar(&logFormat, "log-format", "console", "console or json")
	flag.StringVar(&logLevel, "log-level", "debug", "minimum log level")
	flag.BoolVar(&logStderr, "log-stderr", true, "also log to stderr")
	flag.Parse()

	level, err := zapcore.ParseLevel(logLevel)
	if err != nil {
		panic(err)
	}
	// 使用 zap 写入滚动日志文件
	if err := logging.Init(logging.Options{Path: logPath, Format: logFormat, Level: level, Stderr: logStderr}); err != nil {
		panic(err)
	}
	defer logging.Sync()

	// 资源错误直接退出，不重试
	f, err := os.Open(cfg.MapPath)
	if err != nil {
		logging.Log.Fatalf("open map: %v", err)
	}
	m, err := game.ParseMap(f)
	f.Close()
	if err != nil {
		logging.Log.Fatalf("load map %s: %v", cfg.MapPath, err)
	}

	srv, err := server.New(cfg, m)
	if err != nil {
		logging.Log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	httpSrv := &http.Server{Addr: cfg.Addr, Handler: srv.Routes()}
	go func() {
		logging.Log.Infof("bombarena listening on %s, map %s", cfg.Addr, cfg.MapPath)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Log.Fatalf("listen: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		logging.Log.Info("shutting down...")
		srv.Shutdown()
	}()
	if err := srv.Run(context.Background()); err != nil {
		logging.Log.Errorw("server loop", "err", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(shutdownCtx)
}
