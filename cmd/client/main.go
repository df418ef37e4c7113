// 终端客户端：连接服务端，镜像比赛并转发按键
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/gdamore/tcell/v2"

	"bombarena/client"
	"bombarena/game"
	"bombarena/logging"
	"bombarena/view"
)

func main() {
	var (
		addr    string
		name    string
		logPath string
	)
	cfg := game.DefaultConfig()
	flag.StringVar(&addr, "addr", "ws://localhost:1337/ws", "server websocket url")
	flag.StringVar(&name, "name", os.Getenv("USER"), "display name")
	flag.StringVar(&logPath, "log", "client.log", "log file")
	// 以下参数必须与服务端一致
	flag.IntVar(&cfg.TickRate, "tick-rate", cfg.TickRate, "ticks per second")
	flag.DurationVar(&cfg.BombTimer, "bomb-timer", cfg.BombTimer, "bomb fuse")
	flag.DurationVar(&cfg.FireTimer, "fire-timer", cfg.FireTimer, "fire duration")
	flag.IntVar(&cfg.BombCount, "bomb-count", cfg.BombCount, "bombs per player")
	flag.IntVar(&cfg.BombRange, "bomb-range", cfg.BombRange, "blast range")
	flag.Parse()

	if err := run(addr, name, logPath, cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(addr, name, logPath string, cfg game.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	opts := logging.DefaultOptions()
	opts.Path = logPath
	if err := logging.Init(opts); err != nil {
		return err
	}
	defer logging.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, err := client.Dial(ctx, addr, cfg)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer c.Close()
	if err := c.Join(name); err != nil {
		return err
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		return err
	}
	if err := screen.Init(); err != nil {
		return err
	}
	defer screen.Fini()
	renderer := view.NewRenderer(screen)

	runErr := make(chan error, 1)
	go func() { runErr <- c.Run(ctx) }()

	events := make(chan tcell.Event, 16)
	go func() {
		for {
			ev := screen.PollEvent()
			if ev == nil {
				close(events)
				return
			}
			events <- ev
		}
	}()

	redraw := func() { c.View(renderer.Draw) }
	redraw()
	for {
		select {
		case err := <-runErr:
			logging.Log.Infow("connection closed", "err", err)
			return err
		case <-c.Updates():
			redraw()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			switch ev := ev.(type) {
			case *tcell.EventResize:
				screen.Sync()
				redraw()
			case *tcell.EventKey:
				if quit := handleKey(c, view.Translate(ev)); quit {
					return nil
				}
			}
		}
	}
}

// handleKey 比赛中发送动作位，大厅里发送命令；服务端会丢弃当前状态不合法的消息
func handleKey(c *client.Client, in view.Input) bool {
	var err error
	switch in.Command {
	case view.CmdQuit:
		return true
	case view.CmdReady:
		err = c.Ready()
	case view.CmdNotReady:
		err = c.NotReady()
	case view.CmdDespawn:
		err = c.Despawn()
	case view.CmdNextSpawn:
		pos, ok := game.NoPosition, false
		c.View(func(m *client.Mirror) {
			after := game.NoPosition
			if self, found := m.Self(); found {
				after = self.Spawn
			}
			pos, ok = m.NextFreeSpawn(after)
		})
		if ok {
			err = c.Spawn(pos)
		}
	case view.CmdNone:
		if in.Action != game.ActionNone {
			err = c.Act(in.Action)
		}
	}
	if err != nil {
		logging.Log.Warnw("send", "err", err)
	}
	return false
}
