package server

import (
	"errors"
	"fmt"
	"time"

	"bombarena/game"
)

// Config 服务端参数（不可变，构造时传入）
type Config struct {
	Addr         string        `json:"addr"`
	MapPath      string        `json:"mapPath"`
	PollInterval time.Duration `json:"pollInterval"` // 主循环检查关闭标志的间隔
	SendQueue    int           `json:"sendQueue"`    // 每连接发送队列长度，满则断开
	MaxSessions  int           `json:"maxSessions"`
	Game         game.Config   `json:"game"`
}

// DefaultConfig 监听 1337 端口
func DefaultConfig() Config {
	return Config{
		Addr:         ":1337",
		MapPath:      "maps/default.map",
		PollInterval: 500 * time.Millisecond,
		SendQueue:    256,
		MaxSessions:  64,
		Game:         game.DefaultConfig(),
	}
}

// Validate 检查配置是否可用
func (c Config) Validate() error {
	switch {
	case c.PollInterval <= 0:
		return errors.New("poll interval must be positive")
	case c.SendQueue <= 0:
		return errors.New("send queue must be positive")
	case c.MaxSessions <= 0 || c.MaxSessions > 255:
		return errors.New("max sessions must be in [1,255]")
	}
	if err := c.Game.Validate(); err != nil {
		return fmt.Errorf("game config: %w", err)
	}
	return nil
}
