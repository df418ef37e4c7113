package game

import (
	"errors"
	"time"
)

// Config 模拟参数（不可变，构造时传入）
type Config struct {
	TickRate  int           `json:"tickRate"`  // 每秒 Tick 数
	BombTimer time.Duration `json:"bombTimer"` // 炸弹引爆时间
	FireTimer time.Duration `json:"fireTimer"` // 火焰持续时间
	BombCount int           `json:"bombCount"` // 同时可放置的炸弹数
	BombRange int           `json:"bombRange"` // 爆炸半径（格）
}

// DefaultConfig 60 TPS、3 秒引信、1 秒火焰、1 颗炸弹、半径 2
func DefaultConfig() Config {
	return Config{
		TickRate:  60,
		BombTimer: 3 * time.Second,
		FireTimer: time.Second,
		BombCount: 1,
		BombRange: 2,
	}
}

// TickInterval 两次 Tick 之间的名义间隔
func (c Config) TickInterval() time.Duration {
	return time.Second / time.Duration(c.TickRate)
}

// Validate 检查配置是否可用
func (c Config) Validate() error {
	switch {
	case c.TickRate <= 0 || c.TickRate > 1000:
		return errors.New("tick rate must be in [1,1000]")
	case c.BombTimer <= 0:
		return errors.New("bomb timer must be positive")
	case c.FireTimer <= 0:
		return errors.New("fire timer must be positive")
	case c.BombCount < 0 || c.BombCount > 255:
		return errors.New("bomb count must be in [0,255]")
	case c.BombRange < 0 || c.BombRange > MaxWidth:
		return errors.New("bomb range out of bounds")
	}
	return nil
}
