package server

import (
	"sync"

	"bombarena/game"
)

// pendingInputs 本 Tick 收到的动作意图，主循环写入、Tick 线程取走。
// 同一 Tick 内多条动作按位或合并；没有收到的玩家视为无动作
type pendingInputs struct {
	mu      sync.Mutex
	actions map[game.PlayerID]game.Action
	leaves  []game.PlayerID
}

func newPendingInputs() *pendingInputs {
	return &pendingInputs{actions: make(map[game.PlayerID]game.Action)}
}

// Submit 记录意图（不立即改变状态）
func (p *pendingInputs) Submit(id game.PlayerID, a game.Action) {
	p.mu.Lock()
	p.actions[id] |= a
	p.mu.Unlock()
}

// RequestLeave 断线玩家在下一个 Tick 以 DIE 位移出
func (p *pendingInputs) RequestLeave(id game.PlayerID) {
	p.mu.Lock()
	p.leaves = append(p.leaves, id)
	p.mu.Unlock()
}

// drain 取走当前缓冲，返回本 Tick 的动作表（已并入 DIE）
func (p *pendingInputs) drain() map[game.PlayerID]game.Action {
	p.mu.Lock()
	actions, leaves := p.actions, p.leaves
	p.actions = make(map[game.PlayerID]game.Action, len(actions))
	p.leaves = nil
	p.mu.Unlock()

	for _, id := range leaves {
		actions[id] = game.ActionDie
	}
	return actions
}
