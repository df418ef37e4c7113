package server

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"bombarena/game"
	"bombarena/protocol"
	"bombarena/scheduler"
)

// Match 一局比赛：权威模拟由 Tick 线程独占推进，
// 主循环只通过 inputs 投递动作，通过 Snapshot 只读
type Match struct {
	ID string

	mu       sync.Mutex // 模拟锁
	engine   *game.Engine
	tick     uint64
	interval time.Duration

	inputs  *pendingInputs
	sched   *scheduler.Scheduler
	metrics *Metrics
	post    func(tickEvent, <-chan struct{})
}

// newMatch 在地图副本上放置所有已出生的玩家
func newMatch(cfg game.Config, m *game.Map, spawns map[game.PlayerID]game.Position, metrics *Metrics, post func(tickEvent, <-chan struct{})) *Match {
	e := game.NewEngine(cfg, m)
	for id, pos := range spawns {
		e.AddPlayer(id, pos)
	}
	return &Match{
		ID:       uuid.NewString(),
		engine:   e,
		interval: cfg.TickInterval(),
		inputs:   newPendingInputs(),
		metrics:  metrics,
		post:     post,
	}
}

// Submit 记录玩家本 Tick 的动作
func (m *Match) Submit(id game.PlayerID, a game.Action) { m.inputs.Submit(id, a) }

// Leave 断线玩家在下一个 Tick 移出
func (m *Match) Leave(id game.PlayerID) { m.inputs.RequestLeave(id) }

// Tick 已推进的 Tick 数
func (m *Match) Tick() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tick
}

// Snapshot 当前模拟状态的深拷贝
func (m *Match) Snapshot() (uint64, game.Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tick, m.engine.Snapshot()
}

// step 推进一个 Tick，返回要广播的动作（按编号升序）与存活人数
func (m *Match) step() (uint64, protocol.ActionsNotice, int) {
	actions := m.inputs.drain()

	m.mu.Lock()
	m.tick++
	n := m.tick
	m.engine.Advance(actions, game.TickTime(n, m.interval))
	alive := m.engine.AliveCount()
	m.mu.Unlock()

	notice := protocol.ActionsNotice{Actions: make([]protocol.PlayerAction, 0, len(actions))}
	for id, a := range actions {
		notice.Actions = append(notice.Actions, protocol.PlayerAction{ID: id, Action: a})
	}
	sort.Slice(notice.Actions, func(i, j int) bool { return notice.Actions[i].ID < notice.Actions[j].ID })
	return n, notice, alive
}
