package server

import (
	"time"

	"bombarena/logging"
	"bombarena/protocol"
	"bombarena/scheduler"
)

// tickEvent Tick 线程推进完一次后交给主循环广播
type tickEvent struct {
	match *Match
	tick  uint64
	frame []byte
	alive int
}

// Start 启动比赛的 Tick 循环（单线程推进世界）
func (m *Match) Start() {
	if m.sched != nil {
		return
	}
	m.sched = scheduler.New(m.interval, m.onTick)
	m.sched.Start()
	logging.Log.Infow("match started", "match", m.ID, "players", len(m.engine.Players()), "interval", m.interval)
}

// Stop 停止 Tick 并等待线程退出，之后不会再有 tickEvent 产生
func (m *Match) Stop() {
	if m.sched == nil {
		return
	}
	m.sched.Stop()
	m.sched.Wait()
	logging.Log.Infow("match stopped", "match", m.ID, "ticks", m.sched.Ticks(), "overruns", m.sched.Overruns())
}

// onTick 核心循环：取走输入 → 推进世界 → 交给主循环广播
func (m *Match) onTick(time.Time) {
	start := time.Now()
	n, notice, alive := m.step()
	frame, err := protocol.EncodeServer(notice)
	if err != nil {
		logging.Log.Errorw("encode actions", "match", m.ID, "tick", n, "err", err)
		return
	}
	elapsed := time.Since(start)
	if m.metrics != nil {
		m.metrics.AddTick(elapsed.Nanoseconds(), elapsed > m.interval)
	}
	m.post(tickEvent{match: m, tick: n, frame: frame, alive: alive}, m.sched.Stopped())
}
