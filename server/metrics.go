package server

import (
	"sync/atomic"
)

// Metrics 服务运行期的关键指标（用于监控与调试）
type Metrics struct {
	TickCount       int64 // 统计的 Tick 次数
	TotalTickNs     int64 // Tick 累计耗时（纳秒）
	TickOverruns    int64 // 耗时超过间隔的 Tick 数
	Matches         int64 // 开始过的比赛数
	FramesAccepted  int64 // 被状态机接受的帧
	FramesMalformed int64 // 解码失败被丢弃的帧
	FramesIgnored   int64 // 当前状态不合法被丢弃的帧
	SendOverflow    int64 // 发送队列满导致断开的连接数
	Sessions        int64 // 当前连接数
}

func (m *Metrics) IncMatches()       { atomic.AddInt64(&m.Matches, 1) }
func (m *Metrics) IncAccepted()      { atomic.AddInt64(&m.FramesAccepted, 1) }
func (m *Metrics) IncMalformed()     { atomic.AddInt64(&m.FramesMalformed, 1) }
func (m *Metrics) IncIgnored()       { atomic.AddInt64(&m.FramesIgnored, 1) }
func (m *Metrics) IncSendOverflow()  { atomic.AddInt64(&m.SendOverflow, 1) }
func (m *Metrics) SetSessions(n int) { atomic.StoreInt64(&m.Sessions, int64(n)) }
func (m *Metrics) AddTick(ns int64, overrun bool) {
	atomic.AddInt64(&m.TickCount, 1)
	atomic.AddInt64(&m.TotalTickNs, ns)
	if overrun {
		atomic.AddInt64(&m.TickOverruns, 1)
	}
}

// Snapshot 返回只读副本，便于 HTTP 输出
func (m *Metrics) Snapshot() map[string]any {
	tick := atomic.LoadInt64(&m.TickCount)
	total := atomic.LoadInt64(&m.TotalTickNs)
	var avgMs float64
	if tick > 0 {
		avgMs = float64(total) / float64(tick) / 1e6
	}
	return map[string]any{
		"tick_count":       tick,
		"avg_tick_ms":      avgMs,
		"tick_overruns":    atomic.LoadInt64(&m.TickOverruns),
		"matches":          atomic.LoadInt64(&m.Matches),
		"frames_accepted":  atomic.LoadInt64(&m.FramesAccepted),
		"frames_malformed": atomic.LoadInt64(&m.FramesMalformed),
		"frames_ignored":   atomic.LoadInt64(&m.FramesIgnored),
		"send_overflow":    atomic.LoadInt64(&m.SendOverflow),
		"sessions":         atomic.LoadInt64(&m.Sessions),
	}
}
