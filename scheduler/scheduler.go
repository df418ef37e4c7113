// Package scheduler 固定频率调用回调，回调在独立协程中串行执行
package scheduler

import (
	"sync"
	"sync/atomic"
	"time"
)

// Scheduler 每个间隔调用一次回调。下一次触发按绝对截止时间计算，
// 回调耗时和定时器唤醒延迟都不会累积；超时则立即进入下一次调用，不会补发
type Scheduler struct {
	interval time.Duration
	fn       func(now time.Time)

	startOnce sync.Once
	stopOnce  sync.Once
	started   atomic.Bool
	stop      chan struct{}
	done      chan struct{}

	ticks    atomic.Uint64
	overruns atomic.Uint64
	busyNs   atomic.Int64
}

// New 创建调度器，Start 之前不会调用 fn
func New(interval time.Duration, fn func(now time.Time)) *Scheduler {
	if interval <= 0 {
		panic("scheduler: interval must be positive")
	}
	return &Scheduler{
		interval: interval,
		fn:       fn,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start 启动调度协程，重复调用无效
func (s *Scheduler) Start() {
	s.startOnce.Do(func() {
		s.started.Store(true)
		go s.run()
	})
}

// Stop 请求停止，可在任意协程（包括回调内）调用，重复调用无效
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// Stopped Stop 之后关闭
func (s *Scheduler) Stopped() <-chan struct{} { return s.stop }

// Wait 等待调度协程退出。不能在回调内调用
func (s *Scheduler) Wait() {
	if !s.started.Load() {
		return
	}
	<-s.done
}

// Ticks 已完成的回调次数
func (s *Scheduler) Ticks() uint64 { return s.ticks.Load() }

// Overruns 回调耗时超过间隔的次数
func (s *Scheduler) Overruns() uint64 { return s.overruns.Load() }

// BusyTime 回调累计耗时
func (s *Scheduler) BusyTime() time.Duration { return time.Duration(s.busyNs.Load()) }

func (s *Scheduler) run() {
	defer close(s.done)
	next := time.Now().Add(s.interval)
	timer := time.NewTimer(s.interval)
	defer timer.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-timer.C:
		}
		// 停止优先于排队中的触发
		select {
		case <-s.stop:
			return
		default:
		}

		start := time.Now()
		s.fn(start)
		elapsed := time.Since(start)
		s.ticks.Add(1)
		s.busyNs.Add(int64(elapsed))

		if elapsed > s.interval {
			s.overruns.Add(1)
		}
		next = next.Add(s.interval)
		wait := time.Until(next)
		if wait < 0 {
			// 落后超过一个周期时从当前时刻重新计时，不补发
			next = time.Now()
			wait = 0
		}
		timer.Reset(wait)
	}
}
