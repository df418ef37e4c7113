package server

import (
	"context"
	"sync"
	"testing"
	"time"

	"bombarena/game"
	"bombarena/protocol"
)

// 三个出生点
const arena = "#######\n#S S S#\n#######"

// fakePeer 记录发出的帧，可选容量上限
type fakePeer struct {
	addr   string
	limit  int
	notify chan struct{}

	mu     sync.Mutex
	frames [][]byte
	closed bool
	cursor int
}

func newFakePeer(addr string) *fakePeer {
	return &fakePeer{addr: addr, notify: make(chan struct{}, 1)}
}

func (p *fakePeer) Enqueue(b []byte) bool {
	p.mu.Lock()
	if p.closed || (p.limit > 0 && len(p.frames) >= p.limit) {
		p.mu.Unlock()
		return false
	}
	p.frames = append(p.frames, b)
	p.mu.Unlock()
	p.wake()
	return true
}

func (p *fakePeer) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.wake()
}

func (p *fakePeer) RemoteAddr() string { return p.addr }

func (p *fakePeer) wake() {
	select {
	case p.notify <- struct{}{}:
	default:
	}
}

func (p *fakePeer) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// waitFor 从游标处向后找第一条满足条件的消息
func (p *fakePeer) waitFor(t *testing.T, match func(protocol.ServerMessage) bool) protocol.ServerMessage {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		p.mu.Lock()
		for p.cursor < len(p.frames) {
			f := p.frames[p.cursor]
			p.cursor++
			m, err := protocol.DecodeServer(f)
			if err != nil {
				p.mu.Unlock()
				t.Fatalf("%s: bad frame %v: %v", p.addr, f, err)
			}
			if match(m) {
				p.mu.Unlock()
				return m
			}
		}
		p.mu.Unlock()
		select {
		case <-p.notify:
		case <-deadline:
			t.Fatalf("%s: timed out waiting for message", p.addr)
		}
	}
}

// all 解码到目前为止收到的全部消息
func (p *fakePeer) all(t *testing.T) []protocol.ServerMessage {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]protocol.ServerMessage, 0, len(p.frames))
	for _, f := range p.frames {
		m, err := protocol.DecodeServer(f)
		if err != nil {
			t.Fatalf("%s: bad frame: %v", p.addr, err)
		}
		out = append(out, m)
	}
	return out
}

func isTag(tag protocol.Tag) func(protocol.ServerMessage) bool {
	return func(m protocol.ServerMessage) bool { return m.Tag() == tag }
}

func is(want protocol.ServerMessage) func(protocol.ServerMessage) bool {
	return func(m protocol.ServerMessage) bool { return m == want }
}

func countTag(msgs []protocol.ServerMessage, tag protocol.Tag) int {
	n := 0
	for _, m := range msgs {
		if m.Tag() == tag {
			n++
		}
	}
	return n
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.PollInterval = 10 * time.Millisecond
	cfg.Game.TickRate = 100
	return cfg
}

func startServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	m, err := game.ParseMapString(1, arena)
	if err != nil {
		t.Fatal(err)
	}
	srv, err := New(cfg, m)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = srv.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-srv.Done()
	})
	return srv
}

type testClient struct {
	s  *Session
	p  *fakePeer
	id game.PlayerID
}

func join(t *testing.T, srv *Server, name string) testClient {
	t.Helper()
	p := newFakePeer(name)
	s := srv.attach(p)
	if s == nil {
		t.Fatal("server not running")
	}
	srv.deliver(s, protocol.Name{Name: name})
	id := p.waitFor(t, isTag(protocol.TagID)).(protocol.AssignID).ID
	p.waitFor(t, isTag(protocol.TagLobbyInfo))
	return testClient{s: s, p: p, id: id}
}

// spawnReady 占用出生点并准备
func spawnReady(t *testing.T, srv *Server, c testClient, x, y uint8) {
	t.Helper()
	srv.deliver(c.s, protocol.Spawn{X: x, Y: y})
	c.p.waitFor(t, isTag(protocol.TagOK))
	srv.deliver(c.s, protocol.Ready{})
	c.p.waitFor(t, is(protocol.ReadyNotice{ID: c.id}))
}
