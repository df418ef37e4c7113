package server

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"bombarena/game"
	"bombarena/logging"
	"bombarena/protocol"
)

func TestIdentifyPushesMapAndRoster(t *testing.T) {
	srv := startServer(t, testConfig())

	p := newFakePeer("alice")
	s := srv.attach(p)
	srv.deliver(s, protocol.Name{Name: "alice"})
	p.waitFor(t, isTag(protocol.TagLobbyInfo))

	msgs := p.all(t)
	if len(msgs) != 3 {
		t.Fatalf("got %d messages: %#v", len(msgs), msgs)
	}
	if msgs[0] != (protocol.AssignID{ID: 0}) {
		t.Fatalf("first message %#v", msgs[0])
	}
	if md := msgs[1].(protocol.MapData); md.Text != arena || md.Version != 1 {
		t.Fatalf("map %#v", md)
	}
	info := msgs[2].(protocol.LobbyInfo)
	if len(info.Clients) != 1 || info.Clients[0].Name != "alice" {
		t.Fatalf("roster %#v", info)
	}

	bob := join(t, srv, "bob")
	if bob.id != 1 {
		t.Fatalf("bob id = %d", bob.id)
	}
	p.waitFor(t, is(protocol.NameNotice{ID: 1, Name: "bob"}))
	for _, m := range bob.p.all(t) {
		if li, ok := m.(protocol.LobbyInfo); ok && len(li.Clients) != 2 {
			t.Fatalf("bob roster %#v", li)
		}
	}
}

func TestLowestUnusedID(t *testing.T) {
	srv := startServer(t, testConfig())
	a := join(t, srv, "a")
	b := join(t, srv, "b")
	c := join(t, srv, "c")
	if a.id != 0 || b.id != 1 || c.id != 2 {
		t.Fatalf("ids %d %d %d", a.id, b.id, c.id)
	}
	srv.detach(b.s)
	a.p.waitFor(t, is(protocol.DisconnectNotice{ID: 1}))
	if !b.p.isClosed() {
		t.Fatal("disconnected peer not closed")
	}
	d := join(t, srv, "d")
	if d.id != 1 {
		t.Fatalf("reused id = %d, want 1", d.id)
	}
}

func TestIllegalFramesDropped(t *testing.T) {
	srv := startServer(t, testConfig())

	p := newFakePeer("x")
	s := srv.attach(p)
	srv.deliver(s, protocol.Spawn{X: 1, Y: 1}) // 未命名
	srv.deliver(s, protocol.Name{Name: "x"})
	srv.deliver(s, protocol.Name{Name: "again"})            // 已命名
	srv.deliver(s, protocol.Ready{})                        // 未出生
	srv.deliver(s, protocol.Act{Action: game.ActionMoveUp}) // 不在比赛中
	srv.deliver(s, protocol.Spawn{X: 2, Y: 1})              // 不是出生点
	p.waitFor(t, isTag(protocol.TagNOK))
	srv.deliver(s, protocol.Spawn{X: 1, Y: 1})
	p.waitFor(t, isTag(protocol.TagOK))
	p.waitFor(t, is(protocol.SpawnNotice{ID: 0, X: 1, Y: 1}))

	msgs := p.all(t)
	if msgs[0] != (protocol.AssignID{ID: 0}) {
		t.Fatalf("first message %#v", msgs[0])
	}
	if n := countTag(msgs, protocol.TagReady); n != 0 {
		t.Fatalf("unexpected ready broadcast")
	}
	if got := srv.Metrics().Snapshot()["frames_ignored"].(int64); got != 4 {
		t.Fatalf("frames_ignored = %d, want 4", got)
	}
}

func TestSpawnTakenIsRejected(t *testing.T) {
	srv := startServer(t, testConfig())
	a := join(t, srv, "a")
	b := join(t, srv, "b")

	srv.deliver(a.s, protocol.Spawn{X: 1, Y: 1})
	a.p.waitFor(t, isTag(protocol.TagOK))
	b.p.waitFor(t, is(protocol.SpawnNotice{ID: a.id, X: 1, Y: 1}))

	srv.deliver(b.s, protocol.Spawn{X: 1, Y: 1})
	b.p.waitFor(t, isTag(protocol.TagNOK))

	// 释放后可以被占用
	srv.deliver(a.s, protocol.Despawn{})
	b.p.waitFor(t, is(protocol.DespawnNotice{ID: a.id}))
	srv.deliver(b.s, protocol.Spawn{X: 1, Y: 1})
	b.p.waitFor(t, isTag(protocol.TagOK))
	a.p.waitFor(t, is(protocol.SpawnNotice{ID: b.id, X: 1, Y: 1}))
}

func TestSpawnChangeClearsReady(t *testing.T) {
	srv := startServer(t, testConfig())
	a := join(t, srv, "a")
	b := join(t, srv, "b")

	// a 已出生未准备，阻止开始
	srv.deliver(a.s, protocol.Spawn{X: 1, Y: 1})
	a.p.waitFor(t, isTag(protocol.TagOK))

	srv.deliver(b.s, protocol.Spawn{X: 5, Y: 1})
	b.p.waitFor(t, isTag(protocol.TagOK))
	srv.deliver(b.s, protocol.Ready{})
	a.p.waitFor(t, is(protocol.ReadyNotice{ID: b.id}))
	srv.deliver(b.s, protocol.NotReady{})
	a.p.waitFor(t, is(protocol.NotReadyNotice{ID: b.id}))
	srv.deliver(b.s, protocol.NotReady{}) // 已经未准备，丢弃
	srv.deliver(b.s, protocol.Ready{})
	a.p.waitFor(t, is(protocol.ReadyNotice{ID: b.id}))

	// 换出生点后需要重新准备
	srv.deliver(b.s, protocol.Spawn{X: 3, Y: 1})
	a.p.waitFor(t, is(protocol.SpawnNotice{ID: b.id, X: 3, Y: 1}))
	srv.deliver(a.s, protocol.Ready{})
	a.p.waitFor(t, is(protocol.ReadyNotice{ID: a.id}))

	// 同一出生点再申请一次只回 OK，用来确认之前的消息都已处理
	srv.deliver(b.s, protocol.Spawn{X: 3, Y: 1})
	b.p.waitFor(t, isTag(protocol.TagOK))
	if n := countTag(a.p.all(t), protocol.TagStart); n != 0 {
		t.Fatal("match started while b was not ready")
	}

	srv.deliver(b.s, protocol.Ready{})
	a.p.waitFor(t, isTag(protocol.TagStart))
}

// 两个会话占用不同出生点并准备，START 只广播一次
func TestStartBroadcastOnce(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	prev := logging.Log
	logging.Set(zap.New(core))
	t.Cleanup(func() { logging.Log = prev }) // 先于 startServer 注册，服务停止后才恢复

	srv := startServer(t, testConfig())
	a := join(t, srv, "a")
	b := join(t, srv, "b")
	srv.deliver(a.s, protocol.Spawn{X: 1, Y: 1})
	a.p.waitFor(t, isTag(protocol.TagOK))
	srv.deliver(b.s, protocol.Spawn{X: 5, Y: 1})
	b.p.waitFor(t, isTag(protocol.TagOK))
	srv.deliver(a.s, protocol.Ready{})
	b.p.waitFor(t, is(protocol.ReadyNotice{ID: a.id}))
	srv.deliver(b.s, protocol.Ready{})

	a.p.waitFor(t, isTag(protocol.TagStart))
	b.p.waitFor(t, isTag(protocol.TagStart))
	a.p.waitFor(t, isTag(protocol.TagPlayerActions))

	// 比赛中的大厅消息被丢弃
	srv.deliver(a.s, protocol.Ready{})
	srv.deliver(b.s, protocol.NotReady{})
	for i := 0; i < 3; i++ {
		a.p.waitFor(t, isTag(protocol.TagPlayerActions))
	}

	for _, p := range []*fakePeer{a.p, b.p} {
		msgs := p.all(t)
		if n := countTag(msgs, protocol.TagStart); n != 1 {
			t.Fatalf("%s saw %d START", p.addr, n)
		}
		if n := countTag(msgs, protocol.TagNotReady); n != 0 {
			t.Fatalf("%s saw NOT_READY during match", p.addr)
		}
	}
	if got := srv.Metrics().Snapshot()["matches"].(int64); got != 1 {
		t.Fatalf("matches = %d", got)
	}
	if n := logs.FilterMessage("match started").Len(); n != 1 {
		t.Fatalf("logged %d match starts", n)
	}
	snap := srv.Snapshot()
	if !snap.Playing || snap.Match == "" || len(snap.State.Players) != 2 {
		t.Fatalf("snapshot %+v", snap)
	}
}

// 比赛中断线：广播 DISCONNECT，下一个 Tick 以 DIE 移出，其余会话不受影响
func TestDisconnectWhilePlaying(t *testing.T) {
	srv := startServer(t, testConfig())
	a := join(t, srv, "a")
	b := join(t, srv, "b")
	srv.deliver(a.s, protocol.Spawn{X: 1, Y: 1})
	a.p.waitFor(t, isTag(protocol.TagOK))
	spawnReady(t, srv, b, 5, 1)
	srv.deliver(a.s, protocol.Ready{})
	a.p.waitFor(t, isTag(protocol.TagStart))

	srv.detach(b.s)
	a.p.waitFor(t, is(protocol.DisconnectNotice{ID: b.id}))
	a.p.waitFor(t, func(m protocol.ServerMessage) bool {
		an, ok := m.(protocol.ActionsNotice)
		if !ok {
			return false
		}
		for _, pa := range an.Actions {
			if pa.ID == b.id && pa.Action == game.ActionDie {
				return true
			}
		}
		return false
	})

	snap := srv.Snapshot()
	if !snap.Playing {
		t.Fatal("match ended with a live player left")
	}
	if len(snap.State.Players) != 1 || snap.State.Players[0].ID != a.id {
		t.Fatalf("players %+v", snap.State.Players)
	}
	if snap.State.Players[0].Position != (game.Position{X: 1, Y: 1}) {
		t.Fatalf("a moved: %v", snap.State.Players[0].Position)
	}
	if n := countTag(a.p.all(t), protocol.TagMap); n != 1 {
		t.Fatalf("a got %d MAP frames", n)
	}
}

func TestMatchEndsWhenNobodyAlive(t *testing.T) {
	cfg := testConfig()
	cfg.Game.BombTimer = 50 * time.Millisecond
	cfg.Game.FireTimer = 50 * time.Millisecond
	srv := startServer(t, cfg)
	a := join(t, srv, "a")
	spawnReady(t, srv, a, 1, 1)
	a.p.waitFor(t, isTag(protocol.TagStart))

	srv.deliver(a.s, protocol.Act{Action: game.ActionPlantBomb})
	a.p.waitFor(t, isTag(protocol.TagMap))
	info := a.p.waitFor(t, isTag(protocol.TagLobbyInfo)).(protocol.LobbyInfo)
	if len(info.Clients) != 1 || info.Clients[0].HasSpawn || info.Clients[0].Ready {
		t.Fatalf("roster not reset: %+v", info)
	}
	if srv.Snapshot().Playing {
		t.Fatal("still playing")
	}

	// 回到大厅后可以重新出生
	srv.deliver(a.s, protocol.Spawn{X: 1, Y: 1})
	a.p.waitFor(t, isTag(protocol.TagOK))
}

func TestLateJoinerWaitsInLobby(t *testing.T) {
	srv := startServer(t, testConfig())
	a := join(t, srv, "a")
	spawnReady(t, srv, a, 1, 1)
	a.p.waitFor(t, isTag(protocol.TagStart))

	c := join(t, srv, "c")
	srv.deliver(c.s, protocol.Spawn{X: 5, Y: 1}) // 比赛中，丢弃
	srv.detach(a.s)                              // 名单里已没有比赛中的会话

	c.p.waitFor(t, is(protocol.DisconnectNotice{ID: a.id}))
	c.p.waitFor(t, isTag(protocol.TagMap))
	msgs := c.p.all(t)
	if countTag(msgs, protocol.TagOK)+countTag(msgs, protocol.TagNOK) != 0 {
		t.Fatal("late joiner's spawn was processed during the match")
	}
	if countTag(msgs, protocol.TagStart) != 0 {
		t.Fatal("late joiner saw START")
	}
}

func TestSendOverflowClosesSession(t *testing.T) {
	srv := startServer(t, testConfig())
	a := join(t, srv, "a")
	a.p.mu.Lock()
	a.p.limit = len(a.p.frames)
	a.p.mu.Unlock()

	join(t, srv, "b") // NAME 广播给 a 时溢出
	deadline := time.Now().Add(3 * time.Second)
	for !a.p.isClosed() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if !a.p.isClosed() {
		t.Fatal("overflowing peer not closed")
	}
	if got := srv.Metrics().Snapshot()["send_overflow"].(int64); got != 1 {
		t.Fatalf("send_overflow = %d", got)
	}
}

func TestMaxSessions(t *testing.T) {
	cfg := testConfig()
	cfg.MaxSessions = 1
	srv := startServer(t, cfg)
	join(t, srv, "a")

	p := newFakePeer("b")
	srv.attach(p)
	deadline := time.Now().Add(3 * time.Second)
	for !p.isClosed() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if !p.isClosed() {
		t.Fatal("extra session accepted")
	}
}

func TestShutdownStopsLoop(t *testing.T) {
	m, _ := game.ParseMapString(1, arena)
	srv, err := New(testConfig(), m)
	if err != nil {
		t.Fatal(err)
	}
	errc := make(chan error, 1)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { errc <- srv.Run(ctx) }()
	a := join(t, srv, "a")
	spawnReady(t, srv, a, 1, 1)
	a.p.waitFor(t, isTag(protocol.TagStart))

	srv.Shutdown()
	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("loop did not stop")
	}
	if !a.p.isClosed() {
		t.Fatal("sessions not closed on shutdown")
	}
	if srv.attach(newFakePeer("late")) != nil {
		t.Fatal("attach after shutdown")
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	cfg.MaxSessions = 300
	if cfg.Validate() == nil {
		t.Fatal("expected error for max sessions")
	}
	cfg = DefaultConfig()
	cfg.Game.TickRate = 0
	if cfg.Validate() == nil {
		t.Fatal("expected error for tick rate")
	}
}
