package server

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"bombarena/game"
	"bombarena/logging"
	"bombarena/protocol"
)

// 主循环事件
type (
	connectEvent struct{ s *Session }
	frameEvent   struct {
		s   *Session
		msg protocol.ClientMessage
	}
	closeEvent struct{ s *Session }
)

// Server 单局比赛服务：主循环独占所有会话，Tick 线程独占模拟
type Server struct {
	cfg      Config
	base     *game.Map // 大厅地图，不会被修改
	mapFrame []byte
	metrics  *Metrics

	events  chan any
	done    chan struct{}
	closing atomic.Bool
	current atomic.Pointer[Match] // 供 HTTP 只读

	// 以下只由主循环访问
	conns  map[*Session]struct{}
	roster map[game.PlayerID]*Session
	match  *Match
}

// New 创建服务；地图在启动前加载，这里只做编码
func New(cfg Config, m *game.Map) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	frame, err := protocol.EncodeServer(protocol.MapData{Version: uint8(m.Version), Text: m.String()})
	if err != nil {
		return nil, fmt.Errorf("encode map: %w", err)
	}
	return &Server{
		cfg:      cfg,
		base:     m,
		mapFrame: frame,
		metrics:  &Metrics{},
		events:   make(chan any, 1024),
		done:     make(chan struct{}),
		conns:    make(map[*Session]struct{}),
		roster:   make(map[game.PlayerID]*Session),
	}, nil
}

// Config 生效中的配置
func (srv *Server) Config() Config { return srv.cfg }

// Metrics 运行指标
func (srv *Server) Metrics() *Metrics { return srv.metrics }

// Done Run 退出后关闭
func (srv *Server) Done() <-chan struct{} { return srv.done }

// Shutdown 设置关闭标志，主循环在下一次轮询时退出并清理
func (srv *Server) Shutdown() { srv.closing.Store(true) }

// Run 主循环：等待事件或轮询超时，直到 ctx 取消或 Shutdown
func (srv *Server) Run(ctx context.Context) error {
	poll := time.NewTicker(srv.cfg.PollInterval)
	defer poll.Stop()
	defer func() {
		srv.teardown()
		close(srv.done)
	}()
	logging.Log.Infow("server loop started", "map", fmt.Sprintf("%dx%d", srv.base.Width(), srv.base.Height()))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-poll.C:
			if srv.closing.Load() {
				return nil
			}
		case ev := <-srv.events:
			srv.handle(ev)
		}
	}
}

func (srv *Server) handle(ev any) {
	switch e := ev.(type) {
	case connectEvent:
		if len(srv.conns) >= srv.cfg.MaxSessions {
			logging.Log.Warnw("too many sessions, rejecting", "remote", e.s.conn.RemoteAddr())
			e.s.conn.Close()
			return
		}
		srv.conns[e.s] = struct{}{}
		srv.metrics.SetSessions(len(srv.conns))
	case frameEvent:
		if _, ok := srv.conns[e.s]; ok {
			srv.handleFrame(e.s, e.msg)
		}
	case closeEvent:
		srv.disconnect(e.s)
	case tickEvent:
		if e.match != srv.match {
			return // 已结束的比赛
		}
		srv.broadcastFrame(e.frame, nil)
		if e.alive == 0 {
			srv.endMatch("no players alive")
		}
	default:
		logging.Log.Errorw("unknown event", "type", fmt.Sprintf("%T", ev))
	}
}

// teardown 停止 Tick，关闭全部连接
func (srv *Server) teardown() {
	if srv.match != nil {
		srv.match.Stop()
		srv.match = nil
		srv.current.Store(nil)
	}
	for s := range srv.conns {
		s.conn.Close()
	}
	logging.Log.Infow("server loop stopped", "sessions", len(srv.conns))
}

// post 投递事件；Run 退出后返回 false
func (srv *Server) post(ev any) bool {
	select {
	case <-srv.done:
		return false
	default:
	}
	select {
	case srv.events <- ev:
		return true
	case <-srv.done:
		return false
	}
}

// postTick Tick 线程投递；比赛停止后放弃，避免 Stop/Wait 互等
func (srv *Server) postTick(ev tickEvent, stopped <-chan struct{}) {
	select {
	case srv.events <- ev:
	case <-stopped:
	case <-srv.done:
	}
}

// attach 新连接进入 Connecting 状态
func (srv *Server) attach(conn peer) *Session {
	s := newSession(conn)
	if !srv.post(connectEvent{s: s}) {
		return nil
	}
	return s
}

func (srv *Server) deliver(s *Session, msg protocol.ClientMessage) bool {
	return srv.post(frameEvent{s: s, msg: msg})
}

func (srv *Server) detach(s *Session) { srv.post(closeEvent{s: s}) }

// startMatch Lobby → Playing，全局只触发一次
func (srv *Server) startMatch(spawns map[game.PlayerID]game.Position) {
	m := newMatch(srv.cfg.Game, srv.base.Clone(), spawns, srv.metrics, srv.postTick)
	srv.match = m
	srv.current.Store(m)
	for id := range spawns {
		srv.roster[id].State = StatePlaying
	}
	srv.metrics.IncMatches()
	srv.broadcast(protocol.Start{}, nil)
	m.Start()
}

// endMatch Playing → Lobby：新地图，所有会话回到未出生、未准备
func (srv *Server) endMatch(reason string) {
	m := srv.match
	srv.match = nil
	srv.current.Store(nil)
	m.Stop()
	logging.Log.Infow("match ended", "match", m.ID, "reason", reason, "ticks", m.Tick())

	for _, s := range srv.roster {
		s.State, s.Spawn, s.Ready = StateLobby, game.NoPosition, false
	}
	info := srv.lobbyInfo()
	for _, s := range srv.sortedRoster() {
		srv.sendFrame(s, srv.mapFrame)
		srv.send(s, info)
	}
}

func (srv *Server) sortedRoster() []*Session {
	out := make([]*Session, 0, len(srv.roster))
	for _, s := range srv.roster {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (srv *Server) lobbyInfo() protocol.LobbyInfo {
	roster := srv.sortedRoster()
	info := protocol.LobbyInfo{Clients: make([]protocol.ClientInfo, 0, len(roster))}
	for _, s := range roster {
		info.Clients = append(info.Clients, s.info())
	}
	return info
}

// send 只发给一个会话
func (srv *Server) send(s *Session, msg protocol.ServerMessage) {
	frame, err := protocol.EncodeServer(msg)
	if err != nil {
		logging.Log.Errorw("encode", "tag", msg.Tag(), "err", err)
		return
	}
	srv.sendFrame(s, frame)
}

// sendFrame 发送队列满说明对端跟不上 Tick，直接断开，断线事件随后到达
func (srv *Server) sendFrame(s *Session, frame []byte) {
	if s.overflowed {
		return
	}
	if s.conn.Enqueue(frame) {
		return
	}
	s.overflowed = true
	srv.metrics.IncSendOverflow()
	logging.Log.Warnw("send queue full, closing", "session", s.ID, "remote", s.conn.RemoteAddr())
	s.conn.Close()
}

// broadcast 发给所有已命名的会话（except 除外）
func (srv *Server) broadcast(msg protocol.ServerMessage, except *Session) {
	frame, err := protocol.EncodeServer(msg)
	if err != nil {
		logging.Log.Errorw("encode", "tag", msg.Tag(), "err", err)
		return
	}
	srv.broadcastFrame(frame, except)
}

func (srv *Server) broadcastFrame(frame []byte, except *Session) {
	for _, s := range srv.sortedRoster() {
		if s != except {
			srv.sendFrame(s, frame)
		}
	}
}

// MatchSnapshot /snapshot 的载荷
type MatchSnapshot struct {
	Match   string        `msgpack:"match" json:"match"`
	Tick    uint64        `msgpack:"tick" json:"tick"`
	Playing bool          `msgpack:"playing" json:"playing"`
	State   game.Snapshot `msgpack:"state" json:"state"`
}

// Snapshot 可在任意协程调用；没有比赛时返回大厅地图
func (srv *Server) Snapshot() MatchSnapshot {
	if m := srv.current.Load(); m != nil {
		tick, st := m.Snapshot()
		return MatchSnapshot{Match: m.ID, Tick: tick, Playing: true, State: st}
	}
	return MatchSnapshot{State: game.NewEngine(srv.cfg.Game, srv.base.Clone()).Snapshot()}
}
