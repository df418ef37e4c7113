package server

import (
	"bombarena/game"
	"bombarena/logging"
	"bombarena/protocol"
)

// State 会话状态
type State uint8

const (
	StateConnecting   State = iota // 只接受 NAME
	StateLobby                     // 出生点、准备
	StatePlaying                   // 只接受动作
	StateDisconnected              // 终态
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateLobby:
		return "lobby"
	case StatePlaying:
		return "playing"
	case StateDisconnected:
		return "disconnected"
	}
	return "unknown"
}

// peer 连接的发送端。只由主循环调用
type peer interface {
	Enqueue(frame []byte) bool
	Close()
	RemoteAddr() string
}

// Session 每个连接一条记录，只由主循环读写
type Session struct {
	conn       peer
	overflowed bool // 发送队列溢出，等待断线事件

	ID    game.PlayerID
	Name  string
	Spawn game.Position // 未出生为 NoPosition
	Ready bool
	State State
}

func newSession(conn peer) *Session {
	return &Session{conn: conn, Spawn: game.NoPosition, State: StateConnecting}
}

// Spawned 是否占有出生点
func (s *Session) Spawned() bool { return s.Spawn.Valid() }

// Skin 外观编号
func (s *Session) Skin() uint8 { return uint8(s.ID % 4) }

func (s *Session) info() protocol.ClientInfo {
	ci := protocol.ClientInfo{ID: s.ID, Name: s.Name, HasSpawn: s.Spawned()}
	if ci.HasSpawn {
		ci.X, ci.Y = uint8(s.Spawn.X), uint8(s.Spawn.Y)
		ci.Ready = s.Ready
		ci.Skin = s.Skin()
	}
	return ci
}

// handleFrame 状态机入口：当前状态下不合法的帧直接丢弃，不改变任何状态
func (srv *Server) handleFrame(s *Session, msg protocol.ClientMessage) {
	legal := false
	switch s.State {
	case StateConnecting:
		if m, ok := msg.(protocol.Name); ok {
			legal = srv.identify(s, m)
		}
	case StateLobby:
		// 比赛进行中加入的会话在大厅等待本局结束
		if srv.match == nil {
			legal = srv.handleLobby(s, msg)
			if legal {
				srv.checkStart()
			}
		}
	case StatePlaying:
		if m, ok := msg.(protocol.Act); ok && srv.match != nil {
			srv.match.Submit(s.ID, m.Action)
			legal = true
		}
	}
	if legal {
		srv.metrics.IncAccepted()
		return
	}
	srv.metrics.IncIgnored()
	logging.Log.Debugw("frame ignored", "session", s.ID, "state", s.State, "tag", msg.Tag())
}

// identify 分配最小的空闲编号，推送编号、地图和完整名单，向其他人广播名字
func (srv *Server) identify(s *Session, m protocol.Name) bool {
	id, ok := srv.allocID()
	if !ok {
		logging.Log.Warnw("roster full, closing", "remote", s.conn.RemoteAddr())
		s.conn.Close()
		return false
	}
	s.ID, s.Name, s.State = id, m.Name, StateLobby
	srv.roster[id] = s

	srv.send(s, protocol.AssignID{ID: id})
	srv.sendFrame(s, srv.mapFrame)
	srv.send(s, srv.lobbyInfo())
	srv.broadcast(protocol.NameNotice{ID: id, Name: m.Name}, s)
	logging.Log.Infow("session identified", "session", id, "name", m.Name, "remote", s.conn.RemoteAddr())
	return true
}

func (srv *Server) allocID() (game.PlayerID, bool) {
	for i := 0; i < 256; i++ {
		if _, used := srv.roster[game.PlayerID(i)]; !used {
			return game.PlayerID(i), true
		}
	}
	return 0, false
}

// handleLobby 大厅消息。每条被接受的消息都以增量广播给所有会话
func (srv *Server) handleLobby(s *Session, msg protocol.ClientMessage) bool {
	switch m := msg.(type) {
	case protocol.Spawn:
		srv.spawn(s, game.Position{X: int(m.X), Y: int(m.Y)})
		return true
	case protocol.Despawn:
		if !s.Spawned() {
			return false
		}
		s.Spawn, s.Ready = game.NoPosition, false
		srv.broadcast(protocol.DespawnNotice{ID: s.ID}, nil)
		return true
	case protocol.Ready:
		if !s.Spawned() || s.Ready {
			return false
		}
		s.Ready = true
		srv.broadcast(protocol.ReadyNotice{ID: s.ID}, nil)
		return true
	case protocol.NotReady:
		if !s.Ready {
			return false
		}
		s.Ready = false
		srv.broadcast(protocol.NotReadyNotice{ID: s.ID}, nil)
		return true
	case protocol.Name, protocol.Act:
		return false
	default:
		return false
	}
}

// spawn 占用出生点；换点会取消准备。结果只回复给请求者
func (srv *Server) spawn(s *Session, pos game.Position) {
	if srv.base.At(pos) != game.CellSpawn || srv.spawnHolder(pos, s) {
		srv.send(s, protocol.NOK{})
		return
	}
	if s.Spawn == pos {
		srv.send(s, protocol.OK{})
		return
	}
	s.Spawn, s.Ready = pos, false
	srv.send(s, protocol.OK{})
	srv.broadcast(protocol.SpawnNotice{ID: s.ID, X: uint8(pos.X), Y: uint8(pos.Y)}, nil)
}

// spawnHolder 是否被其他会话占用
func (srv *Server) spawnHolder(pos game.Position, self *Session) bool {
	for _, o := range srv.roster {
		if o != self && o.Spawn == pos {
			return true
		}
	}
	return false
}

// checkStart 所有已出生的会话都已准备且至少有一个时开始
func (srv *Server) checkStart() {
	if srv.match != nil {
		return
	}
	spawns := make(map[game.PlayerID]game.Position)
	for id, s := range srv.roster {
		if !s.Spawned() {
			continue
		}
		if !s.Ready {
			return
		}
		spawns[id] = s.Spawn
	}
	if len(spawns) == 0 {
		return
	}
	srv.startMatch(spawns)
}

// disconnect 任意状态可达：释放出生点，广播断线，必要时结束比赛
func (srv *Server) disconnect(s *Session) {
	if _, ok := srv.conns[s]; !ok {
		return
	}
	delete(srv.conns, s)
	srv.metrics.SetSessions(len(srv.conns))
	s.conn.Close()

	prev := s.State
	s.State = StateDisconnected
	s.Spawn, s.Ready = game.NoPosition, false
	if prev == StateConnecting {
		return
	}
	delete(srv.roster, s.ID)
	logging.Log.Infow("session disconnected", "session", s.ID, "state", prev)

	if prev == StatePlaying && srv.match != nil {
		srv.match.Leave(s.ID)
	}
	srv.broadcast(protocol.DisconnectNotice{ID: s.ID}, nil)

	if srv.match == nil {
		srv.checkStart()
		return
	}
	for _, o := range srv.roster {
		if o.State == StatePlaying {
			return
		}
	}
	srv.endMatch("roster empty")
}
