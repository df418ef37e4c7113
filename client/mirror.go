// Package client 客户端：服务端状态的本地镜像与网络收发
package client

import (
	"errors"
	"fmt"
	"sort"

	"bombarena/game"
	"bombarena/protocol"
)

// ErrNoMap 收到 START 时还没有地图
var ErrNoMap = errors.New("client: start before map")

// State 客户端视角的阶段
type State uint8

const (
	StateDisconnected State = iota
	StateLobby
	StatePlaying
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateLobby:
		return "lobby"
	case StatePlaying:
		return "playing"
	}
	return "unknown"
}

// Member 名单中的一项
type Member struct {
	ID    game.PlayerID
	Name  string
	Spawn game.Position
	Ready bool
	Skin  uint8
}

// Spawned 是否占有出生点
func (m *Member) Spawned() bool { return m.Spawn.Valid() }

// Mirror 服务端状态的本地副本。只由服务端消息驱动：
// 比赛中每收到一帧 PLAYER_ACTIONS 推进一个 Tick，时间由 Tick 序号推出，
// 与服务端的模拟逐 Tick 一致
type Mirror struct {
	cfg game.Config

	State  State
	ID     game.PlayerID
	HasID  bool
	Map    *game.Map // 大厅地图
	Roster map[game.PlayerID]*Member
	Engine *game.Engine // 仅比赛中
	Tick   uint64

	// 最近一次 SPAWN 请求的回复，进入比赛时清空
	LastReply protocol.ServerMessage
	Replies   int
}

// NewMirror 参数必须与服务端一致，否则回放会偏离
func NewMirror(cfg game.Config) *Mirror {
	return &Mirror{cfg: cfg, Roster: make(map[game.PlayerID]*Member)}
}

// Apply 应用一条服务端消息
func (m *Mirror) Apply(msg protocol.ServerMessage) error {
	switch v := msg.(type) {
	case protocol.AssignID:
		m.ID, m.HasID = v.ID, true
		m.State = StateLobby
	case protocol.NameNotice:
		m.Roster[v.ID] = &Member{ID: v.ID, Name: v.Name, Spawn: game.NoPosition, Skin: uint8(v.ID % 4)}
	case protocol.MapData:
		mp, err := game.ParseMapString(int(v.Version), v.Text)
		if err != nil {
			return fmt.Errorf("client: map: %w", err)
		}
		// 比赛结束后服务端重发地图，所有人回到大厅
		m.Map = mp
		m.Engine, m.Tick = nil, 0
		m.State = StateLobby
	case protocol.LobbyInfo:
		m.Roster = make(map[game.PlayerID]*Member, len(v.Clients))
		for _, c := range v.Clients {
			mem := &Member{ID: c.ID, Name: c.Name, Spawn: game.NoPosition, Skin: uint8(c.ID % 4)}
			if c.HasSpawn {
				mem.Spawn = game.Position{X: int(c.X), Y: int(c.Y)}
				mem.Ready = c.Ready
				mem.Skin = c.Skin
			}
			m.Roster[c.ID] = mem
		}
	case protocol.SpawnNotice:
		if mem, ok := m.Roster[v.ID]; ok {
			mem.Spawn = game.Position{X: int(v.X), Y: int(v.Y)}
			mem.Ready = false
		}
	case protocol.DespawnNotice:
		if mem, ok := m.Roster[v.ID]; ok {
			mem.Spawn, mem.Ready = game.NoPosition, false
		}
	case protocol.ReadyNotice:
		if mem, ok := m.Roster[v.ID]; ok {
			mem.Ready = true
		}
	case protocol.NotReadyNotice:
		if mem, ok := m.Roster[v.ID]; ok {
			mem.Ready = false
		}
	case protocol.DisconnectNotice:
		// 比赛中的玩家由随后的 DIE 位移出模拟
		delete(m.Roster, v.ID)
	case protocol.Start:
		if m.Map == nil {
			return ErrNoMap
		}
		e := game.NewEngine(m.cfg, m.Map.Clone())
		for _, mem := range m.Members() {
			if mem.Spawned() {
				e.AddPlayer(mem.ID, mem.Spawn)
			}
		}
		m.Engine, m.Tick = e, 0
		m.State = StatePlaying
		m.LastReply = nil
	case protocol.ActionsNotice:
		if m.State != StatePlaying || m.Engine == nil {
			return nil
		}
		actions := make(map[game.PlayerID]game.Action, len(v.Actions))
		for _, pa := range v.Actions {
			actions[pa.ID] = pa.Action
		}
		m.Tick++
		m.Engine.Advance(actions, game.TickTime(m.Tick, m.cfg.TickInterval()))
	case protocol.OK, protocol.NOK:
		m.LastReply = msg
		m.Replies++
	default:
		return fmt.Errorf("client: unhandled %s", msg.Tag())
	}
	return nil
}

// Members 按编号升序
func (m *Mirror) Members() []*Member {
	out := make([]*Member, 0, len(m.Roster))
	for _, mem := range m.Roster {
		out = append(out, mem)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Self 本连接在名单中的记录
func (m *Mirror) Self() (*Member, bool) {
	if !m.HasID {
		return nil, false
	}
	mem, ok := m.Roster[m.ID]
	return mem, ok
}

// NextFreeSpawn 在 after 之后（行优先循环）找一个没有被其他人占用的出生点
func (m *Mirror) NextFreeSpawn(after game.Position) (game.Position, bool) {
	if m.Map == nil {
		return game.NoPosition, false
	}
	points := m.Map.SpawnPoints()
	start := 0
	for i, p := range points {
		if p == after {
			start = i + 1
			break
		}
	}
	for k := 0; k < len(points); k++ {
		p := points[(start+k)%len(points)]
		if !m.spawnTaken(p) {
			return p, true
		}
	}
	return game.NoPosition, false
}

func (m *Mirror) spawnTaken(p game.Position) bool {
	for _, mem := range m.Roster {
		if mem.Spawn == p && !(m.HasID && mem.ID == m.ID) {
			return true
		}
	}
	return false
}
