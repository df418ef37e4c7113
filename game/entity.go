package game

import (
	"strings"
	"time"
)

// PlayerID 会话编号，协议里占 1 字节
type PlayerID uint8

// Action 玩家在一个 Tick 内的意图位掩码
type Action uint8

const (
	ActionMoveUp Action = 1 << iota
	ActionMoveDown
	ActionMoveLeft
	ActionMoveRight
	ActionPlantBomb
	ActionDie // 仅服务端下发：强制死亡并移出本局

	ActionNone Action = 0
	actionMask        = ActionMoveUp | ActionMoveDown | ActionMoveLeft | ActionMoveRight | ActionPlantBomb | ActionDie
)

// Has 是否包含某一位
func (a Action) Has(bit Action) bool { return a&bit != 0 }

// Valid 是否只包含已定义的位
func (a Action) Valid() bool { return a&^actionMask == 0 }

// ClientSide 客户端允许发送的位（去掉 DIE）
func (a Action) ClientSide() Action { return a & (actionMask &^ ActionDie) }

func (a Action) String() string {
	if a == ActionNone {
		return "none"
	}
	names := []struct {
		bit  Action
		name string
	}{
		{ActionMoveUp, "up"},
		{ActionMoveDown, "down"},
		{ActionMoveLeft, "left"},
		{ActionMoveRight, "right"},
		{ActionPlantBomb, "bomb"},
		{ActionDie, "die"},
	}
	var parts []string
	for _, n := range names {
		if a.Has(n.bit) {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// Player 场上玩家（服务端权威状态）
type Player struct {
	ID        PlayerID `msgpack:"id" json:"id"`
	Position  Position `msgpack:"pos" json:"pos"`
	BombCount int      `msgpack:"bc" json:"bombCount"` // 在场未爆的炸弹数
	MaxBombs  int      `msgpack:"mb" json:"maxBombs"`
	BombRange int      `msgpack:"br" json:"bombRange"`
}

// Alive 位置不是哨兵即存活
func (p *Player) Alive() bool { return p.Position.Valid() }

// CanPlant 是否还有炸弹容量
func (p *Player) CanPlant() bool { return p.Alive() && p.BombCount < p.MaxBombs }

// NoOwner 炸弹无主（放置者已离开）
const NoOwner = -1

// Bomb 按 Expiry 升序追加，爆炸时转化为火焰
type Bomb struct {
	Position Position  `msgpack:"pos" json:"pos"`
	Owner    int       `msgpack:"o" json:"owner"` // PlayerID 或 NoOwner
	Range    int       `msgpack:"r" json:"range"`
	Expiry   time.Time `msgpack:"exp" json:"expiry"`
}

// OwnerID 返回放置者编号
func (b Bomb) OwnerID() (PlayerID, bool) {
	if b.Owner == NoOwner {
		return 0, false
	}
	return PlayerID(b.Owner), true
}

// Fire 存活期间每个 Tick 都会杀死所在格的玩家
type Fire struct {
	Position Position  `msgpack:"pos" json:"pos"`
	Expiry   time.Time `msgpack:"exp" json:"expiry"`
}
