package game

import (
	"fmt"
	"sort"
	"strings"
)

// Snapshot 完整可序列化状态，用于观战接口与调试
type Snapshot struct {
	Version int      `msgpack:"v" json:"version"`
	Rows    []string `msgpack:"rows" json:"rows"`
	Players []Player `msgpack:"players" json:"players"`
	Bombs   []Bomb   `msgpack:"bombs" json:"bombs"`
	Fires   []Fire   `msgpack:"fires" json:"fires"`
}

// Snapshot 深拷贝当前状态
func (e *Engine) Snapshot() Snapshot {
	s := Snapshot{
		Version: e.Map.Version,
		Rows:    e.Map.Rows(),
		Players: make([]Player, 0, len(e.ids)),
		Bombs:   append([]Bomb(nil), e.bombs...),
		Fires:   append([]Fire(nil), e.fires...),
	}
	for _, p := range e.Players() {
		s.Players = append(s.Players, *p)
	}
	return s
}

// FromSnapshot 重建引擎。放置者不在名单中的炸弹视为无主
func FromSnapshot(cfg Config, s Snapshot) (*Engine, error) {
	m, err := ParseMapString(s.Version, strings.Join(s.Rows, "\n"))
	if err != nil {
		return nil, fmt.Errorf("snapshot map: %w", err)
	}
	e := NewEngine(cfg, m)
	for _, p := range s.Players {
		np := e.AddPlayer(p.ID, p.Position)
		np.BombCount = p.BombCount
		np.MaxBombs = p.MaxBombs
		np.BombRange = p.BombRange
	}
	for _, b := range s.Bombs {
		if id, ok := b.OwnerID(); ok {
			if _, exists := e.players[id]; !exists {
				b.Owner = NoOwner
			}
		}
		e.bombs = append(e.bombs, b)
	}
	e.fires = append(e.fires, s.Fires...)
	sort.SliceStable(e.bombs, func(i, j int) bool { return e.bombs[i].Expiry.Before(e.bombs[j].Expiry) })
	sort.SliceStable(e.fires, func(i, j int) bool { return e.fires[i].Expiry.Before(e.fires[j].Expiry) })
	return e, nil
}
