package game

import (
	"sort"
	"strings"
	"time"
)

// Epoch 模拟时间的零点。第 n 个 Tick 的时间为 Epoch + n*interval，
// 服务端与客户端镜像据此得到完全相同的时间线
var Epoch = time.Unix(0, 0).UTC()

// TickTime 第 n 个 Tick 的模拟时间
func TickTime(n uint64, interval time.Duration) time.Time {
	return Epoch.Add(time.Duration(n) * interval)
}

// Engine 权威模拟：地图 + 玩家 + 炸弹 + 火焰，仅由 Advance 推进
type Engine struct {
	cfg     Config
	Map     *Map
	players map[PlayerID]*Player
	ids     []PlayerID // 升序，保证遍历顺序确定
	bombs   []Bomb     // Expiry 升序
	fires   []Fire     // Expiry 升序
}

// NewEngine 在给定地图上创建空的模拟
func NewEngine(cfg Config, m *Map) *Engine {
	return &Engine{
		cfg:     cfg,
		Map:     m,
		players: make(map[PlayerID]*Player),
	}
}

// Config 当前参数
func (e *Engine) Config() Config { return e.cfg }

// AddPlayer 在出生点放置玩家；已存在则只更新位置
func (e *Engine) AddPlayer(id PlayerID, pos Position) *Player {
	if p, ok := e.players[id]; ok {
		p.Position = pos
		return p
	}
	p := &Player{
		ID:        id,
		Position:  pos,
		MaxBombs:  e.cfg.BombCount,
		BombRange: e.cfg.BombRange,
	}
	e.players[id] = p
	i := sort.Search(len(e.ids), func(i int) bool { return e.ids[i] >= id })
	e.ids = append(e.ids, 0)
	copy(e.ids[i+1:], e.ids[i:])
	e.ids[i] = id
	return p
}

// RemovePlayer 移出本局。其炸弹保留编号，查不到放置者时按无主处理
func (e *Engine) RemovePlayer(id PlayerID) {
	p, ok := e.players[id]
	if !ok {
		return
	}
	p.Position = NoPosition
	delete(e.players, id)
	for i, v := range e.ids {
		if v == id {
			e.ids = append(e.ids[:i], e.ids[i+1:]...)
			break
		}
	}
}

// Player 按编号查找
func (e *Engine) Player(id PlayerID) (*Player, bool) {
	p, ok := e.players[id]
	return p, ok
}

// Players 按编号升序返回
func (e *Engine) Players() []*Player {
	out := make([]*Player, 0, len(e.ids))
	for _, id := range e.ids {
		out = append(out, e.players[id])
	}
	return out
}

// AliveCount 仍有位置的玩家数
func (e *Engine) AliveCount() int {
	n := 0
	for _, p := range e.players {
		if p.Alive() {
			n++
		}
	}
	return n
}

// Bombs 只读视图
func (e *Engine) Bombs() []Bomb { return e.bombs }

// Fires 只读视图
func (e *Engine) Fires() []Fire { return e.fires }

// BombAt 该格是否已有炸弹
func (e *Engine) BombAt(pos Position) bool {
	for _, b := range e.bombs {
		if b.Position == pos {
			return true
		}
	}
	return false
}

// FireAt 该格是否有火
func (e *Engine) FireAt(pos Position) bool {
	for _, f := range e.fires {
		if f.Position == pos {
			return true
		}
	}
	return false
}

// Advance 推进一个 Tick：玩家动作 → 炸弹引爆 → 火焰熄灭与杀伤。
// actions 中不存在的编号直接忽略；now 必须单调不减
func (e *Engine) Advance(actions map[PlayerID]Action, now time.Time) {
	var leaving []PlayerID
	for _, id := range e.ids {
		p := e.players[id]
		a := actions[id]
		if a.Has(ActionDie) {
			leaving = append(leaving, id)
			continue
		}
		if p.Alive() {
			e.apply(p, a, now)
		}
	}
	for _, id := range leaving {
		e.RemovePlayer(id)
	}

	e.detonate(now)

	for len(e.fires) > 0 && !e.fires[0].Expiry.After(now) {
		e.fires = e.fires[1:]
	}
	e.burn()
}

// apply 放炸弹，然后按 上、下、右、左 的顺序计算候选位置，最后计算的方向生效
func (e *Engine) apply(p *Player, a Action, now time.Time) {
	if a.Has(ActionPlantBomb) && p.CanPlant() && !e.BombAt(p.Position) {
		e.bombs = append(e.bombs, Bomb{
			Position: p.Position,
			Owner:    int(p.ID),
			Range:    p.BombRange,
			Expiry:   now.Add(e.cfg.BombTimer),
		})
		p.BombCount++
	}

	next := p.Position
	if a.Has(ActionMoveUp) {
		next = p.Position.Up(1)
	}
	if a.Has(ActionMoveDown) {
		next = p.Position.Down(1)
	}
	if a.Has(ActionMoveRight) {
		next = p.Position.Right(1)
	}
	if a.Has(ActionMoveLeft) {
		next = p.Position.Left(1)
	}
	if next != p.Position && e.Map.At(next).Walkable() {
		p.Position = next
	}
}

// detonate 弹出所有到期炸弹（前缀），不需要扫描或排序
func (e *Engine) detonate(now time.Time) {
	for len(e.bombs) > 0 && !e.bombs[0].Expiry.After(now) {
		b := e.bombs[0]
		e.bombs = e.bombs[1:]
		e.explode(b, now)
		if id, ok := b.OwnerID(); ok {
			if owner, ok := e.players[id]; ok && owner.BombCount > 0 {
				owner.BombCount--
			}
		}
	}
}

// explode 中心一格火焰；四个方向逐格扩散，遇墙停止（不放火），
// 遇箱子放火、清除箱子后停止
func (e *Engine) explode(b Bomb, now time.Time) {
	expiry := now.Add(e.cfg.FireTimer)
	e.fires = append(e.fires, Fire{Position: b.Position, Expiry: expiry})

	rays := []func(Position, int) Position{Position.Up, Position.Down, Position.Left, Position.Right}
	for _, ray := range rays {
		for d := 1; d <= b.Range; d++ {
			pos := ray(b.Position, d)
			cell := e.Map.At(pos)
			if cell == CellWall {
				break
			}
			e.fires = append(e.fires, Fire{Position: pos, Expiry: expiry})
			if cell == CellBox {
				e.Map.ClearBox(pos)
				break
			}
		}
	}
}

// burn 火焰所在格的存活玩家死亡（留在名单中，位置置为哨兵）
func (e *Engine) burn() {
	if len(e.fires) == 0 {
		return
	}
	hot := make(map[Position]struct{}, len(e.fires))
	for _, f := range e.fires {
		hot[f.Position] = struct{}{}
	}
	for _, id := range e.ids {
		p := e.players[id]
		if _, ok := hot[p.Position]; ok && p.Alive() {
			p.Position = NoPosition
		}
	}
}

// Render 文本快照：地图 + 火焰(*) + 炸弹(o) + 玩家(编号)
func (e *Engine) Render() string {
	grid := make([][]rune, e.Map.Height())
	for y, row := range e.Map.Rows() {
		grid[y] = []rune(row)
	}
	put := func(p Position, r rune) {
		if e.Map.InBounds(p) {
			grid[p.Y][p.X] = r
		}
	}
	for _, f := range e.fires {
		put(f.Position, '*')
	}
	for _, b := range e.bombs {
		put(b.Position, 'o')
	}
	for _, p := range e.Players() {
		put(p.Position, playerRune(p.ID))
	}
	lines := make([]string, len(grid))
	for y := range grid {
		lines[y] = string(grid[y])
	}
	return strings.Join(lines, "\n")
}

func playerRune(id PlayerID) rune {
	const glyphs = "0123456789abcdefghijklmnopqrstuvwxyz"
	return rune(glyphs[int(id)%len(glyphs)])
}
