package game

import "fmt"

// Position 网格坐标（列 X，行 Y）
type Position struct {
	X int `msgpack:"x" json:"x"`
	Y int `msgpack:"y" json:"y"`
}

// NoPosition 表示“无位置”：未出生、已死亡或已离开的玩家
var NoPosition = Position{X: -1, Y: -1}

func (p Position) Up(step int) Position    { return Position{p.X, p.Y - step} }
func (p Position) Down(step int) Position  { return Position{p.X, p.Y + step} }
func (p Position) Left(step int) Position  { return Position{p.X - step, p.Y} }
func (p Position) Right(step int) Position { return Position{p.X + step, p.Y} }

// Valid 是否为真实坐标（非哨兵）
func (p Position) Valid() bool { return p != NoPosition }

func (p Position) String() string {
	if !p.Valid() {
		return "(-)"
	}
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}
