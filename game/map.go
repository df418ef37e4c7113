package game

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// 地图尺寸上限，加载时强制检查
const (
	MaxWidth  = 50
	MaxHeight = 20
)

// 地图文件首行（可选）
const mapHeader = "Boomblazer map version alpha "

var (
	ErrMapEmpty    = errors.New("map is empty")
	ErrMapTooLarge = errors.New("map exceeds size limits")
	ErrMapRagged   = errors.New("map rows have different widths")
	ErrBadCell     = errors.New("unknown map cell")
	ErrBadVersion  = errors.New("bad map version")
)

// Cell 地图格子类型
type Cell uint8

const (
	CellEmpty Cell = iota
	CellWall       // 不可破坏
	CellBox        // 可破坏
	CellSpawn      // 出生点标记
)

// Rune 文本表示
func (c Cell) Rune() rune {
	switch c {
	case CellWall:
		return '#'
	case CellBox:
		return '+'
	case CellSpawn:
		return 'S'
	default:
		return ' '
	}
}

// Walkable 玩家能否进入
func (c Cell) Walkable() bool { return c == CellEmpty || c == CellSpawn }

// CellFromRune 解析单个格子
func CellFromRune(r rune) (Cell, error) {
	switch r {
	case '#':
		return CellWall, nil
	case '+':
		return CellBox, nil
	case ' ':
		return CellEmpty, nil
	case 'S':
		return CellSpawn, nil
	}
	return CellEmpty, fmt.Errorf("%w: %q", ErrBadCell, r)
}

// Map 二维网格。加载后只允许 Box -> Empty 的修改
type Map struct {
	Version int
	width   int
	height  int
	cells   [][]Cell
}

// NewMap 从行数据构建地图并检查尺寸
func NewMap(version int, rows [][]Cell) (*Map, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, ErrMapEmpty
	}
	h, w := len(rows), len(rows[0])
	if w > MaxWidth || h > MaxHeight {
		return nil, fmt.Errorf("%w: %dx%d > %dx%d", ErrMapTooLarge, w, h, MaxWidth, MaxHeight)
	}
	if version < 0 || version > 255 {
		return nil, fmt.Errorf("%w: %d", ErrBadVersion, version)
	}
	cells := make([][]Cell, h)
	for y, row := range rows {
		if len(row) != w {
			return nil, fmt.Errorf("%w: row %d", ErrMapRagged, y)
		}
		cells[y] = append([]Cell(nil), row...)
	}
	return &Map{Version: version, width: w, height: h, cells: cells}, nil
}

// ParseMap 解析地图文本：可选版本头 + 每行一排格子
func ParseMap(r io.Reader) (*Map, error) {
	sc := bufio.NewScanner(r)
	version := 0
	var rows [][]Cell
	first := true
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if first {
			first = false
			if strings.HasPrefix(line, mapHeader) {
				v, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, mapHeader)))
				if err != nil {
					return nil, fmt.Errorf("%w: %v", ErrBadVersion, err)
				}
				version = v
				continue
			}
		}
		if line == "" {
			continue
		}
		if len(rows) >= MaxHeight {
			return nil, fmt.Errorf("%w: more than %d rows", ErrMapTooLarge, MaxHeight)
		}
		row := make([]Cell, 0, len(line))
		for _, ch := range line {
			c, err := CellFromRune(ch)
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", len(rows), err)
			}
			row = append(row, c)
		}
		rows = append(rows, row)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return NewMap(version, rows)
}

// ParseMapString 便于测试与客户端解析 MAP 消息
func ParseMapString(version int, text string) (*Map, error) {
	m, err := ParseMap(strings.NewReader(text))
	if err != nil {
		return nil, err
	}
	m.Version = version
	return m, nil
}

func (m *Map) Width() int  { return m.width }
func (m *Map) Height() int { return m.height }

// InBounds 坐标是否在地图内
func (m *Map) InBounds(p Position) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < m.width && p.Y < m.height
}

// At 读取格子；越界视为墙
func (m *Map) At(p Position) Cell {
	if !m.InBounds(p) {
		return CellWall
	}
	return m.cells[p.Y][p.X]
}

// ClearBox 箱子被炸毁，唯一允许的修改
func (m *Map) ClearBox(p Position) bool {
	if m.At(p) != CellBox {
		return false
	}
	m.cells[p.Y][p.X] = CellEmpty
	return true
}

// SpawnPoints 按行优先顺序返回所有出生点
func (m *Map) SpawnPoints() []Position {
	var out []Position
	for y, row := range m.cells {
		for x, c := range row {
			if c == CellSpawn {
				out = append(out, Position{X: x, Y: y})
			}
		}
	}
	return out
}

// Clone 深拷贝，每局比赛使用独立副本
func (m *Map) Clone() *Map {
	cells := make([][]Cell, len(m.cells))
	for y := range m.cells {
		cells[y] = append([]Cell(nil), m.cells[y]...)
	}
	return &Map{Version: m.Version, width: m.width, height: m.height, cells: cells}
}

// Rows 每行的文本
func (m *Map) Rows() []string {
	out := make([]string, m.height)
	var b strings.Builder
	for y, row := range m.cells {
		b.Reset()
		for _, c := range row {
			b.WriteRune(c.Rune())
		}
		out[y] = b.String()
	}
	return out
}

// String 无版本头的地图文本，即 MAP 消息的数据部分
func (m *Map) String() string { return strings.Join(m.Rows(), "\n") }
