// Package view 终端显示：地图、炸弹、火焰、玩家与名单
package view

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"

	"bombarena/client"
	"bombarena/game"
	"bombarena/protocol"
)

const (
	nameWidth = 16
	hudGap    = 2
)

var skinColors = []tcell.Color{tcell.ColorYellow, tcell.ColorAqua, tcell.ColorFuchsia, tcell.ColorLime}

var (
	styleWall  = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleBox   = tcell.StyleDefault.Foreground(tcell.ColorOrange)
	styleSpawn = tcell.StyleDefault.Foreground(tcell.ColorSilver)
	styleFire  = tcell.StyleDefault.Foreground(tcell.ColorRed)
	styleBomb  = tcell.StyleDefault.Foreground(tcell.ColorWhite)
	styleText  = tcell.StyleDefault
	styleDim   = tcell.StyleDefault.Foreground(tcell.ColorGray)
)

// Glyph 各类格子的显示字符
const (
	GlyphPlayer = '@'
	GlyphBomb   = 'o'
	GlyphFire   = '*'
)

// Renderer 把镜像画到终端
type Renderer struct {
	screen tcell.Screen
}

func NewRenderer(s tcell.Screen) *Renderer { return &Renderer{screen: s} }

// Draw 调用方需持有镜像的锁
func (r *Renderer) Draw(m *client.Mirror) {
	r.screen.Clear()
	defer r.screen.Show()

	if m.Map == nil {
		r.text(0, 0, "connecting...", styleDim)
		return
	}
	mp := m.Map
	if m.Engine != nil {
		mp = m.Engine.Map
	}
	r.drawMap(mp, m.Engine == nil)

	if m.Engine != nil {
		for _, f := range m.Engine.Fires() {
			r.screen.SetContent(f.Position.X, f.Position.Y, GlyphFire, nil, styleFire)
		}
		for _, b := range m.Engine.Bombs() {
			r.screen.SetContent(b.Position.X, b.Position.Y, GlyphBomb, nil, styleBomb)
		}
		for _, p := range m.Engine.Players() {
			if p.Alive() {
				r.screen.SetContent(p.Position.X, p.Position.Y, GlyphPlayer, nil, r.playerStyle(m, p.ID, uint8(p.ID%4)))
			}
		}
	} else {
		for _, mem := range m.Members() {
			if mem.Spawned() {
				r.screen.SetContent(mem.Spawn.X, mem.Spawn.Y, GlyphPlayer, nil, r.playerStyle(m, mem.ID, mem.Skin))
			}
		}
	}
	r.drawHUD(m, mp.Width()+hudGap)
}

func (r *Renderer) drawMap(mp *game.Map, lobby bool) {
	for y := 0; y < mp.Height(); y++ {
		for x := 0; x < mp.Width(); x++ {
			c := mp.At(game.Position{X: x, Y: y})
			style := styleText
			ch := c.Rune()
			switch c {
			case game.CellWall:
				style = styleWall
			case game.CellBox:
				style = styleBox
			case game.CellSpawn:
				style = styleSpawn
				if !lobby {
					ch = ' '
				}
			}
			r.screen.SetContent(x, y, ch, nil, style)
		}
	}
}

func (r *Renderer) playerStyle(m *client.Mirror, id game.PlayerID, skin uint8) tcell.Style {
	st := tcell.StyleDefault.Foreground(skinColors[int(skin)%len(skinColors)])
	if m.HasID && id == m.ID {
		st = st.Bold(true)
	}
	return st
}

// drawHUD 右侧：状态行、出生点回复、名单
func (r *Renderer) drawHUD(m *client.Mirror, x int) {
	status := m.State.String()
	if m.State == client.StatePlaying {
		status = fmt.Sprintf("playing  tick %d", m.Tick)
	}
	r.text(x, 0, status, styleText)
	if m.State == client.StateLobby {
		switch m.LastReply.(type) {
		case protocol.OK:
			r.text(x, 1, "spawn ok", styleDim)
		case protocol.NOK:
			r.text(x, 1, "spawn taken", styleFire)
		}
	}

	y := 2
	for _, mem := range m.Members() {
		mark := "[ ]"
		if mem.Ready {
			mark = "[x]"
		}
		if !mem.Spawned() {
			mark = " - "
		}
		name := runewidth.Truncate(mem.Name, nameWidth, "…")
		line := fmt.Sprintf("%s %3d %s", mark, mem.ID, runewidth.FillRight(name, nameWidth))
		r.text(x, y, line, r.playerStyle(m, mem.ID, mem.Skin))
		y++
	}
}

// text 按显示宽度逐字写入，返回结束列
func (r *Renderer) text(x, y int, s string, style tcell.Style) int {
	for _, ch := range s {
		r.screen.SetContent(x, y, ch, nil, style)
		x += runewidth.RuneWidth(ch)
	}
	return x
}
