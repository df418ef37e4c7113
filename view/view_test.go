package view

import (
	"strings"
	"testing"

	"github.com/gdamore/tcell/v2"

	"bombarena/client"
	"bombarena/game"
	"bombarena/protocol"
)

func newSimScreen(t *testing.T) tcell.Screen {
	t.Helper()
	ss := tcell.NewSimulationScreen("UTF-8")
	ss.SetSize(80, 24)
	if err := ss.Init(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(ss.Fini)
	return ss
}

func cell(s tcell.Screen, x, y int) rune {
	r, _, _, _ := s.GetContent(x, y)
	return r
}

func line(s tcell.Screen, x, y, n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		b.WriteRune(cell(s, x+i, y))
	}
	return b.String()
}

func mirror(t *testing.T) *client.Mirror {
	t.Helper()
	m := client.NewMirror(game.DefaultConfig())
	for _, msg := range []protocol.ServerMessage{
		protocol.AssignID{ID: 0},
		protocol.MapData{Version: 1, Text: "#####\n#S+S#\n#####"},
		protocol.LobbyInfo{Clients: []protocol.ClientInfo{
			{ID: 0, Name: "alice", HasSpawn: true, X: 1, Y: 1, Ready: true},
			{ID: 1, Name: "a-very-long-player-name", HasSpawn: true, X: 3, Y: 1, Skin: 1},
		}},
	} {
		if err := m.Apply(msg); err != nil {
			t.Fatal(err)
		}
	}
	return m
}

func TestDrawLobby(t *testing.T) {
	s := newSimScreen(t)
	m := mirror(t)
	NewRenderer(s).Draw(m)

	if got := line(s, 0, 1, 5); got != "#@+@#" {
		t.Fatalf("map row = %q", got)
	}
	if got := line(s, 7, 0, 5); got != "lobby" {
		t.Fatalf("status = %q", got)
	}
	if got := line(s, 7, 2, 9); got != "[x]   0 a" {
		t.Fatalf("roster row = %q", got)
	}
	row := line(s, 7, 3, 24)
	if !strings.HasPrefix(row, "[ ]   1 a-very-long-pla") || !strings.Contains(row, "…") {
		t.Fatalf("truncated row = %q", row)
	}
	_, _, st, _ := s.GetContent(1, 1)
	fg, _, attr := st.Decompose()
	if fg != tcell.ColorYellow || attr&tcell.AttrBold == 0 {
		t.Fatalf("own player style fg=%v attr=%v", fg, attr)
	}
}

func TestDrawMatch(t *testing.T) {
	s := newSimScreen(t)
	m := mirror(t)
	_ = m.Apply(protocol.Start{})
	_ = m.Apply(protocol.ActionsNotice{Actions: []protocol.PlayerAction{{ID: 0, Action: game.ActionPlantBomb}}})
	NewRenderer(s).Draw(m)

	// 玩家站在自己的炸弹上，玩家覆盖炸弹
	if got := cell(s, 1, 1); got != GlyphPlayer {
		t.Fatalf("player cell = %q", got)
	}
	if got := cell(s, 2, 1); got != '+' {
		t.Fatalf("box cell = %q", got)
	}
	if got := line(s, 7, 0, 15); got != "playing  tick 1" {
		t.Fatalf("status = %q", got)
	}
	if len(m.Engine.Bombs()) != 1 {
		t.Fatal("bomb not planted")
	}
}

func TestDrawSpawnReply(t *testing.T) {
	s := newSimScreen(t)
	m := mirror(t)
	r := NewRenderer(s)

	_ = m.Apply(protocol.NOK{})
	r.Draw(m)
	if got := line(s, 7, 1, 11); got != "spawn taken" {
		t.Fatalf("reply line = %q", got)
	}
	_, _, st, _ := s.GetContent(7, 1)
	if fg, _, _ := st.Decompose(); fg != tcell.ColorRed {
		t.Fatalf("reply fg = %v", fg)
	}

	_ = m.Apply(protocol.OK{})
	r.Draw(m)
	if got := line(s, 7, 1, 11); got != "spawn ok   " {
		t.Fatalf("reply line = %q", got)
	}

	// 进入比赛后不再显示
	_ = m.Apply(protocol.Start{})
	r.Draw(m)
	if got := line(s, 7, 1, 8); got != "        " {
		t.Fatalf("reply line in match = %q", got)
	}
}

func TestDrawBeforeMap(t *testing.T) {
	s := newSimScreen(t)
	NewRenderer(s).Draw(client.NewMirror(game.DefaultConfig()))
	if got := line(s, 0, 0, 13); got != "connecting..." {
		t.Fatalf("got %q", got)
	}
}

func TestTranslate(t *testing.T) {
	cases := []struct {
		ev   *tcell.EventKey
		want Input
	}{
		{tcell.NewEventKey(tcell.KeyUp, 0, tcell.ModNone), Input{Action: game.ActionMoveUp}},
		{tcell.NewEventKey(tcell.KeyRune, 'd', tcell.ModNone), Input{Action: game.ActionMoveRight}},
		{tcell.NewEventKey(tcell.KeyRune, ' ', tcell.ModNone), Input{Action: game.ActionPlantBomb}},
		{tcell.NewEventKey(tcell.KeyRune, 'r', tcell.ModNone), Input{Command: CmdReady}},
		{tcell.NewEventKey(tcell.KeyTab, 0, tcell.ModNone), Input{Command: CmdNextSpawn}},
		{tcell.NewEventKey(tcell.KeyEscape, 0, tcell.ModNone), Input{Command: CmdQuit}},
		{tcell.NewEventKey(tcell.KeyRune, 'z', tcell.ModNone), Input{}},
	}
	for _, tc := range cases {
		if got := Translate(tc.ev); got != tc.want {
			t.Errorf("Translate(%v) = %+v, want %+v", tc.ev.Name(), got, tc.want)
		}
	}
}
