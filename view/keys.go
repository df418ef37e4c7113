package view

import (
	"github.com/gdamore/tcell/v2"

	"bombarena/game"
)

// Command 大厅与界面命令
type Command uint8

const (
	CmdNone Command = iota
	CmdQuit
	CmdReady
	CmdNotReady
	CmdDespawn
	CmdNextSpawn
)

// Input 一次按键对应的意图：比赛中的动作位，或大厅命令
type Input struct {
	Action  game.Action
	Command Command
}

// Translate 方向键/WASD 移动，空格放炸弹；Tab 换出生点，r 准备，u 取消，x 释放，q 退出
func Translate(ev *tcell.EventKey) Input {
	switch ev.Key() {
	case tcell.KeyUp:
		return Input{Action: game.ActionMoveUp}
	case tcell.KeyDown:
		return Input{Action: game.ActionMoveDown}
	case tcell.KeyLeft:
		return Input{Action: game.ActionMoveLeft}
	case tcell.KeyRight:
		return Input{Action: game.ActionMoveRight}
	case tcell.KeyTab:
		return Input{Command: CmdNextSpawn}
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return Input{Command: CmdQuit}
	case tcell.KeyRune:
	default:
		return Input{}
	}
	switch ev.Rune() {
	case 'w', 'W':
		return Input{Action: game.ActionMoveUp}
	case 's', 'S':
		return Input{Action: game.ActionMoveDown}
	case 'a', 'A':
		return Input{Action: game.ActionMoveLeft}
	case 'd', 'D':
		return Input{Action: game.ActionMoveRight}
	case ' ':
		return Input{Action: game.ActionPlantBomb}
	case 'r', 'R':
		return Input{Command: CmdReady}
	case 'u', 'U':
		return Input{Command: CmdNotReady}
	case 'x', 'X':
		return Input{Command: CmdDespawn}
	case 'n', 'N':
		return Input{Command: CmdNextSpawn}
	case 'q', 'Q':
		return Input{Command: CmdQuit}
	}
	return Input{}
}
