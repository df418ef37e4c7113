package protocol

import (
	"fmt"

	"bombarena/game"
)

// Tag 帧首字节，标识消息类型
type Tag uint8

const (
	TagNull Tag = iota
	TagName
	TagSpawn
	TagDespawn
	TagOK
	TagNOK
	TagLobbyInfo
	TagID
	TagReady
	TagNotReady
	TagMap
	TagDisconnect
	TagStart
	TagPlayerActions
)

var tagNames = [...]string{
	TagNull:          "NULL",
	TagName:          "NAME",
	TagSpawn:         "SPAWN",
	TagDespawn:       "DESPAWN",
	TagOK:            "OK",
	TagNOK:           "NOK",
	TagLobbyInfo:     "LOBBY_INFO",
	TagID:            "ID",
	TagReady:         "READY",
	TagNotReady:      "NOT_READY",
	TagMap:           "MAP",
	TagDisconnect:    "DISCONNECT",
	TagStart:         "START",
	TagPlayerActions: "PLAYER_ACTIONS",
}

func (t Tag) String() string {
	if int(t) < len(tagNames) {
		return tagNames[t]
	}
	return fmt.Sprintf("TAG(%d)", uint8(t))
}

// ClientMessage 客户端 → 服务端，封闭集合
type ClientMessage interface {
	Tag() Tag
	clientMessage()
}

// ServerMessage 服务端 → 客户端，封闭集合
type ServerMessage interface {
	Tag() Tag
	serverMessage()
}

// ===== 客户端 → 服务端 =====

// Name 申请加入，携带显示名
type Name struct{ Name string }

// Spawn 申请出生点
type Spawn struct{ X, Y uint8 }

// Despawn 释放出生点
type Despawn struct{}

// Ready 准备
type Ready struct{}

// NotReady 取消准备
type NotReady struct{}

// Act 本 Tick 的动作位掩码
type Act struct{ Action game.Action }

func (Name) Tag() Tag     { return TagName }
func (Spawn) Tag() Tag    { return TagSpawn }
func (Despawn) Tag() Tag  { return TagDespawn }
func (Ready) Tag() Tag    { return TagReady }
func (NotReady) Tag() Tag { return TagNotReady }
func (Act) Tag() Tag      { return TagPlayerActions }

func (Name) clientMessage()     {}
func (Spawn) clientMessage()    {}
func (Despawn) clientMessage()  {}
func (Ready) clientMessage()    {}
func (NotReady) clientMessage() {}
func (Act) clientMessage()      {}

// ===== 服务端 → 客户端 =====

// NameNotice 某会话的名字（广播）
type NameNotice struct {
	ID   game.PlayerID
	Name string
}

// AssignID 分配给本连接的编号
type AssignID struct{ ID game.PlayerID }

// MapData 地图文本
type MapData struct {
	Version uint8
	Text    string
}

// ClientInfo 大厅名单中的一项
type ClientInfo struct {
	ID       game.PlayerID
	Name     string
	HasSpawn bool
	X, Y     uint8
	Ready    bool
	Skin     uint8
}

// LobbyInfo 完整名单，只在加入时单独推送
type LobbyInfo struct{ Clients []ClientInfo }

// SpawnNotice 某会话占用了出生点
type SpawnNotice struct {
	ID   game.PlayerID
	X, Y uint8
}

// DespawnNotice 某会话释放了出生点
type DespawnNotice struct{ ID game.PlayerID }

// ReadyNotice 某会话已准备
type ReadyNotice struct{ ID game.PlayerID }

// NotReadyNotice 某会话取消准备
type NotReadyNotice struct{ ID game.PlayerID }

// DisconnectNotice 某会话断开
type DisconnectNotice struct{ ID game.PlayerID }

// Start 比赛开始
type Start struct{}

// PlayerAction 一个玩家在本 Tick 的动作
type PlayerAction struct {
	ID     game.PlayerID
	Action game.Action
}

// ActionsNotice 每个 Tick 广播一次（可以为空），客户端据此回放
type ActionsNotice struct{ Actions []PlayerAction }

// OK 请求被接受
type OK struct{}

// NOK 请求被拒绝
type NOK struct{}

func (NameNotice) Tag() Tag       { return TagName }
func (AssignID) Tag() Tag         { return TagID }
func (MapData) Tag() Tag          { return TagMap }
func (LobbyInfo) Tag() Tag        { return TagLobbyInfo }
func (SpawnNotice) Tag() Tag      { return TagSpawn }
func (DespawnNotice) Tag() Tag    { return TagDespawn }
func (ReadyNotice) Tag() Tag      { return TagReady }
func (NotReadyNotice) Tag() Tag   { return TagNotReady }
func (DisconnectNotice) Tag() Tag { return TagDisconnect }
func (Start) Tag() Tag            { return TagStart }
func (ActionsNotice) Tag() Tag    { return TagPlayerActions }
func (OK) Tag() Tag               { return TagOK }
func (NOK) Tag() Tag              { return TagNOK }

func (NameNotice) serverMessage()       {}
func (AssignID) serverMessage()         {}
func (MapData) serverMessage()          {}
func (LobbyInfo) serverMessage()        {}
func (SpawnNotice) serverMessage()      {}
func (DespawnNotice) serverMessage()    {}
func (ReadyNotice) serverMessage()      {}
func (NotReadyNotice) serverMessage()   {}
func (DisconnectNotice) serverMessage() {}
func (Start) serverMessage()            {}
func (ActionsNotice) serverMessage()    {}
func (OK) serverMessage()               {}
func (NOK) serverMessage()              {}
