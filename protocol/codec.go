package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"bombarena/game"
)

// 解码失败一律丢弃该帧，调用方用 errors.Is 区分原因
var (
	ErrUnknownTag = errors.New("protocol: unknown tag")
	ErrTruncated  = errors.New("protocol: truncated frame")
	ErrBadValue   = errors.New("protocol: value out of range")
	ErrTooLarge   = errors.New("protocol: field too large")
	ErrTrailing   = errors.New("protocol: trailing bytes")
)

// MaxClientFrame 客户端帧上限：最长的是 NAME（标签、长度、255 字节名字），
// 服务端读端据此设置 ReadLimit
const MaxClientFrame = 1 + 1 + math.MaxUint8

// ===== 编码 =====

// EncodeClient 编码客户端消息
func EncodeClient(m ClientMessage) ([]byte, error) {
	b := []byte{byte(m.Tag())}
	switch v := m.(type) {
	case Name:
		return appendString(b, v.Name)
	case Spawn:
		return append(b, v.X, v.Y), nil
	case Despawn, Ready, NotReady:
		return b, nil
	case Act:
		a := v.Action.ClientSide()
		if a != v.Action {
			return nil, fmt.Errorf("%w: action %#x", ErrBadValue, uint8(v.Action))
		}
		return append(b, byte(a)), nil
	default:
		return nil, fmt.Errorf("protocol: cannot encode %T", m)
	}
}

// EncodeServer 编码服务端消息
func EncodeServer(m ServerMessage) ([]byte, error) {
	b := []byte{byte(m.Tag())}
	switch v := m.(type) {
	case NameNotice:
		return appendString(append(b, byte(v.ID)), v.Name)
	case AssignID:
		return append(b, byte(v.ID)), nil
	case MapData:
		if len(v.Text) > math.MaxUint16 {
			return nil, fmt.Errorf("%w: map %d bytes", ErrTooLarge, len(v.Text))
		}
		b = append(b, v.Version)
		b = binary.BigEndian.AppendUint16(b, uint16(len(v.Text)))
		return append(b, v.Text...), nil
	case LobbyInfo:
		if len(v.Clients) > math.MaxUint8 {
			return nil, fmt.Errorf("%w: %d clients", ErrTooLarge, len(v.Clients))
		}
		b = append(b, byte(len(v.Clients)))
		var err error
		for _, c := range v.Clients {
			b, err = appendString(append(b, byte(c.ID)), c.Name)
			if err != nil {
				return nil, err
			}
			b = append(b, boolByte(c.HasSpawn))
			if c.HasSpawn {
				b = append(b, c.X, c.Y, boolByte(c.Ready), c.Skin)
			}
		}
		return b, nil
	case SpawnNotice:
		return append(b, byte(v.ID), v.X, v.Y), nil
	case DespawnNotice:
		return append(b, byte(v.ID)), nil
	case ReadyNotice:
		return append(b, byte(v.ID)), nil
	case NotReadyNotice:
		return append(b, byte(v.ID)), nil
	case DisconnectNotice:
		return append(b, byte(v.ID)), nil
	case ActionsNotice:
		if len(v.Actions) > math.MaxUint8 {
			return nil, fmt.Errorf("%w: %d actions", ErrTooLarge, len(v.Actions))
		}
		b = append(b, byte(len(v.Actions)))
		for _, pa := range v.Actions {
			if !pa.Action.Valid() {
				return nil, fmt.Errorf("%w: action %#x", ErrBadValue, uint8(pa.Action))
			}
			b = append(b, byte(pa.ID), byte(pa.Action))
		}
		return b, nil
	case Start, OK, NOK:
		return b, nil
	default:
		return nil, fmt.Errorf("protocol: cannot encode %T", m)
	}
}

func appendString(b []byte, s string) ([]byte, error) {
	if len(s) > math.MaxUint8 {
		return nil, fmt.Errorf("%w: string %d bytes", ErrTooLarge, len(s))
	}
	b = append(b, byte(len(s)))
	return append(b, s...), nil
}

func boolByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}

// ===== 解码 =====

// DecodeClient 解析客户端帧，服务端调用
func DecodeClient(frame []byte) (ClientMessage, error) {
	r := reader{b: frame}
	tag := Tag(r.u8())
	if r.err != nil {
		return nil, r.err
	}
	var m ClientMessage
	switch tag {
	case TagName:
		m = Name{Name: r.str()}
	case TagSpawn:
		m = Spawn{X: r.u8(), Y: r.u8()}
	case TagDespawn:
		m = Despawn{}
	case TagReady:
		m = Ready{}
	case TagNotReady:
		m = NotReady{}
	case TagPlayerActions:
		a := game.Action(r.u8())
		if r.err == nil && a.ClientSide() != a {
			r.fail(fmt.Errorf("%w: action %#x", ErrBadValue, uint8(a)))
		}
		m = Act{Action: a}
	default:
		return nil, fmt.Errorf("%w: %s from client", ErrUnknownTag, tag)
	}
	return m, r.done()
}

// DecodeServer 解析服务端帧，客户端调用
func DecodeServer(frame []byte) (ServerMessage, error) {
	r := reader{b: frame}
	tag := Tag(r.u8())
	if r.err != nil {
		return nil, r.err
	}
	var m ServerMessage
	switch tag {
	case TagName:
		m = NameNotice{ID: r.id(), Name: r.str()}
	case TagID:
		m = AssignID{ID: r.id()}
	case TagMap:
		ver := r.u8()
		n := int(r.u16())
		m = MapData{Version: ver, Text: string(r.bytes(n))}
	case TagLobbyInfo:
		n := int(r.u8())
		clients := make([]ClientInfo, 0, n)
		for i := 0; i < n && r.err == nil; i++ {
			c := ClientInfo{ID: r.id(), Name: r.str()}
			c.HasSpawn = r.bool()
			if c.HasSpawn {
				c.X, c.Y = r.u8(), r.u8()
				c.Ready = r.bool()
				c.Skin = r.u8()
			}
			clients = append(clients, c)
		}
		m = LobbyInfo{Clients: clients}
	case TagSpawn:
		m = SpawnNotice{ID: r.id(), X: r.u8(), Y: r.u8()}
	case TagDespawn:
		m = DespawnNotice{ID: r.id()}
	case TagReady:
		m = ReadyNotice{ID: r.id()}
	case TagNotReady:
		m = NotReadyNotice{ID: r.id()}
	case TagDisconnect:
		m = DisconnectNotice{ID: r.id()}
	case TagStart:
		m = Start{}
	case TagOK:
		m = OK{}
	case TagNOK:
		m = NOK{}
	case TagPlayerActions:
		n := int(r.u8())
		actions := make([]PlayerAction, 0, n)
		for i := 0; i < n && r.err == nil; i++ {
			pa := PlayerAction{ID: r.id(), Action: game.Action(r.u8())}
			if r.err == nil && !pa.Action.Valid() {
				r.fail(fmt.Errorf("%w: action %#x", ErrBadValue, uint8(pa.Action)))
			}
			actions = append(actions, pa)
		}
		m = ActionsNotice{Actions: actions}
	default:
		return nil, fmt.Errorf("%w: %s from server", ErrUnknownTag, tag)
	}
	return m, r.done()
}

// reader 顺序读取，第一次出错后所有读取返回零值
type reader struct {
	b   []byte
	off int
	err error
}

func (r *reader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *reader) bytes(n int) []byte {
	if r.err != nil {
		return nil
	}
	if len(r.b)-r.off < n {
		r.fail(fmt.Errorf("%w: need %d bytes at offset %d", ErrTruncated, n, r.off))
		return nil
	}
	out := r.b[r.off : r.off+n]
	r.off += n
	return out
}

func (r *reader) u8() uint8 {
	if b := r.bytes(1); b != nil {
		return b[0]
	}
	return 0
}

func (r *reader) u16() uint16 {
	if b := r.bytes(2); b != nil {
		return binary.BigEndian.Uint16(b)
	}
	return 0
}

func (r *reader) id() game.PlayerID { return game.PlayerID(r.u8()) }

func (r *reader) str() string {
	n := int(r.u8())
	return string(r.bytes(n))
}

func (r *reader) bool() bool {
	v := r.u8()
	if v > 1 {
		r.fail(fmt.Errorf("%w: bool %d", ErrBadValue, v))
	}
	return v == 1
}

func (r *reader) done() error {
	if r.err != nil {
		return r.err
	}
	if r.off != len(r.b) {
		return fmt.Errorf("%w: %d bytes", ErrTrailing, len(r.b)-r.off)
	}
	return nil
}
