package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"bombarena/game"
	"bombarena/logging"
	"bombarena/protocol"
)

const writeWait = 5 * time.Second

// Client 一条到服务端的连接。Run 在单独协程读取并应用服务端消息，
// 其余方法可在任意协程调用
type Client struct {
	conn *websocket.Conn

	writeMu sync.Mutex

	mu     sync.Mutex
	mirror *Mirror

	updates chan struct{}
}

// Dial 连接服务端 /ws 地址
func Dial(ctx context.Context, url string, cfg game.Config) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return &Client{
		conn:    conn,
		mirror:  NewMirror(cfg),
		updates: make(chan struct{}, 1),
	}, nil
}

// Updates 每次镜像变化后可读（合并通知）
func (c *Client) Updates() <-chan struct{} { return c.updates }

// View 持锁读取镜像
func (c *Client) View(fn func(m *Mirror)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c.mirror)
}

// Send 编码并发送一帧
func (c *Client) Send(msg protocol.ClientMessage) error {
	b, err := protocol.EncodeClient(msg)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.BinaryMessage, b)
}

func (c *Client) Join(name string) error  { return c.Send(protocol.Name{Name: name}) }
func (c *Client) Despawn() error          { return c.Send(protocol.Despawn{}) }
func (c *Client) Ready() error            { return c.Send(protocol.Ready{}) }
func (c *Client) NotReady() error         { return c.Send(protocol.NotReady{}) }
func (c *Client) Act(a game.Action) error { return c.Send(protocol.Act{Action: a}) }

func (c *Client) Spawn(p game.Position) error {
	return c.Send(protocol.Spawn{X: uint8(p.X), Y: uint8(p.Y)})
}

// Run 读取服务端消息直到连接断开或 ctx 取消。坏帧丢弃
func (c *Client) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { _ = c.conn.Close() })
	defer stop()
	defer func() {
		c.mu.Lock()
		c.mirror.State = StateDisconnected
		c.mu.Unlock()
		c.notify()
	}()

	for {
		mt, b, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var ce *websocket.CloseError
			if errors.As(err, &ce) && ce.Code == websocket.CloseNormalClosure {
				return nil
			}
			return err
		}
		if mt != websocket.BinaryMessage {
			continue
		}
		msg, err := protocol.DecodeServer(b)
		if err != nil {
			logging.Log.Debugw("frame dropped", "err", err)
			continue
		}
		c.mu.Lock()
		err = c.mirror.Apply(msg)
		c.mu.Unlock()
		if err != nil {
			logging.Log.Warnw("apply", "tag", msg.Tag(), "err", err)
			continue
		}
		c.notify()
	}
}

func (c *Client) notify() {
	select {
	case c.updates <- struct{}{}:
	default:
	}
}

// Close 正常关闭连接
func (c *Client) Close() error {
	c.writeMu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
	c.writeMu.Unlock()
	return c.conn.Close()
}
