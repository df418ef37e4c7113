package server

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"bombarena/logging"
	"bombarena/protocol"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// ClientConn 负责发送（写）数据到客户端的轻量包装。
// Enqueue 与 Close 只由主循环调用
type ClientConn struct {
	ws        *websocket.Conn
	send      chan []byte
	closeOnce sync.Once
	closed    bool
}

func NewClientConn(ws *websocket.Conn, queue int) *ClientConn {
	return &ClientConn{
		ws:   ws,
		send: make(chan []byte, queue),
	}
}

// Enqueue 将一帧压入队列（非阻塞），满或已关闭返回 false
func (c *ClientConn) Enqueue(b []byte) bool {
	if c.closed {
		return false
	}
	select {
	case c.send <- b:
		return true
	default:
		return false
	}
}

// Close 关闭发送队列；写协程发完剩余帧后关闭底层连接
func (c *ClientConn) Close() {
	c.closeOnce.Do(func() {
		c.closed = true
		close(c.send)
	})
}

// RemoteAddr 对端地址
func (c *ClientConn) RemoteAddr() string { return c.ws.RemoteAddr().String() }

// writePump 独立协程，负责从 send 队列写出到 WS，并定期 ping
func (c *ClientConn) writePump() {
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ping.Stop()
		_ = c.ws.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.ws.WriteMessage(websocket.BinaryMessage, msg); err != nil {
				return
			}
		case <-ping.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump 读取客户端帧，解码后交给主循环；坏帧丢弃，连接保留
func (c *ClientConn) readPump(srv *Server, s *Session) {
	// 读泵退出即断线，由主循环清理会话
	defer srv.detach(s)
	defer c.ws.Close()
	c.ws.SetReadLimit(protocol.MaxClientFrame)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error { return c.ws.SetReadDeadline(time.Now().Add(pongWait)) })

	for {
		mt, payload, err := c.ws.ReadMessage()
		if err != nil {
			var ce *websocket.CloseError
			if !errors.As(err, &ce) {
				logging.Log.Debugw("read failed", "remote", c.RemoteAddr(), "err", err)
			}
			return
		}
		if mt != websocket.BinaryMessage {
			srv.metrics.IncMalformed()
			continue
		}
		msg, err := protocol.DecodeClient(payload)
		if err != nil {
			srv.metrics.IncMalformed()
			logging.Log.Debugw("frame dropped", "remote", c.RemoteAddr(), "err", err)
			continue
		}
		if !srv.deliver(s, msg) {
			return
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// 终端客户端不带 Origin，允许所有来源
		return true
	},
}

// HandleWS WebSocket 接入：每条二进制消息是一帧
func (srv *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	if srv.closing.Load() {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Log.Warnw("upgrade error", "remote", r.RemoteAddr, "err", err)
		return
	}

	client := NewClientConn(ws, srv.cfg.SendQueue)
	s := srv.attach(client)
	if s == nil {
		_ = ws.Close()
		return
	}
	go client.writePump()
	go client.readPump(srv, s)
}
