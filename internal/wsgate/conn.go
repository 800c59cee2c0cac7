package wsgate

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

var errConnClosed = errors.New("websocket connection closed")

// wsConn wraps a websocket connection behind the core's Conn interface.
// A single write mutex serializes response and push frames; reads are
// owned exclusively by the gateway's read loop.
type wsConn struct {
	conn         *websocket.Conn
	writeTimeout time.Duration

	writeMu sync.Mutex
	closed  atomic.Bool
}

func newWSConn(conn *websocket.Conn, writeTimeout time.Duration) *wsConn {
	return &wsConn{conn: conn, writeTimeout: writeTimeout}
}

func (c *wsConn) Open() bool { return !c.closed.Load() }

func (c *wsConn) SendJSON(ctx context.Context, v any) error {
	if c.closed.Load() {
		return errConnClosed
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	wctx, cancel := context.WithTimeout(ctx, c.writeTimeout)
	defer cancel()
	return wsjson.Write(wctx, c.conn, v)
}

// markClosed flips Open to false; the account layer uses that to treat a
// stale binding as free for the next login.
func (c *wsConn) markClosed() { c.closed.Store(true) }
