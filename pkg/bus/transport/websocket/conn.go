// Package websocket tunnels the bus byte stream over a websocket, so a
// session can run against a serial line attached to another host.
package websocket

import (
	"io"
	"sync"

	"github.com/golang/glog"
	"golang.org/x/net/websocket"
)

// Conn is a bus transport over a websocket connection. Every Write is
// sent as one binary frame.
type Conn struct {
	*websocket.Conn
}

// New wraps websocket.Conn.
func New(conn *websocket.Conn) *Conn {
	conn.PayloadType = websocket.BinaryFrame
	return &Conn{Conn: conn}
}

// Dial connects to a websocket endpoint serving bus bytes.
func Dial(url, origin string) (*Conn, error) {
	conn, err := websocket.Dial(url, "", origin)
	if err != nil {
		return nil, err
	}
	return New(conn), nil
}

// Handler exposes rw to one websocket client at a time. Bytes from the
// client are written to rw, bytes read from rw are sent to the client.
func Handler(rw io.ReadWriter) websocket.Handler {
	var lock sync.Mutex
	return func(ws *websocket.Conn) {
		lock.Lock()
		defer lock.Unlock()
		conn := New(ws)
		defer conn.Close()
		glog.Infof("websocket: client %s attached", ws.Request().RemoteAddr)

		stop, done := make(chan struct{}), make(chan struct{})
		go func() {
			defer close(done)
			pump(conn, rw, stop)
		}()
		if _, err := io.Copy(rw, conn); err != nil {
			glog.V(1).Infof("websocket: upstream: %v", err)
		}
		close(stop)
		conn.Close()
		<-done
		glog.Infof("websocket: client %s detached", ws.Request().RemoteAddr)
	}
}

// pump copies rw to conn. rw may return zero bytes on read timeout,
// which is when stop is checked.
func pump(conn *Conn, rw io.Reader, stop <-chan struct{}) {
	buf := make([]byte, 256)
	for {
		n, err := rw.Read(buf)
		if n > 0 {
			if _, werr := conn.Write(buf[:n]); werr != nil {
				glog.V(1).Infof("websocket: downstream: %v", werr)
				return
			}
		}
		if err != nil {
			glog.V(1).Infof("websocket: downstream: %v", err)
			return
		}
		select {
		case <-stop:
			return
		default:
		}
	}
}
