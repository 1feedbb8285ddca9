// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package monitor

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const wsWriteTimeout = 2 * time.Second

// Hub broadcasts events to websocket clients.
//
// A newly connected client first receives the last event of each block.
type Hub struct {
	msg *log.Logger
	upg websocket.Upgrader

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
	last  map[string]Event
}

func NewHub() *Hub {
	return &Hub{
		msg: log.New(os.Stdout, "monitor-ws: ", 0),
		upg: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		conns: make(map[*websocket.Conn]struct{}),
		last:  make(map[string]Event),
	}
}

func (hub *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := hub.upg.Upgrade(w, r, nil)
	if err != nil {
		hub.msg.Printf("could not upgrade connection: %+v", err)
		return
	}

	hub.mu.Lock()
	for _, evt := range hub.last {
		err = hub.write(conn, evt)
		if err != nil {
			break
		}
	}
	if err != nil {
		hub.mu.Unlock()
		hub.msg.Printf("could not send initial state to %v: %+v", conn.RemoteAddr(), err)
		_ = conn.Close()
		return
	}
	hub.conns[conn] = struct{}{}
	hub.mu.Unlock()

	// drain incoming messages until the client goes away.
	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				hub.msg.Printf("websocket error: %+v", err)
			}
			break
		}
	}

	hub.mu.Lock()
	delete(hub.conns, conn)
	hub.mu.Unlock()
	_ = conn.Close()
}

func (hub *Hub) Send(ctx context.Context, evt Event) error {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	hub.last[evt.Block] = evt

	var nerr int
	for conn := range hub.conns {
		err := hub.write(conn, evt)
		if err != nil {
			nerr++
			delete(hub.conns, conn)
			_ = conn.Close()
		}
	}
	if nerr > 0 {
		return fmt.Errorf("monitor: could not send event to %d websocket client(s)", nerr)
	}
	return nil
}

func (hub *Hub) write(conn *websocket.Conn, evt Event) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteJSON(evt)
}

// Close disconnects all clients.
func (hub *Hub) Close() error {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	for conn := range hub.conns {
		_ = conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(wsWriteTimeout),
		)
		_ = conn.Close()
		delete(hub.conns, conn)
	}
	return nil
}

var (
	_ Sink         = (*Hub)(nil)
	_ http.Handler = (*Hub)(nil)
)
