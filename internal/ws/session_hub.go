package ws

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 256
)

// SessionPayload is pushed to lab dashboards when a student logs in.
type SessionPayload struct {
	LabID        string  `json:"lab_id"`
	MachineName  string  `json:"machine_name"`
	StudentName  string  `json:"student_name"`
	ClassVar     string  `json:"class_var"`
	SessionStart string  `json:"session_start"`
	CPUUsage     float64 `json:"cpu_usage"`
	RAMUsage     float64 `json:"ram_usage"`
	CPUTemp      float64 `json:"cpu_temp"`
}

type sessionMessage struct {
	labID   string
	payload []byte
}

// SessionHub fans new login sessions out to websocket clients. Each
// client only receives sessions for labs it is a member of.
type SessionHub struct {
	register   chan *sessionClient
	unregister chan *sessionClient
	broadcast  chan sessionMessage
	clients    map[*sessionClient]struct{}
}

func NewSessionHub() *SessionHub {
	return &SessionHub{
		register:   make(chan *sessionClient),
		unregister: make(chan *sessionClient),
		broadcast:  make(chan sessionMessage, 256),
		clients:    make(map[*sessionClient]struct{}),
	}
}

func (h *SessionHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = struct{}{}
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				client.conn.Close()
			}
		case msg := <-h.broadcast:
			for client := range h.clients {
				if _, ok := client.allowedLabs[msg.labID]; !ok {
					continue
				}
				select {
				case client.send <- msg.payload:
				default:
					delete(h.clients, client)
					close(client.send)
					client.conn.Close()
				}
			}
		}
	}
}

// Broadcast pushes a session to every client watching its lab.
func (h *SessionHub) Broadcast(payload SessionPayload) {
	if h == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("ws: failed to marshal payload: %v", err)
		return
	}
	h.broadcast <- sessionMessage{labID: payload.LabID, payload: data}
}

type sessionClient struct {
	hub         *SessionHub
	conn        *websocket.Conn
	send        chan []byte
	allowedLabs map[string]struct{}
}

func newSessionClient(hub *SessionHub, conn *websocket.Conn, allowed map[string]struct{}) *sessionClient {
	return &sessionClient{
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, sendBufferSize),
		allowedLabs: allowed,
	}
}

func (c *sessionClient) readPump() {
	defer func() {
		c.hub.unregister <- c
	}()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (c *sessionClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			if _, err := w.Write(msg); err != nil {
				return
			}
			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
