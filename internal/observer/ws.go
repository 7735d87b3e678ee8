package observer

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// registerWSRoute serves the event stream. Each client first receives a
// connection event carrying the current session snapshot, so an
// observer joining mid-interview is not blind until the next broadcast.
func registerWSRoute(mux *http.ServeMux, hub *Hub, controls Controls) {
	mux.HandleFunc("GET /ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("ws upgrade error: %v", err)
			return
		}
		defer func() { _ = conn.Close() }()

		hello := ConnectionEvent{
			Event:     newEvent("connection", time.Now().UTC()),
			Connected: true,
		}
		if controls.Snapshot != nil {
			hello.Session = controls.Snapshot()
		}
		if payload, err := json.Marshal(hello); err == nil {
			_ = conn.WriteMessage(websocket.TextMessage, payload)
		}

		ch := hub.Subscribe()
		defer hub.Unsubscribe(ch)

		for msg := range ch {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	})
}
