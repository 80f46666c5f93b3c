// Package websocket provides live state updates for geocoin hunt sessions.
//
// The websocket package implements:
//   - Session-scoped WebSocket connections (/ws?session=<id>)
//   - Broadcasting of the GameState after every mutation
//   - Connection lifecycle management with ping/pong keepalive
//
// Architecture:
//
// A central Hub owns every connection. Its Run loop is the only goroutine
// that registers or unregisters clients, and it fans broadcast messages out to
// the clients of one session. Each client has a read pump, which only keeps
// the connection alive, and a write pump that drains its send buffer.
// Clients whose buffer is full are dropped rather than stalling the hub.
//
// Message Protocol:
//
// Outgoing messages are JSON objects:
//
//	{
//	  "session_id": "ab12",
//	  "event": "state_update",
//	  "game_state": {...},
//	  "events": [{"type": "grab", ...}]
//	}
//
// Usage:
//
//	hub := websocket.NewHub()
//	go hub.Run(ctx)
//
//	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
//		hub.ServeWS(w, r, r.URL.Query().Get("session"))
//	})
//
//	hub.BroadcastToSession(sessionID, state, events...)
package websocket
