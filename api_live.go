package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/AndyMelnik/sensoriqua/apperr"
	"github.com/AndyMelnik/sensoriqua/warehouse"
)

var liveUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The dashboard is served from arbitrary origins in development; tokens
	// gate access, not the Origin header.
	CheckOrigin: func(r *http.Request) bool { return true },
}

const liveReadTimeout = 90 * time.Second

// liveRequest is one client poll over the live socket. Browsers send a token
// in the query string because the WebSocket API cannot set headers.
type liveRequest struct {
	Type  string           `json:"type"`
	Pairs []warehouse.Pair `json:"pairs"`
}

type liveResponse struct {
	Type   string      `json:"type"`
	Values interface{} `json:"values,omitempty"`
	Series interface{} `json:"series,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// handleLive serves dashboard polling over a persistent socket. The protocol
// is strictly request/response: the client sends sensor pairs and gets the
// matching snapshot back on the same connection.
func handleLive(w http.ResponseWriter, r *http.Request) {
	if token := r.URL.Query().Get("token"); token != "" && r.Header.Get("Authorization") == "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	conn, session, err := sessionWarehouse(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	ws, err := liveUpgrader.Upgrade(w, r, nil)
	if err != nil {
		serverLogger.Warn("WebSocket upgrade failed", "error", err)
		return
	}
	defer ws.Close()
	serverLogger.Debug("Live socket connected", "tenant", session.TenantID)

	ws.SetReadDeadline(time.Now().Add(liveReadTimeout))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(liveReadTimeout))
		return nil
	})

	for {
		_, message, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				serverLogger.Warn("Live socket error", "tenant", session.TenantID, "error", err)
			}
			return
		}
		ws.SetReadDeadline(time.Now().Add(liveReadTimeout))

		var req liveRequest
		if err := json.Unmarshal(message, &req); err != nil {
			sendLiveError(ws, "invalid message format")
			continue
		}

		switch req.Type {
		case "latest":
			values, err := conn.BatchLatest(r.Context(), req.Pairs)
			if err != nil {
				sendLiveError(ws, apperr.Message(err))
				continue
			}
			ws.WriteJSON(liveResponse{Type: "latest", Values: values})
		case "recent":
			series, err := conn.BatchRecent(r.Context(), req.Pairs)
			if err != nil {
				sendLiveError(ws, apperr.Message(err))
				continue
			}
			ws.WriteJSON(liveResponse{Type: "recent", Series: series})
		case "ping":
			ws.WriteJSON(liveResponse{Type: "pong"})
		default:
			sendLiveError(ws, "unknown message type")
		}
	}
}

func sendLiveError(ws *websocket.Conn, msg string) {
	if err := ws.WriteJSON(liveResponse{Type: "error", Error: msg}); err != nil {
		serverLogger.Debug("Failed to send live socket error", "error", err)
	}
}
