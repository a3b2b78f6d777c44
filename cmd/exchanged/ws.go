package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/tradingfloor/exchange-core/internal/fanout"
)

// Keepalive timings, adapted from the teacher pack's websocket hub
// (0xtitan6-polymarket-mm/internal/api/stream.go).
const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleWebSocket authenticates by api_key query parameter at handshake
// (the header-based scheme the REST handlers use doesn't carry over to a
// browser WebSocket upgrade), subscribes the team to its fan-out channel,
// and immediately pushes a position_snapshot before streaming live events.
func (a *API) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("api_key")
	if key == "" {
		http.Error(w, "missing api_key", http.StatusUnauthorized)
		return
	}
	team, err := a.venue.Teams.Authenticate(key)
	if err != nil {
		http.Error(w, "invalid api_key", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	events, unsubscribe := a.hub.Subscribe(team.ID)
	broadcastEvents, unsubscribeBroadcast := a.hub.SubscribeBroadcast()

	go a.servePushChannel(conn, team.ID, events, broadcastEvents, unsubscribe, unsubscribeBroadcast)
}

func (a *API) servePushChannel(conn *websocket.Conn, teamID string, events, broadcastEvents <-chan fanout.Event, unsubscribe, unsubscribeBroadcast func()) {
	defer unsubscribe()
	defer unsubscribeBroadcast()
	defer conn.Close()

	readDone := make(chan struct{})
	go a.drainReads(conn, readDone)

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	snapshot := fanout.Event{Type: fanout.EventPositionSnapshot, Timestamp: time.Now(), Data: a.venue.Positions.Snapshot(teamID)}
	if err := a.writeEvent(conn, snapshot); err != nil {
		return
	}

	for {
		select {
		case evt, ok := <-events:
			if !ok {
				return
			}
			if err := a.writeEvent(conn, evt); err != nil {
				return
			}
		case evt, ok := <-broadcastEvents:
			if !ok {
				return
			}
			if err := a.writeEvent(conn, evt); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-readDone:
			return
		}
	}
}

func (a *API) writeEvent(conn *websocket.Conn, evt fanout.Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		a.logger.Error("failed to marshal push event", zap.Error(err))
		return nil
	}
	conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteMessage(websocket.TextMessage, data)
}

// drainReads discards client frames (the push channel is server-to-client
// only) and keeps the read deadline alive via pong handling, mirroring the
// teacher pack's read-only readPump.
func (a *API) drainReads(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
