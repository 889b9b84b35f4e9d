// Package live serves the realtime change feed over WebSocket.
//
//	GET /realtime/v1/{table}?access_token=<jwt>
//
// After the upgrade the server sends one JSON realtime.Change per text
// message. The client sends nothing; anything it does send is discarded.
// When the subscriber falls too far behind the hub evicts it and the
// server closes the socket with code 4000, telling the client to reload
// the table and resubscribe.
package live

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/smartcampus/campus-api/internal/auth"
	"github.com/smartcampus/campus-api/internal/realtime"
	"github.com/smartcampus/campus-api/internal/types"
	"github.com/smartcampus/campus-api/internal/utils/response"
	"go.uber.org/zap"
)

// CloseEvicted is the close code sent to a subscriber that fell behind.
const CloseEvicted = 4000

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Tables lists the tables a client may subscribe to.
var Tables = map[string]bool{
	types.TableLostAndFound: true,
	types.TableEvents:       true,
	types.TableClubs:        true,
	types.TableFeedback:     true,
}

var errUnknownTable = errors.New("unknown realtime table")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Subscribe handles GET /realtime/v1/{table}. Mount behind RequireUser.
// stop ends every open stream, e.g. on server shutdown.
func Subscribe(hub *realtime.Hub, stop context.Context, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		table := r.PathValue("table")
		if !Tables[table] {
			response.WriteJSON(w, http.StatusNotFound, response.GeneralError(errUnknownTable))
			return
		}
		user, _ := auth.UserFrom(r.Context())

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade has already written an HTTP error.
			log.Warn("websocket upgrade failed", zap.Error(err))
			return
		}
		defer conn.Close()

		sub := hub.Subscribe(table)
		defer sub.Close()

		log.Info("realtime stream opened", zap.String("table", table), zap.String("user_id", user.ID))

		gone := make(chan struct{})
		go readLoop(conn, gone)

		visible := filterFor(table, user)
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()

		for {
			select {
			case change, ok := <-sub.C:
				if !ok {
					log.Warn("realtime subscriber evicted", zap.String("table", table), zap.String("user_id", user.ID))
					closeWith(conn, CloseEvicted, "subscriber fell behind, resubscribe")
					return
				}
				if !visible(change) {
					continue
				}
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteJSON(change); err != nil {
					log.Debug("realtime write failed", zap.Error(err))
					return
				}

			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}

			case <-gone:
				log.Debug("realtime stream closed by client", zap.String("table", table))
				return

			case <-stop.Done():
				closeWith(conn, websocket.CloseGoingAway, "server shutting down")
				return
			}
		}
	}
}

// readLoop drains client frames so pongs and close frames are processed,
// and closes gone when the connection ends.
func readLoop(conn *websocket.Conn, gone chan<- struct{}) {
	defer close(gone)

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func closeWith(conn *websocket.Conn, code int, text string) {
	msg := websocket.FormatCloseMessage(code, text)
	conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}

type ownerRecord struct {
	UserID string `json:"user_id"`
}

// filterFor hides other users' feedback from non-admins.
func filterFor(table string, user types.Profile) func(realtime.Change) bool {
	if table != types.TableFeedback || user.Role == types.RoleAdmin {
		return func(realtime.Change) bool { return true }
	}

	return func(c realtime.Change) bool {
		var owner ownerRecord
		if err := json.Unmarshal(c.Record, &owner); err != nil {
			return false
		}
		return owner.UserID == user.ID
	}
}
