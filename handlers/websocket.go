package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/AanchalYadav15/acciguard/broadcast"
	"github.com/AanchalYadav15/acciguard/metrics"
	"github.com/AanchalYadav15/acciguard/services"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// LiveWebSocket sends initial_data with recent predictions and stats, then
// relays every new_prediction event until the client disconnects.
func LiveWebSocket(svc *services.PredictionService, sub broadcast.Subscriber, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.WithError(err).Warn("websocket upgrade failed")
			return
		}
		defer conn.Close()

		m.LiveClients.Inc()
		defer m.LiveClients.Dec()

		ctx, cancel := context.WithCancel(c.Request.Context())
		defer cancel()

		// Read pump: detect client disconnect
		go func() {
			defer cancel()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		// Subscribe before the snapshot so nothing published in between is lost.
		events, err := sub.Subscribe(ctx)
		if err != nil {
			log.WithError(err).Error("live subscription failed")
			return
		}

		snapshot, err := svc.Snapshot(ctx)
		if err != nil {
			log.WithError(err).Error("load initial data failed")
			return
		}
		initial, err := broadcast.NewEnvelope(broadcast.EventInitialData, snapshot)
		if err != nil {
			log.WithError(err).Error("encode initial data failed")
			return
		}
		if err := writeEnvelope(conn, initial); err != nil {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case env, ok := <-events:
				if !ok {
					return
				}
				if err := writeEnvelope(conn, env); err != nil {
					log.WithError(err).Debug("ws write error")
					return
				}
			}
		}
	}
}

func writeEnvelope(conn *websocket.Conn, env broadcast.Envelope) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteJSON(env)
}
