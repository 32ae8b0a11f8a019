package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/spacemeshos/vdfcache/log"
)

const (
	writeTimeout = 10 * time.Second
	// streamInterval is the minimum time between two messages of a stream.
	// Statuses produced in between are coalesced to the latest.
	streamInterval = 100 * time.Millisecond
)

// origins are checked by withOrigin before the upgrade.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// events streams a status message on every change of the current pool.
func (s *Server) events(w http.ResponseWriter, r *http.Request) {
	logger := s.logger.With(log.ZContext(r.Context()))
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Debug("failed to upgrade event stream", zap.Error(err))
		return
	}
	defer ws.Close()
	streams.Inc()
	defer streams.Dec()

	sub := s.reporter.Subscribe()
	defer sub.Close()

	// the client sends nothing; reading detects when it goes away
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-gone:
		case <-s.closing:
		case <-ctx.Done():
		}
		cancel()
	}()
	limiter := rate.NewLimiter(rate.Every(streamInterval), 1)

	for {
		// an error means the stream is ending, which the select below picks up
		limiter.Wait(ctx)
		select {
		case <-s.closing:
			ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
				time.Now().Add(time.Second))
			return
		case <-gone:
			return
		case st, ok := <-sub.Out():
			if !ok {
				return
			}
			ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := ws.WriteJSON(st); err != nil {
				logger.Debug("event stream closed", zap.Error(err))
				return
			}
		}
	}
}
