package realtime

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// AuthorizeFunc decides whether the authenticated caller of r may watch topic.
type AuthorizeFunc func(r *http.Request, topic string) bool

// Gateway streams hub events to WebSocket clients. Clients pass one or more
// ?topic= parameters; every topic must be authorised before the upgrade.
type Gateway struct {
	hub            *Hub
	authorize      AuthorizeFunc
	allowedOrigins []string
	pingInterval   time.Duration
	writeTimeout   time.Duration
	log            *slog.Logger
}

func NewGateway(hub *Hub, authorize AuthorizeFunc, allowedOrigins []string, pingInterval, writeTimeout time.Duration, log *slog.Logger) *Gateway {
	if log == nil {
		log = slog.Default()
	}
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	return &Gateway{
		hub:            hub,
		authorize:      authorize,
		allowedOrigins: allowedOrigins,
		pingInterval:   pingInterval,
		writeTimeout:   writeTimeout,
		log:            log,
	}
}

func (g *Gateway) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			for _, allowed := range g.allowedOrigins {
				if origin == allowed {
					return true
				}
			}
			g.log.Warn("websocket origin rejected", "origin", origin)
			return false
		},
	}
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	topics := r.URL.Query()["topic"]
	if len(topics) == 0 {
		http.Error(w, `{"error":"at least one topic is required"}`, http.StatusBadRequest)
		return
	}
	for _, t := range topics {
		if !g.authorize(r, t) {
			http.Error(w, `{"error":"topic not permitted"}`, http.StatusForbidden)
			return
		}
	}

	up := g.upgrader()
	ws, err := up.Upgrade(w, r, nil)
	if err != nil {
		g.log.Error("websocket upgrade failed", "error", err)
		return
	}
	defer ws.Close()

	events := make(chan Event, 32)
	subs := make([]*Subscription, 0, len(topics))
	for _, t := range topics {
		subs = append(subs, g.hub.Subscribe(t, func(e Event) {
			select {
			case events <- e:
			default:
				g.log.Warn("slow websocket client, dropping event", "topic", e.Topic)
			}
		}))
	}
	defer func() {
		for _, s := range subs {
			s.Cancel()
		}
	}()

	// The read loop only exists to notice the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := ws.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(g.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case e := <-events:
			_ = ws.SetWriteDeadline(time.Now().Add(g.writeTimeout))
			if err := ws.WriteJSON(e); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					g.log.Debug("websocket write failed", "error", err)
				}
				return
			}
		case <-ticker.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(g.writeTimeout)); err != nil {
				return
			}
		}
	}
}
