package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"blogd/internal/broadcast"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Gateway relays broadcast events to WebSocket clients. Each connection is
// subscribed to the blog feed for its lifetime; inbound client messages are
// not interpreted.
type Gateway struct {
	broadcaster broadcast.Broadcaster
	logger      *logrus.Logger
}

func NewGateway(broadcaster broadcast.Broadcaster, logger *logrus.Logger) *Gateway {
	return &Gateway{
		broadcaster: broadcaster,
		logger:      logger,
	}
}

func (g *Gateway) RegisterRoutes(router *gin.Engine) {
	router.GET("/ws/blog", g.handleFeed)
}

func (g *Gateway) handleFeed(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		g.logger.Warnf("websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	sub := g.broadcaster.Subscribe(broadcast.TopicBlogFeed)
	defer sub.Close()

	// Drain inbound frames only to notice the client going away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case event, ok := <-sub.Events():
			if !ok {
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		}
	}
}
