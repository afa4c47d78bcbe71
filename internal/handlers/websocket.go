package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"spin-miniapp-backend/internal/middleware"
	"spin-miniapp-backend/internal/services"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler upgrades the page's wallet relay connection and binds it
// to the player as both wallet provider and notification channel.
type WebSocketHandler struct {
	players *services.PlayerRegistry
	hub     *WebSocketHub
	logger  *zap.Logger
}

// WebSocketHub tracks the live page per session. A second page for the same
// session replaces the first.
type WebSocketHub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan *Message
	count      chan chan int
	logger     *zap.Logger
}

type Client struct {
	SessionID string
	Bridge    *services.WalletBridge
}

type Message struct {
	Event string
	Data  interface{}
	done  chan struct{}
}

func NewWebSocketHandler(players *services.PlayerRegistry, logger *zap.Logger) *WebSocketHandler {
	hub := &WebSocketHub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Message, 100),
		count:      make(chan chan int),
		logger:     logger,
	}

	go hub.run()

	return &WebSocketHandler{
		players: players,
		hub:     hub,
		logger:  logger,
	}
}

func (h *WebSocketHandler) Hub() *WebSocketHub {
	return h.hub
}

func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	sessionID := c.GetString(middleware.ContextSessionID)

	player, ok := resolvePlayer(c, h.players)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	logger := h.logger.With(zap.String("session_id", sessionID))
	bridge := services.NewWalletBridge(conn, logger)
	client := &Client{SessionID: sessionID, Bridge: bridge}

	h.hub.register <- client
	defer func() {
		h.hub.unregister <- client
	}()

	// wallet=none means the page found no injected wallet.
	if c.Query("wallet") == "none" {
		player.Attach(nil, bridge)
	} else {
		player.Attach(bridge, bridge)
	}

	if err := bridge.Notify(services.NotifyWalletState, player.Session().State().Response()); err != nil {
		logger.Debug("initial wallet state push failed", zap.Error(err))
	}

	if err := bridge.Run(); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
			logger.Warn("websocket error", zap.Error(err))
		}
	}

	if player.Release(bridge) {
		logger.Info("wallet relay closed")
	}
}

func (hub *WebSocketHub) run() {
	for {
		select {
		case client := <-hub.register:
			if old, ok := hub.clients[client.SessionID]; ok && old != client {
				old.Bridge.Close()
			}
			hub.clients[client.SessionID] = client
			hub.logger.Debug("client registered", zap.String("session_id", client.SessionID))

		case client := <-hub.unregister:
			if current, ok := hub.clients[client.SessionID]; ok && current == client {
				delete(hub.clients, client.SessionID)
				hub.logger.Debug("client unregistered", zap.String("session_id", client.SessionID))
			}

		case message := <-hub.broadcast:
			hub.broadcastMessage(message)
			close(message.done)

		case reply := <-hub.count:
			reply <- len(hub.clients)
		}
	}
}

func (hub *WebSocketHub) broadcastMessage(message *Message) {
	for _, client := range hub.clients {
		if err := client.Bridge.Notify(message.Event, message.Data); err != nil {
			hub.logger.Debug("broadcast failed", zap.String("session_id", client.SessionID), zap.Error(err))
		}
	}
}

// Broadcast pushes a notification to every live page and returns once it
// has been written to each of them.
func (hub *WebSocketHub) Broadcast(event string, data interface{}) {
	message := &Message{Event: event, Data: data, done: make(chan struct{})}
	hub.broadcast <- message
	<-message.done
}

func (hub *WebSocketHub) Len() int {
	reply := make(chan int)
	hub.count <- reply
	return <-reply
}
