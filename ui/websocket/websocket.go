package websocket

import (
	"context"
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
	valkeylib "github.com/valkey-io/valkey-go"

	agencydomain "github.com/tkamdem/livrazone/agency/domain"
	authapp "github.com/tkamdem/livrazone/auth/application"
	"github.com/tkamdem/livrazone/core/tenant"
	"github.com/tkamdem/livrazone/core/valkey"
	deliverydomain "github.com/tkamdem/livrazone/delivery/domain"
)

type client struct {
	scope tenant.Scope
}

// DeliveryEvent is the live-feed payload: one persisted mutation.
type DeliveryEvent struct {
	Event    string                   `json:"event"`
	Delivery *deliverydomain.Delivery `json:"delivery"`
	SenderID string                   `json:"sender_id,omitempty"`
}

var (
	clients    = make(map[*websocket.Conn]client)
	register   = make(chan registration)
	broadcast  = make(chan DeliveryEvent)
	unregister = make(chan *websocket.Conn)

	vkClient *valkey.Client
	wsChan   = "livrazone:ws_broadcast"
	localID  string
)

type registration struct {
	conn  *websocket.Conn
	scope tenant.Scope
}

// SetValkeyClient enables cross-instance event propagation.
func SetValkeyClient(c *valkey.Client, serverID string) {
	vkClient = c
	localID = serverID
}

// Publish feeds one mutation into the hub; the ingestion pipeline's
// OnChange hook hangs off this.
func Publish(event string, d *deliverydomain.Delivery) {
	broadcast <- DeliveryEvent{Event: event, Delivery: d}
}

func broadcastToLocal(ev DeliveryEvent) {
	for conn, cl := range clients {
		if ev.Delivery != nil && !cl.scope.Allows(ev.Delivery.AgencyID) {
			continue
		}
		payload, err := json.Marshal(ev)
		if err != nil {
			logrus.Errorf("[WS] Marshal error: %v", err)
			return
		}
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			logrus.Errorf("[WS] Write error: %v", err)
			closeConnection(conn)
		}
	}
}

func publishToValkey(ev DeliveryEvent) {
	if vkClient == nil {
		return
	}
	ev.SenderID = localID
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	cmd := vkClient.Inner().B().Publish().Channel(wsChan).Message(string(data)).Build()
	if err := vkClient.Inner().Do(context.Background(), cmd).Error(); err != nil {
		logrus.Errorf("[WS] Failed to publish to Valkey: %v", err)
	}
}

func startValkeySubscriber() {
	if vkClient == nil {
		return
	}
	logrus.Info("[WS] Starting Valkey Pub/Sub subscriber for distributed events")
	go func() {
		err := vkClient.Inner().Receive(context.Background(),
			vkClient.Inner().B().Subscribe().Channel(wsChan).Build(),
			func(msg valkeylib.PubSubMessage) {
				var ev DeliveryEvent
				if err := json.Unmarshal([]byte(msg.Message), &ev); err == nil {
					if ev.SenderID == localID {
						return
					}
					broadcastToLocal(ev)
				}
			})
		if err != nil {
			logrus.Errorf("[WS] Valkey subscriber failed: %v", err)
		}
	}()
}

func closeConnection(conn *websocket.Conn) {
	_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
	_ = conn.Close()
	delete(clients, conn)
}

// RunHub owns the client set; all map access happens on this goroutine.
func RunHub() {
	if vkClient != nil {
		startValkeySubscriber()
	}
	for {
		select {
		case reg := <-register:
			clients[reg.conn] = client{scope: reg.scope}
			logrus.Debug("[WS] Connection registered")
		case conn := <-unregister:
			delete(clients, conn)
			logrus.Debug("[WS] Connection unregistered")
		case ev := <-broadcast:
			broadcastToLocal(ev)
			if vkClient != nil {
				publishToValkey(ev)
			}
		}
	}
}

// RegisterRoutes mounts GET /ws. The token travels as a query
// parameter because browser websocket clients cannot set headers.
func RegisterRoutes(app fiber.Router, auth *authapp.AuthService) {
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return c.SendStatus(fiber.StatusUpgradeRequired)
	})

	app.Get("/ws", websocket.New(func(conn *websocket.Conn) {
		defer func() {
			unregister <- conn
			_ = conn.Close()
		}()

		claims, err := auth.Authenticate(context.Background(), conn.Query("token"))
		if err != nil {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"UNAUTHENTICATED"}`))
			return
		}
		scope := tenant.ForAgency(claims.AgencyID)
		if claims.Role == agencydomain.RoleSuperAdmin {
			scope = tenant.SuperAdmin()
		}
		register <- registration{conn: conn, scope: scope}

		// Reads keep the connection alive; the feed is one-way.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					logrus.Debugf("[WS] Read error: %v", err)
				}
				return
			}
		}
	}))
}
