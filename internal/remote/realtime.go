package remote

import (
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Event is a create/update notification delivered by the remote store
type Event struct {
	Action     string          `json:"action"` // "create" or "update"
	Collection string          `json:"collection"`
	Record     json.RawMessage `json:"record"`
}

// Subscription is a cancellable handle on a filtered event stream. Events
// arrive on C until Close is called or the connection drops; C is closed
// in both cases.
type Subscription struct {
	ID string
	C  chan Event

	conn       *websocket.Conn
	closedOnce sync.Once
}

// Close cancels the subscription and releases the connection
func (s *Subscription) Close() {
	s.closedOnce.Do(func() {
		s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		s.conn.Close()
	})
}

// Realtime subscribes to create/update events on remote collections over
// a WebSocket channel. Each subscription holds its own connection, so
// closing one never disturbs another.
type Realtime struct {
	wsURL string
	token func() string
}

// NewRealtime creates a realtime channel factory. The token func is called
// at dial time so re-authentication is picked up automatically.
func NewRealtime(baseURL, realtimeURL string, token func() string) *Realtime {
	wsURL := realtimeURL
	if wsURL == "" {
		wsURL = strings.Replace(strings.TrimRight(baseURL, "/"), "http", "ws", 1) + "/api/realtime/ws"
	}
	return &Realtime{wsURL: wsURL, token: token}
}

// Subscribe opens a filtered event stream on a collection
func (r *Realtime) Subscribe(collection, filter string) (*Subscription, error) {
	u, err := url.Parse(r.wsURL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("token", r.token())
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("realtime dial failed: %w", err)
	}

	sub := &Subscription{
		ID:   uuid.New().String(),
		C:    make(chan Event, 64),
		conn: conn,
	}

	subscribeMsg := map[string]string{
		"clientId":   sub.ID,
		"collection": collection,
		"filter":     filter,
	}
	if err := conn.WriteJSON(subscribeMsg); err != nil {
		conn.Close()
		return nil, err
	}

	go sub.readPump()
	go sub.pingLoop()

	return sub, nil
}

// readPump delivers events until the connection drops
func (s *Subscription) readPump() {
	defer func() {
		s.Close()
		close(s.C)
	}()

	s.conn.SetReadLimit(512 * 1024)
	s.conn.SetReadDeadline(time.Now().Add(90 * time.Second))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(90 * time.Second))
		return nil
	})

	for {
		var event Event
		if err := s.conn.ReadJSON(&event); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("Realtime subscription %s closed: %v", s.ID, err)
			}
			return
		}

		select {
		case s.C <- event:
		default:
			// Consumer stalled; drop the event rather than block the pump.
			// The next full refresh reconciles anything missed.
		}
	}
}

// pingLoop keeps the connection alive
func (s *Subscription) pingLoop() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
			return
		}
	}
}
