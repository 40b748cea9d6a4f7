package transport

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"chat-sync/internal/httpx"
	"chat-sync/internal/models"
	"chat-sync/internal/observability"
)

var (
	// ErrNoCredential means Connect was called without a stored session
	// token. This is a local configuration error, not a network one.
	ErrNoCredential = errors.New("no session credential")
	// ErrAuthRejected means the server refused the handshake credential.
	ErrAuthRejected = errors.New("socket authentication rejected")
	// ErrNotConnected means an emission was dropped because the socket
	// is down. Callers queue if they need delivery guarantees.
	ErrNotConnected = errors.New("socket not connected")
)

// Handler receives the raw payload of one socket event.
type Handler func(data json.RawMessage)

// Options configures a Client.
type Options struct {
	URL               string
	DialTimeout       time.Duration
	ReconnectAttempts int
	ReconnectDelay    time.Duration
}

// Client owns one logical connection to the realtime server. It hides
// reconnect and event demultiplexing from callers: inbound frames are
// republished unchanged to subscribers, no business transformation.
type Client struct {
	opts  Options
	creds httpx.CredentialStore

	mu          sync.RWMutex
	conn        *websocket.Conn
	subs        map[models.EventType]map[int]Handler
	nextSub     int
	closing     bool
	onReconnect []func()

	writeMu sync.Mutex
}

// NewClient builds a disconnected Client.
func NewClient(opts Options, creds httpx.CredentialStore) *Client {
	return &Client{
		opts:  opts,
		creds: creds,
		subs:  make(map[models.EventType]map[int]Handler),
	}
}

// Connect establishes the connection. No-op if already connected.
// Fails fast without dialing when no credential is stored.
func (c *Client) Connect() error {
	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		return nil
	}
	c.closing = false
	c.mu.Unlock()

	token := c.creds.Token()
	if token == "" {
		log.Printf("socket connect aborted: no session credential")
		return ErrNoCredential
	}

	conn, err := c.dial(token)
	for attempt := 1; err != nil && !errors.Is(err, ErrAuthRejected) && attempt <= c.opts.ReconnectAttempts; attempt++ {
		log.Printf("socket connect attempt %d/%d failed: %v", attempt, c.opts.ReconnectAttempts, err)
		time.Sleep(c.opts.ReconnectDelay)
		observability.IncSocketReconnect()
		conn, err = c.dial(token)
	}
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.closing || c.conn != nil {
		// A teardown or competing connect raced the dial; it wins.
		c.mu.Unlock()
		conn.Close()
		return nil
	}
	c.conn = conn
	c.mu.Unlock()
	observability.SetSocketConnected(true)
	go c.readPump(conn)
	return nil
}

// Disconnect tears down the connection and clears every subscription so
// no stale callback survives a logout/login cycle.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.closing = true
	conn := c.conn
	c.conn = nil
	c.subs = make(map[models.EventType]map[int]Handler)
	c.onReconnect = nil
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	observability.SetSocketConnected(false)
}

// Connected reports whether the socket is currently established.
func (c *Client) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil
}

// Subscribe registers a handler for an event and returns its
// subscription id.
func (c *Client) Subscribe(event models.EventType, handler Handler) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.subs[event]; !ok {
		c.subs[event] = make(map[int]Handler)
	}
	c.nextSub++
	c.subs[event][c.nextSub] = handler
	return c.nextSub
}

// Unsubscribe removes one handler. No-op for unknown ids.
func (c *Client) Unsubscribe(event models.EventType, id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if handlers, ok := c.subs[event]; ok {
		delete(handlers, id)
		if len(handlers) == 0 {
			delete(c.subs, event)
		}
	}
}

// OnReconnect registers a callback fired after every successful
// automatic reconnection.
func (c *Client) OnReconnect(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onReconnect = append(c.onReconnect, fn)
}

// SendMessage emits an outgoing text message. Fire and forget.
func (c *Client) SendMessage(payload models.SendMessagePayload) error {
	return c.emit(models.EventSendMessage, payload)
}

// SendTyping signals that the current user started typing.
func (c *Client) SendTyping(chatID, userID string) error {
	return c.emit(models.EventTyping, models.TypingPayload{ChatID: chatID, UserID: userID})
}

// SendStopTyping signals that the current user stopped typing.
func (c *Client) SendStopTyping(chatID, userID string) error {
	return c.emit(models.EventStopTyping, models.TypingPayload{ChatID: chatID, UserID: userID})
}

// SendMarkRead signals that the current user read a chat.
func (c *Client) SendMarkRead(chatID string) error {
	return c.emit(models.EventMarkRead, models.MarkReadPayload{ChatID: chatID})
}

// SendReaction toggles a reaction on a message.
func (c *Client) SendReaction(payload models.AddReactionPayload) error {
	return c.emit(models.EventAddReaction, payload)
}

func (c *Client) emit(event models.EventType, payload any) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		log.Printf("socket emit %s dropped: not connected", event)
		return ErrNotConnected
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.WriteJSON(models.Envelope{Event: event, Data: data}); err != nil {
		log.Printf("socket write error: %v", err)
		return err
	}
	observability.IncSocketEvent(string(event), "out")
	return nil
}

func (c *Client) dial(token string) (*websocket.Conn, error) {
	_, span := otel.Tracer("chat-sync/transport").Start(context.Background(),
		"socket.handshake", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	dialer := &websocket.Dialer{HandshakeTimeout: c.opts.DialTimeout}
	header := http.Header{"Authorization": {"Bearer " + token}}
	conn, resp, err := dialer.Dial(c.opts.URL, header)
	if err != nil {
		span.RecordError(err)
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			log.Printf("socket handshake rejected: status %d", resp.StatusCode)
			return nil, ErrAuthRejected
		}
		return nil, err
	}
	return conn, nil
}

func (c *Client) readPump(conn *websocket.Conn) {
	for {
		var env models.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			c.mu.RLock()
			closing := c.closing
			c.mu.RUnlock()
			if closing {
				return
			}
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("socket read error: %v", err)
			}
			observability.SetSocketConnected(false)
			c.mu.Lock()
			if c.conn == conn {
				c.conn = nil
			}
			c.mu.Unlock()
			conn.Close()
			c.reconnect()
			return
		}
		observability.IncSocketEvent(string(env.Event), "in")
		c.dispatch(env)
	}
}

// reconnect retries the handshake a bounded number of times with a
// fixed delay. Auth rejection is terminal; everything else is logged.
func (c *Client) reconnect() {
	for attempt := 1; attempt <= c.opts.ReconnectAttempts; attempt++ {
		time.Sleep(c.opts.ReconnectDelay)

		c.mu.RLock()
		closing := c.closing
		c.mu.RUnlock()
		if closing {
			return
		}

		observability.IncSocketReconnect()
		token := c.creds.Token()
		if token == "" {
			log.Printf("socket reconnect aborted: no session credential")
			return
		}
		conn, err := c.dial(token)
		if err != nil {
			if errors.Is(err, ErrAuthRejected) {
				return
			}
			log.Printf("socket reconnect attempt %d/%d failed: %v", attempt, c.opts.ReconnectAttempts, err)
			continue
		}

		c.mu.Lock()
		if c.closing || c.conn != nil {
			c.mu.Unlock()
			conn.Close()
			return
		}
		c.conn = conn
		callbacks := make([]func(), len(c.onReconnect))
		copy(callbacks, c.onReconnect)
		c.mu.Unlock()
		observability.SetSocketConnected(true)
		go c.readPump(conn)
		for _, fn := range callbacks {
			fn()
		}
		return
	}
	log.Printf("socket reconnect attempts exhausted")
}

func (c *Client) dispatch(env models.Envelope) {
	c.mu.RLock()
	handlers := make([]Handler, 0, len(c.subs[env.Event]))
	for _, h := range c.subs[env.Event] {
		handlers = append(handlers, h)
	}
	c.mu.RUnlock()
	for _, h := range handlers {
		h(env.Data)
	}
}
