package livereload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"regexp"
	"runtime/debug"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hupe1980/hoplareload/internal/config"
)

const (
	maxFrameSize    = 64 * 1024
	shutdownTimeout = 5 * time.Second
)

// browserURL matches the page URL LiveReload clients report after connecting.
var browserURL = regexp.MustCompile(`^(https?|file):`)

// Hub accepts browser WebSocket connections, greets them and keeps their
// sessions registered while they stay open.
type Hub struct {
	cfg      config.HubConfig
	registry *Registry
	logger   *slog.Logger
	upgrader websocket.Upgrader

	// inspect handles inbound text frames.
	inspect func(msg string)
}

// NewHub creates a hub registering sessions in registry.
func NewHub(cfg config.HubConfig, registry *Registry, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}

	h := &Hub{
		cfg:      cfg,
		registry: registry,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Pages are served from another port or from file://.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	h.inspect = h.logBrowserURL

	return h
}

// Listen binds the configured TCP address.
func (h *Hub) Listen() (net.Listener, error) {
	ln, err := net.Listen("tcp", h.cfg.Addr())
	if err != nil {
		return nil, fmt.Errorf("binding livereload hub on %s: %w", h.cfg.Addr(), err)
	}

	return ln, nil
}

// Serve accepts connections on ln until ctx is cancelled, then closes
// every session. It takes ownership of ln.
func (h *Hub) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)

	go func() {
		errc <- srv.Serve(ln)
	}()

	h.logger.Info("waiting for browser connections", slog.String("addr", ln.Addr().String()))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		shutdownErr := srv.Shutdown(shutdownCtx)

		// Hijacked WebSocket connections are not tracked by the server.
		h.registry.CloseAll()
		<-errc

		if shutdownErr != nil {
			return fmt.Errorf("shutting down livereload hub: %w", shutdownErr)
		}

		return nil

	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return fmt.Errorf("serving livereload hub: %w", err)
	}
}

// ServeHTTP upgrades the request and serves the connection until it closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", slog.String("remote", r.RemoteAddr), slog.String("error", err.Error()))
		return
	}

	c := &connection{
		hub:    h,
		conn:   conn,
		remote: r.RemoteAddr,
		state:  stateConnecting,
	}
	c.serve()
}

func (h *Hub) logBrowserURL(msg string) {
	if browserURL.MatchString(msg) {
		h.logger.Info("browser URL", slog.String("url", msg))
	}
}

// connState is the lifecycle of one browser connection.
type connState int

const (
	stateConnecting connState = iota
	stateOpen
	stateClosing
	stateClosed
)

func (s connState) String() string {
	switch s {
	case stateConnecting:
		return "connecting"
	case stateOpen:
		return "open"
	case stateClosing:
		return "closing"
	case stateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// connection drives a single browser through connecting → open →
// closing → closed. Only its own goroutine touches it.
type connection struct {
	hub     *Hub
	conn    *websocket.Conn
	remote  string
	session *Session
	state   connState
}

func (c *connection) transition(next connState) {
	c.hub.logger.Debug("connection state",
		slog.String("remote", c.remote),
		slog.String("from", c.state.String()),
		slog.String("to", next.String()),
	)
	c.state = next
}

func (c *connection) serve() {
	defer c.close()

	if err := c.open(); err != nil {
		c.hub.logger.Error("browser handshake failed", slog.String("remote", c.remote), slog.String("error", err.Error()))
		return
	}

	c.conn.SetReadLimit(maxFrameSize)

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				c.hub.logger.Debug("browser connection lost", slog.String("remote", c.remote), slog.String("error", err.Error()))
			}

			return
		}

		if stack, err := c.process(messageType, data); err != nil {
			c.hub.logger.Error("browser frame failed",
				slog.String("session", c.session.ID()),
				slog.String("frame", string(data)),
				slog.String("error", err.Error()),
				slog.String("stack", stack),
			)

			return
		}
	}
}

// open sends the greeting and, only once it is delivered, registers the
// session.
func (c *connection) open() error {
	session := NewSession(c.conn, c.remote)

	if err := session.Send([]byte(c.hub.cfg.Greeting)); err != nil {
		return fmt.Errorf("%w: %v", ErrHandshake, err)
	}

	c.session = session

	if !c.hub.registry.Add(session) {
		return fmt.Errorf("%w: hub is shutting down", ErrHandshake)
	}

	c.transition(stateOpen)

	c.hub.logger.Info("browser connected",
		slog.String("session", session.ID()),
		slog.String("remote", c.remote),
		slog.Int("sessions", c.hub.registry.Len()),
	)

	return nil
}

// process handles one inbound frame. A panic is converted into an error
// confined to this connection, returned with the panicking stack.
func (c *connection) process(messageType int, data []byte) (stack string, err error) {
	defer func() {
		if r := recover(); r != nil {
			stack = string(debug.Stack())
			err = fmt.Errorf("%w: %v", ErrFrame, r)
		}
	}()

	if messageType == websocket.TextMessage {
		c.hub.inspect(string(data))
	}

	return "", nil
}

// close removes the session from the registry before the connection
// handle is released.
func (c *connection) close() {
	if c.state == stateOpen {
		c.transition(stateClosing)

		c.hub.registry.Remove(c.session)

		c.hub.logger.Info("browser disconnected",
			slog.String("session", c.session.ID()),
			slog.Int("sessions", c.hub.registry.Len()),
		)
	}

	if c.session != nil {
		_ = c.session.Close()
	} else {
		_ = c.conn.Close()
	}

	c.transition(stateClosed)
}
