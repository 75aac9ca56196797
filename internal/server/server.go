// ABOUTME: Monitor HTTP server for a running bridge session
// ABOUTME: Serves Prometheus metrics, a JSON snapshot, a WebSocket stats feed and a health check
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/vbanbridge/vbanbridge-go/internal/metrics"
	"github.com/vbanbridge/vbanbridge-go/internal/protocol"
	"github.com/vbanbridge/vbanbridge-go/internal/version"
)

// DefaultInterval is how often the feed pushes stats
const DefaultInterval = 250 * time.Millisecond

const writeTimeout = 5 * time.Second

// Config holds server configuration
type Config struct {
	Addr     string
	Interval time.Duration
	Logger   *logrus.Entry
}

// Server exposes one session's stats over HTTP
type Server struct {
	config   Config
	source   metrics.StatsSource
	serverID string
	log      *logrus.Entry

	upgrader websocket.Upgrader
	mux      *http.ServeMux
	registry *prometheus.Registry

	httpServer *http.Server
	listener   net.Listener

	clients   map[*websocket.Conn]struct{}
	clientsMu sync.Mutex

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a monitor server over source
func New(config Config, source metrics.StatsSource) *Server {
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}
	if config.Logger == nil {
		config.Logger = logrus.NewEntry(logrus.StandardLogger())
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(metrics.NewCollector(source))
	httpMetrics := metrics.NewHTTP(registry)

	s := &Server{
		config:   config,
		source:   source,
		serverID: uuid.New().String(),
		log:      config.Logger.WithField("component", "monitor"),
		mux:      http.NewServeMux(),
		registry: registry,
		upgrader: websocket.Upgrader{
			// The feed is read-only and carries no credentials
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients:  make(map[*websocket.Conn]struct{}),
		stopChan: make(chan struct{}),
	}

	s.mux.Handle("/metrics", httpMetrics.Wrap("/metrics",
		promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})))
	s.mux.Handle("/stats", httpMetrics.Wrap("/stats", http.HandlerFunc(s.handleStats)))
	s.mux.Handle("/healthz", httpMetrics.Wrap("/healthz", http.HandlerFunc(s.handleHealth)))
	s.mux.HandleFunc("/ws", s.handleWebSocket)

	return s
}

// Handler returns the HTTP handler, for embedding or httptest
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start binds the listen address and serves in the background
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr, err)
	}
	s.listener = ln
	s.httpServer = &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.log.WithField("addr", ln.Addr().String()).Info("Monitor listening")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Error("Monitor server failed")
		}
	}()
	return nil
}

// Addr is the bound address once started
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.config.Addr
	}
	return s.listener.Addr().String()
}

// Shutdown stops accepting requests and ends every feed
func (s *Server) Shutdown(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stopChan) })

	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}

	s.clientsMu.Lock()
	for conn := range s.clients {
		conn.Close()
	}
	s.clientsMu.Unlock()

	s.wg.Wait()
	return err
}

// ClientCount is the number of connected feed clients
func (s *Server) ClientCount() int {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	return len(s.clients)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	st := s.source.Stats()
	status := http.StatusOK
	if st.State != "running" {
		status = http.StatusServiceUnavailable
	}
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"state": st.State})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.source.Stats()); err != nil {
		s.log.WithError(err).Debug("Failed to write stats")
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	select {
	case <-s.stopChan:
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	default:
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("WebSocket upgrade error")
		return
	}

	s.clientsMu.Lock()
	s.clients[conn] = struct{}{}
	s.clientsMu.Unlock()

	s.wg.Add(1)
	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, conn)
		s.clientsMu.Unlock()
		conn.Close()
		s.wg.Done()
		s.log.WithField("remote", r.RemoteAddr).Debug("Feed client disconnected")
	}()

	s.log.WithField("remote", r.RemoteAddr).Debug("Feed client connected")
	s.serveFeed(conn)
}

// serveFeed sends the hello then stats on every tick until the client goes
// away or the server shuts down
func (s *Server) serveFeed(conn *websocket.Conn) {
	st := s.source.Stats()
	hello := protocol.SessionHello{
		ServerID:   s.serverID,
		Product:    version.Product,
		Version:    version.Version,
		SessionID:  st.ID,
		Stream:     st.Stream,
		SampleRate: st.SampleRate,
		Channels:   st.Channels,
		Local:      st.Local,
		Remote:     st.Remote,
		IntervalMS: int(s.config.Interval / time.Millisecond),
	}
	if err := s.send(conn, protocol.TypeSessionHello, hello); err != nil {
		s.log.WithError(err).Debug("Failed to send hello")
		return
	}

	// Reading is required to process control frames and notice a close
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(time.Second))
			return
		case <-gone:
			return
		case now := <-ticker.C:
			msg := protocol.SessionStats{Timestamp: now.UnixMilli(), Stats: s.source.Stats()}
			if err := s.send(conn, protocol.TypeSessionStats, msg); err != nil {
				return
			}
		}
	}
}

func (s *Server) send(conn *websocket.Conn, msgType string, payload interface{}) error {
	data, err := protocol.Encode(msgType, payload)
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, data)
}
