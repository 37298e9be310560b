// Package gateway exposes the chat service over HTTP and WebSocket.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"parley/internal/chat"
	"parley/internal/domain"
)

// ErrInvalidPort is returned when the gateway port is not in 0..65535.
var ErrInvalidPort = errors.New("gateway port must be 0-65535")

// ChatService is the application surface the gateway exposes. Implemented by
// chat.Service.
type ChatService interface {
	CreateChat(ctx context.Context, title string) (*domain.Chat, error)
	GetChat(ctx context.Context, chatID string) (*domain.Chat, error)
	ListChats(ctx context.Context) ([]domain.Chat, error)
	DeleteChat(ctx context.Context, chatID string) error
	PostMessage(ctx context.Context, chatID, content string) (*domain.Message, error)
}

var _ ChatService = (*chat.Service)(nil)

// ToolCatalog lists the remote tools for GET /api/tools.
type ToolCatalog interface {
	Refresh(ctx context.Context) ([]domain.ToolDefinition, error)
}

// HealthProber checks the MCP server for GET /api/mcp/health.
type HealthProber interface {
	Health(ctx context.Context) error
}

// Server is the HTTP/WS server. Port 0 means pick a random port.
type Server struct {
	cfg     *domain.GatewayConfig
	chats   ChatService
	catalog ToolCatalog
	prober  HealthProber
	logger  *slog.Logger

	server      *http.Server
	addr        string
	addrMu      sync.RWMutex
	listener    net.Listener
	listenErr   error
	listenErrMu sync.Mutex
}

type ServerOption func(*Server)

// WithLogger sets the logger. A nil logger is ignored.
func WithLogger(l *slog.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer builds the gateway. chats must not be nil; catalog and prober may
// be nil, in which case the tool endpoints answer 502.
// Returns ErrInvalidPort if the configured port is out of range.
func NewServer(cfg *domain.GatewayConfig, chats ChatService, catalog ToolCatalog, prober HealthProber, opts ...ServerOption) (*Server, error) {
	if chats == nil {
		panic("gateway: chat service must not be nil")
	}
	if cfg == nil {
		cfg = &domain.GatewayConfig{Port: 8080}
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		return nil, ErrInvalidPort
	}
	s := &Server{
		cfg:     cfg,
		chats:   chats,
		catalog: catalog,
		prober:  prober,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.server = &http.Server{
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

func (s *Server) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Heartbeat("/health"))
	r.Use(CORS(s.cfg.AllowedOrigins))

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(s.cfg.AuthToken))

		r.Route("/api", func(r chi.Router) {
			r.Post("/chats", s.handleCreateChat)
			r.Get("/chats", s.handleListChats)
			r.Get("/chats/{chatID}", s.handleGetChat)
			r.Delete("/chats/{chatID}", s.handleDeleteChat)
			r.Post("/chats/{chatID}/messages", s.handlePostMessage)
			r.Get("/tools", s.handleListTools)
			r.Get("/mcp/health", s.handleMCPHealth)
		})

		r.Get("/ws", s.handleWS)
	})
	return r
}

// Addr returns the bound address after Run has started listening.
// Empty before Run.
func (s *Server) Addr() string {
	s.addrMu.RLock()
	defer s.addrMu.RUnlock()
	return s.addr
}

// ListenErr returns the error from the initial Listen in Run, if any.
func (s *Server) ListenErr() error {
	s.listenErrMu.Lock()
	defer s.listenErrMu.Unlock()
	return s.listenErr
}

// Handler returns the full middleware-wrapped handler. For testing without
// binding a port.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// netListen is the listen function; tests may replace it to force errors.
var netListen = func(network, address string) (net.Listener, error) {
	return net.Listen(network, address)
}

// serverShutdown is the shutdown function; tests may replace it.
var serverShutdown = func(srv *http.Server, ctx context.Context) error {
	return srv.Shutdown(ctx)
}

// Run listens on the configured host:port and serves until shutdown is
// closed, then drains connections with a bounded timeout. Returns nil on a
// clean shutdown.
func (s *Server) Run(shutdown <-chan struct{}) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	ln, err := netListen("tcp", addr)
	if err != nil {
		s.listenErrMu.Lock()
		s.listenErr = err
		s.listenErrMu.Unlock()
		return err
	}
	s.addrMu.Lock()
	s.listener = ln
	s.addr = ln.Addr().String()
	s.addrMu.Unlock()
	s.log().Info("gateway listening", "addr", s.Addr())

	done := make(chan error, 1)
	go func() {
		done <- s.server.Serve(ln)
	}()

	<-shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := serverShutdown(s.server, ctx); err != nil {
		return err
	}
	<-done
	return nil
}
