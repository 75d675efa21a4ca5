package sso

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wireapp/wire-desktop/internal/constants"
	"github.com/wireapp/wire-desktop/internal/logging"
)

const (
	pageSignedIn = "Sign-in complete. You can close this window and return to Wire."
	pageFailed   = "Sign-in failed. Please return to Wire and try again."
)

// Server is the loopback HTTP listener receiving SSO redirects.
type Server struct {
	completer *Completer
	logger    *logging.Logger
	port      int

	mu       sync.Mutex
	srv      *http.Server
	listener net.Listener
}

// NewServer creates a callback server bound to 127.0.0.1:port. Port 0
// picks a free port.
func NewServer(completer *Completer, logger *logging.Logger, port int) *Server {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Server{completer: completer, logger: logger.Component("sso"), port: port}
}

// Router returns the HTTP handler serving the callback path.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.NoCache)
	r.Use(middleware.Timeout(constants.BridgeRequestTimeout))
	r.Get(constants.SSOCallbackPath, s.handleCallback)
	return r
}

// Start begins listening. It returns once the socket is bound.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv != nil {
		return errors.New("sso server already started")
	}

	listener, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(s.port)))
	if err != nil {
		return fmt.Errorf("failed to listen for sso callback: %w", err)
	}
	s.listener = listener
	s.srv = &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func(srv *http.Server) {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("SSO callback server failed")
		}
	}(s.srv)

	s.logger.Info().Str("url", s.callbackURL()).Msg("SSO callback server started")
	return nil
}

// CallbackURL is the redirect target to hand to the identity provider.
func (s *Server) CallbackURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.callbackURL()
}

func (s *Server) callbackURL() string {
	if s.listener == nil {
		return ""
	}
	return "http://" + s.listener.Addr().String() + constants.SSOCallbackPath
}

// Running reports whether the listener is up.
func (s *Server) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.srv != nil
}

// Shutdown stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.srv = nil
	s.listener = nil
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	token, state := q.Get("token"), q.Get("state")
	if token == "" || state == "" {
		http.Error(w, "missing token or state", http.StatusBadRequest)
		return
	}

	acc, err := s.completer.Complete(token, state)
	if err != nil {
		s.logger.Warn().Err(err).Msg("SSO callback rejected")
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(statusFor(err))
		_, _ = w.Write([]byte(pageFailed))
		return
	}

	s.logger.Info().Str("account_id", acc.ID).Msg("SSO sign-in completed")
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(pageSignedIn))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrInvalidToken), errors.Is(err, ErrMissingSubject):
		return http.StatusUnauthorized
	case errors.Is(err, ErrStateMismatch), errors.Is(err, ErrNoPendingLogin):
		return http.StatusForbidden
	case errors.Is(err, ErrAlreadySignedIn):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
