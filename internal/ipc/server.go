package ipc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/wireapp/wire-desktop/internal/constants"
	"github.com/wireapp/wire-desktop/internal/logging"
)

// Handler processes bridge requests. The context is cancelled when the
// server stops or the connection deadline passes.
type Handler interface {
	Handle(ctx context.Context, req *Request) *Response
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, req *Request) *Response

func (f HandlerFunc) Handle(ctx context.Context, req *Request) *Response {
	return f(ctx, req)
}

// ErrUnauthorizedPeer is reported when a connecting process belongs to
// another user.
var ErrUnauthorizedPeer = errors.New("unauthorized: peer belongs to another user")

// Server handles IPC requests from clients via Unix domain socket.
type Server struct {
	handler    Handler
	logger     *logging.Logger
	socketPath string
	timeout    time.Duration
	listener   net.Listener

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// ownerUID is the uid allowed to connect; -1 disables the check
	ownerUID int
}

// NewServer creates a bridge server listening on socketPath.
func NewServer(handler Handler, logger *logging.Logger, socketPath string) *Server {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		handler:    handler,
		logger:     logger.Component("ipc"),
		socketPath: socketPath,
		timeout:    constants.BridgeRequestTimeout,
		ctx:        ctx,
		cancel:     cancel,
		ownerUID:   os.Getuid(),
	}
}

// SetTimeout sets the per-connection deadline. Must be called before Start.
func (s *Server) SetTimeout(timeout time.Duration) {
	s.timeout = timeout
}

// Start begins listening for IPC connections.
func (s *Server) Start() error {
	// Ensure socket directory exists
	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0700); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}

	// Refuse to steal the socket from a live instance
	if conn, err := net.DialTimeout("unix", s.socketPath, 100*time.Millisecond); err == nil {
		conn.Close()
		return fmt.Errorf("another instance is serving %s", s.socketPath)
	}

	// Remove any stale socket file
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove stale socket: %w", err)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to create bridge socket: %w", err)
	}

	// Set socket permissions (user only)
	if err := os.Chmod(s.socketPath, 0600); err != nil {
		listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}
	s.listener = listener

	s.logger.Info().Str("socket", s.socketPath).Msg("IPC server started")

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// Stop gracefully shuts down the IPC server and removes the socket file.
func (s *Server) Stop() {
	s.logger.Debug().Msg("Stopping IPC server")
	s.cancel()

	if s.listener != nil {
		s.listener.Close()
	}

	s.wg.Wait()
	os.Remove(s.socketPath)
	s.logger.Info().Msg("IPC server stopped")
}

// SocketPath returns the socket the server listens on.
func (s *Server) SocketPath() string {
	return s.socketPath
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.ctx.Done():
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Warn().Err(err).Msg("Failed to accept IPC connection")
			continue
		}

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

// handleConnection processes a single request on conn.
func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	deadline := time.Now().Add(s.timeout)
	conn.SetDeadline(deadline)

	if err := s.authorize(conn); err != nil {
		s.logger.Warn().Err(err).Msg("IPC request denied")
		s.sendResponse(conn, NewErrorResponse(err.Error()))
		return
	}

	reader := bufio.NewReader(conn)

	// Read request (newline-delimited JSON)
	data, err := reader.ReadBytes('\n')
	if err != nil {
		if err != io.EOF {
			s.logger.Warn().Err(err).Msg("Failed to read IPC request")
		}
		return
	}

	req, err := DecodeRequest(data)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to decode IPC request")
		s.sendResponse(conn, NewErrorResponse("invalid request format"))
		return
	}

	s.logger.Debug().
		Str("type", string(req.Type)).
		Str("account_id", req.AccountID).
		Msg("Received IPC request")

	ctx, cancel := context.WithDeadline(s.ctx, deadline)
	defer cancel()

	resp := s.handler.Handle(ctx, req)
	if resp == nil {
		resp = NewErrorResponse(fmt.Sprintf("unknown message type: %s", req.Type))
	}
	s.sendResponse(conn, resp)
}

// authorize checks that the peer runs as the server's user where the
// platform reports peer credentials.
func (s *Server) authorize(conn net.Conn) error {
	if s.ownerUID < 0 {
		return nil
	}
	uid, ok, err := peerUID(conn)
	if err != nil {
		return fmt.Errorf("failed to read peer credentials: %w", err)
	}
	if !ok {
		// Socket permissions are the only guard here
		return nil
	}
	if uid != s.ownerUID {
		s.logger.Warn().
			Int("peer_uid", uid).
			Int("owner_uid", s.ownerUID).
			Msg("IPC request denied: cross-user access attempt")
		return ErrUnauthorizedPeer
	}
	return nil
}

// sendResponse sends a response to the client.
func (s *Server) sendResponse(conn net.Conn, resp *Response) {
	data, err := resp.Encode()
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode IPC response")
		return
	}

	// Append newline delimiter
	data = append(data, '\n')

	if _, err := conn.Write(data); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to send IPC response")
	}
}
