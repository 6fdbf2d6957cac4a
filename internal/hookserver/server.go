package hookserver

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/google/uuid"
)

// DefaultAddr is where the contract runner expects the hook worker
const DefaultAddr = "127.0.0.1:61321"

// Server speaks the hooks-handler protocol: newline-delimited JSON messages
// over TCP, each answered with the same uuid and event and the possibly
// modified data.
type Server struct {
	addr     string
	registry *Registry
	logger   *slog.Logger

	// dispatch is held while hooks run so that messages are handled one at a
	// time across all connections
	dispatch sync.Mutex

	mu    sync.Mutex
	conns map[net.Conn]struct{}
	wg    sync.WaitGroup
}

// New creates a server for registry listening on addr. A nil logger uses slog.Default().
func New(addr string, registry *Registry, logger *slog.Logger) *Server {
	if addr == "" {
		addr = DefaultAddr
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		addr:     addr,
		registry: registry,
		logger:   logger,
		conns:    make(map[net.Conn]struct{}),
	}
}

// ListenAndServe listens on the configured address and serves until ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts runner connections on ln until ctx is cancelled. It closes ln
// and every open connection before returning, and returns nil on cancellation.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.logger.Info("hook server listening", slog.String("addr", ln.Addr().String()))

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
		case <-stop:
		}
		ln.Close()
		s.closeConns()
	}()

	var err error
	for {
		var conn net.Conn
		conn, err = ln.Accept()
		if err != nil {
			break
		}
		s.track(conn)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.untrack(conn)
			s.handleConn(ctx, conn)
		}()
	}

	// unblock connection goroutines when Accept failed for another reason
	ln.Close()
	s.closeConns()
	s.wg.Wait()

	if ctx.Err() != nil {
		s.logger.Info("hook server stopped")
		return nil
	}
	return fmt.Errorf("accept: %w", err)
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	logger := s.logger.With(
		slog.String("conn_id", uuid.NewString()),
		slog.String("remote", conn.RemoteAddr().String()),
	)
	logger.Info("runner connected")
	defer logger.Info("runner disconnected")

	r := bufio.NewReader(conn)
	w := bufio.NewWriter(conn)
	for {
		line, err := r.ReadBytes('\n')
		if len(line) > 0 {
			if werr := s.handleLine(ctx, logger, w, line); werr != nil {
				logger.Warn("failed to write reply", slog.String("error", werr.Error()))
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				logger.Warn("read failed", slog.String("error", err.Error()))
			}
			return
		}
	}
}

// handleLine decodes one message, runs its hooks and writes the reply. Only
// write errors are returned.
func (s *Server) handleLine(ctx context.Context, logger *slog.Logger, w *bufio.Writer, line []byte) error {
	var msg Message
	if err := json.Unmarshal(line, &msg); err != nil {
		logger.Warn("discarding malformed message", slog.String("error", err.Error()))
		return nil
	}

	s.dispatch.Lock()
	reply, err := s.registry.Dispatch(ctx, msg)
	s.dispatch.Unlock()

	attrs := []any{slog.String("uuid", msg.UUID), slog.String("event", string(msg.Event))}
	switch {
	case errors.Is(err, ErrUnknownEvent):
		logger.Warn("unknown event, echoing data", attrs...)
	case err != nil:
		logger.Error("hook failed", append(attrs, slog.String("error", err.Error()))...)
	default:
		logger.Debug("event handled", attrs...)
	}

	out, err := json.Marshal(reply)
	if err != nil {
		return err
	}
	if _, err := w.Write(append(out, '\n')); err != nil {
		return err
	}
	return w.Flush()
}

func (s *Server) track(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns[conn] = struct{}{}
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, conn)
	conn.Close()
}

func (s *Server) closeConns() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		conn.Close()
	}
}
