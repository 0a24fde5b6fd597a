// ABOUTME: WebSocket control server
// ABOUTME: Serves the line protocol to remote sessions and broadcasts notifications
package control

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Path is the websocket endpoint
	Path = "/control"

	writeDeadline = 10 * time.Second
	pingInterval  = 30 * time.Second
	sendQueue     = 64
)

// ServerConfig configures a Server
type ServerConfig struct {
	Addr string
	Name string
}

// Server exposes a Controller over websocket text messages, one line per
// message.
type Server struct {
	cfg      ServerConfig
	ctl      Controller
	upgrader websocket.Upgrader

	mu       sync.Mutex
	sessions map[string]*session
	listener net.Listener
	closed   bool
	wg       sync.WaitGroup
}

// session is one connected control client
type session struct {
	id   string
	conn *websocket.Conn
	send chan string
	once sync.Once
}

func (s *session) close() {
	s.once.Do(func() { close(s.send) })
}

// NewServer creates a control server for ctl.
func NewServer(cfg ServerConfig, ctl Controller) *Server {
	return &Server{
		cfg: cfg,
		ctl: ctl,
		upgrader: websocket.Upgrader{
			// control clients are CLIs and scripts on the local network
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		sessions: make(map[string]*session),
	}
}

// Listen binds the configured address. It is separate from Serve so the
// caller can learn the port before advertising it.
func (s *Server) Listen() (net.Addr, error) {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	return ln.Addr(), nil
}

// Serve accepts sessions until ctx is done.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln == nil {
		var err error
		if _, err = s.Listen(); err != nil {
			return err
		}
		s.mu.Lock()
		ln = s.listener
		s.mu.Unlock()
	}

	mux := http.NewServeMux()
	mux.HandleFunc(Path, s.handleWebSocket)
	srv := &http.Server{Handler: mux}

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()
	log.Printf("Control server listening on %s%s", ln.Addr(), Path)

	var serveErr error
	select {
	case <-ctx.Done():
	case err := <-errChan:
		serveErr = fmt.Errorf("control server failed: %w", err)
	}

	s.mu.Lock()
	s.closed = true
	for _, sess := range s.sessions {
		sess.conn.Close()
	}
	s.mu.Unlock()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Control server shutdown error: %v", err)
	}
	s.wg.Wait()
	return serveErr
}

// Broadcast queues a notification line for every session. Slow sessions
// drop notifications rather than stall playback.
func (s *Server) Broadcast(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		select {
		case sess.send <- line:
		default:
			log.Printf("Control session %s is not keeping up, dropping %q", sess.id, line)
		}
	}
}

// Sessions returns the number of connected sessions.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	sess := &session{id: uuid.NewString(), conn: conn, send: make(chan string, sendQueue)}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.sessions[sess.id] = sess
	s.wg.Add(1)
	s.mu.Unlock()

	log.Printf("Control session %s connected from %s", sess.id, r.RemoteAddr)
	s.handleSession(sess)
}

func (s *Server) handleSession(sess *session) {
	defer s.wg.Done()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writer(sess)
	}()

	sess.send <- fmt.Sprintf("hello %s session=%s", s.cfg.Name, sess.id)
	for {
		_, data, err := sess.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("Control session %s: %v", sess.id, err)
			}
			break
		}
		if reply := Handle(s.ctl, string(data)); reply != "" {
			sess.send <- reply
		}
	}

	s.mu.Lock()
	delete(s.sessions, sess.id)
	sess.close()
	s.mu.Unlock()
	<-writerDone
	log.Printf("Control session %s closed", sess.id)
}

func (s *Server) writer(sess *session) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	// a dead connection ends the reader; drain until it closes the queue
	defer func() {
		sess.conn.Close()
		for range sess.send {
		}
	}()

	for {
		select {
		case line, ok := <-sess.send:
			if !ok {
				return
			}
			sess.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := sess.conn.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
				log.Printf("Control session %s: write failed: %v", sess.id, err)
				return
			}
		case <-ticker.C:
			if err := sess.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeDeadline)); err != nil {
				return
			}
		}
	}
}
