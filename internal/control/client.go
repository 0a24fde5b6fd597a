// ABOUTME: WebSocket client for the control server
// ABOUTME: Sends command lines and separates replies from notifications
package control

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrClosed is returned by Client calls after the connection is gone
var ErrClosed = errors.New("control connection closed")

// Client is a remote control session.
type Client struct {
	conn *websocket.Conn

	// Notifications receives every line that is not a reply
	Notifications chan string

	mu      sync.Mutex
	writeMu sync.Mutex
	replies chan string
	done    chan struct{}
	session string
}

// Dial connects to a control server at addr (host:port).
func Dial(ctx context.Context, addr string) (*Client, error) {
	u := url.URL{Scheme: "ws", Host: addr, Path: Path}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial failed: %w", err)
	}

	c := &Client{
		conn:          conn,
		Notifications: make(chan string, sendQueue),
		replies:       make(chan string, 1),
		done:          make(chan struct{}),
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to read hello: %w", err)
	}
	conn.SetReadDeadline(time.Time{})
	hello := string(data)
	if !strings.HasPrefix(hello, "hello ") {
		conn.Close()
		return nil, fmt.Errorf("expected hello, got %q", hello)
	}
	if i := strings.LastIndex(hello, "session="); i >= 0 {
		c.session = hello[i+len("session="):]
	}

	go c.readMessages()
	return c, nil
}

// Session returns the id the server assigned.
func (c *Client) Session() string { return c.session }

func (c *Client) readMessages() {
	defer close(c.done)
	defer close(c.Notifications)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure) {
				log.Printf("Control client read error: %v", err)
			}
			return
		}
		line := string(data)
		if strings.HasPrefix(line, "ok ") || strings.HasPrefix(line, "error ") {
			select {
			case c.replies <- line:
			default:
				log.Printf("Control client dropped unexpected reply %q", line)
			}
			continue
		}
		select {
		case c.Notifications <- line:
		default:
		}
	}
}

// Do sends one command line and waits for its reply. Commands are
// serialized; replies arrive in order.
func (c *Client) Do(ctx context.Context, line string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.writeMu.Lock()
	err := c.conn.WriteMessage(websocket.TextMessage, []byte(line))
	c.writeMu.Unlock()
	if err != nil {
		return "", fmt.Errorf("failed to send %q: %w", line, err)
	}

	select {
	case reply := <-c.replies:
		if msg, ok := strings.CutPrefix(reply, "error "); ok {
			return "", errors.New(msg)
		}
		return strings.TrimPrefix(reply, "ok "), nil
	case <-c.done:
		return "", ErrClosed
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Close ends the session.
func (c *Client) Close() error {
	c.writeMu.Lock()
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	c.writeMu.Unlock()
	err := c.conn.Close()
	<-c.done
	return err
}
