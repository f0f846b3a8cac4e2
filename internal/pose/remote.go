package pose

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"gocv.io/x/gocv"

	"github.com/kinetic-data/motion.report/internal/monitoring"
	"github.com/kinetic-data/motion.report/internal/video"
)

// remoteBackend streams frames to a landmark-model service over a
// websocket: the frame goes out JPEG-encoded as one binary message and
// the landmark result comes back as one JSON text message. The
// connection is dialled on demand and kept alive with periodic pings;
// a failed write or read drops the connection so the next Infer
// redials.
type remoteBackend struct {
	url string

	mu   sync.Mutex
	conn *websocket.Conn
	done chan struct{}

	handshakeTimeout time.Duration
	writeTimeout     time.Duration
	readTimeout      time.Duration
	pingInterval     time.Duration
}

// remoteResult is the service's per-frame response.
type remoteResult struct {
	Detected  bool `json:"detected"`
	Landmarks []struct {
		Name       string  `json:"name"`
		X          float64 `json:"x"`
		Y          float64 `json:"y"`
		Z          float64 `json:"z"`
		Visibility float64 `json:"visibility"`
	} `json:"landmarks"`
}

func newRemoteBackend(url string) *remoteBackend {
	return &remoteBackend{
		url:              url,
		done:             make(chan struct{}),
		handshakeTimeout: 10 * time.Second,
		writeTimeout:     5 * time.Second,
		readTimeout:      10 * time.Second,
		pingInterval:     30 * time.Second,
	}
}

// connect dials the service if no live connection exists. Caller holds
// b.mu.
func (b *remoteBackend) connect() (*websocket.Conn, error) {
	if b.conn != nil {
		return b.conn, nil
	}

	dialer := websocket.Dialer{HandshakeTimeout: b.handshakeTimeout}
	conn, _, err := dialer.Dial(b.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to landmark service %s: %w", b.url, err)
	}
	b.conn = conn
	go b.keepAlive(conn)
	monitoring.Logf("pose: connected to landmark service at %s", b.url)
	return conn, nil
}

// keepAlive pings the connection until it dies or the backend closes.
func (b *remoteBackend) keepAlive(conn *websocket.Conn) {
	ticker := time.NewTicker(b.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-b.done:
			return
		case <-ticker.C:
			b.mu.Lock()
			if b.conn != conn {
				b.mu.Unlock()
				return
			}
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(b.writeTimeout))
			if err != nil {
				monitoring.Logf("pose: ping failed, dropping landmark service connection: %v", err)
				b.conn = nil
				conn.Close()
				b.mu.Unlock()
				return
			}
			b.mu.Unlock()
		}
	}
}

// dropConn discards a dead connection. Caller holds b.mu.
func (b *remoteBackend) dropConn(conn *websocket.Conn) {
	if b.conn == conn {
		b.conn = nil
	}
	conn.Close()
}

// Infer sends the frame to the service and maps the response to a
// Detection. The request/response exchange is serialised per backend;
// one session has exactly one in-flight frame anyway.
func (b *remoteBackend) Infer(ctx context.Context, f *video.Frame) (*Detection, error) {
	jpeg, err := gocv.IMEncode(gocv.JPEGFileExt, f.Mat)
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	defer jpeg.Close()

	b.mu.Lock()
	defer b.mu.Unlock()

	conn, err := b.connect()
	if err != nil {
		return nil, err
	}

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetWriteDeadline(deadline)
	} else {
		conn.SetWriteDeadline(time.Now().Add(b.writeTimeout))
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, jpeg.GetBytes()); err != nil {
		b.dropConn(conn)
		return nil, fmt.Errorf("failed to send frame: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(b.readTimeout))
	_, message, err := conn.ReadMessage()
	if err != nil {
		b.dropConn(conn)
		return nil, fmt.Errorf("failed to read landmark result: %w", err)
	}
	conn.SetReadDeadline(time.Time{})
	conn.SetWriteDeadline(time.Time{})

	var result remoteResult
	if err := json.Unmarshal(message, &result); err != nil {
		return nil, fmt.Errorf("failed to parse landmark result: %w", err)
	}
	if !result.Detected || len(result.Landmarks) == 0 {
		return nil, nil
	}

	det := &Detection{Points: make(map[string]Point, len(result.Landmarks))}
	for _, lm := range result.Landmarks {
		det.Points[lm.Name] = Point{X: lm.X, Y: lm.Y, Z: lm.Z, Visibility: lm.Visibility}
	}
	drawOverlay(f, det)
	return det, nil
}

// Name identifies the backend in logs and export filenames.
func (b *remoteBackend) Name() string { return "MediaPipe" }

// Close drops the connection and stops the keepalive.
func (b *remoteBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	select {
	case <-b.done:
	default:
		close(b.done)
	}
	if b.conn != nil {
		b.conn.Close()
		b.conn = nil
	}
	return nil
}
