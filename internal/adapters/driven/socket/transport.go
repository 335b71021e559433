package socket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/hearthvtt/hearth-cli/internal/core/domain"
	"github.com/hearthvtt/hearth-cli/internal/core/ports/driven"
	"github.com/hearthvtt/hearth-cli/internal/logger"
)

// Wire channels.
const (
	channelModifyDocument   = "modifyDocument"
	channelManageCompendium = "manageCompendium"
	channelShareImage       = "shareImage"
)

const (
	writeTimeout = 10 * time.Second
	pongTimeout  = 60 * time.Second
	pingInterval = 25 * time.Second

	// outbound rate: generous for interactive use, tight enough to stop
	// a runaway loop
	requestsPerSecond = 50
	requestBurst      = 100
)

// frame is the envelope every message travels in. Replies echo the id of the
// request they answer; unsolicited messages carry no id.
type frame struct {
	Channel string          `json:"channel"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

// Ensure Transport implements the interface.
var _ driven.SocketTransport = (*Transport)(nil)

// Transport is a websocket-backed SocketTransport.
type Transport struct {
	conn    *websocket.Conn
	limiter *rate.Limiter

	writeMu sync.Mutex

	mu       sync.Mutex
	pending  map[string]chan json.RawMessage
	onModify func(*domain.Response)
	onShare  func(*domain.SharedImage)
	closed   bool
	done     chan struct{}

	// inbound carries unsolicited frames from the read loop to the single
	// consumer goroutine, preserving arrival order.
	inbound chan *frame
}

// Dial connects to the server's socket endpoint, e.g.
// "wss://play.example.com/socket", authenticating with the session token.
func Dial(ctx context.Context, url, sessionToken string) (*Transport, error) {
	header := make(map[string][]string)
	if sessionToken != "" {
		header["Authorization"] = []string{"Bearer " + sessionToken}
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", url, err)
	}
	t := &Transport{
		conn:    conn,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), requestBurst),
		pending: make(map[string]chan json.RawMessage),
		done:    make(chan struct{}),
		inbound: make(chan *frame, 256),
	}
	conn.SetReadDeadline(time.Now().Add(pongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})
	go t.readLoop()
	go t.inboundLoop()
	go t.pingLoop()
	return t, nil
}

// ModifyDocument submits one CRUD request and waits for the reply.
func (t *Transport) ModifyDocument(ctx context.Context, req *domain.Request) (*domain.Response, error) {
	raw, err := t.roundTrip(ctx, channelModifyDocument, req)
	if err != nil {
		return nil, err
	}
	var resp domain.Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decoding modifyDocument reply: %w", err)
	}
	return &resp, nil
}

// ManageCompendium submits a pack lifecycle request and waits for the reply.
func (t *Transport) ManageCompendium(ctx context.Context, req *domain.CompendiumRequest) (*domain.CompendiumResponse, error) {
	raw, err := t.roundTrip(ctx, channelManageCompendium, req)
	if err != nil {
		return nil, err
	}
	var resp domain.CompendiumResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decoding manageCompendium reply: %w", err)
	}
	return &resp, nil
}

// ShareImage broadcasts an image popout. Fire and forget: the server sends
// no reply.
func (t *Transport) ShareImage(ctx context.Context, img *domain.SharedImage) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return err
	}
	return t.send(&frame{Channel: channelShareImage}, img)
}

// OnModifyDocument registers the inbound replication handler.
func (t *Transport) OnModifyDocument(fn func(*domain.Response)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onModify = fn
}

// OnShareImage registers the inbound image handler.
func (t *Transport) OnShareImage(fn func(*domain.SharedImage)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onShare = fn
}

// Close tears down the connection. Pending requests fail.
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	close(t.done)
	for id, ch := range t.pending {
		close(ch)
		delete(t.pending, id)
	}
	t.mu.Unlock()
	return t.conn.Close()
}

// roundTrip sends a correlated request and blocks for its reply.
func (t *Transport) roundTrip(ctx context.Context, channel string, payload any) (json.RawMessage, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	id := uuid.NewString()
	ch := make(chan json.RawMessage, 1)

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, fmt.Errorf("transport is closed")
	}
	t.pending[id] = ch
	t.mu.Unlock()

	if err := t.send(&frame{Channel: channel, ID: id}, payload); err != nil {
		t.forget(id)
		return nil, err
	}

	select {
	case raw, ok := <-ch:
		if !ok {
			return nil, fmt.Errorf("connection closed awaiting %s reply", channel)
		}
		return raw, nil
	case <-ctx.Done():
		t.forget(id)
		return nil, ctx.Err()
	case <-t.done:
		return nil, fmt.Errorf("connection closed awaiting %s reply", channel)
	}
}

func (t *Transport) forget(id string) {
	t.mu.Lock()
	delete(t.pending, id)
	t.mu.Unlock()
}

// send marshals and writes one frame. Writes are serialized: gorilla
// websocket permits one concurrent writer.
func (t *Transport) send(f *frame, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding %s payload: %w", f.Channel, err)
	}
	f.Payload = raw
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encoding %s frame: %w", f.Channel, err)
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	t.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

// readLoop routes every inbound frame: correlated replies to their waiting
// caller, everything else to the registered handlers.
func (t *Transport) readLoop() {
	defer t.Close()
	for {
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			t.mu.Lock()
			closed := t.closed
			t.mu.Unlock()
			if !closed {
				logger.Warn("socket read failed: %v", err)
			}
			return
		}
		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			logger.Warn("dropping malformed frame: %v", err)
			continue
		}

		if f.ID != "" {
			t.mu.Lock()
			ch, ok := t.pending[f.ID]
			if ok {
				delete(t.pending, f.ID)
			}
			t.mu.Unlock()
			if ok {
				ch <- f.Payload
				continue
			}
			// reply for a caller that gave up; fall through as inbound
		}
		select {
		case t.inbound <- &f:
		case <-t.done:
			return
		}
	}
}

// inboundLoop drains unsolicited frames one at a time. Server-pushed
// mutations must apply in the order they arrived, so handlers run
// synchronously on this single goroutine.
func (t *Transport) inboundLoop() {
	for {
		select {
		case <-t.done:
			return
		case f := <-t.inbound:
			t.dispatchInbound(f)
		}
	}
}

// dispatchInbound hands an unsolicited frame to its channel handler.
func (t *Transport) dispatchInbound(f *frame) {
	switch f.Channel {
	case channelModifyDocument:
		var resp domain.Response
		if err := json.Unmarshal(f.Payload, &resp); err != nil {
			logger.Warn("dropping malformed modifyDocument broadcast: %v", err)
			return
		}
		t.mu.Lock()
		fn := t.onModify
		t.mu.Unlock()
		if fn != nil {
			fn(&resp)
		}
	case channelShareImage:
		var img domain.SharedImage
		if err := json.Unmarshal(f.Payload, &img); err != nil {
			logger.Warn("dropping malformed shareImage broadcast: %v", err)
			return
		}
		t.mu.Lock()
		fn := t.onShare
		t.mu.Unlock()
		if fn != nil {
			fn(&img)
		}
	default:
		logger.Debug("ignoring frame on unknown channel %q", f.Channel)
	}
}

// pingLoop keeps the connection alive.
func (t *Transport) pingLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			t.writeMu.Lock()
			t.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			err := t.conn.WriteMessage(websocket.PingMessage, nil)
			t.writeMu.Unlock()
			if err != nil {
				logger.Warn("socket ping failed: %v", err)
				t.Close()
				return
			}
		}
	}
}
