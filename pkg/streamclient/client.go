package streamclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/goliatone/go-helpdesk/pkg/interfaces/logger"
	"github.com/goliatone/go-helpdesk/pkg/retry"
	"github.com/goliatone/go-helpdesk/pkg/stream"
)

// maxFrameSize bounds a single stream frame.
const maxFrameSize = 4 * 1024 * 1024

// Status describes the controller's connection state.
type Status string

const (
	// StatusConnecting covers the initial dial and every reconnect attempt.
	StatusConnecting Status = "connecting"
	// StatusConnected is set once the server's `connected` event arrives.
	StatusConnected Status = "connected"
	// StatusDisconnected follows a transport error while retries remain.
	StatusDisconnected Status = "disconnected"
	// StatusFailed is the terminal give-up state: automatic retries are
	// exhausted and only Reconnect() restarts the stream. The polling
	// fallback keeps running while failed.
	StatusFailed Status = "failed"
)

// Callbacks receive typed events from the stream. All callbacks fire on
// the controller's reader goroutine; keep them fast or hand off.
type Callbacks struct {
	OnNotification func(payload json.RawMessage)
	OnUnreadCount  func(count int)
	OnStatusChange func(status Status)
}

// Options configure the stream client.
type Options struct {
	// URL of the notification stream endpoint. Required.
	URL string
	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client
	// Header is attached to every stream request (session cookie etc.).
	Header http.Header
	// Backoff defaults to retry.ReconnectBackoff (1s doubling, 30s cap).
	Backoff retry.Backoff
	// MaxAttempts bounds automatic reconnects; defaults to 5.
	MaxAttempts int
	// HeartbeatTimeout forces a reconnect when the stream goes silent;
	// defaults to 60s.
	HeartbeatTimeout time.Duration
	// Poll, when set, is invoked every PollInterval while the controller
	// is in the failed state. It is an independent fetch path, not a
	// degradation of the stream itself.
	Poll         func(ctx context.Context) error
	PollInterval time.Duration

	Logger    logger.Logger
	Callbacks Callbacks
}

// Client maintains a live notification stream with capped
// exponential-backoff reconnection and a polling fallback.
type Client struct {
	opts    Options
	backoff retry.Backoff
	http    *http.Client
	logger  logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	status    Status
	attempts  int
	lastEvent time.Time

	// wake interrupts backoff sleeps and the failed state on manual
	// reconnect. Buffered so Reconnect never blocks.
	wake chan struct{}
}

// New validates options and prepares a stopped client; call Start to dial.
func New(opts Options) (*Client, error) {
	if opts.URL == "" {
		return nil, errors.New("streamclient: URL is required")
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Backoff == nil {
		opts.Backoff = retry.ReconnectBackoff()
	}
	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = 5
	}
	if opts.HeartbeatTimeout <= 0 {
		opts.HeartbeatTimeout = 60 * time.Second
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = &logger.Nop{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		opts:    opts,
		backoff: opts.Backoff,
		http:    opts.HTTPClient,
		logger:  opts.Logger,
		ctx:     ctx,
		cancel:  cancel,
		status:  StatusConnecting,
		wake:    make(chan struct{}, 1),
	}, nil
}

// Start launches the connection loop.
func (c *Client) Start() {
	c.wg.Add(1)
	go c.run()
}

// Close synchronously tears down the transport, any pending reconnect
// timer, and the polling fallback.
func (c *Client) Close() {
	c.cancel()
	c.wg.Wait()
}

// Reconnect resets the attempt counter and forces a new dial. It is the
// manual escape hatch out of the failed state.
func (c *Client) Reconnect() {
	c.mu.Lock()
	c.attempts = 0
	c.mu.Unlock()
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// Status reports the current connection state.
func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *Client) run() {
	defer c.wg.Done()
	for {
		if c.ctx.Err() != nil {
			return
		}

		c.setStatus(StatusConnecting)
		err := c.consumeStream()
		if c.ctx.Err() != nil {
			return
		}
		c.setStatus(StatusDisconnected)
		if err != nil {
			c.logger.Debug("stream dropped", logger.F("error", err))
		}

		c.mu.Lock()
		c.attempts++
		attempt := c.attempts
		c.mu.Unlock()

		if attempt > c.opts.MaxAttempts {
			c.setStatus(StatusFailed)
			c.logger.Warn("reconnect attempts exhausted",
				logger.F("attempts", attempt-1))
			if !c.waitForManualReconnect() {
				return
			}
			continue
		}

		delay := c.backoff.Next(attempt)
		c.logger.Debug("scheduling reconnect",
			logger.F("attempt", attempt),
			logger.F("delay", delay))
		if !c.sleep(delay) {
			return
		}
	}
}

// consumeStream dials the endpoint and reads frames until the transport
// fails, goes stale, or the client closes.
func (c *Client) consumeStream() error {
	connCtx, cancelConn := context.WithCancel(c.ctx)
	defer cancelConn()

	req, err := http.NewRequestWithContext(connCtx, http.MethodGet, c.opts.URL, nil)
	if err != nil {
		return err
	}
	for key, values := range c.opts.Header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("streamclient: unexpected status %d", resp.StatusCode)
	}

	c.markEvent()
	go c.watchStaleness(connCtx, cancelConn)

	scanner := bufio.NewScanner(resp.Body)
	// Notification payloads carry arbitrary ticket context; the scanner's
	// default 64KB token cap would abort the stream on a large frame and
	// the event would be lost for good (no replay on reconnect).
	scanner.Buffer(make([]byte, 64*1024), maxFrameSize)
	for scanner.Scan() {
		line := scanner.Bytes()
		if !bytes.HasPrefix(line, []byte("data: ")) {
			continue
		}
		event, err := stream.DecodeEvent(bytes.TrimPrefix(line, []byte("data: ")))
		if err != nil {
			c.logger.Warn("skip malformed frame", logger.F("error", err))
			continue
		}
		c.dispatch(event)
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return errors.New("streamclient: stream ended")
}

func (c *Client) dispatch(event stream.Event) {
	c.markEvent()
	switch event.Type {
	case stream.EventConnected:
		c.mu.Lock()
		c.attempts = 0
		c.mu.Unlock()
		c.setStatus(StatusConnected)
	case stream.EventHeartbeat:
		// markEvent above is the whole point.
	case stream.EventNotification:
		if c.opts.Callbacks.OnNotification != nil {
			c.opts.Callbacks.OnNotification(event.Data)
		}
	case stream.EventUnreadCount:
		if c.opts.Callbacks.OnUnreadCount == nil {
			return
		}
		var payload struct {
			Count int `json:"count"`
		}
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			c.logger.Warn("skip malformed unread count", logger.F("error", err))
			return
		}
		c.opts.Callbacks.OnUnreadCount(payload.Count)
	default:
		c.logger.Debug("ignore unknown event type", logger.F("type", event.Type))
	}
}

// watchStaleness cancels the connection when no event, heartbeat
// included, arrives within the timeout. A silent peer looks identical to
// a healthy idle one at the TCP level, so this is the only liveness check.
func (c *Client) watchStaleness(ctx context.Context, cancelConn context.CancelFunc) {
	interval := c.opts.HeartbeatTimeout / 4
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			stale := time.Since(c.lastEvent) > c.opts.HeartbeatTimeout
			c.mu.Unlock()
			if stale {
				c.logger.Warn("stream stale, forcing reconnect",
					logger.F("timeout", c.opts.HeartbeatTimeout))
				cancelConn()
				return
			}
		}
	}
}

// waitForManualReconnect parks in the failed state, running the polling
// fallback, until Reconnect or Close. Returns false on Close.
func (c *Client) waitForManualReconnect() bool {
	pollCtx, cancelPoll := context.WithCancel(c.ctx)
	defer cancelPoll()
	if c.opts.Poll != nil {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.runPoller(pollCtx)
		}()
	}
	select {
	case <-c.wake:
		return true
	case <-c.ctx.Done():
		return false
	}
}

func (c *Client) runPoller(ctx context.Context) {
	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()

	// First fetch fires immediately so the user is not a full interval
	// behind when push delivery gives up.
	if err := c.opts.Poll(ctx); err != nil && ctx.Err() == nil {
		c.logger.Warn("poll failed", logger.F("error", err))
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.opts.Poll(ctx); err != nil && ctx.Err() == nil {
				c.logger.Warn("poll failed", logger.F("error", err))
			}
		}
	}
}

func (c *Client) sleep(delay time.Duration) bool {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-c.wake:
		return true
	case <-c.ctx.Done():
		return false
	}
}

func (c *Client) markEvent() {
	c.mu.Lock()
	c.lastEvent = time.Now()
	c.mu.Unlock()
}

func (c *Client) setStatus(status Status) {
	c.mu.Lock()
	changed := c.status != status
	c.status = status
	c.mu.Unlock()
	if changed && c.opts.Callbacks.OnStatusChange != nil {
		c.opts.Callbacks.OnStatusChange(status)
	}
}
