package rpc

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	notificationBuffer = 1024
	writeTimeout       = 10 * time.Second
)

// PubsubClient multiplexes subscriptions over one websocket connection.
//
// A single reader goroutine routes replies to pending requests by request id,
// and notifications to subscribers by subscription id.
type PubsubClient struct {
	conn *websocket.Conn
	l    *zap.Logger

	writeMu sync.Mutex
	ids     atomic.Uint64

	mu      sync.Mutex
	pending map[uint64]*pendingRequest
	subs    map[uint64]*subscription
	err     error

	done      chan struct{}
	closeOnce sync.Once
}

// pendingRequest waits for a reply. onResult, when set, runs on the reader
// goroutine before the next message is read.
type pendingRequest struct {
	reply    chan response
	onResult func(json.RawMessage)
}

type subscription struct {
	ch       chan json.RawMessage
	done     chan struct{}
	stopOnce sync.Once
}

func (s *subscription) stop() {
	s.stopOnce.Do(func() { close(s.done) })
}

type notification struct {
	Method string `json:"method"`
	Params *struct {
		Result       json.RawMessage `json:"result"`
		Subscription uint64          `json:"subscription"`
	} `json:"params"`
}

// PubsubOption configures a PubsubClient
type PubsubOption func(*pubsubOptions)

type pubsubOptions struct {
	dialer *websocket.Dialer
	l      *zap.Logger
}

// PubsubDialer substitutes the websocket dialer
func PubsubDialer(d *websocket.Dialer) PubsubOption {
	return func(o *pubsubOptions) {
		if d != nil {
			o.dialer = d
		}
	}
}

// PubsubLogger sets a logger
func PubsubLogger(l *zap.Logger) PubsubOption {
	return func(o *pubsubOptions) {
		if l != nil {
			o.l = l
		}
	}
}

// Dial connects to a pubsub endpoint
func Dial(ctx context.Context, url string, opts ...PubsubOption) (*PubsubClient, error) {
	o := pubsubOptions{dialer: websocket.DefaultDialer, l: zap.NewNop()}
	for _, apply := range opts {
		apply(&o)
	}
	conn, _, err := o.dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, ErrTransport.Wrapf(err, "dial %s", url)
	}
	c := &PubsubClient{
		conn:    conn,
		l:       o.l,
		pending: make(map[uint64]*pendingRequest),
		subs:    make(map[uint64]*subscription),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Done is closed once the connection is gone
func (c *PubsubClient) Done() <-chan struct{} {
	return c.done
}

// Err reports why the connection ended, if it did
func (c *PubsubClient) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Close the connection. All subscription channels get closed.
func (c *PubsubClient) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		err = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeTimeout))
		c.writeMu.Unlock()
		if err == websocket.ErrCloseSent {
			err = nil
		}
		c.shutdown(ErrClosed)
		err = multierr.Append(err, c.conn.Close())
	})
	return err
}

func (c *PubsubClient) shutdown(cause error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	select {
	case <-c.done:
		return
	default:
	}
	c.err = cause
	close(c.done)
}

func (c *PubsubClient) readLoop() {
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.shutdown(ErrTransport.Wrapf(err, "read"))
			return
		}

		var res response
		if err = json.Unmarshal(raw, &res); err == nil && res.ID != nil {
			c.mu.Lock()
			p, ok := c.pending[*res.ID]
			delete(c.pending, *res.ID)
			c.mu.Unlock()
			if ok {
				if p.onResult != nil && res.Error == nil {
					p.onResult(res.Result)
				}
				p.reply <- res
			}
			continue
		}

		var n notification
		if err = json.Unmarshal(raw, &n); err != nil || n.Params == nil {
			c.l.Warn("ignoring unexpected pubsub message", zap.ByteString("message", raw))
			continue
		}
		c.mu.Lock()
		sub, ok := c.subs[n.Params.Subscription]
		c.mu.Unlock()
		if !ok {
			c.l.Debug("notification for unknown subscription",
				zap.String("method", n.Method), zap.Uint64("subscription", n.Params.Subscription))
			continue
		}
		select {
		case sub.ch <- n.Params.Result:
		case <-sub.done:
		case <-c.done:
			return
		}
	}
}

func (c *PubsubClient) request(ctx context.Context, method string, onResult func(json.RawMessage), params ...interface{}) (json.RawMessage, error) {
	p := &pendingRequest{reply: make(chan response, 1), onResult: onResult}
	id := c.ids.Inc()
	c.mu.Lock()
	select {
	case <-c.done:
		err := c.err
		c.mu.Unlock()
		return nil, err
	default:
	}
	c.pending[id] = p
	c.mu.Unlock()

	forget := func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}

	c.writeMu.Lock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	err := c.conn.WriteJSON(request{JSONRPC: "2.0", ID: id, Method: method, Params: params})
	c.writeMu.Unlock()
	if err != nil {
		forget()
		return nil, ErrTransport.Wrapf(err, "%s", method)
	}

	select {
	case res := <-p.reply:
		if res.Error != nil {
			return nil, res.Error
		}
		return res.Result, nil
	case <-ctx.Done():
		forget()
		return nil, ctx.Err()
	case <-c.done:
		forget()
		return nil, c.Err()
	}
}

// subscribe registers a subscription and decodes its notifications into a typed channel.
// The returned function unsubscribes; the channel is closed afterwards, or when the client closes.
//
// The subscription is routed as soon as the reader sees the reply, so that
// notifications pushed right after it are not lost.
func subscribe[T any](ctx context.Context, c *PubsubClient, method string) (<-chan T, func() error, error) {
	sub := &subscription{
		ch:   make(chan json.RawMessage, notificationBuffer),
		done: make(chan struct{}),
	}
	var (
		id         uint64
		registered bool
	)
	register := func(raw json.RawMessage) {
		if json.Unmarshal(raw, &id) != nil {
			return
		}
		c.mu.Lock()
		c.subs[id] = sub
		registered = true
		c.mu.Unlock()
	}

	raw, err := c.request(ctx, method+"Subscribe", register)
	if err != nil {
		c.mu.Lock()
		if registered {
			delete(c.subs, id)
		}
		c.mu.Unlock()
		sub.stop()
		return nil, nil, err
	}
	if err = json.Unmarshal(raw, &id); err != nil {
		return nil, nil, ErrTransport.Wrapf(err, "%sSubscribe: unexpected subscription id %s", method, string(raw))
	}

	out := make(chan T, notificationBuffer)
	go func() {
		defer close(out)
		for {
			select {
			case msg := <-sub.ch:
				var v T
				if err := json.Unmarshal(msg, &v); err != nil {
					c.l.Warn("undecodable notification", zap.String("method", method), zap.Error(err))
					continue
				}
				select {
				case out <- v:
				case <-sub.done:
					return
				case <-c.done:
					return
				}
			case <-sub.done:
				return
			case <-c.done:
				return
			}
		}
	}()

	unsubscribe := func() error {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
		sub.stop()

		select {
		case <-c.done:
			return nil
		default:
		}
		uctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		_, err := c.request(uctx, method+"Unsubscribe", nil, id)
		return err
	}
	return out, unsubscribe, nil
}

// VoteSubscribe streams the votes observed in gossip and replay
func (c *PubsubClient) VoteSubscribe(ctx context.Context) (<-chan VoteNotification, func() error, error) {
	return subscribe[VoteNotification](ctx, c, "vote")
}

// SlotSubscribe streams slot notifications
func (c *PubsubClient) SlotSubscribe(ctx context.Context) (<-chan SlotInfo, func() error, error) {
	return subscribe[SlotInfo](ctx, c, "slot")
}
