package rpc

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/oneconcern/voteview/pkg/solana"
	"github.com/oneconcern/voteview/pkg/tracing"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const maxResponseSize = 64 << 20

// Client is a JSON-RPC client for one cluster endpoint
type Client struct {
	endpoint   string
	commitment string
	http       *http.Client
	l          *zap.Logger
	limiter    *rate.Limiter
	ids        atomic.Uint64
}

// Option configures a Client
type Option func(*Client)

// Commitment sets the commitment level sent along with ledger queries
func Commitment(level string) Option {
	return func(c *Client) {
		if level != "" {
			c.commitment = level
		}
	}
}

// HTTPClient substitutes the http client
func HTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// RateLimit caps the number of requests sent per second. Zero or less means unlimited.
func RateLimit(perSecond float64) Option {
	return func(c *Client) {
		if perSecond > 0 {
			burst := int(perSecond)
			if burst < 1 {
				burst = 1
			}
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		}
	}
}

// Logger sets a logger
func Logger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.l = l
		}
	}
}

// New builds a client for a JSON-RPC endpoint
func New(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint:   endpoint,
		commitment: "confirmed",
		http:       &http.Client{Timeout: 30 * time.Second, Transport: tracing.Transport(nil)},
		l:          zap.NewNop(),
	}
	for _, apply := range opts {
		apply(c)
	}
	return c
}

// Endpoint returns the URL queried by the client
func (c *Client) Endpoint() string {
	return c.endpoint
}

func (c *Client) call(ctx context.Context, method string, result interface{}, params ...interface{}) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return ErrTransport.Wrapf(err, "%s: rate limited", method)
		}
	}
	req := request{
		JSONRPC: "2.0",
		ID:      c.ids.Inc(),
		Method:  method,
		Params:  params,
	}
	body, err := json.Marshal(req)
	if err != nil {
		return ErrTransport.Wrapf(err, "encode %s", method)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return ErrTransport.Wrapf(err, "%s", method)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return ErrTransport.Wrapf(err, "%s", method)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return ErrTransport.Wrapf(err, "read %s response", method)
	}
	c.l.Debug("rpc call",
		zap.String("method", method),
		zap.Uint64("id", req.ID),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(raw)),
		zap.Duration("elapsed", time.Since(start)),
	)

	var res response
	if err = json.Unmarshal(raw, &res); err != nil {
		return ErrTransport.Wrapf(err, "%s: http status %d", method, resp.StatusCode)
	}
	if res.Error != nil {
		return res.Error
	}
	if resp.StatusCode/100 != 2 {
		return ErrTransport.Wrapf(nil, "%s: http status %d", method, resp.StatusCode)
	}
	if result == nil {
		return nil
	}
	if len(res.Result) == 0 || string(res.Result) == "null" {
		return ErrNotFound.Wrapf(nil, "%s", method)
	}
	if err = json.Unmarshal(res.Result, result); err != nil {
		return ErrTransport.Wrapf(err, "decode %s result", method)
	}
	return nil
}

func (c *Client) config(extra map[string]interface{}) map[string]interface{} {
	cfg := map[string]interface{}{"commitment": c.commitment}
	for k, v := range extra {
		cfg[k] = v
	}
	return cfg
}

// GetSignaturesForAddress lists the most recent transaction signatures
// involving an address, newest first. When before is not nil, the listing
// starts strictly before that signature.
func (c *Client) GetSignaturesForAddress(ctx context.Context, address solana.Pubkey, limit int, before *solana.Signature) ([]SignatureInfo, error) {
	extra := map[string]interface{}{}
	if limit > 0 {
		extra["limit"] = limit
	}
	if before != nil {
		extra["before"] = before.String()
	}
	var infos []SignatureInfo
	err := c.call(ctx, "getSignaturesForAddress", &infos, address.String(), c.config(extra))
	return infos, err
}

// GetTransaction fetches and decodes a confirmed transaction
func (c *Client) GetTransaction(ctx context.Context, signature solana.Signature) (*ConfirmedTransaction, error) {
	var res transactionResult
	err := c.call(ctx, "getTransaction", &res, signature.String(), c.config(map[string]interface{}{
		"encoding":                       "base64",
		"maxSupportedTransactionVersion": 0,
	}))
	if err != nil {
		return nil, err
	}

	// base64 encoded transactions come as a [data, encoding] pair
	var encoded []string
	if err = json.Unmarshal(res.Transaction, &encoded); err != nil || len(encoded) != 2 || encoded[1] != "base64" {
		return nil, ErrTransport.Wrapf(err, "unexpected transaction encoding for %s", signature)
	}
	data, err := base64.StdEncoding.DecodeString(encoded[0])
	if err != nil {
		return nil, ErrTransport.Wrapf(err, "transaction %s", signature)
	}
	tx, err := solana.DecodeTransaction(data)
	if err != nil {
		return nil, err
	}

	ct := &ConfirmedTransaction{
		Slot:        res.Slot,
		BlockTime:   res.BlockTime,
		Transaction: tx,
	}
	if res.Meta != nil {
		ct.Err = res.Meta.Err
	}
	return ct, nil
}

// GetBlocks lists the confirmed blocks in [start, end]
func (c *Client) GetBlocks(ctx context.Context, start, end solana.Slot) ([]solana.Slot, error) {
	var slots []solana.Slot
	err := c.call(ctx, "getBlocks", &slots, uint64(start), uint64(end), c.config(nil))
	return slots, err
}
