package rpc

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/oneconcern/voteview/pkg/errors"
	"github.com/oneconcern/voteview/pkg/solana"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rpcHandler func(method string, params []json.RawMessage) (interface{}, *Error)

func newTestServer(t *testing.T, h rpcHandler) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     uint64            `json:"id"`
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		result, rpcErr := h(req.Method, req.Params)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  result,
			"error":   rpcErr,
		})
	}))
}

func TestClient_GetSignaturesForAddress(t *testing.T) {
	account := solana.Pubkey{5}
	before := solana.Signature{9}
	srv := newTestServer(t, func(method string, params []json.RawMessage) (interface{}, *Error) {
		assert.Equal(t, "getSignaturesForAddress", method)
		require.Len(t, params, 2)
		var addr string
		require.NoError(t, json.Unmarshal(params[0], &addr))
		assert.Equal(t, account.String(), addr)
		var cfg map[string]interface{}
		require.NoError(t, json.Unmarshal(params[1], &cfg))
		assert.EqualValues(t, 2, cfg["limit"])
		assert.Equal(t, before.String(), cfg["before"])
		assert.Equal(t, "finalized", cfg["commitment"])
		return []map[string]interface{}{
			{"signature": solana.Signature{1}.String(), "slot": 100, "err": nil},
			{"signature": solana.Signature{2}.String(), "slot": 99, "err": map[string]interface{}{"InstructionError": []interface{}{0, "Custom"}}},
		}, nil
	})
	defer srv.Close()

	c := New(srv.URL, Commitment("finalized"))
	infos, err := c.GetSignaturesForAddress(context.Background(), account, 2, &before)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, solana.Signature{1}, infos[0].Signature)
	assert.Equal(t, solana.Slot(100), infos[0].Slot)
	assert.False(t, infos[0].Err.Failed())
	assert.True(t, infos[1].Err.Failed())
}

func TestClient_GetTransaction(t *testing.T) {
	vote := solana.Vote{Slots: []solana.Slot{10, 11}}
	tx := solana.NewVoteTransaction(solana.Signature{3}, solana.Pubkey{1}, solana.Pubkey{2}, solana.VoteIx, vote)
	raw, err := tx.MarshalBinary()
	require.NoError(t, err)

	srv := newTestServer(t, func(method string, params []json.RawMessage) (interface{}, *Error) {
		assert.Equal(t, "getTransaction", method)
		var cfg map[string]interface{}
		require.NoError(t, json.Unmarshal(params[1], &cfg))
		assert.Equal(t, "base64", cfg["encoding"])
		assert.EqualValues(t, 0, cfg["maxSupportedTransactionVersion"])
		return map[string]interface{}{
			"slot":        12,
			"transaction": []string{base64.StdEncoding.EncodeToString(raw), "base64"},
			"meta":        map[string]interface{}{"err": nil},
		}, nil
	})
	defer srv.Close()

	got, err := New(srv.URL).GetTransaction(context.Background(), solana.Signature{3})
	require.NoError(t, err)
	assert.Equal(t, solana.Slot(12), got.Slot)
	assert.False(t, got.Err.Failed())
	v, err := solana.SimpleVote(got.Transaction)
	require.NoError(t, err)
	assert.Equal(t, vote.Slots, v.Slots)
}

func TestClient_NotFound(t *testing.T) {
	srv := newTestServer(t, func(string, []json.RawMessage) (interface{}, *Error) {
		return nil, nil
	})
	defer srv.Close()

	_, err := New(srv.URL).GetTransaction(context.Background(), solana.Signature{3})
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestClient_RPCError(t *testing.T) {
	srv := newTestServer(t, func(string, []json.RawMessage) (interface{}, *Error) {
		return nil, &Error{Code: -32009, Message: "Slot 5 was skipped"}
	})
	defer srv.Close()

	_, err := New(srv.URL).GetBlocks(context.Background(), 1, 5)
	var rpcErr *Error
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, -32009, rpcErr.Code)
	assert.Contains(t, err.Error(), "skipped")
}

func TestClient_GetBlocks(t *testing.T) {
	srv := newTestServer(t, func(method string, params []json.RawMessage) (interface{}, *Error) {
		assert.Equal(t, "getBlocks", method)
		require.Len(t, params, 3)
		assert.Equal(t, "5", string(params[0]))
		assert.Equal(t, "9", string(params[1]))
		return []uint64{5, 6, 8}, nil
	})
	defer srv.Close()

	slots, err := New(srv.URL).GetBlocks(context.Background(), 5, 9)
	require.NoError(t, err)
	assert.Equal(t, []solana.Slot{5, 6, 8}, slots)
}

func TestClient_Transport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "too many requests", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := New(srv.URL).GetBlocks(context.Background(), 1, 2)
	assert.True(t, errors.Is(err, ErrTransport))
	assert.Contains(t, err.Error(), "429")
}

func TestClient_RateLimit(t *testing.T) {
	var calls int
	srv := newTestServer(t, func(method string, _ []json.RawMessage) (interface{}, *Error) {
		calls++
		return []uint64{1}, nil
	})
	defer srv.Close()

	c := New(srv.URL, RateLimit(0.001))
	_, err := c.GetBlocks(context.Background(), 1, 2)
	require.NoError(t, err, "the first request uses the burst")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.GetBlocks(ctx, 1, 2)
	assert.True(t, errors.Is(err, ErrTransport))
	assert.Contains(t, err.Error(), "rate limited")
	assert.Equal(t, 1, calls)
}
