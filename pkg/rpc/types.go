package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/oneconcern/voteview/pkg/errors"
	"github.com/oneconcern/voteview/pkg/solana"
)

var (
	// ErrNotFound is returned when the cluster has no record of the requested object
	ErrNotFound = errors.New("not found")

	// ErrTransport is returned when the endpoint cannot be reached or answers garbage
	ErrTransport = errors.New("rpc transport")

	// ErrClosed is returned on operations against a closed pubsub client
	ErrClosed = errors.New("pubsub client closed")
)

// Error is a JSON-RPC error object returned by the cluster
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type request struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type response struct {
	ID     *uint64         `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *Error          `json:"error"`
}

// TransactionError is the raw error of a failed transaction, null when it succeeded
type TransactionError json.RawMessage

// Failed tells if the transaction was not successful
func (e TransactionError) Failed() bool {
	trimmed := bytes.TrimSpace(e)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

// UnmarshalJSON keeps the raw error document
func (e *TransactionError) UnmarshalJSON(b []byte) error {
	*e = append((*e)[:0], b...)
	return nil
}

// MarshalJSON emits the raw error document
func (e TransactionError) MarshalJSON() ([]byte, error) {
	if len(e) == 0 {
		return []byte("null"), nil
	}
	return e, nil
}

// SignatureInfo is one entry of getSignaturesForAddress
type SignatureInfo struct {
	Signature          solana.Signature `json:"signature"`
	Slot               solana.Slot      `json:"slot"`
	Err                TransactionError `json:"err"`
	Memo               *string          `json:"memo"`
	BlockTime          *int64           `json:"blockTime"`
	ConfirmationStatus string           `json:"confirmationStatus,omitempty"`
}

// ConfirmedTransaction is the result of getTransaction
type ConfirmedTransaction struct {
	Slot        solana.Slot
	BlockTime   *int64
	Err         TransactionError
	Transaction *solana.Transaction
}

type transactionResult struct {
	Slot        solana.Slot     `json:"slot"`
	BlockTime   *int64          `json:"blockTime"`
	Transaction json.RawMessage `json:"transaction"`
	Meta        *struct {
		Err TransactionError `json:"err"`
	} `json:"meta"`
}

// VoteNotification is a vote observed by the cluster, as pushed by voteSubscribe
type VoteNotification struct {
	VotePubkey solana.Pubkey    `json:"votePubkey"`
	Slots      []solana.Slot    `json:"slots"`
	Hash       solana.Hash      `json:"hash"`
	Timestamp  *int64           `json:"timestamp"`
	Signature  solana.Signature `json:"signature"`
}

// Vote converts the notification into a vote
func (v VoteNotification) Vote() solana.Vote {
	return solana.Vote{Slots: v.Slots, Hash: v.Hash, Timestamp: v.Timestamp}
}

// SlotInfo is pushed by slotSubscribe when a bank is created
type SlotInfo struct {
	Parent solana.Slot `json:"parent"`
	Root   solana.Slot `json:"root"`
	Slot   solana.Slot `json:"slot"`
}
