// Package rpc talks to a Solana cluster: JSON-RPC over HTTP for ledger
// queries, and the websocket pubsub endpoint for vote and slot notifications.
package rpc
