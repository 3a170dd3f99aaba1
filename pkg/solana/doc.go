/*
Package solana decodes the few on-chain structures the vote tools look at.

It understands base58 keys and signatures, the legacy and v0 transaction wire
formats, and the bincode layout of vote program instructions. It does not
verify signatures.
*/
package solana
