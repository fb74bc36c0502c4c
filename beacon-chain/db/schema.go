package db

import "github.com/meridianchain/meridian/shared/bytesutil"

// Columns partition the keyspace. Each column maps to its own bolt
// bucket; the in-memory store namespaces keys the same way.
var (
	// chainInfoColumn holds chain-level singletons such as the head
	// state and the genesis time.
	chainInfoColumn = []byte("chain-info")

	// blockColumn holds blocks keyed by their tree-hash root.
	blockColumn = []byte("block")

	// validatorColumn holds per-validator records keyed by index.
	validatorColumn = []byte("validator")
)

// Keys within chainInfoColumn.
var (
	stateLookupKey = []byte("beacon-state")
)

// pubkeyKey is the validator-column key for a validator's public key:
// the literal prefix followed by the big-endian index.
func pubkeyKey(index uint64) []byte {
	return append([]byte("pubkey"), bytesutil.Bytes8(index)...)
}
