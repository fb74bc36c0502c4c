// Package execution talks to execution engine endpoints over the
// engine JSON-RPC API. Payload construction reads go to the first
// healthy endpoint; validity notifications broadcast to all of them.
package execution

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// PayloadStatus is an execution engine's verdict on a payload.
type PayloadStatus string

const (
	StatusValid   PayloadStatus = "VALID"
	StatusInvalid PayloadStatus = "INVALID"
	StatusSyncing PayloadStatus = "SYNCING"
)

// AssembleBlockParams asks an engine to start building a payload on
// top of the given parent.
type AssembleBlockParams struct {
	ParentHash   common.Hash    `json:"parentHash"`
	Timestamp    hexutil.Uint64 `json:"timestamp"`
	Random       common.Hash    `json:"random"`
	FeeRecipient common.Address `json:"feeRecipient"`
}

// PayloadResponse identifies a payload under construction.
type PayloadResponse struct {
	PayloadID hexutil.Uint64 `json:"payloadId"`
}

// ExecutableData is a fully built execution payload.
type ExecutableData struct {
	BlockHash     common.Hash     `json:"blockHash"`
	ParentHash    common.Hash     `json:"parentHash"`
	Coinbase      common.Address  `json:"coinbase"`
	StateRoot     common.Hash     `json:"stateRoot"`
	ReceiptRoot   common.Hash     `json:"receiptRoot"`
	LogsBloom     hexutil.Bytes   `json:"logsBloom"`
	Random        common.Hash     `json:"random"`
	Number        hexutil.Uint64  `json:"blockNumber"`
	GasLimit      hexutil.Uint64  `json:"gasLimit"`
	GasUsed       hexutil.Uint64  `json:"gasUsed"`
	Timestamp     hexutil.Uint64  `json:"timestamp"`
	ExtraData     hexutil.Bytes   `json:"extraData"`
	BaseFeePerGas hexutil.Bytes   `json:"baseFeePerGas"`
	Transactions  []hexutil.Bytes `json:"transactions"`
}

// ForkchoiceParams points the engines at the consensus head and the
// latest finalized block.
type ForkchoiceParams struct {
	HeadBlockHash      common.Hash `json:"headBlockHash"`
	SafeBlockHash      common.Hash `json:"safeBlockHash"`
	FinalizedBlockHash common.Hash `json:"finalizedBlockHash"`
}

// ConsensusValidatedParams reports the consensus verdict on a payload
// back to the engines.
type ConsensusValidatedParams struct {
	BlockHash common.Hash   `json:"blockHash"`
	Status    PayloadStatus `json:"status"`
}

type executePayloadResponse struct {
	Status PayloadStatus `json:"status"`
}
