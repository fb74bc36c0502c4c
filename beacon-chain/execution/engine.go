package execution

import (
	"context"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// EngineCaller calls the execution engine endpoints to drive
// consensus <-> execution interaction.
type EngineCaller interface {
	PreparePayload(ctx context.Context, params AssembleBlockParams) (*PayloadResponse, error)
	GetPayload(ctx context.Context, payloadID hexutil.Uint64) (*ExecutableData, error)
	ExecutePayload(ctx context.Context, data *ExecutableData) (PayloadStatus, error)
	ForkchoiceUpdated(ctx context.Context, params ForkchoiceParams) error
	ConsensusValidated(ctx context.Context, params ConsensusValidatedParams) error
}
