// Package state orchestrates the state transition: genesis
// construction, per-slot advancement, block processing and the epoch
// boundary pipeline.
package state

import (
	"github.com/pkg/errors"

	"github.com/meridianchain/meridian/beacon-chain/core/validators"
	"github.com/meridianchain/meridian/beacon-chain/types"
	"github.com/meridianchain/meridian/shared/params"
)

// InitialBeaconState constructs the genesis state from the initial
// deposits: every deposit is inducted and, when fully funded,
// activated immediately. Ring buffers are allocated at their configured
// lengths and never resized afterwards.
func InitialBeaconState(deposits []*types.Deposit, genesisTime uint64, eth1Data types.Eth1Data) (*types.BeaconState, error) {
	cfg := params.BeaconConfig()

	crosslinks := make([]*types.Crosslink, cfg.ShardCount)
	for i := range crosslinks {
		crosslinks[i] = &types.Crosslink{
			Epoch:          cfg.GenesisEpoch,
			ShardBlockRoot: cfg.ZeroHash,
		}
	}

	state := &types.BeaconState{
		Slot:        cfg.GenesisSlot,
		GenesisTime: genesisTime,
		Fork: types.Fork{
			PreviousVersion: 0,
			CurrentVersion:  0,
			Epoch:           cfg.GenesisEpoch,
		},

		ValidatorRegistryUpdateEpoch: cfg.GenesisEpoch,

		LatestRandaoMixes: make([][32]byte, cfg.LatestRandaoMixesLength),

		PreviousShufflingStartShard: cfg.GenesisStartShard,
		CurrentShufflingStartShard:  cfg.GenesisStartShard,
		PreviousShufflingEpoch:      cfg.GenesisEpoch,
		CurrentShufflingEpoch:       cfg.GenesisEpoch,

		PreviousJustifiedEpoch: cfg.GenesisEpoch,
		JustifiedEpoch:         cfg.GenesisEpoch,
		FinalizedEpoch:         cfg.GenesisEpoch,

		LatestCrosslinks:        crosslinks,
		LatestBlockRoots:        make([][32]byte, cfg.LatestBlockRootsLength),
		LatestPenalizedBalances: make([]uint64, cfg.LatestPenalizedExitLength),

		LatestEth1Data: eth1Data,
	}

	inductor := &validators.Inductor{}
	for i, deposit := range deposits {
		index, err := inductor.InductValidator(state, &deposit.DepositInput, deposit.Amount)
		if err != nil {
			return nil, errors.Wrapf(err, "could not induct genesis deposit %d", i)
		}
		if state.ValidatorBalances[index] >= cfg.MaxDepositAmount {
			validators.ActivateValidator(state, index, true)
		}
	}
	return state, nil
}
