package epoch

import (
	"fmt"

	"github.com/meridianchain/meridian/beacon-chain/core/helpers"
	"github.com/meridianchain/meridian/beacon-chain/core/validators"
	"github.com/meridianchain/meridian/beacon-chain/types"
	"github.com/meridianchain/meridian/shared/params"
)

// CanProcessEpoch reports whether the state sits on the last slot of an
// epoch, the only point at which epoch processing runs.
func CanProcessEpoch(state *types.BeaconState) bool {
	return (state.Slot+1)%params.BeaconConfig().SlotsPerEpoch == 0
}

// CanProcessEth1Data reports whether the upcoming epoch closes an eth1
// data voting window.
func CanProcessEth1Data(state *types.BeaconState) bool {
	return helpers.NextEpoch(state)%params.BeaconConfig().EpochsPerEth1VotingPeriod == 0
}

// ProcessEth1Data adopts any eth1 data point that gathered votes from
// more than half the voting window's slots, then resets the tally.
func ProcessEth1Data(state *types.BeaconState) *types.BeaconState {
	cfg := params.BeaconConfig()
	slotsPerPeriod := cfg.EpochsPerEth1VotingPeriod * cfg.SlotsPerEpoch
	for _, vote := range state.Eth1DataVotes {
		if vote.VoteCount*2 > slotsPerPeriod {
			state.LatestEth1Data = vote.Eth1Data
		}
	}
	state.Eth1DataVotes = nil
	return state
}

// ProcessJustification updates the rolling justification bitfield from
// the boundary attesting balances and advances the justified and
// finalized epochs when the supermajority patterns hold. Does nothing
// during the first two epochs, before enough history exists.
func ProcessJustification(
	state *types.BeaconState,
	thisEpochBoundaryAttestingBalance uint64,
	prevEpochBoundaryAttestingBalance uint64,
	totalBalance uint64) *types.BeaconState {

	currentEpoch := helpers.CurrentEpoch(state)
	if currentEpoch < params.BeaconConfig().GenesisEpoch+2 {
		return state
	}
	prevEpoch := currentEpoch - 1

	newJustifiedEpoch := state.JustifiedEpoch
	state.JustificationBitfield <<= 1
	if 3*prevEpochBoundaryAttestingBalance >= 2*totalBalance {
		state.JustificationBitfield |= 2
		newJustifiedEpoch = prevEpoch
	}
	if 3*thisEpochBoundaryAttestingBalance >= 2*totalBalance {
		state.JustificationBitfield |= 1
		newJustifiedEpoch = currentEpoch
	}

	switch {
	case (state.JustificationBitfield>>1)%8 == 7 && state.PreviousJustifiedEpoch == prevEpoch-2:
		state.FinalizedEpoch = state.PreviousJustifiedEpoch
	case (state.JustificationBitfield>>1)%4 == 3 && state.PreviousJustifiedEpoch == prevEpoch-1:
		state.FinalizedEpoch = state.PreviousJustifiedEpoch
	case state.JustificationBitfield%8 == 7 && state.JustifiedEpoch == prevEpoch-1:
		state.FinalizedEpoch = state.JustifiedEpoch
	case state.JustificationBitfield%4 == 3 && state.JustifiedEpoch == prevEpoch:
		state.FinalizedEpoch = state.JustifiedEpoch
	}

	state.PreviousJustifiedEpoch = state.JustifiedEpoch
	state.JustifiedEpoch = newJustifiedEpoch
	return state
}

// ProcessCrosslinks records a new crosslink for every shard whose
// winning root gathered attestations from two thirds of the committee's
// balance, over every slot of the previous and current epoch.
func ProcessCrosslinks(
	state *types.BeaconState,
	thisEpochAttestations []*types.PendingAttestation,
	prevEpochAttestations []*types.PendingAttestation) (*types.BeaconState, error) {

	currentEpoch := helpers.CurrentEpoch(state)
	startSlot := helpers.StartSlot(helpers.PrevEpoch(state))
	endSlot := helpers.StartSlot(helpers.NextEpoch(state))

	for slot := startSlot; slot < endSlot; slot++ {
		crosslinkCommittees, err := helpers.CrosslinkCommitteesAtSlot(state, slot)
		if err != nil {
			return nil, fmt.Errorf("could not get committees for slot %d: %v", slot, err)
		}
		for _, crosslinkCommittee := range crosslinkCommittees {
			shard := crosslinkCommittee.Shard
			committee := crosslinkCommittee.Committee

			root, ok, err := WinningRoot(state, shard, thisEpochAttestations, prevEpochAttestations)
			if err != nil {
				return nil, fmt.Errorf("could not get winning root for shard %d: %v", shard, err)
			}
			if !ok {
				continue
			}
			attestingBalance, err := TotalAttestingBalance(state, shard, thisEpochAttestations, prevEpochAttestations)
			if err != nil {
				return nil, fmt.Errorf("could not get attesting balance for shard %d: %v", shard, err)
			}
			totalBalance := helpers.TotalBalance(state, committee)

			if 3*attestingBalance >= 2*totalBalance {
				state.LatestCrosslinks[shard] = &types.Crosslink{
					Epoch:          currentEpoch,
					ShardBlockRoot: root,
				}
			}
		}
	}
	return state, nil
}

// ProcessEjections initiates an exit for every active validator whose
// balance fell below the ejection threshold.
func ProcessEjections(state *types.BeaconState) *types.BeaconState {
	currentEpoch := helpers.CurrentEpoch(state)
	for _, index := range helpers.ActiveValidatorIndices(state.ValidatorRegistry, currentEpoch) {
		if state.ValidatorBalances[index] < params.BeaconConfig().EjectionBalance {
			validators.InitiateValidatorExit(state, index)
		}
	}
	return state
}

// CanProcessValidatorRegistry reports whether a full registry update
// may run: the chain finalized past the last update and every shard in
// the current committee span crosslinked since then.
func CanProcessValidatorRegistry(state *types.BeaconState) bool {
	if state.FinalizedEpoch <= state.ValidatorRegistryUpdateEpoch {
		return false
	}
	cfg := params.BeaconConfig()
	active := helpers.ActiveValidatorIndices(state.ValidatorRegistry, helpers.CurrentEpoch(state))
	committeeCount := helpers.EpochCommitteeCount(uint64(len(active)))
	for i := uint64(0); i < committeeCount; i++ {
		shard := (state.CurrentShufflingStartShard + i) % cfg.ShardCount
		if state.LatestCrosslinks[shard].Epoch <= state.ValidatorRegistryUpdateEpoch {
			return false
		}
	}
	return true
}

// ProcessValidatorRegistry runs the churn-limited registry update and
// rotates the shuffling window: the current assignment becomes the
// previous one, and a fresh seed and start shard are drawn for the
// upcoming epoch.
func ProcessValidatorRegistry(state *types.BeaconState) (*types.BeaconState, error) {
	cfg := params.BeaconConfig()
	state.PreviousShufflingEpoch = state.CurrentShufflingEpoch
	state.PreviousShufflingStartShard = state.CurrentShufflingStartShard
	state.PreviousShufflingSeed = state.CurrentShufflingSeed

	validators.UpdateRegistry(state)

	state.CurrentShufflingEpoch = helpers.NextEpoch(state)
	active := helpers.ActiveValidatorIndices(state.ValidatorRegistry, state.CurrentShufflingEpoch)
	committeeCount := helpers.EpochCommitteeCount(uint64(len(active)))
	state.CurrentShufflingStartShard = (state.CurrentShufflingStartShard + committeeCount) % cfg.ShardCount

	seed, err := helpers.GenerateSeed(state, state.CurrentShufflingEpoch)
	if err != nil {
		return nil, fmt.Errorf("could not generate seed for epoch %d: %v", state.CurrentShufflingEpoch, err)
	}
	state.CurrentShufflingSeed = seed
	return state, nil
}

// ProcessPartialValidatorRegistry rotates the shuffling window without
// a registry update. The seed is still refreshed at power-of-two epoch
// distances from the last update so a stalled registry cannot pin the
// shuffle forever.
func ProcessPartialValidatorRegistry(state *types.BeaconState) (*types.BeaconState, error) {
	state.PreviousShufflingEpoch = state.CurrentShufflingEpoch
	state.PreviousShufflingStartShard = state.CurrentShufflingStartShard
	state.PreviousShufflingSeed = state.CurrentShufflingSeed

	epochsSinceLastUpdate := helpers.CurrentEpoch(state) - state.ValidatorRegistryUpdateEpoch
	if epochsSinceLastUpdate > 1 && isPowerOfTwo(epochsSinceLastUpdate) {
		state.CurrentShufflingEpoch = helpers.NextEpoch(state)
		seed, err := helpers.GenerateSeed(state, state.CurrentShufflingEpoch)
		if err != nil {
			return nil, fmt.Errorf("could not generate seed for epoch %d: %v", state.CurrentShufflingEpoch, err)
		}
		state.CurrentShufflingSeed = seed
	}
	return state, nil
}

// CleanupAttestations drops the pending attestations consumed by this
// epoch's processing, keeping only those from the current epoch on.
func CleanupAttestations(state *types.BeaconState) *types.BeaconState {
	currentEpoch := helpers.CurrentEpoch(state)
	var kept []*types.PendingAttestation
	for _, att := range state.LatestAttestations {
		if helpers.SlotToEpoch(att.Data.Slot) >= currentEpoch {
			kept = append(kept, att)
		}
	}
	state.LatestAttestations = kept
	return state
}

// UpdateLatestRandaoMixes seeds the upcoming epoch's randao mix slot
// with the current epoch's mix.
func UpdateLatestRandaoMixes(state *types.BeaconState) (*types.BeaconState, error) {
	length := params.BeaconConfig().LatestRandaoMixesLength
	mix, err := helpers.RandaoMix(state, helpers.CurrentEpoch(state))
	if err != nil {
		return nil, fmt.Errorf("could not get current randao mix: %v", err)
	}
	state.LatestRandaoMixes[helpers.NextEpoch(state)%length] = mix
	return state, nil
}

// UpdatePenalizedExitBalances carries the running penalized-balance
// total forward into the upcoming epoch's ring buffer slot.
func UpdatePenalizedExitBalances(state *types.BeaconState) *types.BeaconState {
	length := params.BeaconConfig().LatestPenalizedExitLength
	currentBucket := helpers.CurrentEpoch(state) % length
	nextBucket := helpers.NextEpoch(state) % length
	state.LatestPenalizedBalances[nextBucket] = state.LatestPenalizedBalances[currentBucket]
	return state
}

func isPowerOfTwo(n uint64) bool {
	return n != 0 && n&(n-1) == 0
}
