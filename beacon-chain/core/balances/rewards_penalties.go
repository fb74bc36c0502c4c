// Package balances contains libraries to calculate reward and penalty
// quotients. It computes new validator balances for justifications,
// crosslinks and attestation inclusions, and the penalties for
// validators that go inactive while finality is stalled.
package balances

import (
	"errors"
	"fmt"

	"github.com/meridianchain/meridian/beacon-chain/core/epoch"
	"github.com/meridianchain/meridian/beacon-chain/core/helpers"
	"github.com/meridianchain/meridian/beacon-chain/types"
	"github.com/meridianchain/meridian/shared/params"
	"github.com/meridianchain/meridian/shared/sliceutil"
)

// ExpectedFFGSource rewards validators that voted for the previous
// justified hash in proportion to the attesting balance and penalizes
// every other active validator by one base reward.
func ExpectedFFGSource(
	state *types.BeaconState,
	justifiedAttesterIndices []uint64,
	justifiedAttestingBalance uint64,
	totalBalance uint64) *types.BeaconState {

	baseRewardQuotient := helpers.BaseRewardQuotient(totalBalance)

	for _, index := range justifiedAttesterIndices {
		state.ValidatorBalances[index] +=
			helpers.BaseReward(state, index, baseRewardQuotient) *
				justifiedAttestingBalance /
				totalBalance
	}
	activeValidatorIndices := helpers.ActiveValidatorIndices(state.ValidatorRegistry, helpers.CurrentEpoch(state))
	didNotAttestIndices := sliceutil.NotUint64(justifiedAttesterIndices, activeValidatorIndices)

	for _, index := range didNotAttestIndices {
		state.ValidatorBalances[index] -=
			helpers.BaseReward(state, index, baseRewardQuotient)
	}
	return state
}

// ExpectedFFGTarget rewards validators that voted for the previous
// epoch boundary block and penalizes every other active validator.
func ExpectedFFGTarget(
	state *types.BeaconState,
	boundaryAttesterIndices []uint64,
	boundaryAttestingBalance uint64,
	totalBalance uint64) *types.BeaconState {

	baseRewardQuotient := helpers.BaseRewardQuotient(totalBalance)

	for _, index := range boundaryAttesterIndices {
		state.ValidatorBalances[index] +=
			helpers.BaseReward(state, index, baseRewardQuotient) *
				boundaryAttestingBalance /
				totalBalance
	}
	activeValidatorIndices := helpers.ActiveValidatorIndices(state.ValidatorRegistry, helpers.CurrentEpoch(state))
	didNotAttestIndices := sliceutil.NotUint64(boundaryAttesterIndices, activeValidatorIndices)

	for _, index := range didNotAttestIndices {
		state.ValidatorBalances[index] -=
			helpers.BaseReward(state, index, baseRewardQuotient)
	}
	return state
}

// ExpectedBeaconChainHead rewards validators that voted for the
// canonical head block and penalizes every other active validator.
func ExpectedBeaconChainHead(
	state *types.BeaconState,
	headAttesterIndices []uint64,
	headAttestingBalance uint64,
	totalBalance uint64) *types.BeaconState {

	baseRewardQuotient := helpers.BaseRewardQuotient(totalBalance)

	for _, index := range headAttesterIndices {
		state.ValidatorBalances[index] +=
			helpers.BaseReward(state, index, baseRewardQuotient) *
				headAttestingBalance /
				totalBalance
	}
	activeValidatorIndices := helpers.ActiveValidatorIndices(state.ValidatorRegistry, helpers.CurrentEpoch(state))
	didNotAttestIndices := sliceutil.NotUint64(headAttesterIndices, activeValidatorIndices)

	for _, index := range didNotAttestIndices {
		state.ValidatorBalances[index] -=
			helpers.BaseReward(state, index, baseRewardQuotient)
	}
	return state
}

// InclusionDistance rewards attesters for how quickly their
// attestations reached a block. The full base reward is paid at the
// minimum inclusion delay and decays with the distance.
func InclusionDistance(
	state *types.BeaconState,
	attesterIndices []uint64,
	totalBalance uint64,
	inclusionDistanceByAttester map[uint64]uint64) (*types.BeaconState, error) {

	baseRewardQuotient := helpers.BaseRewardQuotient(totalBalance)

	for _, index := range attesterIndices {
		inclusionDistance, ok := inclusionDistanceByAttester[index]
		if !ok {
			return nil, fmt.Errorf("could not get inclusion distance for attester: %d", index)
		}
		if inclusionDistance == 0 {
			return nil, errors.New("could not process inclusion distance: 0")
		}
		state.ValidatorBalances[index] +=
			helpers.BaseReward(state, index, baseRewardQuotient) *
				params.BeaconConfig().MinAttestationInclusionDelay /
				inclusionDistance
	}
	return state, nil
}

// InactivityFFGSource leaks balance from active validators that missed
// the FFG source vote while finality has stalled.
func InactivityFFGSource(
	state *types.BeaconState,
	justifiedAttesterIndices []uint64,
	totalBalance uint64,
	epochsSinceFinality uint64) *types.BeaconState {

	baseRewardQuotient := helpers.BaseRewardQuotient(totalBalance)
	activeValidatorIndices := helpers.ActiveValidatorIndices(state.ValidatorRegistry, helpers.CurrentEpoch(state))
	didNotAttestIndices := sliceutil.NotUint64(justifiedAttesterIndices, activeValidatorIndices)

	for _, index := range didNotAttestIndices {
		state.ValidatorBalances[index] -=
			helpers.InactivityPenalty(state, index, baseRewardQuotient, epochsSinceFinality)
	}
	return state
}

// InactivityFFGTarget leaks balance from active validators that missed
// the epoch boundary vote while finality has stalled.
func InactivityFFGTarget(
	state *types.BeaconState,
	boundaryAttesterIndices []uint64,
	totalBalance uint64,
	epochsSinceFinality uint64) *types.BeaconState {

	baseRewardQuotient := helpers.BaseRewardQuotient(totalBalance)
	activeValidatorIndices := helpers.ActiveValidatorIndices(state.ValidatorRegistry, helpers.CurrentEpoch(state))
	didNotAttestIndices := sliceutil.NotUint64(boundaryAttesterIndices, activeValidatorIndices)

	for _, index := range didNotAttestIndices {
		state.ValidatorBalances[index] -=
			helpers.InactivityPenalty(state, index, baseRewardQuotient, epochsSinceFinality)
	}
	return state
}

// InactivityChainHead penalizes active validators that missed the head
// vote during an inactivity leak by one base reward.
func InactivityChainHead(
	state *types.BeaconState,
	headAttesterIndices []uint64,
	totalBalance uint64) *types.BeaconState {

	baseRewardQuotient := helpers.BaseRewardQuotient(totalBalance)
	activeValidatorIndices := helpers.ActiveValidatorIndices(state.ValidatorRegistry, helpers.CurrentEpoch(state))
	didNotAttestIndices := sliceutil.NotUint64(headAttesterIndices, activeValidatorIndices)

	for _, index := range didNotAttestIndices {
		state.ValidatorBalances[index] -=
			helpers.BaseReward(state, index, baseRewardQuotient)
	}
	return state
}

// InactivityExitedPenalties applies doubled leak penalties to
// validators that were penalized before or during the current epoch
// and are still in the active set.
func InactivityExitedPenalties(
	state *types.BeaconState,
	totalBalance uint64,
	epochsSinceFinality uint64) *types.BeaconState {

	baseRewardQuotient := helpers.BaseRewardQuotient(totalBalance)
	currentEpoch := helpers.CurrentEpoch(state)
	activeValidatorIndices := helpers.ActiveValidatorIndices(state.ValidatorRegistry, currentEpoch)

	for _, index := range activeValidatorIndices {
		if state.ValidatorRegistry[index].PenalizedEpoch <= currentEpoch {
			state.ValidatorBalances[index] -=
				2*helpers.InactivityPenalty(state, index, baseRewardQuotient, epochsSinceFinality) +
					helpers.BaseReward(state, index, baseRewardQuotient)
		}
	}
	return state
}

// InactivityInclusionDistance claws back the part of the inclusion
// reward lost to slow inclusion during an inactivity leak.
func InactivityInclusionDistance(
	state *types.BeaconState,
	attesterIndices []uint64,
	totalBalance uint64,
	inclusionDistanceByAttester map[uint64]uint64) (*types.BeaconState, error) {

	baseRewardQuotient := helpers.BaseRewardQuotient(totalBalance)

	for _, index := range attesterIndices {
		inclusionDistance, ok := inclusionDistanceByAttester[index]
		if !ok {
			return nil, fmt.Errorf("could not get inclusion distance for attester: %d", index)
		}
		if inclusionDistance == 0 {
			return nil, errors.New("could not process inclusion distance: 0")
		}
		baseReward := helpers.BaseReward(state, index, baseRewardQuotient)
		state.ValidatorBalances[index] -= baseReward -
			baseReward*params.BeaconConfig().MinAttestationInclusionDelay/
				inclusionDistance
	}
	return state, nil
}

// AttestationInclusion rewards the proposers whose blocks carried the
// previous epoch's attestations.
func AttestationInclusion(
	state *types.BeaconState,
	totalBalance uint64,
	prevEpochAttesterIndices []uint64,
	inclusionSlotByAttester map[uint64]uint64) (*types.BeaconState, error) {

	baseRewardQuotient := helpers.BaseRewardQuotient(totalBalance)
	for _, index := range prevEpochAttesterIndices {
		slot, ok := inclusionSlotByAttester[index]
		if !ok {
			return nil, fmt.Errorf("could not get inclusion slot for attester: %d", index)
		}
		proposerIndex, err := helpers.BeaconProposerIndex(state, slot)
		if err != nil {
			return nil, fmt.Errorf("could not get proposer index: %v", err)
		}
		state.ValidatorBalances[proposerIndex] +=
			helpers.BaseReward(state, proposerIndex, baseRewardQuotient) /
				params.BeaconConfig().IncluderRewardQuotient
	}
	return state, nil
}

// Crosslinks rewards committee members that attested to their shard's
// winning root in proportion to the attesting balance and penalizes
// the members that did not, over every slot of the previous epoch.
func Crosslinks(
	state *types.BeaconState,
	thisEpochAttestations []*types.PendingAttestation,
	prevEpochAttestations []*types.PendingAttestation) (*types.BeaconState, error) {

	prevEpoch := helpers.PrevEpoch(state)
	currentEpoch := helpers.CurrentEpoch(state)
	startSlot := helpers.StartSlot(prevEpoch)
	endSlot := helpers.StartSlot(currentEpoch)

	for i := startSlot; i < endSlot; i++ {
		crosslinkCommittees, err := helpers.CrosslinkCommitteesAtSlot(state, i)
		if err != nil {
			return nil, fmt.Errorf("could not get shard committees for slot %d: %v", i, err)
		}
		for _, crosslinkCommittee := range crosslinkCommittees {
			shard := crosslinkCommittee.Shard
			committee := crosslinkCommittee.Committee
			totalAttestingBalance, err :=
				epoch.TotalAttestingBalance(state, shard, thisEpochAttestations, prevEpochAttestations)
			if err != nil {
				return nil,
					fmt.Errorf("could not get attesting balance for shard committee %d: %v", shard, err)
			}
			totalBalance := helpers.TotalBalance(state, committee)
			baseRewardQuotient := helpers.BaseRewardQuotient(totalBalance)

			attestingIndices, err := epoch.AttestingValidators(
				state,
				shard,
				thisEpochAttestations,
				prevEpochAttestations)
			if err != nil {
				return nil,
					fmt.Errorf("could not get attesting indices for shard committee %d: %v", shard, err)
			}
			for _, index := range committee {
				baseReward := helpers.BaseReward(state, index, baseRewardQuotient)
				if sliceutil.IsInUint64(index, attestingIndices) {
					state.ValidatorBalances[index] +=
						baseReward * totalAttestingBalance / totalBalance
				} else {
					state.ValidatorBalances[index] -= baseReward
				}
			}
		}
	}
	return state, nil
}
