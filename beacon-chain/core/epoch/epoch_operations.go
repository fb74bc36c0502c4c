// Package epoch contains epoch processing libraries. These libraries
// process new balance for the validators, justify and finalize new
// check points, and reassign committees to new shards and slots at
// every epoch boundary.
package epoch

import (
	"fmt"
	"math"

	"github.com/meridianchain/meridian/beacon-chain/core/helpers"
	"github.com/meridianchain/meridian/beacon-chain/core/validators"
	"github.com/meridianchain/meridian/beacon-chain/types"
	"github.com/meridianchain/meridian/shared/bytesutil"
)

// CurrentAttestations returns the pending attestations cast during the
// current epoch.
func CurrentAttestations(state *types.BeaconState) []*types.PendingAttestation {
	currentEpoch := helpers.CurrentEpoch(state)
	var atts []*types.PendingAttestation
	for _, att := range state.LatestAttestations {
		if helpers.SlotToEpoch(att.Data.Slot) == currentEpoch {
			atts = append(atts, att)
		}
	}
	return atts
}

// CurrentBoundaryAttestations filters the current epoch's attestations
// down to those that voted for the current epoch boundary block and the
// state's justified epoch.
func CurrentBoundaryAttestations(
	state *types.BeaconState,
	currentEpochAttestations []*types.PendingAttestation) ([]*types.PendingAttestation, error) {

	boundaryRoot, err := helpers.BlockRoot(state, helpers.StartSlot(helpers.CurrentEpoch(state)))
	if err != nil {
		return nil, fmt.Errorf("could not get current boundary block root: %v", err)
	}
	var atts []*types.PendingAttestation
	for _, att := range currentEpochAttestations {
		if att.Data.EpochBoundaryRoot == boundaryRoot &&
			att.Data.JustifiedEpoch == state.JustifiedEpoch {
			atts = append(atts, att)
		}
	}
	return atts, nil
}

// PrevAttestations returns the pending attestations cast during the
// previous epoch.
func PrevAttestations(state *types.BeaconState) []*types.PendingAttestation {
	prevEpoch := helpers.PrevEpoch(state)
	var atts []*types.PendingAttestation
	for _, att := range state.LatestAttestations {
		if helpers.SlotToEpoch(att.Data.Slot) == prevEpoch {
			atts = append(atts, att)
		}
	}
	return atts
}

// PrevJustifiedAttestations returns the attestations from the current
// and previous epoch that voted for the previous justified epoch.
func PrevJustifiedAttestations(
	state *types.BeaconState,
	thisEpochAttestations []*types.PendingAttestation,
	prevEpochAttestations []*types.PendingAttestation) []*types.PendingAttestation {

	var atts []*types.PendingAttestation
	attestations := append(append([]*types.PendingAttestation{}, thisEpochAttestations...), prevEpochAttestations...)
	for _, att := range attestations {
		if att.Data.JustifiedEpoch == state.PreviousJustifiedEpoch {
			atts = append(atts, att)
		}
	}
	return atts
}

// PrevBoundaryAttestations filters justified attestations down to those
// that voted for the previous epoch's boundary block.
func PrevBoundaryAttestations(
	state *types.BeaconState,
	prevEpochJustifiedAttestations []*types.PendingAttestation) ([]*types.PendingAttestation, error) {

	boundaryRoot, err := helpers.BlockRoot(state, helpers.StartSlot(helpers.PrevEpoch(state)))
	if err != nil {
		return nil, fmt.Errorf("could not get previous boundary block root: %v", err)
	}
	var atts []*types.PendingAttestation
	for _, att := range prevEpochJustifiedAttestations {
		if att.Data.EpochBoundaryRoot == boundaryRoot {
			atts = append(atts, att)
		}
	}
	return atts, nil
}

// PrevHeadAttestations filters the previous epoch's attestations down
// to those that voted for the block the chain actually had as head at
// their slot.
func PrevHeadAttestations(
	state *types.BeaconState,
	prevEpochAttestations []*types.PendingAttestation) ([]*types.PendingAttestation, error) {

	var atts []*types.PendingAttestation
	for _, att := range prevEpochAttestations {
		canonicalRoot, err := helpers.BlockRoot(state, att.Data.Slot)
		if err != nil {
			return nil, fmt.Errorf("could not get block root for slot %d: %v", att.Data.Slot, err)
		}
		if att.Data.BeaconBlockRoot == canonicalRoot {
			atts = append(atts, att)
		}
	}
	return atts, nil
}

// WinningRoot returns the shard block root with the most combined
// attesting effective balance among the attestations targeting the
// shard, ties broken by the lexicographically smallest root. The second
// return is false when no attestation targets the shard at all.
func WinningRoot(
	state *types.BeaconState,
	shard uint64,
	thisEpochAttestations []*types.PendingAttestation,
	prevEpochAttestations []*types.PendingAttestation) ([32]byte, bool, error) {

	var winnerBalance uint64
	var winnerRoot [32]byte
	var found bool
	attestations := append(append([]*types.PendingAttestation{}, thisEpochAttestations...), prevEpochAttestations...)

	for _, att := range attestations {
		if att.Data.Shard != shard {
			continue
		}
		candidateRoot := att.Data.ShardBlockRoot
		indices, err := validators.AttestingValidatorIndices(
			state,
			shard,
			candidateRoot,
			thisEpochAttestations,
			prevEpochAttestations)
		if err != nil {
			return [32]byte{}, false, fmt.Errorf("could not get attesting validator indices: %v", err)
		}
		rootBalance := helpers.TotalBalance(state, indices)

		if !found ||
			rootBalance > winnerBalance ||
			(rootBalance == winnerBalance && bytesutil.LowerThan(candidateRoot[:], winnerRoot[:])) {
			found = true
			winnerBalance = rootBalance
			winnerRoot = candidateRoot
		}
	}
	return winnerRoot, found, nil
}

// AttestingValidators returns the validators that attested to the
// shard's winning root. Empty when no attestation targets the shard.
func AttestingValidators(
	state *types.BeaconState,
	shard uint64,
	thisEpochAttestations []*types.PendingAttestation,
	prevEpochAttestations []*types.PendingAttestation) ([]uint64, error) {

	root, ok, err := WinningRoot(state, shard, thisEpochAttestations, prevEpochAttestations)
	if err != nil {
		return nil, fmt.Errorf("could not get winning root: %v", err)
	}
	if !ok {
		return nil, nil
	}
	indices, err := validators.AttestingValidatorIndices(
		state,
		shard,
		root,
		thisEpochAttestations,
		prevEpochAttestations)
	if err != nil {
		return nil, fmt.Errorf("could not get attesting validator indices: %v", err)
	}
	return indices, nil
}

// TotalAttestingBalance returns the total effective balance of the
// validators that attested to the shard's winning root.
func TotalAttestingBalance(
	state *types.BeaconState,
	shard uint64,
	thisEpochAttestations []*types.PendingAttestation,
	prevEpochAttestations []*types.PendingAttestation) (uint64, error) {

	indices, err := AttestingValidators(state, shard, thisEpochAttestations, prevEpochAttestations)
	if err != nil {
		return 0, err
	}
	return helpers.TotalBalance(state, indices), nil
}

// InclusionSlot returns the earliest slot at which any attestation by
// the validator reached a block.
func InclusionSlot(state *types.BeaconState, validatorIndex uint64) (uint64, error) {
	lowest := uint64(math.MaxUint64)
	for _, att := range state.LatestAttestations {
		participants, err := helpers.AttestationParticipants(state, &att.Data, att.AggregationBitfield)
		if err != nil {
			return 0, fmt.Errorf("could not get attestation participants: %v", err)
		}
		for _, index := range participants {
			if index == validatorIndex && att.InclusionSlot < lowest {
				lowest = att.InclusionSlot
			}
		}
	}
	if lowest == math.MaxUint64 {
		return 0, fmt.Errorf("could not find inclusion slot for validator index %d", validatorIndex)
	}
	return lowest, nil
}

// InclusionDistance returns the number of slots between the validator's
// fastest-included attestation and the slot it attested for.
func InclusionDistance(state *types.BeaconState, validatorIndex uint64) (uint64, error) {
	lowest := uint64(math.MaxUint64)
	var distance uint64
	for _, att := range state.LatestAttestations {
		participants, err := helpers.AttestationParticipants(state, &att.Data, att.AggregationBitfield)
		if err != nil {
			return 0, fmt.Errorf("could not get attestation participants: %v", err)
		}
		for _, index := range participants {
			if index == validatorIndex && att.InclusionSlot < lowest {
				lowest = att.InclusionSlot
				distance = att.InclusionSlot - att.Data.Slot
			}
		}
	}
	if lowest == math.MaxUint64 {
		return 0, fmt.Errorf("could not find inclusion distance for validator index %d", validatorIndex)
	}
	return distance, nil
}

// SinceFinality returns how many epochs have passed since the last
// finalized epoch, measured from the upcoming epoch.
func SinceFinality(state *types.BeaconState) uint64 {
	return helpers.NextEpoch(state) - state.FinalizedEpoch
}
