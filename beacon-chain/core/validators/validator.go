// Package validators implements the registry lifecycle manager: it is
// the only code allowed to mutate the validator registry and its
// parallel balance list. Activation and exit are rate-limited by a
// balance churn cap; penalization routes stake into the per-epoch
// penalized-balance bucket and pays the whistleblower; withdrawal
// preparation is bounded per epoch and ordered by exit epoch.
package validators

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/meridianchain/meridian/beacon-chain/core/helpers"
	"github.com/meridianchain/meridian/beacon-chain/types"
	"github.com/meridianchain/meridian/shared/params"
	"github.com/meridianchain/meridian/shared/sliceutil"
)

// AttestingValidatorIndices resolves the deduplicated set of validators
// that attested to the given shard block root on the given shard,
// across the current and previous epoch's pending attestations.
func AttestingValidatorIndices(
	state *types.BeaconState,
	shard uint64,
	shardBlockRoot [32]byte,
	thisEpochAttestations []*types.PendingAttestation,
	prevEpochAttestations []*types.PendingAttestation) ([]uint64, error) {

	var indices []uint64
	attestations := make([]*types.PendingAttestation, 0, len(thisEpochAttestations)+len(prevEpochAttestations))
	attestations = append(attestations, thisEpochAttestations...)
	attestations = append(attestations, prevEpochAttestations...)

	for _, att := range attestations {
		if att.Data.Shard != shard || att.Data.ShardBlockRoot != shardBlockRoot {
			continue
		}
		participants, err := helpers.AttestationParticipants(state, &att.Data, att.AggregationBitfield)
		if err != nil {
			return nil, errors.Wrap(err, "could not get attestation participants")
		}
		indices = sliceutil.UnionUint64(indices, participants)
	}
	return indices, nil
}

// ValidatorIndices resolves the deduplicated set of validators that
// participated in any of the given attestations.
func ValidatorIndices(state *types.BeaconState, attestations []*types.PendingAttestation) ([]uint64, error) {
	var indices []uint64
	for _, att := range attestations {
		participants, err := helpers.AttestationParticipants(state, &att.Data, att.AggregationBitfield)
		if err != nil {
			return nil, errors.Wrap(err, "could not get attestation participants")
		}
		indices = sliceutil.UnionUint64(indices, participants)
	}
	return indices, nil
}

// ActivateValidator schedules the validator to join the active set. At
// genesis the activation is immediate; afterwards it takes effect only
// after the entry/exit delay.
func ActivateValidator(state *types.BeaconState, idx uint64, genesis bool) {
	v := state.ValidatorRegistry[idx]
	if genesis {
		v.ActivationEpoch = params.BeaconConfig().GenesisEpoch
	} else {
		v.ActivationEpoch = helpers.EntryExitEffectEpoch(helpers.CurrentEpoch(state))
	}
	v.LatestStatusChangeSlot = state.Slot
}

// InitiateValidatorExit flags the validator's intent to leave. The
// actual exit happens in a later churn-limited registry update.
func InitiateValidatorExit(state *types.BeaconState, idx uint64) {
	v := state.ValidatorRegistry[idx]
	v.StatusFlags |= types.FlagInitiatedExit
	v.LatestStatusChangeSlot = state.Slot
}

// ExitValidator sets the validator's exit epoch to the current epoch
// plus the entry/exit delay. A no-op when an exit is already scheduled
// at or before that epoch, so repeated exits never push the epoch back.
func ExitValidator(state *types.BeaconState, idx uint64) {
	v := state.ValidatorRegistry[idx]
	exitEpoch := helpers.EntryExitEffectEpoch(helpers.CurrentEpoch(state))
	if v.ExitEpoch <= exitEpoch {
		return
	}
	v.ExitEpoch = exitEpoch
	state.ValidatorRegistryExitCount++
	v.ExitCount = state.ValidatorRegistryExitCount
	v.LatestStatusChangeSlot = state.Slot
}

// PenalizeValidator exits the validator, records its effective balance
// in the current epoch's penalized-balance bucket, and moves the
// whistleblower reward from the offender to the current slot's
// proposer.
func PenalizeValidator(state *types.BeaconState, idx uint64) error {
	cfg := params.BeaconConfig()
	ExitValidator(state, idx)

	currentEpoch := helpers.CurrentEpoch(state)
	bucket := currentEpoch % cfg.LatestPenalizedExitLength
	state.LatestPenalizedBalances[bucket] += helpers.EffectiveBalance(state, idx)

	whistleblower, err := helpers.BeaconProposerIndex(state, state.Slot)
	if err != nil {
		return err
	}
	reward := helpers.EffectiveBalance(state, idx) / cfg.WhistleblowerRewardQuotient
	state.ValidatorBalances[whistleblower] += reward
	state.ValidatorBalances[idx] -= reward

	v := state.ValidatorRegistry[idx]
	v.PenalizedEpoch = currentEpoch
	v.LatestStatusChangeSlot = state.Slot
	return nil
}

// PrepareValidatorForWithdrawal marks the validator's registry slot as
// recyclable by a future induction.
func PrepareValidatorForWithdrawal(state *types.BeaconState, idx uint64) {
	v := state.ValidatorRegistry[idx]
	v.StatusFlags |= types.FlagWithdrawable
	v.WithdrawalEpoch = helpers.CurrentEpoch(state)
	v.LatestStatusChangeSlot = state.Slot
}

// maxBalanceChurn is the per-epoch cap on the total effective balance
// of validators entering or leaving the active set.
func maxBalanceChurn(totalBalance uint64) uint64 {
	cfg := params.BeaconConfig()
	churn := totalBalance / (2 * cfg.MaxBalanceChurnQuotient)
	if churn < cfg.MaxDepositAmount {
		return cfg.MaxDepositAmount
	}
	return churn
}

// UpdateRegistry runs the churn-limited activation and exit passes.
// Validators are visited in registry order and processing stops the
// instant the running churn would exceed the cap; later eligible
// validators wait for the next epoch rather than being skipped over.
func UpdateRegistry(state *types.BeaconState) {
	cfg := params.BeaconConfig()
	currentEpoch := helpers.CurrentEpoch(state)
	active := helpers.ActiveValidatorIndices(state.ValidatorRegistry, currentEpoch)
	churnCap := maxBalanceChurn(helpers.TotalBalance(state, active))

	var balanceChurn uint64
	for idx, v := range state.ValidatorRegistry {
		if v.ActivationEpoch == cfg.FarFutureEpoch &&
			state.ValidatorBalances[idx] >= cfg.MaxDepositAmount {
			balanceChurn += helpers.EffectiveBalance(state, uint64(idx))
			if balanceChurn > churnCap {
				break
			}
			ActivateValidator(state, uint64(idx), false)
		}
	}

	balanceChurn = 0
	for idx, v := range state.ValidatorRegistry {
		if v.ExitEpoch == cfg.FarFutureEpoch && v.StatusFlags&types.FlagInitiatedExit != 0 {
			balanceChurn += helpers.EffectiveBalance(state, uint64(idx))
			if balanceChurn > churnCap {
				break
			}
			ExitValidator(state, uint64(idx))
		}
	}

	state.ValidatorRegistryUpdateEpoch = currentEpoch
}

// ProcessPenaltiesAndExits applies the time-delayed penalty at the
// midpoint of each validator's penalized-exit window, then prepares the
// longest-exited validators for withdrawal, bounded per epoch.
func ProcessPenaltiesAndExits(state *types.BeaconState) {
	cfg := params.BeaconConfig()
	currentEpoch := helpers.CurrentEpoch(state)
	active := helpers.ActiveValidatorIndices(state.ValidatorRegistry, currentEpoch)
	totalBalance := helpers.TotalBalance(state, active)

	length := cfg.LatestPenalizedExitLength
	for idx, v := range state.ValidatorRegistry {
		if v.PenalizedEpoch == cfg.FarFutureEpoch ||
			currentEpoch != v.PenalizedEpoch+length/2 {
			continue
		}
		epochIndex := currentEpoch % length
		totalAtStart := state.LatestPenalizedBalances[(epochIndex+1)%length]
		totalAtEnd := state.LatestPenalizedBalances[epochIndex]
		totalPenalties := totalAtEnd - totalAtStart

		scaled := totalPenalties * 3
		if scaled > totalBalance {
			scaled = totalBalance
		}
		if totalBalance > 0 {
			penalty := helpers.EffectiveBalance(state, uint64(idx)) * scaled / totalBalance
			state.ValidatorBalances[idx] -= penalty
		}
	}

	eligible := eligibleForWithdrawal(state, currentEpoch)
	sort.Slice(eligible, func(i, j int) bool {
		a := state.ValidatorRegistry[eligible[i]]
		b := state.ValidatorRegistry[eligible[j]]
		if a.ExitEpoch != b.ExitEpoch {
			return a.ExitEpoch < b.ExitEpoch
		}
		return eligible[i] < eligible[j]
	})
	for i, idx := range eligible {
		if uint64(i) >= cfg.MaxWithdrawalsPerEpoch {
			break
		}
		PrepareValidatorForWithdrawal(state, idx)
	}
}

// eligibleForWithdrawal lists exited validators whose withdrawal delay
// has fully elapsed: the penalized-exit half-window for penalized
// validators, the minimum withdrawal delay otherwise.
func eligibleForWithdrawal(state *types.BeaconState, currentEpoch uint64) []uint64 {
	cfg := params.BeaconConfig()
	var eligible []uint64
	for idx, v := range state.ValidatorRegistry {
		if v.ExitEpoch > currentEpoch || v.StatusFlags&types.FlagWithdrawable != 0 {
			continue
		}
		if v.PenalizedEpoch != cfg.FarFutureEpoch {
			if currentEpoch >= v.PenalizedEpoch+cfg.LatestPenalizedExitLength/2 {
				eligible = append(eligible, uint64(idx))
			}
		} else if currentEpoch >= v.ExitEpoch+cfg.MinValidatorWithdrawalEpochs {
			eligible = append(eligible, uint64(idx))
		}
	}
	return eligible
}
