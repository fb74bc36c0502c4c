package types

import "github.com/meridianchain/meridian/shared/params"

// Validator status flags, set in Validator.StatusFlags.
const (
	// FlagInitiatedExit marks a validator that has requested to leave
	// the registry but has not yet been exited by the churn pass.
	FlagInitiatedExit = uint64(1)
	// FlagWithdrawable marks a validator whose withdrawal delay has
	// elapsed; its registry slot may be recycled by a new induction.
	FlagWithdrawable = uint64(2)
)

// ValidatorStatus is the derived lifecycle stage of a validator at a
// given epoch. It is never stored; the epochs and flags on the record
// are authoritative.
type ValidatorStatus int

const (
	StatusPendingActivation ValidatorStatus = iota
	StatusActive
	StatusInitiatedExit
	StatusExitedWithoutPenalty
	StatusExitedWithPenalty
	StatusWithdrawable
)

func (s ValidatorStatus) String() string {
	switch s {
	case StatusPendingActivation:
		return "pending_activation"
	case StatusActive:
		return "active"
	case StatusInitiatedExit:
		return "initiated_exit"
	case StatusExitedWithoutPenalty:
		return "exited_without_penalty"
	case StatusExitedWithPenalty:
		return "exited_with_penalty"
	case StatusWithdrawable:
		return "withdrawable"
	default:
		return "unknown"
	}
}

// Validator is a registry entry. Balances live in the state's parallel
// balance list, indexed identically. Records are never deleted; a
// withdrawable record's slot is recycled by the inductor.
type Validator struct {
	Pubkey                 [48]byte
	WithdrawalCredentials  [32]byte
	RandaoCommitment       [32]byte
	RandaoLayers           uint64
	ActivationEpoch        uint64
	ExitEpoch              uint64
	WithdrawalEpoch        uint64
	PenalizedEpoch         uint64
	ExitCount              uint64
	StatusFlags            uint64
	LatestStatusChangeSlot uint64
}

// IsActive returns whether the validator participates in consensus at
// the given epoch.
func (v *Validator) IsActive(epoch uint64) bool {
	return v.ActivationEpoch <= epoch && epoch < v.ExitEpoch
}

// Status derives the lifecycle stage at the given epoch.
func (v *Validator) Status(epoch uint64) ValidatorStatus {
	farFuture := params.BeaconConfig().FarFutureEpoch
	switch {
	case v.StatusFlags&FlagWithdrawable != 0:
		return StatusWithdrawable
	case v.PenalizedEpoch != farFuture && v.PenalizedEpoch <= epoch:
		return StatusExitedWithPenalty
	case v.ExitEpoch <= epoch:
		return StatusExitedWithoutPenalty
	case v.StatusFlags&FlagInitiatedExit != 0:
		return StatusInitiatedExit
	case v.ActivationEpoch <= epoch:
		return StatusActive
	default:
		return StatusPendingActivation
	}
}
