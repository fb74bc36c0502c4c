// Package helpers provides the pure lookup functions the transition
// consults constantly: epoch arithmetic, active validator sets, seeds,
// stored block roots and committee assignment.
package helpers

import (
	"github.com/meridianchain/meridian/beacon-chain/types"
	"github.com/meridianchain/meridian/shared/params"
)

// SlotToEpoch returns the epoch the slot belongs to.
func SlotToEpoch(slot uint64) uint64 {
	return slot / params.BeaconConfig().SlotsPerEpoch
}

// CurrentEpoch returns the epoch of the state's slot.
func CurrentEpoch(state *types.BeaconState) uint64 {
	return SlotToEpoch(state.Slot)
}

// PrevEpoch returns the epoch before the current one, clamped at the
// genesis epoch.
func PrevEpoch(state *types.BeaconState) uint64 {
	current := CurrentEpoch(state)
	if current > params.BeaconConfig().GenesisEpoch {
		return current - 1
	}
	return current
}

// NextEpoch returns the epoch after the current one.
func NextEpoch(state *types.BeaconState) uint64 {
	return CurrentEpoch(state) + 1
}

// StartSlot returns the first slot of the epoch.
func StartSlot(epoch uint64) uint64 {
	return epoch * params.BeaconConfig().SlotsPerEpoch
}

// IsEpochEnd returns whether the slot is the last slot of its epoch.
func IsEpochEnd(slot uint64) bool {
	return (slot+1)%params.BeaconConfig().SlotsPerEpoch == 0
}

// EntryExitEffectEpoch is the earliest epoch at which a registry change
// decided during the given epoch can take effect.
func EntryExitEffectEpoch(epoch uint64) uint64 {
	return epoch + 1 + params.BeaconConfig().EntryExitDelay
}
