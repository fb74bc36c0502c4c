package helpers

import (
	"errors"

	"github.com/meridianchain/meridian/beacon-chain/types"
	"github.com/meridianchain/meridian/shared/params"
)

// ErrNoBlockRoot is returned when the requested slot is outside the
// window of roots the state retains.
var ErrNoBlockRoot = errors.New("helpers: no block root stored for slot")

// BlockRoot returns the stored block root for a slot. Roots are kept
// for the most recent LatestBlockRootsLength slots, strictly before the
// state's own slot.
func BlockRoot(state *types.BeaconState, slot uint64) ([32]byte, error) {
	length := params.BeaconConfig().LatestBlockRootsLength
	if slot >= state.Slot || state.Slot > slot+length {
		return [32]byte{}, ErrNoBlockRoot
	}
	return state.LatestBlockRoots[slot%length], nil
}
