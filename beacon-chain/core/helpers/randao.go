package helpers

import (
	"github.com/pkg/errors"

	"github.com/meridianchain/meridian/beacon-chain/types"
	"github.com/meridianchain/meridian/shared/bytesutil"
	"github.com/meridianchain/meridian/shared/hashutil"
	"github.com/meridianchain/meridian/shared/params"
)

// ErrEpochOutOfMixRange is returned when a randao mix is requested for
// an epoch the ring buffer no longer (or does not yet) cover.
var ErrEpochOutOfMixRange = errors.New("helpers: epoch outside the stored randao mix window")

// RandaoMix returns the stored randomness for the given epoch. Only
// epochs within the ring buffer window, up to and including the current
// epoch, are addressable.
func RandaoMix(state *types.BeaconState, epoch uint64) ([32]byte, error) {
	currentEpoch := CurrentEpoch(state)
	length := params.BeaconConfig().LatestRandaoMixesLength
	if epoch > currentEpoch || currentEpoch >= epoch+length {
		return [32]byte{}, ErrEpochOutOfMixRange
	}
	return state.LatestRandaoMixes[epoch%length], nil
}

// GenerateSeed derives the committee shuffling seed for an epoch from
// the randao mix one lookahead period earlier, bound to the epoch
// number so no two epochs share a seed.
func GenerateSeed(state *types.BeaconState, epoch uint64) ([32]byte, error) {
	lookahead := params.BeaconConfig().SeedLookahead
	mixEpoch := uint64(0)
	if epoch > lookahead {
		mixEpoch = epoch - lookahead
	}
	mix, err := RandaoMix(state, mixEpoch)
	if err != nil {
		return [32]byte{}, errors.Wrap(err, "could not get randao mix for seed")
	}
	return hashutil.Hash(append(mix[:], bytesutil.Bytes8(epoch)...)), nil
}
