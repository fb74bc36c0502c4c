package helpers

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/meridianchain/meridian/beacon-chain/types"
	"github.com/meridianchain/meridian/beacon-chain/utils"
	"github.com/meridianchain/meridian/shared/bytesutil"
	"github.com/meridianchain/meridian/shared/params"
	"github.com/prysmaticlabs/go-bitfield"
)

var (
	// ErrInvalidEpoch is returned when committees are requested for an
	// epoch outside the previous-to-next window around the state.
	ErrInvalidEpoch = errors.New("helpers: epoch outside the previous or next epoch window")
	// ErrInsufficientValidators is returned when too few validators are
	// active to form a single committee.
	ErrInsufficientValidators = errors.New("helpers: not enough active validators to form a committee")
	// ErrNoCommitteeForShard is returned when no committee is assigned
	// to the requested shard at the requested slot.
	ErrNoCommitteeForShard = errors.New("helpers: no committee assigned to shard at slot")
)

// CrosslinkCommittee pairs a committee with the shard it crosslinks.
type CrosslinkCommittee struct {
	Committee []uint64
	Shard     uint64
}

// EpochCommitteeCount is the total number of committees in one epoch,
// always a multiple of the slots per epoch so every slot gets the same
// number of committees. It is bounded below by one committee per slot
// and above by the shards available per slot.
func EpochCommitteeCount(activeValidatorCount uint64) uint64 {
	cfg := params.BeaconConfig()
	committeesPerSlot := activeValidatorCount / cfg.SlotsPerEpoch / cfg.TargetCommitteeSize
	if max := cfg.ShardCount / cfg.SlotsPerEpoch; committeesPerSlot > max {
		committeesPerSlot = max
	}
	if committeesPerSlot < 1 {
		committeesPerSlot = 1
	}
	return committeesPerSlot * cfg.SlotsPerEpoch
}

// Shuffling deterministically partitions the validators active at the
// given epoch into that epoch's committees. The shuffle is keyed by
// seed XOR epoch so reusing a seed across epochs still yields distinct
// assignments.
func Shuffling(seed [32]byte, registry []*types.Validator, epoch uint64) ([][]uint64, error) {
	active := ActiveValidatorIndices(registry, epoch)
	if len(active) == 0 {
		return nil, ErrInsufficientValidators
	}
	committeesPerEpoch := EpochCommitteeCount(uint64(len(active)))

	key := bytesutil.Xor32(seed, bytesutil.ToBytes32(bytesutil.Bytes8(epoch)))
	if cached, ok := shufflingFromCache(key, uint64(len(active))); ok {
		return cached, nil
	}

	shuffled, err := utils.ShuffleIndices(key, active)
	if err != nil {
		return nil, errors.Wrap(err, "could not shuffle active indices")
	}
	committees := utils.SplitIndices(shuffled, committeesPerEpoch)
	addShufflingToCache(key, uint64(len(active)), committees)
	return committees, nil
}

// CrosslinkCommitteesAtSlot returns the committees attesting at a slot
// together with their assigned shards. The slot must fall in the
// previous, current or next epoch relative to the state; the previous
// and current epochs use the precomputed seed and start shard stored in
// the state, the next epoch derives a fresh seed.
func CrosslinkCommitteesAtSlot(state *types.BeaconState, slot uint64) ([]*CrosslinkCommittee, error) {
	cfg := params.BeaconConfig()
	wantedEpoch := SlotToEpoch(slot)

	var seed [32]byte
	var shufflingEpoch, startShard uint64
	switch wantedEpoch {
	case CurrentEpoch(state):
		seed = state.CurrentShufflingSeed
		shufflingEpoch = state.CurrentShufflingEpoch
		startShard = state.CurrentShufflingStartShard
	case PrevEpoch(state):
		seed = state.PreviousShufflingSeed
		shufflingEpoch = state.PreviousShufflingEpoch
		startShard = state.PreviousShufflingStartShard
	case NextEpoch(state):
		var err error
		seed, err = GenerateSeed(state, wantedEpoch)
		if err != nil {
			// The lookahead mix is always stored; fall back to the
			// current seed only if the buffer has not filled yet.
			seed = state.CurrentShufflingSeed
		}
		shufflingEpoch = wantedEpoch
		startShard = state.CurrentShufflingStartShard
	default:
		return nil, errors.Wrapf(ErrInvalidEpoch,
			"wanted epoch %d, state at epoch %d", wantedEpoch, CurrentEpoch(state))
	}

	committees, err := Shuffling(seed, state.ValidatorRegistry, shufflingEpoch)
	if err != nil {
		return nil, err
	}

	committeesPerSlot := uint64(len(committees)) / cfg.SlotsPerEpoch
	offset := slot % cfg.SlotsPerEpoch
	slotStartShard := (startShard + committeesPerSlot*offset) % cfg.ShardCount

	out := make([]*CrosslinkCommittee, 0, committeesPerSlot)
	for i := uint64(0); i < committeesPerSlot; i++ {
		out = append(out, &CrosslinkCommittee{
			Committee: committees[committeesPerSlot*offset+i],
			Shard:     (slotStartShard + i) % cfg.ShardCount,
		})
	}
	return out, nil
}

// BeaconProposerIndex selects the block proposer for a slot from the
// slot's first committee, rotating through its members.
func BeaconProposerIndex(state *types.BeaconState, slot uint64) (uint64, error) {
	committees, err := CrosslinkCommitteesAtSlot(state, slot)
	if err != nil {
		return 0, err
	}
	first := committees[0].Committee
	if len(first) == 0 {
		return 0, ErrInsufficientValidators
	}
	return first[slot%uint64(len(first))], nil
}

// AttestationParticipants resolves an aggregation bitfield to validator
// indices against the committee for the attestation's slot and shard.
// The bitfield length must match the committee size exactly.
func AttestationParticipants(state *types.BeaconState, data *types.AttestationData, bf bitfield.Bitlist) ([]uint64, error) {
	committees, err := CrosslinkCommitteesAtSlot(state, data.Slot)
	if err != nil {
		return nil, err
	}
	var committee []uint64
	for _, cc := range committees {
		if cc.Shard == data.Shard {
			committee = cc.Committee
			break
		}
	}
	if committee == nil {
		return nil, errors.Wrapf(ErrNoCommitteeForShard, "shard %d at slot %d", data.Shard, data.Slot)
	}
	if bf.Len() != uint64(len(committee)) {
		return nil, fmt.Errorf("helpers: bitfield length %d does not match committee size %d",
			bf.Len(), len(committee))
	}
	var participants []uint64
	for i, idx := range committee {
		if bf.BitAt(uint64(i)) {
			participants = append(participants, idx)
		}
	}
	return participants, nil
}
