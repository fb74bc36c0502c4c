package helpers

import (
	"testing"

	"github.com/prysmaticlabs/go-bitfield"

	"github.com/meridianchain/meridian/beacon-chain/types"
	"github.com/meridianchain/meridian/shared/params"
)

func setupDemoConfig(t *testing.T) {
	t.Helper()
	prev := params.BeaconConfig()
	params.OverrideBeaconConfig(params.DemoBeaconConfig())
	t.Cleanup(func() { params.OverrideBeaconConfig(prev) })
}

func activeRegistry(n int) []*types.Validator {
	registry := make([]*types.Validator, n)
	for i := range registry {
		registry[i] = &types.Validator{
			ActivationEpoch: 0,
			ExitEpoch:       params.BeaconConfig().FarFutureEpoch,
		}
	}
	return registry
}

func demoState(n int) *types.BeaconState {
	cfg := params.BeaconConfig()
	balances := make([]uint64, n)
	for i := range balances {
		balances[i] = cfg.MaxDepositAmount
	}
	return &types.BeaconState{
		ValidatorRegistry: activeRegistry(n),
		ValidatorBalances: balances,
		LatestRandaoMixes: make([][32]byte, cfg.LatestRandaoMixesLength),
		LatestBlockRoots:  make([][32]byte, cfg.LatestBlockRootsLength),
	}
}

func TestEpochCommitteeCount(t *testing.T) {
	// Use the mainnet config: the demo config caps at one committee per
	// slot, which would hide the scaling case.
	cfg := params.BeaconConfig()
	tests := []struct {
		active uint64
		want   uint64
	}{
		{0, cfg.SlotsPerEpoch}, // floored at one committee per slot
		{1, cfg.SlotsPerEpoch},
		{2 * cfg.SlotsPerEpoch * cfg.TargetCommitteeSize, 2 * cfg.SlotsPerEpoch},
		// Enough validators to exceed the shard cap.
		{cfg.ShardCount * cfg.TargetCommitteeSize * 4, cfg.ShardCount / cfg.SlotsPerEpoch * cfg.SlotsPerEpoch},
	}
	for _, tt := range tests {
		if got := EpochCommitteeCount(tt.active); got != tt.want {
			t.Errorf("EpochCommitteeCount(%d) = %d, want %d", tt.active, got, tt.want)
		}
	}
}

func TestShufflingPartitionsActiveSetExactly(t *testing.T) {
	setupDemoConfig(t)
	registry := activeRegistry(37)
	// Mark a few validators inactive to make the active set non-trivial.
	registry[3].ActivationEpoch = 10
	registry[20].ExitEpoch = 0

	committees, err := Shuffling([32]byte{9}, registry, 1)
	if err != nil {
		t.Fatalf("shuffling failed: %v", err)
	}
	seen := make(map[uint64]int)
	for _, committee := range committees {
		for _, idx := range committee {
			seen[idx]++
		}
	}
	active := ActiveValidatorIndices(registry, 1)
	if len(seen) != len(active) {
		t.Fatalf("committees cover %d validators, active set has %d", len(seen), len(active))
	}
	for _, idx := range active {
		if seen[idx] != 1 {
			t.Errorf("active validator %d appears %d times across committees, want exactly once", idx, seen[idx])
		}
	}
}

func TestShufflingNoActiveValidators(t *testing.T) {
	setupDemoConfig(t)
	registry := activeRegistry(4)
	for _, v := range registry {
		v.ActivationEpoch = 99
	}
	if _, err := Shuffling([32]byte{}, registry, 0); err != ErrInsufficientValidators {
		t.Errorf("expected ErrInsufficientValidators, got %v", err)
	}
}

func TestCrosslinkCommitteesAtSlotEpochWindow(t *testing.T) {
	setupDemoConfig(t)
	cfg := params.BeaconConfig()
	state := demoState(32)
	state.Slot = 4 * cfg.SlotsPerEpoch // epoch 4

	// Two whole epochs ahead is out of range.
	if _, err := CrosslinkCommitteesAtSlot(state, 6*cfg.SlotsPerEpoch); err == nil {
		t.Fatalf("expected an epoch-window error for a slot two epochs ahead")
	}

	// Previous, current and next epoch slots are all addressable.
	for _, slot := range []uint64{3 * cfg.SlotsPerEpoch, 4 * cfg.SlotsPerEpoch, 5 * cfg.SlotsPerEpoch} {
		if _, err := CrosslinkCommitteesAtSlot(state, slot); err != nil {
			t.Errorf("slot %d: unexpected error: %v", slot, err)
		}
	}
}

func TestCrosslinkCommitteesShardAssignment(t *testing.T) {
	setupDemoConfig(t)
	cfg := params.BeaconConfig()
	state := demoState(int(cfg.SlotsPerEpoch * cfg.TargetCommitteeSize))

	seenShards := make(map[uint64]bool)
	for slot := uint64(0); slot < cfg.SlotsPerEpoch; slot++ {
		committees, err := CrosslinkCommitteesAtSlot(state, slot)
		if err != nil {
			t.Fatalf("slot %d: %v", slot, err)
		}
		for _, cc := range committees {
			if cc.Shard >= cfg.ShardCount {
				t.Errorf("slot %d: shard %d out of range", slot, cc.Shard)
			}
			if seenShards[cc.Shard] {
				t.Errorf("shard %d assigned twice within one epoch", cc.Shard)
			}
			seenShards[cc.Shard] = true
		}
	}
}

func TestBeaconProposerIndexIsCommitteeMember(t *testing.T) {
	setupDemoConfig(t)
	state := demoState(32)
	state.Slot = 5

	proposer, err := BeaconProposerIndex(state, 5)
	if err != nil {
		t.Fatalf("proposer lookup failed: %v", err)
	}
	committees, err := CrosslinkCommitteesAtSlot(state, 5)
	if err != nil {
		t.Fatalf("committee lookup failed: %v", err)
	}
	found := false
	for _, idx := range committees[0].Committee {
		if idx == proposer {
			found = true
		}
	}
	if !found {
		t.Errorf("proposer %d is not a member of the slot's first committee", proposer)
	}
}

func TestAttestationParticipants(t *testing.T) {
	setupDemoConfig(t)
	state := demoState(32)
	state.Slot = 8

	committees, err := CrosslinkCommitteesAtSlot(state, 8)
	if err != nil {
		t.Fatalf("committee lookup failed: %v", err)
	}
	cc := committees[0]
	data := &types.AttestationData{Slot: 8, Shard: cc.Shard}

	bf := bitfield.NewBitlist(uint64(len(cc.Committee)))
	bf.SetBitAt(0, true)
	if len(cc.Committee) > 1 {
		bf.SetBitAt(uint64(len(cc.Committee)-1), true)
	}
	participants, err := AttestationParticipants(state, data, bf)
	if err != nil {
		t.Fatalf("participants lookup failed: %v", err)
	}
	want := 1
	if len(cc.Committee) > 1 {
		want = 2
	}
	if len(participants) != want {
		t.Errorf("got %d participants, want %d", len(participants), want)
	}

	// Mismatched bitfield length is a malformed input.
	badBf := bitfield.NewBitlist(uint64(len(cc.Committee)) + 3)
	if _, err := AttestationParticipants(state, data, badBf); err == nil {
		t.Errorf("expected error for bitfield length mismatch")
	}
}
