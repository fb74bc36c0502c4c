package epoch

import (
	"testing"

	"github.com/meridianchain/meridian/beacon-chain/core/helpers"
	"github.com/meridianchain/meridian/beacon-chain/types"
	"github.com/meridianchain/meridian/shared/params"
)

func TestCanProcessEpoch(t *testing.T) {
	setupDemoConfig(t)
	tests := []struct {
		slot uint64
		want bool
	}{
		{0, false},
		{6, false},
		{7, true},
		{8, false},
		{15, true},
	}
	for _, tt := range tests {
		state := &types.BeaconState{Slot: tt.slot}
		if got := CanProcessEpoch(state); got != tt.want {
			t.Errorf("CanProcessEpoch(slot=%d) = %v, want %v", tt.slot, got, tt.want)
		}
	}
}

func TestProcessEth1Data(t *testing.T) {
	setupDemoConfig(t)
	cfg := params.BeaconConfig()
	state := buildState(8)
	slotsPerPeriod := cfg.EpochsPerEth1VotingPeriod * cfg.SlotsPerEpoch

	winning := types.Eth1Data{DepositRoot: [32]byte{0x01}}
	losing := types.Eth1Data{DepositRoot: [32]byte{0x02}}
	state.Eth1DataVotes = []*types.Eth1DataVote{
		{Eth1Data: losing, VoteCount: slotsPerPeriod / 2},
		{Eth1Data: winning, VoteCount: slotsPerPeriod/2 + 1},
	}

	ProcessEth1Data(state)
	if state.LatestEth1Data != winning {
		t.Errorf("adopted eth1 data = %v, want the majority vote", state.LatestEth1Data)
	}
	if len(state.Eth1DataVotes) != 0 {
		t.Errorf("votes not cleared after processing")
	}
}

func TestCanProcessEth1DataOnPeriodBoundary(t *testing.T) {
	setupDemoConfig(t)
	cfg := params.BeaconConfig()

	// Next epoch divisible by the voting period.
	state := &types.BeaconState{Slot: (cfg.EpochsPerEth1VotingPeriod-1)*cfg.SlotsPerEpoch + 1}
	if !CanProcessEth1Data(state) {
		t.Errorf("expected eth1 data processing at the period boundary")
	}
	state.Slot += cfg.SlotsPerEpoch
	if CanProcessEth1Data(state) {
		t.Errorf("did not expect eth1 data processing off the boundary")
	}
}

func TestProcessJustificationBeforeEpochTwo(t *testing.T) {
	setupDemoConfig(t)
	state := buildState(8)
	state.Slot = helpers.StartSlot(1)
	state.JustificationBitfield = 1
	state.JustifiedEpoch = 0

	ProcessJustification(state, 1, 1, 1)
	if state.JustificationBitfield != 1 || state.JustifiedEpoch != 0 || state.FinalizedEpoch != 0 {
		t.Errorf("justification changed before enough history exists")
	}
}

func TestProcessJustificationAdvancesAndFinalizes(t *testing.T) {
	setupDemoConfig(t)
	state := buildState(8)
	state.Slot = helpers.StartSlot(3)
	state.PreviousJustifiedEpoch = 1
	state.JustifiedEpoch = 2
	state.JustificationBitfield = 3
	totalBalance := uint64(3000)

	// Both boundaries met the two-thirds threshold.
	ProcessJustification(state, totalBalance, totalBalance, totalBalance)

	if state.JustificationBitfield != 7 {
		t.Errorf("justification bitfield = %b, want 111", state.JustificationBitfield)
	}
	if state.JustifiedEpoch != 3 {
		t.Errorf("justified epoch = %d, want 3", state.JustifiedEpoch)
	}
	if state.PreviousJustifiedEpoch != 2 {
		t.Errorf("previous justified epoch = %d, want 2", state.PreviousJustifiedEpoch)
	}
	if state.FinalizedEpoch != 1 {
		t.Errorf("finalized epoch = %d, want 1", state.FinalizedEpoch)
	}
}

func TestProcessJustificationBelowThreshold(t *testing.T) {
	setupDemoConfig(t)
	state := buildState(8)
	state.Slot = helpers.StartSlot(3)
	state.JustifiedEpoch = 1
	state.JustificationBitfield = 0

	// Attesting balances under two thirds justify nothing.
	ProcessJustification(state, 1, 1, 3000)
	if state.JustificationBitfield != 0 {
		t.Errorf("justification bitfield = %b, want 0", state.JustificationBitfield)
	}
	if state.JustifiedEpoch != 1 {
		t.Errorf("justified epoch moved to %d without supermajority", state.JustifiedEpoch)
	}
}

func TestProcessCrosslinks(t *testing.T) {
	setupDemoConfig(t)
	state := buildState(32)
	root := [32]byte{0xaa}
	att := fullCommitteeAttestation(4, root)

	if _, err := ProcessCrosslinks(state, []*types.PendingAttestation{att}, nil); err != nil {
		t.Fatalf("crosslink processing failed: %v", err)
	}
	if state.LatestCrosslinks[0].ShardBlockRoot != root {
		t.Errorf("shard 0 crosslink root = %#x, want %#x", state.LatestCrosslinks[0].ShardBlockRoot, root)
	}
	if state.LatestCrosslinks[1].ShardBlockRoot != ([32]byte{}) {
		t.Errorf("shard 1 crosslink updated without attestations")
	}
}

func TestProcessEjections(t *testing.T) {
	setupDemoConfig(t)
	cfg := params.BeaconConfig()
	state := buildState(8)
	state.ValidatorBalances[2] = cfg.EjectionBalance - 1

	ProcessEjections(state)
	if state.ValidatorRegistry[2].StatusFlags&types.FlagInitiatedExit == 0 {
		t.Errorf("underfunded validator not flagged for exit")
	}
	if state.ValidatorRegistry[3].StatusFlags&types.FlagInitiatedExit != 0 {
		t.Errorf("healthy validator flagged for exit")
	}
}

func TestCanProcessValidatorRegistry(t *testing.T) {
	setupDemoConfig(t)
	state := buildState(32)
	state.FinalizedEpoch = 1
	state.ValidatorRegistryUpdateEpoch = 0
	for _, cl := range state.LatestCrosslinks {
		cl.Epoch = 1
	}
	if !CanProcessValidatorRegistry(state) {
		t.Errorf("expected registry update to be allowed")
	}

	state.LatestCrosslinks[0].Epoch = 0
	if CanProcessValidatorRegistry(state) {
		t.Errorf("expected a stale crosslink to block the registry update")
	}

	state.LatestCrosslinks[0].Epoch = 1
	state.FinalizedEpoch = 0
	if CanProcessValidatorRegistry(state) {
		t.Errorf("expected missing finality to block the registry update")
	}
}

func TestProcessValidatorRegistryRotatesShuffling(t *testing.T) {
	setupDemoConfig(t)
	state := buildState(32)
	state.Slot = helpers.StartSlot(2)
	state.CurrentShufflingEpoch = 2
	state.CurrentShufflingStartShard = 3
	state.CurrentShufflingSeed = [32]byte{0x05}
	state.LatestRandaoMixes[2] = [32]byte{0x0b}

	if _, err := ProcessValidatorRegistry(state); err != nil {
		t.Fatalf("registry processing failed: %v", err)
	}
	if state.PreviousShufflingEpoch != 2 ||
		state.PreviousShufflingStartShard != 3 ||
		state.PreviousShufflingSeed != ([32]byte{0x05}) {
		t.Errorf("current shuffling window not rotated into previous")
	}
	if state.CurrentShufflingEpoch != helpers.NextEpoch(state) {
		t.Errorf("current shuffling epoch = %d, want %d", state.CurrentShufflingEpoch, helpers.NextEpoch(state))
	}
	if state.CurrentShufflingSeed == ([32]byte{0x05}) {
		t.Errorf("shuffling seed not refreshed")
	}
	if state.ValidatorRegistryUpdateEpoch != helpers.CurrentEpoch(state) {
		t.Errorf("registry update epoch not recorded")
	}
}

func TestProcessPartialValidatorRegistry(t *testing.T) {
	setupDemoConfig(t)
	state := buildState(32)
	state.Slot = helpers.StartSlot(2)
	state.ValidatorRegistryUpdateEpoch = 0
	state.CurrentShufflingEpoch = 1
	state.CurrentShufflingSeed = [32]byte{0x05}
	state.LatestRandaoMixes[2] = [32]byte{0x0b}

	// Two epochs since the last update is a power of two: the seed is
	// refreshed even though the registry was not updated.
	if _, err := ProcessPartialValidatorRegistry(state); err != nil {
		t.Fatalf("partial registry processing failed: %v", err)
	}
	if state.CurrentShufflingEpoch != helpers.NextEpoch(state) {
		t.Errorf("shuffling epoch not refreshed at a power-of-two distance")
	}

	state = buildState(32)
	state.Slot = helpers.StartSlot(3)
	state.ValidatorRegistryUpdateEpoch = 0
	state.CurrentShufflingEpoch = 1
	if _, err := ProcessPartialValidatorRegistry(state); err != nil {
		t.Fatalf("partial registry processing failed: %v", err)
	}
	if state.CurrentShufflingEpoch != 1 {
		t.Errorf("shuffling epoch refreshed off a power-of-two distance")
	}
	if state.PreviousShufflingEpoch != 1 {
		t.Errorf("shuffling window not rotated")
	}
}

func TestCleanupAttestations(t *testing.T) {
	setupDemoConfig(t)
	cfg := params.BeaconConfig()
	state := buildState(8)
	state.Slot = cfg.SlotsPerEpoch // epoch 1
	state.LatestAttestations = []*types.PendingAttestation{
		{Data: types.AttestationData{Slot: 0}},                 // epoch 0, consumed
		{Data: types.AttestationData{Slot: cfg.SlotsPerEpoch}}, // epoch 1, kept
	}

	CleanupAttestations(state)
	if len(state.LatestAttestations) != 1 {
		t.Fatalf("kept %d attestations, want 1", len(state.LatestAttestations))
	}
	if state.LatestAttestations[0].Data.Slot != cfg.SlotsPerEpoch {
		t.Errorf("kept the wrong attestation")
	}
}

func TestUpdatePenalizedExitBalances(t *testing.T) {
	setupDemoConfig(t)
	cfg := params.BeaconConfig()
	state := buildState(8)
	state.Slot = helpers.StartSlot(3)
	current := helpers.CurrentEpoch(state) % cfg.LatestPenalizedExitLength
	state.LatestPenalizedBalances[current] = 100

	UpdatePenalizedExitBalances(state)
	next := helpers.NextEpoch(state) % cfg.LatestPenalizedExitLength
	if state.LatestPenalizedBalances[next] != 100 {
		t.Errorf("penalized balance not carried into the next epoch bucket")
	}
}

func TestUpdateLatestRandaoMixes(t *testing.T) {
	setupDemoConfig(t)
	cfg := params.BeaconConfig()
	state := buildState(8)
	state.Slot = helpers.StartSlot(2)
	mix := [32]byte{0x42}
	state.LatestRandaoMixes[2] = mix

	if _, err := UpdateLatestRandaoMixes(state); err != nil {
		t.Fatalf("randao mix update failed: %v", err)
	}
	if state.LatestRandaoMixes[3%cfg.LatestRandaoMixesLength] != mix {
		t.Errorf("next epoch mix not seeded from the current epoch")
	}
}
