package balances

import (
	"testing"

	"github.com/prysmaticlabs/go-bitfield"

	"github.com/meridianchain/meridian/beacon-chain/core/helpers"
	"github.com/meridianchain/meridian/beacon-chain/types"
	"github.com/meridianchain/meridian/shared/params"
)

func setupDemoConfig(t *testing.T) {
	t.Helper()
	prev := params.BeaconConfig()
	params.OverrideBeaconConfig(params.DemoBeaconConfig())
	t.Cleanup(func() { params.OverrideBeaconConfig(prev) })
}

func buildState(n int) *types.BeaconState {
	cfg := params.BeaconConfig()
	registry := make([]*types.Validator, n)
	balances := make([]uint64, n)
	for i := range registry {
		registry[i] = &types.Validator{
			ActivationEpoch: cfg.GenesisEpoch,
			ExitEpoch:       cfg.FarFutureEpoch,
			WithdrawalEpoch: cfg.FarFutureEpoch,
			PenalizedEpoch:  cfg.FarFutureEpoch,
		}
		balances[i] = cfg.MaxDepositAmount
	}
	return &types.BeaconState{
		ValidatorRegistry: registry,
		ValidatorBalances: balances,
	}
}

func TestExpectedFFGSource(t *testing.T) {
	setupDemoConfig(t)
	state := buildState(8)
	attesters := []uint64{0, 1, 2, 3}
	attestingBalance := helpers.TotalBalance(state, attesters)
	totalBalance := helpers.TotalBalance(state, []uint64{0, 1, 2, 3, 4, 5, 6, 7})
	base := helpers.BaseReward(state, 0, helpers.BaseRewardQuotient(totalBalance))
	before := state.ValidatorBalances[0]

	ExpectedFFGSource(state, attesters, attestingBalance, totalBalance)

	wantReward := base * attestingBalance / totalBalance
	if got := state.ValidatorBalances[0] - before; got != wantReward {
		t.Errorf("attester reward = %d, want %d", got, wantReward)
	}
	if got := before - state.ValidatorBalances[7]; got != base {
		t.Errorf("non-attester penalty = %d, want %d", got, base)
	}
}

func TestExpectedFFGTargetAndHeadMatchSource(t *testing.T) {
	setupDemoConfig(t)
	attesters := []uint64{0, 1}

	source := buildState(8)
	target := buildState(8)
	head := buildState(8)
	attestingBalance := helpers.TotalBalance(source, attesters)
	totalBalance := helpers.TotalBalance(source, []uint64{0, 1, 2, 3, 4, 5, 6, 7})

	ExpectedFFGSource(source, attesters, attestingBalance, totalBalance)
	ExpectedFFGTarget(target, attesters, attestingBalance, totalBalance)
	ExpectedBeaconChainHead(head, attesters, attestingBalance, totalBalance)

	// The three duties share one reward formula.
	for i := range source.ValidatorBalances {
		if source.ValidatorBalances[i] != target.ValidatorBalances[i] ||
			source.ValidatorBalances[i] != head.ValidatorBalances[i] {
			t.Fatalf("duty rewards diverge at validator %d", i)
		}
	}
}

func TestInclusionDistanceRewards(t *testing.T) {
	setupDemoConfig(t)
	cfg := params.BeaconConfig()
	state := buildState(8)
	totalBalance := helpers.TotalBalance(state, []uint64{0, 1, 2, 3, 4, 5, 6, 7})
	base := helpers.BaseReward(state, 0, helpers.BaseRewardQuotient(totalBalance))
	before := state.ValidatorBalances[0]

	// Inclusion at the minimum delay pays the full base reward.
	if _, err := InclusionDistance(state, []uint64{0}, totalBalance,
		map[uint64]uint64{0: cfg.MinAttestationInclusionDelay}); err != nil {
		t.Fatalf("inclusion distance failed: %v", err)
	}
	if got := state.ValidatorBalances[0] - before; got != base {
		t.Errorf("fastest inclusion reward = %d, want %d", got, base)
	}

	// Slower inclusion pays proportionally less.
	before = state.ValidatorBalances[1]
	if _, err := InclusionDistance(state, []uint64{1}, totalBalance,
		map[uint64]uint64{1: 2 * cfg.MinAttestationInclusionDelay}); err != nil {
		t.Fatalf("inclusion distance failed: %v", err)
	}
	if got := state.ValidatorBalances[1] - before; got != base/2 {
		t.Errorf("slow inclusion reward = %d, want %d", got, base/2)
	}
}

func TestInclusionDistanceErrors(t *testing.T) {
	setupDemoConfig(t)
	state := buildState(8)

	if _, err := InclusionDistance(state, []uint64{0}, 1, map[uint64]uint64{}); err == nil {
		t.Errorf("expected an error for a missing inclusion distance")
	}
	if _, err := InclusionDistance(state, []uint64{0}, 1, map[uint64]uint64{0: 0}); err == nil {
		t.Errorf("expected an error for a zero inclusion distance")
	}
}

func TestInactivityPenalties(t *testing.T) {
	setupDemoConfig(t)
	state := buildState(8)
	attesters := []uint64{0, 1, 2, 3}
	totalBalance := helpers.TotalBalance(state, []uint64{0, 1, 2, 3, 4, 5, 6, 7})
	quotient := helpers.BaseRewardQuotient(totalBalance)
	epochsSinceFinality := uint64(8)
	want := helpers.InactivityPenalty(state, 7, quotient, epochsSinceFinality)
	before := state.ValidatorBalances[7]

	InactivityFFGSource(state, attesters, totalBalance, epochsSinceFinality)

	if got := before - state.ValidatorBalances[7]; got != want {
		t.Errorf("inactivity penalty = %d, want %d", got, want)
	}
	if state.ValidatorBalances[0] != before {
		t.Errorf("attester penalized during inactivity leak")
	}
	if want <= helpers.BaseReward(state, 7, quotient) {
		t.Errorf("inactivity penalty should exceed the base reward")
	}
}

func TestInactivityExitedPenalties(t *testing.T) {
	setupDemoConfig(t)
	state := buildState(8)
	totalBalance := helpers.TotalBalance(state, []uint64{0, 1, 2, 3, 4, 5, 6, 7})
	state.ValidatorRegistry[2].PenalizedEpoch = 0
	before := state.ValidatorBalances[2]

	InactivityExitedPenalties(state, totalBalance, 8)

	if state.ValidatorBalances[2] >= before {
		t.Errorf("penalized validator not leaked")
	}
	if state.ValidatorBalances[3] != before {
		t.Errorf("unpenalized validator leaked")
	}
}

func TestAttestationInclusionRewardsProposer(t *testing.T) {
	setupDemoConfig(t)
	cfg := params.BeaconConfig()
	state := buildState(8)
	totalBalance := helpers.TotalBalance(state, []uint64{0, 1, 2, 3, 4, 5, 6, 7})

	proposer, err := helpers.BeaconProposerIndex(state, 0)
	if err != nil {
		t.Fatalf("proposer lookup failed: %v", err)
	}
	base := helpers.BaseReward(state, proposer, helpers.BaseRewardQuotient(totalBalance))
	before := state.ValidatorBalances[proposer]

	if _, err := AttestationInclusion(state, totalBalance, []uint64{5},
		map[uint64]uint64{5: 0}); err != nil {
		t.Fatalf("attestation inclusion failed: %v", err)
	}
	want := base / cfg.IncluderRewardQuotient
	if got := state.ValidatorBalances[proposer] - before; got != want {
		t.Errorf("proposer reward = %d, want %d", got, want)
	}
}

func TestCrosslinksRewardsAttestingCommittee(t *testing.T) {
	setupDemoConfig(t)
	state := buildState(32)
	// The previous epoch's attestations are the ones paid out.
	state.Slot = params.BeaconConfig().SlotsPerEpoch

	committees, err := helpers.CrosslinkCommitteesAtSlot(state, 0)
	if err != nil {
		t.Fatalf("committee lookup failed: %v", err)
	}
	committee := committees[0].Committee
	bf := bitfield.NewBitlist(uint64(len(committee)))
	for i := range committee {
		bf.SetBitAt(uint64(i), true)
	}
	att := &types.PendingAttestation{
		Data: types.AttestationData{
			Slot:           0,
			Shard:          committees[0].Shard,
			ShardBlockRoot: [32]byte{0xaa},
		},
		AggregationBitfield: bf,
	}
	before := state.ValidatorBalances[committee[0]]

	if _, err := Crosslinks(state, []*types.PendingAttestation{att}, nil); err != nil {
		t.Fatalf("crosslink rewards failed: %v", err)
	}

	if state.ValidatorBalances[committee[0]] <= before {
		t.Errorf("attesting committee member not rewarded")
	}
	laterCommittees, err := helpers.CrosslinkCommitteesAtSlot(state, 1)
	if err != nil {
		t.Fatalf("committee lookup failed: %v", err)
	}
	idle := laterCommittees[0].Committee[0]
	if state.ValidatorBalances[idle] >= before {
		t.Errorf("idle committee member not penalized")
	}
}
