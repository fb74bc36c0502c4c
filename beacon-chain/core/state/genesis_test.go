package state

import (
	"testing"

	"github.com/meridianchain/meridian/beacon-chain/core/helpers"
	"github.com/meridianchain/meridian/beacon-chain/types"
	"github.com/meridianchain/meridian/shared/params"
	"github.com/meridianchain/meridian/shared/testutil"
)

func setupDemoConfig(t *testing.T) {
	t.Helper()
	prev := params.BeaconConfig()
	params.OverrideBeaconConfig(params.DemoBeaconConfig())
	t.Cleanup(func() { params.OverrideBeaconConfig(prev) })
}

func TestInitialBeaconState(t *testing.T) {
	setupDemoConfig(t)
	cfg := params.BeaconConfig()
	deposits, _ := testutil.NewDeposits(8, types.Fork{}, 0)

	state, err := InitialBeaconState(deposits, 12345, types.Eth1Data{DepositRoot: [32]byte{0x01}})
	if err != nil {
		t.Fatalf("genesis construction failed: %v", err)
	}

	if state.Slot != cfg.GenesisSlot {
		t.Errorf("genesis slot = %d, want %d", state.Slot, cfg.GenesisSlot)
	}
	if state.GenesisTime != 12345 {
		t.Errorf("genesis time not recorded")
	}
	if len(state.ValidatorRegistry) != 8 || len(state.ValidatorBalances) != 8 {
		t.Fatalf("registry/balances = %d/%d, want 8/8",
			len(state.ValidatorRegistry), len(state.ValidatorBalances))
	}
	for i, v := range state.ValidatorRegistry {
		if !v.IsActive(cfg.GenesisEpoch) {
			t.Errorf("genesis validator %d not active", i)
		}
		if state.ValidatorBalances[i] != cfg.MaxDepositAmount {
			t.Errorf("genesis validator %d balance = %d", i, state.ValidatorBalances[i])
		}
	}
	if uint64(len(state.LatestCrosslinks)) != cfg.ShardCount {
		t.Errorf("crosslinks sized %d, want %d", len(state.LatestCrosslinks), cfg.ShardCount)
	}
	if uint64(len(state.LatestRandaoMixes)) != cfg.LatestRandaoMixesLength {
		t.Errorf("randao mixes sized %d, want %d", len(state.LatestRandaoMixes), cfg.LatestRandaoMixesLength)
	}
	if uint64(len(state.LatestBlockRoots)) != cfg.LatestBlockRootsLength {
		t.Errorf("block roots sized %d, want %d", len(state.LatestBlockRoots), cfg.LatestBlockRootsLength)
	}

	// Committees must be derivable straight out of genesis.
	if _, err := helpers.BeaconProposerIndex(state, cfg.GenesisSlot); err != nil {
		t.Errorf("no proposer derivable at genesis: %v", err)
	}
}

func TestInitialBeaconStateRejectsBadProof(t *testing.T) {
	setupDemoConfig(t)
	deposits, _ := testutil.NewDeposits(2, types.Fork{}, 0)
	deposits[1].DepositInput.ProofOfPossession = [96]byte{}

	if _, err := InitialBeaconState(deposits, 0, types.Eth1Data{}); err == nil {
		t.Errorf("genesis accepted a deposit with a bad proof of possession")
	}
}
