package validators

import (
	"testing"

	"github.com/pkg/errors"

	"github.com/meridianchain/meridian/beacon-chain/types"
	"github.com/meridianchain/meridian/shared/bls"
	"github.com/meridianchain/meridian/shared/params"
	"github.com/meridianchain/meridian/shared/testutil"
)

func TestInductValidatorInvalidProofOfPossession(t *testing.T) {
	setupDemoConfig(t)
	state := newTestState(4)
	lenBefore := len(state.ValidatorRegistry)

	sec := bls.RandKey()
	input := testutil.NewDepositInput(sec, state.Fork, 0)
	// Corrupt the proof: sign with a different key.
	other := testutil.NewDepositInput(bls.RandKey(), state.Fork, 0)
	input.ProofOfPossession = other.ProofOfPossession

	ind := &Inductor{}
	if _, err := ind.InductValidator(state, input, params.BeaconConfig().MaxDepositAmount); errors.Cause(err) != ErrInvalidProofOfPossession {
		t.Fatalf("expected ErrInvalidProofOfPossession, got %v", err)
	}
	if len(state.ValidatorRegistry) != lenBefore {
		t.Errorf("failed induction changed registry length: %d -> %d", lenBefore, len(state.ValidatorRegistry))
	}
	if len(state.ValidatorBalances) != lenBefore {
		t.Errorf("failed induction changed balances length")
	}
}

func TestInductValidatorAppendsWhenAllActive(t *testing.T) {
	setupDemoConfig(t)
	state := newTestState(4)

	input := testutil.NewDepositInput(bls.RandKey(), state.Fork, 0)
	ind := &Inductor{}
	idx, err := ind.InductValidator(state, input, params.BeaconConfig().MaxDepositAmount)
	if err != nil {
		t.Fatalf("induction failed: %v", err)
	}
	if idx != 4 {
		t.Errorf("induction into an all-active registry should append at %d, got %d", 4, idx)
	}
	if len(state.ValidatorRegistry) != 5 || len(state.ValidatorBalances) != 5 {
		t.Errorf("registry/balances not extended together")
	}
	v := state.ValidatorRegistry[idx]
	if v.ActivationEpoch != params.BeaconConfig().FarFutureEpoch {
		t.Errorf("new validator should be pending activation")
	}
	if v.Pubkey != input.Pubkey {
		t.Errorf("pubkey not recorded")
	}
}

func TestInductValidatorRecyclesWithdrawableSlot(t *testing.T) {
	setupDemoConfig(t)
	state := newTestState(6)
	// Index 2 is the first withdrawable slot.
	state.ValidatorRegistry[2].StatusFlags |= types.FlagWithdrawable
	state.ValidatorRegistry[4].StatusFlags |= types.FlagWithdrawable

	input := testutil.NewDepositInput(bls.RandKey(), state.Fork, 0)
	ind := &Inductor{}
	idx, err := ind.InductValidator(state, input, params.BeaconConfig().MaxDepositAmount)
	if err != nil {
		t.Fatalf("induction failed: %v", err)
	}
	if idx != 2 {
		t.Errorf("expected recycled index 2, got %d", idx)
	}
	if len(state.ValidatorRegistry) != 6 {
		t.Errorf("recycling should not extend the registry")
	}
	if state.ValidatorRegistry[2].Pubkey != input.Pubkey {
		t.Errorf("slot 2 not overwritten with the new validator")
	}

	// The cursor moves past the used slot: the next induction takes the
	// later withdrawable slot without rescanning from zero.
	input2 := testutil.NewDepositInput(bls.RandKey(), state.Fork, 0)
	idx2, err := ind.InductValidator(state, input2, params.BeaconConfig().MaxDepositAmount)
	if err != nil {
		t.Fatalf("second induction failed: %v", err)
	}
	if idx2 != 4 {
		t.Errorf("expected recycled index 4, got %d", idx2)
	}
}
