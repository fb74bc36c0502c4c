package state

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
	"go.opencensus.io/trace"

	"github.com/meridianchain/meridian/beacon-chain/core/balances"
	"github.com/meridianchain/meridian/beacon-chain/core/blocks"
	"github.com/meridianchain/meridian/beacon-chain/core/epoch"
	"github.com/meridianchain/meridian/beacon-chain/core/helpers"
	"github.com/meridianchain/meridian/beacon-chain/core/validators"
	"github.com/meridianchain/meridian/beacon-chain/types"
	"github.com/meridianchain/meridian/shared/keystore"
)

var log = logrus.WithField("prefix", "state")

var (
	blocksProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "beacon_blocks_processed_total",
		Help: "Number of blocks applied to the state",
	})
	epochsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "beacon_epoch_transitions_total",
		Help: "Number of epoch boundary transitions executed",
	})
)

// TransitionConfig carries the collaborators and verification policy
// for a run of the transition. One config owns one inductor, so the
// registry recycling cursor survives across blocks.
type TransitionConfig struct {
	VerifySignatures bool
	Keys             keystore.KeyProvider
	Inductor         *validators.Inductor
}

// DefaultConfig runs without signature checks, for trusted replay and
// scenario harnesses.
func DefaultConfig() *TransitionConfig {
	return &TransitionConfig{Inductor: &validators.Inductor{}}
}

// ExecuteStateTransition advances the state by one slot: the slot
// counter and block-root history move forward, the block (when one
// exists for the slot) is applied, and on the last slot of each epoch
// the full epoch pipeline runs.
func ExecuteStateTransition(
	ctx context.Context,
	state *types.BeaconState,
	block *types.BeaconBlock,
	prevBlockRoot [32]byte,
	config *TransitionConfig) (*types.BeaconState, error) {

	ctx, span := trace.StartSpan(ctx, "beacon.ExecuteStateTransition")
	defer span.End()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	state.Slot++
	blocks.ProcessBlockRoots(state, prevBlockRoot)

	if block != nil {
		var err error
		state, err = ProcessBlock(ctx, state, block, config)
		if err != nil {
			return nil, fmt.Errorf("could not process block at slot %d: %v", state.Slot, err)
		}
	}

	if epoch.CanProcessEpoch(state) {
		var err error
		state, err = ProcessEpoch(ctx, state)
		if err != nil {
			return nil, fmt.Errorf("could not process epoch at slot %d: %v", state.Slot, err)
		}
	}
	return state, nil
}

// ProcessBlock applies every operation the block carries, in the fixed
// consensus order.
func ProcessBlock(ctx context.Context, state *types.BeaconState, block *types.BeaconBlock, config *TransitionConfig) (*types.BeaconState, error) {
	_, span := trace.StartSpan(ctx, "beacon.ProcessBlock")
	defer span.End()

	if block.Slot != state.Slot {
		return nil, fmt.Errorf("block slot %d does not match state slot %d", block.Slot, state.Slot)
	}

	state, err := blocks.ProcessRandao(state, block, config.VerifySignatures)
	if err != nil {
		return nil, fmt.Errorf("could not process randao: %v", err)
	}
	state = blocks.ProcessEth1DataInBlock(state, block)
	state, err = blocks.ProcessProposerSlashings(state, block, config.Keys, config.VerifySignatures)
	if err != nil {
		return nil, fmt.Errorf("could not process proposer slashings: %v", err)
	}
	state, err = blocks.ProcessBlockAttestations(state, block, config.Keys, config.VerifySignatures)
	if err != nil {
		return nil, fmt.Errorf("could not process attestations: %v", err)
	}
	state, err = blocks.ProcessDeposits(state, block, config.Inductor)
	if err != nil {
		return nil, fmt.Errorf("could not process deposits: %v", err)
	}
	state, err = blocks.ProcessExits(state, block, config.Keys, config.VerifySignatures)
	if err != nil {
		return nil, fmt.Errorf("could not process exits: %v", err)
	}

	blocksProcessed.Inc()
	log.WithFields(logrus.Fields{
		"slot":         state.Slot,
		"attestations": len(block.Body.Attestations),
		"deposits":     len(block.Body.Deposits),
	}).Debug("Processed block")
	return state, nil
}

// ProcessEpoch runs the epoch boundary pipeline. The phases are
// strictly ordered; each consumes what the previous one computed.
func ProcessEpoch(ctx context.Context, state *types.BeaconState) (*types.BeaconState, error) {
	_, span := trace.StartSpan(ctx, "beacon.ProcessEpoch")
	defer span.End()

	// Participation totals.
	currentEpoch := helpers.CurrentEpoch(state)
	activeCurrent := helpers.ActiveValidatorIndices(state.ValidatorRegistry, currentEpoch)
	totalBalance := helpers.TotalBalance(state, activeCurrent)

	currentAtts := epoch.CurrentAttestations(state)
	currentBoundaryAtts, err := epoch.CurrentBoundaryAttestations(state, currentAtts)
	if err != nil {
		return nil, fmt.Errorf("could not get current boundary attestations: %v", err)
	}
	currentBoundaryAttesters, err := validators.ValidatorIndices(state, currentBoundaryAtts)
	if err != nil {
		return nil, fmt.Errorf("could not get current boundary attesters: %v", err)
	}
	currentBoundaryBalance := helpers.TotalBalance(state, currentBoundaryAttesters)

	prevEpoch := helpers.PrevEpoch(state)
	activePrev := helpers.ActiveValidatorIndices(state.ValidatorRegistry, prevEpoch)
	prevTotalBalance := helpers.TotalBalance(state, activePrev)

	prevAtts := epoch.PrevAttestations(state)
	prevAttesters, err := validators.ValidatorIndices(state, prevAtts)
	if err != nil {
		return nil, fmt.Errorf("could not get previous epoch attesters: %v", err)
	}
	prevJustifiedAtts := epoch.PrevJustifiedAttestations(state, currentAtts, prevAtts)
	prevJustifiedAttesters, err := validators.ValidatorIndices(state, prevJustifiedAtts)
	if err != nil {
		return nil, fmt.Errorf("could not get previous justified attesters: %v", err)
	}
	prevJustifiedBalance := helpers.TotalBalance(state, prevJustifiedAttesters)

	prevBoundaryAtts, err := epoch.PrevBoundaryAttestations(state, prevJustifiedAtts)
	if err != nil {
		return nil, fmt.Errorf("could not get previous boundary attestations: %v", err)
	}
	prevBoundaryAttesters, err := validators.ValidatorIndices(state, prevBoundaryAtts)
	if err != nil {
		return nil, fmt.Errorf("could not get previous boundary attesters: %v", err)
	}
	prevBoundaryBalance := helpers.TotalBalance(state, prevBoundaryAttesters)

	prevHeadAtts, err := epoch.PrevHeadAttestations(state, prevAtts)
	if err != nil {
		return nil, fmt.Errorf("could not get previous head attestations: %v", err)
	}
	prevHeadAttesters, err := validators.ValidatorIndices(state, prevHeadAtts)
	if err != nil {
		return nil, fmt.Errorf("could not get previous head attesters: %v", err)
	}
	prevHeadBalance := helpers.TotalBalance(state, prevHeadAttesters)

	// Justification and finalization, then crosslink records.
	state = epoch.ProcessJustification(state, currentBoundaryBalance, prevBoundaryBalance, totalBalance)
	state, err = epoch.ProcessCrosslinks(state, currentAtts, prevAtts)
	if err != nil {
		return nil, fmt.Errorf("could not process crosslinks: %v", err)
	}

	// Rewards and penalties.
	inclusionSlots := make(map[uint64]uint64, len(prevAttesters))
	inclusionDistances := make(map[uint64]uint64, len(prevAttesters))
	for _, index := range prevAttesters {
		slot, err := epoch.InclusionSlot(state, index)
		if err != nil {
			return nil, fmt.Errorf("could not get inclusion slot: %v", err)
		}
		inclusionSlots[index] = slot
		distance, err := epoch.InclusionDistance(state, index)
		if err != nil {
			return nil, fmt.Errorf("could not get inclusion distance: %v", err)
		}
		inclusionDistances[index] = distance
	}

	epochsSinceFinality := epoch.SinceFinality(state)
	if epochsSinceFinality <= 4 {
		state = balances.ExpectedFFGSource(state, prevJustifiedAttesters, prevJustifiedBalance, prevTotalBalance)
		state = balances.ExpectedFFGTarget(state, prevBoundaryAttesters, prevBoundaryBalance, prevTotalBalance)
		state = balances.ExpectedBeaconChainHead(state, prevHeadAttesters, prevHeadBalance, prevTotalBalance)
		state, err = balances.InclusionDistance(state, prevAttesters, prevTotalBalance, inclusionDistances)
		if err != nil {
			return nil, fmt.Errorf("could not apply inclusion rewards: %v", err)
		}
	} else {
		state = balances.InactivityFFGSource(state, prevJustifiedAttesters, prevTotalBalance, epochsSinceFinality)
		state = balances.InactivityFFGTarget(state, prevBoundaryAttesters, prevTotalBalance, epochsSinceFinality)
		state = balances.InactivityChainHead(state, prevHeadAttesters, prevTotalBalance)
		state = balances.InactivityExitedPenalties(state, prevTotalBalance, epochsSinceFinality)
		state, err = balances.InactivityInclusionDistance(state, prevAttesters, prevTotalBalance, inclusionDistances)
		if err != nil {
			return nil, fmt.Errorf("could not apply inactivity inclusion penalties: %v", err)
		}
	}
	state, err = balances.AttestationInclusion(state, prevTotalBalance, prevAttesters, inclusionSlots)
	if err != nil {
		return nil, fmt.Errorf("could not apply proposer inclusion rewards: %v", err)
	}
	state, err = balances.Crosslinks(state, currentAtts, prevAtts)
	if err != nil {
		return nil, fmt.Errorf("could not apply crosslink rewards: %v", err)
	}

	// Ejections, registry churn, penalties and withdrawals.
	state = epoch.ProcessEjections(state)
	if epoch.CanProcessValidatorRegistry(state) {
		state, err = epoch.ProcessValidatorRegistry(state)
		if err != nil {
			return nil, fmt.Errorf("could not update the validator registry: %v", err)
		}
	} else {
		state, err = epoch.ProcessPartialValidatorRegistry(state)
		if err != nil {
			return nil, fmt.Errorf("could not rotate the shuffling window: %v", err)
		}
	}
	validators.ProcessPenaltiesAndExits(state)

	// Bookkeeping rotation.
	if epoch.CanProcessEth1Data(state) {
		state = epoch.ProcessEth1Data(state)
	}
	state, err = epoch.UpdateLatestRandaoMixes(state)
	if err != nil {
		return nil, fmt.Errorf("could not update randao mixes: %v", err)
	}
	state = epoch.UpdatePenalizedExitBalances(state)
	state = epoch.CleanupAttestations(state)

	epochsProcessed.Inc()
	log.WithFields(logrus.Fields{
		"epoch":          currentEpoch,
		"justifiedEpoch": state.JustifiedEpoch,
		"finalizedEpoch": state.FinalizedEpoch,
	}).Info("Processed epoch boundary")
	return state, nil
}
