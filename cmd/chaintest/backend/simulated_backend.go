// Package backend simulates an in-memory beacon chain for scenario
// runs: it builds a genesis state from deposits, advances the
// transition slot by slot with generated blocks, and checks the
// resulting state against declared post-conditions.
package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/meridianchain/meridian/beacon-chain/core/helpers"
	"github.com/meridianchain/meridian/beacon-chain/core/state"
	"github.com/meridianchain/meridian/beacon-chain/db"
	"github.com/meridianchain/meridian/beacon-chain/types"
	"github.com/meridianchain/meridian/shared/params"
	"github.com/meridianchain/meridian/shared/sliceutil"
	"github.com/meridianchain/meridian/shared/testutil"
	"github.com/meridianchain/meridian/shared/treehash"
)

// SimulatedBackend advances an in-memory beacon chain programmatically
// for scenario runs and benchmarking.
type SimulatedBackend struct {
	beaconDB       db.Database
	state          *types.BeaconState
	prevBlockRoots [][32]byte
	inMemoryBlocks []*types.BeaconBlock
	config         *state.TransitionConfig
}

// NewSimulatedBackend creates a backend over an in-memory database.
func NewSimulatedBackend() *SimulatedBackend {
	return &SimulatedBackend{
		beaconDB: db.NewMemoryDB(),
		config:   state.DefaultConfig(),
	}
}

// State returns the backend's current beacon state.
func (sb *SimulatedBackend) State() *types.BeaconState {
	return sb.state
}

// DB returns the backend's database.
func (sb *SimulatedBackend) DB() db.Database {
	return sb.beaconDB
}

// InMemoryBlocks returns every block the backend has processed.
func (sb *SimulatedBackend) InMemoryBlocks() []*types.BeaconBlock {
	return sb.inMemoryBlocks
}

// Shutdown releases the backend's database.
func (sb *SimulatedBackend) Shutdown() error {
	return sb.beaconDB.Close()
}

// RunStateTransitionTest runs one scenario: genesis from the
// configured deposit count, one transition per slot with generated
// blocks (or nil blocks on skip slots), then post-condition checks.
func (sb *SimulatedBackend) RunStateTransitionTest(testCase *StateTestCase) error {
	setTestConfig(testCase)
	if err := sb.initializeChain(testCase.Config.DepositsForChainStart); err != nil {
		return errors.Wrap(err, "could not initialize chain")
	}

	var transitionTimes []time.Duration
	startSlot := params.BeaconConfig().GenesisSlot
	for i := startSlot; i < startSlot+testCase.Config.NumSlots; i++ {
		if sliceutil.IsInUint64(i, testCase.Config.SkipSlots) {
			if err := sb.advanceChainNilBlock(); err != nil {
				return errors.Wrapf(err, "could not advance past skip slot %d", i)
			}
			continue
		}

		began := time.Now()
		if err := sb.generateBlockAndAdvanceChain(testCase, i); err != nil {
			return errors.Wrapf(err, "could not advance chain at slot %d", i)
		}
		transitionTimes = append(transitionTimes, time.Since(began))
	}

	if len(transitionTimes) > 0 {
		log.WithFields(log.Fields{
			"deposits": testCase.Config.DepositsForChainStart,
			"average":  averageDuration(transitionTimes),
		}).Info("State transition timing")
	}

	if err := db.SaveState(sb.beaconDB, sb.state); err != nil {
		return errors.Wrap(err, "could not persist final state")
	}
	return sb.compareTestCase(testCase)
}

// initializeChain builds the genesis state and block from fresh keyed
// deposits and records the validators' public keys.
func (sb *SimulatedBackend) initializeChain(numDeposits uint64) error {
	deposits, _ := testutil.NewDeposits(int(numDeposits), types.Fork{}, params.BeaconConfig().GenesisEpoch)
	genesisTime := time.Date(2018, 9, 1, 0, 0, 0, 0, time.UTC).Unix()

	genesisState, err := state.InitialBeaconState(deposits, uint64(genesisTime), types.Eth1Data{})
	if err != nil {
		return errors.Wrap(err, "could not build genesis state")
	}
	sb.state = genesisState

	for i, v := range genesisState.ValidatorRegistry {
		if err := db.SaveValidatorPubkey(sb.beaconDB, uint64(i), v.Pubkey); err != nil {
			return errors.Wrap(err, "could not save validator pubkey")
		}
	}

	genesisBlock := &types.BeaconBlock{Slot: params.BeaconConfig().GenesisSlot}
	genesisRoot, err := db.SaveBlock(sb.beaconDB, genesisBlock)
	if err != nil {
		return errors.Wrap(err, "could not save genesis block")
	}
	sb.prevBlockRoots = [][32]byte{genesisRoot}
	sb.inMemoryBlocks = []*types.BeaconBlock{genesisBlock}
	return nil
}

// advanceChainNilBlock runs the transition for an empty slot.
func (sb *SimulatedBackend) advanceChainNilBlock() error {
	prevRoot := sb.prevBlockRoots[len(sb.prevBlockRoots)-1]
	newState, err := state.ExecuteStateTransition(context.Background(), sb.state, nil, prevRoot, sb.config)
	if err != nil {
		return err
	}
	sb.state = newState
	return nil
}

// generateBlockAndAdvanceChain builds the block for the next slot,
// injecting any operations the scenario schedules there, and runs the
// transition with it.
func (sb *SimulatedBackend) generateBlockAndAdvanceChain(testCase *StateTestCase, slot uint64) error {
	prevRoot := sb.prevBlockRoots[len(sb.prevBlockRoots)-1]
	block := &types.BeaconBlock{
		Slot:       sb.state.Slot + 1,
		ParentRoot: prevRoot,
		Eth1Data:   sb.state.LatestEth1Data,
	}

	for _, scheduled := range testCase.Config.Deposits {
		if scheduled.Slot != slot {
			continue
		}
		// The proof of possession is checked against the epoch the block
		// lands in, one slot ahead of the current state.
		deposits, _ := testutil.NewDeposits(1, sb.state.Fork, helpers.SlotToEpoch(sb.state.Slot+1))
		if scheduled.Amount != 0 {
			deposits[0].Amount = scheduled.Amount
		}
		block.Body.Deposits = append(block.Body.Deposits, deposits[0])
	}
	currentEpoch := helpers.CurrentEpoch(sb.state)
	for _, scheduled := range testCase.Config.ValidatorExits {
		if scheduled.Epoch != currentEpoch || slot%params.BeaconConfig().SlotsPerEpoch != 0 {
			continue
		}
		block.Body.Exits = append(block.Body.Exits, &types.Exit{
			Epoch:          scheduled.Epoch,
			ValidatorIndex: scheduled.ValidatorIndex,
		})
	}

	blockRoot, err := treehash.HashTreeRoot(block)
	if err != nil {
		return errors.Wrap(err, "could not tree hash block")
	}
	newState, err := state.ExecuteStateTransition(context.Background(), sb.state, block, prevRoot, sb.config)
	if err != nil {
		return errors.Wrap(err, "could not execute state transition")
	}

	sb.state = newState
	sb.prevBlockRoots = append(sb.prevBlockRoots, blockRoot)
	sb.inMemoryBlocks = append(sb.inMemoryBlocks, block)
	if _, err := db.SaveBlock(sb.beaconDB, block); err != nil {
		return errors.Wrap(err, "could not save block")
	}
	return nil
}

// compareTestCase checks the final state against the scenario's
// declared post-conditions.
func (sb *SimulatedBackend) compareTestCase(testCase *StateTestCase) error {
	if sb.state.Slot != testCase.Results.Slot {
		return fmt.Errorf("final slot %d, expected %d after %d transitions",
			sb.state.Slot, testCase.Results.Slot, testCase.Config.NumSlots)
	}
	if len(sb.state.ValidatorRegistry) != testCase.Results.NumValidators {
		return fmt.Errorf("registry length %d, expected %d",
			len(sb.state.ValidatorRegistry), testCase.Results.NumValidators)
	}
	for _, exited := range testCase.Results.ExitedValidators {
		if exited >= uint64(len(sb.state.ValidatorRegistry)) {
			return fmt.Errorf("expected exited validator %d out of range", exited)
		}
		v := sb.state.ValidatorRegistry[exited]
		if v.StatusFlags&types.FlagInitiatedExit == 0 &&
			v.ExitEpoch == params.BeaconConfig().FarFutureEpoch {
			return fmt.Errorf("expected validator %d to have exited", exited)
		}
	}
	return nil
}

func setTestConfig(testCase *StateTestCase) {
	c := params.DemoBeaconConfig()
	if testCase.Config.SlotsPerEpoch != 0 {
		c.SlotsPerEpoch = testCase.Config.SlotsPerEpoch
	}
	params.OverrideBeaconConfig(c)
}

func averageDuration(times []time.Duration) time.Duration {
	sum := int64(0)
	for _, t := range times {
		sum += t.Nanoseconds()
	}
	return time.Duration(sum / int64(len(times)))
}
