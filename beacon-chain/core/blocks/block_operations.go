package blocks

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/pkg/errors"

	"github.com/meridianchain/meridian/beacon-chain/core/helpers"
	"github.com/meridianchain/meridian/beacon-chain/core/validators"
	"github.com/meridianchain/meridian/beacon-chain/types"
	"github.com/meridianchain/meridian/shared/bls"
	"github.com/meridianchain/meridian/shared/bytesutil"
	"github.com/meridianchain/meridian/shared/hashutil"
	"github.com/meridianchain/meridian/shared/keystore"
	"github.com/meridianchain/meridian/shared/params"
	"github.com/meridianchain/meridian/shared/treehash"
)

// ErrBadRandaoReveal is returned when a block's randao reveal is not
// the preimage of the proposer's current commitment layer.
var ErrBadRandaoReveal = errors.New("blocks: randao reveal does not match the proposer's commitment")

// ProcessBlockRoots records the parent block root into the ring buffer
// and, when the buffer wraps, batches its merkle root into the
// append-only history.
func ProcessBlockRoots(state *types.BeaconState, parentRoot [32]byte) *types.BeaconState {
	length := params.BeaconConfig().LatestBlockRootsLength
	state.LatestBlockRoots[(state.Slot-1)%length] = parentRoot
	if state.Slot%length == 0 {
		var flat []byte
		for _, root := range state.LatestBlockRoots {
			flat = append(flat, root[:]...)
		}
		tree := treehash.Merkleize(flat)
		state.BatchedBlockRoots = append(state.BatchedBlockRoots, bytesutil.ToBytes32(tree[:treehash.BytesPerChunk]))
	}
	return state
}

// ProcessRandao peels one layer off the proposer's randao commitment:
// the reveal must hash to the stored commitment, gets mixed into the
// epoch's randomness, and becomes the new commitment. The commitment
// check is skippable for trusted replay contexts.
func ProcessRandao(state *types.BeaconState, block *types.BeaconBlock, verifyReveal bool) (*types.BeaconState, error) {
	proposerIndex, err := helpers.BeaconProposerIndex(state, state.Slot)
	if err != nil {
		return nil, errors.Wrap(err, "could not get block proposer")
	}
	proposer := state.ValidatorRegistry[proposerIndex]
	if verifyReveal && hashutil.Hash(block.RandaoReveal[:]) != proposer.RandaoCommitment {
		return nil, errors.Wrapf(ErrBadRandaoReveal, "proposer %d", proposerIndex)
	}

	length := params.BeaconConfig().LatestRandaoMixesLength
	slot := helpers.CurrentEpoch(state) % length
	state.LatestRandaoMixes[slot] = bytesutil.Xor32(state.LatestRandaoMixes[slot], block.RandaoReveal)
	proposer.RandaoCommitment = block.RandaoReveal
	return state, nil
}

// ProcessEth1DataInBlock tallies the block's eth1 data vote, appending
// a fresh tally if this data point has not been voted for yet.
func ProcessEth1DataInBlock(state *types.BeaconState, block *types.BeaconBlock) *types.BeaconState {
	for _, vote := range state.Eth1DataVotes {
		if vote.Eth1Data == block.Eth1Data {
			vote.VoteCount++
			return state
		}
	}
	state.Eth1DataVotes = append(state.Eth1DataVotes, &types.Eth1DataVote{
		Eth1Data:  block.Eth1Data,
		VoteCount: 1,
	})
	return state
}

// ProcessProposerSlashings penalizes every proposer evidenced to have
// signed two distinct proposals for the same slot and shard.
func ProcessProposerSlashings(state *types.BeaconState, block *types.BeaconBlock, keys keystore.KeyProvider, verifySignatures bool) (*types.BeaconState, error) {
	body := block.Body
	if uint64(len(body.ProposerSlashings)) > params.BeaconConfig().MaxProposerSlashings {
		return nil, fmt.Errorf("blocks: %d proposer slashings exceed the %d allowed",
			len(body.ProposerSlashings), params.BeaconConfig().MaxProposerSlashings)
	}
	for i, slashing := range body.ProposerSlashings {
		if err := verifyProposerSlashing(state, slashing, keys, verifySignatures); err != nil {
			return nil, errors.Wrapf(err, "could not verify proposer slashing %d", i)
		}
		if err := validators.PenalizeValidator(state, slashing.ProposerIndex); err != nil {
			return nil, errors.Wrapf(err, "could not penalize proposer %d", slashing.ProposerIndex)
		}
	}
	return state, nil
}

func verifyProposerSlashing(state *types.BeaconState, slashing *types.ProposerSlashing, keys keystore.KeyProvider, verifySignatures bool) error {
	if slashing.ProposerIndex >= uint64(len(state.ValidatorRegistry)) {
		return fmt.Errorf("proposer index %d out of range", slashing.ProposerIndex)
	}
	if slashing.ProposalData1.Slot != slashing.ProposalData2.Slot {
		return fmt.Errorf("proposal slots differ: %d vs %d",
			slashing.ProposalData1.Slot, slashing.ProposalData2.Slot)
	}
	if slashing.ProposalData1.Shard != slashing.ProposalData2.Shard {
		return fmt.Errorf("proposal shards differ: %d vs %d",
			slashing.ProposalData1.Shard, slashing.ProposalData2.Shard)
	}
	if slashing.ProposalData1.BlockRoot == slashing.ProposalData2.BlockRoot {
		return errors.New("proposals are identical, nothing slashable")
	}
	proposer := state.ValidatorRegistry[slashing.ProposerIndex]
	if proposer.PenalizedEpoch <= helpers.CurrentEpoch(state) {
		return fmt.Errorf("proposer %d already penalized", slashing.ProposerIndex)
	}
	if !verifySignatures {
		return nil
	}

	pub, ok := keys.PublicKeyByIndex(slashing.ProposerIndex)
	if !ok {
		return fmt.Errorf("no public key known for proposer %d", slashing.ProposerIndex)
	}
	epoch := helpers.SlotToEpoch(slashing.ProposalData1.Slot)
	domain := helpers.DomainVersion(state.Fork, epoch, params.BeaconConfig().DomainProposal)
	for _, pair := range []struct {
		data types.ProposalSignedData
		sig  [96]byte
	}{
		{slashing.ProposalData1, slashing.ProposalSignature1},
		{slashing.ProposalData2, slashing.ProposalSignature2},
	} {
		root, err := treehash.HashTreeRoot(&pair.data)
		if err != nil {
			return errors.Wrap(err, "could not tree hash proposal data")
		}
		sig, err := bls.SignatureFromBytes(pair.sig[:])
		if err != nil {
			return errors.Wrap(ErrBadSignature, err.Error())
		}
		if !sig.Verify(root[:], pub, domain) {
			return ErrBadSignature
		}
	}
	return nil
}

// ProcessBlockAttestations validates every attestation the block
// carries and absorbs them into the pending list, stamped with the
// inclusion slot for later inclusion-distance rewards. Verification
// reads an immutable state snapshot, so signature checks run
// concurrently; the pending list is only appended to after all checks
// have joined.
func ProcessBlockAttestations(state *types.BeaconState, block *types.BeaconBlock, keys keystore.KeyProvider, verifySignatures bool) (*types.BeaconState, error) {
	atts := block.Body.Attestations
	if uint64(len(atts)) > params.BeaconConfig().MaxAttestations {
		return nil, fmt.Errorf("blocks: %d attestations exceed the %d allowed",
			len(atts), params.BeaconConfig().MaxAttestations)
	}

	if verifySignatures {
		if err := verifyAttestationsConcurrently(state, atts, keys); err != nil {
			return nil, err
		}
	} else {
		for i, att := range atts {
			if err := VerifyAttestationNoSignature(state, att); err != nil {
				return nil, errors.Wrapf(err, "could not verify attestation %d", i)
			}
		}
	}

	for _, att := range atts {
		state.LatestAttestations = append(state.LatestAttestations, &types.PendingAttestation{
			Data:                att.Data,
			AggregationBitfield: att.AggregationBitfield,
			CustodyBitfield:     att.CustodyBitfield,
			InclusionSlot:       state.Slot,
		})
	}
	return state, nil
}

// verifyAttestationsConcurrently fans the BLS checks out over a pool
// bounded by the available CPUs and reports the lowest-indexed
// failure.
func verifyAttestationsConcurrently(state *types.BeaconState, atts []*types.Attestation, keys keystore.KeyProvider) error {
	workers := runtime.GOMAXPROCS(0)
	if workers > len(atts) {
		workers = len(atts)
	}
	if workers < 1 {
		return nil
	}

	jobs := make(chan int)
	errs := make([]error, len(atts))
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				errs[i] = VerifyAttestation(state, atts[i], keys)
			}
		}()
	}
	for i := range atts {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return errors.Wrapf(err, "could not verify attestation %d", i)
		}
	}
	return nil
}

// ProcessDeposits inducts every deposit the block carries through the
// registry's recycling inductor.
func ProcessDeposits(state *types.BeaconState, block *types.BeaconBlock, inductor *validators.Inductor) (*types.BeaconState, error) {
	deposits := block.Body.Deposits
	if uint64(len(deposits)) > params.BeaconConfig().MaxDeposits {
		return nil, fmt.Errorf("blocks: %d deposits exceed the %d allowed",
			len(deposits), params.BeaconConfig().MaxDeposits)
	}
	for i, deposit := range deposits {
		if deposit.Amount < params.BeaconConfig().MinDepositAmount {
			return nil, fmt.Errorf("blocks: deposit %d below the minimum amount", i)
		}
		if _, err := inductor.InductValidator(state, &deposit.DepositInput, deposit.Amount); err != nil {
			return nil, errors.Wrapf(err, "could not induct deposit %d", i)
		}
	}
	return state, nil
}

// ProcessExits validates and applies the block's voluntary exits.
func ProcessExits(state *types.BeaconState, block *types.BeaconBlock, keys keystore.KeyProvider, verifySignatures bool) (*types.BeaconState, error) {
	exits := block.Body.Exits
	if uint64(len(exits)) > params.BeaconConfig().MaxExits {
		return nil, fmt.Errorf("blocks: %d exits exceed the %d allowed",
			len(exits), params.BeaconConfig().MaxExits)
	}
	for i, exit := range exits {
		if err := verifyExit(state, exit, keys, verifySignatures); err != nil {
			return nil, errors.Wrapf(err, "could not verify exit %d", i)
		}
		validators.InitiateValidatorExit(state, exit.ValidatorIndex)
	}
	return state, nil
}

func verifyExit(state *types.BeaconState, exit *types.Exit, keys keystore.KeyProvider, verifySignatures bool) error {
	if exit.ValidatorIndex >= uint64(len(state.ValidatorRegistry)) {
		return fmt.Errorf("validator index %d out of range", exit.ValidatorIndex)
	}
	currentEpoch := helpers.CurrentEpoch(state)
	validator := state.ValidatorRegistry[exit.ValidatorIndex]
	if validator.ExitEpoch <= helpers.EntryExitEffectEpoch(currentEpoch) {
		return fmt.Errorf("validator %d already exiting", exit.ValidatorIndex)
	}
	if currentEpoch < exit.Epoch {
		return fmt.Errorf("exit not valid until epoch %d, state at epoch %d", exit.Epoch, currentEpoch)
	}
	if !verifySignatures {
		return nil
	}

	pub, ok := keys.PublicKeyByIndex(exit.ValidatorIndex)
	if !ok {
		return fmt.Errorf("no public key known for validator %d", exit.ValidatorIndex)
	}
	root, err := ExitSigningRoot(exit)
	if err != nil {
		return errors.Wrap(err, "could not tree hash exit")
	}
	sig, err := bls.SignatureFromBytes(exit.Signature[:])
	if err != nil {
		return errors.Wrap(ErrBadSignature, err.Error())
	}
	domain := helpers.DomainVersion(state.Fork, exit.Epoch, params.BeaconConfig().DomainExit)
	if !sig.Verify(root[:], pub, domain) {
		return ErrBadSignature
	}
	return nil
}

// ExitSigningRoot is the message a validator signs to request a
// voluntary exit: the exit with its signature zeroed.
func ExitSigningRoot(exit *types.Exit) ([32]byte, error) {
	unsigned := *exit
	unsigned.Signature = [96]byte{}
	return treehash.HashTreeRoot(&unsigned)
}
