// Package blocks contains the per-block operations of the transition:
// attestation validation, deposit induction, voluntary exits, proposer
// slashings and block-root chaining.
package blocks

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/meridianchain/meridian/beacon-chain/core/helpers"
	"github.com/meridianchain/meridian/beacon-chain/types"
	"github.com/meridianchain/meridian/shared/bls"
	"github.com/meridianchain/meridian/shared/keystore"
	"github.com/meridianchain/meridian/shared/params"
	"github.com/meridianchain/meridian/shared/treehash"
)

// Attestation rejection reasons. Each failed check surfaces its own
// sentinel so callers never have to parse a generic boolean.
var (
	ErrIncludedTooEarly    = errors.New("blocks: attestation included before the minimum inclusion delay")
	ErrIncludedTooLate     = errors.New("blocks: attestation older than one epoch")
	ErrWrongJustifiedEpoch = errors.New("blocks: attestation cites the wrong justified epoch")
	ErrWrongJustifiedRoot  = errors.New("blocks: attestation cites the wrong justified block root")
	ErrBadLatestCrosslink  = errors.New("blocks: attestation cites a crosslink the state does not hold")
	ErrBadSignature        = errors.New("blocks: attestation aggregate signature does not verify")
)

// VerifyAttestation runs every consensus check on the attestation,
// including the aggregate signature against the committee's keys.
func VerifyAttestation(state *types.BeaconState, att *types.Attestation, keys keystore.KeyProvider) error {
	return verifyAttestation(state, att, true, keys)
}

// VerifyAttestationNoSignature runs every consensus check except the
// aggregate signature. Only for trusted replay and test contexts where
// signatures were checked elsewhere.
func VerifyAttestationNoSignature(state *types.BeaconState, att *types.Attestation) error {
	return verifyAttestation(state, att, false, nil)
}

func verifyAttestation(state *types.BeaconState, att *types.Attestation, verifySignature bool, keys keystore.KeyProvider) error {
	cfg := params.BeaconConfig()

	if att.Data.Slot+cfg.MinAttestationInclusionDelay > state.Slot {
		return errors.Wrapf(ErrIncludedTooEarly,
			"attestation slot %d, state slot %d", att.Data.Slot, state.Slot)
	}
	if state.Slot > att.Data.Slot+cfg.SlotsPerEpoch {
		return errors.Wrapf(ErrIncludedTooLate,
			"attestation slot %d, state slot %d", att.Data.Slot, state.Slot)
	}

	// Attestations from the current epoch vote for the state's justified
	// epoch; older ones vote for the previous justified epoch.
	wantJustified := state.PreviousJustifiedEpoch
	if helpers.SlotToEpoch(att.Data.Slot+1) >= helpers.CurrentEpoch(state) {
		wantJustified = state.JustifiedEpoch
	}
	if att.Data.JustifiedEpoch != wantJustified {
		return errors.Wrapf(ErrWrongJustifiedEpoch,
			"cited %d, want %d", att.Data.JustifiedEpoch, wantJustified)
	}
	justifiedRoot, err := helpers.BlockRoot(state, helpers.StartSlot(att.Data.JustifiedEpoch))
	if err != nil {
		return errors.Wrap(err, "could not get justified block root")
	}
	if att.Data.JustifiedBlockRoot != justifiedRoot {
		return errors.Wrapf(ErrWrongJustifiedRoot,
			"cited %#x, want %#x", att.Data.JustifiedBlockRoot, justifiedRoot)
	}

	if att.Data.Shard >= uint64(len(state.LatestCrosslinks)) {
		return fmt.Errorf("blocks: shard %d out of range", att.Data.Shard)
	}
	if att.Data.LatestCrosslink != *state.LatestCrosslinks[att.Data.Shard] {
		return errors.Wrapf(ErrBadLatestCrosslink,
			"cited epoch %d root %#x for shard %d",
			att.Data.LatestCrosslink.Epoch, att.Data.LatestCrosslink.ShardBlockRoot, att.Data.Shard)
	}

	participants, err := helpers.AttestationParticipants(state, &att.Data, att.AggregationBitfield)
	if err != nil {
		return errors.Wrap(err, "could not get attestation participants")
	}

	if verifySignature {
		return verifyAggregateSignature(state, att, participants, keys)
	}
	return nil
}

// verifyAggregateSignature reconstructs the group public key from the
// bitfield-selected committee members and checks the attestation's
// aggregate signature over its data root.
func verifyAggregateSignature(state *types.BeaconState, att *types.Attestation, participants []uint64, keys keystore.KeyProvider) error {
	if len(participants) == 0 {
		return errors.Wrap(ErrBadSignature, "no participants selected by the bitfield")
	}
	pubs := make([]*bls.PublicKey, 0, len(participants))
	for _, index := range participants {
		pub, ok := keys.PublicKeyByIndex(index)
		if !ok {
			return fmt.Errorf("blocks: no public key known for validator %d", index)
		}
		pubs = append(pubs, pub)
	}
	groupKey, err := bls.AggregatePublicKeys(pubs)
	if err != nil {
		return errors.Wrap(ErrBadSignature, err.Error())
	}
	sig, err := bls.SignatureFromBytes(att.AggregateSignature[:])
	if err != nil {
		return errors.Wrap(ErrBadSignature, err.Error())
	}
	root, err := treehash.HashTreeRoot(&att.Data)
	if err != nil {
		return errors.Wrap(err, "could not tree hash attestation data")
	}
	domain := helpers.DomainVersion(state.Fork, helpers.SlotToEpoch(att.Data.Slot), params.BeaconConfig().DomainAttestation)
	if !sig.Verify(root[:], groupKey, domain) {
		return ErrBadSignature
	}
	return nil
}
