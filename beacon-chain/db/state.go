package db

import (
	"github.com/pkg/errors"

	"github.com/meridianchain/meridian/beacon-chain/types"
	"github.com/meridianchain/meridian/shared/ssz"
	"github.com/meridianchain/meridian/shared/treehash"
)

// SaveState persists the head beacon state.
func SaveState(db Database, state *types.BeaconState) error {
	enc, err := ssz.Marshal(state)
	if err != nil {
		return errors.Wrap(err, "could not encode state")
	}
	return db.Put(chainInfoColumn, stateLookupKey, enc)
}

// State loads the head beacon state, or nil when none has been saved.
func State(db Database) (*types.BeaconState, error) {
	enc, err := db.Get(chainInfoColumn, stateLookupKey)
	if err != nil {
		return nil, err
	}
	if enc == nil {
		return nil, nil
	}
	state := &types.BeaconState{}
	if err := ssz.Unmarshal(enc, state); err != nil {
		return nil, errors.Wrap(err, "could not decode state")
	}
	return state, nil
}

// SaveBlock persists a block under its tree-hash root and returns the
// root.
func SaveBlock(db Database, block *types.BeaconBlock) ([32]byte, error) {
	root, err := treehash.HashTreeRoot(block)
	if err != nil {
		return [32]byte{}, errors.Wrap(err, "could not tree hash block")
	}
	enc, err := ssz.Marshal(block)
	if err != nil {
		return [32]byte{}, errors.Wrap(err, "could not encode block")
	}
	return root, db.Put(blockColumn, root[:], enc)
}

// Block loads the block stored under the given root, or nil when the
// root is unknown.
func Block(db Database, root [32]byte) (*types.BeaconBlock, error) {
	enc, err := db.Get(blockColumn, root[:])
	if err != nil {
		return nil, err
	}
	if enc == nil {
		return nil, nil
	}
	block := &types.BeaconBlock{}
	if err := ssz.Unmarshal(enc, block); err != nil {
		return nil, errors.Wrap(err, "could not decode block")
	}
	return block, nil
}
