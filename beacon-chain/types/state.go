// Package types defines the beacon chain container types: the state,
// blocks, attestations and the records they carry. All types serialize
// with shared/ssz and merkleize with shared/treehash; fields excluded
// from the canonical commitment carry an `ssz:"skip"` tag.
package types

// Fork tracks the active consensus version and the epoch it activated.
type Fork struct {
	PreviousVersion uint64
	CurrentVersion  uint64
	Epoch           uint64
}

// Crosslink commits a shard's recent data root to the beacon chain.
type Crosslink struct {
	Epoch          uint64
	ShardBlockRoot [32]byte
}

// Eth1Data points at the deposit contract state on the PoW chain.
type Eth1Data struct {
	DepositRoot [32]byte
	BlockHash   [32]byte
}

// Eth1DataVote tallies block proposers voting for an eth1 data point.
type Eth1DataVote struct {
	Eth1Data  Eth1Data
	VoteCount uint64
}

// BeaconState is the root aggregate of the chain. The registry and
// balance lists are parallel: len(ValidatorBalances) ==
// len(ValidatorRegistry) always, and both are mutated only through the
// validators package. Ring buffers (randao mixes, block roots,
// crosslinks, penalized balances) are fixed-length and addressed
// modulo their configured length, never resized.
type BeaconState struct {
	Slot        uint64
	GenesisTime uint64
	Fork        Fork

	ValidatorRegistry            []*Validator
	ValidatorBalances            []uint64
	ValidatorRegistryUpdateEpoch uint64
	ValidatorRegistryExitCount   uint64

	LatestRandaoMixes [][32]byte

	PreviousShufflingStartShard uint64
	CurrentShufflingStartShard  uint64
	PreviousShufflingEpoch      uint64
	CurrentShufflingEpoch       uint64
	PreviousShufflingSeed       [32]byte
	CurrentShufflingSeed        [32]byte

	PreviousJustifiedEpoch uint64
	JustifiedEpoch         uint64
	JustificationBitfield  uint64
	FinalizedEpoch         uint64

	LatestCrosslinks        []*Crosslink
	LatestBlockRoots        [][32]byte
	LatestPenalizedBalances []uint64
	LatestAttestations      []*PendingAttestation
	BatchedBlockRoots       [][32]byte

	LatestEth1Data Eth1Data
	Eth1DataVotes  []*Eth1DataVote
}
