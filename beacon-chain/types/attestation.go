package types

import "github.com/prysmaticlabs/go-bitfield"

// AttestationData is the unsigned content of an attestation: what slot
// and shard it covers, which chain head and epoch boundary it saw, and
// the justified checkpoint and prior crosslink it builds on.
type AttestationData struct {
	Slot               uint64
	Shard              uint64
	BeaconBlockRoot    [32]byte
	EpochBoundaryRoot  [32]byte
	ShardBlockRoot     [32]byte
	LatestCrosslink    Crosslink
	JustifiedEpoch     uint64
	JustifiedBlockRoot [32]byte
}

// Attestation carries AttestationData plus the aggregation bitfield
// (bit i set means committee member i signed) and the aggregate BLS
// signature over the data.
type Attestation struct {
	Data                AttestationData
	AggregationBitfield bitfield.Bitlist
	CustodyBitfield     bitfield.Bitlist
	AggregateSignature  [96]byte
}

// PendingAttestation is an attestation absorbed into the state,
// annotated with the slot it was included at. Consumed and discarded
// by epoch processing.
type PendingAttestation struct {
	Data                AttestationData
	AggregationBitfield bitfield.Bitlist
	CustodyBitfield     bitfield.Bitlist
	InclusionSlot       uint64
}
