package types

// DepositInput is the self-describing part of a deposit: the declared
// key material and a proof of possession signed with it.
type DepositInput struct {
	Pubkey                [48]byte
	WithdrawalCredentials [32]byte
	RandaoCommitment      [32]byte
	ProofOfPossession     [96]byte
}

// Deposit registers new stake for a (possibly new) validator.
type Deposit struct {
	DepositInput DepositInput
	Amount       uint64
}

// Exit is a voluntary request by a validator to leave the registry.
type Exit struct {
	Epoch          uint64
	ValidatorIndex uint64
	Signature      [96]byte
}

// ProposalSignedData is the message a proposer signs for a block or
// shard proposal; two conflicting ones for the same slot are a
// slashable offence.
type ProposalSignedData struct {
	Slot      uint64
	Shard     uint64
	BlockRoot [32]byte
}

// ProposerSlashing evidences a proposer signing two distinct proposals
// for the same slot and shard.
type ProposerSlashing struct {
	ProposerIndex      uint64
	ProposalData1      ProposalSignedData
	ProposalSignature1 [96]byte
	ProposalData2      ProposalSignedData
	ProposalSignature2 [96]byte
}

// BeaconBlockBody holds the operations a block carries.
type BeaconBlockBody struct {
	ProposerSlashings []*ProposerSlashing
	Attestations      []*Attestation
	Deposits          []*Deposit
	Exits             []*Exit
}

// BeaconBlock is a proposed unit of chain extension. RandaoReveal is
// the preimage of the proposer's current randao commitment layer.
type BeaconBlock struct {
	Slot         uint64
	ParentRoot   [32]byte
	StateRoot    [32]byte
	RandaoReveal [32]byte
	Eth1Data     Eth1Data
	Signature    [96]byte
	Body         BeaconBlockBody
}
