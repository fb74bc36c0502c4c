// Package params defines all the configurable parameters of the beacon
// chain protocol. Values are global and read through BeaconConfig; tests
// that need smaller committees swap in the demo config.
package params

// BeaconChainConfig contains constants of the protocol. Ring-buffer
// lengths here are fixed: the state fields they size are never resized,
// only addressed modulo their length.
type BeaconChainConfig struct {
	// Misc constants.
	ShardCount          uint64 // ShardCount is the number of shard chains.
	TargetCommitteeSize uint64 // TargetCommitteeSize is the optimal committee size per slot.
	EjectionBalance     uint64 // EjectionBalance is the balance below which a validator gets ejected, in Gwei.
	MaxBalanceChurnQuotient uint64 // MaxBalanceChurnQuotient bounds registry churn per epoch.
	MaxWithdrawalsPerEpoch  uint64 // MaxWithdrawalsPerEpoch bounds withdrawal preparation per epoch.
	ShuffleRoundCount       uint64 // ShuffleRoundCount is the number of swap-or-not rounds.

	// Max operations per block.
	MaxProposerSlashings uint64 // MaxProposerSlashings bounds slashings carried per block.
	MaxAttestations      uint64 // MaxAttestations bounds attestations carried per block.
	MaxDeposits          uint64 // MaxDeposits bounds deposits carried per block.
	MaxExits             uint64 // MaxExits bounds voluntary exits carried per block.

	// Deposit constants.
	MaxDepositAmount uint64 // MaxDepositAmount is the fixed deposit size, in Gwei.
	MinDepositAmount uint64 // MinDepositAmount is the smallest acceptable deposit, in Gwei.

	// Initial values.
	GenesisSlot        uint64 // GenesisSlot is the slot the chain starts at.
	GenesisEpoch       uint64 // GenesisEpoch is the epoch the chain starts at.
	GenesisStartShard  uint64 // GenesisStartShard is the first shard assigned at genesis.
	FarFutureEpoch     uint64 // FarFutureEpoch is the sentinel for "not yet scheduled".
	ZeroHash           [32]byte

	// Time parameters.
	SlotsPerEpoch                uint64 // SlotsPerEpoch is the number of slots in an epoch.
	EpochsPerEth1VotingPeriod    uint64 // EpochsPerEth1VotingPeriod is the eth1 data voting window, in epochs.
	MinAttestationInclusionDelay uint64 // MinAttestationInclusionDelay is the earliest inclusion distance.
	EntryExitDelay               uint64 // EntryExitDelay is the activation/exit lookahead, in epochs.
	SeedLookahead                uint64 // SeedLookahead is the randao-mix lookahead for seeds, in epochs.
	MinValidatorWithdrawalEpochs uint64 // MinValidatorWithdrawalEpochs delays withdrawal after exit.

	// State list lengths.
	LatestBlockRootsLength      uint64 // LatestBlockRootsLength is the block-root ring buffer size.
	LatestRandaoMixesLength     uint64 // LatestRandaoMixesLength is the randao-mix ring buffer size.
	LatestPenalizedExitLength   uint64 // LatestPenalizedExitLength is the penalized-balance ring buffer size.

	// Reward and penalty quotients.
	BaseRewardQuotient          uint64 // BaseRewardQuotient scales base validator rewards.
	WhistleblowerRewardQuotient uint64 // WhistleblowerRewardQuotient scales the slashing reward.
	InactivityPenaltyQuotient   uint64 // InactivityPenaltyQuotient scales the inactivity leak.
	IncluderRewardQuotient      uint64 // IncluderRewardQuotient scales the attestation-inclusion reward.

	// Signature domains.
	DomainDeposit     uint64
	DomainAttestation uint64
	DomainProposal    uint64
	DomainExit        uint64
	DomainRandao      uint64
}

var defaultBeaconConfig = &BeaconChainConfig{
	ShardCount:              1024,
	TargetCommitteeSize:     128,
	EjectionBalance:         16 * 1e9,
	MaxBalanceChurnQuotient: 32,
	MaxWithdrawalsPerEpoch:  4,
	ShuffleRoundCount:       90,

	MaxProposerSlashings: 16,
	MaxAttestations:      128,
	MaxDeposits:          16,
	MaxExits:             16,

	MaxDepositAmount: 32 * 1e9,
	MinDepositAmount: 1 * 1e9,

	GenesisSlot:       0,
	GenesisEpoch:      0,
	GenesisStartShard: 0,
	FarFutureEpoch:    1<<64 - 1,

	SlotsPerEpoch:                64,
	EpochsPerEth1VotingPeriod:    16,
	MinAttestationInclusionDelay: 4,
	EntryExitDelay:               4,
	SeedLookahead:                1,
	MinValidatorWithdrawalEpochs: 4,

	LatestBlockRootsLength:    8192,
	LatestRandaoMixesLength:   8192,
	LatestPenalizedExitLength: 8192,

	BaseRewardQuotient:          32,
	WhistleblowerRewardQuotient: 512,
	InactivityPenaltyQuotient:   1 << 24,
	IncluderRewardQuotient:      8,

	DomainDeposit:     0,
	DomainAttestation: 1,
	DomainProposal:    2,
	DomainExit:        3,
	DomainRandao:      4,
}

var demoBeaconConfig = &BeaconChainConfig{
	ShardCount:              8,
	TargetCommitteeSize:     4,
	EjectionBalance:         defaultBeaconConfig.EjectionBalance,
	MaxBalanceChurnQuotient: defaultBeaconConfig.MaxBalanceChurnQuotient,
	MaxWithdrawalsPerEpoch:  defaultBeaconConfig.MaxWithdrawalsPerEpoch,
	ShuffleRoundCount:       10,

	MaxProposerSlashings: defaultBeaconConfig.MaxProposerSlashings,
	MaxAttestations:      defaultBeaconConfig.MaxAttestations,
	MaxDeposits:          defaultBeaconConfig.MaxDeposits,
	MaxExits:             defaultBeaconConfig.MaxExits,

	MaxDepositAmount: defaultBeaconConfig.MaxDepositAmount,
	MinDepositAmount: defaultBeaconConfig.MinDepositAmount,

	GenesisSlot:       0,
	GenesisEpoch:      0,
	GenesisStartShard: 0,
	FarFutureEpoch:    defaultBeaconConfig.FarFutureEpoch,

	SlotsPerEpoch:                8,
	EpochsPerEth1VotingPeriod:    2,
	MinAttestationInclusionDelay: 2,
	EntryExitDelay:               2,
	SeedLookahead:                1,
	MinValidatorWithdrawalEpochs: 2,

	LatestBlockRootsLength:    64,
	LatestRandaoMixesLength:   64,
	LatestPenalizedExitLength: 64,

	BaseRewardQuotient:          defaultBeaconConfig.BaseRewardQuotient,
	WhistleblowerRewardQuotient: defaultBeaconConfig.WhistleblowerRewardQuotient,
	InactivityPenaltyQuotient:   defaultBeaconConfig.InactivityPenaltyQuotient,
	IncluderRewardQuotient:      defaultBeaconConfig.IncluderRewardQuotient,

	DomainDeposit:     0,
	DomainAttestation: 1,
	DomainProposal:    2,
	DomainExit:        3,
	DomainRandao:      4,
}

var beaconConfig = defaultBeaconConfig

// BeaconConfig retrieves the beacon chain config.
func BeaconConfig() *BeaconChainConfig {
	return beaconConfig
}

// UseDemoBeaconConfig swaps in small committee and ring-buffer sizes so
// tests and local scenarios run with a handful of validators.
func UseDemoBeaconConfig() {
	beaconConfig = demoBeaconConfig
}

// OverrideBeaconConfig replaces the global config. Intended for tests
// that need a one-off tweak; callers should restore the previous value.
func OverrideBeaconConfig(c *BeaconChainConfig) {
	beaconConfig = c
}

// DemoBeaconConfig returns a copy of the demo config so tests can tweak
// fields without mutating the shared value.
func DemoBeaconConfig() *BeaconChainConfig {
	c := *demoBeaconConfig
	return &c
}
