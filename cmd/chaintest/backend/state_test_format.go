package backend

// StateTest is the top-level YAML manifest for a suite of state
// transition scenarios.
type StateTest struct {
	Title     string           `yaml:"title"`
	Summary   string           `yaml:"summary"`
	TestSuite string           `yaml:"test_suite"`
	TestCases []*StateTestCase `yaml:"test_cases"`
}

// StateTestCase pairs a scenario configuration with its expected
// post-conditions.
type StateTestCase struct {
	Config  *StateTestConfig  `yaml:"config"`
	Results *StateTestResults `yaml:"results"`
}

// StateTestConfig drives one scenario: how the chain starts, how many
// slots it runs, and the operations injected along the way.
type StateTestConfig struct {
	SlotsPerEpoch         uint64                    `yaml:"slots_per_epoch"`
	DepositsForChainStart uint64                    `yaml:"deposits_for_chain_start"`
	NumSlots              uint64                    `yaml:"num_slots"`
	SkipSlots             []uint64                  `yaml:"skip_slots"`
	Deposits              []*StateTestDeposit       `yaml:"deposits"`
	ValidatorExits        []*StateTestValidatorExit `yaml:"validator_exits"`
}

// StateTestDeposit schedules a fresh-key deposit inside the block at
// the given slot.
type StateTestDeposit struct {
	Slot   uint64 `yaml:"slot"`
	Amount uint64 `yaml:"amount"`
}

// StateTestValidatorExit schedules a voluntary exit for the validator
// in the first block of the given epoch.
type StateTestValidatorExit struct {
	Epoch          uint64 `yaml:"epoch"`
	ValidatorIndex uint64 `yaml:"validator_index"`
}

// StateTestResults are the post-conditions checked after the run.
type StateTestResults struct {
	Slot             uint64   `yaml:"slot"`
	NumValidators    int      `yaml:"num_validators"`
	ExitedValidators []uint64 `yaml:"exited_validators"`
}
