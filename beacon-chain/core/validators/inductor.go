package validators

import (
	"github.com/pkg/errors"

	"github.com/meridianchain/meridian/beacon-chain/core/helpers"
	"github.com/meridianchain/meridian/beacon-chain/types"
	"github.com/meridianchain/meridian/shared/bls"
	"github.com/meridianchain/meridian/shared/params"
)

// ErrInvalidProofOfPossession is returned when a deposit's self-signed
// proof does not verify against its declared public key. The registry
// is left untouched.
var ErrInvalidProofOfPossession = errors.New("validators: invalid proof of possession")

// Inductor admits deposits into the registry. It remembers where the
// last scan for a recyclable slot ended, so repeated inductions do not
// rescan the whole registry from the start.
type Inductor struct {
	emptyValidatorStart int
}

// InductValidator verifies the deposit's proof of possession and places
// a new validator record in the registry: into the first withdrawable
// slot at or after the remembered cursor, or appended at the end.
// Returns the assigned registry index.
func (ind *Inductor) InductValidator(state *types.BeaconState, input *types.DepositInput, amount uint64) (uint64, error) {
	if err := VerifyProofOfPossession(state, input); err != nil {
		return 0, err
	}

	cfg := params.BeaconConfig()
	v := &types.Validator{
		Pubkey:                 input.Pubkey,
		WithdrawalCredentials:  input.WithdrawalCredentials,
		RandaoCommitment:       input.RandaoCommitment,
		ActivationEpoch:        cfg.FarFutureEpoch,
		ExitEpoch:              cfg.FarFutureEpoch,
		WithdrawalEpoch:        cfg.FarFutureEpoch,
		PenalizedEpoch:         cfg.FarFutureEpoch,
		ExitCount:              state.ValidatorRegistryExitCount,
		LatestStatusChangeSlot: state.Slot,
	}

	for i := ind.emptyValidatorStart; i < len(state.ValidatorRegistry); i++ {
		if state.ValidatorRegistry[i].StatusFlags&types.FlagWithdrawable != 0 {
			ind.emptyValidatorStart = i + 1
			state.ValidatorRegistry[i] = v
			state.ValidatorBalances[i] = amount
			return uint64(i), nil
		}
	}

	state.ValidatorRegistry = append(state.ValidatorRegistry, v)
	state.ValidatorBalances = append(state.ValidatorBalances, amount)
	idx := uint64(len(state.ValidatorRegistry) - 1)
	ind.emptyValidatorStart = len(state.ValidatorRegistry)
	return idx, nil
}

// VerifyProofOfPossession checks the deposit's signature over its own
// public key under the deposit domain for the fork in force.
func VerifyProofOfPossession(state *types.BeaconState, input *types.DepositInput) error {
	sig, err := bls.SignatureFromBytes(input.ProofOfPossession[:])
	if err != nil {
		return errors.Wrap(ErrInvalidProofOfPossession, err.Error())
	}
	pub, err := bls.PublicKeyFromBytes(input.Pubkey[:])
	if err != nil {
		return errors.Wrap(ErrInvalidProofOfPossession, err.Error())
	}
	domain := helpers.DomainVersion(state.Fork, helpers.CurrentEpoch(state), params.BeaconConfig().DomainDeposit)
	if !sig.Verify(input.Pubkey[:], pub, domain) {
		return ErrInvalidProofOfPossession
	}
	return nil
}
