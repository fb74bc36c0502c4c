// Package testutil builds fixture values shared by tests: keyed
// deposits with valid proofs of possession and pre-sized states.
package testutil

import (
	"github.com/meridianchain/meridian/beacon-chain/core/helpers"
	"github.com/meridianchain/meridian/beacon-chain/types"
	"github.com/meridianchain/meridian/shared/bls"
	"github.com/meridianchain/meridian/shared/bytesutil"
	"github.com/meridianchain/meridian/shared/params"
)

// NewDepositInput builds a deposit input for the key with a valid proof
// of possession under the given fork and epoch.
func NewDepositInput(sec *bls.SecretKey, fork types.Fork, epoch uint64) *types.DepositInput {
	pub := sec.PublicKey().Marshal()
	input := &types.DepositInput{
		Pubkey: bytesutil.ToBytes48(pub),
	}
	domain := helpers.DomainVersion(fork, epoch, params.BeaconConfig().DomainDeposit)
	sig := sec.Sign(pub, domain)
	copy(input.ProofOfPossession[:], sig.Marshal())
	return input
}

// NewDeposits builds n full deposits with fresh random keys, returning
// the deposits and the matching secret keys in order.
func NewDeposits(n int, fork types.Fork, epoch uint64) ([]*types.Deposit, []*bls.SecretKey) {
	deposits := make([]*types.Deposit, n)
	keys := make([]*bls.SecretKey, n)
	for i := 0; i < n; i++ {
		keys[i] = bls.RandKey()
		deposits[i] = &types.Deposit{
			DepositInput: *NewDepositInput(keys[i], fork, epoch),
			Amount:       params.BeaconConfig().MaxDepositAmount,
		}
	}
	return deposits, keys
}
