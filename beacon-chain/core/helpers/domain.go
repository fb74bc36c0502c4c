package helpers

import "github.com/meridianchain/meridian/beacon-chain/types"

// DomainVersion combines the fork version in force at the given epoch
// with a purpose tag into the 8-byte signature domain. Signatures made
// under one fork or purpose never verify under another.
func DomainVersion(fork types.Fork, epoch uint64, domainType uint64) uint64 {
	version := fork.PreviousVersion
	if epoch >= fork.Epoch {
		version = fork.CurrentVersion
	}
	return version<<32 | domainType
}
