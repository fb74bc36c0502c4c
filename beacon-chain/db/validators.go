package db

import "github.com/meridianchain/meridian/shared/bytesutil"

// SaveValidatorPubkey records a validator's public key under its
// registry index.
func SaveValidatorPubkey(db Database, index uint64, pubkey [48]byte) error {
	return db.Put(validatorColumn, pubkeyKey(index), pubkey[:])
}

// ValidatorPubkey loads the public key recorded for the given registry
// index. The second return is false when no key is recorded.
func ValidatorPubkey(db Database, index uint64) ([48]byte, bool, error) {
	enc, err := db.Get(validatorColumn, pubkeyKey(index))
	if err != nil {
		return [48]byte{}, false, err
	}
	if enc == nil {
		return [48]byte{}, false, nil
	}
	return bytesutil.ToBytes48(enc), true, nil
}
