package db

import (
	"testing"

	"github.com/d4l3k/messagediff"
	"github.com/prysmaticlabs/go-bitfield"
	"github.com/stretchr/testify/require"

	"github.com/meridianchain/meridian/beacon-chain/types"
)

func setupDatabases(t *testing.T) map[string]Database {
	t.Helper()
	boltStore, err := NewDB(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, boltStore.Close()) })
	return map[string]Database{
		"bolt":   boltStore,
		"memory": NewMemoryDB(),
	}
}

func TestPutGetDelete(t *testing.T) {
	for name, store := range setupDatabases(t) {
		t.Run(name, func(t *testing.T) {
			column := []byte("chain-info")
			key := []byte("some-key")

			got, err := store.Get(column, key)
			require.NoError(t, err)
			require.Nil(t, got, "absent key must read as nil")

			require.NoError(t, store.Put(column, key, []byte("some-value")))
			got, err = store.Get(column, key)
			require.NoError(t, err)
			require.Equal(t, []byte("some-value"), got)

			require.NoError(t, store.Delete(column, key))
			got, err = store.Get(column, key)
			require.NoError(t, err)
			require.Nil(t, got, "deleted key must read as nil")
		})
	}
}

func TestGetCopiesStoredValue(t *testing.T) {
	for name, store := range setupDatabases(t) {
		t.Run(name, func(t *testing.T) {
			column := []byte("chain-info")
			key := []byte("k")
			require.NoError(t, store.Put(column, key, []byte{1, 2, 3}))

			got, err := store.Get(column, key)
			require.NoError(t, err)
			got[0] = 0xff

			again, err := store.Get(column, key)
			require.NoError(t, err)
			require.Equal(t, []byte{1, 2, 3}, again, "callers must not alias stored bytes")
		})
	}
}

func testState() *types.BeaconState {
	return &types.BeaconState{
		Slot:                         42,
		GenesisTime:                  1606824023,
		Fork:                         types.Fork{CurrentVersion: 1, Epoch: 3},
		ValidatorRegistry:            []*types.Validator{{Pubkey: [48]byte{0x01}, ActivationEpoch: 0, ExitEpoch: 99}},
		ValidatorBalances:            []uint64{32e9},
		LatestRandaoMixes:            [][32]byte{{0x0a}, {0x0b}},
		LatestCrosslinks:             []*types.Crosslink{{Epoch: 1, ShardBlockRoot: [32]byte{0x02}}},
		LatestBlockRoots:             [][32]byte{{0x03}},
		LatestPenalizedBalances:      []uint64{0, 7},
		BatchedBlockRoots:            [][32]byte{{0x04}},
		LatestAttestations: []*types.PendingAttestation{{
			Data:                types.AttestationData{Slot: 9, Shard: 2},
			AggregationBitfield: bitfield.NewBitlist(4),
			CustodyBitfield:     bitfield.NewBitlist(4),
			InclusionSlot:       11,
		}},
		LatestEth1Data: types.Eth1Data{DepositRoot: [32]byte{0x05}},
		Eth1DataVotes:  []*types.Eth1DataVote{{Eth1Data: types.Eth1Data{BlockHash: [32]byte{0x06}}, VoteCount: 2}},
	}
}

func TestStateSaveAndLoad(t *testing.T) {
	for name, store := range setupDatabases(t) {
		t.Run(name, func(t *testing.T) {
			loaded, err := State(store)
			require.NoError(t, err)
			require.Nil(t, loaded, "fresh store must have no state")

			want := testState()
			require.NoError(t, SaveState(store, want))

			loaded, err = State(store)
			require.NoError(t, err)
			require.NotNil(t, loaded)
			diff, equal := messagediff.PrettyDiff(want, loaded)
			require.True(t, equal, "loaded state differs: %s", diff)
		})
	}
}

func TestBlockSaveAndLoad(t *testing.T) {
	for name, store := range setupDatabases(t) {
		t.Run(name, func(t *testing.T) {
			want := &types.BeaconBlock{
				Slot:         7,
				ParentRoot:   [32]byte{0x01},
				RandaoReveal: [32]byte{0x02},
				Body: types.BeaconBlockBody{
					ProposerSlashings: []*types.ProposerSlashing{},
					Attestations:      []*types.Attestation{},
					Deposits:          []*types.Deposit{{Amount: 32e9}},
					Exits:             []*types.Exit{{Epoch: 1, ValidatorIndex: 4}},
				},
			}
			root, err := SaveBlock(store, want)
			require.NoError(t, err)

			loaded, err := Block(store, root)
			require.NoError(t, err)
			require.NotNil(t, loaded)
			diff, equal := messagediff.PrettyDiff(want, loaded)
			require.True(t, equal, "loaded block differs: %s", diff)

			missing, err := Block(store, [32]byte{0xff})
			require.NoError(t, err)
			require.Nil(t, missing, "unknown root must read as nil")
		})
	}
}

func TestValidatorPubkey(t *testing.T) {
	for name, store := range setupDatabases(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := ValidatorPubkey(store, 3)
			require.NoError(t, err)
			require.False(t, ok)

			pubkey := [48]byte{0xaa, 0xbb}
			require.NoError(t, SaveValidatorPubkey(store, 3, pubkey))

			got, ok, err := ValidatorPubkey(store, 3)
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, pubkey, got)

			// Neighbouring indices stay independent.
			_, ok, err = ValidatorPubkey(store, 4)
			require.NoError(t, err)
			require.False(t, ok)
		})
	}
}
