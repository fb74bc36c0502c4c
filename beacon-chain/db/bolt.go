package db

import (
	"os"
	"path"
	"time"

	"github.com/boltdb/bolt"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("prefix", "db")

var (
	dbWrites = promauto.NewCounter(prometheus.CounterOpts{
		Name: "beacondb_writes_total",
		Help: "Number of key writes to the beacon database",
	})
	dbReads = promauto.NewCounter(prometheus.CounterOpts{
		Name: "beacondb_reads_total",
		Help: "Number of key reads from the beacon database",
	})
)

const databaseFileName = "beaconchain.db"

type boltDB struct {
	db           *bolt.DB
	databasePath string
}

func newBoltDB(dirPath string) (*boltDB, error) {
	if err := os.MkdirAll(dirPath, 0700); err != nil {
		return nil, errors.Wrap(err, "could not create database directory")
	}
	datafile := path.Join(dirPath, databaseFileName)
	boltdb, err := bolt.Open(datafile, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		if err == bolt.ErrTimeout {
			return nil, errors.New("cannot obtain database lock, database may be in use by another process")
		}
		return nil, err
	}

	db := &boltDB{db: boltdb, databasePath: dirPath}
	if err := db.db.Update(func(tx *bolt.Tx) error {
		for _, column := range [][]byte{chainInfoColumn, blockColumn, validatorColumn} {
			if _, err := tx.CreateBucketIfNotExists(column); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return nil, errors.Wrap(err, "could not create buckets")
	}
	log.WithField("path", datafile).Info("Opened beacon database")
	return db, nil
}

func (b *boltDB) Put(column []byte, key []byte, value []byte) error {
	dbWrites.Inc()
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(column)
		if err != nil {
			return err
		}
		return bucket.Put(key, value)
	})
}

func (b *boltDB) Get(column []byte, key []byte) ([]byte, error) {
	dbReads.Inc()
	var value []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(column)
		if bucket == nil {
			return nil
		}
		if enc := bucket.Get(key); enc != nil {
			// Bolt-owned memory is only valid inside the transaction.
			value = make([]byte, len(enc))
			copy(value, enc)
		}
		return nil
	})
	return value, err
}

func (b *boltDB) Delete(column []byte, key []byte) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(column)
		if bucket == nil {
			return nil
		}
		return bucket.Delete(key)
	})
}

func (b *boltDB) Close() error {
	log.Debug("Closing beacon database")
	return b.db.Close()
}
