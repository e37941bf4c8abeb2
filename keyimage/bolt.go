package keyimage

import (
	"fmt"
	"time"

	"git.gammaspectra.live/WATTx/privacy/crypto"
	"git.gammaspectra.live/WATTx/privacy/types"
	"git.gammaspectra.live/WATTx/privacy/utils"
	"go.etcd.io/bbolt"
)

var boltBucket = []byte("keyimages")

// BoltStore Persistent Store keyed by the compressed key image
type BoltStore struct {
	db    *bbolt.DB
	owned bool
}

func OpenBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second * 5})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	s, err := NewBoltStore(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s.owned = true
	utils.Logf("KeyImage", "Opened bolt store at %s", path)
	return s, nil
}

// NewBoltStore Uses an already open database. Close does not close db.
func NewBoltStore(db *bbolt.DB) (*BoltStore, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(boltBucket)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create bucket: %w", err)
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) IsSpent(keyImage crypto.KeyImage) (spent bool, err error) {
	err = s.db.View(func(tx *bbolt.Tx) error {
		spent = tx.Bucket(boltBucket).Get(keyImage[:]) != nil
		return nil
	})
	return spent, err
}

func (s *BoltStore) Get(keyImage crypto.KeyImage) (e Entry, err error) {
	err = s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(boltBucket).Get(keyImage[:])
		if v == nil {
			return ErrNotFound
		}
		return e.UnmarshalBinary(v)
	})
	return e, err
}

func (s *BoltStore) MarkSpent(keyImage crypto.KeyImage, txHash types.Hash, height int32) (written bool, err error) {
	if !keyImage.IsValid() {
		return false, crypto.ErrInvalidKeyImage
	}
	err = s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(boltBucket)
		if b.Get(keyImage[:]) != nil {
			return nil
		}
		data, _ := Entry{TxHash: txHash, Height: height}.MarshalBinary()
		written = true
		return b.Put(keyImage[:], data)
	})
	if err != nil {
		return false, err
	}
	return written, nil
}

func (s *BoltStore) UnmarkSpent(keyImage crypto.KeyImage) (found bool, err error) {
	err = s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(boltBucket)
		if b.Get(keyImage[:]) == nil {
			return nil
		}
		found = true
		return b.Delete(keyImage[:])
	})
	if err != nil {
		return false, err
	}
	return found, nil
}

func (s *BoltStore) WriteKeyImages(spends []Spend) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return s.WriteKeyImagesTx(tx, spends)
	})
}

// WriteKeyImagesTx As WriteKeyImages, inside a write transaction owned by the caller
func (s *BoltStore) WriteKeyImagesTx(tx *bbolt.Tx, spends []Spend) error {
	b := tx.Bucket(boltBucket)
	err := checkSpends(spends, func(keyImage crypto.KeyImage) (bool, error) {
		return b.Get(keyImage[:]) != nil, nil
	})
	if err != nil {
		return err
	}
	for i := range spends {
		data, _ := spends[i].Entry.MarshalBinary()
		if err = b.Put(spends[i].KeyImage[:], data); err != nil {
			return err
		}
	}
	return nil
}

func (s *BoltStore) EraseKeyImages(keyImages []crypto.KeyImage) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return s.EraseKeyImagesTx(tx, keyImages)
	})
}

// EraseKeyImagesTx As EraseKeyImages, inside a write transaction owned by the caller
func (s *BoltStore) EraseKeyImagesTx(tx *bbolt.Tx, keyImages []crypto.KeyImage) error {
	b := tx.Bucket(boltBucket)
	for _, k := range keyImages {
		if err := b.Delete(k[:]); err != nil {
			return err
		}
	}
	return nil
}

// DB Database the store lives in
func (s *BoltStore) DB() *bbolt.DB {
	return s.db
}

func (s *BoltStore) Count() (count uint64, err error) {
	err = s.db.View(func(tx *bbolt.Tx) error {
		count = uint64(tx.Bucket(boltBucket).Stats().KeyN)
		return nil
	})
	return count, err
}

func (s *BoltStore) Close() error {
	if s.owned {
		return s.db.Close()
	}
	return nil
}
