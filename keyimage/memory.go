package keyimage

import (
	"sync"

	"git.gammaspectra.live/WATTx/privacy/crypto"
	"git.gammaspectra.live/WATTx/privacy/types"
	"github.com/dolthub/swiss"
)

type MemoryStore struct {
	lock    sync.RWMutex
	entries *swiss.Map[crypto.KeyImage, Entry]
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: swiss.NewMap[crypto.KeyImage, Entry](1024),
	}
}

func (s *MemoryStore) IsSpent(keyImage crypto.KeyImage) (bool, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.entries.Has(keyImage), nil
}

func (s *MemoryStore) Get(keyImage crypto.KeyImage) (Entry, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	if e, ok := s.entries.Get(keyImage); ok {
		return e, nil
	}
	return Entry{}, ErrNotFound
}

func (s *MemoryStore) MarkSpent(keyImage crypto.KeyImage, txHash types.Hash, height int32) (bool, error) {
	if !keyImage.IsValid() {
		return false, crypto.ErrInvalidKeyImage
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.entries.Has(keyImage) {
		return false, nil
	}
	s.entries.Put(keyImage, Entry{TxHash: txHash, Height: height})
	return true, nil
}

func (s *MemoryStore) UnmarkSpent(keyImage crypto.KeyImage) (bool, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.entries.Delete(keyImage), nil
}

func (s *MemoryStore) WriteKeyImages(spends []Spend) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	err := checkSpends(spends, func(keyImage crypto.KeyImage) (bool, error) {
		return s.entries.Has(keyImage), nil
	})
	if err != nil {
		return err
	}
	for i := range spends {
		s.entries.Put(spends[i].KeyImage, spends[i].Entry)
	}
	return nil
}

func (s *MemoryStore) EraseKeyImages(keyImages []crypto.KeyImage) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	for _, k := range keyImages {
		s.entries.Delete(k)
	}
	return nil
}

func (s *MemoryStore) Count() (uint64, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return uint64(s.entries.Count()), nil
}

func (s *MemoryStore) Close() error {
	return nil
}
