package chainstate

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sync"
	"time"

	"git.gammaspectra.live/WATTx/privacy/crypto"
	"git.gammaspectra.live/WATTx/privacy/crypto/ringct"
	"git.gammaspectra.live/WATTx/privacy/curvetree"
	"git.gammaspectra.live/WATTx/privacy/keyimage"
	"git.gammaspectra.live/WATTx/privacy/utils"
	"go.etcd.io/bbolt"
)

var ErrNotTip = errors.New("block is not the tip")

// BlockUndo What ConnectBlock changed, enough for DisconnectBlock to revert it
type BlockUndo struct {
	Height int32            `json:"height"`
	Spends []keyimage.Spend `json:"spends"`
	// OutputStart Tree output count before the block
	OutputStart uint64 `json:"output_start"`
	OutputCount uint64 `json:"output_count"`
}

func (u *BlockUndo) keyImages() []crypto.KeyImage {
	keyImages := make([]crypto.KeyImage, len(u.Spends))
	for i := range u.Spends {
		keyImages[i] = u.Spends[i].KeyImage
	}
	return keyImages
}

// State Spent key images and the output curve tree, updated together per block.
// Block connects and disconnects are serialized, queries may run concurrently between them.
type State struct {
	lock sync.RWMutex

	config    Config
	keyImages keyimage.Store
	tree      *curvetree.CurveTree

	// db Shared database of the bolt backend, block updates commit both stores in one of its transactions
	db            *bbolt.DB
	boltKeyImages *keyimage.BoltStore
	boltStorage   *curvetree.BoltStorage

	// treeHook Runs between the key image and the tree update of a block
	treeHook func() error
}

// Open Creates the stores selected by config
func Open(config Config) (*State, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	ctx, err := crypto.NewContext(crypto.CurveTreeDomain, config.HashToPointCacheSize)
	if err != nil {
		return nil, err
	}
	hasher, err := curvetree.NewPedersenHash(ctx)
	if err != nil {
		return nil, err
	}

	var storage curvetree.Storage
	var keyImages keyimage.Store
	var db *bbolt.DB
	var boltStorage *curvetree.BoltStorage
	var boltKeyImages *keyimage.BoltStore

	switch config.Backend {
	case BackendMemory:
		storage = curvetree.NewMemoryStorage()
		keyImages = keyimage.NewMemoryStore()
	case BackendBolt:
		if err = os.MkdirAll(config.DataDir, 0o700); err != nil {
			return nil, err
		}
		path := filepath.Join(config.DataDir, DatabaseFile)
		if db, err = bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second * 5}); err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		if boltStorage, err = curvetree.NewBoltStorage(db); err != nil {
			_ = db.Close()
			return nil, err
		}
		if boltKeyImages, err = keyimage.NewBoltStore(db); err != nil {
			_ = db.Close()
			return nil, err
		}
		storage, keyImages = boltStorage, boltKeyImages
		utils.Logf("ChainState", "Opened database at %s", path)
	}

	tree, err := curvetree.NewCurveTree(storage, hasher)
	if err != nil {
		if db != nil {
			_ = db.Close()
		}
		return nil, err
	}

	s := New(config, keyImages, tree)
	s.db, s.boltStorage, s.boltKeyImages = db, boltStorage, boltKeyImages
	return s, nil
}

// New Uses already opened stores
func New(config Config, keyImages keyimage.Store, tree *curvetree.CurveTree) *State {
	return &State{
		config:    config,
		keyImages: keyImages,
		tree:      tree,
	}
}

func (s *State) Config() Config {
	return s.config
}

func (s *State) Tree() *curvetree.CurveTree {
	return s.tree
}

func (s *State) KeyImages() keyimage.Store {
	return s.keyImages
}

func (s *State) runTreeHook() error {
	if s.treeHook != nil {
		return s.treeHook()
	}
	return nil
}

// reloadTree Resynchronizes the tree with storage after a transaction it wrote to was rolled back
func (s *State) reloadTree(expectedCount uint64) error {
	if s.tree.OutputCount() == expectedCount {
		return nil
	}
	if err := s.tree.Load(); err != nil {
		return fmt.Errorf("reload tree: %w", err)
	}
	return nil
}

// ConnectBlock Marks the block spends at height and appends its outputs to the tree.
// Spent or repeated key images reject the block before anything is written.
// With the bolt backend both stores are written in one database transaction.
// Otherwise the key images written for this block are erased again if the tree rejects the outputs.
func (s *State) ConnectBlock(height int32, spends []keyimage.Spend, outputs []curvetree.OutputTuple) (*BlockUndo, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	undo := &BlockUndo{
		Height:      height,
		Spends:      make([]keyimage.Spend, len(spends)),
		OutputStart: s.tree.OutputCount(),
		OutputCount: uint64(len(outputs)),
	}
	for i := range spends {
		undo.Spends[i] = spends[i]
		undo.Spends[i].Height = height
	}

	for i := range outputs {
		if !outputs[i].IsValid() {
			return nil, fmt.Errorf("output %d: %w", i, curvetree.ErrInvalidOutput)
		}
	}

	var err error
	if s.db != nil {
		err = s.connectTx(undo, outputs)
	} else {
		err = s.connect(undo, outputs)
	}
	if err != nil {
		return nil, fmt.Errorf("block %d: %w", height, err)
	}

	utils.Logf("ChainState", "Connected block %d: %d key images, %d outputs", height, len(undo.Spends), len(outputs))
	return undo, nil
}

func (s *State) connectTx(undo *BlockUndo, outputs []curvetree.OutputTuple) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if err := s.boltKeyImages.WriteKeyImagesTx(tx, undo.Spends); err != nil {
			return err
		}
		if err := s.runTreeHook(); err != nil {
			return err
		}
		if len(outputs) == 0 {
			return nil
		}
		return s.boltStorage.RunInTx(tx, func() error {
			_, err := s.tree.AddOutputs(outputs)
			return err
		})
	})
	if err != nil {
		utils.Errorf("ChainState", "Block %d: update rolled back: %s", undo.Height, err)
		return errors.Join(err, s.reloadTree(undo.OutputStart))
	}
	return nil
}

func (s *State) connect(undo *BlockUndo, outputs []curvetree.OutputTuple) error {
	if err := s.keyImages.WriteKeyImages(undo.Spends); err != nil {
		return err
	}

	err := s.runTreeHook()
	if err == nil && len(outputs) > 0 {
		_, err = s.tree.AddOutputs(outputs)
	}
	if err != nil {
		utils.Errorf("ChainState", "Block %d: tree update failed, rolling back %d key images: %s", undo.Height, len(undo.Spends), err)
		if eraseErr := s.keyImages.EraseKeyImages(undo.keyImages()); eraseErr != nil {
			return errors.Join(err, fmt.Errorf("rollback: %w", eraseErr))
		}
		return err
	}
	return nil
}

// DisconnectBlock Reverts a ConnectBlock. Blocks must be disconnected in reverse order.
func (s *State) DisconnectBlock(undo *BlockUndo) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	end := undo.OutputStart + undo.OutputCount
	if s.tree.OutputCount() != end {
		return fmt.Errorf("%w: block %d ends at output %d, tree has %d", ErrNotTip, undo.Height, end, s.tree.OutputCount())
	}

	var err error
	if s.db != nil {
		err = s.disconnectTx(undo)
	} else {
		err = s.disconnect(undo)
	}
	if err != nil {
		return fmt.Errorf("block %d: %w", undo.Height, err)
	}

	utils.Logf("ChainState", "Disconnected block %d: %d key images, %d outputs", undo.Height, len(undo.Spends), undo.OutputCount)
	return nil
}

func (s *State) disconnectTx(undo *BlockUndo) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if err := s.boltKeyImages.EraseKeyImagesTx(tx, undo.keyImages()); err != nil {
			return err
		}
		if err := s.runTreeHook(); err != nil {
			return err
		}
		return s.boltStorage.RunInTx(tx, func() error {
			return s.tree.Truncate(undo.OutputStart)
		})
	})
	if err != nil {
		utils.Errorf("ChainState", "Block %d: disconnect rolled back: %s", undo.Height, err)
		return errors.Join(err, s.reloadTree(undo.OutputStart+undo.OutputCount))
	}
	return nil
}

func (s *State) disconnect(undo *BlockUndo) error {
	if err := s.keyImages.EraseKeyImages(undo.keyImages()); err != nil {
		return err
	}

	err := s.runTreeHook()
	if err == nil {
		err = s.tree.Truncate(undo.OutputStart)
	}
	if err != nil {
		utils.Errorf("ChainState", "Block %d: tree truncate failed, restoring %d key images: %s", undo.Height, len(undo.Spends), err)
		if writeErr := s.keyImages.WriteKeyImages(undo.Spends); writeErr != nil {
			return errors.Join(err, fmt.Errorf("rollback: %w", writeErr))
		}
		return err
	}
	return nil
}

// CheckKeyImages Fails with keyimage.ErrAlreadySpent or keyimage.ErrDuplicateKeyImage if any of keyImages cannot be spent
func (s *State) CheckKeyImages(keyImages ...crypto.KeyImage) error {
	s.lock.RLock()
	defer s.lock.RUnlock()

	seen := make(map[crypto.KeyImage]struct{}, len(keyImages))
	for _, k := range keyImages {
		if !k.IsValid() {
			return crypto.ErrInvalidKeyImage
		}
		if _, ok := seen[k]; ok {
			return keyimage.ErrDuplicateKeyImage
		}
		seen[k] = struct{}{}
		if spent, err := s.keyImages.IsSpent(k); err != nil {
			return err
		} else if spent {
			return fmt.Errorf("%w: %s", keyimage.ErrAlreadySpent, k)
		}
	}
	return nil
}

func (s *State) IsSpent(keyImage crypto.KeyImage) (bool, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.keyImages.IsSpent(keyImage)
}

func (s *State) Root() (crypto.PublicKeyBytes, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.tree.Root()
}

// VerifyMembership Checks branch proves output against the current root
func (s *State) VerifyMembership(output curvetree.OutputTuple, branch *curvetree.TreeBranch) (bool, error) {
	root, err := s.Root()
	if err != nil {
		return false, err
	}
	return curvetree.VerifyBranch(s.tree.Hasher(), output, branch, root), nil
}

// DecoySelector Selector over provider using the configured parameters. A nil rng is seeded randomly.
func (s *State) DecoySelector(provider ringct.DecoyProvider, rng *rand.Rand) *ringct.DecoySelector {
	return ringct.NewDecoySelector(provider, s.config.Decoys, rng)
}

func (s *State) Close() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	err := errors.Join(s.tree.Storage().Close(), s.keyImages.Close())
	if s.db != nil {
		err = errors.Join(err, s.db.Close())
		s.db, s.boltStorage, s.boltKeyImages = nil, nil, nil
	}
	return err
}
