package chainstate

import (
	"errors"
	"fmt"

	"git.gammaspectra.live/WATTx/privacy/crypto"
	"git.gammaspectra.live/WATTx/privacy/crypto/ringct"
	"git.gammaspectra.live/WATTx/privacy/utils"
)

const (
	BackendMemory = "memory"
	BackendBolt   = "bolt"
)

// DatabaseFile Name of the bbolt database inside Config.DataDir
const DatabaseFile = "privacy.db"

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	// DataDir Directory holding the database, required by the bolt backend
	DataDir string `json:"data_dir"`
	// Backend is either "memory" or "bolt"
	Backend string `json:"backend"`

	HashToPointCacheSize int `json:"hash_to_point_cache_size"`

	Decoys ringct.DecoySelectionParams `json:"decoys"`
}

func DefaultConfig() Config {
	return Config{
		Backend:              BackendMemory,
		HashToPointCacheSize: crypto.DefaultHashToPointCacheSize,
		Decoys:               ringct.DefaultDecoySelectionParams(),
	}
}

// LoadConfig Reads a JSON config from path. Fields absent from the file keep their DefaultConfig value.
func LoadConfig(path string) (Config, error) {
	c := DefaultConfig()
	if err := utils.LoadJSONFile(path, &c); err != nil {
		return c, fmt.Errorf("load config %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return c, err
	}
	return c, nil
}

func (c Config) Validate() error {
	switch c.Backend {
	case BackendMemory:
	case BackendBolt:
		if c.DataDir == "" {
			return fmt.Errorf("%w: bolt backend requires data_dir", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown backend %q", ErrInvalidConfig, c.Backend)
	}
	if c.HashToPointCacheSize < 0 {
		return fmt.Errorf("%w: negative hash_to_point_cache_size", ErrInvalidConfig)
	}
	if c.Decoys.MinConfirmations < 0 || c.Decoys.MaxConfirmations < 0 {
		return fmt.Errorf("%w: negative decoy confirmations", ErrInvalidConfig)
	}
	if c.Decoys.AmountSimilarity < 0 || c.Decoys.AmountSimilarity > 1 {
		return fmt.Errorf("%w: amount_similarity out of [0, 1]", ErrInvalidConfig)
	}
	return nil
}
