package sweep

import (
	"fmt"

	"github.com/Meesho/BharatMLStack/policy-sweep/internal/config"
	sweeperrors "github.com/Meesho/BharatMLStack/policy-sweep/internal/errors"
	"github.com/Meesho/BharatMLStack/policy-sweep/internal/types"
	"github.com/cespare/xxhash/v2"
	"github.com/spaolacci/murmur3"
	"github.com/zeebo/xxh3"
)

// HashFunc maps a shard key to a 64-bit value. It must give the same result
// across processes and platforms.
type HashFunc func(key string) uint64

func XXHash(key string) uint64 {
	return xxhash.Sum64String(key)
}

func Murmur3(key string) uint64 {
	return murmur3.Sum64([]byte(key))
}

func XXH3(key string) uint64 {
	return xxh3.HashString(key)
}

func HashByName(name string) (HashFunc, error) {
	switch name {
	case "", config.ShardHashXXHash:
		return XXHash, nil
	case config.ShardHashMurmur:
		return Murmur3, nil
	case config.ShardHashXXH3:
		return XXH3, nil
	default:
		return nil, fmt.Errorf("%w: %q", sweeperrors.ErrUnsupportedHash, name)
	}
}

// Partition splits rows into n shards by hash of "<store>|<item>" mod n.
// Rows keep their relative order inside a shard.
func Partition(rows []types.ScoringRow, n int, hash HashFunc) [][]types.ScoringRow {
	if n <= 1 {
		return [][]types.ScoringRow{rows}
	}
	shards := make([][]types.ScoringRow, n)
	for i := range rows {
		s := hash(rows[i].Key().ShardKey()) % uint64(n)
		shards[s] = append(shards[s], rows[i])
	}
	return shards
}

// checkUnique rejects a day that holds the same store/item more than once.
func checkUnique(rows []types.ScoringRow) error {
	seen := make(map[types.Key]int, len(rows))
	for i := range rows {
		k := rows[i].Key()
		if j, dup := seen[k]; dup {
			return fmt.Errorf("%w: %s at rows %d and %d", sweeperrors.ErrDuplicateKey, k, j, i)
		}
		seen[k] = i
	}
	return nil
}
