package merkle

import (
	"encoding/hex"

	"go.dedis.ch/statedb"
	"go.dedis.ch/statedb/core/store/kv"
	"golang.org/x/xerrors"
)

// Prune removes the nodes that the root does not share with the rest of the
// tracked states and returns the hex hashes of the nodes deleted.
//
// A root without successor is a tip: the nodes written by its update are
// removed and the root is detached from its parent. A root with exactly one
// successor loses the nodes the successor replaced. A root with more than one
// successor is a fork point and is left untouched. Nodes written more than once
// only have their reference count decremented.
func Prune(db kv.DB, root string) ([]string, error) {
	key, err := decodeHash(root)
	if err != nil {
		return nil, err
	}

	logger := statedb.Logger.With().Str("component", "prune").Str("root", root).Logger()

	var removed []string
	var kind string

	err = doUpdate(db, func(tx kv.WritableTx) error {
		removed = nil

		entry, found, err := readChangeLog(tx, key)
		if err != nil {
			return err
		}

		if !found {
			kind = "untracked"
			return nil
		}

		switch len(entry.Successors) {
		case 0:
			kind = "tip"

			removed, err = removeNodes(tx, entry.Additions)
			if err != nil {
				return err
			}

			err = deleteChangeLog(tx, key)
			if err != nil {
				return err
			}

			return detachFromParent(tx, entry.Parent, key)
		case 1:
			kind = "linear"

			removed, err = removeNodes(tx, entry.Successors[0].Deletions)
			if err != nil {
				return err
			}

			return deleteChangeLog(tx, key)
		default:
			kind = "fork"
			return nil
		}
	})
	if err != nil {
		return nil, xerrors.Errorf("failed to prune %s: %w", root, err)
	}

	promPrunes.WithLabelValues(kind).Inc()
	promNodesPruned.Add(float64(len(removed)))

	logger.Debug().Str("kind", kind).Int("removed", len(removed)).Msg("pruned")

	return removed, nil
}

// Prune removes the nodes of the root like the package function and evicts
// them from the cache of the trie.
func (t *Trie) Prune(root string) ([]string, error) {
	removed, err := Prune(t.db, root)
	if err != nil {
		return nil, err
	}

	if t.cache != nil {
		for _, hash := range removed {
			t.cache.Del([]byte(hash))
		}
	}

	return removed, nil
}

// removeNodes deletes the nodes that were written once and decrements the
// reference count of the others. The candidates are processed in order so
// that a hash listed twice is first decremented then deleted.
func removeNodes(tx kv.WritableTx, candidates [][]byte) ([]string, error) {
	bucket, err := tx.GetBucketOrCreate(mainBucket)
	if err != nil {
		return nil, xerrors.Errorf("%v: %w", err, ErrDatabase)
	}

	removed := make([]string, 0, len(candidates))

	for _, hash := range candidates {
		count, err := readRefCount(tx, hash)
		if err != nil {
			return nil, err
		}

		if count > 0 {
			err = writeRefCount(tx, hash, count-1)
			if err != nil {
				return nil, err
			}

			continue
		}

		key := []byte(hex.EncodeToString(hash))

		if bucket.Get(key) == nil {
			statedb.Logger.Debug().Msgf("attempting to delete a missing entry: %s", key)
			continue
		}

		err = bucket.Delete(key)
		if err != nil {
			return nil, xerrors.Errorf("failed to delete node %s: %v: %w", key, err, ErrDatabase)
		}

		removed = append(removed, string(key))
	}

	return removed, nil
}

// detachFromParent removes the root from the successors of its parent, if the
// parent is still tracked.
func detachFromParent(tx kv.WritableTx, parent, root []byte) error {
	if len(parent) == 0 {
		return nil
	}

	entry, found, err := readChangeLog(tx, parent)
	if err != nil {
		return err
	}

	if !found || !entry.removeSuccessor(root) {
		return nil
	}

	return writeChangeLog(tx, parent, entry)
}
