package merkle

import (
	"encoding/hex"
	"sort"

	"go.dedis.ch/statedb/core/store/kv"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"golang.org/x/xerrors"
)

// record is a node to be written by an update.
type record struct {
	hash string
	data []byte
}

// batch is the result of an update computation.
type batch struct {
	root      string
	records   []record
	deletions map[string]struct{}
}

// Set sets the value at the address and persists the new state. It returns
// the new root without moving the trie to it.
func (t *Trie) Set(address string, value []byte) (string, error) {
	return t.Update(map[string][]byte{address: value}, nil, false)
}

// Delete removes the value at the address and persists the new state. It
// returns the new root without moving the trie to it.
func (t *Trie) Delete(address string) (string, error) {
	return t.Update(nil, []string{address}, false)
}

// Update applies the sets and the deletes to the state of the trie and returns
// the root of the resulting state. A nil value is stored as an empty one. The
// trie keeps reading the current state.
//
// When virtual is true, nothing is written and the returned root cannot be
// loaded. Otherwise the new nodes, the reference counts of the nodes written
// more than once and the change log entries are written in one transaction.
// Every delete must address an existing node.
func (t *Trie) Update(sets map[string][]byte, deletes []string, virtual bool) (string, error) {
	for address := range sets {
		err := validateAddress(address)
		if err != nil {
			return "", err
		}
	}

	for _, address := range deletes {
		err := validateAddress(address)
		if err != nil {
			return "", err
		}

		if address == "" {
			return "", xerrors.Errorf("root cannot be deleted: %w", ErrInvalidAddress)
		}
	}

	rootHash, rootNode := t.current()

	var b batch

	if virtual {
		err := doView(t.db, func(tx kv.ReadableTx) error {
			var err error
			b, err = t.compute(tx, rootNode, sets, deletes)
			return err
		})
		if err != nil {
			return "", xerrors.Errorf("failed to compute update: %w", err)
		}

		promUpdates.WithLabelValues("virtual").Inc()

		return b.root, nil
	}

	err := doUpdate(t.db, func(tx kv.WritableTx) error {
		var err error
		b, err = t.compute(tx, rootNode, sets, deletes)
		if err != nil {
			return xerrors.Errorf("failed to compute update: %w", err)
		}

		if b.root == rootHash {
			return nil
		}

		return t.persist(tx, rootHash, b)
	})
	if err != nil {
		return "", err
	}

	promUpdates.WithLabelValues("persisted").Inc()

	t.logger.Debug().
		Str("root", rootHash).
		Str("successor", b.root).
		Int("sets", len(sets)).
		Int("deletes", len(deletes)).
		Int("nodes", len(b.records)).
		Msg("update persisted")

	return b.root, nil
}

// compute returns the nodes of the new state and the nodes of the current
// state that they replace.
func (t *Trie) compute(tx kv.ReadableTx, rootNode Node,
	sets map[string][]byte, deletes []string) (batch, error) {

	paths := map[string]Node{"": rootNode.clone()}

	addresses := maps.Keys(sets)
	slices.Sort(addresses)

	for _, address := range addresses {
		err := t.loadPath(tx, rootNode, address, false, paths)
		if err != nil {
			return batch{}, err
		}

		value := sets[address]
		if value == nil {
			value = []byte{}
		}

		node := paths[address]
		node.Value = append([]byte{}, value...)
		paths[address] = node
	}

	for _, address := range deletes {
		err := t.loadPath(tx, rootNode, address, true, paths)
		if err != nil {
			return batch{}, err
		}
	}

	deletions := make(map[string]struct{})

	for _, address := range deletes {
		delete(paths, address)

		parent, branch := parentAndBranch(address)

		for {
			node, found := paths[parent]
			if !found {
				// The ancestor was already dropped by a previous delete.
				break
			}

			hash, found := node.Children[branch]
			if found {
				deletions[hash] = struct{}{}
				delete(node.Children, branch)
			}

			if parent == "" || node.HasValue() || len(node.Children) > 0 ||
				hasPendingChild(paths, parent) {
				break
			}

			delete(paths, parent)

			parent, branch = parentAndBranch(parent)
		}
	}

	// Paths below a deleted address are discarded with it.
	for path := range paths {
		if !isAttached(paths, path) {
			delete(paths, path)
		}
	}

	sorted := maps.Keys(paths)
	sort.Slice(sorted, func(i, j int) bool {
		if len(sorted[i]) != len(sorted[j]) {
			return len(sorted[i]) > len(sorted[j])
		}

		return sorted[i] < sorted[j]
	})

	b := batch{
		records:   make([]record, 0, len(sorted)),
		deletions: deletions,
	}

	for _, path := range sorted {
		hash, data, err := encodeAndHash(t.hashFactory, paths[path])
		if err != nil {
			return batch{}, err
		}

		b.records = append(b.records, record{hash: hash, data: data})

		if path == "" {
			b.root = hash
			continue
		}

		parent, branch := parentAndBranch(path)

		node := paths[parent]

		prev, found := node.Children[branch]
		if found {
			deletions[prev] = struct{}{}
		}

		node.Children[branch] = hash
	}

	return b, nil
}

// loadPath adds to the paths the nodes from the root to the address that are
// not already present. When strict is false, missing nodes are created empty,
// otherwise it returns ErrNotFound.
func (t *Trie) loadPath(tx kv.ReadableTx, root Node, address string,
	strict bool, paths map[string]Node) error {

	node := root
	path := ""
	branching := false

	for _, token := range tokenize(address) {
		hash, found := node.Children[token]

		if !branching && found {
			var err error

			node, err = t.readNode(tx, hash)
			if err != nil {
				return err
			}
		} else {
			if strict {
				return xerrors.Errorf("address '%s': %w", address, ErrNotFound)
			}

			branching = true
			node = NewNode()
		}

		path += token

		_, found = paths[path]
		if !found {
			paths[path] = node.clone()
		}
	}

	return nil
}

// hasPendingChild returns true if a child of the path is still in the paths.
// Such a child comes from a set of the same update and is wired to its parent
// only once the paths are hashed.
func hasPendingChild(paths map[string]Node, path string) bool {
	for other := range paths {
		if other == "" {
			continue
		}

		parent, _ := parentAndBranch(other)
		if parent == path {
			return true
		}
	}

	return false
}

// isAttached returns true if every ancestor of the path is present.
func isAttached(paths map[string]Node, path string) bool {
	for path != "" {
		path, _ = parentAndBranch(path)

		_, found := paths[path]
		if !found {
			return false
		}
	}

	return true
}

// persist writes the batch computed from the given root.
func (t *Trie) persist(tx kv.WritableTx, rootHash string, b batch) error {
	bucket, err := tx.GetBucketOrCreate(mainBucket)
	if err != nil {
		return xerrors.Errorf("%v: %w", err, ErrDatabase)
	}

	additions := make([][]byte, len(b.records))

	for i, rec := range b.records {
		raw, err := hex.DecodeString(rec.hash)
		if err != nil {
			return xerrors.Errorf("%v: %w", err, ErrInvalidHash)
		}

		additions[i] = raw

		err = bucket.Insert([]byte(rec.hash), rec.data)
		if xerrors.Is(err, kv.ErrKeyExists) {
			count, err := incrementRefCount(tx, raw)
			if err != nil {
				return err
			}

			promDuplicates.Inc()

			t.logger.Debug().Str("node", rec.hash).Uint64("count", count).
				Msg("node already stored")

			continue
		}

		if err != nil {
			return xerrors.Errorf("failed to store node %s: %v: %w", rec.hash, err, ErrDatabase)
		}

		promNodesWritten.Inc()
	}

	b.deletions[rootHash] = struct{}{}

	hashes := maps.Keys(b.deletions)
	slices.Sort(hashes)

	deletions := make([][]byte, len(hashes))
	for i, hash := range hashes {
		deletions[i], err = hex.DecodeString(hash)
		if err != nil {
			return xerrors.Errorf("%v: %w", err, ErrInvalidHash)
		}
	}

	rootKey, err := decodeHash(rootHash)
	if err != nil {
		return err
	}

	newKey, err := decodeHash(b.root)
	if err != nil {
		return err
	}

	current, found, err := readChangeLog(tx, rootKey)
	if err != nil {
		return err
	}

	if found {
		current.Successors = append(current.Successors, Successor{
			Successor: newKey,
			Deletions: deletions,
		})

		err = writeChangeLog(tx, rootKey, current)
		if err != nil {
			return err
		}
	}

	next, found, err := readChangeLog(tx, newKey)
	if err != nil {
		return err
	}

	if found {
		// The state was already reached from another root. Its successors are
		// kept and the additions accumulate so that each write of a node is
		// balanced by one removal.
		next.Parent = rootKey
		next.Additions = append(next.Additions, additions...)
	} else {
		next = ChangeLogEntry{
			Parent:    rootKey,
			Additions: additions,
		}
	}

	return writeChangeLog(tx, newKey, next)
}
