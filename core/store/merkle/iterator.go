package merkle

import (
	"go.dedis.ch/statedb/core/store/kv"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"golang.org/x/xerrors"
)

type frame struct {
	address string
	node    Node
}

// LeafIterator enumerates the addresses with a value under a prefix, in
// ascending order. It reads the state the trie was at when the iterator was
// created.
//
//	iter, err := trie.Leaves("ab")
//	for iter.Next() {
//		fmt.Println(iter.Address(), iter.Value())
//	}
//	err = iter.Err()
type LeafIterator struct {
	trie    *Trie
	stack   []frame
	address string
	value   []byte
	err     error
}

// Leaves returns an iterator over the values stored under the prefix. It
// returns ErrNotFound if no node exists at the prefix.
func (t *Trie) Leaves(prefix string) (*LeafIterator, error) {
	node, err := t.getByAddress(prefix)
	if err != nil {
		return nil, err
	}

	iter := &LeafIterator{
		trie:  t,
		stack: []frame{{address: prefix, node: node}},
	}

	return iter, nil
}

// Next moves to the next leaf and returns true, or false when the enumeration
// is over or failed.
func (it *LeafIterator) Next() bool {
	for len(it.stack) > 0 && it.err == nil {
		top := it.stack[len(it.stack)-1]
		it.stack = it.stack[:len(it.stack)-1]

		if len(top.node.Children) > 0 {
			it.err = doView(it.trie.db, func(tx kv.ReadableTx) error {
				return it.push(tx, top)
			})
			if it.err != nil {
				return false
			}
		}

		if top.node.HasValue() {
			it.address = top.address
			it.value = top.node.Value
			return true
		}
	}

	return false
}

// push adds the children of the frame to the stack so that the smallest token
// is popped first.
func (it *LeafIterator) push(tx kv.ReadableTx, parent frame) error {
	tokens := sortedTokens(parent.node)

	for i := len(tokens) - 1; i >= 0; i-- {
		hash := parent.node.Children[tokens[i]]

		child, err := it.trie.getNode(tx, hash)
		if err != nil {
			return xerrors.Errorf("failed to load %s: %w", parent.address+tokens[i], err)
		}

		it.stack = append(it.stack, frame{address: parent.address + tokens[i], node: child})
	}

	return nil
}

// Address returns the address of the current leaf.
func (it *LeafIterator) Address() string {
	return it.address
}

// Value returns the value of the current leaf.
func (it *LeafIterator) Value() []byte {
	return it.value
}

// Err returns the error that stopped the enumeration, if any.
func (it *LeafIterator) Err() error {
	return it.err
}

// ForEachLeaf calls fn for each value stored under the prefix, in ascending
// address order, within a single read transaction. It stops at the first
// error returned by fn.
func (t *Trie) ForEachLeaf(prefix string, fn func(address string, value []byte) error) error {
	err := validateAddress(prefix)
	if err != nil {
		return err
	}

	rootHash, root := t.current()

	return doView(t.db, func(tx kv.ReadableTx) error {
		node, err := t.walk(tx, root, prefix)
		if err != nil {
			return xerrors.Errorf("address '%s' from root %s: %w", prefix, rootHash, err)
		}

		stack := []frame{{address: prefix, node: node}}

		for len(stack) > 0 {
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			tokens := sortedTokens(top.node)
			for i := len(tokens) - 1; i >= 0; i-- {
				child, err := t.getNode(tx, top.node.Children[tokens[i]])
				if err != nil {
					return xerrors.Errorf("failed to load %s: %w", top.address+tokens[i], err)
				}

				stack = append(stack, frame{address: top.address + tokens[i], node: child})
			}

			if top.node.HasValue() {
				err = fn(top.address, top.node.Value)
				if err != nil {
					return err
				}
			}
		}

		return nil
	})
}

// Addresses returns the addresses holding a value under the prefix.
func (t *Trie) Addresses(prefix string) ([]string, error) {
	var addresses []string

	err := t.ForEachLeaf(prefix, func(address string, _ []byte) error {
		addresses = append(addresses, address)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return addresses, nil
}

func sortedTokens(node Node) []string {
	tokens := maps.Keys(node.Children)
	slices.Sort(tokens)

	return tokens
}
