package merkle

import (
	"encoding/hex"

	"github.com/fxamacker/cbor/v2"
	"go.dedis.ch/statedb/crypto"
	"golang.org/x/xerrors"
)

const (
	valueKey    = "v"
	childrenKey = "c"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("cbor encoding mode: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		DupMapKey: cbor.DupMapKeyEnforcedAPF,
	}.DecMode()
	if err != nil {
		panic("cbor decoding mode: " + err.Error())
	}
}

// Node is a node of the trie. A nil value means the node only exists as a
// branch point. Children maps an edge label to the hex hash of the child.
type Node struct {
	Value    []byte
	Children map[string]string
}

// NewNode returns a node without value nor children.
func NewNode() Node {
	return Node{Children: make(map[string]string)}
}

// HasValue returns true if a value is set, even an empty one.
func (n Node) HasValue() bool {
	return n.Value != nil
}

// clone returns a copy of the node that can be modified without altering the
// original.
func (n Node) clone() Node {
	children := make(map[string]string, len(n.Children))
	for token, hash := range n.Children {
		children[token] = hash
	}

	return Node{Value: n.Value, Children: children}
}

// EncodeNode returns the canonical encoding of the node: a CBOR map with the
// sorted keys "c" and "v". Structurally equal nodes are encoded identically.
func EncodeNode(n Node) ([]byte, error) {
	children := n.Children
	if children == nil {
		children = map[string]string{}
	}

	data, err := encMode.Marshal(map[string]interface{}{
		childrenKey: children,
		valueKey:    n.Value,
	})
	if err != nil {
		return nil, xerrors.Errorf("failed to encode node: %v", err)
	}

	return data, nil
}

// DecodeNode parses the canonical encoding of a node. It fails with
// ErrInvalidRecord if the data is not a map with a byte string or null value
// and optionally a map of text children. Null children are rejected.
func DecodeNode(data []byte) (Node, error) {
	var fields map[string]cbor.RawMessage

	err := decMode.Unmarshal(data, &fields)
	if err != nil {
		return Node{}, xerrors.Errorf("%v: %w", err, ErrInvalidRecord)
	}

	rawValue, found := fields[valueKey]
	if !found {
		return Node{}, xerrors.Errorf("missing value: %w", ErrInvalidRecord)
	}

	node := NewNode()

	err = decMode.Unmarshal(rawValue, &node.Value)
	if err != nil {
		return Node{}, xerrors.Errorf("value: %v: %w", err, ErrInvalidRecord)
	}

	rawChildren, found := fields[childrenKey]
	if found {
		if isNull(rawChildren) {
			return Node{}, xerrors.Errorf("children: null: %w", ErrInvalidRecord)
		}

		err = decMode.Unmarshal(rawChildren, &node.Children)
		if err != nil {
			return Node{}, xerrors.Errorf("children: %v: %w", err, ErrInvalidRecord)
		}

		if node.Children == nil {
			node.Children = make(map[string]string)
		}
	}

	return node, nil
}

// isNull returns true if the item is the CBOR null or undefined value.
func isNull(raw cbor.RawMessage) bool {
	return len(raw) == 1 && (raw[0] == 0xf6 || raw[0] == 0xf7)
}

// hashData returns the hex identifier of the encoded node.
func hashData(fac crypto.HashFactory, data []byte) string {
	h := fac.New()
	h.Write(data)

	return hex.EncodeToString(h.Sum(nil))
}

// encodeAndHash returns the identifier and the encoding of the node.
func encodeAndHash(fac crypto.HashFactory, n Node) (string, []byte, error) {
	data, err := EncodeNode(n)
	if err != nil {
		return "", nil, err
	}

	return hashData(fac, data), data, nil
}

// decodeHash returns the raw bytes of a hex identifier, or ErrInvalidHash.
func decodeHash(hash string) ([]byte, error) {
	raw, err := hex.DecodeString(hash)
	if err != nil {
		return nil, xerrors.Errorf("'%s': %v: %w", hash, err, ErrInvalidHash)
	}

	if len(raw) != crypto.HalfSize {
		return nil, xerrors.Errorf("'%s' has %d bytes instead of %d: %w",
			hash, len(raw), crypto.HalfSize, ErrInvalidHash)
	}

	return raw, nil
}
