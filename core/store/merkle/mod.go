// Package merkle implements a persistent radix Merkle trie over a key/value
// database.
//
// Addresses are hexadecimal strings split in tokens of two characters, and each
// token is an edge of the trie. Nodes are immutable and stored by the hash of
// their canonical encoding, so that a root hash identifies a complete state and
// states share their common nodes. Every persisted update records in a change
// log which nodes it added and which nodes of the parent state it replaced, and
// counts the nodes that were written more than once. Prune relies on both to
// garbage collect the nodes of old states.
package merkle

import (
	"sync"

	"github.com/VictoriaMetrics/fastcache"
	"github.com/rs/zerolog"
	"go.dedis.ch/statedb"
	"go.dedis.ch/statedb/core/store"
	"go.dedis.ch/statedb/core/store/kv"
	"go.dedis.ch/statedb/crypto"
	"golang.org/x/xerrors"
)

var (
	// ErrNotFound is returned when a root, a node or an address is missing.
	ErrNotFound = xerrors.New("not found")
	// ErrInvalidRecord is returned when stored node bytes cannot be decoded.
	ErrInvalidRecord = xerrors.New("invalid record")
	// ErrInvalidHash is returned when a root identifier is not a hex hash.
	ErrInvalidHash = xerrors.New("invalid hash")
	// ErrInvalidChangeLog is returned when a change log or a reference count
	// cannot be decoded.
	ErrInvalidChangeLog = xerrors.New("invalid change log")
	// ErrDatabase wraps the failures of the underlying database.
	ErrDatabase = xerrors.New("database failure")
	// ErrInvalidAddress is returned when an address is not lowercase hex with
	// an even length.
	ErrInvalidAddress = xerrors.New("invalid address")
)

var (
	mainBucket      = []byte("main")
	changeLogBucket = []byte("change_log")
	duplicateBucket = []byte("duplicate_log")
)

// Trie is a handle on one state of the Merkle trie. The handle only moves to
// another state with SetMerkleRoot, so updates compute new roots without
// changing what the handle reads.
//
// - implements store.Reader
type Trie struct {
	sync.Mutex

	db          kv.DB
	hashFactory crypto.HashFactory
	cache       *fastcache.Cache
	logger      zerolog.Logger

	rootHash string
	rootNode Node
}

type template struct {
	logger    zerolog.Logger
	cacheSize int
}

// Option is the type of option to set some fields of a trie.
type Option func(*template)

// WithLogger is an option to set the logger of the trie.
func WithLogger(logger zerolog.Logger) Option {
	return func(tmpl *template) {
		tmpl.logger = logger
	}
}

// WithCacheSize is an option to set the maximum size in bytes of the cache of
// decoded nodes. A size of zero disables the cache. Only the nodes pruned
// through the trie are evicted: a cached trie keeps serving the nodes that
// another handle prunes from the same database.
func WithCacheSize(size int) Option {
	return func(tmpl *template) {
		tmpl.cacheSize = size
	}
}

// New returns a trie at the given root. An empty root initializes the store
// with the empty node, which is then used as the root.
func New(db kv.DB, root string, opts ...Option) (*Trie, error) {
	tmpl := template{
		logger: statedb.Logger.With().Str("component", "trie").Logger(),
	}

	for _, opt := range opts {
		opt(&tmpl)
	}

	t := &Trie{
		db:          db,
		hashFactory: crypto.NewHashFactory(crypto.Sha512Half),
		logger:      tmpl.logger,
	}

	if tmpl.cacheSize > 0 {
		t.cache = fastcache.New(tmpl.cacheSize)
	}

	if root == "" {
		var err error

		root, err = t.initialize()
		if err != nil {
			return nil, xerrors.Errorf("failed to initialize: %w", err)
		}
	}

	err := t.SetMerkleRoot(root)
	if err != nil {
		return nil, err
	}

	return t, nil
}

// initialize stores the empty node and creates the buckets.
func (t *Trie) initialize() (string, error) {
	hash, data, err := encodeAndHash(t.hashFactory, NewNode())
	if err != nil {
		return "", err
	}

	err = doUpdate(t.db, func(tx kv.WritableTx) error {
		for _, name := range [][]byte{changeLogBucket, duplicateBucket} {
			_, err := tx.GetBucketOrCreate(name)
			if err != nil {
				return xerrors.Errorf("%v: %w", err, ErrDatabase)
			}
		}

		bucket, err := tx.GetBucketOrCreate(mainBucket)
		if err != nil {
			return xerrors.Errorf("%v: %w", err, ErrDatabase)
		}

		err = bucket.Set([]byte(hash), data)
		if err != nil {
			return xerrors.Errorf("failed to store empty node: %v: %w", err, ErrDatabase)
		}

		return nil
	})
	if err != nil {
		return "", err
	}

	return hash, nil
}

// GetMerkleRoot returns the root hash of the state the trie reads.
func (t *Trie) GetMerkleRoot() string {
	t.Lock()
	defer t.Unlock()

	return t.rootHash
}

// SetMerkleRoot moves the trie to the given root. The node is always read from
// the database so that a pruned root cannot be restored from the cache.
func (t *Trie) SetMerkleRoot(root string) error {
	_, err := decodeHash(root)
	if err != nil {
		return err
	}

	var node Node

	err = doView(t.db, func(tx kv.ReadableTx) error {
		node, err = t.readNode(tx, root)
		return err
	})
	if err != nil {
		return xerrors.Errorf("failed to set root: %w", err)
	}

	t.Lock()
	t.rootHash = root
	t.rootNode = node
	t.Unlock()

	return nil
}

// Contains implements store.Reader. It returns true if a node exists at the
// address, whether or not it holds a value.
func (t *Trie) Contains(address string) (bool, error) {
	_, err := t.getByAddress(address)
	if xerrors.Is(err, ErrNotFound) {
		return false, nil
	}

	if err != nil {
		return false, err
	}

	return true, nil
}

// Get implements store.Reader. It returns the value at the address, which is
// nil for a node without value. It returns ErrNotFound if no node exists at the
// address.
func (t *Trie) Get(address string) ([]byte, error) {
	node, err := t.getByAddress(address)
	if err != nil {
		return nil, err
	}

	return node.Value, nil
}

func (t *Trie) current() (string, Node) {
	t.Lock()
	defer t.Unlock()

	return t.rootHash, t.rootNode
}

func (t *Trie) getByAddress(address string) (Node, error) {
	err := validateAddress(address)
	if err != nil {
		return Node{}, err
	}

	rootHash, node := t.current()

	err = doView(t.db, func(tx kv.ReadableTx) error {
		node, err = t.walk(tx, node, address)
		return err
	})
	if err != nil {
		return Node{}, xerrors.Errorf("address '%s' from root %s: %w", address, rootHash, err)
	}

	return node, nil
}

// walk follows the tokens of the address from the node, loading the children
// through the cache.
func (t *Trie) walk(tx kv.ReadableTx, node Node, address string) (Node, error) {
	for _, token := range tokenize(address) {
		hash, found := node.Children[token]
		if !found {
			return Node{}, ErrNotFound
		}

		var err error

		node, err = t.getNode(tx, hash)
		if err != nil {
			return Node{}, err
		}
	}

	return node, nil
}

// getNode returns the node of the given hash, from the cache if possible.
func (t *Trie) getNode(tx kv.ReadableTx, hash string) (Node, error) {
	if t.cache == nil {
		return t.readNode(tx, hash)
	}

	data, found := t.cache.HasGet(nil, []byte(hash))
	if found {
		promCacheHits.Inc()
		return DecodeNode(data)
	}

	promCacheMisses.Inc()

	data, err := readNodeData(tx, hash)
	if err != nil {
		return Node{}, err
	}

	node, err := DecodeNode(data)
	if err != nil {
		return Node{}, xerrors.Errorf("node %s: %w", hash, err)
	}

	t.cache.Set([]byte(hash), data)

	return node, nil
}

// readNode returns the node of the given hash from the database.
func (t *Trie) readNode(tx kv.ReadableTx, hash string) (Node, error) {
	data, err := readNodeData(tx, hash)
	if err != nil {
		return Node{}, err
	}

	node, err := DecodeNode(data)
	if err != nil {
		return Node{}, xerrors.Errorf("node %s: %w", hash, err)
	}

	return node, nil
}

func readNodeData(tx kv.ReadableTx, hash string) ([]byte, error) {
	bucket := tx.GetBucket(mainBucket)
	if bucket == nil {
		return nil, xerrors.Errorf("node %s: %w", hash, ErrNotFound)
	}

	data := bucket.Get([]byte(hash))
	if data == nil {
		return nil, xerrors.Errorf("node %s: %w", hash, ErrNotFound)
	}

	return data, nil
}

// doView executes the function in a read-only transaction. The errors of the
// database itself are wrapped with ErrDatabase.
func doView(db kv.DB, fn func(kv.ReadableTx) error) error {
	var inner error

	err := db.View(func(tx kv.ReadableTx) error {
		inner = fn(tx)
		return inner
	})

	return wrapDBError(inner, err)
}

// doUpdate executes the function in a writable transaction. The errors of the
// database itself are wrapped with ErrDatabase.
func doUpdate(db kv.DB, fn func(kv.WritableTx) error) error {
	var inner error

	err := db.Update(func(tx kv.WritableTx) error {
		inner = fn(tx)
		return inner
	})

	return wrapDBError(inner, err)
}

func wrapDBError(inner, outer error) error {
	if inner != nil {
		return inner
	}

	if outer != nil {
		return xerrors.Errorf("%v: %w", outer, ErrDatabase)
	}

	return nil
}

var _ store.Reader = (*Trie)(nil)
