package statecli

import (
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.dedis.ch/statedb"
	"go.dedis.ch/statedb/cli"
	"go.dedis.ch/statedb/core/store/kv"
	"go.dedis.ch/statedb/core/store/merkle"
	"golang.org/x/xerrors"
)

// action defines the cli actions of the state commands. The database opener,
// the file reader and the HTTP server are fields so that tests can replace
// them.
type action struct {
	printer io.Writer

	openDB   func(Config) (kv.DB, error)
	readFile func(string) ([]byte, error)
	serve    func(addr string, handler http.Handler) error
}

// session is a database opened for the duration of one command.
type session struct {
	cfg    Config
	db     kv.DB
	logger zerolog.Logger
}

func (a action) open(flags cli.Flags) (session, error) {
	cfg, err := loadConfig(flags, a.readFile)
	if err != nil {
		return session{}, xerrors.Errorf("failed to load config: %v", err)
	}

	level := statedb.ParseLogLevel(cfg.LogLevel)
	statedb.Logger = statedb.Logger.Level(level)

	db, err := a.openDB(cfg)
	if err != nil {
		return session{}, xerrors.Errorf("failed to open database: %v", err)
	}

	s := session{
		cfg:    cfg,
		db:     db,
		logger: statedb.Logger.With().Str("backend", cfg.Backend).Logger(),
	}

	return s, nil
}

func (s session) trie(root string) (*merkle.Trie, error) {
	opts := []merkle.Option{
		merkle.WithLogger(s.logger.With().Str("component", "trie").Logger()),
	}

	if s.cfg.CacheMB > 0 {
		opts = append(opts, merkle.WithCacheSize(s.cfg.CacheMB<<20))
	}

	trie, err := merkle.New(s.db, root, opts...)
	if err != nil {
		return nil, xerrors.Errorf("failed to load root: %w", err)
	}

	return trie, nil
}

func (s session) close() {
	err := s.db.Close()
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to close database")
	}
}

func (a action) initAction(flags cli.Flags) error {
	s, err := a.open(flags)
	if err != nil {
		return err
	}

	defer s.close()

	trie, err := s.trie("")
	if err != nil {
		return err
	}

	if flags.String(flagSave) != "" {
		err = s.cfg.Save(flags.String(flagSave))
		if err != nil {
			return xerrors.Errorf("failed to save config: %v", err)
		}
	}

	fmt.Fprintln(a.printer, trie.GetMerkleRoot())

	return nil
}

func (a action) getAction(flags cli.Flags) error {
	s, err := a.open(flags)
	if err != nil {
		return err
	}

	defer s.close()

	trie, err := s.trie(flags.String(flagRoot))
	if err != nil {
		return err
	}

	value, err := trie.Get(flags.String(flagAddress))
	if err != nil {
		return xerrors.Errorf("failed to read value: %w", err)
	}

	fmt.Fprintln(a.printer, formatValue(value, flags.Bool(flagText)))

	return nil
}

func (a action) setAction(flags cli.Flags) error {
	sets := make(map[string][]byte)

	for _, arg := range flags.StringSlice(flagSet) {
		address, value, err := parseAssignment(arg, flags.Bool(flagText))
		if err != nil {
			return xerrors.Errorf("invalid set '%s': %v", arg, err)
		}

		sets[address] = value
	}

	deletes := flags.StringSlice(flagDelete)

	if len(sets) == 0 && len(deletes) == 0 {
		return xerrors.New("nothing to update, use --set or --delete")
	}

	s, err := a.open(flags)
	if err != nil {
		return err
	}

	defer s.close()

	trie, err := s.trie(flags.String(flagRoot))
	if err != nil {
		return err
	}

	root, err := trie.Update(sets, deletes, flags.Bool(flagVirtual))
	if err != nil {
		return xerrors.Errorf("failed to update: %w", err)
	}

	fmt.Fprintln(a.printer, root)

	return nil
}

func (a action) leavesAction(flags cli.Flags) error {
	s, err := a.open(flags)
	if err != nil {
		return err
	}

	defer s.close()

	trie, err := s.trie(flags.String(flagRoot))
	if err != nil {
		return err
	}

	text := flags.Bool(flagText)

	err = trie.ForEachLeaf(flags.String(flagPrefix), func(address string, value []byte) error {
		fmt.Fprintf(a.printer, "%s\t%s\n", address, formatValue(value, text))
		return nil
	})
	if err != nil {
		return xerrors.Errorf("failed to list leaves: %w", err)
	}

	return nil
}

func (a action) inspectAction(flags cli.Flags) error {
	s, err := a.open(flags)
	if err != nil {
		return err
	}

	defer s.close()

	root := flags.String(flagRoot)

	entry, found, err := merkle.GetChangeLog(s.db, root)
	if err != nil {
		return xerrors.Errorf("failed to read change log: %w", err)
	}

	if !found {
		fmt.Fprintf(a.printer, "root %s is not tracked\n", root)
		return nil
	}

	fmt.Fprintf(a.printer, "root: %s\n", root)
	fmt.Fprintf(a.printer, "parent: %x\n", entry.Parent)
	fmt.Fprintf(a.printer, "additions: %d\n", len(entry.Additions))

	for _, hash := range entry.Additions {
		id := hex.EncodeToString(hash)

		refs, err := merkle.RefCount(s.db, id)
		if err != nil {
			return xerrors.Errorf("failed to read ref count: %w", err)
		}

		if refs > 0 {
			fmt.Fprintf(a.printer, "\t%s (+%d)\n", id, refs)
		} else {
			fmt.Fprintf(a.printer, "\t%s\n", id)
		}
	}

	fmt.Fprintf(a.printer, "successors: %d\n", len(entry.Successors))

	for _, succ := range entry.Successors {
		fmt.Fprintf(a.printer, "\t%x replaces %d nodes\n", succ.Successor, len(succ.Deletions))
	}

	return nil
}

func (a action) pruneAction(flags cli.Flags) error {
	s, err := a.open(flags)
	if err != nil {
		return err
	}

	defer s.close()

	removed, err := merkle.Prune(s.db, flags.String(flagRoot))
	if err != nil {
		return xerrors.Errorf("failed to prune: %w", err)
	}

	for _, hash := range removed {
		fmt.Fprintln(a.printer, hash)
	}

	s.logger.Info().Int("removed", len(removed)).Msg("root pruned")

	return nil
}

func (a action) rootsAction(flags cli.Flags) error {
	s, err := a.open(flags)
	if err != nil {
		return err
	}

	defer s.close()

	roots, err := merkle.TrackedRoots(s.db)
	if err != nil {
		return xerrors.Errorf("failed to list roots: %w", err)
	}

	for _, root := range roots {
		fmt.Fprintln(a.printer, root)
	}

	return nil
}

func (a action) serveMetricsAction(flags cli.Flags) error {
	s, err := a.open(flags)
	if err != nil {
		return err
	}

	defer s.close()

	handler, err := newMetricsHandler(s.db)
	if err != nil {
		return xerrors.Errorf("failed to create handler: %v", err)
	}

	addr := flags.String(flagListen)

	fmt.Fprintf(a.printer, "serving metrics on http://%s/metrics\n", addr)

	err = a.serve(addr, handler)
	if err != nil {
		return xerrors.Errorf("server stopped: %v", err)
	}

	return nil
}

// newMetricsHandler returns a handler that serves the collectors of the module
// and the sizes of the database on /metrics.
func newMetricsHandler(db kv.DB) (http.Handler, error) {
	registry := prometheus.NewRegistry()

	collectors := append([]prometheus.Collector{merkle.NewStatsCollector(db)},
		statedb.PromCollectors...)

	for _, collector := range collectors {
		err := registry.Register(collector)
		if err != nil {
			return nil, xerrors.Errorf("failed to register collector: %v", err)
		}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	return mux, nil
}

func listenAndServe(addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return srv.ListenAndServe()
}

// parseAssignment splits an "address=value" argument.
func parseAssignment(arg string, text bool) (string, []byte, error) {
	address, raw, found := strings.Cut(arg, "=")
	if !found {
		return "", nil, xerrors.New("expected address=value")
	}

	if text {
		return address, []byte(raw), nil
	}

	value, err := hex.DecodeString(raw)
	if err != nil {
		return "", nil, xerrors.Errorf("value is not hex: %v", err)
	}

	return address, value, nil
}

func formatValue(value []byte, text bool) string {
	if text {
		return string(value)
	}

	return hex.EncodeToString(value)
}
