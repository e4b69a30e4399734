package merkle

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.dedis.ch/statedb"
	"go.dedis.ch/statedb/core/store/kv"
)

var (
	promUpdates = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "statedb_trie_updates_total",
		Help: "number of updates computed, by mode",
	}, []string{"mode"})

	promNodesWritten = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "statedb_trie_nodes_written_total",
		Help: "number of nodes written to the database",
	})

	promDuplicates = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "statedb_trie_duplicate_nodes_total",
		Help: "number of node writes that found the node already stored",
	})

	promPrunes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "statedb_trie_prunes_total",
		Help: "number of prunes, by kind of root",
	}, []string{"kind"})

	promNodesPruned = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "statedb_trie_nodes_pruned_total",
		Help: "number of nodes deleted by prunes",
	})

	promCacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "statedb_trie_cache_hits_total",
		Help: "number of nodes read from the cache",
	})

	promCacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "statedb_trie_cache_misses_total",
		Help: "number of nodes read from the database because of a cache miss",
	})
)

func init() {
	statedb.PromCollectors = append(statedb.PromCollectors,
		promUpdates,
		promNodesWritten,
		promDuplicates,
		promPrunes,
		promNodesPruned,
		promCacheHits,
		promCacheMisses,
	)
}

// Stats are the sizes of the buckets of a state database.
type Stats struct {
	Nodes      int
	Roots      int
	Duplicates int
}

// ReadStats returns the number of nodes, tracked roots and nodes written more
// than once in the database.
func ReadStats(db kv.DB) (Stats, error) {
	var stats Stats

	err := doView(db, func(tx kv.ReadableTx) error {
		stats.Nodes = bucketLen(tx, mainBucket)
		stats.Roots = bucketLen(tx, changeLogBucket)
		stats.Duplicates = bucketLen(tx, duplicateBucket)

		return nil
	})
	if err != nil {
		return Stats{}, err
	}

	return stats, nil
}

func bucketLen(tx kv.ReadableTx, name []byte) int {
	bucket := tx.GetBucket(name)
	if bucket == nil {
		return 0
	}

	return bucket.Len()
}

var (
	descNodes = prometheus.NewDesc("statedb_store_nodes",
		"number of nodes stored", nil, nil)

	descRoots = prometheus.NewDesc("statedb_store_tracked_roots",
		"number of roots with a change log entry", nil, nil)

	descDuplicates = prometheus.NewDesc("statedb_store_duplicate_nodes",
		"number of nodes written more than once", nil, nil)
)

// statsCollector reads the sizes of the database on each scrape.
//
// - implements prometheus.Collector
type statsCollector struct {
	db kv.DB
}

// NewStatsCollector returns a collector of the sizes of the database.
func NewStatsCollector(db kv.DB) prometheus.Collector {
	return statsCollector{db: db}
}

// Describe implements prometheus.Collector.
func (c statsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- descNodes
	ch <- descRoots
	ch <- descDuplicates
}

// Collect implements prometheus.Collector.
func (c statsCollector) Collect(ch chan<- prometheus.Metric) {
	stats, err := ReadStats(c.db)
	if err != nil {
		statedb.Logger.Warn().Err(err).Msg("failed to read store stats")
		return
	}

	ch <- prometheus.MustNewConstMetric(descNodes, prometheus.GaugeValue, float64(stats.Nodes))
	ch <- prometheus.MustNewConstMetric(descRoots, prometheus.GaugeValue, float64(stats.Roots))
	ch <- prometheus.MustNewConstMetric(descDuplicates, prometheus.GaugeValue, float64(stats.Duplicates))
}
