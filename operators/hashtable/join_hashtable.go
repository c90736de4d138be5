package hashtable

import (
	"runtime"
	"sync"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/apache/arrow/go/v13/arrow/array"
	"github.com/apache/arrow/go/v13/arrow/memory"
	"github.com/brentp/intintmap"
	"github.com/twotwotwo/sorts"
	"golang.org/x/sync/errgroup"
)

// JoinTable is the finalized build side of a HashJoin: the build
// partitions' batches concatenated and internally re-partitioned by
// key hash into shards, each with its own sorted-by-hash index, so
// probing is a binary-search-free linear scan of a short run of
// matching hashes. Grounded directly on
// arrowexec/nodes/hashtable/join_hashtable.go's JoinTable/BuildJoinTable.
type JoinTable struct {
	shards []joinTableShard

	keyIndices, probeKeyIndices []int
	tableIsLeftSide             bool
	alloc                       memory.Allocator
}

type joinTableShard struct {
	hashStartIndices *intintmap.Map
	hashes           *array.Uint64
	values           arrow.Record
}

// Build concatenates records, computes each row's key hash, and
// disperses rows into internal shards sorted by hash — the same
// internal sub-partitioning join_hashtable.go uses so the build can be
// parallelized with an errgroup even though upstream already
// parallelizes by the engine's own partitions.
func Build(alloc memory.Allocator, records []arrow.Record, keyIndices, probeKeyIndices []int, tableIsLeftSide bool) *JoinTable {
	shards := buildShards(alloc, records, keyIndices)
	return &JoinTable{
		shards:           shards,
		keyIndices:       keyIndices,
		probeKeyIndices:  probeKeyIndices,
		tableIsLeftSide:  tableIsLeftSide,
		alloc:            alloc,
	}
}

type hashRowPosition struct {
	hash        uint64
	recordIndex int
	rowIndex    int
}

func buildShards(alloc memory.Allocator, records []arrow.Record, keyIndices []int) []joinTableShard {
	const shardCount = 7

	if len(records) == 0 {
		shards := make([]joinTableShard, shardCount)
		for i := range shards {
			shards[i] = joinTableShard{hashStartIndices: intintmap.New(1, 0.6)}
		}
		return shards
	}

	keyHashers := make([]func(rowIndex uint) uint64, len(records))
	var overallRows int
	for i, rec := range records {
		cols := make([]arrow.Array, len(keyIndices))
		for j, idx := range keyIndices {
			cols[j] = rec.Column(idx)
		}
		keyHashers[i] = MakeRowHasher(cols)
		overallRows += int(rec.NumRows())
	}

	ordered := make([][]hashRowPosition, shardCount)
	for i := range ordered {
		ordered[i] = make([]hashRowPosition, 0, overallRows/shardCount+1)
	}
	for recordIndex, rec := range records {
		numRows := int(rec.NumRows())
		for rowIndex := 0; rowIndex < numRows; rowIndex++ {
			hash := keyHashers[recordIndex](uint(rowIndex))
			shard := int(hash % uint64(shardCount))
			ordered[shard] = append(ordered[shard], hashRowPosition{hash: hash, recordIndex: recordIndex, rowIndex: rowIndex})
		}
	}

	var wg sync.WaitGroup
	wg.Add(shardCount)
	shards := make([]joinTableShard, shardCount)
	for s := 0; s < shardCount; s++ {
		s := s
		go func() {
			defer wg.Done()
			positions := ordered[s]
			sorts.ByUint64(sortableHashPositions(positions))
			shards[s] = joinTableShard{
				hashStartIndices: buildHashIndex(positions),
				hashes:           buildHashesArray(alloc, positions),
				values:           buildShardRecord(alloc, records, positions),
			}
		}()
	}
	wg.Wait()
	return shards
}

func buildHashIndex(positions []hashRowPosition) *intintmap.Map {
	if len(positions) == 0 {
		return intintmap.New(1, 0.6)
	}
	idx := intintmap.New(1024, 0.6)
	idx.Put(int64(positions[0].hash), 0)
	for i := 1; i < len(positions); i++ {
		if positions[i].hash != positions[i-1].hash {
			idx.Put(int64(positions[i].hash), int64(i))
		}
	}
	return idx
}

func buildHashesArray(alloc memory.Allocator, positions []hashRowPosition) *array.Uint64 {
	bldr := array.NewUint64Builder(alloc)
	defer bldr.Release()
	bldr.Reserve(len(positions))
	for _, p := range positions {
		bldr.UnsafeAppend(p.hash)
	}
	return bldr.NewUint64Array()
}

func buildShardRecord(alloc memory.Allocator, records []arrow.Record, positions []hashRowPosition) arrow.Record {
	bldr := array.NewRecordBuilder(alloc, records[0].Schema())
	defer bldr.Release()
	bldr.Reserve(len(positions))

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for columnIndex := range bldr.Fields() {
		columnIndex := columnIndex
		rewriters := make([]func(rowIndex int), len(records))
		for recordIndex, rec := range records {
			rewriters[recordIndex] = MakeColumnRewriter(bldr.Field(columnIndex), rec.Column(columnIndex))
		}
		g.Go(func() error {
			for _, p := range positions {
				rewriters[p.recordIndex](p.rowIndex)
			}
			return nil
		})
	}
	_ = g.Wait()
	return bldr.NewRecord()
}

type sortableHashPositions []hashRowPosition

func (h sortableHashPositions) Len() int           { return len(h) }
func (h sortableHashPositions) Less(i, j int) bool { return h[i].hash < h[j].hash }
func (h sortableHashPositions) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h sortableHashPositions) Key(i int) uint64   { return h[i].hash }

// Probe joins probeRec against the table, invoking produce with each
// completed output record (columns laid out table-side first if the
// table is the left side of the join, probe side first otherwise).
// Grounded on join_hashtable.go's JoinWithRecord.
func (t *JoinTable) Probe(probeRec arrow.Record, idealBatchSize int, produce func(arrow.Record)) {
	probeKeyCols := make([]arrow.Array, len(t.probeKeyIndices))
	for i, idx := range t.probeKeyIndices {
		probeKeyCols[i] = probeRec.Column(idx)
	}
	rowHasher := MakeRowHasher(probeKeyCols)

	var outFields []arrow.Field
	if t.tableIsLeftSide {
		outFields = append(outFields, t.shards[0].values.Schema().Fields()...)
		outFields = append(outFields, probeRec.Schema().Fields()...)
	} else {
		outFields = append(outFields, probeRec.Schema().Fields()...)
		outFields = append(outFields, t.shards[0].values.Schema().Fields()...)
	}
	outSchema := arrow.NewSchema(outFields, nil)
	bldr := array.NewRecordBuilder(t.alloc, outSchema)
	defer bldr.Release()

	equalityCheckers := make([]func(probeRow, tableRow int) bool, len(t.shards))
	rewriters := make([]func(probeRow, tableRow int), len(t.shards))
	for s := range t.shards {
		tableKeyCols := make([]arrow.Array, len(t.keyIndices))
		for i, idx := range t.keyIndices {
			tableKeyCols[i] = t.shards[s].values.Column(idx)
		}
		equalityCheckers[s] = MakeRowEqualityChecker(probeKeyCols, tableKeyCols)
		rewriters[s] = t.makeRowRewriter(probeRec, bldr, s)
	}

	outRows := 0
	numRows := int(probeRec.NumRows())
	for probeRow := 0; probeRow < numRows; probeRow++ {
		hash := rowHasher(uint(probeRow))
		shardIndex := int(hash % uint64(len(t.shards)))
		shard := t.shards[shardIndex]

		first, ok := shard.hashStartIndices.Get(int64(hash))
		if !ok {
			continue
		}
		for tableRow := int(first); tableRow < shard.hashes.Len(); tableRow++ {
			if shard.hashes.Value(tableRow) != hash {
				break
			}
			if !equalityCheckers[shardIndex](probeRow, tableRow) {
				continue
			}
			rewriters[shardIndex](probeRow, tableRow)
			outRows++
			if outRows >= idealBatchSize {
				produce(bldr.NewRecord())
				outRows = 0
			}
		}
	}
	if outRows > 0 {
		produce(bldr.NewRecord())
	}
}

func (t *JoinTable) makeRowRewriter(probeRec arrow.Record, bldr *array.RecordBuilder, shardIndex int) func(probeRow, tableRow int) {
	shard := t.shards[shardIndex]

	var probeOffset, tableOffset int
	if t.tableIsLeftSide {
		tableOffset = 0
		probeOffset = len(shard.values.Columns())
	} else {
		probeOffset = 0
		tableOffset = len(probeRec.Columns())
	}

	probeRewriters := make([]func(rowIndex int), len(probeRec.Columns()))
	for i := range probeRec.Columns() {
		probeRewriters[i] = MakeColumnRewriter(bldr.Field(probeOffset+i), probeRec.Column(i))
	}
	tableRewriters := make([]func(rowIndex int), len(shard.values.Columns()))
	for i := range shard.values.Columns() {
		tableRewriters[i] = MakeColumnRewriter(bldr.Field(tableOffset+i), shard.values.Column(i))
	}

	return func(probeRow, tableRow int) {
		for _, r := range probeRewriters {
			r(probeRow)
		}
		for _, r := range tableRewriters {
			r(tableRow)
		}
	}
}
