package state

// LocalState is the closed tagged union of per-partition operator
// state. Kind selects which of the pointer fields below is populated;
// every accessor below enforces that, surfacing a mismatch as an
// Internal error rather than silently dereferencing the wrong field.
type LocalState struct {
	Kind Kind

	Filter         *FilterLocal
	Projection     *ProjectionLocal
	TableScan      *TableScanLocal
	Limit          *LimitLocal
	HashAggregate  *HashAggregateLocal
	HashJoin       *HashJoinLocal
	NestedLoopJoin *NestedLoopJoinLocal
	Sort           *SortLocal
	Exchange       *ExchangeLocal
}

func NewFilterLocal() LocalState { return LocalState{Kind: KindFilter, Filter: &FilterLocal{}} }

func NewProjectionLocal() LocalState {
	return LocalState{Kind: KindProjection, Projection: &ProjectionLocal{}}
}

func NewTableScanLocal() LocalState {
	return LocalState{Kind: KindTableScan, TableScan: &TableScanLocal{}}
}

func NewLimitLocal() LocalState { return LocalState{Kind: KindLimit, Limit: &LimitLocal{}} }

func NewHashAggregateLocal() LocalState {
	return LocalState{Kind: KindHashAggregate, HashAggregate: &HashAggregateLocal{}}
}

func NewHashJoinLocal() LocalState {
	return LocalState{Kind: KindHashJoin, HashJoin: &HashJoinLocal{}}
}

func NewNestedLoopJoinLocal() LocalState {
	return LocalState{Kind: KindNestedLoopJoin, NestedLoopJoin: &NestedLoopJoinLocal{}}
}

func NewSortLocal() LocalState { return LocalState{Kind: KindSort, Sort: &SortLocal{}} }

func NewExchangeLocal() LocalState {
	return LocalState{Kind: KindExchange, Exchange: &ExchangeLocal{}}
}

func (s LocalState) AsFilter() (*FilterLocal, error) {
	if s.Kind != KindFilter {
		return nil, mismatch(KindFilter, s.Kind)
	}
	return s.Filter, nil
}

func (s LocalState) AsProjection() (*ProjectionLocal, error) {
	if s.Kind != KindProjection {
		return nil, mismatch(KindProjection, s.Kind)
	}
	return s.Projection, nil
}

func (s LocalState) AsTableScan() (*TableScanLocal, error) {
	if s.Kind != KindTableScan {
		return nil, mismatch(KindTableScan, s.Kind)
	}
	return s.TableScan, nil
}

func (s LocalState) AsLimit() (*LimitLocal, error) {
	if s.Kind != KindLimit {
		return nil, mismatch(KindLimit, s.Kind)
	}
	return s.Limit, nil
}

func (s LocalState) AsHashAggregate() (*HashAggregateLocal, error) {
	if s.Kind != KindHashAggregate {
		return nil, mismatch(KindHashAggregate, s.Kind)
	}
	return s.HashAggregate, nil
}

func (s LocalState) AsHashJoin() (*HashJoinLocal, error) {
	if s.Kind != KindHashJoin {
		return nil, mismatch(KindHashJoin, s.Kind)
	}
	return s.HashJoin, nil
}

func (s LocalState) AsNestedLoopJoin() (*NestedLoopJoinLocal, error) {
	if s.Kind != KindNestedLoopJoin {
		return nil, mismatch(KindNestedLoopJoin, s.Kind)
	}
	return s.NestedLoopJoin, nil
}

func (s LocalState) AsSort() (*SortLocal, error) {
	if s.Kind != KindSort {
		return nil, mismatch(KindSort, s.Kind)
	}
	return s.Sort, nil
}

func (s LocalState) AsExchange() (*ExchangeLocal, error) {
	if s.Kind != KindExchange {
		return nil, mismatch(KindExchange, s.Kind)
	}
	return s.Exchange, nil
}
