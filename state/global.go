package state

// GlobalState is the closed tagged union of per-operator shared
// state, one instance per operator for the whole plan (vs. one
// LocalState per partition). Mirrors LocalState's accessor discipline.
type GlobalState struct {
	Kind Kind

	Filter         *FilterGlobal
	Projection     *ProjectionGlobal
	TableScan      *TableScanGlobal
	Limit          *LimitGlobal
	HashAggregate  *HashAggregateGlobal
	HashJoin       *HashJoinGlobal
	NestedLoopJoin *NestedLoopJoinGlobal
	Sort           *SortGlobal
	Exchange       *ExchangeGlobal
}

func NewFilterGlobal() GlobalState { return GlobalState{Kind: KindFilter, Filter: &FilterGlobal{}} }

func NewProjectionGlobal() GlobalState {
	return GlobalState{Kind: KindProjection, Projection: &ProjectionGlobal{}}
}

func NewTableScanGlobal() GlobalState {
	return GlobalState{Kind: KindTableScan, TableScan: &TableScanGlobal{}}
}

func NewLimitGlobalState(offset, k int64) GlobalState {
	return GlobalState{Kind: KindLimit, Limit: NewLimitGlobal(offset, k)}
}

func NewHashAggregateGlobalState(partitions, builders int) GlobalState {
	return GlobalState{Kind: KindHashAggregate, HashAggregate: NewHashAggregateGlobal(partitions, builders)}
}

func NewHashJoinGlobalState(buildPartitions int) GlobalState {
	return GlobalState{Kind: KindHashJoin, HashJoin: NewHashJoinGlobal(buildPartitions)}
}

func NewNestedLoopJoinGlobalState(buildPartitions int) GlobalState {
	return GlobalState{Kind: KindNestedLoopJoin, NestedLoopJoin: NewNestedLoopJoinGlobal(buildPartitions)}
}

func NewSortGlobalState(partitions int) GlobalState {
	return GlobalState{Kind: KindSort, Sort: NewSortGlobal(partitions)}
}

func NewExchangeGlobalState(outputPartitions, inputPartitions, softBound int) GlobalState {
	return GlobalState{Kind: KindExchange, Exchange: NewExchangeGlobal(outputPartitions, inputPartitions, softBound)}
}

func (s GlobalState) AsFilter() (*FilterGlobal, error) {
	if s.Kind != KindFilter {
		return nil, mismatch(KindFilter, s.Kind)
	}
	return s.Filter, nil
}

func (s GlobalState) AsProjection() (*ProjectionGlobal, error) {
	if s.Kind != KindProjection {
		return nil, mismatch(KindProjection, s.Kind)
	}
	return s.Projection, nil
}

func (s GlobalState) AsTableScan() (*TableScanGlobal, error) {
	if s.Kind != KindTableScan {
		return nil, mismatch(KindTableScan, s.Kind)
	}
	return s.TableScan, nil
}

func (s GlobalState) AsLimit() (*LimitGlobal, error) {
	if s.Kind != KindLimit {
		return nil, mismatch(KindLimit, s.Kind)
	}
	return s.Limit, nil
}

func (s GlobalState) AsHashAggregate() (*HashAggregateGlobal, error) {
	if s.Kind != KindHashAggregate {
		return nil, mismatch(KindHashAggregate, s.Kind)
	}
	return s.HashAggregate, nil
}

func (s GlobalState) AsHashJoin() (*HashJoinGlobal, error) {
	if s.Kind != KindHashJoin {
		return nil, mismatch(KindHashJoin, s.Kind)
	}
	return s.HashJoin, nil
}

func (s GlobalState) AsNestedLoopJoin() (*NestedLoopJoinGlobal, error) {
	if s.Kind != KindNestedLoopJoin {
		return nil, mismatch(KindNestedLoopJoin, s.Kind)
	}
	return s.NestedLoopJoin, nil
}

func (s GlobalState) AsSort() (*SortGlobal, error) {
	if s.Kind != KindSort {
		return nil, mismatch(KindSort, s.Kind)
	}
	return s.Sort, nil
}

func (s GlobalState) AsExchange() (*ExchangeGlobal, error) {
	if s.Kind != KindExchange {
		return nil, mismatch(KindExchange, s.Kind)
	}
	return s.Exchange, nil
}
