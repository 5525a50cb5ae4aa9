package executor

// Executor is the parallel evaluation capability behind the quality engine
// and the per-color Newton batches. Selection between implementations is a
// runtime configuration choice made once per run.
type Executor interface {
	// RunElements executes fn over [0,n) across workers. fn must only
	// write state owned by its index.
	RunElements(n int, fn func(i int))
	// RunNodes executes fn over the id list across workers. Callers
	// guarantee the ids are independent (one graph color).
	RunNodes(ids []int, fn func(id int))
	Name() string
	Close()
}
