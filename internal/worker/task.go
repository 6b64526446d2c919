package worker

// Task names one item to transfer. The raw key is parsed by the processor
// so malformed manifest rows are counted instead of crashing the pool.
type Task struct {
	Key string
}

// Config contains worker configuration
type Config struct {
	SaveDir        string
	Retries        int
	RetryBackoffMs int
	Resume         bool
}
