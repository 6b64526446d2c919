package progress

// Outcome classifies what happened to one transfer task.
type Outcome int

const (
	// OutcomeSuccess means the object was fetched to disk this run.
	OutcomeSuccess Outcome = iota
	// OutcomeExists means a complete local copy was already present.
	OutcomeExists
	// OutcomeFailed means retries were exhausted or a local error occurred.
	OutcomeFailed
	// OutcomeInvalid means the item key was malformed and never dispatched.
	OutcomeInvalid
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeExists:
		return "exists"
	case OutcomeFailed:
		return "failed"
	case OutcomeInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Result is the immutable outcome of one transfer task. Produced once per
// item and consumed exactly once by the tracker.
type Result struct {
	Key       string
	Partition string
	LocalPath string
	Bytes     int64
	Reason    string
	Outcome   Outcome
}

// Success builds a result for a freshly downloaded object.
func Success(key, partition, localPath string, bytes int64) Result {
	return Result{Key: key, Partition: partition, LocalPath: localPath, Bytes: bytes, Outcome: OutcomeSuccess}
}

// Exists builds a result for an object already complete on disk.
func Exists(key, partition, localPath string, bytes int64) Result {
	return Result{Key: key, Partition: partition, LocalPath: localPath, Bytes: bytes, Outcome: OutcomeExists}
}

// Failed builds a result for an object that could not be transferred.
func Failed(key, partition, reason string) Result {
	return Result{Key: key, Partition: partition, Reason: reason, Outcome: OutcomeFailed}
}

// Invalid builds a result for a malformed item key.
func Invalid(key, reason string) Result {
	return Result{Key: key, Reason: reason, Outcome: OutcomeInvalid}
}
