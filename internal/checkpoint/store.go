package checkpoint

import (
	"time"
)

// Status is the recorded state of one transfer item.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Record is one item's durable transfer state. A completed record lets a
// resumed run skip the item without touching disk or the remote store.
type Record struct {
	Key       string    `json:"key"`
	Partition string    `json:"partition"`
	Size      int64     `json:"size"`
	Status    Status    `json:"status"`
	LastError string    `json:"last_error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store defines the interface for per-item checkpoint persistence
type Store interface {
	Get(key string) (*Record, error)
	Save(record *Record) error
	ListFailed() ([]*Record, error)

	Close() error
}
