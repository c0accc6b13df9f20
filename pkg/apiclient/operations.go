package apiclient

import (
	"net/url"
	"time"
)

// Operation states as reported by the daemon.
const (
	OpRunning   = "running"
	OpSucceeded = "succeeded"
	OpFailed    = "failed"
	OpCancelled = "cancelled"
)

// Operation is a snapshot of a background run.
type Operation struct {
	ID       string `json:"id"`
	Kind     string `json:"kind"`
	FolderID string `json:"folder_id,omitempty"`
	Version  uint32 `json:"version,omitempty"`
	ShareID  string `json:"share_id,omitempty"`
	Status   string `json:"status"`

	Done  int64 `json:"done"`
	Total int64 `json:"total"`

	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// Finished reports whether the operation has settled.
func (o *Operation) Finished() bool {
	return o.Status != OpRunning
}

// ListOperations returns snapshots of every operation, newest first.
func (c *Client) ListOperations() ([]Operation, error) {
	var ops []Operation
	if err := c.get("/api/v1/operations", &ops); err != nil {
		return nil, err
	}
	return ops, nil
}

// GetOperation returns one operation snapshot.
func (c *Client) GetOperation(id string) (*Operation, error) {
	var op Operation
	if err := c.get("/api/v1/operations/"+url.PathEscape(id), &op); err != nil {
		return nil, err
	}
	return &op, nil
}

// CancelOperation requests cancellation of a running operation.
func (c *Client) CancelOperation(id string) error {
	return c.delete("/api/v1/operations/" + url.PathEscape(id))
}
