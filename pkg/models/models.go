// Package models defines the data structures used throughout the application
package models

import (
	"time"
)

// TargetKind classifies what a resolved media URL points at
type TargetKind string

const (
	KindDirect       TargetKind = "direct"
	KindHLSPlain     TargetKind = "hls"
	KindHLSEncrypted TargetKind = "hls_encrypted"
)

// LinkEntry is one line of the submitted batch after normalization.
// Index is the 1-based position after blank/comment lines are dropped.
type LinkEntry struct {
	Index  int    `json:"index"`
	RawURL string `json:"raw_url"`
}

// ResolvedTarget is the output of resolution: a fetchable media URL plus its kind
type ResolvedTarget struct {
	SourceURL string     `json:"source_url"`
	MediaURL  string     `json:"media_url"`
	Kind      TargetKind `json:"kind"`
}

// BatchState tracks the lifecycle of one batch run
type BatchState string

const (
	StatePending   BatchState = "pending"
	StateRunning   BatchState = "running"
	StateStopped   BatchState = "stopped"
	StateCompleted BatchState = "completed"
	StateFailed    BatchState = "failed"
)

// DownloadStatus is the per-user aggregate progress for one running batch.
// Owned by the batch processor; readers get copies through the registry.
type DownloadStatus struct {
	UserID        int64      `json:"user_id"`
	State         BatchState `json:"state"`
	Total         int        `json:"total"`
	Completed     int        `json:"completed"`
	Failed        int        `json:"failed"`
	Current       string     `json:"current"`
	StartedAt     time.Time  `json:"started_at"`
	LastUpdatedAt time.Time  `json:"last_updated_at"`
}

// BatchJob drives one processor run. Immutable after construction.
type BatchJob struct {
	ID         string      `json:"id"`
	UserID     int64       `json:"user_id"`
	Links      []LinkEntry `json:"links"`
	StartIndex int         `json:"start_index"`
	Quality    Quality     `json:"quality"`
	BatchName  string      `json:"batch_name"`
	Caption    string      `json:"caption,omitempty"`
	ThumbPath  string      `json:"thumb_path,omitempty"`
}
