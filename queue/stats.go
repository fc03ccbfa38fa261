package queue

import "time"

// Stats is a point-in-time summary of one queue.
type Stats struct {
	Queue string `json:"queue"`
	Mode  Mode   `json:"mode"`

	// Tasks counts every task the queue holds, including in-flight and
	// leased ones.
	Tasks int `json:"num_tasks"`

	// OldestETA is the earliest ETA among held tasks, zero when empty.
	OldestETA time.Time `json:"oldest_eta,omitzero"`

	// Leased counts pull tasks whose lease has not yet expired.
	Leased int `json:"leased,omitempty"`

	// Scanner is reported for push queues only.
	Scanner *ScannerInfo `json:"scanner_info,omitempty"`
}

// ScannerInfo describes the delivery activity of a push queue.
type ScannerInfo struct {
	ExecutedLastMinute int     `json:"executed_last_minute"`
	RequestsInFlight   int     `json:"requests_in_flight"`
	EnforcedRate       float64 `json:"enforced_rate"`
	Paused             bool    `json:"paused"`
}
