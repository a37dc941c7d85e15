// Package queue moves recognition jobs through a Redis list.
//
// Keys for a queue named q:
//
//	q             list of pending job ids (LPUSH / BRPOP)
//	q:data        hash id -> job JSON
//	q:processing  set of running ids
//	q:completed   set of finished ids, results in q:results
//	q:failed      set of failed ids, errors in q:errors
package queue

import (
	"encoding/json"
	"time"
)

const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Job is either a path readable by the worker or inline image bytes.
type Job struct {
	ID         string    `json:"id"`
	Path       string    `json:"path,omitempty"`
	Filename   string    `json:"filename,omitempty"`
	Image      []byte    `json:"image,omitempty"` // base64 in JSON
	Force      bool      `json:"force,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	Attempts   int       `json:"attempts"`
	MaxRetries int       `json:"maxRetries"`
}

// JobStatus is what a client can read back about a job.
type JobStatus struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

func dataKey(q string) string       { return q + ":data" }
func processingKey(q string) string { return q + ":processing" }
func completedKey(q string) string  { return q + ":completed" }
func failedKey(q string) string     { return q + ":failed" }
func resultsKey(q string) string    { return q + ":results" }
func errorsKey(q string) string     { return q + ":errors" }
