// Package analytics tracks query and export activity: events flow through
// Kafka from the serving path to an in-process aggregator that exposes
// rolled-up usage stats.
package analytics

import "time"

type EventType string

const (
	EventQuery  EventType = "query"
	EventExport EventType = "export"
)

// QueryEvent records one evaluated catalogue query.
type QueryEvent struct {
	Type       EventType `json:"type"`
	Collection string    `json:"collection"`
	Query      string    `json:"query"`
	TotalHits  int       `json:"total_hits"`
	Returned   int       `json:"returned"`
	LatencyMs  int64     `json:"latency_ms"`
	CacheHit   bool      `json:"cache_hit"`
	Timestamp  time.Time `json:"timestamp"`
	RequestID  string    `json:"request_id"`
}

// ExportEvent records one export run, successful or failed.
type ExportEvent struct {
	Type         EventType `json:"type"`
	Collection   string    `json:"collection"`
	Query        string    `json:"query"`
	Folder       string    `json:"folder"`
	PagesCopied  int       `json:"pages_copied"`
	PagesSkipped int       `json:"pages_skipped"`
	Status       string    `json:"status"`
	LatencyMs    int64     `json:"latency_ms"`
	Timestamp    time.Time `json:"timestamp"`
}
