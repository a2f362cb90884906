package domain

import "time"

// Page is the protocol-neutral result of one paginator step.
type Page struct {
	// Index is 1-based and grows by exactly one per emitted page.
	Index int
	Rows  []RawRow
	// HasNext reports whether the walk found a continuation after this page.
	HasNext bool
}

// Watermark is the newest key already stored for an entity. The zero value means no
// prior data.
type Watermark string

// NoWatermark requests a full walk.
const NoWatermark Watermark = ""

func (w Watermark) IsZero() bool { return w == NoWatermark }

// Reached reports whether key is at or before the watermark.
func (w Watermark) Reached(key string) bool {
	return !w.IsZero() && key != "" && key <= string(w)
}

// Delay is a randomized politeness range. A zero Max disables the delay.
type Delay struct {
	Min time.Duration
	Max time.Duration
}

// FetchOptions bound a single walk.
type FetchOptions struct {
	// StopAt enables early termination on the offset strategy; ignored by postback.
	StopAt Watermark
	// MaxPages caps pages (postback) or batches (offset). Zero means unbounded.
	MaxPages int
	// PageDelay overrides the source's politeness range when Max is non-zero.
	PageDelay Delay
}

// FetchResult summarises how a walk ended.
type FetchResult struct {
	Pages int
	Rows  int
	// Dropped counts rows the paginator could not shape into a RawRow.
	Dropped int
	// Partial is set when a mid-walk request failed or pagination arguments were
	// malformed; rows emitted so far are still valid.
	Partial    bool
	StopReason string
	// EarlyStop is set when the watermark predicate ended the walk.
	EarlyStop bool
}

// SyncOptions are the caller's knobs for one sync.
type SyncOptions struct {
	FullRescan bool
	MaxPages   int
	PageDelay  Delay
}

// SyncResult is what a sync of one entity reports.
type SyncResult struct {
	Entity      string
	Category    Category
	Added       int
	Skipped     bool
	Fetched     int
	ParseErrors int
	Partial     bool
	Watermark   Watermark
}

// SyncEvent is published after new rows were appended.
type SyncEvent struct {
	Entity   string    `json:"entity"`
	Category Category  `json:"category"`
	Added    int       `json:"added"`
	Keys     []string  `json:"keys"`
	SyncedAt time.Time `json:"synced_at"`
}

// SyncRequest asks a daemon to sync one entity.
type SyncRequest struct {
	Entity     string   `json:"entity"`
	Category   Category `json:"category"`
	FullRescan bool     `json:"full_rescan"`
}
