package delivery

import (
	"time"

	"github.com/google/uuid"
)

// ItemResult is the outcome of one item-level portal operation
type ItemResult struct {
	ItemID   string `json:"item_id"`
	Name     string `json:"name"`
	Success  bool   `json:"success"`
	Attempts int    `json:"attempts"`
	Error    string `json:"error,omitempty"`
}

// SyncResult is what a driver reports for one SyncMenu call
type SyncResult struct {
	ItemsSynced int          `json:"items_synced"`
	ItemsFailed int          `json:"items_failed"`
	Errors      []string     `json:"errors"`
	Details     []ItemResult `json:"details"`
}

// Record appends an item result and updates the counters
func (r *SyncResult) Record(item ItemResult) {
	r.Details = append(r.Details, item)
	if item.Success {
		r.ItemsSynced++
		return
	}
	r.ItemsFailed++
	if item.Error != "" {
		r.Errors = append(r.Errors, item.Name+": "+item.Error)
	}
}

// Status returns success when no item failed, partial otherwise
func (r *SyncResult) Status() SyncStatus {
	if r.ItemsFailed == 0 {
		return SyncStatusSuccess
	}
	return SyncStatusPartial
}

// RetryPolicy bounds item-level retries inside a sync
type RetryPolicy struct {
	// MaxAttempts bounds attempts per item on NetworkError
	MaxAttempts int
	// NavigationAttempts bounds attempts per item on DriverNavigationError
	NavigationAttempts int
	InitialInterval    time.Duration
	MaxInterval        time.Duration
}

// DefaultRetryPolicy returns the retry policy used when none is configured
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:        3,
		NavigationAttempts: 2,
		InitialInterval:    500 * time.Millisecond,
		MaxInterval:        5 * time.Second,
	}
}

// SyncRequest is the input to PlatformDriver.SyncMenu
type SyncRequest struct {
	RestaurantID string
	SyncType     SyncType
	Changes      []ItemChange
	Retry        RetryPolicy
}

// SyncLog is the append-only record of one sync attempt
type SyncLog struct {
	ID           uuid.UUID
	RestaurantID string
	Platform     Platform
	SyncType     SyncType
	Status       SyncStatus
	ItemsSynced  int
	ItemsFailed  int
	Errors       []string
	ArtifactKey  string
	StartedAt    time.Time
	CompletedAt  time.Time
}

// NewSyncLog starts a log entry. It is written once, after completion.
func NewSyncLog(restaurantID string, platform Platform, syncType SyncType, startedAt time.Time) *SyncLog {
	return &SyncLog{
		ID:           uuid.New(),
		RestaurantID: restaurantID,
		Platform:     platform,
		SyncType:     syncType,
		StartedAt:    startedAt,
	}
}

// Complete fills the log from a driver result
func (l *SyncLog) Complete(result *SyncResult, at time.Time) {
	l.Status = result.Status()
	l.ItemsSynced = result.ItemsSynced
	l.ItemsFailed = result.ItemsFailed
	l.Errors = append([]string(nil), result.Errors...)
	l.CompletedAt = at
}

// Fail marks the whole attempt failed
func (l *SyncLog) Fail(message string, at time.Time) {
	l.Status = SyncStatusFailed
	l.Errors = append(l.Errors, message)
	l.CompletedAt = at
}

// SyncLogFilter selects a page of sync logs
type SyncLogFilter struct {
	RestaurantID string
	Platform     Platform
	Page         int
	PageSize     int
}

// Normalize applies paging defaults and bounds
func (f *SyncLogFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = 20
	}
	if f.PageSize > 100 {
		f.PageSize = 100
	}
}

// Offset returns the row offset for the page
func (f SyncLogFilter) Offset() int {
	return (f.Page - 1) * f.PageSize
}

// SyncOutcome is the result of syncing one platform
type SyncOutcome struct {
	Platform    Platform     `json:"platform"`
	SyncType    SyncType     `json:"sync_type"`
	Success     bool         `json:"success"`
	Status      SyncStatus   `json:"status"`
	ItemsSynced int          `json:"items_synced"`
	ItemsFailed int          `json:"items_failed"`
	Errors      []string     `json:"errors"`
	Details     []ItemResult `json:"details"`
	Message     string       `json:"message"`
	SyncLogID   *uuid.UUID   `json:"sync_log_id,omitempty"`
}

// FailedOutcome builds the outcome of a platform that could not be synced at all
func FailedOutcome(platform Platform, syncType SyncType, message string) SyncOutcome {
	return SyncOutcome{
		Platform: platform,
		SyncType: syncType,
		Status:   SyncStatusFailed,
		Errors:   []string{message},
		Details:  []ItemResult{},
		Message:  message,
	}
}

// BatchOutcome aggregates a fan-out across platforms
type BatchOutcome struct {
	OverallSuccess bool          `json:"overall_success"`
	TotalSynced    int           `json:"total_synced"`
	TotalFailed    int           `json:"total_failed"`
	Platforms      []SyncOutcome `json:"platforms"`
}

// AggregateOutcomes sums item counters and ANDs per-platform success.
func AggregateOutcomes(outcomes []SyncOutcome) BatchOutcome {
	batch := BatchOutcome{
		OverallSuccess: true,
		Platforms:      outcomes,
	}
	for _, o := range outcomes {
		batch.TotalSynced += o.ItemsSynced
		batch.TotalFailed += o.ItemsFailed
		batch.OverallSuccess = batch.OverallSuccess && o.Success
	}
	return batch
}
