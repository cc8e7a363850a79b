package handler

import (
	"time"

	"github.com/deliverysync/backend/internal/domain/delivery"
	"github.com/google/uuid"
)

// InitSessionRequest starts an interactive portal login. An empty password
// uses the stored credential.
type InitSessionRequest struct {
	Platform string `json:"platform" binding:"required,platform"`
	Username string `json:"username" binding:"max=255"`
	Password string `json:"password" binding:"max=1024"`
}

// CleanupSessionsRequest sweeps sessions older than MaxAgeDays. Zero uses
// the configured age.
type CleanupSessionsRequest struct {
	MaxAgeDays int `json:"max_age_days" binding:"omitempty,min=1,max=365"`
}

// CleanupSessionsResponse reports how many sessions were removed
type CleanupSessionsResponse struct {
	Removed int64 `json:"removed"`
}

// SaveCredentialsRequest stores a portal login. Platform comes from the path
// on POST /credentials/:platform and from the body on POST /credentials.
type SaveCredentialsRequest struct {
	Platform   string               `json:"platform" binding:"omitempty,platform"`
	Username   string               `json:"username" binding:"required,max=255"`
	Password   string               `json:"password" binding:"required,max=1024"`
	PortalURL  string               `json:"portal_url" binding:"omitempty,url,max=2048"`
	SyncConfig *delivery.SyncConfig `json:"sync_config"`
}

// UpdateCredentialsRequest patches a stored login. Omitted fields keep their value.
type UpdateCredentialsRequest struct {
	Username   *string              `json:"username" binding:"omitempty,min=1,max=255"`
	Password   *string              `json:"password" binding:"omitempty,min=1,max=1024"`
	PortalURL  *string              `json:"portal_url" binding:"omitempty,max=2048"`
	SyncConfig *delivery.SyncConfig `json:"sync_config"`
	IsActive   *bool                `json:"is_active"`
}

// TestCredentialsRequest probes a login without storing anything
type TestCredentialsRequest struct {
	Platform  string `json:"platform" binding:"required,platform"`
	Username  string `json:"username" binding:"required,max=255"`
	Password  string `json:"password" binding:"required,max=1024"`
	PortalURL string `json:"portal_url" binding:"omitempty,url,max=2048"`
}

// SyncRequest selects what a sync pushes; the body is optional and defaults
// to full_sync
type SyncRequest struct {
	SyncType string `json:"sync_type" binding:"omitempty,sync_type"`
}

// SyncLogListQuery pages through sync history, newest first
type SyncLogListQuery struct {
	Platform string `form:"platform" binding:"omitempty,platform"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// SyncLogResponse is one sync attempt in the history
type SyncLogResponse struct {
	ID          uuid.UUID           `json:"id"`
	Platform    delivery.Platform   `json:"platform"`
	SyncType    delivery.SyncType   `json:"sync_type"`
	Status      delivery.SyncStatus `json:"status"`
	ItemsSynced int                 `json:"items_synced"`
	ItemsFailed int                 `json:"items_failed"`
	Errors      []string            `json:"errors"`
	HasArtifact bool                `json:"has_artifact"`
	StartedAt   time.Time           `json:"started_at"`
	CompletedAt time.Time           `json:"completed_at"`
	DurationMs  int64               `json:"duration_ms"`
}

// ToSyncLogResponse converts a domain sync log
func ToSyncLogResponse(l delivery.SyncLog) SyncLogResponse {
	errs := l.Errors
	if errs == nil {
		errs = []string{}
	}
	return SyncLogResponse{
		ID:          l.ID,
		Platform:    l.Platform,
		SyncType:    l.SyncType,
		Status:      l.Status,
		ItemsSynced: l.ItemsSynced,
		ItemsFailed: l.ItemsFailed,
		Errors:      errs,
		HasArtifact: l.ArtifactKey != "",
		StartedAt:   l.StartedAt,
		CompletedAt: l.CompletedAt,
		DurationMs:  l.CompletedAt.Sub(l.StartedAt).Milliseconds(),
	}
}

// ToSyncLogResponses converts a page of sync logs
func ToSyncLogResponses(logs []delivery.SyncLog) []SyncLogResponse {
	out := make([]SyncLogResponse, len(logs))
	for i := range logs {
		out[i] = ToSyncLogResponse(logs[i])
	}
	return out
}
