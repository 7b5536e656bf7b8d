package api

import (
	"time"

	"github.com/phrazzld/chapterq/internal/domain"
)

// CreateDownloadRequest is the body of POST /api/downloads.
type CreateDownloadRequest struct {
	Title   string   `json:"title" validate:"required,max=256"`
	Chapter string   `json:"chapter" validate:"required,max=256"`
	Pages   []string `json:"pages" validate:"required,min=1,dive,required,http_url"`
}

// DownloadResponse acknowledges an accepted download.
type DownloadResponse struct {
	Job     JobResponse `json:"job"`
	Started bool        `json:"started"`
}

// JobResponse is the wire form of a queued job. Page URLs are omitted since
// they may carry signed query strings.
type JobResponse struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Chapter   string `json:"chapter"`
	PageCount int    `json:"page_count"`
}

// QueueResponse describes the queue and the host's last progress report.
type QueueResponse struct {
	Running          bool          `json:"running"`
	Pending          int           `json:"pending"`
	Jobs             []JobResponse `json:"jobs"`
	LastProgress     string        `json:"last_progress"`
	ProgressComplete bool          `json:"progress_complete"`
	Messages         []string      `json:"messages"`
}

// StartResponse reports whether a start request began a new drain session.
type StartResponse struct {
	Started bool `json:"started"`
}

// CancelResponse acknowledges a cancel request.
type CancelResponse struct {
	Chapter string `json:"chapter"`
}

// ChapterStateResponse is the wire form of a tracked chapter.
type ChapterStateResponse struct {
	Chapter      string    `json:"chapter"`
	JobID        string    `json:"job_id"`
	Title        string    `json:"title"`
	Status       string    `json:"status"`
	ErrorMessage string    `json:"error_message,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func jobToResponse(job domain.Job) JobResponse {
	return JobResponse{
		ID:        job.ID.String(),
		Title:     job.Title,
		Chapter:   job.Chapter,
		PageCount: len(job.Pages),
	}
}

func stateToResponse(state *domain.ChapterState) ChapterStateResponse {
	return ChapterStateResponse{
		Chapter:      state.Chapter,
		JobID:        state.JobID.String(),
		Title:        state.Title,
		Status:       string(state.Status),
		ErrorMessage: state.ErrorMessage,
		UpdatedAt:    state.UpdatedAt,
	}
}
