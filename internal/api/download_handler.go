package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/phrazzld/chapterq/internal/api/shared"
	"github.com/phrazzld/chapterq/internal/domain"
	"github.com/phrazzld/chapterq/internal/events"
	"github.com/phrazzld/chapterq/internal/platform/logger"
	"github.com/phrazzld/chapterq/internal/task"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// Queue is the part of the queue processor the API drives.
type Queue interface {
	Enqueue(job domain.Job)
	Start() bool
	Status() task.QueueStatus
}

// StateTracker records and reads chapter download states.
type StateTracker interface {
	Queued(ctx context.Context, job domain.Job) error
	State(ctx context.Context, chapter string) (*domain.ChapterState, error)
	Recent(ctx context.Context, limit int) ([]*domain.ChapterState, error)
}

// ActivityReader exposes what the processor last reported to the host.
type ActivityReader interface {
	LastProgress() (text string, complete bool)
	Messages() []string
}

// DownloadHandler serves the download queue endpoints.
type DownloadHandler struct {
	queue    Queue
	tracker  StateTracker
	activity ActivityReader
	notifier task.Notifier
	emitter  events.EventEmitter
	logger   *slog.Logger
}

// DownloadHandlerConfig holds the dependencies of a DownloadHandler.
type DownloadHandlerConfig struct {
	Queue    Queue
	Tracker  StateTracker
	Activity ActivityReader
	Notifier task.Notifier
	Emitter  events.EventEmitter
}

// NewDownloadHandler creates a DownloadHandler. It panics if a dependency
// is missing.
func NewDownloadHandler(cfg DownloadHandlerConfig, logger *slog.Logger) *DownloadHandler {
	if cfg.Queue == nil || cfg.Tracker == nil || cfg.Activity == nil || cfg.Notifier == nil || cfg.Emitter == nil {
		panic("download handler: missing dependency")
	}
	return &DownloadHandler{
		queue:    cfg.Queue,
		tracker:  cfg.Tracker,
		activity: cfg.Activity,
		notifier: cfg.Notifier,
		emitter:  cfg.Emitter,
		logger:   logger.With("component", "download_handler"),
	}
}

// Routes registers the handler's endpoints on r.
func (h *DownloadHandler) Routes(r chi.Router) {
	r.Post("/downloads", h.CreateDownload)
	r.Get("/queue", h.GetQueue)
	r.Post("/queue/start", h.StartQueue)
	r.Get("/chapters", h.ListChapters)
	r.Get("/chapters/{chapter}", h.GetChapter)
	r.Post("/chapters/{chapter}/cancel", h.CancelChapter)
}

// CreateDownload handles POST /api/downloads: the job is recorded as queued,
// appended to the queue, and a drain session is started.
func (h *DownloadHandler) CreateDownload(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req CreateDownloadRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return
	}

	job, err := domain.NewJob(req.Title, req.Chapter, req.Pages)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	if err := h.tracker.Queued(r.Context(), job); err != nil {
		HandleAPIError(w, r, fmt.Errorf("record queued job: %w", err), "Failed to queue download")
		return
	}

	h.queue.Enqueue(job)
	h.notifier.Notify(task.StartedText)
	started := h.queue.Start()

	log.Info("download queued",
		"job_id", job.ID,
		"chapter", job.Chapter,
		"pages", len(job.Pages),
		"session_started", started)

	shared.RespondWithJSON(w, r, http.StatusAccepted, DownloadResponse{
		Job:     jobToResponse(job),
		Started: started,
	})
}

// GetQueue handles GET /api/queue.
func (h *DownloadHandler) GetQueue(w http.ResponseWriter, r *http.Request) {
	status := h.queue.Status()
	text, complete := h.activity.LastProgress()

	jobs := make([]JobResponse, 0, len(status.Jobs))
	for _, job := range status.Jobs {
		jobs = append(jobs, jobToResponse(job))
	}

	messages := h.activity.Messages()
	if messages == nil {
		messages = []string{}
	}

	shared.RespondWithJSON(w, r, http.StatusOK, QueueResponse{
		Running:          status.Running,
		Pending:          status.Pending,
		Jobs:             jobs,
		LastProgress:     text,
		ProgressComplete: complete,
		Messages:         messages,
	})
}

// StartQueue handles POST /api/queue/start.
func (h *DownloadHandler) StartQueue(w http.ResponseWriter, r *http.Request) {
	h.notifier.Notify(task.StartedText)
	started := h.queue.Start()

	logger.FromContextOrDefault(r.Context(), h.logger).
		Debug("start requested", "session_started", started)

	shared.RespondWithJSON(w, r, http.StatusAccepted, StartResponse{Started: started})
}

// CancelChapter handles POST /api/chapters/{chapter}/cancel by publishing a
// cancel request. The processor receives it only while it is registered.
func (h *DownloadHandler) CancelChapter(w http.ResponseWriter, r *http.Request) {
	chapter, ok := h.chapterParam(w, r)
	if !ok {
		return
	}

	event, err := events.NewChapterEvent(events.EventTypeDownloadCancelRequested, chapter)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	if err := h.emitter.EmitEvent(r.Context(), event); err != nil {
		HandleAPIError(w, r, fmt.Errorf("emit cancel request: %w", err), "Failed to cancel download")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, CancelResponse{Chapter: chapter})
}

// GetChapter handles GET /api/chapters/{chapter}.
func (h *DownloadHandler) GetChapter(w http.ResponseWriter, r *http.Request) {
	chapter, ok := h.chapterParam(w, r)
	if !ok {
		return
	}

	state, err := h.tracker.State(r.Context(), chapter)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, stateToResponse(state))
}

// ListChapters handles GET /api/chapters?limit=N, newest first.
func (h *DownloadHandler) ListChapters(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxListLimit {
			HandleAPIError(w, r, fmt.Errorf("%w: %q", ErrInvalidLimit, raw), "")
			return
		}
		limit = n
	}

	states, err := h.tracker.Recent(r.Context(), limit)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list chapters")
		return
	}

	resp := make([]ChapterStateResponse, 0, len(states))
	for _, state := range states {
		resp = append(resp, stateToResponse(state))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// chapterParam extracts the unescaped chapter path parameter, writing a 400
// if it is missing.
func (h *DownloadHandler) chapterParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	chapter, err := url.PathUnescape(chi.URLParam(r, "chapter"))
	if err != nil || chapter == "" {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid chapter")
		return "", false
	}
	return chapter, true
}
