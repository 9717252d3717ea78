// Package httpapi exposes the retention job, milestone pinning and archive
// restore to operators over HTTP.
package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/berniemackie97/skillbound-sub002/internal/dbx"
	"github.com/berniemackie97/skillbound-sub002/internal/logging"
	"github.com/berniemackie97/skillbound-sub002/internal/netx"
	"github.com/berniemackie97/skillbound-sub002/internal/server/archive"
	"github.com/berniemackie97/skillbound-sub002/internal/server/models"
	"github.com/berniemackie97/skillbound-sub002/internal/server/monitor"
	"github.com/berniemackie97/skillbound-sub002/internal/server/repositories/repomanager"
	"github.com/berniemackie97/skillbound-sub002/internal/server/retention"
	"github.com/gorilla/mux"
)

const defaultArchiveListLimit = 100

type JobRunner interface {
	Run(ctx context.Context, opts retention.Options) *retention.Summary
}

type MilestoneService interface {
	DetectForSnapshot(ctx context.Context, snapshotID string) ([]models.Milestone, error)
	Mark(ctx context.Context, snapshotID string, milestoneType models.MilestoneType, data *models.TaggedValue) error
}

type ArchiveRestorer interface {
	Restore(ctx context.Context, archiveID string, dryRun bool) (archive.RestoreResult, error)
}

type ArchiveLinks interface {
	URL(ctx context.Context, archiveID string) (string, error)
}

// Handler serves the operator API.
type Handler struct {
	job        JobRunner
	milestones MilestoneService
	restorer   ArchiveRestorer
	links      ArchiveLinks
	tx         dbx.Transactor
	repos      repomanager.RepositoryManager
	monitor    *monitor.JobMonitor
	log        logging.Logger

	now func() time.Time
}

func NewHandler(
	job JobRunner,
	milestones MilestoneService,
	restorer ArchiveRestorer,
	links ArchiveLinks,
	tx dbx.Transactor,
	repos repomanager.RepositoryManager,
	mon *monitor.JobMonitor,
	log logging.Logger,
) *Handler {
	return &Handler{
		job:        job,
		milestones: milestones,
		restorer:   restorer,
		links:      links,
		tx:         tx,
		repos:      repos,
		monitor:    mon,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Routes registers every endpoint under /v1.
func (h *Handler) Routes(router *mux.Router) {
	api := router.PathPrefix("/v1").Subrouter()

	api.HandleFunc("/retention/run", h.handleRun).Methods(http.MethodPost)
	api.HandleFunc("/snapshots/{id}/milestone", h.handleMarkMilestone).Methods(http.MethodPost)
	api.HandleFunc("/snapshots/{id}/milestones", h.handleDetectMilestones).Methods(http.MethodGet)
	api.HandleFunc("/archives/{id}/restore", h.handleRestore).Methods(http.MethodPost)
	api.HandleFunc("/archives/{id}/url", h.handleArchiveURL).Methods(http.MethodGet)
	api.HandleFunc("/characters/{id}/archives", h.handleListArchives).Methods(http.MethodGet)
	api.HandleFunc("/characters/{id}/tiers", h.handleTierStats).Methods(http.MethodGet)
	api.HandleFunc("/health", h.handleHealth).Methods(http.MethodGet)
}

type runRequest struct {
	DryRun       bool     `json:"dryRun"`
	BatchSize    int      `json:"batchSize"`
	CharacterIDs []string `json:"characterIds"`
}

// handleRun runs the job synchronously and returns its summary. A fatal run
// still answers 200: the summary carries the failure.
func (h *Handler) handleRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := netx.DecodeJSON(r, &req); err != nil {
		netx.RespondError(w, http.StatusBadRequest, err)
		return
	}
	if req.BatchSize < 0 {
		netx.RespondErrorString(w, http.StatusBadRequest, "batchSize must not be negative")
		return
	}

	sum := h.job.Run(r.Context(), retention.Options{
		DryRun:       req.DryRun,
		BatchSize:    req.BatchSize,
		CharacterIDs: req.CharacterIDs,
	})
	netx.RespondJSON(w, http.StatusOK, sum)
}

type markRequest struct {
	Type models.MilestoneType `json:"type"`
	Data *models.TaggedValue  `json:"data,omitempty"`
}

func (h *Handler) handleMarkMilestone(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req markRequest
	if err := netx.DecodeJSON(r, &req); err != nil {
		netx.RespondError(w, http.StatusBadRequest, err)
		return
	}

	if err := h.milestones.Mark(r.Context(), id, req.Type, req.Data); err != nil {
		h.fail(r.Context(), w, "mark milestone", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDetectMilestones(w http.ResponseWriter, r *http.Request) {
	found, err := h.milestones.DetectForSnapshot(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.fail(r.Context(), w, "detect milestones", err)
		return
	}
	if found == nil {
		found = []models.Milestone{}
	}
	netx.RespondJSON(w, http.StatusOK, found)
}

func (h *Handler) handleRestore(w http.ResponseWriter, r *http.Request) {
	dryRun := false
	if v := r.URL.Query().Get("dryRun"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			netx.RespondErrorString(w, http.StatusBadRequest, "dryRun must be true or false")
			return
		}
		dryRun = parsed
	}

	res, err := h.restorer.Restore(r.Context(), mux.Vars(r)["id"], dryRun)
	if err != nil {
		h.fail(r.Context(), w, "restore archive", err)
		return
	}
	netx.RespondJSON(w, http.StatusOK, res)
}

func (h *Handler) handleArchiveURL(w http.ResponseWriter, r *http.Request) {
	url, err := h.links.URL(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.fail(r.Context(), w, "archive url", err)
		return
	}
	netx.RespondJSON(w, http.StatusOK, map[string]string{"url": url})
}

func (h *Handler) handleListArchives(w http.ResponseWriter, r *http.Request) {
	limit := defaultArchiveListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			netx.RespondErrorString(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	recs, err := h.repos.Archives(h.tx.Conn()).ListByProfile(r.Context(), mux.Vars(r)["id"], limit)
	if err != nil {
		h.fail(r.Context(), w, "list archives", err)
		return
	}
	if recs == nil {
		recs = []*models.ArchiveRecord{}
	}
	netx.RespondJSON(w, http.StatusOK, recs)
}

func (h *Handler) handleTierStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.repos.Snapshots(h.tx.Conn()).TierStats(r.Context(), mux.Vars(r)["id"], h.now())
	if err != nil {
		h.fail(r.Context(), w, "tier stats", err)
		return
	}
	if stats == nil {
		stats = []models.TierStat{}
	}
	netx.RespondJSON(w, http.StatusOK, stats)
}

// HealthResponse is the body of GET /v1/health.
type HealthResponse struct {
	Status string         `json:"status"`
	Job    monitor.Status `json:"job"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := h.monitor.Status()
	resp := HealthResponse{Status: "healthy", Job: status}
	code := http.StatusOK
	if !status.Healthy {
		resp.Status = "degraded"
		code = http.StatusServiceUnavailable
	}
	netx.RespondJSON(w, code, resp)
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, op string, err error) {
	if netx.StatusFor(err) == http.StatusInternalServerError {
		h.log.Error(ctx, op+" failed", "error", err.Error())
	}
	netx.Fail(w, err)
}
