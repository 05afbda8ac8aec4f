package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"go-insight-pipeline/internal/model"
	"go-insight-pipeline/internal/pipeline"
	"go-insight-pipeline/internal/queue"
	"go-insight-pipeline/internal/store"
	"go-insight-pipeline/pkg/router"
)

// MaxUploadBytes caps the size of a submitted dataset.
const MaxUploadBytes = 32 << 20

// Jobs is the queue surface the handlers need.
type Jobs interface {
	Submit(ctx context.Context, sub queue.Submission) (model.Job, error)
	Get(jobID string) (model.Job, error)
	List() []model.Job
	Clean(ctx context.Context, jobID string) (model.Job, error)
	Deduplicate(ctx context.Context, jobID string) (model.Job, error)
	Undo(ctx context.Context, jobID string) (model.Job, error)
	Errors(ctx context.Context, jobID string) ([]store.JobError, error)
	Subscribe(jobID string) (<-chan model.Job, func())
	Snapshot(ctx context.Context, jobID string) (model.Snapshot, error)
}

// JobHandler serves the job endpoints.
type JobHandler struct {
	jobs Jobs
}

func NewJobHandler(jobs Jobs) *JobHandler {
	return &JobHandler{jobs: jobs}
}

// CreateJob uploads a dataset and starts processing it
// @Summary Submit a dataset
// @Description Upload a CSV or XLSX file as multipart field "file", or send the raw CSV as the request body with ?name=
// @Tags jobs
// @Accept multipart/form-data
// @Produce json
// @Param file formData file false "Dataset file"
// @Param name query string false "File name for raw bodies"
// @Param X-User-ID header string false "Caller id used for enrichment quota"
// @Success 202 {object} model.Job "Job accepted"
// @Failure 400 {object} map[string]string "Invalid upload"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /jobs [post]
func (h *JobHandler) CreateJob(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)

	name, content, err := readUpload(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(content) == 0 {
		writeError(w, http.StatusBadRequest, "empty upload")
		return
	}

	job, err := h.jobs.Submit(r.Context(), queue.Submission{
		JobID:    uuid.New().String(),
		UserID:   r.Header.Get("X-User-ID"),
		FileName: name,
		Content:  content,
	})
	if err != nil {
		zap.L().Error("api: submit job", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to submit job")
		return
	}

	writeJSON(w, http.StatusAccepted, job)
}

func readUpload(r *http.Request) (string, []byte, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, header, err := r.FormFile("file")
		if err != nil {
			return "", nil, eris.Wrap(err, "read multipart field \"file\"")
		}
		defer file.Close()
		content, err := io.ReadAll(file)
		if err != nil {
			return "", nil, eris.Wrap(err, "read upload")
		}
		return header.Filename, content, nil
	}

	content, err := io.ReadAll(r.Body)
	if err != nil {
		return "", nil, eris.Wrap(err, "read body")
	}
	name := r.URL.Query().Get("name")
	if name == "" {
		name = "upload.csv"
	}
	return name, content, nil
}

// ListJobs returns all jobs
// @Summary List jobs
// @Description Get every known job, newest first
// @Tags jobs
// @Produce json
// @Success 200 {array} model.Job "List of jobs"
// @Router /jobs [get]
func (h *JobHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.jobs.List())
}

// GetJob returns one job
// @Summary Get job
// @Description Retrieve the current state of a job
// @Tags jobs
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} model.Job "Job details"
// @Failure 404 {object} map[string]string "Job not found"
// @Router /jobs/{id} [get]
func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.jobs.Get(router.Wildcard(r, 0))
	if err != nil {
		writeQueueError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// GetJobSummary returns the analysis of a job
// @Summary Get job summary
// @Description Retrieve the data summary of a processed job
// @Tags jobs
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} model.DataSummary "Data summary"
// @Failure 404 {object} map[string]string "Job not found"
// @Failure 409 {object} map[string]string "Job has no summary yet"
// @Router /jobs/{id}/summary [get]
func (h *JobHandler) GetJobSummary(w http.ResponseWriter, r *http.Request) {
	job, err := h.jobs.Get(router.Wildcard(r, 0))
	if err != nil {
		writeQueueError(w, err)
		return
	}
	if job.Summary == nil {
		writeError(w, http.StatusConflict, fmt.Sprintf("job is %s", job.Status))
		return
	}
	writeJSON(w, http.StatusOK, job.Summary)
}

// CleanJob fills missing values on the current snapshot
// @Summary Clean dataset
// @Description Fill missing values and trim text, pushing a new snapshot
// @Tags snapshots
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} model.Job "Updated job"
// @Failure 404 {object} map[string]string "Job not found"
// @Failure 409 {object} map[string]string "Job not completed"
// @Router /jobs/{id}/clean [post]
func (h *JobHandler) CleanJob(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, h.jobs.Clean)
}

// DeduplicateJob removes duplicate rows from the current snapshot
// @Summary Deduplicate dataset
// @Description Remove duplicate rows, pushing a new snapshot
// @Tags snapshots
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} model.Job "Updated job"
// @Failure 404 {object} map[string]string "Job not found"
// @Failure 409 {object} map[string]string "Job not completed"
// @Router /jobs/{id}/deduplicate [post]
func (h *JobHandler) DeduplicateJob(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, h.jobs.Deduplicate)
}

// UndoJob reverts to the previous snapshot
// @Summary Undo last change
// @Description Pop the current snapshot and re-analyze the previous one
// @Tags snapshots
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} model.Job "Updated job"
// @Failure 404 {object} map[string]string "Job not found"
// @Failure 409 {object} map[string]string "Job not completed"
// @Router /jobs/{id}/undo [post]
func (h *JobHandler) UndoJob(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, h.jobs.Undo)
}

func (h *JobHandler) action(w http.ResponseWriter, r *http.Request, fn func(context.Context, string) (model.Job, error)) {
	job, err := fn(r.Context(), router.Wildcard(r, 0))
	if err != nil {
		writeQueueError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// GetJobErrors returns the failed attempts of a job
// @Summary Get job errors
// @Description Retrieve every recorded failed attempt of a job
// @Tags jobs
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} map[string]interface{} "Job errors"
// @Failure 404 {object} map[string]string "Job not found"
// @Router /jobs/{id}/errors [get]
func (h *JobHandler) GetJobErrors(w http.ResponseWriter, r *http.Request) {
	jobID := router.Wildcard(r, 0)
	errs, err := h.jobs.Errors(r.Context(), jobID)
	if err != nil {
		writeQueueError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"jobId":  jobID,
		"errors": errs,
		"count":  len(errs),
	})
}

// ExportJob downloads the current working dataset
// @Summary Export job dataset
// @Description Download the dataset on top of the job's snapshot stack as csv, json or xlsx
// @Tags jobs
// @Produce text/csv
// @Param id path string true "Job ID"
// @Param format query string false "csv (default), json or xlsx"
// @Success 200 {file} file "Dataset"
// @Failure 400 {object} map[string]string "Unknown format"
// @Failure 404 {object} map[string]string "Job not found"
// @Failure 409 {object} map[string]string "Job not completed"
// @Router /jobs/{id}/export [get]
func (h *JobHandler) ExportJob(w http.ResponseWriter, r *http.Request) {
	jobID := router.Wildcard(r, 0)
	format := r.URL.Query().Get("format")
	if format == "" {
		format = pipeline.FormatCSV
	}
	if format != pipeline.FormatCSV && format != pipeline.FormatJSON && format != pipeline.FormatXLSX {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown format %q", format))
		return
	}

	snap, err := h.jobs.Snapshot(r.Context(), jobID)
	if err != nil {
		writeQueueError(w, err)
		return
	}

	w.Header().Set("Content-Type", pipeline.ContentType(format))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fmt.Sprintf("%s-v%d.%s", jobID, snap.Version, format)))
	if _, err := pipeline.Export(w, snap.Dataset, format); err != nil {
		zap.L().Error("api: export job", zap.String("job_id", jobID), zap.Error(err))
	}
}

// StreamJobEvents streams job state changes
// @Summary Stream job events
// @Description Server-sent events carrying the job after every change, until it finishes
// @Tags jobs
// @Produce text/event-stream
// @Param id path string true "Job ID"
// @Success 200 {object} model.Job "Stream of job states"
// @Failure 404 {object} map[string]string "Job not found"
// @Router /jobs/{id}/events [get]
func (h *JobHandler) StreamJobEvents(w http.ResponseWriter, r *http.Request) {
	jobID := router.Wildcard(r, 0)
	if _, err := h.jobs.Get(jobID); err != nil {
		writeQueueError(w, err)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	updates, cancel := h.jobs.Subscribe(jobID)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	keepAlive := time.NewTicker(15 * time.Second)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepAlive.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case job, open := <-updates:
			if !open {
				return
			}
			b, err := json.Marshal(job)
			if err != nil {
				zap.L().Error("api: marshal job event", zap.String("job_id", jobID), zap.Error(err))
				return
			}
			fmt.Fprintf(w, "event: status\ndata: %s\n\n", b)
			flusher.Flush()
			if job.Status.Terminal() {
				return
			}
		}
	}
}

// Health reports liveness
// @Summary Health check
// @Tags system
// @Produce json
// @Success 200 {object} map[string]string "Service is up"
// @Router /health [get]
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeQueueError(w http.ResponseWriter, err error) {
	switch {
	case eris.Is(err, queue.ErrJobNotFound), eris.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "job not found")
	case eris.Is(err, queue.ErrNotReady):
		writeError(w, http.StatusConflict, err.Error())
	default:
		zap.L().Error("api: job request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
