package api

import (
	"errors"
	"net/http"

	"github.com/inboxops/brevo-console/internal/importer"
	"github.com/inboxops/brevo-console/internal/pkg/httputil"
)

// startImportRequest is the bulk import payload. Contacts is raw pasted
// text, one contact per line: email[,firstName[,lastName]].
type startImportRequest struct {
	AccountID string  `json:"accountId"`
	ListID    int64   `json:"listId"`
	ListName  string  `json:"listName"`
	Contacts  string  `json:"contacts"`
	Delay     float64 `json:"delay"`
}

// HandleStartImport parses the pasted batch and starts an import job. The
// job runs in the background; the response returns its initial snapshot.
// Starting a job for an account replaces any previous job for it.
//
//	POST /api/import/jobs
func (h *Handlers) HandleStartImport(w http.ResponseWriter, r *http.Request) {
	var req startImportRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.AccountID == "" {
		httputil.BadRequest(w, "accountId is required")
		return
	}
	if req.ListID <= 0 {
		httputil.BadRequest(w, "listId is required")
		return
	}
	if req.Delay < 0 {
		httputil.BadRequest(w, "delay must not be negative")
		return
	}

	job, err := h.engine.StartJob(r.Context(), importer.StartRequest{
		AccountID: req.AccountID,
		ListID:    req.ListID,
		ListName:  req.ListName,
		Contacts:  importer.ParseContacts(req.Contacts),
		Delay:     req.Delay,
	})
	if err != nil {
		switch {
		case errors.Is(err, importer.ErrNoContacts):
			httputil.BadRequest(w, err.Error())
		case errors.Is(err, importer.ErrAccountNotFound):
			httputil.NotFound(w, err.Error())
		case errors.Is(err, importer.ErrStopped):
			httputil.Error(w, http.StatusServiceUnavailable, err.Error())
		default:
			httputil.InternalError(w, err)
		}
		return
	}

	httputil.Accepted(w, job)
}

// HandleListJobs returns every tracked job keyed by id.
//
//	GET /api/import/jobs
func (h *Handlers) HandleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs := h.engine.Jobs()

	byID := make(map[string]importer.Job, len(jobs))
	for _, j := range jobs {
		byID[j.ID] = j
	}

	httputil.OK(w, byID)
}

// HandleGetJob returns one job snapshot.
//
//	GET /api/import/jobs/{jobID}
func (h *Handlers) HandleGetJob(w http.ResponseWriter, r *http.Request) {
	job, ok := h.engine.Job(urlParam(r, "jobID"))
	if !ok {
		httputil.NotFound(w, "job not found")
		return
	}

	httputil.OK(w, job)
}

// HandlePauseJob pauses a running job at its next checkpoint.
//
//	POST /api/import/jobs/{jobID}/pause
func (h *Handlers) HandlePauseJob(w http.ResponseWriter, r *http.Request) {
	h.commandJob(w, r, h.engine.Pause)
}

// HandleResumeJob resumes a paused job.
//
//	POST /api/import/jobs/{jobID}/resume
func (h *Handlers) HandleResumeJob(w http.ResponseWriter, r *http.Request) {
	h.commandJob(w, r, h.engine.Resume)
}

// HandleCancelJob requests cancellation. The job stays visible while its
// loop winds down and reports cancelled once it stops.
//
//	POST /api/import/jobs/{jobID}/cancel
func (h *Handlers) HandleCancelJob(w http.ResponseWriter, r *http.Request) {
	h.commandJob(w, r, h.engine.Cancel)
}

// commandJob applies a control command and responds with the refreshed job.
// Commands on unknown or already finished jobs answer 404.
func (h *Handlers) commandJob(w http.ResponseWriter, r *http.Request, cmd func(string) bool) {
	jobID := urlParam(r, "jobID")

	if !cmd(jobID) {
		httputil.NotFound(w, "no controllable job with that id")
		return
	}

	if job, ok := h.engine.Job(jobID); ok {
		httputil.OK(w, job)
		return
	}
	httputil.OK(w, map[string]bool{"ok": true})
}
