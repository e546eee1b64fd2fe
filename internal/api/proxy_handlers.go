package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/inboxops/brevo-console/internal/brevo"
	"github.com/inboxops/brevo-console/internal/pkg/httputil"
)

func urlParam(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}

// providerError maps a failed provider call onto the console's response.
// Provider rejections keep their upstream status and code; transport
// failures become 502.
func providerError(w http.ResponseWriter, err error) {
	var apiErr *brevo.APIError
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if msg == "" {
			msg = http.StatusText(apiErr.StatusCode)
		}
		httputil.ErrorWithCode(w, apiErr.StatusCode, apiErr.Code, msg)
		return
	}
	httputil.BadGateway(w, "provider request failed: "+err.Error())
}

// parseLimitOffset reads pagination query parameters with sane bounds.
func parseLimitOffset(r *http.Request, defaultLimit int) (limit, offset int) {
	limit = defaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 500 {
		limit = 500
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}

// HandleGetLists proxies the provider's contact lists.
//
//	GET /api/lists
func (h *Handlers) HandleGetLists(w http.ResponseWriter, r *http.Request) {
	client, ok := h.providerClient(w, r)
	if !ok {
		return
	}

	limit, offset := parseLimitOffset(r, 50)
	lists, err := client.GetLists(r.Context(), limit, offset)
	if err != nil {
		providerError(w, err)
		return
	}

	httputil.OK(w, lists)
}

// HandleGetListContacts proxies the subscribers of one list.
//
//	GET /api/lists/{listID}/contacts
func (h *Handlers) HandleGetListContacts(w http.ResponseWriter, r *http.Request) {
	listID, err := strconv.ParseInt(urlParam(r, "listID"), 10, 64)
	if err != nil {
		httputil.BadRequest(w, "invalid list id")
		return
	}

	client, ok := h.providerClient(w, r)
	if !ok {
		return
	}

	limit, offset := parseLimitOffset(r, 50)
	contacts, err := client.GetListContacts(r.Context(), listID, limit, offset)
	if err != nil {
		providerError(w, err)
		return
	}

	httputil.OK(w, contacts)
}

// HandleGetContact proxies a single contact lookup by email or id.
//
//	GET /api/contacts/{identifier}
func (h *Handlers) HandleGetContact(w http.ResponseWriter, r *http.Request) {
	client, ok := h.providerClient(w, r)
	if !ok {
		return
	}

	contact, err := client.GetContact(r.Context(), urlParam(r, "identifier"))
	if err != nil {
		providerError(w, err)
		return
	}

	httputil.OK(w, contact)
}

// upsertContactRequest is the single-contact upsert payload.
type upsertContactRequest struct {
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	ListID    int64  `json:"listId"`
}

// HandleUpsertContact creates or updates one contact on a list, the same
// provider call the import engine makes per batch entry.
//
//	POST /api/contacts
func (h *Handlers) HandleUpsertContact(w http.ResponseWriter, r *http.Request) {
	var req upsertContactRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.Email == "" {
		httputil.BadRequest(w, "email is required")
		return
	}
	if req.ListID <= 0 {
		httputil.BadRequest(w, "listId is required")
		return
	}

	client, ok := h.providerClient(w, r)
	if !ok {
		return
	}

	attrs := make(map[string]string)
	if req.FirstName != "" {
		attrs["FNAME"] = req.FirstName
	}
	if req.LastName != "" {
		attrs["LNAME"] = req.LastName
	}

	created, _, err := client.UpsertContact(r.Context(), brevo.UpsertContactRequest{
		Email:         req.Email,
		Attributes:    attrs,
		ListIDs:       []int64{req.ListID},
		UpdateEnabled: true,
	})
	if err != nil {
		providerError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	httputil.JSON(w, status, map[string]bool{"created": created})
}

// HandleGetSenders proxies the account's verified senders.
//
//	GET /api/senders
func (h *Handlers) HandleGetSenders(w http.ResponseWriter, r *http.Request) {
	client, ok := h.providerClient(w, r)
	if !ok {
		return
	}

	senders, err := client.GetSenders(r.Context())
	if err != nil {
		providerError(w, err)
		return
	}

	httputil.OK(w, senders)
}

// HandleGetStatistics proxies aggregated sending statistics, defaulting to
// the trailing seven days.
//
//	GET /api/statistics
func (h *Handlers) HandleGetStatistics(w http.ResponseWriter, r *http.Request) {
	client, ok := h.providerClient(w, r)
	if !ok {
		return
	}

	now := time.Now().UTC()
	endDate := r.URL.Query().Get("endDate")
	startDate := r.URL.Query().Get("startDate")
	if endDate == "" {
		endDate = now.Format("2006-01-02")
	}
	if startDate == "" {
		startDate = now.AddDate(0, 0, -7).Format("2006-01-02")
	}

	report, err := client.GetAggregatedReport(r.Context(), startDate, endDate)
	if err != nil {
		providerError(w, err)
		return
	}

	httputil.OK(w, report)
}
