package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/inboxops/brevo-console/internal/accounts"
	"github.com/inboxops/brevo-console/internal/brevo"
	"github.com/inboxops/brevo-console/internal/config"
	"github.com/inboxops/brevo-console/internal/importer"
	"github.com/inboxops/brevo-console/internal/pkg/httputil"
	"github.com/inboxops/brevo-console/internal/pkg/logger"
	"github.com/inboxops/brevo-console/internal/templates"
)

// Handlers contains all console HTTP handlers
type Handlers struct {
	brevoCfg  config.BrevoConfig
	store     accounts.Store
	engine    *importer.Engine
	previewer *templates.Previewer
}

// NewHandlers creates a new Handlers instance
func NewHandlers(brevoCfg config.BrevoConfig, store accounts.Store, engine *importer.Engine, previewer *templates.Previewer) *Handlers {
	return &Handlers{
		brevoCfg:  brevoCfg,
		store:     store,
		engine:    engine,
		previewer: previewer,
	}
}

// errNoAccountSelected means a proxy request named no account and none is active.
var errNoAccountSelected = errors.New("no account selected")

// resolveAccount picks the account for a proxy request: the accountId query
// parameter when present, the active account otherwise.
func (h *Handlers) resolveAccount(r *http.Request) (*accounts.Account, error) {
	ctx := r.Context()

	id := r.URL.Query().Get("accountId")
	if id == "" {
		activeID, err := h.store.ActiveID(ctx)
		if err != nil {
			return nil, fmt.Errorf("reading active account: %w", err)
		}
		if activeID == "" {
			return nil, errNoAccountSelected
		}
		id = activeID
	}

	return h.store.Get(ctx, id)
}

// providerClient resolves the request's account and builds a provider client
// for its API key. On failure it writes the error response and returns false.
func (h *Handlers) providerClient(w http.ResponseWriter, r *http.Request) (*brevo.Client, bool) {
	acct, err := h.resolveAccount(r)
	if err != nil {
		switch {
		case errors.Is(err, errNoAccountSelected):
			httputil.BadRequest(w, "no account selected: pass ?accountId= or set an active account")
		case errors.Is(err, accounts.ErrNotFound):
			httputil.NotFound(w, "account not found")
		default:
			httputil.InternalError(w, err)
		}
		return nil, false
	}

	return brevo.NewClient(h.brevoCfg, acct.APIKey), true
}

// accountView is the wire shape for an account. The API key is masked
// except in the create response, the only time the console echoes it back.
type accountView struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	APIKey    string    `json:"apiKey"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func maskedView(a *accounts.Account) accountView {
	v := fullView(a)
	v.APIKey = logger.RedactAPIKey(a.APIKey)
	return v
}

func fullView(a *accounts.Account) accountView {
	return accountView{
		ID:        a.ID,
		Name:      a.Name,
		APIKey:    a.APIKey,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

// accountRequest is the create/update payload.
type accountRequest struct {
	Name   string `json:"name"`
	APIKey string `json:"apiKey"`
}

// HandleListAccounts returns all configured accounts with masked keys.
//
//	GET /api/accounts
func (h *Handlers) HandleListAccounts(w http.ResponseWriter, r *http.Request) {
	accts, err := h.store.List(r.Context())
	if err != nil {
		httputil.InternalError(w, err)
		return
	}

	views := make([]accountView, 0, len(accts))
	for i := range accts {
		views = append(views, maskedView(&accts[i]))
	}

	httputil.OK(w, map[string]interface{}{
		"accounts": views,
		"count":    len(views),
	})
}

// HandleCreateAccount registers a provider account. The response carries
// the key unmasked so the console can confirm what was stored.
//
//	POST /api/accounts
func (h *Handlers) HandleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.Name == "" {
		httputil.BadRequest(w, "name is required")
		return
	}
	if req.APIKey == "" {
		httputil.BadRequest(w, "apiKey is required")
		return
	}

	acct, err := h.store.Create(r.Context(), req.Name, req.APIKey)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}

	httputil.Created(w, fullView(acct))
}

// HandleGetAccount returns one account with a masked key.
//
//	GET /api/accounts/{accountID}
func (h *Handlers) HandleGetAccount(w http.ResponseWriter, r *http.Request) {
	acct, err := h.store.Get(r.Context(), urlParam(r, "accountID"))
	if err != nil {
		if errors.Is(err, accounts.ErrNotFound) {
			httputil.NotFound(w, "account not found")
			return
		}
		httputil.InternalError(w, err)
		return
	}

	httputil.OK(w, maskedView(acct))
}

// HandleUpdateAccount renames an account or rotates its key. Empty fields
// keep their current value.
//
//	PUT /api/accounts/{accountID}
func (h *Handlers) HandleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if !httputil.Decode(w, r, &req) {
		return
	}

	acct, err := h.store.Update(r.Context(), urlParam(r, "accountID"), req.Name, req.APIKey)
	if err != nil {
		if errors.Is(err, accounts.ErrNotFound) {
			httputil.NotFound(w, "account not found")
			return
		}
		httputil.InternalError(w, err)
		return
	}

	httputil.OK(w, maskedView(acct))
}

// HandleDeleteAccount removes an account.
//
//	DELETE /api/accounts/{accountID}
func (h *Handlers) HandleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	err := h.store.Delete(r.Context(), urlParam(r, "accountID"))
	if err != nil {
		if errors.Is(err, accounts.ErrNotFound) {
			httputil.NotFound(w, "account not found")
			return
		}
		httputil.InternalError(w, err)
		return
	}

	httputil.NoContent(w)
}

// HandleGetActiveAccount returns the active account selection.
//
//	GET /api/accounts/active
func (h *Handlers) HandleGetActiveAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := h.store.ActiveID(ctx)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}

	resp := map[string]interface{}{"activeAccountId": id}
	if id != "" {
		if acct, err := h.store.Get(ctx, id); err == nil {
			resp["account"] = maskedView(acct)
		}
	}

	httputil.OK(w, resp)
}

// HandleSetActiveAccount selects the account proxies default to. An empty
// accountId clears the selection.
//
//	PUT /api/accounts/active
func (h *Handlers) HandleSetActiveAccount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccountID string `json:"accountId"`
	}
	if !httputil.Decode(w, r, &req) {
		return
	}

	if err := h.store.SetActive(r.Context(), req.AccountID); err != nil {
		if errors.Is(err, accounts.ErrNotFound) {
			httputil.NotFound(w, "account not found")
			return
		}
		httputil.InternalError(w, err)
		return
	}

	httputil.OK(w, map[string]string{"activeAccountId": req.AccountID})
}

// HandleCheckAccount probes the provider with the account's key and reports
// whether it is usable.
//
//	POST /api/accounts/{accountID}/check
func (h *Handlers) HandleCheckAccount(w http.ResponseWriter, r *http.Request) {
	acct, err := h.store.Get(r.Context(), urlParam(r, "accountID"))
	if err != nil {
		if errors.Is(err, accounts.ErrNotFound) {
			httputil.NotFound(w, "account not found")
			return
		}
		httputil.InternalError(w, err)
		return
	}

	client := brevo.NewClient(h.brevoCfg, acct.APIKey)
	info, err := client.GetAccount(r.Context())
	if err != nil {
		var apiErr *brevo.APIError
		if errors.As(err, &apiErr) {
			// The probe answered: the key was rejected.
			httputil.OK(w, map[string]interface{}{
				"ok":    false,
				"error": apiErr.Message,
				"code":  apiErr.Code,
			})
			return
		}
		httputil.BadGateway(w, "provider unreachable: "+err.Error())
		return
	}

	httputil.OK(w, map[string]interface{}{
		"ok":      true,
		"email":   info.Email,
		"company": info.CompanyName,
		"plan":    info.Plan,
	})
}
