package api

import (
	"net/http"
	"strconv"

	"github.com/inboxops/brevo-console/internal/brevo"
	"github.com/inboxops/brevo-console/internal/pkg/httputil"
	"github.com/inboxops/brevo-console/internal/templates"
)

// HandleListTemplates proxies the account's transactional templates.
//
//	GET /api/templates
func (h *Handlers) HandleListTemplates(w http.ResponseWriter, r *http.Request) {
	client, ok := h.providerClient(w, r)
	if !ok {
		return
	}

	limit, offset := parseLimitOffset(r, 50)
	tpls, err := client.GetTemplates(r.Context(), limit, offset)
	if err != nil {
		providerError(w, err)
		return
	}

	httputil.OK(w, tpls)
}

// HandleGetTemplate proxies one template including its HTML content.
//
//	GET /api/templates/{templateID}
func (h *Handlers) HandleGetTemplate(w http.ResponseWriter, r *http.Request) {
	templateID, err := strconv.ParseInt(urlParam(r, "templateID"), 10, 64)
	if err != nil {
		httputil.BadRequest(w, "invalid template id")
		return
	}

	client, ok := h.providerClient(w, r)
	if !ok {
		return
	}

	tpl, err := client.GetTemplate(r.Context(), templateID)
	if err != nil {
		providerError(w, err)
		return
	}

	httputil.OK(w, tpl)
}

// HandleUpdateTemplate pushes edited template fields back to the provider.
//
//	PUT /api/templates/{templateID}
func (h *Handlers) HandleUpdateTemplate(w http.ResponseWriter, r *http.Request) {
	templateID, err := strconv.ParseInt(urlParam(r, "templateID"), 10, 64)
	if err != nil {
		httputil.BadRequest(w, "invalid template id")
		return
	}

	var req brevo.UpdateTemplateRequest
	if !httputil.Decode(w, r, &req) {
		return
	}

	client, ok := h.providerClient(w, r)
	if !ok {
		return
	}

	if err := client.UpdateTemplate(r.Context(), templateID, req); err != nil {
		providerError(w, err)
		return
	}

	httputil.NoContent(w)
}

// previewRequest is the local template preview payload.
type previewRequest struct {
	Content string                 `json:"content"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

// HandlePreviewTemplate renders template content locally against preview
// data, without touching the provider. Missing data falls back to sample
// contact attributes.
//
//	POST /api/templates/preview
func (h *Handlers) HandlePreviewTemplate(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.Content == "" {
		httputil.BadRequest(w, "content is required")
		return
	}

	data := req.Data
	if data == nil {
		data = templates.SampleContactData()
	}

	preview, err := h.previewer.Render(req.Content, data)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	httputil.OK(w, preview)
}
