// Package brevo is a minimal client for the Brevo v3 REST API, covering
// the endpoints the console proxies plus the contact upsert the import
// engine drives. Every call authenticates with a per-account api-key
// header, so the console holds one Client per stored account credential.
package brevo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/inboxops/brevo-console/internal/config"
	"github.com/inboxops/brevo-console/internal/pkg/httpretry"
)

const defaultBaseURL = "https://api.brevo.com/v3"

// HTTPDoer abstracts the HTTP client so tests can substitute transports.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to the Brevo v3 API on behalf of one account.
// Reads go through a retrying transport; writes are attempted once so
// import results always reflect a single submission per contact.
type Client struct {
	baseURL     string
	apiKey      string
	httpClient  HTTPDoer
	retryClient HTTPDoer
}

// NewClient creates a Brevo API client for the given account API key.
// The base URL comes from config so the whole console can be pointed at
// the stub provider in development.
func NewClient(cfg config.BrevoConfig, apiKey string) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	base := &http.Client{Timeout: cfg.Timeout()}
	return &Client{
		baseURL:     baseURL,
		apiKey:      apiKey,
		httpClient:  base,
		retryClient: httpretry.NewRetryClient(base, 2),
	}
}

// SetHTTPClient replaces the underlying HTTP client (used in tests).
// The retry wrapper is rebuilt around the replacement.
func (c *Client) SetHTTPClient(client HTTPDoer) {
	c.httpClient = client
	c.retryClient = httpretry.NewRetryClient(client, 2)
}

// doRequest executes an API call and returns the status code and raw body.
// Non-2xx responses come back as an *APIError carrying the provider payload.
func (c *Client) doRequest(ctx context.Context, method, path string, params url.Values, payload interface{}) (int, []byte, error) {
	fullURL := c.baseURL + path
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("encoding request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reqBody)
	if err != nil {
		return 0, nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("api-key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	// Only idempotent reads retry. POST /contacts stays single-shot.
	doer := c.httpClient
	if method == http.MethodGet {
		doer = c.retryClient
	}

	resp, err := doer.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return resp.StatusCode, body, newAPIError(resp.StatusCode, body)
	}

	return resp.StatusCode, body, nil
}

func newAPIError(statusCode int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: statusCode, Body: string(body)}
	var parsed struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		apiErr.Code = parsed.Code
		apiErr.Message = parsed.Message
	}
	return apiErr
}

// GetAccount fetches the account attached to the API key. It doubles as
// the connectivity check for stored credentials.
func (c *Client) GetAccount(ctx context.Context) (*AccountInfo, error) {
	_, body, err := c.doRequest(ctx, http.MethodGet, "/account", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching account: %w", err)
	}

	var info AccountInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("parsing account response: %w", err)
	}
	return &info, nil
}

// GetLists fetches the account's contact lists
func (c *Client) GetLists(ctx context.Context, limit, offset int) (*ListsResponse, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		params.Set("offset", strconv.Itoa(offset))
	}

	_, body, err := c.doRequest(ctx, http.MethodGet, "/contacts/lists", params, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching lists: %w", err)
	}

	var lists ListsResponse
	if err := json.Unmarshal(body, &lists); err != nil {
		return nil, fmt.Errorf("parsing lists response: %w", err)
	}
	return &lists, nil
}

// GetListContacts fetches the subscribers of one list
func (c *Client) GetListContacts(ctx context.Context, listID int64, limit, offset int) (*ContactsResponse, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		params.Set("offset", strconv.Itoa(offset))
	}

	path := fmt.Sprintf("/contacts/lists/%d/contacts", listID)
	_, body, err := c.doRequest(ctx, http.MethodGet, path, params, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching list contacts: %w", err)
	}

	var contacts ContactsResponse
	if err := json.Unmarshal(body, &contacts); err != nil {
		return nil, fmt.Errorf("parsing contacts response: %w", err)
	}
	return &contacts, nil
}

// GetContact fetches a single contact by email or numeric ID
func (c *Client) GetContact(ctx context.Context, identifier string) (*ListContact, error) {
	path := "/contacts/" + url.PathEscape(identifier)
	_, body, err := c.doRequest(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching contact: %w", err)
	}

	var contact ListContact
	if err := json.Unmarshal(body, &contact); err != nil {
		return nil, fmt.Errorf("parsing contact response: %w", err)
	}
	return &contact, nil
}

// UpsertContact creates or updates a contact and subscribes it to the
// requested lists. created reports whether the API answered 201 (new
// contact) rather than 204 (existing contact updated). The raw response
// body is returned so callers can record what the provider sent back.
func (c *Client) UpsertContact(ctx context.Context, req UpsertContactRequest) (created bool, body []byte, err error) {
	status, body, err := c.doRequest(ctx, http.MethodPost, "/contacts", nil, req)
	if err != nil {
		return false, body, fmt.Errorf("upserting contact: %w", err)
	}
	return status == http.StatusCreated, body, nil
}

// GetSenders fetches the account's verified senders
func (c *Client) GetSenders(ctx context.Context) (*SendersResponse, error) {
	_, body, err := c.doRequest(ctx, http.MethodGet, "/senders", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching senders: %w", err)
	}

	var senders SendersResponse
	if err := json.Unmarshal(body, &senders); err != nil {
		return nil, fmt.Errorf("parsing senders response: %w", err)
	}
	return &senders, nil
}

// GetTemplates fetches the account's transactional templates
func (c *Client) GetTemplates(ctx context.Context, limit, offset int) (*TemplatesResponse, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		params.Set("offset", strconv.Itoa(offset))
	}

	_, body, err := c.doRequest(ctx, http.MethodGet, "/smtp/templates", params, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching templates: %w", err)
	}

	var templates TemplatesResponse
	if err := json.Unmarshal(body, &templates); err != nil {
		return nil, fmt.Errorf("parsing templates response: %w", err)
	}
	return &templates, nil
}

// GetTemplate fetches one transactional template with its HTML content
func (c *Client) GetTemplate(ctx context.Context, templateID int64) (*Template, error) {
	path := fmt.Sprintf("/smtp/templates/%d", templateID)
	_, body, err := c.doRequest(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching template: %w", err)
	}

	var tmpl Template
	if err := json.Unmarshal(body, &tmpl); err != nil {
		return nil, fmt.Errorf("parsing template response: %w", err)
	}
	return &tmpl, nil
}

// UpdateTemplate updates a transactional template in place
func (c *Client) UpdateTemplate(ctx context.Context, templateID int64, req UpdateTemplateRequest) error {
	path := fmt.Sprintf("/smtp/templates/%d", templateID)
	if _, _, err := c.doRequest(ctx, http.MethodPut, path, nil, req); err != nil {
		return fmt.Errorf("updating template: %w", err)
	}
	return nil
}

// GetAggregatedReport fetches aggregate sending statistics. Dates are
// YYYY-MM-DD and both may be empty for the provider's default range.
func (c *Client) GetAggregatedReport(ctx context.Context, startDate, endDate string) (*AggregatedReport, error) {
	params := url.Values{}
	if startDate != "" {
		params.Set("startDate", startDate)
	}
	if endDate != "" {
		params.Set("endDate", endDate)
	}

	_, body, err := c.doRequest(ctx, http.MethodGet, "/smtp/statistics/aggregatedReport", params, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching aggregated report: %w", err)
	}

	var report AggregatedReport
	if err := json.Unmarshal(body, &report); err != nil {
		return nil, fmt.Errorf("parsing aggregated report: %w", err)
	}
	return &report, nil
}
