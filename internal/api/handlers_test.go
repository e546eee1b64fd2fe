package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inboxops/brevo-console/internal/accounts"
	"github.com/inboxops/brevo-console/internal/brevo"
	"github.com/inboxops/brevo-console/internal/config"
	"github.com/inboxops/brevo-console/internal/importer"
	"github.com/inboxops/brevo-console/internal/templates"
)

const testAPIKey = "xkeysib-test-0042"

// stubProvider fakes the provider API for handler tests. Upserts answer
// 201 the first time an address is seen and 204 after that.
type stubProvider struct {
	mu         sync.Mutex
	upserted   map[string]bool
	statsQuery url.Values
}

func newStubProvider() *stubProvider {
	return &stubProvider{upserted: make(map[string]bool)}
}

func (s *stubProvider) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /account", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"email":       "owner@acme.io",
			"firstName":   "Ada",
			"lastName":    "Owner",
			"companyName": "Acme",
			"plan": []map[string]interface{}{
				{"type": "subscription", "creditsType": "sendLimit", "credits": 10000},
			},
		})
	})

	mux.HandleFunc("GET /contacts/lists", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"lists": []map[string]interface{}{
				{"id": 7, "name": "Main", "totalSubscribers": 2},
			},
			"count": 1,
		})
	})

	mux.HandleFunc("GET /contacts/lists/{id}/contacts", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"contacts": []map[string]interface{}{
				{"id": 1, "email": "first@acme.io", "listIds": []int{7}},
			},
			"count": 1,
		})
	})

	mux.HandleFunc("POST /contacts", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email string `json:"email"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !validEmail(req.Email) {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"code":    "invalid_parameter",
				"message": "email is invalid",
			})
			return
		}

		s.mu.Lock()
		seen := s.upserted[req.Email]
		s.upserted[req.Email] = true
		s.mu.Unlock()

		if seen {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]int{"id": 101})
	})

	mux.HandleFunc("GET /contacts/{identifier}", func(w http.ResponseWriter, r *http.Request) {
		email := r.PathValue("identifier")
		s.mu.Lock()
		seen := s.upserted[email]
		s.mu.Unlock()

		if !seen {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"code":    "document_not_found",
				"message": "Contact not found",
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"id": 101, "email": email, "listIds": []int{7},
		})
	})

	mux.HandleFunc("GET /senders", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"senders": []map[string]interface{}{
				{"id": 1, "name": "Newsletter", "email": "news@acme.io", "active": true},
			},
		})
	})

	mux.HandleFunc("GET /smtp/templates", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"templates": []map[string]interface{}{
				{"id": 3, "name": "Welcome", "subject": "Hi", "isActive": true},
			},
			"count": 1,
		})
	})

	mux.HandleFunc("GET /smtp/templates/{id}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"id": 3, "name": "Welcome", "subject": "Hi",
			"htmlContent": "<p>Hello {{ contact.FNAME }}</p>",
		})
	})

	mux.HandleFunc("PUT /smtp/templates/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("GET /smtp/statistics/aggregatedReport", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.statsQuery = r.URL.Query()
		s.mu.Unlock()

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"range": "7days", "requests": 100, "delivered": 95, "opens": 40,
		})
	})

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("api-key") != testAPIKey {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"code":    "unauthorized",
				"message": "Key not found",
			})
			return
		}
		mux.ServeHTTP(w, r)
	})
}

func (s *stubProvider) lastStatsQuery() url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statsQuery
}

func validEmail(email string) bool {
	for _, c := range email {
		if c == '@' {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

type testEnv struct {
	handler http.Handler
	store   accounts.Store
	engine  *importer.Engine
	stub    *stubProvider
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	stub := newStubProvider()
	providerSrv := httptest.NewServer(stub.handler())
	t.Cleanup(providerSrv.Close)

	cfg := &config.Config{
		Server: config.ServerConfig{Port: 8080},
		Brevo:  config.BrevoConfig{BaseURL: providerSrv.URL, TimeoutSeconds: 5},
		CORS:   config.CORSConfig{AllowedOrigins: []string{"http://localhost:5173"}},
	}

	store, err := accounts.NewFileStore(filepath.Join(t.TempDir(), "accounts.json"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	engine := importer.New(store, brevo.NewContactImporter(cfg.Brevo), importer.Config{
		PausePoll:    5 * time.Millisecond,
		TickInterval: 10 * time.Millisecond,
		StartYield:   time.Millisecond,
	})
	engine.Start()
	t.Cleanup(engine.Stop)

	srv := NewServer(cfg, store, engine, templates.NewPreviewer())

	return &testEnv{
		handler: srv.Handler(),
		store:   store,
		engine:  engine,
		stub:    stub,
	}
}

func (env *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst), "body: %s", rec.Body.String())
}

func (env *testEnv) createAccount(t *testing.T, name, apiKey string) string {
	t.Helper()

	rec := env.do(t, http.MethodPost, "/api/accounts", map[string]string{
		"name": name, "apiKey": apiKey,
	})
	require.Equal(t, http.StatusCreated, rec.Code, "body: %s", rec.Body.String())

	var created struct {
		ID string `json:"id"`
	}
	decodeBody(t, rec, &created)
	require.NotEmpty(t, created.ID)
	return created.ID
}

func (env *testEnv) waitForJobStatus(t *testing.T, jobID, want string) map[string]interface{} {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		rec := env.do(t, http.MethodGet, "/api/import/jobs/"+jobID, nil)
		if rec.Code == http.StatusOK {
			var job map[string]interface{}
			decodeBody(t, rec, &job)
			if job["status"] == want {
				return job
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s never reached status %q", jobID, want)
	return nil
}

func TestAccountLifecycle(t *testing.T) {
	env := setupTestEnv(t)

	// Create echoes the key unmasked, exactly once.
	rec := env.do(t, http.MethodPost, "/api/accounts", map[string]string{
		"name": "Production", "apiKey": testAPIKey,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created accountView
	decodeBody(t, rec, &created)
	assert.Equal(t, "Production", created.Name)
	assert.Equal(t, testAPIKey, created.APIKey)

	// Listing masks keys.
	rec = env.do(t, http.MethodGet, "/api/accounts", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var listed struct {
		Accounts []accountView `json:"accounts"`
		Count    int           `json:"count"`
	}
	decodeBody(t, rec, &listed)
	require.Equal(t, 1, listed.Count)
	assert.Equal(t, "****0042", listed.Accounts[0].APIKey)

	// Get masks too.
	rec = env.do(t, http.MethodGet, "/api/accounts/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got accountView
	decodeBody(t, rec, &got)
	assert.Equal(t, "****0042", got.APIKey)

	// Update renames without touching the key.
	rec = env.do(t, http.MethodPut, "/api/accounts/"+created.ID, map[string]string{
		"name": "Production EU",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &got)
	assert.Equal(t, "Production EU", got.Name)

	// Delete, then 404.
	rec = env.do(t, http.MethodDelete, "/api/accounts/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/accounts/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateAccountValidation(t *testing.T) {
	env := setupTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/accounts", map[string]string{"apiKey": "k"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/accounts", map[string]string{"name": "n"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestActiveAccountSelection(t *testing.T) {
	env := setupTestEnv(t)
	id := env.createAccount(t, "Main", testAPIKey)

	rec := env.do(t, http.MethodPut, "/api/accounts/active", map[string]string{"accountId": id})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/accounts/active", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var active struct {
		ActiveAccountID string      `json:"activeAccountId"`
		Account         accountView `json:"account"`
	}
	decodeBody(t, rec, &active)
	assert.Equal(t, id, active.ActiveAccountID)
	assert.Equal(t, "****0042", active.Account.APIKey)

	// Unknown account cannot be selected.
	rec = env.do(t, http.MethodPut, "/api/accounts/active", map[string]string{"accountId": "nope"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Empty id clears the selection.
	rec = env.do(t, http.MethodPut, "/api/accounts/active", map[string]string{"accountId": ""})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/accounts/active", nil)
	decodeBody(t, rec, &active)
	assert.Empty(t, active.ActiveAccountID)
}

func TestCheckAccount(t *testing.T) {
	env := setupTestEnv(t)

	goodID := env.createAccount(t, "Good", testAPIKey)
	rec := env.do(t, http.MethodPost, "/api/accounts/"+goodID+"/check", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var check map[string]interface{}
	decodeBody(t, rec, &check)
	assert.Equal(t, true, check["ok"])
	assert.Equal(t, "owner@acme.io", check["email"])
	assert.Equal(t, "Acme", check["company"])

	badID := env.createAccount(t, "Bad", "wrong-key")
	rec = env.do(t, http.MethodPost, "/api/accounts/"+badID+"/check", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	decodeBody(t, rec, &check)
	assert.Equal(t, false, check["ok"])
	assert.Equal(t, "unauthorized", check["code"])
}

func TestListsProxyUsesActiveAccount(t *testing.T) {
	env := setupTestEnv(t)
	id := env.createAccount(t, "Main", testAPIKey)
	env.do(t, http.MethodPut, "/api/accounts/active", map[string]string{"accountId": id})

	rec := env.do(t, http.MethodGet, "/api/lists", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var lists brevo.ListsResponse
	decodeBody(t, rec, &lists)
	require.Len(t, lists.Lists, 1)
	assert.Equal(t, "Main", lists.Lists[0].Name)
	assert.Equal(t, int64(7), lists.Lists[0].ID)
}

func TestListContactsProxy(t *testing.T) {
	env := setupTestEnv(t)
	id := env.createAccount(t, "Main", testAPIKey)

	rec := env.do(t, http.MethodGet, "/api/lists/7/contacts?accountId="+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var contacts brevo.ContactsResponse
	decodeBody(t, rec, &contacts)
	require.Len(t, contacts.Contacts, 1)
	assert.Equal(t, "first@acme.io", contacts.Contacts[0].Email)

	rec = env.do(t, http.MethodGet, "/api/lists/notanumber/contacts?accountId="+id, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProxyWithoutAccount(t *testing.T) {
	env := setupTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/lists", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/lists?accountId=ghost", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProviderErrorPassthrough(t *testing.T) {
	env := setupTestEnv(t)
	id := env.createAccount(t, "Bad", "wrong-key")

	rec := env.do(t, http.MethodGet, "/api/lists?accountId="+id, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var body map[string]string
	decodeBody(t, rec, &body)
	assert.Equal(t, "unauthorized", body["code"])
	assert.Equal(t, "Key not found", body["error"])
}

func TestUpsertContactEndpoint(t *testing.T) {
	env := setupTestEnv(t)
	id := env.createAccount(t, "Main", testAPIKey)

	payload := map[string]interface{}{
		"email": "solo@acme.io", "firstName": "Solo", "listId": 7,
	}

	rec := env.do(t, http.MethodPost, "/api/contacts?accountId="+id, payload)
	require.Equal(t, http.StatusCreated, rec.Code)

	var result map[string]bool
	decodeBody(t, rec, &result)
	assert.True(t, result["created"])

	// Second upsert of the same address reports an update.
	rec = env.do(t, http.MethodPost, "/api/contacts?accountId="+id, payload)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &result)
	assert.False(t, result["created"])

	rec = env.do(t, http.MethodPost, "/api/contacts?accountId="+id, map[string]interface{}{"listId": 7})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/contacts?accountId="+id, map[string]interface{}{"email": "x@y.z"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetContactProxy(t *testing.T) {
	env := setupTestEnv(t)
	id := env.createAccount(t, "Main", testAPIKey)

	env.do(t, http.MethodPost, "/api/contacts?accountId="+id, map[string]interface{}{
		"email": "known@acme.io", "listId": 7,
	})

	rec := env.do(t, http.MethodGet, "/api/contacts/known@acme.io?accountId="+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var contact brevo.ListContact
	decodeBody(t, rec, &contact)
	assert.Equal(t, "known@acme.io", contact.Email)

	rec = env.do(t, http.MethodGet, "/api/contacts/ghost@acme.io?accountId="+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSendersProxy(t *testing.T) {
	env := setupTestEnv(t)
	id := env.createAccount(t, "Main", testAPIKey)

	rec := env.do(t, http.MethodGet, "/api/senders?accountId="+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var senders brevo.SendersResponse
	decodeBody(t, rec, &senders)
	require.Len(t, senders.Senders, 1)
	assert.Equal(t, "news@acme.io", senders.Senders[0].Email)
}

func TestStatisticsDefaultRange(t *testing.T) {
	env := setupTestEnv(t)
	id := env.createAccount(t, "Main", testAPIKey)

	rec := env.do(t, http.MethodGet, "/api/statistics?accountId="+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	q := env.stub.lastStatsQuery()
	start, err := time.Parse("2006-01-02", q.Get("startDate"))
	require.NoError(t, err)
	end, err := time.Parse("2006-01-02", q.Get("endDate"))
	require.NoError(t, err)
	assert.Equal(t, 7*24*time.Hour, end.Sub(start))
}

func TestTemplatesProxy(t *testing.T) {
	env := setupTestEnv(t)
	id := env.createAccount(t, "Main", testAPIKey)

	rec := env.do(t, http.MethodGet, "/api/templates?accountId="+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var tpls brevo.TemplatesResponse
	decodeBody(t, rec, &tpls)
	require.Len(t, tpls.Templates, 1)
	assert.Equal(t, "Welcome", tpls.Templates[0].Name)

	rec = env.do(t, http.MethodGet, "/api/templates/3?accountId="+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var tpl brevo.Template
	decodeBody(t, rec, &tpl)
	assert.Contains(t, tpl.HTMLContent, "{{ contact.FNAME }}")

	rec = env.do(t, http.MethodPut, "/api/templates/3?accountId="+id, map[string]string{
		"subject": "Welcome aboard",
	})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/templates/abc?accountId="+id, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTemplatePreviewEndpoint(t *testing.T) {
	env := setupTestEnv(t)

	// Preview is local; no account needed.
	rec := env.do(t, http.MethodPost, "/api/templates/preview", map[string]interface{}{
		"content": "Hello {{ contact.FNAME }}",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var preview templates.Preview
	decodeBody(t, rec, &preview)
	assert.Equal(t, "Hello Jane", preview.Output)
	assert.True(t, preview.Success)

	// Custom data overrides the sample context.
	rec = env.do(t, http.MethodPost, "/api/templates/preview", map[string]interface{}{
		"content": "Hello {{ contact.FNAME }}",
		"data":    map[string]interface{}{"contact": map[string]string{"FNAME": "Sam"}},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &preview)
	assert.Equal(t, "Hello Sam", preview.Output)

	// Unknown variables warn but still render.
	rec = env.do(t, http.MethodPost, "/api/templates/preview", map[string]interface{}{
		"content": "Hello {{ contact.NICKNAME }}",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &preview)
	assert.False(t, preview.Success)
	require.Len(t, preview.Warnings, 1)
	assert.Equal(t, "contact.NICKNAME", preview.Warnings[0].Variable)

	rec = env.do(t, http.MethodPost, "/api/templates/preview", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/templates/preview", map[string]interface{}{
		"content": "{% if x %}unterminated",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestImportLifecycle(t *testing.T) {
	env := setupTestEnv(t)
	id := env.createAccount(t, "Main", testAPIKey)

	rec := env.do(t, http.MethodPost, "/api/import/jobs", map[string]interface{}{
		"accountId": id,
		"listId":    7,
		"listName":  "Main",
		"contacts":  "good@x.com,Al\nbademail\nmore@x.com,Mo,Re",
		"delay":     0,
	})
	require.Equal(t, http.StatusAccepted, rec.Code, "body: %s", rec.Body.String())

	var started map[string]interface{}
	decodeBody(t, rec, &started)
	jobID, _ := started["id"].(string)
	require.NotEmpty(t, jobID)
	assert.Equal(t, "running", started["status"])
	assert.EqualValues(t, 3, started["totalContacts"])

	job := env.waitForJobStatus(t, jobID, "completed")
	assert.EqualValues(t, 100, job["progress"])

	results, ok := job["results"].([]interface{})
	require.True(t, ok)
	require.Len(t, results, 3)

	// Newest first: the last contact heads the list.
	first := results[0].(map[string]interface{})
	assert.EqualValues(t, 3, first["index"])
	assert.Equal(t, "more@x.com", first["email"])
	assert.Equal(t, "success", first["status"])

	// The malformed address failed without stopping the batch.
	middle := results[1].(map[string]interface{})
	assert.Equal(t, "bademail", middle["email"])
	assert.Equal(t, "failed", middle["status"])
	assert.Contains(t, middle["data"], "invalid_parameter")

	// The listing maps job ids to snapshots.
	rec = env.do(t, http.MethodGet, "/api/import/jobs", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var byID map[string]json.RawMessage
	decodeBody(t, rec, &byID)
	assert.Contains(t, byID, jobID)
}

func TestImportValidation(t *testing.T) {
	env := setupTestEnv(t)
	id := env.createAccount(t, "Main", testAPIKey)

	// A batch with no parseable contacts is rejected.
	rec := env.do(t, http.MethodPost, "/api/import/jobs", map[string]interface{}{
		"accountId": id, "listId": 7, "contacts": "\n ,OnlyName\n",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/import/jobs", map[string]interface{}{
		"accountId": "ghost", "listId": 7, "contacts": "a@x.com",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/import/jobs", map[string]interface{}{
		"listId": 7, "contacts": "a@x.com",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/import/jobs", map[string]interface{}{
		"accountId": id, "contacts": "a@x.com",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/import/jobs", map[string]interface{}{
		"accountId": id, "listId": 7, "contacts": "a@x.com", "delay": -1,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/import/jobs/ghost", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestImportRejectedWhenEngineStopped(t *testing.T) {
	env := setupTestEnv(t)
	id := env.createAccount(t, "Main", testAPIKey)

	env.engine.Stop()

	rec := env.do(t, http.MethodPost, "/api/import/jobs", map[string]interface{}{
		"accountId": id, "listId": 7, "contacts": "a@x.com",
	})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestJobPauseResumeCompletes(t *testing.T) {
	env := setupTestEnv(t)
	id := env.createAccount(t, "Main", testAPIKey)

	rec := env.do(t, http.MethodPost, "/api/import/jobs", map[string]interface{}{
		"accountId": id, "listId": 7, "listName": "Main",
		"contacts": "p1@x.com\np2@x.com\np3@x.com",
		"delay":    0.05,
	})
	require.Equal(t, http.StatusAccepted, rec.Code)

	var started map[string]interface{}
	decodeBody(t, rec, &started)
	jobID := started["id"].(string)

	rec = env.do(t, http.MethodPost, "/api/import/jobs/"+jobID+"/pause", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var job map[string]interface{}
	decodeBody(t, rec, &job)
	assert.Equal(t, "paused", job["status"])

	rec = env.do(t, http.MethodPost, "/api/import/jobs/"+jobID+"/resume", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &job)
	assert.Equal(t, "running", job["status"])

	job = env.waitForJobStatus(t, jobID, "completed")
	results := job["results"].([]interface{})
	assert.Len(t, results, 3)
}

func TestJobCancelWhilePaused(t *testing.T) {
	env := setupTestEnv(t)
	id := env.createAccount(t, "Main", testAPIKey)

	rec := env.do(t, http.MethodPost, "/api/import/jobs", map[string]interface{}{
		"accountId": id, "listId": 7, "listName": "Main",
		"contacts": "c1@x.com\nc2@x.com\nc3@x.com",
		"delay":    0.05,
	})
	require.Equal(t, http.StatusAccepted, rec.Code)

	var started map[string]interface{}
	decodeBody(t, rec, &started)
	jobID := started["id"].(string)

	// Pause parks the loop before it can finish the batch.
	rec = env.do(t, http.MethodPost, "/api/import/jobs/"+jobID+"/pause", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/import/jobs/"+jobID+"/cancel", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	job := env.waitForJobStatus(t, jobID, "cancelled")
	results := job["results"].([]interface{})
	assert.Less(t, len(results), 3)

	// A finished job no longer accepts commands.
	rec = env.do(t, http.MethodPost, "/api/import/jobs/"+jobID+"/pause", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestJobControlsOnUnknownJob(t *testing.T) {
	env := setupTestEnv(t)

	for _, op := range []string{"pause", "resume", "cancel"} {
		rec := env.do(t, http.MethodPost, "/api/import/jobs/ghost/"+op, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, op)
	}
}

func TestJobsListingEmpty(t *testing.T) {
	env := setupTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/import/jobs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "{}", rec.Body.String())
}

func TestHealthEndpoints(t *testing.T) {
	env := setupTestEnv(t)

	rec := env.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var health HealthStatus
	decodeBody(t, rec, &health)
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, healthVersion, health.Version)
	assert.Contains(t, health.Checks, "store")
	assert.Contains(t, health.Checks, "provider")
	assert.Contains(t, health.Checks, "import_engine")

	// No active account means no provider probe.
	assert.Equal(t, "not configured", health.Checks["provider"].Message)
	assert.Equal(t, "up", health.Checks["import_engine"].Status)

	rec = env.do(t, http.MethodGet, "/health/live", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var live map[string]interface{}
	decodeBody(t, rec, &live)
	assert.Equal(t, "alive", live["status"])

	rec = env.do(t, http.MethodGet, "/health/ready", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var ready map[string]interface{}
	decodeBody(t, rec, &ready)
	assert.Equal(t, true, ready["ready"])
}

func TestHealthWithActiveAccount(t *testing.T) {
	env := setupTestEnv(t)
	id := env.createAccount(t, "Main", testAPIKey)
	env.do(t, http.MethodPut, "/api/accounts/active", map[string]string{"accountId": id})

	rec := env.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var health HealthStatus
	decodeBody(t, rec, &health)
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "up", health.Checks["provider"].Status)
}

func TestHealthDegradedWhenEngineStopped(t *testing.T) {
	env := setupTestEnv(t)

	env.engine.Stop()

	rec := env.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var health HealthStatus
	decodeBody(t, rec, &health)
	assert.Equal(t, "degraded", health.Status)
	assert.Equal(t, "down", health.Checks["import_engine"].Status)

	// Degraded is still ready; only an unhealthy store blocks traffic.
	rec = env.do(t, http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestIdentityHeader(t *testing.T) {
	env := setupTestEnv(t)

	rec := env.do(t, http.MethodGet, "/health/live", nil)
	assert.Equal(t, "brevo-console", rec.Header().Get("X-Server-Identity"))
}
