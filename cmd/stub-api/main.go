// Command stub-api is a local stand-in for the provider API. It keeps
// lists, contacts and templates in memory so the console can be exercised
// without real credentials.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"
)

type stubContact struct {
	ID         int64             `json:"id"`
	Email      string            `json:"email"`
	Attributes map[string]string `json:"attributes"`
	ListIDs    []int64           `json:"listIds"`
	CreatedAt  time.Time         `json:"createdAt"`
	ModifiedAt time.Time         `json:"modifiedAt"`
}

type stubList struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type stubTemplate struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Subject     string `json:"subject"`
	IsActive    bool   `json:"isActive"`
	HTMLContent string `json:"htmlContent"`
}

// stubState is the in-memory provider book: contacts keyed by email,
// list membership, editable templates.
type stubState struct {
	mu            sync.Mutex
	contacts      map[string]*stubContact
	lists         []*stubList
	templates     map[int64]*stubTemplate
	nextContactID int64
}

func newStubState() *stubState {
	return &stubState{
		contacts: make(map[string]*stubContact),
		lists: []*stubList{
			{ID: 1, Name: "General"},
			{ID: 2, Name: "Newsletter"},
			{ID: 3, Name: "Onboarding"},
		},
		templates: map[int64]*stubTemplate{
			1: {
				ID: 1, Name: "Welcome", Subject: "Welcome aboard, {{ contact.FNAME }}!",
				IsActive:    true,
				HTMLContent: "<h1>Hello {{ contact.FNAME | default: \"there\" }}</h1><p>Thanks for joining.</p>",
			},
			2: {
				ID: 2, Name: "Order receipt", Subject: "Your order {{ params.order_id }}",
				IsActive:    true,
				HTMLContent: "<p>Hi {{ contact.FNAME }}, order {{ params.order_id }} is confirmed.</p>",
			},
		},
		nextContactID: 1,
	}
}

func (s *stubState) membersOf(listID int64) []*stubContact {
	var members []*stubContact
	for _, c := range s.contacts {
		for _, id := range c.ListIDs {
			if id == listID {
				members = append(members, c)
				break
			}
		}
	}
	return members
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeAPIError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"code": code, "message": message})
}

func main() {
	log.Println("╔════════════════════════════════════════════════════════════╗")
	log.Println("║  WARNING: This is a STUB provider API for local use ONLY.  ║")
	log.Println("║  Lists, contacts and templates live in memory.             ║")
	log.Println("║                                                            ║")
	log.Println("║  Point the console at it with:                             ║")
	log.Println("║    BREVO_BASE_URL=http://localhost:9090/v3                 ║")
	log.Println("╚════════════════════════════════════════════════════════════╝")
	log.Println("")
	log.Println("Starting stub provider API (in-memory state)...")

	state := newStubState()
	mux := http.NewServeMux()

	// Health check endpoint (unauthenticated)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":  "healthy",
			"service": "brevo-stub-api",
			"warning": "THIS IS A STUB - state is in memory only",
		})
	})

	mux.HandleFunc("GET /v3/account", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"email":       "dev@stub.local",
			"firstName":   "Stub",
			"lastName":    "Account",
			"companyName": "Stub Provider",
			"plan": []map[string]interface{}{
				{"type": "free", "creditsType": "sendLimit", "credits": 300},
			},
		})
	})

	mux.HandleFunc("GET /v3/contacts/lists", func(w http.ResponseWriter, r *http.Request) {
		state.mu.Lock()
		defer state.mu.Unlock()

		lists := make([]map[string]interface{}, 0, len(state.lists))
		for _, l := range state.lists {
			lists = append(lists, map[string]interface{}{
				"id":                l.ID,
				"name":              l.Name,
				"totalSubscribers":  len(state.membersOf(l.ID)),
				"uniqueSubscribers": len(state.membersOf(l.ID)),
			})
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"lists": lists, "count": len(lists)})
	})

	mux.HandleFunc("GET /v3/contacts/lists/{id}/contacts", func(w http.ResponseWriter, r *http.Request) {
		listID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
		if err != nil {
			writeAPIError(w, http.StatusBadRequest, "invalid_parameter", "listId is invalid")
			return
		}

		state.mu.Lock()
		defer state.mu.Unlock()

		members := state.membersOf(listID)
		contacts := make([]*stubContact, 0, len(members))
		contacts = append(contacts, members...)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"contacts": contacts,
			"count":    len(contacts),
		})
	})

	mux.HandleFunc("POST /v3/contacts", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email         string            `json:"email"`
			Attributes    map[string]string `json:"attributes"`
			ListIDs       []int64           `json:"listIds"`
			UpdateEnabled bool              `json:"updateEnabled"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeAPIError(w, http.StatusBadRequest, "invalid_parameter", "request body is invalid")
			return
		}
		if !strings.Contains(req.Email, "@") {
			writeAPIError(w, http.StatusBadRequest, "invalid_parameter", "email is invalid")
			return
		}

		state.mu.Lock()
		defer state.mu.Unlock()

		if existing, ok := state.contacts[req.Email]; ok {
			if !req.UpdateEnabled {
				writeAPIError(w, http.StatusBadRequest, "duplicate_parameter", "Contact already exists")
				return
			}
			for k, v := range req.Attributes {
				existing.Attributes[k] = v
			}
			for _, id := range req.ListIDs {
				if !containsID(existing.ListIDs, id) {
					existing.ListIDs = append(existing.ListIDs, id)
				}
			}
			existing.ModifiedAt = time.Now().UTC()
			w.WriteHeader(http.StatusNoContent)
			return
		}

		now := time.Now().UTC()
		contact := &stubContact{
			ID:         state.nextContactID,
			Email:      req.Email,
			Attributes: req.Attributes,
			ListIDs:    req.ListIDs,
			CreatedAt:  now,
			ModifiedAt: now,
		}
		if contact.Attributes == nil {
			contact.Attributes = make(map[string]string)
		}
		state.nextContactID++
		state.contacts[req.Email] = contact

		writeJSON(w, http.StatusCreated, map[string]int64{"id": contact.ID})
	})

	mux.HandleFunc("GET /v3/contacts/{identifier}", func(w http.ResponseWriter, r *http.Request) {
		state.mu.Lock()
		defer state.mu.Unlock()

		contact, ok := state.contacts[r.PathValue("identifier")]
		if !ok {
			writeAPIError(w, http.StatusNotFound, "document_not_found", "Contact not found")
			return
		}
		writeJSON(w, http.StatusOK, contact)
	})

	mux.HandleFunc("GET /v3/senders", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"senders": []map[string]interface{}{
				{"id": 1, "name": "Dev Sender", "email": "sender@stub.local", "active": true},
			},
		})
	})

	mux.HandleFunc("GET /v3/smtp/templates", func(w http.ResponseWriter, r *http.Request) {
		state.mu.Lock()
		defer state.mu.Unlock()

		tpls := make([]*stubTemplate, 0, len(state.templates))
		for _, t := range state.templates {
			tpls = append(tpls, t)
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"templates": tpls,
			"count":     len(tpls),
		})
	})

	mux.HandleFunc("GET /v3/smtp/templates/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
		if err != nil {
			writeAPIError(w, http.StatusBadRequest, "invalid_parameter", "templateId is invalid")
			return
		}

		state.mu.Lock()
		defer state.mu.Unlock()

		tpl, ok := state.templates[id]
		if !ok {
			writeAPIError(w, http.StatusNotFound, "document_not_found", "Template not found")
			return
		}
		writeJSON(w, http.StatusOK, tpl)
	})

	mux.HandleFunc("PUT /v3/smtp/templates/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
		if err != nil {
			writeAPIError(w, http.StatusBadRequest, "invalid_parameter", "templateId is invalid")
			return
		}

		var req struct {
			TemplateName string `json:"templateName"`
			Subject      string `json:"subject"`
			HTMLContent  string `json:"htmlContent"`
			IsActive     *bool  `json:"isActive"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeAPIError(w, http.StatusBadRequest, "invalid_parameter", "request body is invalid")
			return
		}

		state.mu.Lock()
		defer state.mu.Unlock()

		tpl, ok := state.templates[id]
		if !ok {
			writeAPIError(w, http.StatusNotFound, "document_not_found", "Template not found")
			return
		}
		if req.TemplateName != "" {
			tpl.Name = req.TemplateName
		}
		if req.Subject != "" {
			tpl.Subject = req.Subject
		}
		if req.HTMLContent != "" {
			tpl.HTMLContent = req.HTMLContent
		}
		if req.IsActive != nil {
			tpl.IsActive = *req.IsActive
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("GET /v3/smtp/statistics/aggregatedReport", func(w http.ResponseWriter, r *http.Request) {
		state.mu.Lock()
		total := len(state.contacts)
		state.mu.Unlock()

		dateRange := fmt.Sprintf("%s to %s",
			r.URL.Query().Get("startDate"), r.URL.Query().Get("endDate"))
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"range":        dateRange,
			"requests":     total * 4,
			"delivered":    total * 4,
			"opens":        total * 2,
			"uniqueOpens":  total,
			"clicks":       total,
			"uniqueClicks": total,
			"hardBounces":  0,
			"softBounces":  0,
		})
	})

	handler := identityMiddleware(requireAPIKey(mux))

	port := os.Getenv("PORT")
	if port == "" {
		port = "9090"
	}

	server := &http.Server{
		Addr:         "0.0.0.0:" + port,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Stub provider listening on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down stub provider...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// requireAPIKey rejects provider calls without an api-key header. Any
// non-empty key is accepted; the stub has no real credentials.
func requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}
		if r.Header.Get("api-key") == "" {
			writeAPIError(w, http.StatusUnauthorized, "unauthorized", "Key not found")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func identityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Server-Identity", "brevo-stub-api")
		w.Header().Set("X-Server-Warning", "STUB - in-memory state only")
		next.ServeHTTP(w, r)
	})
}
