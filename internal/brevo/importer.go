package brevo

import (
	"context"

	"github.com/inboxops/brevo-console/internal/config"
)

// ContactImporter adapts per-account Brevo clients to the import engine's
// submitter contract: one contact upsert per call, authenticated with
// whatever API key the running job's account carries.
type ContactImporter struct {
	cfg        config.BrevoConfig
	httpClient HTTPDoer
}

// NewContactImporter creates a submitter backed by the Brevo contacts API
func NewContactImporter(cfg config.BrevoConfig) *ContactImporter {
	return &ContactImporter{cfg: cfg}
}

// SetHTTPClient overrides the transport used by constructed clients (tests)
func (ci *ContactImporter) SetHTTPClient(client HTTPDoer) {
	ci.httpClient = client
}

// UpsertContact submits one contact to the provider. The returned string
// is the raw provider response body, empty when the API answered 204.
func (ci *ContactImporter) UpsertContact(ctx context.Context, apiKey string, listID int64, email, firstName, lastName string) (string, error) {
	client := NewClient(ci.cfg, apiKey)
	if ci.httpClient != nil {
		client.SetHTTPClient(ci.httpClient)
	}

	attributes := map[string]string{}
	if firstName != "" {
		attributes["FNAME"] = firstName
	}
	if lastName != "" {
		attributes["LNAME"] = lastName
	}

	_, body, err := client.UpsertContact(ctx, UpsertContactRequest{
		Email:         email,
		Attributes:    attributes,
		ListIDs:       []int64{listID},
		UpdateEnabled: true,
	})
	if err != nil {
		return "", err
	}
	return string(body), nil
}
