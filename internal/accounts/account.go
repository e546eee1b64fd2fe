// Package accounts stores the console's Brevo account credentials and the
// active-account selection. Accounts are the unit everything else hangs
// off: proxied API calls and import jobs both resolve an account ID to an
// API key through this package. Three interchangeable backends exist, a
// JSON file for single-box deployments, Postgres, and a single S3 object.
package accounts

import (
	"errors"
	"time"
)

// ErrNotFound is returned when an account ID does not exist in the store
var ErrNotFound = errors.New("account not found")

// Account is one stored Brevo credential. The API key is kept verbatim
// here; HTTP handlers mask it before it leaves the console.
type Account struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	APIKey    string    `json:"apiKey"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
