package brevo

import "fmt"

// AccountInfo is the response of GET /account. Fetching it with a stored
// key is how the console verifies an account's credential still works.
type AccountInfo struct {
	Email       string `json:"email"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	CompanyName string `json:"companyName"`
	Plan        []Plan `json:"plan"`
}

// Plan is one entry of the account's plan array
type Plan struct {
	Type        string  `json:"type"`
	CreditsType string  `json:"creditsType"`
	Credits     float64 `json:"credits"`
}

// List is one contact list as returned by GET /contacts/lists
type List struct {
	ID                int64  `json:"id"`
	Name              string `json:"name"`
	FolderID          int64  `json:"folderId"`
	TotalSubscribers  int64  `json:"totalSubscribers"`
	TotalBlacklisted  int64  `json:"totalBlacklisted"`
	UniqueSubscribers int64  `json:"uniqueSubscribers"`
}

// ListsResponse is the envelope of GET /contacts/lists
type ListsResponse struct {
	Lists []List `json:"lists"`
	Count int64  `json:"count"`
}

// ListContact is one subscriber as returned by GET /contacts/lists/{id}/contacts
type ListContact struct {
	ID               int64                  `json:"id"`
	Email            string                 `json:"email"`
	EmailBlacklisted bool                   `json:"emailBlacklisted"`
	SMSBlacklisted   bool                   `json:"smsBlacklisted"`
	CreatedAt        string                 `json:"createdAt"`
	ModifiedAt       string                 `json:"modifiedAt"`
	ListIDs          []int64                `json:"listIds"`
	Attributes       map[string]interface{} `json:"attributes"`
}

// ContactsResponse is the envelope of GET /contacts/lists/{id}/contacts
type ContactsResponse struct {
	Contacts []ListContact `json:"contacts"`
	Count    int64         `json:"count"`
}

// UpsertContactRequest is the payload of POST /contacts. With UpdateEnabled
// set, the API answers 201 for a brand-new contact and 204 when an existing
// contact was updated instead.
type UpsertContactRequest struct {
	Email         string            `json:"email"`
	Attributes    map[string]string `json:"attributes,omitempty"`
	ListIDs       []int64           `json:"listIds,omitempty"`
	UpdateEnabled bool              `json:"updateEnabled"`
}

// CreatedContact is the 201 response body of POST /contacts
type CreatedContact struct {
	ID int64 `json:"id"`
}

// Sender is one verified sender as returned by GET /senders
type Sender struct {
	ID     int64      `json:"id"`
	Name   string     `json:"name"`
	Email  string     `json:"email"`
	Active bool       `json:"active"`
	IPs    []SenderIP `json:"ips,omitempty"`
}

// SenderIP is a dedicated IP attached to a sender
type SenderIP struct {
	IP     string `json:"ip"`
	Domain string `json:"domain"`
	Weight int    `json:"weight"`
}

// SendersResponse is the envelope of GET /senders
type SendersResponse struct {
	Senders []Sender `json:"senders"`
}

// Template is one transactional template from GET /smtp/templates
type Template struct {
	ID          int64          `json:"id"`
	Name        string         `json:"name"`
	Subject     string         `json:"subject"`
	IsActive    bool           `json:"isActive"`
	TestSent    bool           `json:"testSent"`
	Sender      TemplateSender `json:"sender"`
	ReplyTo     string         `json:"replyTo"`
	ToField     string         `json:"toField"`
	Tag         string         `json:"tag"`
	HTMLContent string         `json:"htmlContent"`
	CreatedAt   string         `json:"createdAt"`
	ModifiedAt  string         `json:"modifiedAt"`
}

// TemplateSender identifies the template's sender
type TemplateSender struct {
	ID    int64  `json:"id,omitempty"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// TemplatesResponse is the envelope of GET /smtp/templates
type TemplatesResponse struct {
	Templates []Template `json:"templates"`
	Count     int64      `json:"count"`
}

// UpdateTemplateRequest is the payload of PUT /smtp/templates/{id}.
// Zero-valued fields are left untouched by the API.
type UpdateTemplateRequest struct {
	TemplateName string `json:"templateName,omitempty"`
	Subject      string `json:"subject,omitempty"`
	HTMLContent  string `json:"htmlContent,omitempty"`
	ReplyTo      string `json:"replyTo,omitempty"`
	ToField      string `json:"toField,omitempty"`
	IsActive     *bool  `json:"isActive,omitempty"`
}

// AggregatedReport is the response of GET /smtp/statistics/aggregatedReport
type AggregatedReport struct {
	Range        string `json:"range"`
	Requests     int64  `json:"requests"`
	Delivered    int64  `json:"delivered"`
	HardBounces  int64  `json:"hardBounces"`
	SoftBounces  int64  `json:"softBounces"`
	Clicks       int64  `json:"clicks"`
	UniqueClicks int64  `json:"uniqueClicks"`
	Opens        int64  `json:"opens"`
	UniqueOpens  int64  `json:"uniqueOpens"`
	SpamReports  int64  `json:"spamReports"`
	Blocked      int64  `json:"blocked"`
	Invalid      int64  `json:"invalid"`
	Unsubscribed int64  `json:"unsubscribed"`
}

// APIError is a non-2xx response from the Brevo API. Body holds the raw
// response payload so callers can record exactly what the provider said.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Body)
}

// Payload returns the provider's error body, used when recording
// per-contact failures.
func (e *APIError) Payload() string { return e.Body }
