package types

import (
	"encoding/json"
	"time"
)

// Post is a grievance record as stored in the posts table and delivered by
// the database webhook. Only the fields the notifier and maintenance jobs read
// are mapped.
type Post struct {
	ID        string     `json:"id" validate:"required"`
	Content   string     `json:"content"`
	Category  string     `json:"category"`
	WardNo    *int       `json:"ward_no" validate:"required,gte=0"`
	UserID    string     `json:"user_id,omitempty"`
	MediaType string     `json:"media_type,omitempty"`
	MediaURL  *string    `json:"media_url,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// Ward returns the ward number, or -1 when ward_no was absent.
func (p Post) Ward() int {
	if p.WardNo == nil {
		return -1
	}
	return *p.WardNo
}

// WardNo returns a pointer to n for building Post values.
func WardNo(n int) *int { return &n }

// PostEvent is the envelope posted by the database webhook on row changes.
// Type and Table may be absent when the trigger is invoked by hand.
type PostEvent struct {
	Type   string `json:"type" validate:"omitempty,eq=INSERT"`
	Table  string `json:"table" validate:"omitempty,eq=posts"`
	Schema string `json:"schema"`
	Record Post   `json:"record"`
}

// ServiceAccountCredential is the validated form of the service-account JSON
// secret. It is parsed once at startup and shared read-only by every
// invocation.
type ServiceAccountCredential struct {
	ProjectID   string       `json:"project_id" validate:"required"`
	ClientEmail string       `json:"client_email" validate:"required"`
	PrivateKey  SecretString `json:"private_key" validate:"required"`
	TokenURI    string       `json:"token_uri" validate:"omitempty,url"`
}

// BearerToken is an OAuth2 access token returned by the token endpoint. It is
// opaque to this service and never cached.
type BearerToken struct {
	AccessToken SecretString
	TokenType   string
	ExpiresIn   int
}

// PushNotification is the visible part of a push message.
type PushNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// PushMessage is a topic-targeted push message.
type PushMessage struct {
	Topic        string            `json:"topic"`
	Notification PushNotification  `json:"notification"`
	Data         map[string]string `json:"data"`
}

// PushEnvelope is the request body accepted by the messages:send endpoint.
type PushEnvelope struct {
	Message PushMessage `json:"message"`
}

// DispatchResult carries the raw push-service response. A 2xx envelope that
// contains per-recipient failures is returned as-is.
type DispatchResult struct {
	StatusCode int
	Body       json.RawMessage
}

// AuthUser is the subset of the auth service's user object the account
// deletion flow needs.
type AuthUser struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
}
