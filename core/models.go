package core

const (
	DefaultPage  = 1
	DefaultLimit = 50
	MaxLimit     = 100
)

type Message struct {
	ID          string `json:"message_id"`
	PhoneNumber string `json:"phone_number"`
	Message     string `json:"message"`
	Status      string `json:"status"`
	ContactID   string `json:"contact_id,omitempty"`
	DeviceID    string `json:"device_id,omitempty"`
	Direction   string `json:"direction,omitempty"`
	Timestamp   string `json:"timestamp,omitempty"`
}

type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages,omitempty"`
}

type MessagePage struct {
	Success    bool       `json:"success"`
	Data       []Message  `json:"data"`
	Pagination Pagination `json:"pagination"`
}

type ListMessagesOptions struct {
	Page      int
	Limit     int
	ContactID string
}

type Device struct {
	ID          string `json:"id"`
	Name        string `json:"device_name"`
	PhoneNumber string `json:"phone_number,omitempty"`
	Status      string `json:"status"`
	LastSeenAt  string `json:"last_seen_at,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
}

type DeviceStatus struct {
	DeviceID    string `json:"device_id"`
	Name        string `json:"device_name,omitempty"`
	Status      string `json:"status"`
	Connected   bool   `json:"connected"`
	PhoneNumber string `json:"phone_number,omitempty"`
	LastSeenAt  string `json:"last_seen_at,omitempty"`
}

type Contact struct {
	ID          string `json:"id"`
	PhoneNumber string `json:"phone_number"`
	Name        string `json:"name,omitempty"`
	IsVerified  bool   `json:"is_verified,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
}

// ContactPage accepts both the `contacts` and `data` list keys the API has used.
type ContactPage struct {
	Success    bool       `json:"success"`
	Contacts   []Contact  `json:"contacts,omitempty"`
	Data       []Contact  `json:"data,omitempty"`
	Pagination Pagination `json:"pagination"`
}

func (p ContactPage) Items() []Contact {
	if len(p.Contacts) > 0 {
		return p.Contacts
	}
	return p.Data
}

type ListContactsOptions struct {
	Page  int
	Limit int
}

type ContactVerification struct {
	PhoneNumber string `json:"phone_number"`
	Exists      bool   `json:"exists"`
	JID         string `json:"jid,omitempty"`
}

type Webhook struct {
	ID              string      `json:"id"`
	URL             string      `json:"url"`
	Secret          string      `json:"secret,omitempty"`
	Events          []EventKind `json:"events"`
	IsActive        bool        `json:"is_active"`
	Description     string      `json:"description,omitempty"`
	LastTriggeredAt string      `json:"last_triggered_at,omitempty"`
	SuccessCount    int         `json:"success_count"`
	FailureCount    int         `json:"failure_count"`
	CreatedAt       string      `json:"created_at,omitempty"`
	UpdatedAt       string      `json:"updated_at,omitempty"`
}

type CreateWebhookInput struct {
	URL         string      `json:"url"`
	Events      []EventKind `json:"events"`
	Description string      `json:"description"`
}

// UpdateWebhookInput only serializes the fields that are set.
type UpdateWebhookInput struct {
	URL         *string     `json:"url,omitempty"`
	Events      []EventKind `json:"events,omitempty"`
	Description *string     `json:"description,omitempty"`
	IsActive    *bool       `json:"is_active,omitempty"`
}

func (in UpdateWebhookInput) Empty() bool {
	return in.URL == nil && in.Events == nil && in.Description == nil && in.IsActive == nil
}

type WebhookDelivery struct {
	ID             string `json:"id"`
	WebhookID      string `json:"webhook_id"`
	EventType      string `json:"event_type"`
	ResponseStatus int    `json:"response_status,omitempty"`
	ResponseBody   string `json:"response_body,omitempty"`
	AttemptNumber  int    `json:"attempt_number"`
	Success        bool   `json:"success"`
	ErrorMessage   string `json:"error_message,omitempty"`
	DeliveredAt    string `json:"delivered_at,omitempty"`
	NextRetryAt    string `json:"next_retry_at,omitempty"`
	CreatedAt      string `json:"created_at,omitempty"`
}

// Ack is the bare `{success, message}` body some endpoints return.
type Ack struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// NormalizePage applies the API defaults and the server-side limit cap.
func NormalizePage(page, limit int) (int, int) {
	if page <= 0 {
		page = DefaultPage
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return page, limit
}
