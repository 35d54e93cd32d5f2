package domain

import "time"

// Status is the delivery lifecycle state. The zone statuses model the
// "present but not answering" outcomes with their fixed fees.
type Status string

const (
	StatusPending      Status = "pending"
	StatusPickup       Status = "pickup"
	StatusDelivered    Status = "delivered"
	StatusFailed       Status = "failed"
	StatusClientAbsent Status = "client_absent"
	StatusNoAnswerZone1 Status = "present_ne_decroche_zone1"
	StatusNoAnswerZone2 Status = "present_ne_decroche_zone2"
	// StatusCancelled only exists as a filter value for open-delivery
	// lookups; the pipeline never writes it.
	StatusCancelled Status = "cancelled"
)

// ValidStatuses is the writeable status set.
var ValidStatuses = map[Status]bool{
	StatusPending:       true,
	StatusPickup:        true,
	StatusDelivered:     true,
	StatusFailed:        true,
	StatusClientAbsent:  true,
	StatusNoAnswerZone1: true,
	StatusNoAnswerZone2: true,
}

// ClosedStatuses are excluded from open-delivery phone lookups.
var ClosedStatuses = []Status{StatusDelivered, StatusFailed, StatusCancelled}

// IsOpen reports whether the delivery still accepts phone-resolved updates.
func (s Status) IsOpen() bool {
	for _, c := range ClosedStatuses {
		if s == c {
			return false
		}
	}
	return true
}

// Delivery is the main domain record. Monetary fields are integer franc
// amounts; decimals only appear at the SQL boundary.
type Delivery struct {
	ID                int64     `json:"id"`
	Phone             string    `json:"phone"`
	CustomerName      string    `json:"customer_name,omitempty"`
	Items             string    `json:"items"`
	AmountDue         int64     `json:"amount_due"`
	AmountPaid        int64     `json:"amount_paid"`
	DeliveryFee       int64     `json:"delivery_fee"`
	Status            Status    `json:"status"`
	Quartier          string    `json:"quartier,omitempty"`
	Notes             string    `json:"notes,omitempty"`
	Carrier           string    `json:"carrier,omitempty"`
	AgencyID          *int64    `json:"agency_id,omitempty"`
	GroupID           *int64    `json:"group_id,omitempty"`
	WhatsappMessageID string    `json:"whatsapp_message_id,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// History action tags.
const (
	ActionCreated         = "created"
	ActionUpdated         = "updated"
	ActionStatusChanged   = "status_changed"
	ActionPaymentReceived = "payment_received"
	ActionPhoneChanged    = "phone_changed"
	ActionRejected        = "rejected"
)

// HistoryEntry is the append-only audit trail; one row per mutation.
type HistoryEntry struct {
	ID         int64     `json:"id"`
	DeliveryID int64     `json:"delivery_id"`
	Action     string    `json:"action"`
	Details    string    `json:"details,omitempty"`
	Actor      string    `json:"actor"`
	CreatedAt  time.Time `json:"created_at"`
}

// Filter narrows delivery listings. Dates are server-local calendar days
// in YYYY-MM-DD form.
type Filter struct {
	Status    Status
	Phone     string
	Date      string
	StartDate string
	EndDate   string
	GroupID   *int64
}

// Page is the 1-based pagination request.
type Page struct {
	Page  int
	Limit int
}

func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = 20
	}
	if p.Limit > 100 {
		p.Limit = 100
	}
	return p
}

// Sort is whitelisted in the store; unknown columns fall back silently.
type Sort struct {
	Column string
	Desc   bool
}

// Pagination is the response-side page descriptor.
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"total_pages"`
}

// DailyStats aggregates one calendar day.
type DailyStats struct {
	Date      string           `json:"date"`
	Total     int64            `json:"total"`
	ByStatus  map[Status]int64 `json:"by_status"`
	Collected int64            `json:"collected"`
	Remaining int64            `json:"remaining"`
	Due       int64            `json:"due"`
}

// BulkRowError captures one rejected row of a bulk insert.
type BulkRowError struct {
	RowIndex int    `json:"row_index"`
	Error    string `json:"error"`
}

// BulkResult is the explicit partial-success contract of bulk inserts.
type BulkResult struct {
	Created int            `json:"created"`
	Failed  int            `json:"failed"`
	Results []*Delivery    `json:"results"`
	Errors  []BulkRowError `json:"errors,omitempty"`
}
