package entity

import (
	"fmt"
	"time"
)

type BookingStatus string

const (
	BookingStatusPendingPayment    BookingStatus = "pending_payment"
	BookingStatusProcessing        BookingStatus = "processing"
	BookingStatusDocumentsVerified BookingStatus = "documents_verified"
	BookingStatusVisaSubmitted     BookingStatus = "visa_submitted"
	BookingStatusVisaApproved      BookingStatus = "visa_approved"
	BookingStatusReadyToFly        BookingStatus = "ready_to_fly"
	BookingStatusCompleted         BookingStatus = "completed"
	BookingStatusCancelled         BookingStatus = "cancelled"
)

// AllBookingStatuses lists the pipeline in order, cancelled last.
var AllBookingStatuses = []BookingStatus{
	BookingStatusPendingPayment,
	BookingStatusProcessing,
	BookingStatusDocumentsVerified,
	BookingStatusVisaSubmitted,
	BookingStatusVisaApproved,
	BookingStatusReadyToFly,
	BookingStatusCompleted,
	BookingStatusCancelled,
}

var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingStatusPendingPayment:    {BookingStatusProcessing, BookingStatusCancelled},
	BookingStatusProcessing:        {BookingStatusDocumentsVerified, BookingStatusCancelled},
	BookingStatusDocumentsVerified: {BookingStatusVisaSubmitted, BookingStatusCancelled},
	BookingStatusVisaSubmitted:     {BookingStatusVisaApproved, BookingStatusCancelled},
	BookingStatusVisaApproved:      {BookingStatusReadyToFly, BookingStatusCancelled},
	BookingStatusReadyToFly:        {BookingStatusCompleted, BookingStatusCancelled},
	BookingStatusCompleted:         {},
	BookingStatusCancelled:         {},
}

func ParseBookingStatus(s string) (BookingStatus, error) {
	status := BookingStatus(s)
	if !status.IsValid() {
		return "", NewValidationError("status", fmt.Sprintf("unknown booking status %q", s))
	}
	return status, nil
}

func (s BookingStatus) IsValid() bool {
	_, ok := bookingTransitions[s]
	return ok
}

func (s BookingStatus) IsTerminal() bool {
	return s == BookingStatusCompleted || s == BookingStatusCancelled
}

func (s BookingStatus) CanTransitionTo(target BookingStatus) bool {
	for _, allowed := range bookingTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// AllowedTransitions returns a copy, callers may modify it.
func (s BookingStatus) AllowedTransitions() []BookingStatus {
	return append([]BookingStatus(nil), bookingTransitions[s]...)
}

func (s BookingStatus) String() string {
	return string(s)
}

// LegacyStatus is the coarse status older back-office screens display.
type LegacyStatus string

const (
	LegacyStatusPending   LegacyStatus = "pending"
	LegacyStatusConfirmed LegacyStatus = "confirmed"
	LegacyStatusCancelled LegacyStatus = "cancelled"
)

// Legacy projects the pipeline status onto the display-only vocabulary.
// It is never parsed back into a BookingStatus.
func (s BookingStatus) Legacy() LegacyStatus {
	switch s {
	case BookingStatusPendingPayment:
		return LegacyStatusPending
	case BookingStatusCancelled:
		return LegacyStatusCancelled
	default:
		return LegacyStatusConfirmed
	}
}

type TravelerType string

const (
	TravelerTypeAdult  TravelerType = "adult"
	TravelerTypeChild  TravelerType = "child"
	TravelerTypeInfant TravelerType = "infant"
)

func (t TravelerType) IsValid() bool {
	switch t {
	case TravelerTypeAdult, TravelerTypeChild, TravelerTypeInfant:
		return true
	}
	return false
}

type Traveler struct {
	ID             string       `json:"id"`
	Name           string       `json:"name"`
	Age            int          `json:"age"`
	Type           TravelerType `json:"type"`
	PassportNumber string       `json:"passport_number,omitempty"`
}

type StatusHistoryEntry struct {
	Status BookingStatus `json:"status"`
	At     time.Time     `json:"at"`
	Note   string        `json:"note,omitempty"`
}

type Booking struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	PackageID     string     `json:"package_id"`
	PackageTitle  string     `json:"package_title"`
	Destination   string     `json:"destination"`
	DepartureDate time.Time  `json:"departure_date"`
	ReturnDate    time.Time  `json:"return_date"`
	Travelers     []Traveler `json:"travelers"`

	Price PriceBreakdown `json:"price"`

	Status        BookingStatus        `json:"status"`
	PaymentStatus PaymentStatus        `json:"payment_status"`
	StatusHistory []StatusHistoryEntry `json:"status_history"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Version is bumped by the store on every successful update.
	Version int64 `json:"version"`
}

// Clone returns a copy that shares no slices with b.
func (b Booking) Clone() Booking {
	b.Travelers = append([]Traveler(nil), b.Travelers...)
	b.StatusHistory = append([]StatusHistoryEntry(nil), b.StatusHistory...)
	return b
}

func (b Booking) LastHistoryEntry() (StatusHistoryEntry, bool) {
	if len(b.StatusHistory) == 0 {
		return StatusHistoryEntry{}, false
	}
	return b.StatusHistory[len(b.StatusHistory)-1], true
}
