package model

import "time"

// BookingStatus is the lifecycle state of a Booking. Only StatusPending and
// StatusConfirmed occupy a staff-time interval.
type BookingStatus string

const (
	StatusPending   BookingStatus = "pending"
	StatusConfirmed BookingStatus = "confirmed"
	StatusCompleted BookingStatus = "completed"
	StatusCancelled BookingStatus = "cancelled"
)

// Occupying reports whether a booking in this status blocks other bookings
// from the same staff-time interval.
func (s BookingStatus) Occupying() bool {
	return s == StatusPending || s == StatusConfirmed
}

// Terminal reports whether no further transition is allowed out of s.
func (s BookingStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type BusinessOwner struct {
	ID                 string
	ExternalID         string // stable user id from the chat-app identity provider
	DisplayName        string
	AvatarURL          string
	StripeCustomerID   string
	SubscriptionActive bool
	CreatedAt          time.Time
}

type Business struct {
	ID                 string
	OwnerID            string
	Name               string
	Timezone           string // IANA name, e.g. "Asia/Tokyo"
	SlotStepMinutes    int
	MinLeadTimeMinutes int
	AutoConfirm        bool
	IsActive           bool
	CreatedAt          time.Time
}

type Staff struct {
	ID           string
	BusinessID   string
	Name         string
	IsActive     bool
	DisplayOrder int
	CreatedAt    time.Time
}

// WorkingHours is one weekday row of a staff member's weekly template.
// Minutes are minute-of-day in the business timezone.
type WorkingHours struct {
	StaffID     string
	Weekday     time.Weekday
	IsWorking   bool
	StartMinute int
	EndMinute   int
}

type Service struct {
	ID           string
	BusinessID   string
	Name         string
	DurationMins int
	Price        string
	IsActive     bool
	DisplayOrder int
	CreatedAt    time.Time
}

// ClosedDate blocks an interval for the whole business, or for a single
// staff member when StaffID is non-empty.
type ClosedDate struct {
	ID         string
	BusinessID string
	StaffID    string
	StartTime  time.Time
	EndTime    time.Time
	Reason     string
	CreatedAt  time.Time
}

type Booking struct {
	ID         string
	BusinessID string
	StaffID    string
	ServiceID  string
	CustomerID string
	StartTime  time.Time
	EndTime    time.Time // StartTime + service duration, stored denormalized
	Status     BookingStatus
	NoShow     bool
	CreatedAt  time.Time
}

type Customer struct {
	ID          string
	ExternalID  string
	DisplayName string
	AvatarURL   string
	CreatedAt   time.Time
}

type InvitationLink struct {
	ID         string
	BusinessID string
	Code       string
	CreatedBy  string
	ExpiresAt  time.Time
	MaxUses    int
	UsedCount  int
	IsActive   bool
	CreatedAt  time.Time
}

// Usable reports whether the link still grants access at instant now.
// used_count is monotonic; an exhausted or expired link is permanently
// invalid even if IsActive stays true.
func (l InvitationLink) Usable(now time.Time) bool {
	return l.IsActive && now.Before(l.ExpiresAt) && l.UsedCount < l.MaxUses
}

func (l InvitationLink) RemainingUses() int {
	if rem := l.MaxUses - l.UsedCount; rem > 0 {
		return rem
	}
	return 0
}
