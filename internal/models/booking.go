package models

import "time"

type BookingStatus string

const (
	StatusPending    BookingStatus = "pending"
	StatusConfirmed  BookingStatus = "confirmed"
	StatusInProgress BookingStatus = "in_progress"
	StatusCompleted  BookingStatus = "completed"
	StatusCancelled  BookingStatus = "cancelled"
)

type ServiceFrequency string

const (
	FrequencyOneTime  ServiceFrequency = "one_time"
	FrequencyWeekly   ServiceFrequency = "weekly"
	FrequencyBiweekly ServiceFrequency = "biweekly"
	FrequencyMonthly  ServiceFrequency = "monthly"
)

func (f ServiceFrequency) Valid() bool {
	switch f {
	case FrequencyOneTime, FrequencyWeekly, FrequencyBiweekly, FrequencyMonthly:
		return true
	}
	return false
}

type Booking struct {
	ID        uint    `gorm:"primaryKey" json:"id"`
	ClientID  string  `gorm:"size:50;not null;index:idx_booking_client" json:"client_id"`
	CleanerID *string `gorm:"size:50" json:"cleaner_id,omitempty"`

	ServiceType      string           `gorm:"size:30;not null" json:"service_type"`
	ServiceFrequency ServiceFrequency `gorm:"size:20;not null;default:'one_time'" json:"service_frequency"`
	Extras           string           `gorm:"type:text" json:"extras,omitempty"` // JSON array of add-on names

	// ScheduledDate carries the calendar date only (stored at UTC midnight);
	// ScheduledTime is the local wall-clock start, e.g. "14:00".
	ScheduledDate time.Time `gorm:"not null;index:idx_booking_date" json:"scheduled_date"`
	ScheduledTime string    `gorm:"size:10;not null" json:"scheduled_time"`
	DurationHours *float64  `json:"duration_hours,omitempty"`

	Address string `gorm:"size:255;not null" json:"address"`

	Price         *float64 `json:"price,omitempty"`
	SquareFootage *int     `json:"square_footage,omitempty"`
	Bedrooms      *int     `json:"bedrooms,omitempty"`
	Bathrooms     *int     `json:"bathrooms,omitempty"`

	Status BookingStatus `gorm:"size:20;not null;default:'pending';index:idx_booking_status" json:"status"`
	Notes  string        `gorm:"type:text" json:"notes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Client *Client `gorm:"foreignKey:ClientID" json:"client,omitempty"`
}

// SeriesKey is the attribute tuple that defines which bookings belong to
// one recurring series. There is no persisted series entity; the key is
// derived from the booking itself.
type SeriesKey struct {
	ClientID    string
	ServiceType string
	Address     string
	Frequency   ServiceFrequency
}

func (b *Booking) SeriesKey() SeriesKey {
	return SeriesKey{
		ClientID:    b.ClientID,
		ServiceType: b.ServiceType,
		Address:     b.Address,
		Frequency:   b.ServiceFrequency,
	}
}

// ScheduledAt combines the calendar date with the wall-clock time string.
// A malformed time string falls back to midnight.
func (b *Booking) ScheduledAt() time.Time {
	d := b.ScheduledDate
	if t, err := time.Parse("15:04", b.ScheduledTime); err == nil {
		return time.Date(d.Year(), d.Month(), d.Day(), t.Hour(), t.Minute(), 0, 0, d.Location())
	}
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, d.Location())
}
