package storage

import "time"

const (
	BookingStatusPaid      = "paid"
	BookingStatusPending   = "pending"
	BookingStatusCancelled = "cancelled"
)

type Credential struct {
	Name      string    `db:"name"`
	Value     string    `db:"value"`
	UpdatedAt time.Time `db:"updated_at"`
}

// PowerHistoryEntry is one row of the append-only power log.
type PowerHistoryEntry struct {
	ID        string    `db:"id" json:"id"`
	IsOn      bool      `db:"is_on" json:"is_on"`
	Source    string    `db:"source" json:"source"`
	Timestamp time.Time `db:"timestamp" json:"timestamp"`
	Battery   *int64    `db:"battery" json:"battery,omitempty"`
	BookingID *string   `db:"booking_id" json:"booking_id,omitempty"`
}

type Booking struct {
	ID                   int64      `db:"id" json:"id"`
	ReservationCode      string     `db:"reservation_code" json:"reservation_code"`
	GuestName            string     `db:"guest_name" json:"guest_name"`
	CheckIn              time.Time  `db:"check_in" json:"check_in"`
	CheckOut             time.Time  `db:"check_out" json:"check_out"`
	PaymentStatus        string     `db:"payment_status" json:"payment_status"`
	PowerStatus          *string    `db:"power_status" json:"power_status,omitempty"`
	PowerStatusUpdatedAt *time.Time `db:"power_status_updated_at" json:"power_status_updated_at,omitempty"`
	CreatedAt            time.Time  `db:"created_at" json:"created_at"`
}

func (b Booking) Cancelled() bool {
	return b.PaymentStatus == BookingStatusCancelled
}
