package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const bookingColumns = `id, reservation_code, guest_name, check_in, check_out, payment_status, power_status, power_status_updated_at, created_at`

const (
	queryUpsertBooking = `INSERT INTO bookings (reservation_code, guest_name, check_in, check_out, payment_status, created_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (reservation_code) DO UPDATE SET
    guest_name = excluded.guest_name,
    check_in = excluded.check_in,
    check_out = excluded.check_out,
    payment_status = excluded.payment_status
RETURNING id`
	queryGetBooking    = `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	queryListBookings  = `SELECT ` + bookingColumns + ` FROM bookings ORDER BY check_in DESC LIMIT ?`
	queryDeleteBooking = `DELETE FROM bookings WHERE id = ?`

	queryListCheckIns = `SELECT ` + bookingColumns + ` FROM bookings
WHERE check_in >= ? AND check_in <= ? AND check_out > ? AND payment_status <> ?
ORDER BY check_in`
	queryListCheckOuts = `SELECT ` + bookingColumns + ` FROM bookings
WHERE check_out >= ? AND check_out <= ? AND payment_status <> ?
ORDER BY check_out`

	queryUpdateBookingPowerStatus = `UPDATE bookings SET power_status = ?, power_status_updated_at = ? WHERE id = ?`
)

// CreateBooking inserts a booking, or updates the one with the same reservation code.
func (p *SQLProvider) CreateBooking(ctx context.Context, booking Booking) (int64, error) {
	if !booking.CheckIn.Before(booking.CheckOut) {
		return 0, fmt.Errorf("check-in %s is not before check-out %s", booking.CheckIn, booking.CheckOut)
	}
	if booking.PaymentStatus == "" {
		booking.PaymentStatus = BookingStatusPaid
	}
	createdAt := booking.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	var id int64
	err := p.db.QueryRowxContext(ctx, p.db.Rebind(queryUpsertBooking),
		booking.ReservationCode,
		booking.GuestName,
		booking.CheckIn.UTC(),
		booking.CheckOut.UTC(),
		booking.PaymentStatus,
		createdAt.UTC(),
	).Scan(&id)
	if err != nil {
		return 0, persistenceError("create booking", err)
	}
	return id, nil
}

func (p *SQLProvider) GetBooking(ctx context.Context, id int64) (*Booking, error) {
	var booking Booking
	err := p.db.GetContext(ctx, &booking, p.db.Rebind(queryGetBooking), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read booking %d: %w", id, err)
	}
	return &booking, nil
}

func (p *SQLProvider) ListBookings(ctx context.Context, limit int) ([]Booking, error) {
	bookings := []Booking{}
	if err := p.db.SelectContext(ctx, &bookings, p.db.Rebind(queryListBookings), limit); err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return bookings, nil
}

func (p *SQLProvider) DeleteBooking(ctx context.Context, id int64) error {
	res, err := p.db.ExecContext(ctx, p.db.Rebind(queryDeleteBooking), id)
	if err != nil {
		return persistenceError("delete booking", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListCheckIns returns active bookings whose check-in falls in [from, to] and whose
// check-out is still after from.
func (p *SQLProvider) ListCheckIns(ctx context.Context, from time.Time, to time.Time) ([]Booking, error) {
	bookings := []Booking{}
	err := p.db.SelectContext(ctx, &bookings, p.db.Rebind(queryListCheckIns),
		from.UTC(), to.UTC(), from.UTC(), BookingStatusCancelled)
	if err != nil {
		return nil, fmt.Errorf("failed to list check-ins: %w", err)
	}
	return bookings, nil
}

// ListCheckOuts returns active bookings whose check-out falls in [from, to].
func (p *SQLProvider) ListCheckOuts(ctx context.Context, from time.Time, to time.Time) ([]Booking, error) {
	bookings := []Booking{}
	err := p.db.SelectContext(ctx, &bookings, p.db.Rebind(queryListCheckOuts),
		from.UTC(), to.UTC(), BookingStatusCancelled)
	if err != nil {
		return nil, fmt.Errorf("failed to list check-outs: %w", err)
	}
	return bookings, nil
}

func (p *SQLProvider) UpdateBookingPowerStatus(ctx context.Context, id int64, status string, at time.Time) error {
	res, err := p.db.ExecContext(ctx, p.db.Rebind(queryUpdateBookingPowerStatus), status, at.UTC(), id)
	if err != nil {
		return persistenceError("update booking power status", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
