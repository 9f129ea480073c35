package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/nazmul-hoque/bookline/internal/model"
	"github.com/nazmul-hoque/bookline/libs/db"
)

type BookingRepository struct {
	pool *db.Pool
}

func NewBookingRepository(pool *db.Pool) *BookingRepository {
	return &BookingRepository{pool: pool}
}

func (r *BookingRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// LockStaff serializes concurrent booking attempts for one staff member.
// The row lock is held until the transaction commits, so the overlap check
// plus insert below execute without interleaving writers.
func (r *BookingRepository) LockStaff(ctx context.Context, tx pgx.Tx, businessID, staffID string) error {
	var id string
	return tx.QueryRow(ctx, `
		SELECT id::text
		FROM staff
		WHERE business_id = $1 AND id = $2
		FOR UPDATE
	`, businessID, staffID).Scan(&id)
}

// HasOccupyingOverlap reports whether any pending or confirmed booking for
// the staff member intersects [start, end).
func (r *BookingRepository) HasOccupyingOverlap(ctx context.Context, tx pgx.Tx, staffID string, start, end time.Time) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM bookings
			WHERE staff_id = $1
				AND status IN ('pending', 'confirmed')
				AND start_time < $3
				AND end_time > $2
		)
	`, staffID, start, end).Scan(&exists)
	return exists, err
}

func (r *BookingRepository) Create(ctx context.Context, tx pgx.Tx, b *model.Booking) (string, error) {
	id := uuid.NewString()
	_, err := tx.Exec(ctx, `
		INSERT INTO bookings
			(id, business_id, staff_id, service_id, customer_id, start_time, end_time, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, id, b.BusinessID, b.StaffID, b.ServiceID, b.CustomerID, b.StartTime, b.EndTime, b.Status)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *BookingRepository) GetByID(ctx context.Context, bookingID string) (model.Booking, error) {
	return r.scanOne(r.pool.QueryRow(ctx, selectBooking+` WHERE id = $1`, bookingID))
}

func (r *BookingRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, bookingID string) (model.Booking, error) {
	return r.scanOne(tx.QueryRow(ctx, selectBooking+` WHERE id = $1 FOR UPDATE`, bookingID))
}

func (r *BookingRepository) UpdateStatus(ctx context.Context, tx pgx.Tx, bookingID string, status model.BookingStatus, noShow bool) error {
	tag, err := tx.Exec(ctx, `
		UPDATE bookings
		SET status = $2, no_show = $3, updated_at = now()
		WHERE id = $1
	`, bookingID, status, noShow)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errNoRows()
	}
	return nil
}

// ListOccupying returns pending/confirmed bookings for the staff member
// intersecting [from, to), ordered by start. Cancelled and completed
// bookings never block availability.
func (r *BookingRepository) ListOccupying(ctx context.Context, staffID string, from, to time.Time) ([]model.Booking, error) {
	rows, err := r.pool.Query(ctx, selectBooking+`
		WHERE staff_id = $1
			AND status IN ('pending', 'confirmed')
			AND start_time < $3
			AND end_time > $2
		ORDER BY start_time ASC
	`, staffID, from, to)
	if err != nil {
		return nil, err
	}
	return r.scanAll(rows)
}

func (r *BookingRepository) ListByBusiness(ctx context.Context, businessID string, limit int) ([]model.Booking, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, selectBooking+`
		WHERE business_id = $1
		ORDER BY start_time DESC
		LIMIT $2
	`, businessID, limit)
	if err != nil {
		return nil, err
	}
	return r.scanAll(rows)
}

func (r *BookingRepository) ListByCustomer(ctx context.Context, customerID string, limit int) ([]model.Booking, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, selectBooking+`
		WHERE customer_id = $1
		ORDER BY start_time DESC
		LIMIT $2
	`, customerID, limit)
	if err != nil {
		return nil, err
	}
	return r.scanAll(rows)
}

const selectBooking = `
	SELECT id::text, business_id::text, staff_id::text, service_id::text, customer_id::text,
		start_time, end_time, status, no_show, created_at
	FROM bookings`

func (r *BookingRepository) scanOne(row pgx.Row) (model.Booking, error) {
	var b model.Booking
	err := row.Scan(
		&b.ID, &b.BusinessID, &b.StaffID, &b.ServiceID, &b.CustomerID,
		&b.StartTime, &b.EndTime, &b.Status, &b.NoShow, &b.CreatedAt,
	)
	if err != nil {
		return model.Booking{}, err
	}
	return b, nil
}

func (r *BookingRepository) scanAll(rows pgx.Rows) ([]model.Booking, error) {
	defer rows.Close()
	var out []model.Booking
	for rows.Next() {
		var b model.Booking
		if err := rows.Scan(
			&b.ID, &b.BusinessID, &b.StaffID, &b.ServiceID, &b.CustomerID,
			&b.StartTime, &b.EndTime, &b.Status, &b.NoShow, &b.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
