package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/nazmul-hoque/bookline/internal/model"
	"github.com/nazmul-hoque/bookline/libs/db"
)

// BusinessRepository covers the owner-managed CRUD entities: businesses,
// staff and their weekly templates, services, and closed dates.
type BusinessRepository struct {
	pool *db.Pool
}

func NewBusinessRepository(pool *db.Pool) *BusinessRepository {
	return &BusinessRepository{pool: pool}
}

func (r *BusinessRepository) Create(ctx context.Context, ownerID, name, timezone string) (model.Business, error) {
	var b model.Business
	err := r.pool.QueryRow(ctx, `
		INSERT INTO businesses (id, owner_id, name, timezone)
		VALUES ($1, $2, $3, $4)
		RETURNING id::text, owner_id::text, name, timezone,
			slot_step_minutes, min_lead_time_minutes, auto_confirm, is_active, created_at
	`, uuid.NewString(), ownerID, name, timezone).Scan(
		&b.ID, &b.OwnerID, &b.Name, &b.Timezone,
		&b.SlotStepMinutes, &b.MinLeadTimeMinutes, &b.AutoConfirm, &b.IsActive, &b.CreatedAt,
	)
	return b, err
}

func (r *BusinessRepository) GetByID(ctx context.Context, businessID string) (model.Business, error) {
	var b model.Business
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, owner_id::text, name, timezone,
			slot_step_minutes, min_lead_time_minutes, auto_confirm, is_active, created_at
		FROM businesses
		WHERE id = $1
	`, businessID).Scan(
		&b.ID, &b.OwnerID, &b.Name, &b.Timezone,
		&b.SlotStepMinutes, &b.MinLeadTimeMinutes, &b.AutoConfirm, &b.IsActive, &b.CreatedAt,
	)
	return b, err
}

func (r *BusinessRepository) ListByOwner(ctx context.Context, ownerID string) ([]model.Business, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, owner_id::text, name, timezone,
			slot_step_minutes, min_lead_time_minutes, auto_confirm, is_active, created_at
		FROM businesses
		WHERE owner_id = $1
		ORDER BY created_at ASC
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Business
	for rows.Next() {
		var b model.Business
		if err := rows.Scan(
			&b.ID, &b.OwnerID, &b.Name, &b.Timezone,
			&b.SlotStepMinutes, &b.MinLeadTimeMinutes, &b.AutoConfirm, &b.IsActive, &b.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *BusinessRepository) UpdateSettings(ctx context.Context, b model.Business) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE businesses
		SET name = $2,
			timezone = $3,
			slot_step_minutes = $4,
			min_lead_time_minutes = $5,
			auto_confirm = $6,
			is_active = $7,
			updated_at = now()
		WHERE id = $1
	`, b.ID, b.Name, b.Timezone, b.SlotStepMinutes, b.MinLeadTimeMinutes, b.AutoConfirm, b.IsActive)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errNoRows()
	}
	return nil
}

func (r *BusinessRepository) CreateStaff(ctx context.Context, businessID, name string, displayOrder int) (string, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	id := uuid.NewString()
	if _, err := tx.Exec(ctx, `
		INSERT INTO staff (id, business_id, name, display_order)
		VALUES ($1, $2, $3, $4)
	`, id, businessID, name, displayOrder); err != nil {
		return "", err
	}

	// Default template: Mon-Fri 09:00-17:00, weekend off.
	for wd := 0; wd <= 6; wd++ {
		isWorking := wd >= 1 && wd <= 5
		startMin, endMin := 540, 1020
		if !isWorking {
			startMin, endMin = 0, 0
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO staff_working_hours (staff_id, weekday, is_working, start_minute, end_minute)
			VALUES ($1, $2, $3, $4, $5)
		`, id, wd, isWorking, startMin, endMin); err != nil {
			return "", err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return "", err
	}
	return id, nil
}

func (r *BusinessRepository) GetStaff(ctx context.Context, businessID, staffID string) (model.Staff, error) {
	var s model.Staff
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, business_id::text, name, is_active, display_order, created_at
		FROM staff
		WHERE business_id = $1 AND id = $2
	`, businessID, staffID).Scan(&s.ID, &s.BusinessID, &s.Name, &s.IsActive, &s.DisplayOrder, &s.CreatedAt)
	return s, err
}

func (r *BusinessRepository) ListStaff(ctx context.Context, businessID string) ([]model.Staff, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, business_id::text, name, is_active, display_order, created_at
		FROM staff
		WHERE business_id = $1
		ORDER BY display_order ASC, created_at ASC
	`, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Staff
	for rows.Next() {
		var s model.Staff
		if err := rows.Scan(&s.ID, &s.BusinessID, &s.Name, &s.IsActive, &s.DisplayOrder, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// UpdateStaff only touches mutable fields. Deactivation is the supported
// removal path: past bookings keep their staff reference.
func (r *BusinessRepository) UpdateStaff(ctx context.Context, businessID, staffID, name string, isActive bool, displayOrder int) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE staff
		SET name = $3, is_active = $4, display_order = $5, updated_at = now()
		WHERE business_id = $1 AND id = $2
	`, businessID, staffID, name, isActive, displayOrder)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errNoRows()
	}
	return nil
}

func (r *BusinessRepository) ListWorkingHours(ctx context.Context, businessID, staffID string) ([]model.WorkingHours, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT h.staff_id::text, h.weekday, h.is_working, h.start_minute, h.end_minute
		FROM staff_working_hours h
		JOIN staff s ON s.id = h.staff_id
		WHERE s.business_id = $1 AND h.staff_id = $2
		ORDER BY h.weekday ASC
	`, businessID, staffID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.WorkingHours
	for rows.Next() {
		var wh model.WorkingHours
		var weekday int
		if err := rows.Scan(&wh.StaffID, &weekday, &wh.IsWorking, &wh.StartMinute, &wh.EndMinute); err != nil {
			return nil, err
		}
		wh.Weekday = time.Weekday(weekday)
		out = append(out, wh)
	}
	return out, rows.Err()
}

func (r *BusinessRepository) UpsertWorkingHours(ctx context.Context, businessID string, wh model.WorkingHours) error {
	var exists bool
	if err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM staff WHERE id = $1 AND business_id = $2
		)
	`, wh.StaffID, businessID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return errNoRows()
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO staff_working_hours (staff_id, weekday, is_working, start_minute, end_minute)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (staff_id, weekday) DO UPDATE
		SET is_working = EXCLUDED.is_working,
			start_minute = EXCLUDED.start_minute,
			end_minute = EXCLUDED.end_minute
	`, wh.StaffID, int(wh.Weekday), wh.IsWorking, wh.StartMinute, wh.EndMinute)
	return err
}

func (r *BusinessRepository) CreateService(ctx context.Context, svc model.Service) (string, error) {
	id := uuid.NewString()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO services (id, business_id, name, duration_minutes, price, is_active, display_order)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, id, svc.BusinessID, svc.Name, svc.DurationMins, svc.Price, svc.IsActive, svc.DisplayOrder)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *BusinessRepository) GetService(ctx context.Context, businessID, serviceID string) (model.Service, error) {
	var s model.Service
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, business_id::text, name, duration_minutes, price::text, is_active, display_order, created_at
		FROM services
		WHERE business_id = $1 AND id = $2
	`, businessID, serviceID).Scan(
		&s.ID, &s.BusinessID, &s.Name, &s.DurationMins, &s.Price, &s.IsActive, &s.DisplayOrder, &s.CreatedAt,
	)
	return s, err
}

func (r *BusinessRepository) ListServices(ctx context.Context, businessID string) ([]model.Service, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, business_id::text, name, duration_minutes, price::text, is_active, display_order, created_at
		FROM services
		WHERE business_id = $1
		ORDER BY display_order ASC, created_at ASC
	`, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Service
	for rows.Next() {
		var s model.Service
		if err := rows.Scan(
			&s.ID, &s.BusinessID, &s.Name, &s.DurationMins, &s.Price, &s.IsActive, &s.DisplayOrder, &s.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *BusinessRepository) UpdateService(ctx context.Context, svc model.Service) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE services
		SET name = $3, duration_minutes = $4, price = $5, is_active = $6, display_order = $7, updated_at = now()
		WHERE business_id = $1 AND id = $2
	`, svc.BusinessID, svc.ID, svc.Name, svc.DurationMins, svc.Price, svc.IsActive, svc.DisplayOrder)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errNoRows()
	}
	return nil
}

func (r *BusinessRepository) CreateClosedDate(ctx context.Context, cd model.ClosedDate) (string, error) {
	id := uuid.NewString()
	var staffID any
	if cd.StaffID != "" {
		staffID = cd.StaffID
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO closed_dates (id, business_id, staff_id, start_time, end_time, reason)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, id, cd.BusinessID, staffID, cd.StartTime, cd.EndTime, cd.Reason)
	if err != nil {
		return "", err
	}
	return id, nil
}

// ListClosedDates returns closed intervals intersecting [from, to) that
// apply to the given staff member: business-wide rows plus staff-scoped ones.
func (r *BusinessRepository) ListClosedDates(ctx context.Context, businessID, staffID string, from, to time.Time) ([]model.ClosedDate, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, business_id::text, COALESCE(staff_id::text, ''), start_time, end_time, reason, created_at
		FROM closed_dates
		WHERE business_id = $1
			AND (staff_id IS NULL OR staff_id = $2)
			AND start_time < $4
			AND end_time > $3
		ORDER BY start_time ASC
	`, businessID, staffID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ClosedDate
	for rows.Next() {
		var cd model.ClosedDate
		if err := rows.Scan(&cd.ID, &cd.BusinessID, &cd.StaffID, &cd.StartTime, &cd.EndTime, &cd.Reason, &cd.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, cd)
	}
	return out, rows.Err()
}

func (r *BusinessRepository) DeleteClosedDate(ctx context.Context, businessID, closedDateID string) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM closed_dates
		WHERE business_id = $1 AND id = $2
	`, businessID, closedDateID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errNoRows()
	}
	return nil
}
