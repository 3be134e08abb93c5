package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"calbook/internal/models"

	"github.com/google/uuid"
)

func (db *DB) CreateBooking(ctx context.Context, email string) (*models.Booking, error) {
	booking := &models.Booking{
		UUID:      uuid.NewString(),
		Email:     email,
		Status:    models.StatusPending,
		CreatedAt: time.Now(),
	}

	query := `INSERT INTO bookings (uuid, email, status, created_at) VALUES (?, ?, ?, ?)`
	result, err := db.db.ExecContext(ctx, query,
		booking.UUID,
		booking.Email,
		booking.Status,
		booking.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create booking: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}
	booking.ID = id

	return booking, nil
}

func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	query := `SELECT id, uuid, email, status, created_at, booked_for FROM bookings WHERE id = ?`
	return db.scanBooking(db.db.QueryRowContext(ctx, query, id))
}

func (db *DB) GetBookingByUUID(ctx context.Context, bookingUUID string) (*models.Booking, error) {
	query := `SELECT id, uuid, email, status, created_at, booked_for FROM bookings WHERE uuid = ?`
	return db.scanBooking(db.db.QueryRowContext(ctx, query, bookingUUID))
}

func (db *DB) scanBooking(row *sql.Row) (*models.Booking, error) {
	var booking models.Booking
	var bookedFor sql.NullTime
	err := row.Scan(
		&booking.ID, &booking.UUID, &booking.Email,
		&booking.Status, &booking.CreatedAt, &bookedFor,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	if bookedFor.Valid {
		booking.BookedFor = &bookedFor.Time
	}
	return &booking, nil
}

// UpdateBookingStatus moves a booking to a new status. The current status is
// read and validated inside a transaction so the lifecycle stays monotonic
// even with concurrent writers.
func (db *DB) UpdateBookingStatus(ctx context.Context, id int64, status string) error {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var current string
	err = tx.QueryRowContext(ctx, `SELECT status FROM bookings WHERE id = ?`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrBookingNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to read booking status: %w", err)
	}

	if !models.ValidTransition(current, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, status)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE bookings SET status = ? WHERE id = ?`, status, id); err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}

	return tx.Commit()
}

func (db *DB) UpdateBookedFor(ctx context.Context, id int64, bookedFor time.Time) error {
	query := `UPDATE bookings SET booked_for = ? WHERE id = ?`
	result, err := db.db.ExecContext(ctx, query, bookedFor, id)
	if err != nil {
		return fmt.Errorf("failed to update booked_for: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrBookingNotFound
	}
	return nil
}

func (db *DB) GetBookingsByDateRange(ctx context.Context, start, end time.Time) ([]*models.Booking, error) {
	query := `SELECT id, uuid, email, status, created_at, booked_for
              FROM bookings WHERE created_at >= ? AND created_at <= ? ORDER BY created_at ASC`
	rows, err := db.db.QueryContext(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to get bookings by date range: %w", err)
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		b := &models.Booking{}
		var bookedFor sql.NullTime
		if err := rows.Scan(&b.ID, &b.UUID, &b.Email, &b.Status, &b.CreatedAt, &bookedFor); err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		if bookedFor.Valid {
			b.BookedFor = &bookedFor.Time
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}
