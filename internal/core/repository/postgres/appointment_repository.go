package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sabaek/bullion/internal/core/logger"
	"github.com/sabaek/bullion/internal/core/models"
	"github.com/sabaek/bullion/internal/core/repository"
)

const appointmentColumns = `
	id, asset_id, user_id, store_id, scheduled_date, scheduled_time, number, pin,
	status, cancel_reason, created_at, confirmed_at, completed_at, cancelled_at
`

type postgresAppointmentRepo struct {
	db  *sqlx.DB
	log logger.Logger
}

func NewPostgresAppointmentRepo(db *sqlx.DB, log logger.Logger) repository.AppointmentRepository {
	return &postgresAppointmentRepo{db: db, log: log}
}

// Create relies on the partial unique index over active appointments rather
// than a check-then-insert, so two concurrent creates for the same asset
// cannot both land. The insert sources its rows from owned_assets so the
// appointment only exists if the asset still belongs to the caller and is
// awaiting pickup; a concurrent serializable ownership transfer conflicts
// with this transaction instead of slipping past it.
func (r *postgresAppointmentRepo) Create(ctx context.Context, appt *models.PickupAppointment) error {
	return runTxWithRetry(ctx, r.db, r.log, func(tx *sqlx.Tx) error {
		const query = `
			INSERT INTO pickup_appointments
				(id, asset_id, user_id, store_id, scheduled_date, scheduled_time, number, pin, status)
			SELECT $1, id, $3, $4, $5, $6, $7, $8, $9
			FROM owned_assets
			WHERE id = $2 AND owner_id = $3 AND status = 'not_received'
		`
		res, err := tx.ExecContext(ctx, query,
			appt.ID, appt.AssetID, appt.UserID, appt.StoreID,
			appt.ScheduledDate, appt.ScheduledTime, appt.Number, appt.PIN, appt.Status,
		)
		if err != nil {
			if constraint, ok := violatedConstraint(err); ok {
				switch constraint {
				case "pickup_appointments_active_asset":
					return repository.ErrActiveAppointment
				case "pickup_appointments_number_key":
					return repository.ErrNumberTaken
				case "pickup_appointments_pin_key":
					return repository.ErrPINTaken
				}
			}
			return fmt.Errorf("insert appointment: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("insert appointment: %w", err)
		}
		if affected == 0 {
			return r.explainCreateFailure(ctx, tx, appt)
		}
		return nil
	})
}

func (r *postgresAppointmentRepo) explainCreateFailure(ctx context.Context, tx *sqlx.Tx, appt *models.PickupAppointment) error {
	var asset struct {
		OwnerID uuid.UUID `db:"owner_id"`
		Status  string    `db:"status"`
	}
	err := tx.GetContext(ctx, &asset, `SELECT owner_id, status FROM owned_assets WHERE id = $1`, appt.AssetID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", repository.ErrAssetNotFound, appt.AssetID)
		}
		return fmt.Errorf("error getting asset: %w", err)
	}
	if asset.OwnerID != appt.UserID {
		return fmt.Errorf("%w: asset %s is not owned by %s", repository.ErrAssetNotFound, appt.AssetID, appt.UserID)
	}
	return fmt.Errorf("%w: asset %s is %s", repository.ErrInvalidTransition, appt.AssetID, asset.Status)
}

func (r *postgresAppointmentRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.PickupAppointment, error) {
	var appt models.PickupAppointment
	query := `SELECT ` + appointmentColumns + ` FROM pickup_appointments WHERE id = $1`
	err := r.db.GetContext(ctx, &appt, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", repository.ErrAppointmentNotFound, id)
		}
		return nil, fmt.Errorf("error getting appointment: %w", err)
	}
	return &appt, nil
}

func (r *postgresAppointmentRepo) ActiveByAsset(ctx context.Context, assetID uuid.UUID) (*models.PickupAppointment, error) {
	var appt models.PickupAppointment
	query := `SELECT ` + appointmentColumns + ` FROM pickup_appointments WHERE asset_id = $1 AND status IN ('pending', 'confirmed')`
	err := r.db.GetContext(ctx, &appt, query, assetID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: no active appointment for asset %s", repository.ErrAppointmentNotFound, assetID)
		}
		return nil, fmt.Errorf("error getting active appointment: %w", err)
	}
	return &appt, nil
}

func (r *postgresAppointmentRepo) Confirm(ctx context.Context, id uuid.UUID, now time.Time) error {
	const query = `
		UPDATE pickup_appointments
		SET status = 'confirmed', confirmed_at = $2
		WHERE id = $1 AND status = 'pending'
	`
	return r.guardedUpdate(ctx, id, query, now)
}

func (r *postgresAppointmentRepo) Cancel(ctx context.Context, id uuid.UUID, reason string, now time.Time) error {
	const query = `
		UPDATE pickup_appointments
		SET status = 'cancelled', cancel_reason = $3, cancelled_at = $2
		WHERE id = $1 AND status IN ('pending', 'confirmed')
	`
	res, err := r.db.ExecContext(ctx, query, id, now, reason)
	if err != nil {
		return fmt.Errorf("cancel appointment: %w", err)
	}
	return r.checkAffected(ctx, id, res)
}

// Complete closes the appointment and marks the asset received in the same
// transaction; store-verification policy allows completing straight from
// pending.
func (r *postgresAppointmentRepo) Complete(ctx context.Context, id uuid.UUID, now time.Time) error {
	return runTxWithRetry(ctx, r.db, r.log, func(tx *sqlx.Tx) error {
		const query = `
			UPDATE pickup_appointments
			SET status = 'completed', completed_at = $2
			WHERE id = $1 AND status IN ('pending', 'confirmed')
			RETURNING asset_id
		`
		var assetID uuid.UUID
		if err := tx.GetContext(ctx, &assetID, query, id, now); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return r.explainAppointmentFailure(ctx, id)
			}
			return fmt.Errorf("complete appointment: %w", err)
		}

		const assetQuery = `
			UPDATE owned_assets
			SET status = 'received', updated_at = NOW()
			WHERE id = $1 AND status = 'not_received'
		`
		res, err := tx.ExecContext(ctx, assetQuery, assetID)
		if err != nil {
			return fmt.Errorf("mark asset received: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("mark asset received: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("%w: asset %s is not awaiting pickup", repository.ErrInvalidTransition, assetID)
		}
		return nil
	})
}

func (r *postgresAppointmentRepo) SweepNoShows(ctx context.Context, now time.Time) (int64, error) {
	const query = `
		UPDATE pickup_appointments
		SET status = 'no_show'
		WHERE status = 'confirmed' AND scheduled_date < $1::date
	`
	res, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("sweep no-shows: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sweep no-shows: %w", err)
	}
	return affected, nil
}

func (r *postgresAppointmentRepo) guardedUpdate(ctx context.Context, id uuid.UUID, query string, now time.Time) error {
	res, err := r.db.ExecContext(ctx, query, id, now)
	if err != nil {
		return fmt.Errorf("update appointment: %w", err)
	}
	return r.checkAffected(ctx, id, res)
}

func (r *postgresAppointmentRepo) checkAffected(ctx context.Context, id uuid.UUID, res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update appointment: %w", err)
	}
	if affected == 0 {
		return r.explainAppointmentFailure(ctx, id)
	}
	return nil
}

func (r *postgresAppointmentRepo) explainAppointmentFailure(ctx context.Context, id uuid.UUID) error {
	var status string
	err := r.db.GetContext(ctx, &status, `SELECT status FROM pickup_appointments WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", repository.ErrAppointmentNotFound, id)
		}
		return fmt.Errorf("error getting appointment status: %w", err)
	}
	return fmt.Errorf("%w: appointment %s is %s", repository.ErrInvalidTransition, id, status)
}
