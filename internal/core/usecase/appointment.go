package usecase

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sabaek/bullion/internal/core/logger"
	"github.com/sabaek/bullion/internal/core/models"
	"github.com/sabaek/bullion/internal/core/repository"
)

type AppointmentRequest struct {
	UserID  uuid.UUID
	AssetID uuid.UUID
	StoreID uuid.UUID
	Date    time.Time
	Time    string
}

// AppointmentResult carries the created appointment plus the QR payload the
// client renders. The PIN travels only here, to the owner.
type AppointmentResult struct {
	Appointment *models.PickupAppointment `json:"appointment"`
	PIN         string                    `json:"pin"`
	QRPayload   string                    `json:"qr_payload"`
}

type AppointmentUsecase interface {
	Create(ctx context.Context, req AppointmentRequest) (*AppointmentResult, error)
	Confirm(ctx context.Context, id uuid.UUID) error
	Cancel(ctx context.Context, id uuid.UUID, reason string) error
	Complete(ctx context.Context, id uuid.UUID) error
	SweepNoShows(ctx context.Context) (int64, error)
}

type appointmentUsecase struct {
	appointments repository.AppointmentRepository
	assets       repository.AssetRepository
	stores       repository.StoreRepository
	log          logger.Logger
	now          func() time.Time
}

func NewAppointmentUsecase(
	appointments repository.AppointmentRepository,
	assets repository.AssetRepository,
	stores repository.StoreRepository,
	log logger.Logger,
) AppointmentUsecase {
	return &appointmentUsecase{
		appointments: appointments,
		assets:       assets,
		stores:       stores,
		log:          log,
		now:          time.Now,
	}
}

// qrPayload is what the pickup QR encodes. Staff scan it and challenge the
// spoken PIN against the embedded one.
type qrPayload struct {
	Number  string    `json:"number"`
	AssetID uuid.UUID `json:"asset_id"`
	StoreID uuid.UUID `json:"store_id"`
	Date    string    `json:"date"`
	Time    string    `json:"time"`
	PIN     string    `json:"pin"`
}

func (uc *appointmentUsecase) Create(ctx context.Context, req AppointmentRequest) (*AppointmentResult, error) {
	asset, err := uc.assets.GetByID(ctx, req.AssetID)
	if err != nil {
		return nil, err
	}
	if asset.OwnerID != req.UserID {
		return nil, fmt.Errorf("%w: %s", ErrAssetNotFound, req.AssetID)
	}
	if asset.Status != models.AssetNotReceived {
		return nil, fmt.Errorf("%w: asset %s is %s", ErrInvalidTransition, asset.ID, asset.Status)
	}
	if _, err := uc.stores.StoreByID(ctx, req.StoreID); err != nil {
		return nil, err
	}

	appt := &models.PickupAppointment{
		ID:            uuid.New(),
		AssetID:       req.AssetID,
		UserID:        req.UserID,
		StoreID:       req.StoreID,
		ScheduledDate: req.Date,
		ScheduledTime: req.Time,
		Status:        models.AppointmentPending,
	}

	if err := uc.createWithRetry(ctx, appt); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(qrPayload{
		Number:  appt.Number,
		AssetID: appt.AssetID,
		StoreID: appt.StoreID,
		Date:    appt.ScheduledDate.Format("2006-01-02"),
		Time:    appt.ScheduledTime,
		PIN:     appt.PIN,
	})
	if err != nil {
		return nil, fmt.Errorf("encode qr payload: %w", err)
	}

	uc.log.Info("Appointment created",
		logger.StringField("appointment_id", appt.ID.String()),
		logger.StringField("number", appt.Number),
		logger.StringField("asset_id", appt.AssetID.String()))

	return &AppointmentResult{
		Appointment: appt,
		PIN:         appt.PIN,
		QRPayload:   base64.StdEncoding.EncodeToString(payload),
	}, nil
}

// createWithRetry regenerates whichever code collided and retries the
// insert. An active-appointment conflict is not retried: it means the asset
// already has one.
func (uc *appointmentUsecase) createWithRetry(ctx context.Context, appt *models.PickupAppointment) error {
	number, err := newAppointmentNumber()
	if err != nil {
		return err
	}
	pin, err := newPIN()
	if err != nil {
		return err
	}
	appt.Number = number
	appt.PIN = pin

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		err := uc.appointments.Create(ctx, appt)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, repository.ErrNumberTaken):
			if appt.Number, err = newAppointmentNumber(); err != nil {
				return err
			}
		case errors.Is(err, repository.ErrPINTaken):
			if appt.PIN, err = newPIN(); err != nil {
				return err
			}
		default:
			return err
		}
	}
	return fmt.Errorf("%w: appointment codes", ErrCodeGeneration)
}

// ensureTransition rejects impossible transitions before touching storage.
// The repository's guarded update remains the authority under concurrency.
func (uc *appointmentUsecase) ensureTransition(ctx context.Context, id uuid.UUID, next models.AppointmentStatus) error {
	appt, err := uc.appointments.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !appt.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: appointment %s is %s", ErrInvalidTransition, id, appt.Status)
	}
	return nil
}

func (uc *appointmentUsecase) Confirm(ctx context.Context, id uuid.UUID) error {
	if err := uc.ensureTransition(ctx, id, models.AppointmentConfirmed); err != nil {
		return err
	}
	return uc.appointments.Confirm(ctx, id, uc.now())
}

func (uc *appointmentUsecase) Cancel(ctx context.Context, id uuid.UUID, reason string) error {
	if err := uc.ensureTransition(ctx, id, models.AppointmentCancelled); err != nil {
		return err
	}
	return uc.appointments.Cancel(ctx, id, reason, uc.now())
}

// Complete closes the pickup; the repository marks the asset received in
// the same transaction.
func (uc *appointmentUsecase) Complete(ctx context.Context, id uuid.UUID) error {
	if err := uc.ensureTransition(ctx, id, models.AppointmentCompleted); err != nil {
		return err
	}
	return uc.appointments.Complete(ctx, id, uc.now())
}

func (uc *appointmentUsecase) SweepNoShows(ctx context.Context) (int64, error) {
	swept, err := uc.appointments.SweepNoShows(ctx, uc.now())
	if err != nil {
		return 0, err
	}
	if swept > 0 {
		uc.log.Info("Swept no-show appointments", logger.Int64Field("count", swept))
	}
	return swept, nil
}
