package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"example.com/flosla/services/registration/internal/metrics"
	"example.com/flosla/services/registration/internal/models"
	"example.com/flosla/services/registration/internal/repositories"
)

// RegistrationInput carries the registrant details from the public form
type RegistrationInput struct {
	FirstName           string
	Surname             string
	Sex                 string
	DateOfBirth         string
	Age                 int
	StateOfResidence    string
	StateOfOrigin       string
	PositionOfPlay      string
	GuardianFullName    string
	GuardianPhoneNumber string
	Email               string
}

// RegistrationService handles event registrations
type RegistrationService struct {
	regRepo     *repositories.RegistrationRepository
	paymentRepo *repositories.PaymentRepository
	eventRepo   *repositories.EventRepository
	metrics     *metrics.Metrics
}

// NewRegistrationService creates a new registration service
func NewRegistrationService(db *gorm.DB, readOnlyDB *gorm.DB, metricsCollector *metrics.Metrics) *RegistrationService {
	return &RegistrationService{
		regRepo:     repositories.NewRegistrationRepository(db, readOnlyDB),
		paymentRepo: repositories.NewPaymentRepository(db, readOnlyDB),
		eventRepo:   repositories.NewEventRepository(db, readOnlyDB),
		metrics:     metricsCollector,
	}
}

// Register creates a PENDING registration for the active event with a
// freshly generated payment reference.
func (s *RegistrationService) Register(ctx context.Context, input *RegistrationInput) (*models.Registration, *models.Event, error) {
	event, err := s.eventRepo.GetActive(ctx)
	if err != nil {
		if errors.Is(errors.Cause(err), gorm.ErrRecordNotFound) {
			return nil, nil, ErrEventNotFound
		}
		return nil, nil, err
	}

	_, err = s.regRepo.FindDuplicate(ctx, event.ID, input.GuardianPhoneNumber, input.FirstName, input.Surname)
	if err == nil {
		return nil, nil, ErrDuplicateRegistration
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, errors.Wrap(err, "failed to check for duplicate registration")
	}

	registration := &models.Registration{
		ID:                  uuid.New(),
		EventID:             event.ID,
		FirstName:           input.FirstName,
		Surname:             input.Surname,
		Sex:                 input.Sex,
		DateOfBirth:         input.DateOfBirth,
		Age:                 input.Age,
		StateOfResidence:    input.StateOfResidence,
		StateOfOrigin:       input.StateOfOrigin,
		PositionOfPlay:      input.PositionOfPlay,
		GuardianFullName:    input.GuardianFullName,
		GuardianPhoneNumber: input.GuardianPhoneNumber,
		PaymentStatus:       models.PaymentStatusPending,
		PaystackReference:   GenerateReference(),
	}
	if input.Email != "" {
		email := strings.ToLower(input.Email)
		registration.Email = &email
	}

	if err := s.regRepo.Create(ctx, registration); err != nil {
		return nil, nil, errors.Wrap(err, "failed to create registration")
	}

	s.metrics.IncrCounter(metrics.RegistrationsCreated)
	log.Info().
		Str("registration_id", registration.ID.String()).
		Str("reference", registration.PaystackReference).
		Str("player", registration.FullName()).
		Msg("Registration created")

	return registration, event, nil
}

// GetByID returns a registration with its payment, if settled
func (s *RegistrationService) GetByID(ctx context.Context, id uuid.UUID) (*models.Registration, *models.Payment, error) {
	registration, err := s.regRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(errors.Cause(err), gorm.ErrRecordNotFound) {
			return nil, nil, ErrRegistrationNotFound
		}
		return nil, nil, err
	}

	payment, err := s.paymentRepo.GetByRegistrationID(ctx, registration.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return registration, nil, nil
		}
		return nil, nil, errors.Wrap(err, "failed to look up payment for registration")
	}

	return registration, payment, nil
}

// List returns a page of registrations
func (s *RegistrationService) List(ctx context.Context, filter repositories.RegistrationFilter, page, limit int) ([]models.Registration, int64, error) {
	offset := (page - 1) * limit
	return s.regRepo.List(ctx, filter, offset, limit)
}

// ListPaid returns all paid registrations, optionally filtered by event
func (s *RegistrationService) ListPaid(ctx context.Context, eventID *uuid.UUID) ([]models.Registration, error) {
	return s.regRepo.ListPaid(ctx, eventID)
}
