package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"example.com/flosla/services/registration/internal/models"
)

// EventRepository provides access to event data
type EventRepository struct {
	db         *gorm.DB // Write database
	readOnlyDB *gorm.DB // Read-only database
}

// NewEventRepository creates a new event repository
func NewEventRepository(db *gorm.DB, readOnlyDB *gorm.DB) *EventRepository {
	return &EventRepository{
		db:         db,
		readOnlyDB: readOnlyDB,
	}
}

// GetActive gets the single active event
func (r *EventRepository) GetActive(ctx context.Context) (*models.Event, error) {
	var event models.Event
	err := r.readOnlyDB.WithContext(ctx).Where("is_active = ?", true).First(&event).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to get active event")
	}
	return &event, nil
}

// GetByID gets an event by ID
func (r *EventRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	var event models.Event
	err := r.readOnlyDB.WithContext(ctx).First(&event, "id = ?", id).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to get event by ID")
	}
	return &event, nil
}

// Count counts all events
func (r *EventRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.readOnlyDB.WithContext(ctx).Model(&models.Event{}).Count(&count).Error
	if err != nil {
		return 0, errors.Wrap(err, "failed to count events")
	}
	return count, nil
}

// Create creates a new event
func (r *EventRepository) Create(ctx context.Context, event *models.Event) error {
	return r.db.WithContext(ctx).Create(event).Error
}

// UpdateAmount updates the configured amount of an event
func (r *EventRepository) UpdateAmount(ctx context.Context, id uuid.UUID, amount int64) error {
	result := r.db.WithContext(ctx).
		Model(&models.Event{}).
		Where("id = ?", id).
		Update("amount", amount)

	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to update event amount")
	}

	if result.RowsAffected == 0 {
		return errors.New("no event updated")
	}

	return nil
}

// RegistrationRepository provides access to registration data
type RegistrationRepository struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB
}

// NewRegistrationRepository creates a new registration repository
func NewRegistrationRepository(db *gorm.DB, readOnlyDB *gorm.DB) *RegistrationRepository {
	return &RegistrationRepository{
		db:         db,
		readOnlyDB: readOnlyDB,
	}
}

// Create creates a new registration
func (r *RegistrationRepository) Create(ctx context.Context, registration *models.Registration) error {
	return r.db.WithContext(ctx).Create(registration).Error
}

// GetByID gets a registration by ID
func (r *RegistrationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Registration, error) {
	var registration models.Registration
	err := r.readOnlyDB.WithContext(ctx).First(&registration, "id = ?", id).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to get registration by ID")
	}
	return &registration, nil
}

// GetByReference gets a registration by its payment reference
func (r *RegistrationRepository) GetByReference(ctx context.Context, reference string) (*models.Registration, error) {
	var registration models.Registration
	err := r.readOnlyDB.WithContext(ctx).Where("paystack_reference = ?", reference).First(&registration).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to get registration by reference")
	}
	return &registration, nil
}

// FindDuplicate finds an existing registration for the same child by the
// same guardian. Name matching is case-insensitive.
func (r *RegistrationRepository) FindDuplicate(ctx context.Context, eventID uuid.UUID, guardianPhone, firstName, surname string) (*models.Registration, error) {
	var registration models.Registration
	err := r.readOnlyDB.WithContext(ctx).
		Where("event_id = ? AND guardian_phone_number = ? AND LOWER(first_name) = LOWER(?) AND LOWER(surname) = LOWER(?)",
			eventID, guardianPhone, firstName, surname).
		First(&registration).Error
	if err != nil {
		return nil, err
	}
	return &registration, nil
}

// RegistrationFilter narrows registration listings
type RegistrationFilter struct {
	EventID *uuid.UUID
	Status  string
}

// List returns a page of registrations plus the total matching count
func (r *RegistrationRepository) List(ctx context.Context, filter RegistrationFilter, offset, limit int) ([]models.Registration, int64, error) {
	query := r.readOnlyDB.WithContext(ctx).Model(&models.Registration{})
	if filter.EventID != nil {
		query = query.Where("event_id = ?", *filter.EventID)
	}
	if filter.Status != "" {
		query = query.Where("payment_status = ?", filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, errors.Wrap(err, "failed to count registrations")
	}

	var registrations []models.Registration
	err := query.
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&registrations).Error
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list registrations")
	}

	return registrations, total, nil
}

// ListPaid returns all paid registrations, optionally filtered by event
func (r *RegistrationRepository) ListPaid(ctx context.Context, eventID *uuid.UUID) ([]models.Registration, error) {
	query := r.readOnlyDB.WithContext(ctx).Where("payment_status = ?", models.PaymentStatusPaid)
	if eventID != nil {
		query = query.Where("event_id = ?", *eventID)
	}

	var registrations []models.Registration
	if err := query.Find(&registrations).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list paid registrations")
	}
	return registrations, nil
}

// ListStalePending returns pending registrations created before the cutoff.
// Used by the reconciliation sweep to recover credits dropped by webhook
// failures.
func (r *RegistrationRepository) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]models.Registration, error) {
	var registrations []models.Registration
	err := r.readOnlyDB.WithContext(ctx).
		Where("payment_status = ? AND created_at < ?", models.PaymentStatusPending, cutoff).
		Limit(limit).
		Find(&registrations).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list stale pending registrations")
	}
	return registrations, nil
}

// PaymentRepository provides access to payment data
type PaymentRepository struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB
}

// NewPaymentRepository creates a new payment repository
func NewPaymentRepository(db *gorm.DB, readOnlyDB *gorm.DB) *PaymentRepository {
	return &PaymentRepository{
		db:         db,
		readOnlyDB: readOnlyDB,
	}
}

// GetByReceiptNumber gets a payment by its receipt number
func (r *PaymentRepository) GetByReceiptNumber(ctx context.Context, receiptNumber string) (*models.Payment, error) {
	var payment models.Payment
	err := r.readOnlyDB.WithContext(ctx).Where("receipt_number = ?", receiptNumber).First(&payment).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to get payment by receipt number")
	}
	return &payment, nil
}

// GetByRegistrationID gets a payment by its owning registration
func (r *PaymentRepository) GetByRegistrationID(ctx context.Context, registrationID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	err := r.readOnlyDB.WithContext(ctx).Where("registration_id = ?", registrationID).First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// List returns a page of payments plus the total count, newest first
func (r *PaymentRepository) List(ctx context.Context, offset, limit int) ([]models.Payment, int64, error) {
	var total int64
	if err := r.readOnlyDB.WithContext(ctx).Model(&models.Payment{}).Count(&total).Error; err != nil {
		return nil, 0, errors.Wrap(err, "failed to count payments")
	}

	var payments []models.Payment
	err := r.readOnlyDB.WithContext(ctx).
		Order("paid_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&payments).Error
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list payments")
	}

	return payments, total, nil
}

// AdminRepository provides access to admin accounts
type AdminRepository struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB
}

// NewAdminRepository creates a new admin repository
func NewAdminRepository(db *gorm.DB, readOnlyDB *gorm.DB) *AdminRepository {
	return &AdminRepository{
		db:         db,
		readOnlyDB: readOnlyDB,
	}
}

// Create creates a new admin account
func (r *AdminRepository) Create(ctx context.Context, admin *models.Admin) error {
	return r.db.WithContext(ctx).Create(admin).Error
}

// GetByEmail gets an admin by email
func (r *AdminRepository) GetByEmail(ctx context.Context, email string) (*models.Admin, error) {
	var admin models.Admin
	err := r.readOnlyDB.WithContext(ctx).Where("email = ?", email).First(&admin).Error
	if err != nil {
		return nil, err
	}
	return &admin, nil
}

// GetByID gets an admin by ID
func (r *AdminRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Admin, error) {
	var admin models.Admin
	err := r.readOnlyDB.WithContext(ctx).First(&admin, "id = ?", id).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to get admin by ID")
	}
	return &admin, nil
}

// List returns all admin accounts
func (r *AdminRepository) List(ctx context.Context) ([]models.Admin, error) {
	var admins []models.Admin
	if err := r.readOnlyDB.WithContext(ctx).Find(&admins).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list admins")
	}
	return admins, nil
}
