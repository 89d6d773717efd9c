package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// Payment lifecycle states for a registration
const (
	PaymentStatusPending = "PENDING"
	PaymentStatusPaid    = "PAID"
)

// Event is the single configurable tournament entry. Amount is stored in
// minor currency units (kobo).
type Event struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
	Name        string    `gorm:"not null" json:"name"`
	Description string    `gorm:"not null" json:"description"`
	Amount      int64     `gorm:"not null" json:"amount"`
	Currency    string    `gorm:"not null;default:'NGN'" json:"currency"`
	IsActive    bool      `gorm:"not null;default:true" json:"is_active"`

	Registrations []Registration `gorm:"foreignKey:EventID" json:"-"`
}

// Registration is one registrant's attempt to join the event. The
// PaystackReference is assigned once at creation and never reused; the
// unique index is the authoritative backstop for reference collisions.
type Registration struct {
	ID                  uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt           time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time `gorm:"autoUpdateTime" json:"updated_at"`
	EventID             uuid.UUID `gorm:"type:uuid;not null;index" json:"event_id"`
	FirstName           string    `gorm:"not null" json:"first_name"`
	Surname             string    `gorm:"not null" json:"surname"`
	Sex                 string    `gorm:"not null" json:"sex"`
	DateOfBirth         string    `gorm:"not null" json:"date_of_birth"`
	Age                 int       `gorm:"not null" json:"age"`
	StateOfResidence    string    `gorm:"not null" json:"state_of_residence"`
	StateOfOrigin       string    `gorm:"not null" json:"state_of_origin"`
	PositionOfPlay      string    `gorm:"not null" json:"position_of_play"`
	GuardianFullName    string    `gorm:"not null" json:"guardian_full_name"`
	GuardianPhoneNumber string    `gorm:"not null" json:"guardian_phone_number"`
	Email               *string   `gorm:"index" json:"email"`
	PaymentStatus       string    `gorm:"not null;default:'PENDING'" json:"payment_status"`
	PaystackReference   string    `gorm:"not null;uniqueIndex" json:"paystack_reference"`
	ReceiptGenerated    bool      `gorm:"not null;default:false" json:"receipt_generated"`

	Event   Event    `gorm:"foreignKey:EventID" json:"-"`
	Payment *Payment `gorm:"foreignKey:RegistrationID" json:"-"`
}

// FullName returns the registrant's display name
func (r *Registration) FullName() string {
	return strings.TrimSpace(r.FirstName + " " + r.Surname)
}

// ContactEmail returns the registration's email if present, otherwise a
// synthesized address derived from the guardian's phone number. Paystack
// requires an email on every transaction.
func (r *Registration) ContactEmail() string {
	if r.Email != nil && *r.Email != "" {
		return *r.Email
	}
	return r.GuardianPhoneNumber + "@temp.flosla.com"
}

// Payment is the immutable record of a provider-confirmed transaction.
// ReceiptNumber equals the registration's PaystackReference; its unique
// index upholds the at-most-one-credit guarantee.
type Payment struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
	RegistrationID   uuid.UUID `gorm:"type:uuid;not null;index" json:"registration_id"`
	ReceiptNumber    string    `gorm:"not null;uniqueIndex" json:"receipt_number"`
	Amount           int64     `gorm:"not null" json:"amount"`
	Currency         string    `gorm:"not null;default:'NGN'" json:"currency"`
	Channel          string    `gorm:"not null" json:"channel"`
	Status           string    `gorm:"not null;default:'success'" json:"status"`
	PaystackResponse []byte    `gorm:"type:jsonb;not null" json:"paystack_response"`
	PaidAt           time.Time `gorm:"not null" json:"paid_at"`

	Registration Registration `gorm:"foreignKey:RegistrationID" json:"-"`
}

// Admin is a back-office account
type Admin struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
	Email        string    `gorm:"not null;uniqueIndex" json:"email"`
	PasswordHash string    `gorm:"not null" json:"-"`
	Role         string    `gorm:"not null;default:'ADMIN'" json:"role"`
}

// SetupModels configures GORM models and runs migrations
func SetupModels(db *gorm.DB) error {
	err := db.AutoMigrate(
		&Event{},
		&Registration{},
		&Payment{},
		&Admin{},
	)
	if err != nil {
		return errors.Wrap(err, "failed to run auto migrations")
	}

	return nil
}
