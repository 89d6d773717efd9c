package services

import (
	"context"
	"strings"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"example.com/flosla/services/registration/config"
	"example.com/flosla/services/registration/internal/models"
	"example.com/flosla/services/registration/internal/repositories"
)

const bcryptCost = 12

// AdminService handles back-office accounts and token issuance
type AdminService struct {
	adminRepo   *repositories.AdminRepository
	paymentRepo *repositories.PaymentRepository
	jwtSecret   []byte
	tokenExpiry time.Duration
}

// NewAdminService creates a new admin service
func NewAdminService(db *gorm.DB, readOnlyDB *gorm.DB, cfg config.AuthConfig) *AdminService {
	return &AdminService{
		adminRepo:   repositories.NewAdminRepository(db, readOnlyDB),
		paymentRepo: repositories.NewPaymentRepository(db, readOnlyDB),
		jwtSecret:   []byte(cfg.JWTSecret),
		tokenExpiry: cfg.TokenExpiry,
	}
}

// Register creates a new admin account and returns a signed token
func (s *AdminService) Register(ctx context.Context, email, password string) (*models.Admin, string, error) {
	email = strings.ToLower(email)

	_, err := s.adminRepo.GetByEmail(ctx, email)
	if err == nil {
		return nil, "", ErrAdminExists
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, "", errors.Wrap(err, "failed to check for existing admin")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, "", errors.Wrap(err, "failed to hash password")
	}

	admin := &models.Admin{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: string(hash),
		Role:         "ADMIN",
	}

	if err := s.adminRepo.Create(ctx, admin); err != nil {
		return nil, "", errors.Wrap(err, "failed to create admin")
	}

	token, err := s.issueToken(admin)
	if err != nil {
		return nil, "", err
	}

	log.Info().Str("admin_id", admin.ID.String()).Msg("Admin account created")
	return admin, token, nil
}

// Login validates credentials and returns a signed token
func (s *AdminService) Login(ctx context.Context, email, password string) (*models.Admin, string, error) {
	admin, err := s.adminRepo.GetByEmail(ctx, strings.ToLower(email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", errors.Wrap(err, "failed to look up admin")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.issueToken(admin)
	if err != nil {
		return nil, "", err
	}

	return admin, token, nil
}

// GetByID returns an admin account
func (s *AdminService) GetByID(ctx context.Context, id uuid.UUID) (*models.Admin, error) {
	admin, err := s.adminRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(errors.Cause(err), gorm.ErrRecordNotFound) {
			return nil, ErrAdminNotFound
		}
		return nil, err
	}
	return admin, nil
}

// List returns all admin accounts
func (s *AdminService) List(ctx context.Context) ([]models.Admin, error) {
	return s.adminRepo.List(ctx)
}

// ListPayments returns a page of payments for the back office
func (s *AdminService) ListPayments(ctx context.Context, page, limit int) ([]models.Payment, int64, error) {
	offset := (page - 1) * limit
	return s.paymentRepo.List(ctx, offset, limit)
}

// ParseToken validates a signed token and returns the admin ID it carries
func (s *AdminService) ParseToken(tokenString string) (uuid.UUID, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return uuid.Nil, errors.Wrap(err, "invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return uuid.Nil, errors.New("invalid token claims")
	}

	adminID, ok := claims["adminId"].(string)
	if !ok {
		return uuid.Nil, errors.New("token missing adminId claim")
	}

	id, err := uuid.Parse(adminID)
	if err != nil {
		return uuid.Nil, errors.Wrap(err, "malformed adminId claim")
	}

	return id, nil
}

func (s *AdminService) issueToken(admin *models.Admin) (string, error) {
	claims := jwt.MapClaims{
		"adminId": admin.ID.String(),
		"role":    admin.Role,
		"exp":     time.Now().Add(s.tokenExpiry).Unix(),
		"iat":     time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign token")
	}

	return signed, nil
}
