package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"example.com/flosla/services/registration/internal/cache"
	"example.com/flosla/services/registration/internal/models"
	"example.com/flosla/services/registration/internal/repositories"
)

// activeEventTTL bounds staleness of the cached event; admin amount updates
// also invalidate the key directly.
const activeEventTTL = 5 * time.Minute

// EventService manages the single configurable event
type EventService struct {
	eventRepo *repositories.EventRepository
	cache     *cache.RedisCache
}

// NewEventService creates a new event service
func NewEventService(db *gorm.DB, readOnlyDB *gorm.DB, redisCache *cache.RedisCache) *EventService {
	return &EventService{
		eventRepo: repositories.NewEventRepository(db, readOnlyDB),
		cache:     redisCache,
	}
}

// GetActive returns the single active event
func (s *EventService) GetActive(ctx context.Context) (*models.Event, error) {
	var cached models.Event
	if err := s.cache.Get(ctx, cache.ActiveEventKey(), &cached); err == nil {
		return &cached, nil
	}

	event, err := s.eventRepo.GetActive(ctx)
	if err != nil {
		if errors.Is(errors.Cause(err), gorm.ErrRecordNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}

	if err := s.cache.Set(ctx, cache.ActiveEventKey(), event, activeEventTTL); err != nil {
		log.Warn().Err(err).Msg("Failed to cache active event")
	}

	return event, nil
}

// GetByID returns an event by ID
func (s *EventService) GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	event, err := s.eventRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(errors.Cause(err), gorm.ErrRecordNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	return event, nil
}

// Create creates the event. At most one event exists in the system; the
// rule is enforced here at creation time.
func (s *EventService) Create(ctx context.Context, name, description string, amount int64, currency string) (*models.Event, error) {
	count, err := s.eventRepo.Count(ctx)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrEventExists
	}

	if currency == "" {
		currency = "NGN"
	}

	event := &models.Event{
		ID:          uuid.New(),
		Name:        name,
		Description: description,
		Amount:      amount,
		Currency:    currency,
		IsActive:    true,
	}

	if err := s.eventRepo.Create(ctx, event); err != nil {
		return nil, errors.Wrap(err, "failed to create event")
	}

	log.Info().Str("event_id", event.ID.String()).Int64("amount", amount).Msg("Event created")
	return event, nil
}

// UpdateAmount changes the configured registration fee. Registrations
// initialized before the change still settle against the amount the
// provider confirms, so the reconciler rejects stale payments.
func (s *EventService) UpdateAmount(ctx context.Context, id uuid.UUID, amount int64) (*models.Event, error) {
	if err := s.eventRepo.UpdateAmount(ctx, id, amount); err != nil {
		return nil, err
	}

	if err := s.cache.Delete(ctx, cache.ActiveEventKey()); err != nil {
		log.Warn().Err(err).Msg("Failed to invalidate cached event")
	}

	return s.GetByID(ctx, id)
}
