package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"example.com/flosla/services/registration/internal/services"
)

// EventHandler handles public event and registration requests
type EventHandler struct {
	eventService        *services.EventService
	registrationService *services.RegistrationService
}

// NewEventHandler creates a new event handler
func NewEventHandler(eventService *services.EventService, registrationService *services.RegistrationService) *EventHandler {
	return &EventHandler{
		eventService:        eventService,
		registrationService: registrationService,
	}
}

// HandleGetActiveEvent returns the single active event
func (h *EventHandler) HandleGetActiveEvent(c *gin.Context) {
	event, err := h.eventService.GetActive(c.Request.Context())
	if err != nil {
		c.JSON(statusForError(err), gin.H{"success": false, "error": "Event not found. Please contact admin."})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": event})
}

// HandleGetEventByID returns an event by ID
func (h *EventHandler) HandleGetEventByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("eventId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid event ID"})
		return
	}

	event, err := h.eventService.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": event})
}

// RegisterRequest is the public registration form payload
type RegisterRequest struct {
	FirstName           string `json:"firstName" binding:"required"`
	Surname             string `json:"surname" binding:"required"`
	Sex                 string `json:"sex" binding:"required,oneof=male female"`
	DateOfBirth         string `json:"dateOfBirth" binding:"required"`
	Age                 int    `json:"age" binding:"required,min=1,max=150"`
	StateOfResidence    string `json:"stateOfResidence" binding:"required"`
	StateOfOrigin       string `json:"stateOfOrigin" binding:"required"`
	PositionOfPlay      string `json:"positionOfPlay" binding:"required"`
	GuardianFullName    string `json:"guardianFullName" binding:"required"`
	GuardianPhoneNumber string `json:"guardianPhoneNumber" binding:"required"`
	Email               string `json:"email" binding:"omitempty,email"`
}

// HandleRegister creates a PENDING registration for the active event
func (h *EventHandler) HandleRegister(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	input := &services.RegistrationInput{
		FirstName:           req.FirstName,
		Surname:             req.Surname,
		Sex:                 req.Sex,
		DateOfBirth:         req.DateOfBirth,
		Age:                 req.Age,
		StateOfResidence:    req.StateOfResidence,
		StateOfOrigin:       req.StateOfOrigin,
		PositionOfPlay:      req.PositionOfPlay,
		GuardianFullName:    req.GuardianFullName,
		GuardianPhoneNumber: req.GuardianPhoneNumber,
		Email:               req.Email,
	}

	registration, event, err := h.registrationService.Register(c.Request.Context(), input)
	if err != nil {
		log.Warn().Err(err).Str("guardian_phone", req.GuardianPhoneNumber).Msg("Registration rejected")
		c.JSON(statusForError(err), gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data": gin.H{
			"registrationId": registration.ID,
			"reference":      registration.PaystackReference,
			"eventName":      event.Name,
			"amount":         event.Amount,
		},
	})
}

// RegisterRoutes registers the handler's routes
func (h *EventHandler) RegisterRoutes(api *gin.RouterGroup) {
	events := api.Group("/events")
	events.GET("", h.HandleGetActiveEvent)
	events.GET("/:eventId", h.HandleGetEventByID)
	events.POST("/register", h.HandleRegister)
}
