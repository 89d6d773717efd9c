package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"example.com/flosla/services/registration/internal/api/middleware"
	"example.com/flosla/services/registration/internal/repositories"
	"example.com/flosla/services/registration/internal/services"
)

const maxPageSize = 100

// AdminHandler handles back-office HTTP requests
type AdminHandler struct {
	adminService        *services.AdminService
	registrationService *services.RegistrationService
	eventService        *services.EventService
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(adminService *services.AdminService, registrationService *services.RegistrationService, eventService *services.EventService) *AdminHandler {
	return &AdminHandler{
		adminService:        adminService,
		registrationService: registrationService,
		eventService:        eventService,
	}
}

// CredentialsRequest is the request body for admin register and login
type CredentialsRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

// HandleRegister creates a new admin account
func (h *AdminHandler) HandleRegister(c *gin.Context) {
	var req CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	admin, token, err := h.adminService.Register(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    gin.H{"token": token, "admin": admin},
	})
}

// HandleLogin validates credentials and issues a token
func (h *AdminHandler) HandleLogin(c *gin.Context) {
	var req CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	admin, token, err := h.adminService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    gin.H{"token": token, "admin": admin},
	})
}

// HandleGetProfile returns the authenticated admin's account
func (h *AdminHandler) HandleGetProfile(c *gin.Context) {
	adminID := c.MustGet(middleware.AdminIDContextKey).(uuid.UUID)

	admin, err := h.adminService.GetByID(c.Request.Context(), adminID)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": admin})
}

// HandleListAdmins returns all admin accounts
func (h *AdminHandler) HandleListAdmins(c *gin.Context) {
	admins, err := h.adminService.List(c.Request.Context())
	if err != nil {
		c.JSON(statusForError(err), gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": admins})
}

// HandleListRegistrations returns a page of registrations
func (h *AdminHandler) HandleListRegistrations(c *gin.Context) {
	filter := repositories.RegistrationFilter{Status: c.Query("status")}

	if eventID := c.Query("eventId"); eventID != "" {
		id, err := uuid.Parse(eventID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid event ID"})
			return
		}
		filter.EventID = &id
	}

	page, limit := pagination(c)
	registrations, total, err := h.registrationService.List(c.Request.Context(), filter, page, limit)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"registrations": registrations,
			"pagination":    paginationMeta(page, limit, total),
		},
	})
}

// HandleGetRegistration returns one registration with its payment, if any
func (h *AdminHandler) HandleGetRegistration(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid registration ID"})
		return
	}

	registration, payment, err := h.registrationService.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"success": false, "error": err.Error()})
		return
	}

	var receiptLink *string
	if payment != nil {
		link := "/api/receipts/" + payment.ReceiptNumber
		receiptLink = &link
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"registration": registration,
			"payment":      payment,
			"receiptLink":  receiptLink,
		},
	})
}

// HandleListPayments returns a page of payments
func (h *AdminHandler) HandleListPayments(c *gin.Context) {
	page, limit := pagination(c)
	payments, total, err := h.adminService.ListPayments(c.Request.Context(), page, limit)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"payments":   payments,
			"pagination": paginationMeta(page, limit, total),
		},
	})
}

// HandleExportRecords streams paid registrations as CSV
func (h *AdminHandler) HandleExportRecords(c *gin.Context) {
	var eventID *uuid.UUID
	if raw := c.Query("eventId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid event ID"})
			return
		}
		eventID = &id
	}

	registrations, err := h.registrationService.ListPaid(c.Request.Context(), eventID)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"success": false, "error": err.Error()})
		return
	}

	rows := make([]string, 0, len(registrations)+1)
	rows = append(rows, "Name,Guardian,Phone,Reference,Registered At")
	for _, r := range registrations {
		rows = append(rows, fmt.Sprintf("%q,%q,%q,%q,%q",
			r.FullName(), r.GuardianFullName, r.GuardianPhoneNumber,
			r.PaystackReference, r.CreatedAt.UTC().Format("2006-01-02T15:04:05Z")))
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment; filename=registrations.csv")
	c.String(http.StatusOK, strings.Join(rows, "\n"))
}

// CreateEventRequest is the request body for event creation
type CreateEventRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description" binding:"required"`
	Amount      int64  `json:"amount" binding:"required,min=1"`
	Currency    string `json:"currency"`
}

// HandleCreateEvent creates the single event
func (h *AdminHandler) HandleCreateEvent(c *gin.Context) {
	var req CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	event, err := h.eventService.Create(c.Request.Context(), req.Name, req.Description, req.Amount, req.Currency)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "data": event})
}

// UpdateAmountRequest is the request body for amount updates
type UpdateAmountRequest struct {
	Amount int64 `json:"amount" binding:"required,min=1"`
}

// HandleUpdateEventAmount changes the configured registration fee
func (h *AdminHandler) HandleUpdateEventAmount(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid event ID"})
		return
	}

	var req UpdateAmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	event, err := h.eventService.UpdateAmount(c.Request.Context(), id, req.Amount)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": event})
}

// RegisterRoutes registers the handler's routes. Everything past login sits
// behind the admin token middleware.
func (h *AdminHandler) RegisterRoutes(api *gin.RouterGroup) {
	admin := api.Group("/admin")
	admin.POST("/register", h.HandleRegister)
	admin.POST("/login", h.HandleLogin)

	authed := admin.Group("")
	authed.Use(middleware.AdminAuth(h.adminService))
	authed.GET("/profile", h.HandleGetProfile)
	authed.GET("/admins", h.HandleListAdmins)
	authed.GET("/registrations", h.HandleListRegistrations)
	authed.GET("/registrations/:id", h.HandleGetRegistration)
	authed.GET("/payments", h.HandleListPayments)
	authed.GET("/export", h.HandleExportRecords)
	authed.POST("/events", h.HandleCreateEvent)
	authed.PATCH("/events/:id/amount", h.HandleUpdateEventAmount)
}

func pagination(c *gin.Context) (page, limit int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit < 1 {
		limit = 20
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return page, limit
}

func paginationMeta(page, limit int, total int64) gin.H {
	pages := total / int64(limit)
	if total%int64(limit) != 0 {
		pages++
	}
	return gin.H{
		"page":  page,
		"limit": limit,
		"total": total,
		"pages": pages,
	}
}
