package handler

import (
	"net/http"

	"room-relay-backend/internal/service"
	"room-relay-backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

type GuestHandler struct {
	guestService *service.GuestService
}

func NewGuestHandler(guestService *service.GuestService) *GuestHandler {
	return &GuestHandler{
		guestService: guestService,
	}
}

type GuestRequest struct {
	RoomID  string `json:"room_id" binding:"required"`
	JoinKey string `json:"join_key" binding:"required"`
	Name    string `json:"name" binding:"required,max=50"`
	PIN     string `json:"pin" binding:"required,min=4,max=64"`
}

func (r GuestRequest) credentials() service.GuestCredentials {
	return service.GuestCredentials{
		RoomID:  r.RoomID,
		JoinKey: r.JoinKey,
		Name:    r.Name,
		PIN:     r.PIN,
	}
}

// Setup registers the guest's name and PIN, once per room
// POST /guest/setup
func (h *GuestHandler) Setup(c *gin.Context) {
	var req GuestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if err := h.guestService.Setup(c.Request.Context(), req.credentials()); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Guest set up",
	})
}

// Verify checks the guest's name and PIN
// POST /guest/verify
func (h *GuestHandler) Verify(c *gin.Context) {
	var req GuestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if err := h.guestService.Verify(c.Request.Context(), req.credentials()); err != nil {
		respondError(c, err)
		return
	}

	utils.MessageResponse(c, "Guest verified")
}
