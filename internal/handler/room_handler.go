package handler

import (
	"net/http"

	"room-relay-backend/internal/service"
	"room-relay-backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

type RoomHandler struct {
	roomService *service.RoomService
}

func NewRoomHandler(roomService *service.RoomService) *RoomHandler {
	return &RoomHandler{
		roomService: roomService,
	}
}

type SetExpiryRequest struct {
	// pointer so a missing field is told apart from an explicit zero
	Hours *float64 `json:"hours" binding:"required"`
}

type ChangePINRequest struct {
	Name string `json:"name" binding:"required,max=50"`
	PIN  string `json:"pin" binding:"required,min=4,max=64"`
}

// CreateRoom creates a room with a fresh join credential
// POST /rooms
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	resp, err := h.roomService.CreateRoom(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	utils.CreatedResponse(c, resp)
}

// GetRoom returns the room's join credential, guest and presence
// GET /rooms/:room_id
func (h *RoomHandler) GetRoom(c *gin.Context) {
	view, err := h.roomService.GetRoom(c.Request.Context(), c.Param("room_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, view)
}

// DeleteRoom deletes a room and disconnects everyone in it
// DELETE /rooms/:room_id
func (h *RoomHandler) DeleteRoom(c *gin.Context) {
	if err := h.roomService.DeleteRoom(c.Request.Context(), c.Param("room_id")); err != nil {
		respondError(c, err)
		return
	}

	utils.MessageResponse(c, "Room deleted successfully")
}

// ExpireNow evicts the guest and rotates the join credential
// POST /rooms/:room_id/expire
func (h *RoomHandler) ExpireNow(c *gin.Context) {
	resp, err := h.roomService.ExpireNow(c.Request.Context(), c.Param("room_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, resp)
}

// SetExpiry moves the join expiry to the given number of hours from now
// PUT /rooms/:room_id/expiry
func (h *RoomHandler) SetExpiry(c *gin.Context) {
	var req SetExpiryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	resp, err := h.roomService.SetExpiry(c.Request.Context(), c.Param("room_id"), *req.Hours)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, resp)
}

// RevokeJoin revokes the join credential
// POST /rooms/:room_id/revoke
func (h *RoomHandler) RevokeJoin(c *gin.Context) {
	if err := h.roomService.RevokeJoin(c.Request.Context(), c.Param("room_id")); err != nil {
		respondError(c, err)
		return
	}

	utils.MessageResponse(c, "Join revoked")
}

// ChangeGuestPIN overwrites the guest's name and PIN
// PUT /rooms/:room_id/guest/pin
func (h *RoomHandler) ChangeGuestPIN(c *gin.Context) {
	var req ChangePINRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if err := h.roomService.ChangeGuestPIN(c.Request.Context(), c.Param("room_id"), req.Name, req.PIN); err != nil {
		respondError(c, err)
		return
	}

	utils.MessageResponse(c, "Guest PIN updated")
}
