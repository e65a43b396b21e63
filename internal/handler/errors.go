package handler

import (
	"errors"
	"net/http"

	"room-relay-backend/internal/join"
	"room-relay-backend/internal/service"
	"room-relay-backend/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// respondError maps service errors to HTTP responses. Anything unrecognised
// is logged and reported as a 500 without its details.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrRoomNotFound):
		utils.ErrorResponse(c, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrInvalidExpiry):
		utils.ErrorResponse(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrGuestExists):
		utils.ErrorResponse(c, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrGuestNotFound):
		utils.ErrorResponse(c, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrWrongPIN), errors.Is(err, service.ErrInvalidCredentials):
		utils.ErrorResponse(c, http.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrJoinDenied):
		utils.ErrorCodeResponse(c, http.StatusForbidden, denialCode(err), "join denied")
	default:
		logrus.WithError(err).WithField("path", c.FullPath()).Error("Request failed")
		utils.ErrorResponse(c, http.StatusInternalServerError, "Internal server error")
	}
}

func denialCode(err error) string {
	for _, denial := range []error{join.ErrNotJoinable, join.ErrInvalidOrExpired, join.ErrExpired} {
		if errors.Is(err, denial) {
			return denial.Error()
		}
	}
	return ""
}
