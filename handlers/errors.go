package handlers

import (
	"net/http"

	"lessonhub/services/booking"
	"lessonhub/utils"

	"github.com/gin-gonic/gin"
)

// respondError maps a domain error onto a stable HTTP status and error code.
// The booking conflict family gets distinct codes so clients can tell "slot
// taken" from "outside availability" from "outside service area".
func respondError(c *gin.Context, err error) {
	code := booking.CodeOf(err)
	switch code {
	case booking.CodeValidation:
		utils.JSONError(c, http.StatusBadRequest, code, "invalid request", err.Error())
	case booking.CodeBusinessRule:
		utils.JSONError(c, http.StatusUnprocessableEntity, code, "business rule violated", err.Error())
	case booking.CodeNotFound:
		utils.JSONError(c, http.StatusNotFound, code, "not found", err.Error())
	case booking.CodeSlotConflict:
		utils.JSONError(c, http.StatusConflict, code, "slot conflict", err.Error())
	case booking.CodeOutsideAvailability:
		utils.JSONError(c, http.StatusUnprocessableEntity, code, "outside availability", err.Error())
	case booking.CodeOutsideServiceArea:
		utils.JSONError(c, http.StatusUnprocessableEntity, code, "outside service area", err.Error())
	default:
		utils.JSONError(c, http.StatusInternalServerError, booking.CodeRepository, "internal error", err.Error())
	}
}
