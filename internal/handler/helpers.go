package handler

import (
	"errors"
	"net/http"
	"reflect"

	"github.com/Skarath13/cards/internal/apierror"
	"github.com/Skarath13/cards/internal/grid"
	"github.com/Skarath13/cards/internal/infra"
	"github.com/Skarath13/cards/internal/middleware"
	"github.com/Skarath13/cards/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

func init() {
	// Register decimal.Decimal as a numeric type so that validator tags like
	// min=0, gt=0, required work without panicking ("Bad field type decimal.Decimal").
	validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if v, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := v.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
}

// bindAndValidate binds JSON body and runs go-playground/validator tags.
// Returns false and writes the error response if validation fails;
// the caller should return immediately without writing another response.
func bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("Invalid JSON: "+err.Error()))
		return false
	}
	return validateStruct(c, req)
}

func validateStruct(c *gin.Context, req interface{}) bool {
	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
			return false
		}
		fields := make(map[string]string)
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(fields))
		return false
	}
	return true
}

// currentUser reads the signed-in user's id from the device token.
func currentUser(c *gin.Context) (uuid.UUID, bool) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, apierror.New("Authentication required"))
		return uuid.Nil, false
	}
	id, err := uuid.Parse(claims.UserID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, apierror.New("Invalid or expired token"))
		return uuid.Nil, false
	}
	return id, true
}

func paymentType(c *gin.Context) (grid.PaymentType, bool) {
	pt, err := grid.ParsePaymentType(c.Param("payment_type"))
	if err != nil {
		c.JSON(http.StatusNotFound, apierror.New("Unknown payment type"))
		return "", false
	}
	return pt, true
}

// ledgerError maps grid and ledger errors to HTTP responses.
func ledgerError(c *gin.Context, err error) {
	status, msg := http.StatusInternalServerError, "Internal server error"
	switch {
	case errors.Is(err, grid.ErrUnknownField),
		errors.Is(err, grid.ErrInvalidValue),
		errors.Is(err, service.ErrInvalidService):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, grid.ErrEntryOutOfRange),
		errors.Is(err, grid.ErrNoDeleteRequest):
		status, msg = http.StatusNotFound, err.Error()
	case errors.Is(err, grid.ErrLastRow),
		errors.Is(err, grid.ErrRowNotEmpty):
		status, msg = http.StatusConflict, err.Error()
	case errors.Is(err, grid.ErrDeleteExpired):
		status, msg = http.StatusGone, err.Error()
	case errors.Is(err, service.ErrLedgerUnavailable),
		errors.Is(err, grid.ErrNotLoaded),
		errors.Is(err, grid.ErrClosed),
		errors.Is(err, infra.ErrCircuitOpen):
		status, msg = http.StatusServiceUnavailable, "Ledger unavailable, try again"
	default:
		// backend refused a structural change; local state is unchanged
		status, msg = http.StatusServiceUnavailable, "Could not save the change, try again"
	}
	if status >= http.StatusInternalServerError {
		log.Error().
			Err(err).
			Str("request_id", c.GetString(middleware.RequestIDKey)).
			Str("path", c.FullPath()).
			Msg("ledger request failed")
	}
	c.JSON(status, apierror.New(msg))
}
