package handler

import (
	"errors"
	"net/http"
	"reflect"

	"storefront/internal/apierror"
	"storefront/internal/middleware"
	"storefront/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

func init() {
	// Let validator tags like min=0 work on decimal.Decimal fields.
	validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if v, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := v.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
}

// bindAndValidate binds the JSON body and runs the validator tags.
// On failure it writes the response and returns false.
func bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.WithCode(apierror.CodeValidation, "JSON invalido: "+err.Error()))
		return false
	}
	return runValidator(c, req)
}

// bindQuery is bindAndValidate for query strings.
func bindQuery(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.WithCode(apierror.CodeValidation, "Parametros invalidos: "+err.Error()))
		return false
	}
	return runValidator(c, req)
}

func runValidator(c *gin.Context, req interface{}) bool {
	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			c.JSON(http.StatusBadRequest, apierror.WithCode(apierror.CodeValidation, err.Error()))
			return false
		}
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(fields))
		return false
	}
	return true
}

// uuidParam parses a path parameter, writing a 400 when it is not a uuid.
func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.WithCode(apierror.CodeValidation, "ID invalido"))
		return uuid.Nil, false
	}
	return id, true
}

// respondError maps service errors to status codes and envelopes. Anything
// unrecognised is logged and reported as a generic 500.
func respondError(c *gin.Context, err error) {
	var (
		insufficient *service.InsufficientStockError
		invalid      *service.ValidationError
		transition   *service.InvalidTransitionError
		violation    *service.InvariantViolationError
	)
	switch {
	case errors.As(err, &insufficient):
		c.JSON(http.StatusConflict, apierror.InsufficientStock(
			"No hay stock suficiente para el producto solicitado", insufficient.Available))
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, apierror.WithCode(apierror.CodeNotFound, err.Error()))
	case errors.Is(err, service.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, apierror.WithCode(apierror.CodeUnauthorized, "Autenticacion requerida"))
	case errors.As(err, &invalid):
		c.JSON(http.StatusUnprocessableEntity, &apierror.ValidationError{
			Code:   apierror.CodeValidation,
			Detail: invalid.Error(),
			Fields: map[string]string{invalid.Field: invalid.Message},
		})
	case errors.As(err, &transition):
		c.JSON(http.StatusConflict, apierror.WithCode(apierror.CodeInvalidTransition, transition.Error()))
	case errors.As(err, &violation):
		// Already logged by the ledger with full detail.
		c.JSON(http.StatusInternalServerError, apierror.WithCode(apierror.CodeInvariantViolation, "Error interno del servidor"))
	default:
		log.Error().
			Str("request_id", c.GetString(middleware.RequestIDKey)).
			Str("path", c.FullPath()).
			Err(err).
			Msg("request failed")
		c.JSON(http.StatusInternalServerError, apierror.WithCode(apierror.CodeInternal, "Error interno del servidor"))
	}
}
