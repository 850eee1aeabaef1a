package handler

import (
	"errors"
	"net/http"
	"reflect"

	"github.com/ally-360/pos-terminal/internal/apierror"
	"github.com/ally-360/pos-terminal/internal/infra"
	"github.com/ally-360/pos-terminal/internal/middleware"
	"github.com/ally-360/pos-terminal/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

func init() {
	// Register decimal.Decimal as a numeric type so that validator tags like
	// min=0, gt=0 work without panicking ("Bad field type decimal.Decimal").
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
		c.JSON(http.StatusBadRequest, apierror.WithCode(apierror.CodeValidation, "invalid JSON: "+err.Error()))
		return false
	}
	if err := validate.Struct(req); err != nil {
		fields := make(map[string]string)
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				fields[fe.Field()] = fe.Tag()
			}
		}
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(fields))
		return false
	}
	return true
}

// writeError maps a service error to the API envelope. Anything unknown is a
// 500 whose detail is logged, not returned.
func writeError(c *gin.Context, err error) {
	var (
		verr  *service.ValidationError
		cerr  *service.ConflictError
		serr  *service.SubmissionError
		rerr  *service.ReconciliationError
		fault *apierror.APIError
	)

	switch {
	case errors.As(err, &verr):
		fields := map[string]string{}
		if verr.Field != "" {
			fields[verr.Field] = verr.Reason
		}
		c.JSON(http.StatusUnprocessableEntity, &apierror.ValidationError{
			Detail: verr.Error(), Code: apierror.CodeValidation, Fields: fields,
		})
		return
	case errors.As(err, &rerr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"detail":     rerr.Error(),
			"code":       apierror.CodeReconciliation,
			"expected":   rerr.Expected,
			"counted":    rerr.Counted,
			"difference": rerr.Difference,
		})
		return
	case errors.As(err, &cerr):
		fault = apierror.WithCode(apierror.CodeRegisterAlreadyOpen, cerr.Error())
		c.JSON(http.StatusConflict, fault)
		return
	case errors.As(err, &serr):
		fault = apierror.WithCode(apierror.CodeBackendUnavailable, serr.Op+" failed, retry")
		fault.Retryable = true
		log.Warn().Err(err).Str("request_id", c.GetString(middleware.RequestIDKey)).Msg("backend submission failed")
		c.JSON(http.StatusBadGateway, fault)
		return
	case errors.Is(err, infra.ErrCircuitOpen):
		fault = apierror.WithCode(apierror.CodeBackendUnavailable, "backend unavailable, retry shortly")
		fault.Retryable = true
		c.JSON(http.StatusServiceUnavailable, fault)
		return
	}

	status, code := statusFor(err)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		c.JSON(status, apierror.WithCode(apierror.CodeInternal, "internal server error"))
		return
	}
	c.JSON(status, apierror.WithCode(code, err.Error()))
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrWindowNotFound),
		errors.Is(err, service.ErrLineNotFound),
		errors.Is(err, service.ErrPaymentNotFound),
		errors.Is(err, service.ErrSaleNotFound):
		return http.StatusNotFound, apierror.CodeNotFound
	case errors.Is(err, service.ErrInvalidTransition):
		return http.StatusConflict, apierror.CodeInvalidTransition
	case errors.Is(err, service.ErrSubmissionInFlight):
		return http.StatusConflict, apierror.CodeSubmissionInFlight
	case errors.Is(err, service.ErrRegisterNotOpen):
		return http.StatusConflict, apierror.CodeRegisterNotOpen
	case errors.Is(err, service.ErrCloseInProgress):
		return http.StatusConflict, apierror.CodeCloseInProgress
	case errors.Is(err, service.ErrLateSubmission):
		return http.StatusConflict, apierror.CodeLateSubmission
	}
	return http.StatusInternalServerError, apierror.CodeInternal
}
