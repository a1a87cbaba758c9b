package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"travels/entity"
	"travels/gateway"
)

var errorStatuses = []struct {
	err    error
	status int
}{
	{entity.ErrNotFound, http.StatusNotFound},
	{entity.ErrValidation, http.StatusBadRequest},
	{gateway.ErrInvalidSignature, http.StatusUnauthorized},
	{entity.ErrInvalidTransition, http.StatusConflict},
	{entity.ErrPaymentNotSettled, http.StatusConflict},
	{entity.ErrBookingNotPayable, http.StatusConflict},
	{entity.ErrRefundRequired, http.StatusConflict},
	{entity.ErrDuplicatePayment, http.StatusConflict},
	{entity.ErrPaymentAlreadySettled, http.StatusConflict},
	{entity.ErrPaymentNotRefundable, http.StatusConflict},
	{entity.ErrAlreadyExists, http.StatusConflict},
	{entity.ErrVersionConflict, http.StatusServiceUnavailable},
	{entity.ErrLockNotAcquired, http.StatusServiceUnavailable},
	{entity.ErrLockLost, http.StatusServiceUnavailable},
}

// errorHandler turns domain errors into HTTP errors before echo renders them.
func errorHandler(next echo.HTTPErrorHandler) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		var httpErr *echo.HTTPError
		if !errors.As(err, &httpErr) {
			for _, mapping := range errorStatuses {
				if errors.Is(err, mapping.err) {
					err = echo.NewHTTPError(mapping.status, err.Error()).SetInternal(err)
					break
				}
			}
		}

		next(err, c)
	}
}
