package http

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"travels/entity"
)

func (s Server) GetOpsBookings(c echo.Context) error {
	status := entity.LegacyStatus(c.QueryParam("status"))

	switch status {
	case "", entity.LegacyStatusPending, entity.LegacyStatusConfirmed, entity.LegacyStatusCancelled:
	default:
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("unknown status %q", status))
	}

	bookings, err := s.opsBookingReadModel.FindAll(c.Request().Context(), status)
	if err != nil {
		return fmt.Errorf("failed to get ops bookings: %w", err)
	}

	return c.JSON(http.StatusOK, bookings)
}

func (s Server) GetOpsBooking(c echo.Context) error {
	booking, err := s.opsBookingReadModel.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return fmt.Errorf("failed to get ops booking: %w", err)
	}

	return c.JSON(http.StatusOK, booking)
}

// PostReconcileBooking re-derives the booking's payment status from its payment.
func (s Server) PostReconcileBooking(c echo.Context) error {
	booking, err := s.payments.Reconcile(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, newBookingResponse(booking, nil))
}
