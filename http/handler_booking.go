package http

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"travels/entity"
	"travels/service"
)

const dateLayout = "2006-01-02"

type TravelerRequest struct {
	Name           string `json:"name"`
	Age            int    `json:"age"`
	Type           string `json:"type"`
	PassportNumber string `json:"passport_number"`
}

type BookingRequest struct {
	UserID        string            `json:"user_id"`
	PackageID     string            `json:"package_id"`
	PackageTitle  string            `json:"package_title"`
	Destination   string            `json:"destination"`
	DepartureDate string            `json:"departure_date"`
	ReturnDate    string            `json:"return_date"`
	UnitPrice     string            `json:"unit_price"`
	Currency      string            `json:"currency"`
	Travelers     []TravelerRequest `json:"travelers"`
}

type TransitionRequest struct {
	Status string `json:"status"`
	Note   string `json:"note"`
}

type CancelRequest struct {
	Note string `json:"note"`
	// Refund settles a completed payment before cancelling.
	Refund bool `json:"refund"`
}

func (s Server) PostBooking(c echo.Context) error {
	var request BookingRequest
	if err := c.Bind(&request); err != nil {
		return err
	}

	createRequest, err := request.toCreateBookingRequest()
	if err != nil {
		return err
	}
	createRequest.IdempotencyKey = c.Request().Header.Get("Idempotency-Key")

	result, err := s.bookings.CreateBooking(c.Request().Context(), createRequest)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, newBookingResponse(result.Booking, &result.Payment))
}

func (r BookingRequest) toCreateBookingRequest() (service.CreateBookingRequest, error) {
	departure, err := parseDate("departure_date", r.DepartureDate)
	if err != nil {
		return service.CreateBookingRequest{}, err
	}
	returnDate, err := parseDate("return_date", r.ReturnDate)
	if err != nil {
		return service.CreateBookingRequest{}, err
	}

	unitPrice, err := entity.ParseMinorUnits(r.UnitPrice)
	var validationErr *entity.ValidationError
	if errors.As(err, &validationErr) {
		return service.CreateBookingRequest{}, entity.NewValidationError("unit_price", validationErr.Reason)
	}
	if err != nil {
		return service.CreateBookingRequest{}, err
	}

	travelers := make([]entity.Traveler, 0, len(r.Travelers))
	for _, t := range r.Travelers {
		travelers = append(travelers, entity.Traveler{
			Name:           t.Name,
			Age:            t.Age,
			Type:           entity.TravelerType(t.Type),
			PassportNumber: t.PassportNumber,
		})
	}

	return service.CreateBookingRequest{
		UserID:        r.UserID,
		PackageID:     r.PackageID,
		PackageTitle:  r.PackageTitle,
		Destination:   r.Destination,
		DepartureDate: departure,
		ReturnDate:    returnDate,
		UnitPrice:     unitPrice,
		Currency:      r.Currency,
		Travelers:     travelers,
	}, nil
}

func parseDate(field, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, entity.NewValidationError(field, "is required")
	}
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, entity.NewValidationError(field, fmt.Sprintf("expected %s", dateLayout))
	}
	return t, nil
}

func (s Server) GetBooking(c echo.Context) error {
	view, err := s.bookings.GetBooking(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, newBookingResponse(view.Booking, view.Payment))
}

func (s Server) GetUserBookings(c echo.Context) error {
	userID := c.QueryParam("user_id")
	if userID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id query parameter is required")
	}

	bookings, err := s.bookings.ListUserBookings(c.Request().Context(), userID)
	if err != nil {
		return err
	}

	response := make([]BookingResponse, 0, len(bookings))
	for _, b := range bookings {
		response = append(response, newBookingResponse(b, nil))
	}

	return c.JSON(http.StatusOK, response)
}

func (s Server) PostBookingTransition(c echo.Context) error {
	var request TransitionRequest
	if err := c.Bind(&request); err != nil {
		return err
	}

	target, err := entity.ParseBookingStatus(request.Status)
	if err != nil {
		return err
	}

	booking, err := s.bookings.TransitionBooking(c.Request().Context(), c.Param("id"), target, request.Note)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, newBookingResponse(booking, nil))
}

func (s Server) PostBookingCancel(c echo.Context) error {
	var request CancelRequest
	if err := c.Bind(&request); err != nil {
		return err
	}

	cancel := s.bookings.CancelBooking
	if request.Refund {
		cancel = s.bookings.CancelAndRefund
	}

	booking, err := cancel(c.Request().Context(), c.Param("id"), request.Note)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, newBookingResponse(booking, nil))
}

func (s Server) PostBookingPayment(c echo.Context) error {
	payment, err := s.bookings.RetryPayment(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, newPaymentResponse(payment))
}
