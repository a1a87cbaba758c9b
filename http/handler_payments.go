package http

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"travels/entity"
	"travels/reconciliation"
)

const signatureHeader = "X-Gateway-Signature"

type GatewayResultRequest struct {
	Outcome          string `json:"outcome"`
	GatewayPaymentID string `json:"gateway_payment_id"`
	GatewaySignature string `json:"gateway_signature"`
}

type RefundRequest struct {
	Reason string `json:"reason"`
}

// PostGatewayResult receives the gateway callback. The signature covers the raw body.
func (s Server) PostGatewayResult(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "could not read request body")
	}

	if err := s.signatures.Verify(body, c.Request().Header.Get(signatureHeader)); err != nil {
		return err
	}

	var request GatewayResultRequest
	if err := json.Unmarshal(body, &request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON body")
	}

	outcome, err := entity.ParseGatewayOutcome(request.Outcome)
	if err != nil {
		return err
	}

	payment, err := s.payments.ApplyGatewayResult(c.Request().Context(), reconciliation.GatewayResult{
		PaymentID:        c.Param("id"),
		Outcome:          outcome,
		GatewayPaymentID: request.GatewayPaymentID,
		GatewaySignature: request.GatewaySignature,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, newPaymentResponse(payment))
}

func (s Server) PostPaymentRefund(c echo.Context) error {
	var request RefundRequest
	if err := c.Bind(&request); err != nil {
		return err
	}

	payment, err := s.payments.InitiateRefund(c.Request().Context(), c.Param("id"), request.Reason)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, newPaymentResponse(payment))
}
