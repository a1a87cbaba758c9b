package http

import (
	"context"
	"errors"
	"net/http"

	echoHTTP "github.com/ThreeDotsLabs/go-event-driven/common/http"
	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"travels/entity"
	"travels/gateway"
	"travels/reconciliation"
	"travels/service"
)

type BookingService interface {
	CreateBooking(ctx context.Context, req service.CreateBookingRequest) (service.CreateBookingResult, error)
	GetBooking(ctx context.Context, bookingID string) (service.BookingView, error)
	ListUserBookings(ctx context.Context, userID string) ([]entity.Booking, error)
	TransitionBooking(ctx context.Context, bookingID string, target entity.BookingStatus, note string) (entity.Booking, error)
	CancelBooking(ctx context.Context, bookingID string, note string) (entity.Booking, error)
	CancelAndRefund(ctx context.Context, bookingID string, note string) (entity.Booking, error)
	RetryPayment(ctx context.Context, bookingID string) (entity.Payment, error)
}

type PaymentService interface {
	ApplyGatewayResult(ctx context.Context, result reconciliation.GatewayResult) (entity.Payment, error)
	InitiateRefund(ctx context.Context, paymentID string, reason string) (entity.Payment, error)
	Reconcile(ctx context.Context, bookingID string) (entity.Booking, error)
}

type OpsBookingReadModel interface {
	FindAll(ctx context.Context, displayStatus entity.LegacyStatus) ([]entity.OpsBooking, error)
	Get(ctx context.Context, bookingID string) (entity.OpsBooking, error)
}

type Server struct {
	addr                string
	e                   *echo.Echo
	bookings            BookingService
	payments            PaymentService
	opsBookingReadModel OpsBookingReadModel
	signatures          gateway.SignatureVerifier
}

func NewServer(
	addr string,
	bookings BookingService,
	payments PaymentService,
	opsBookingReadModel OpsBookingReadModel,
	signatures gateway.SignatureVerifier,
) *Server {
	e := echoHTTP.NewEcho()
	e.Use(otelecho.Middleware("travels"))
	e.HTTPErrorHandler = errorHandler(e.HTTPErrorHandler)

	server := &Server{
		addr:                addr,
		e:                   e,
		bookings:            bookings,
		payments:            payments,
		opsBookingReadModel: opsBookingReadModel,
		signatures:          signatures,
	}

	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	e.POST("/bookings", server.PostBooking)
	e.GET("/bookings", server.GetUserBookings)
	e.GET("/bookings/:id", server.GetBooking)
	e.POST("/bookings/:id/transitions", server.PostBookingTransition)
	e.POST("/bookings/:id/cancel", server.PostBookingCancel)
	e.POST("/bookings/:id/payments", server.PostBookingPayment)

	e.POST("/payments/:id/gateway-result", server.PostGatewayResult)
	e.POST("/payments/:id/refund", server.PostPaymentRefund)

	e.POST("/ops/bookings/:id/reconcile", server.PostReconcileBooking)
	e.GET("/ops/bookings", server.GetOpsBookings)
	e.GET("/ops/bookings/:id", server.GetOpsBooking)

	return server
}

// Handler exposes the router for tests.
func (s Server) Handler() http.Handler {
	return s.e
}

func (s Server) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		err := s.e.Shutdown(context.WithoutCancel(ctx))
		if err != nil {
			log.FromContext(ctx).WithError(err).Error("failed to shutdown HTTP server")
		}
	}()
	log.FromContext(ctx).WithField("addr", s.addr).Info("[HTTP] server listening")
	if err := s.e.Start(s.addr); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
