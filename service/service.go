package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/google/uuid"
	"github.com/lithammer/shortuuid/v3"
	"github.com/sirupsen/logrus"

	"travels/entity"
	"travels/lifecycle"
	"travels/locks"
	"travels/metrics"
	"travels/pkg"
	"travels/pricing"
)

// bookingIDNamespace scopes booking ids derived from idempotency keys.
var bookingIDNamespace = uuid.MustParse("1b0c8f5e-6a0e-4f38-9d3c-2f1f0d7a4c55")

type BookingRepository interface {
	Create(ctx context.Context, booking entity.Booking) (entity.Booking, error)
	Get(ctx context.Context, bookingID string) (entity.Booking, error)
	FindByUserID(ctx context.Context, userID string) ([]entity.Booking, error)
	Update(ctx context.Context, booking entity.Booking) (entity.Booking, error)
}

type PaymentRepository interface {
	GetByBookingID(ctx context.Context, bookingID string) (entity.Payment, error)
}

type PaymentReconciler interface {
	RecordPaymentCreated(ctx context.Context, bookingID string, amount entity.MinorUnits, currency string, provider string) (entity.Payment, error)
	CancelWithRefund(ctx context.Context, bookingID string, note string, reason string) (entity.Booking, error)
	Reconcile(ctx context.Context, bookingID string) (entity.Booking, error)
}

type Notifier interface {
	Notify(ctx context.Context, event entity.Event)
}

type Config struct {
	DefaultCurrency string
	PaymentProvider string
	Retry           pkg.RetryPolicy
	Now             func() time.Time
	NewBookingID    func() string
}

func (c *Config) setDefaults() {
	if c.DefaultCurrency == "" {
		c.DefaultCurrency = "INR"
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry = pkg.DefaultRetryPolicy()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.NewBookingID == nil {
		c.NewBookingID = uuid.NewString
	}
}

// BookingService is the entry point for everything a customer or an admin does to a booking.
type BookingService struct {
	bookings   BookingRepository
	payments   PaymentRepository
	reconciler PaymentReconciler
	machine    lifecycle.StateMachine
	locker     locks.Locker
	notifier   Notifier
	config     Config
}

func NewBookingService(
	bookings BookingRepository,
	payments PaymentRepository,
	reconciler PaymentReconciler,
	machine lifecycle.StateMachine,
	locker locks.Locker,
	notifier Notifier,
	config Config,
) *BookingService {
	if bookings == nil {
		panic("bookings repository is nil")
	}
	if payments == nil {
		panic("payments repository is nil")
	}
	if reconciler == nil {
		panic("reconciler is nil")
	}
	if locker == nil {
		panic("locker is nil")
	}
	if notifier == nil {
		panic("notifier is nil")
	}
	config.setDefaults()

	return &BookingService{
		bookings:   bookings,
		payments:   payments,
		reconciler: reconciler,
		machine:    machine,
		locker:     locker,
		notifier:   notifier,
		config:     config,
	}
}

type CreateBookingRequest struct {
	// IdempotencyKey makes a retried request return the booking created by the first one.
	IdempotencyKey string

	UserID        string
	PackageID     string
	PackageTitle  string
	Destination   string
	DepartureDate time.Time
	ReturnDate    time.Time
	UnitPrice     entity.MinorUnits
	Currency      string
	Travelers     []entity.Traveler
}

func (r CreateBookingRequest) validate() error {
	if strings.TrimSpace(r.UserID) == "" {
		return entity.NewValidationError("user_id", "is required")
	}
	if strings.TrimSpace(r.PackageID) == "" {
		return entity.NewValidationError("package_id", "is required")
	}
	if strings.TrimSpace(r.PackageTitle) == "" {
		return entity.NewValidationError("package_title", "is required")
	}
	if strings.TrimSpace(r.Destination) == "" {
		return entity.NewValidationError("destination", "is required")
	}
	if r.DepartureDate.IsZero() {
		return entity.NewValidationError("departure_date", "is required")
	}
	if !r.ReturnDate.After(r.DepartureDate) {
		return entity.NewValidationError("return_date", "must be after departure date")
	}
	if r.UnitPrice <= 0 {
		return entity.NewValidationError("unit_price", "must be positive")
	}
	if len(r.Travelers) == 0 {
		return entity.NewValidationError("travelers", "at least one traveler is required")
	}
	for i, t := range r.Travelers {
		field := fmt.Sprintf("travelers[%d]", i)
		if strings.TrimSpace(t.Name) == "" {
			return entity.NewValidationError(field+".name", "is required")
		}
		if t.Age < 0 {
			return entity.NewValidationError(field+".age", "must not be negative")
		}
		if !t.Type.IsValid() {
			return entity.NewValidationError(field+".type", fmt.Sprintf("unknown traveler type %q", t.Type))
		}
	}
	return nil
}

type CreateBookingResult struct {
	Booking entity.Booking
	Payment entity.Payment
}

// CreateBooking prices and stores a booking at pending_payment together with its pending payment.
// The caller drives the gateway with the returned payment.
func (s *BookingService) CreateBooking(ctx context.Context, req CreateBookingRequest) (CreateBookingResult, error) {
	if req.Currency == "" {
		req.Currency = s.config.DefaultCurrency
	}
	if err := req.validate(); err != nil {
		return CreateBookingResult{}, err
	}

	adults, children, infants := pricing.CountTravelers(req.Travelers)
	price, err := pricing.ComputePrice(req.UnitPrice, adults, children, infants)
	if err != nil {
		return CreateBookingResult{}, err
	}
	price.Currency = req.Currency

	travelers := make([]entity.Traveler, len(req.Travelers))
	for i, t := range req.Travelers {
		if t.ID == "" {
			t.ID = shortuuid.New()
		}
		travelers[i] = t
	}

	now := s.config.Now().UTC()
	booking := s.machine.Start(entity.Booking{
		ID:            s.bookingID(req),
		UserID:        req.UserID,
		PackageID:     req.PackageID,
		PackageTitle:  req.PackageTitle,
		Destination:   req.Destination,
		DepartureDate: req.DepartureDate.UTC(),
		ReturnDate:    req.ReturnDate.UTC(),
		Travelers:     travelers,
		Price:         price,
		PaymentStatus: entity.PaymentStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, "booking created")

	replayed := false
	created, err := s.bookings.Create(ctx, booking)
	if errors.Is(err, entity.ErrAlreadyExists) && req.IdempotencyKey != "" {
		replayed = true
		created, err = s.bookings.Get(ctx, booking.ID)
		if err == nil && created.UserID != req.UserID {
			return CreateBookingResult{}, fmt.Errorf("booking %s: %w", booking.ID, entity.ErrAlreadyExists)
		}
		log.FromContext(ctx).WithField("booking_id", booking.ID).Info("Booking already created for idempotency key")
	}
	if err != nil {
		return CreateBookingResult{}, err
	}

	payment, err := s.firstPayment(ctx, created, replayed)
	if err != nil {
		return CreateBookingResult{}, fmt.Errorf("could not record payment for booking %s: %w", created.ID, err)
	}

	// payment creation may have synced the booking
	created, err = s.bookings.Get(ctx, created.ID)
	if err != nil {
		return CreateBookingResult{}, err
	}

	log.FromContext(ctx).WithFields(logrus.Fields{
		"booking_id": created.ID,
		"payment_id": payment.ID,
		"total":      created.Price.Total.String(),
		"currency":   created.Price.Currency,
	}).Info("Booking created")

	s.notifier.Notify(ctx, entity.BookingCreated_v1{
		Header:        entity.NewEventHeaderWithIdempotencyKey(created.ID),
		BookingID:     created.ID,
		UserID:        created.UserID,
		PackageID:     created.PackageID,
		PackageTitle:  created.PackageTitle,
		Destination:   created.Destination,
		DepartureDate: created.DepartureDate,
		Travelers:     len(created.Travelers),
		Price:         created.Price,
	})

	return CreateBookingResult{Booking: created, Payment: payment}, nil
}

// firstPayment records the initial payment of a booking. A replayed request gets
// whatever payment the first one recorded, even a failed one: new attempts go through RetryPayment.
func (s *BookingService) firstPayment(ctx context.Context, booking entity.Booking, replayed bool) (entity.Payment, error) {
	if replayed {
		payment, err := s.payments.GetByBookingID(ctx, booking.ID)
		if !errors.Is(err, entity.ErrNotFound) {
			return payment, err
		}
	}

	payment, err := s.reconciler.RecordPaymentCreated(ctx, booking.ID, booking.Price.Total, booking.Price.Currency, s.config.PaymentProvider)
	if errors.Is(err, entity.ErrDuplicatePayment) {
		// a concurrent replay recorded it first
		return s.payments.GetByBookingID(ctx, booking.ID)
	}
	return payment, err
}

// RetryPayment opens a new payment attempt for a booking whose last payment failed.
func (s *BookingService) RetryPayment(ctx context.Context, bookingID string) (entity.Payment, error) {
	booking, err := s.bookings.Get(ctx, bookingID)
	if err != nil {
		return entity.Payment{}, err
	}

	return s.reconciler.RecordPaymentCreated(ctx, booking.ID, booking.Price.Total, booking.Price.Currency, s.config.PaymentProvider)
}

func (s *BookingService) bookingID(req CreateBookingRequest) string {
	if req.IdempotencyKey == "" {
		return s.config.NewBookingID()
	}
	return uuid.NewSHA1(bookingIDNamespace, []byte(req.UserID+":"+req.IdempotencyKey)).String()
}

type BookingView struct {
	Booking       entity.Booking
	Payment       *entity.Payment
	DisplayStatus entity.LegacyStatus
}

func (s *BookingService) GetBooking(ctx context.Context, bookingID string) (BookingView, error) {
	booking, err := s.bookings.Get(ctx, bookingID)
	if err != nil {
		return BookingView{}, err
	}

	view := BookingView{
		Booking:       booking,
		DisplayStatus: booking.Status.Legacy(),
	}

	payment, err := s.payments.GetByBookingID(ctx, bookingID)
	switch {
	case err == nil:
		view.Payment = &payment
	case errors.Is(err, entity.ErrNotFound):
	default:
		return BookingView{}, err
	}

	return view, nil
}

func (s *BookingService) ListUserBookings(ctx context.Context, userID string) ([]entity.Booking, error) {
	if userID == "" {
		return nil, entity.NewValidationError("user_id", "is required")
	}
	return s.bookings.FindByUserID(ctx, userID)
}

// TransitionBooking moves a booking along its fulfillment pipeline.
func (s *BookingService) TransitionBooking(ctx context.Context, bookingID string, target entity.BookingStatus, note string) (entity.Booking, error) {
	if target == entity.BookingStatusCancelled {
		return s.CancelBooking(ctx, bookingID, note)
	}
	if !target.IsValid() {
		return entity.Booking{}, entity.NewValidationError("status", fmt.Sprintf("unknown booking status %q", target))
	}

	if target == entity.BookingStatusCompleted {
		// a lagging payment status must not block completion of a paid booking
		if _, err := s.reconciler.Reconcile(ctx, bookingID); err != nil {
			return entity.Booking{}, err
		}
	}

	return s.transition(ctx, bookingID, target, note, nil)
}

// CancelBooking cancels a booking that holds no captured money.
// A completed payment must be refunded first.
func (s *BookingService) CancelBooking(ctx context.Context, bookingID string, note string) (entity.Booking, error) {
	return s.transition(ctx, bookingID, entity.BookingStatusCancelled, note, func(ctx context.Context) error {
		payment, err := s.payments.GetByBookingID(ctx, bookingID)
		if errors.Is(err, entity.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if payment.Status == entity.PaymentStatusCompleted {
			return fmt.Errorf("booking %s payment %s: %w", bookingID, payment.ID, entity.ErrRefundRequired)
		}
		return nil
	})
}

// CancelAndRefund cancels a booking and refunds its completed payment in full.
// Nothing is refunded when the booking can no longer be cancelled.
func (s *BookingService) CancelAndRefund(ctx context.Context, bookingID string, note string) (entity.Booking, error) {
	reason := note
	if reason == "" {
		reason = "booking cancelled"
	}
	return s.reconciler.CancelWithRefund(ctx, bookingID, note, reason)
}

func (s *BookingService) transition(
	ctx context.Context,
	bookingID string,
	target entity.BookingStatus,
	note string,
	precondition func(ctx context.Context) error,
) (entity.Booking, error) {
	var (
		updated entity.Booking
		from    entity.BookingStatus
	)

	err := s.locker.WithLock(ctx, bookingID, func(ctx context.Context) error {
		if precondition != nil {
			if err := precondition(ctx); err != nil {
				return err
			}
		}

		return pkg.Retry(ctx, s.config.Retry, entity.IsBusinessError, func(ctx context.Context) error {
			booking, err := s.bookings.Get(ctx, bookingID)
			if err != nil {
				return err
			}
			from = booking.Status

			next, err := s.machine.Transition(booking, target, note)
			if err != nil {
				return err
			}

			updated, err = s.bookings.Update(ctx, next)
			if errors.Is(err, entity.ErrVersionConflict) {
				metrics.VersionConflicts.WithLabelValues("booking").Inc()
			}
			return err
		})
	})
	if err != nil {
		return entity.Booking{}, err
	}

	metrics.BookingTransitions.WithLabelValues(string(from), string(target)).Inc()
	log.FromContext(ctx).WithFields(logrus.Fields{
		"booking_id": bookingID,
		"from":       from,
		"to":         target,
	}).Info("Booking status changed")

	s.notifier.Notify(ctx, entity.NewBookingStatusChanged(updated, from))

	return updated, nil
}
