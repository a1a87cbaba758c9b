package reconciliation

import (
	"context"
	"errors"
	"fmt"
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
)

type BookingRepository interface {
	Get(ctx context.Context, bookingID string) (entity.Booking, error)
	Update(ctx context.Context, booking entity.Booking) (entity.Booking, error)
}

type PaymentRepository interface {
	Create(ctx context.Context, payment entity.Payment) (entity.Payment, error)
	Get(ctx context.Context, paymentID string) (entity.Payment, error)
	GetByBookingID(ctx context.Context, bookingID string) (entity.Payment, error)
	Update(ctx context.Context, payment entity.Payment) (entity.Payment, error)
}

// Notifier publishes events without reporting failures back to the caller.
type Notifier interface {
	Notify(ctx context.Context, event entity.Event)
}

type Config struct {
	Retry        pkg.RetryPolicy
	Now          func() time.Time
	NewPaymentID func() string
	NewRefundID  func() string
}

func (c *Config) setDefaults() {
	if c.Retry.MaxAttempts == 0 {
		c.Retry = pkg.DefaultRetryPolicy()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.NewPaymentID == nil {
		c.NewPaymentID = uuid.NewString
	}
	if c.NewRefundID == nil {
		c.NewRefundID = func() string { return "rfnd_" + shortuuid.New() }
	}
}

// Service is the only writer of Payment records and of Booking.PaymentStatus.
// Every operation touching both records runs under the booking lock and writes
// the Payment first, so an interrupted call leaves a settled Payment with a
// lagging Booking that the next call (or Reconcile) converges.
type Service struct {
	bookings BookingRepository
	payments PaymentRepository
	machine  lifecycle.StateMachine
	locker   locks.Locker
	notifier Notifier
	config   Config
}

func NewService(
	bookings BookingRepository,
	payments PaymentRepository,
	machine lifecycle.StateMachine,
	locker locks.Locker,
	notifier Notifier,
	config Config,
) *Service {
	if bookings == nil {
		panic("bookings repository is nil")
	}
	if payments == nil {
		panic("payments repository is nil")
	}
	if locker == nil {
		panic("locker is nil")
	}
	if notifier == nil {
		panic("notifier is nil")
	}
	config.setDefaults()

	return &Service{
		bookings: bookings,
		payments: payments,
		machine:  machine,
		locker:   locker,
		notifier: notifier,
		config:   config,
	}
}

type GatewayResult struct {
	PaymentID        string
	Outcome          entity.GatewayOutcome
	GatewayPaymentID string
	GatewaySignature string
}

// RecordPaymentCreated creates the pending payment of a booking.
func (s *Service) RecordPaymentCreated(
	ctx context.Context,
	bookingID string,
	amount entity.MinorUnits,
	currency string,
	provider string,
) (entity.Payment, error) {
	if amount <= 0 {
		return entity.Payment{}, entity.NewValidationError("amount", "must be positive")
	}
	if currency == "" {
		return entity.Payment{}, entity.NewValidationError("currency", "is required")
	}

	var (
		payment entity.Payment
		events  []entity.Event
	)

	err := s.locker.WithLock(ctx, bookingID, func(ctx context.Context) error {
		booking, err := s.bookings.Get(ctx, bookingID)
		if err != nil {
			return err
		}

		existing, err := s.payments.GetByBookingID(ctx, bookingID)
		if err == nil && existing.Status != entity.PaymentStatusFailed {
			return fmt.Errorf("booking %s already has payment %s: %w", bookingID, existing.ID, entity.ErrDuplicatePayment)
		}
		if err != nil && !errors.Is(err, entity.ErrNotFound) {
			return err
		}

		if booking.Status != entity.BookingStatusPendingPayment {
			return fmt.Errorf("booking %s is %s: %w", bookingID, booking.Status, entity.ErrBookingNotPayable)
		}
		if amount != booking.Price.Total || currency != booking.Price.Currency {
			return entity.NewValidationError(
				"amount",
				fmt.Sprintf("%s %s does not match booking total %s %s", amount, currency, booking.Price.Total, booking.Price.Currency),
			)
		}

		now := s.config.Now().UTC()
		payment, err = s.payments.Create(ctx, entity.Payment{
			ID:              s.config.NewPaymentID(),
			BookingID:       bookingID,
			UserID:          booking.UserID,
			Amount:          amount,
			Currency:        currency,
			GatewayProvider: provider,
			Status:          entity.PaymentStatusPending,
			CreatedAt:       now,
			UpdatedAt:       now,
		})
		if err != nil {
			return err
		}

		synced, err := s.syncBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		events = synced.events

		return nil
	})
	if err != nil {
		return entity.Payment{}, err
	}

	log.FromContext(ctx).WithFields(logrus.Fields{
		"booking_id": bookingID,
		"payment_id": payment.ID,
		"amount":     amount.String(),
		"currency":   currency,
	}).Info("Payment created")

	s.notify(ctx, events)

	return payment, nil
}

// ApplyGatewayResult records what the gateway reported for a payment.
// Redelivering an already applied outcome changes nothing.
func (s *Service) ApplyGatewayResult(ctx context.Context, result GatewayResult) (entity.Payment, error) {
	logger := log.FromContext(ctx).WithFields(logrus.Fields{
		"payment_id": result.PaymentID,
		"outcome":    result.Outcome,
	})

	// booking id never changes, so it is safe to read it before locking
	payment, err := s.payments.Get(ctx, result.PaymentID)
	if err != nil {
		return entity.Payment{}, err
	}

	var (
		updated entity.Payment
		events  []entity.Event
		changed bool
	)

	err = s.locker.WithLock(ctx, payment.BookingID, func(ctx context.Context) error {
		paymentChanged := false

		err := s.retry(ctx, "payment", func(ctx context.Context) error {
			current, err := s.payments.Get(ctx, result.PaymentID)
			if err != nil {
				return err
			}

			next, ok, err := applyOutcome(current, result, s.config.Now().UTC())
			if err != nil {
				return err
			}
			if !ok {
				updated, paymentChanged = current, false
				return nil
			}

			updated, err = s.payments.Update(ctx, next)
			paymentChanged = err == nil
			return err
		})
		if err != nil {
			return err
		}

		synced, err := s.syncBooking(ctx, updated.BookingID)
		if err != nil {
			return err
		}

		changed = paymentChanged || synced.changed
		if paymentChanged || (synced.changed && synced.payment.ID == updated.ID) {
			events = append(events, paymentEvents(updated)...)
		}
		events = append(events, synced.events...)

		return nil
	})
	if err != nil {
		if errors.Is(err, entity.ErrPaymentAlreadySettled) {
			metrics.GatewayResults.WithLabelValues(string(result.Outcome), "rejected").Inc()
			logger.WithError(err).Warn("Conflicting gateway result")
		}
		return entity.Payment{}, err
	}

	if changed {
		metrics.GatewayResults.WithLabelValues(string(result.Outcome), "applied").Inc()
		logger.WithField("payment_status", updated.Status).Info("Gateway result applied")
	} else {
		metrics.GatewayResults.WithLabelValues(string(result.Outcome), "duplicate").Inc()
		logger.Debug("Gateway result already applied")
	}

	s.notify(ctx, events)

	return updated, nil
}

func applyOutcome(payment entity.Payment, result GatewayResult, now time.Time) (entity.Payment, bool, error) {
	switch result.Outcome {
	case entity.GatewayOutcomeUnknown:
		// a timeout says nothing about the charge, wait for the real callback
		if payment.Status != entity.PaymentStatusPending {
			return payment, false, nil
		}
		payment.Status = entity.PaymentStatusProcessing
		payment.UpdatedAt = now
		return payment, true, nil

	case entity.GatewayOutcomeSucceeded:
		switch payment.Status {
		case entity.PaymentStatusCompleted, entity.PaymentStatusRefunded:
			return payment, false, nil
		case entity.PaymentStatusFailed:
			return payment, false, fmt.Errorf("payment %s already failed: %w", payment.ID, entity.ErrPaymentAlreadySettled)
		}
		payment.Status = entity.PaymentStatusCompleted

	case entity.GatewayOutcomeFailed:
		switch payment.Status {
		case entity.PaymentStatusFailed:
			return payment, false, nil
		case entity.PaymentStatusCompleted, entity.PaymentStatusRefunded:
			return payment, false, fmt.Errorf("payment %s is %s: %w", payment.ID, payment.Status, entity.ErrPaymentAlreadySettled)
		}
		payment.Status = entity.PaymentStatusFailed

	default:
		return payment, false, entity.NewValidationError("outcome", fmt.Sprintf("unknown gateway outcome %q", result.Outcome))
	}

	if result.GatewayPaymentID != "" {
		payment.GatewayPaymentID = result.GatewayPaymentID
	}
	if result.GatewaySignature != "" {
		payment.GatewaySignature = result.GatewaySignature
	}
	payment.SettledAt = &now
	payment.UpdatedAt = now

	return payment, true, nil
}

// InitiateRefund refunds a completed payment in full. The booking status is not changed.
func (s *Service) InitiateRefund(ctx context.Context, paymentID string, reason string) (entity.Payment, error) {
	payment, err := s.payments.Get(ctx, paymentID)
	if err != nil {
		return entity.Payment{}, err
	}

	var (
		updated entity.Payment
		events  []entity.Event
	)

	err = s.locker.WithLock(ctx, payment.BookingID, func(ctx context.Context) error {
		var err error
		updated, events, err = s.refund(ctx, paymentID, reason)
		return err
	})
	if err != nil {
		return entity.Payment{}, err
	}

	s.notify(ctx, events)

	return updated, nil
}

// CancelWithRefund cancels a booking and refunds its completed payment while holding
// the booking lock once. A booking that can no longer be cancelled is not refunded.
func (s *Service) CancelWithRefund(ctx context.Context, bookingID string, note string, reason string) (entity.Booking, error) {
	var (
		cancelled entity.Booking
		from      entity.BookingStatus
		events    []entity.Event
	)

	err := s.locker.WithLock(ctx, bookingID, func(ctx context.Context) error {
		booking, err := s.bookings.Get(ctx, bookingID)
		if err != nil {
			return err
		}
		if _, err := s.machine.Transition(booking, entity.BookingStatusCancelled, note); err != nil {
			return err
		}

		payment, err := s.payments.GetByBookingID(ctx, bookingID)
		switch {
		case errors.Is(err, entity.ErrNotFound):
		case err != nil:
			return err
		case payment.Status == entity.PaymentStatusCompleted:
			_, events, err = s.refund(ctx, payment.ID, reason)
			if err != nil {
				return err
			}
		}

		return s.retry(ctx, "booking", func(ctx context.Context) error {
			booking, err := s.bookings.Get(ctx, bookingID)
			if err != nil {
				return err
			}
			from = booking.Status

			next, err := s.machine.Transition(booking, entity.BookingStatusCancelled, note)
			if err != nil {
				return err
			}

			cancelled, err = s.bookings.Update(ctx, next)
			return err
		})
	})
	if err != nil {
		// a refund written before the failure is announced anyway
		s.notify(ctx, events)
		return entity.Booking{}, err
	}

	metrics.BookingTransitions.WithLabelValues(string(from), string(entity.BookingStatusCancelled)).Inc()
	log.FromContext(ctx).WithFields(logrus.Fields{
		"booking_id":     bookingID,
		"from":           from,
		"payment_status": cancelled.PaymentStatus,
	}).Info("Booking cancelled")

	s.notify(ctx, append(events, entity.NewBookingStatusChanged(cancelled, from)))

	return cancelled, nil
}

// refund must be called under the booking lock.
func (s *Service) refund(ctx context.Context, paymentID string, reason string) (entity.Payment, []entity.Event, error) {
	var (
		updated     entity.Payment
		refundedNow bool
	)

	err := s.retry(ctx, "payment", func(ctx context.Context) error {
		current, err := s.payments.Get(ctx, paymentID)
		if err != nil {
			return err
		}

		switch current.Status {
		case entity.PaymentStatusRefunded:
			updated, refundedNow = current, false
			return nil
		case entity.PaymentStatusCompleted:
		default:
			return fmt.Errorf("payment %s is %s: %w", paymentID, current.Status, entity.ErrPaymentNotRefundable)
		}

		now := s.config.Now().UTC()
		current.Status = entity.PaymentStatusRefunded
		current.RefundID = s.config.NewRefundID()
		current.RefundAmount = current.Amount
		current.RefundReason = reason
		current.RefundedAt = &now
		current.UpdatedAt = now

		updated, err = s.payments.Update(ctx, current)
		refundedNow = err == nil
		return err
	})
	if err != nil {
		return entity.Payment{}, nil, err
	}

	synced, err := s.syncBooking(ctx, updated.BookingID)
	if err != nil {
		return entity.Payment{}, nil, err
	}

	if !refundedNow && !synced.changed {
		return entity.Payment{}, nil, fmt.Errorf("payment %s refund %s: %w", paymentID, updated.RefundID, entity.ErrPaymentAlreadyRefunded)
	}

	log.FromContext(ctx).WithFields(logrus.Fields{
		"payment_id": paymentID,
		"booking_id": updated.BookingID,
		"refund_id":  updated.RefundID,
		"amount":     updated.RefundAmount.String(),
	}).Info("Payment refunded")

	return updated, append(paymentEvents(updated), synced.events...), nil
}

// Reconcile brings the booking in line with its active payment.
func (s *Service) Reconcile(ctx context.Context, bookingID string) (entity.Booking, error) {
	var (
		booking entity.Booking
		events  []entity.Event
	)

	err := s.locker.WithLock(ctx, bookingID, func(ctx context.Context) error {
		synced, err := s.syncBooking(ctx, bookingID)
		if err != nil {
			return err
		}

		booking = synced.booking
		if synced.changed {
			log.FromContext(ctx).WithFields(logrus.Fields{
				"booking_id":     bookingID,
				"payment_id":     synced.payment.ID,
				"payment_status": synced.payment.Status,
			}).Info("Booking reconciled with payment")

			events = append(paymentEvents(synced.payment), synced.events...)
		}

		return nil
	})
	if err != nil {
		return entity.Booking{}, err
	}

	s.notify(ctx, events)

	return booking, nil
}

type syncResult struct {
	booking entity.Booking
	payment entity.Payment
	events  []entity.Event
	changed bool
}

// syncBooking copies the active payment status onto the booking and moves a paid
// booking out of pending_payment. Must be called under the booking lock.
func (s *Service) syncBooking(ctx context.Context, bookingID string) (syncResult, error) {
	var result syncResult

	err := s.retry(ctx, "booking", func(ctx context.Context) error {
		result = syncResult{}

		booking, err := s.bookings.Get(ctx, bookingID)
		if err != nil {
			return err
		}
		result.booking = booking

		payment, err := s.payments.GetByBookingID(ctx, bookingID)
		if errors.Is(err, entity.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		result.payment = payment

		if booking.PaymentStatus != payment.Status {
			booking.PaymentStatus = payment.Status
			booking.UpdatedAt = s.config.Now().UTC()
			result.changed = true
		}

		if payment.Status == entity.PaymentStatusCompleted && booking.Status == entity.BookingStatusPendingPayment {
			from := booking.Status
			booking, err = s.machine.Transition(booking, entity.BookingStatusProcessing, "payment received")
			if err != nil {
				return err
			}
			result.events = append(result.events, entity.NewBookingStatusChanged(booking, from))
			result.changed = true
		}

		if !result.changed {
			return nil
		}

		result.booking, err = s.bookings.Update(ctx, booking)
		return err
	})
	if err != nil {
		return syncResult{}, err
	}

	for _, event := range result.events {
		if changed, ok := event.(entity.BookingStatusChanged_v1); ok {
			metrics.BookingTransitions.WithLabelValues(string(changed.From), string(changed.To)).Inc()
		}
	}

	if result.changed && result.booking.Status == entity.BookingStatusCancelled && result.payment.Status == entity.PaymentStatusCompleted {
		log.FromContext(ctx).WithFields(logrus.Fields{
			"booking_id": bookingID,
			"payment_id": result.payment.ID,
		}).Warn("Payment settled for a cancelled booking, it needs a refund")
	}

	return result, nil
}

func paymentEvents(payment entity.Payment) []entity.Event {
	switch payment.Status {
	case entity.PaymentStatusCompleted:
		return []entity.Event{entity.PaymentSettled_v1{
			Header:           entity.NewEventHeaderWithIdempotencyKey(payment.ID + ":" + string(entity.GatewayOutcomeSucceeded)),
			PaymentID:        payment.ID,
			BookingID:        payment.BookingID,
			UserID:           payment.UserID,
			Amount:           payment.Amount,
			Currency:         payment.Currency,
			GatewayPaymentID: payment.GatewayPaymentID,
		}}
	case entity.PaymentStatusFailed:
		return []entity.Event{entity.PaymentFailed_v1{
			Header:           entity.NewEventHeaderWithIdempotencyKey(payment.ID + ":" + string(entity.GatewayOutcomeFailed)),
			PaymentID:        payment.ID,
			BookingID:        payment.BookingID,
			UserID:           payment.UserID,
			GatewayPaymentID: payment.GatewayPaymentID,
		}}
	case entity.PaymentStatusRefunded:
		return []entity.Event{entity.PaymentRefunded_v1{
			Header:           entity.NewEventHeaderWithIdempotencyKey(payment.RefundID),
			PaymentID:        payment.ID,
			BookingID:        payment.BookingID,
			UserID:           payment.UserID,
			GatewayPaymentID: payment.GatewayPaymentID,
			RefundID:         payment.RefundID,
			RefundAmount:     payment.RefundAmount,
			Currency:         payment.Currency,
			Reason:           payment.RefundReason,
		}}
	}
	return nil
}

func (s *Service) retry(ctx context.Context, entityName string, op func(ctx context.Context) error) error {
	return pkg.Retry(ctx, s.config.Retry, entity.IsBusinessError, func(ctx context.Context) error {
		err := op(ctx)
		if errors.Is(err, entity.ErrVersionConflict) {
			metrics.VersionConflicts.WithLabelValues(entityName).Inc()
			log.FromContext(ctx).WithError(err).Debug("Version conflict, retrying")
		}
		return err
	})
}

func (s *Service) notify(ctx context.Context, events []entity.Event) {
	for _, event := range events {
		s.notifier.Notify(ctx, event)
	}
}
