package read_models_handlers

import (
	"context"
	"sort"
	"time"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/ThreeDotsLabs/watermill/components/cqrs"
	"github.com/samber/lo"

	"travels/entity"
)

type Repository interface {
	Store(ctx context.Context, booking entity.OpsBooking) error
	UpdateByBookingID(ctx context.Context, bookingID string, update func(booking entity.OpsBooking) (entity.OpsBooking, error)) error
}

// OpsBookingReadModel keeps one back-office document per booking.
// Handlers may see events out of order and more than once.
type OpsBookingReadModel struct {
	repo Repository
}

func NewOpsBookingReadModel(repo Repository) OpsBookingReadModel {
	if repo == nil {
		panic("read model repository is nil")
	}

	return OpsBookingReadModel{repo: repo}
}

func (r OpsBookingReadModel) Handlers() []cqrs.EventHandler {
	return []cqrs.EventHandler{
		cqrs.NewEventHandler("ops_read_model.OnBookingCreated", r.OnBookingCreated),
		cqrs.NewEventHandler("ops_read_model.OnBookingStatusChanged", r.OnBookingStatusChanged),
		cqrs.NewEventHandler("ops_read_model.OnPaymentSettled", r.OnPaymentSettled),
		cqrs.NewEventHandler("ops_read_model.OnPaymentFailed", r.OnPaymentFailed),
		cqrs.NewEventHandler("ops_read_model.OnPaymentRefunded", r.OnPaymentRefunded),
	}
}

// OnBookingCreated is the first event of every booking, other handlers retry until it lands.
func (r OpsBookingReadModel) OnBookingCreated(ctx context.Context, event *entity.BookingCreated_v1) error {
	log.FromContext(ctx).WithField("booking_id", event.BookingID).Debug("OpsBookingReadModel: OnBookingCreated")

	return r.repo.Store(ctx, entity.OpsBooking{
		BookingID:     event.BookingID,
		UserID:        event.UserID,
		PackageTitle:  event.PackageTitle,
		Destination:   event.Destination,
		Departure:     event.DepartureDate,
		Travelers:     event.Travelers,
		BookedAt:      event.Header.PublishedAt,
		Status:        entity.BookingStatusPendingPayment,
		DisplayStatus: entity.BookingStatusPendingPayment.Legacy(),
		PaymentStatus: entity.PaymentStatusPending,
		TotalAmount:   event.Price.Total.String(),
		Currency:      event.Price.Currency,
		Timeline: []entity.OpsTimelineEntry{{
			EventID: event.Header.ID,
			Status:  entity.BookingStatusPendingPayment,
			At:      event.Header.PublishedAt,
		}},
		LastUpdate: time.Now(),
	})
}

func (r OpsBookingReadModel) OnBookingStatusChanged(ctx context.Context, event *entity.BookingStatusChanged_v1) error {
	log.FromContext(ctx).WithField("booking_id", event.BookingID).Debug("OpsBookingReadModel: OnBookingStatusChanged")

	return r.repo.UpdateByBookingID(ctx, event.BookingID, func(rm entity.OpsBooking) (entity.OpsBooking, error) {
		// statuses are never revisited, so a known one is a redelivery
		if lo.ContainsBy(rm.Timeline, func(entry entity.OpsTimelineEntry) bool { return entry.Status == event.To }) {
			return rm, nil
		}

		rm.Timeline = append(rm.Timeline, entity.OpsTimelineEntry{
			EventID: event.Header.ID,
			Status:  event.To,
			At:      event.ChangedAt,
			Note:    event.Note,
		})
		sort.SliceStable(rm.Timeline, func(i, j int) bool {
			return rm.Timeline[i].At.Before(rm.Timeline[j].At)
		})

		latest := rm.Timeline[len(rm.Timeline)-1]
		rm.Status = latest.Status
		rm.DisplayStatus = latest.Status.Legacy()
		rm.LastUpdate = time.Now()

		return rm, nil
	})
}

func (r OpsBookingReadModel) OnPaymentSettled(ctx context.Context, event *entity.PaymentSettled_v1) error {
	log.FromContext(ctx).WithField("payment_id", event.PaymentID).Debug("OpsBookingReadModel: OnPaymentSettled")

	return r.repo.UpdateByBookingID(ctx, event.BookingID, func(rm entity.OpsBooking) (entity.OpsBooking, error) {
		if rm.PaymentStatus == entity.PaymentStatusRefunded {
			return rm, nil
		}

		rm.PaymentID = event.PaymentID
		rm.PaymentStatus = entity.PaymentStatusCompleted
		rm.PaidAt = event.Header.PublishedAt
		rm.LastUpdate = time.Now()

		return rm, nil
	})
}

func (r OpsBookingReadModel) OnPaymentFailed(ctx context.Context, event *entity.PaymentFailed_v1) error {
	log.FromContext(ctx).WithField("payment_id", event.PaymentID).Debug("OpsBookingReadModel: OnPaymentFailed")

	return r.repo.UpdateByBookingID(ctx, event.BookingID, func(rm entity.OpsBooking) (entity.OpsBooking, error) {
		switch rm.PaymentStatus {
		case entity.PaymentStatusCompleted, entity.PaymentStatusRefunded:
			// a later payment of the same booking already went through
			return rm, nil
		}

		rm.PaymentID = event.PaymentID
		rm.PaymentStatus = entity.PaymentStatusFailed
		rm.LastUpdate = time.Now()

		return rm, nil
	})
}

func (r OpsBookingReadModel) OnPaymentRefunded(ctx context.Context, event *entity.PaymentRefunded_v1) error {
	log.FromContext(ctx).WithField("refund_id", event.RefundID).Debug("OpsBookingReadModel: OnPaymentRefunded")

	return r.repo.UpdateByBookingID(ctx, event.BookingID, func(rm entity.OpsBooking) (entity.OpsBooking, error) {
		rm.PaymentID = event.PaymentID
		rm.PaymentStatus = entity.PaymentStatusRefunded
		rm.RefundID = event.RefundID
		rm.RefundAmount = event.RefundAmount.String()
		rm.RefundedAt = event.Header.PublishedAt
		rm.LastUpdate = time.Now()

		return rm, nil
	})
}
