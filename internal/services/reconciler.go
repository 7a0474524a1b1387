package services

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"mollie_bridge_echo/internal/apperr"
	"mollie_bridge_echo/internal/gateway"
	"mollie_bridge_echo/internal/models"
)

// ErrMissingPaymentID is returned for a notification without a payment id.
var ErrMissingPaymentID = errors.New("missing payment id")

// Outcomes recorded for each notification.
const (
	OutcomeTransitioned     = "transitioned"
	OutcomeAlreadyProcessed = "already_processed"
	OutcomeAwaiting         = "awaiting"
	OutcomeOrderNotFound    = "order_not_found"
	OutcomeOrderMismatch    = "order_mismatch"
)

// Audit comments written to the order history.
const (
	commentPaid      = "Payment received."
	commentCancelled = "Payment cancelled by the customer."
	commentExpired   = "Payment expired."
	commentFailed    = "Payment failed for an unknown reason."
)

// ReconcileResult describes what a notification did.
type ReconcileResult struct {
	PaymentID    string
	OrderID      uint
	RemoteStatus string
	OrderStatus  string
	Outcome      string
	Message      string
}

// Reconciler applies gateway payment state to orders.
type Reconciler struct {
	db       *gorm.DB
	ledger   *Ledger
	orders   *OrderStore
	settings *SettingsStore
	factory  gateway.Factory
	gateway  models.PaymentGateway
}

func NewReconciler(db *gorm.DB, ledger *Ledger, orders *OrderStore, settings *SettingsStore, factory gateway.Factory, gw models.PaymentGateway) *Reconciler {
	return &Reconciler{
		db:       db,
		ledger:   ledger,
		orders:   orders,
		settings: settings,
		factory:  factory,
		gateway:  gw,
	}
}

// Handle reconciles one remote payment. The status is always fetched from the
// gateway, probing every configured key when needed. The order moves only if
// it is still awaiting payment, so repeated notifications are harmless.
func (r *Reconciler) Handle(ctx context.Context, paymentID string) (*ReconcileResult, error) {
	if paymentID == "" {
		return nil, ErrMissingPaymentID
	}

	settings, err := r.settings.Load(ctx)
	if err != nil {
		return nil, err
	}

	payment, err := gateway.NewClientSet(r.factory, CredentialsOf(settings)).ProbePayment(ctx, paymentID)
	if err != nil {
		log.Error().Err(err).Str("payment_id", paymentID).
			Msg("payment status cannot be retrieved, check the configured API keys")
		return nil, err
	}

	result, err := r.apply(ctx, settings, payment)
	if err != nil {
		return nil, err
	}
	r.recordCallback(ctx, result)
	return result, nil
}

func (r *Reconciler) apply(ctx context.Context, settings *models.PaymentSettings, payment *gateway.Payment) (*ReconcileResult, error) {
	result := &ReconcileResult{
		PaymentID:    payment.ID,
		RemoteStatus: payment.Status,
	}

	orderID, err := strconv.ParseUint(payment.OrderID(), 10, 64)
	if err != nil {
		result.Outcome = OutcomeOrderNotFound
		result.Message = "No order found for this payment."
		log.Warn().Str("payment_id", payment.ID).Str("metadata_order_id", payment.OrderID()).Msg("payment carries no usable order id")
		return result, nil
	}
	result.OrderID = uint(orderID)

	order, err := r.orders.Get(ctx, uint(orderID))
	if errors.Is(err, apperr.ErrOrderNotFound) {
		result.Outcome = OutcomeOrderNotFound
		result.Message = "No order found for this payment."
		return result, nil
	}
	if err != nil {
		return nil, err
	}
	result.OrderStatus = order.Status

	rec, err := r.ledger.FindByRemoteID(ctx, payment.ID)
	switch {
	case errors.Is(err, apperr.ErrRecordNotFound):
		log.Warn().Str("payment_id", payment.ID).Uint("order_id", order.ID).Msg("payment not in ledger")
	case err != nil:
		return nil, err
	case rec.OrderID != order.ID:
		// The metadata names a different order than the one the payment was created for.
		log.Warn().Str("payment_id", payment.ID).Uint("order_id", order.ID).Uint("ledger_order_id", rec.OrderID).
			Msg("payment metadata does not match the ledger")
		result.Outcome = OutcomeOrderMismatch
		result.Message = "The payment does not belong to this order."
		return result, nil
	default:
		if err := r.ledger.UpdateStatus(ctx, payment.ID, payment.Status); err != nil {
			return nil, err
		}
	}

	awaiting := settings.Statuses.Pending
	if order.Status != awaiting {
		result.Outcome = OutcomeAlreadyProcessed
		result.Message = "The order was already processed before."
		return result, nil
	}

	if !payment.IsTerminal() {
		result.Outcome = OutcomeAwaiting
		result.Message = "The payment is not final yet, awaiting further notification."
		return result, nil
	}

	target, comment, notify, message := transitionFor(payment.Status, settings.Statuses)

	err = r.orders.Transition(ctx, order.ID, awaiting, target, comment, notify)
	if errors.Is(err, apperr.ErrStatusChanged) {
		result.Outcome = OutcomeAlreadyProcessed
		result.Message = "The order was already processed before."
		return result, nil
	}
	if err != nil {
		return nil, err
	}

	log.Info().Uint("order_id", order.ID).Str("payment_id", payment.ID).
		Str("remote_status", payment.Status).Str("order_status", target).Msg("order status updated")

	result.OrderStatus = target
	result.Outcome = OutcomeTransitioned
	result.Message = message
	return result, nil
}

// transitionFor maps a terminal gateway status onto an order status.
// Anything unrecognised fails the order.
func transitionFor(status string, statuses models.StatusMapping) (target, comment string, notify bool, message string) {
	switch status {
	case gateway.StatusPaid:
		return statuses.Processing, commentPaid, true,
			"The payment was received and the order was moved to the processing status."
	case gateway.StatusCanceled, "cancelled":
		return statuses.Cancelled, commentCancelled, false,
			"The payment was cancelled and the order was moved to the canceled status."
	case gateway.StatusExpired:
		return statuses.Expired, commentExpired, false,
			"The payment was expired and the order was moved to the expired status."
	default:
		return statuses.Failed, commentFailed, false,
			"The payment failed for an unknown reason, order was updated."
	}
}

func (r *Reconciler) recordCallback(ctx context.Context, result *ReconcileResult) {
	metadata, _ := json.Marshal(map[string]string{
		"message":      result.Message,
		"order_status": result.OrderStatus,
	})

	history := models.PaymentCallbackHistory{
		PaymentGateway:  r.gateway,
		RemotePaymentID: result.PaymentID,
		RemoteStatus:    result.RemoteStatus,
		Outcome:         result.Outcome,
		Metadata:        datatypes.JSON(metadata),
	}
	if result.OrderID != 0 {
		id := result.OrderID
		history.OrderID = &id
	}

	if err := r.db.WithContext(ctx).Create(&history).Error; err != nil {
		log.Error().Err(err).Str("payment_id", result.PaymentID).Msg("failed to record callback history")
	}
}

// SweepAwaiting reconciles payments whose orders are still awaiting payment,
// for payments created without a webhook or whose notification was lost.
func (r *Reconciler) SweepAwaiting(ctx context.Context, olderThan time.Time, limit int) (map[string]int, error) {
	settings, err := r.settings.Load(ctx)
	if err != nil {
		return nil, err
	}

	recs, err := r.ledger.ListAwaiting(ctx, settings.Statuses.Pending, olderThan, limit)
	if err != nil {
		return nil, err
	}

	counts := map[string]int{}
	clients := gateway.NewClientSet(r.factory, CredentialsOf(settings))

	for _, rec := range recs {
		if ctx.Err() != nil {
			return counts, ctx.Err()
		}

		payment, err := clients.ProbePayment(ctx, rec.RemotePaymentID)
		if err != nil {
			counts["errors"]++
			log.Warn().Err(err).Str("payment_id", rec.RemotePaymentID).Msg("sweep: fetch payment failed")
			continue
		}

		result, err := r.apply(ctx, settings, payment)
		if err != nil {
			counts["errors"]++
			log.Warn().Err(err).Str("payment_id", rec.RemotePaymentID).Msg("sweep: reconcile failed")
			continue
		}
		counts[result.Outcome]++
	}
	return counts, nil
}
