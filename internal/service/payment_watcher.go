package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/truonghoc-dev/truonghoc-api/internal/models"
	appErrors "github.com/truonghoc-dev/truonghoc-api/pkg/errors"
)

// WatcherState is the payment confirmation step a watcher is in.
type WatcherState string

const (
	// WatcherStateConfirm is the initial step showing the invoice total.
	WatcherStateConfirm WatcherState = "confirm"
	// WatcherStateQR is the polling step waiting for the bank transfer.
	WatcherStateQR WatcherState = "qr"
	// WatcherStateSuccess is the terminal step after the invoice flips to PAID.
	WatcherStateSuccess WatcherState = "success"
)

// WatcherConfig controls the polling cadence. Zero values fall back to the
// production defaults.
type WatcherConfig struct {
	PollInitial   time.Duration
	PollInterval  time.Duration
	SuccessLinger time.Duration
}

func (c WatcherConfig) withDefaults() WatcherConfig {
	if c.PollInitial <= 0 {
		c.PollInitial = 3 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.SuccessLinger <= 0 {
		c.SuccessLinger = 3 * time.Second
	}
	return c
}

// PaymentWatcher drives one invoice payment attempt through the
// confirm/qr/success steps and polls the invoice until a bank transfer
// settles it. Polling has no attempt cutoff; cancelling the context is the
// only teardown.
type PaymentWatcher struct {
	payments *PaymentService
	invoices invoiceReader
	logger   *zap.Logger
	config   WatcherConfig

	mu      sync.Mutex
	state   WatcherState
	payment *models.Payment
	done    chan struct{}
	cancel  context.CancelFunc
	onPaid  func(invoiceID string)
	onPoll  func()
}

// NewPaymentWatcher constructs a watcher in the confirm step.
func NewPaymentWatcher(payments *PaymentService, invoices invoiceReader, logger *zap.Logger, config WatcherConfig) *PaymentWatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentWatcher{
		payments: payments,
		invoices: invoices,
		logger:   logger,
		config:   config.withDefaults(),
		state:    WatcherStateConfirm,
	}
}

// State reports the current step.
func (w *PaymentWatcher) State() WatcherState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Payment returns the open payment attempt, nil before confirmation.
func (w *PaymentWatcher) Payment() *models.Payment {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.payment
}

// OnPaid registers a callback invoked once after the invoice flips to PAID.
func (w *PaymentWatcher) OnPaid(fn func(invoiceID string)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onPaid = fn
}

// OnPoll registers a callback invoked once per poll iteration, before the
// invoice lookup. Used to feed the payment poll counter.
func (w *PaymentWatcher) OnPoll(fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onPoll = fn
}

// ShouldStayOpen reports whether a close request must be refused. The
// dialog stays open while the QR step is polling so the in-flight payment
// context is not lost.
func (w *PaymentWatcher) ShouldStayOpen() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state == WatcherStateQR
}

// Confirm creates the payment record and moves to the QR step, starting the
// background poll loop. On creation failure the watcher stays in confirm.
func (w *PaymentWatcher) Confirm(ctx context.Context, invoiceID string) (*models.Payment, error) {
	w.mu.Lock()
	if w.state != WatcherStateConfirm {
		w.mu.Unlock()
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "payment attempt already in progress")
	}
	w.mu.Unlock()

	payment, err := w.payments.Create(ctx, CreatePaymentRequest{InvoiceID: invoiceID})
	if err != nil {
		return nil, err
	}

	pollCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	w.mu.Lock()
	w.state = WatcherStateQR
	w.payment = payment
	w.cancel = cancel
	w.done = make(chan struct{})
	w.mu.Unlock()

	go w.poll(pollCtx, invoiceID)
	return payment, nil
}

// Close tears the watcher down. While the QR step is polling the close is
// refused unless force is set; Done() callers are released either way once
// teardown happens.
func (w *PaymentWatcher) Close(force bool) bool {
	w.mu.Lock()
	if w.state == WatcherStateQR && !force {
		w.mu.Unlock()
		return false
	}
	cancel := w.cancel
	w.cancel = nil
	w.state = WatcherStateConfirm
	w.payment = nil
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	return true
}

// Done returns a channel closed when the watcher's poll loop exits. Nil
// before Confirm is called.
func (w *PaymentWatcher) Done() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.done
}

func (w *PaymentWatcher) poll(ctx context.Context, invoiceID string) {
	defer func() {
		w.mu.Lock()
		done := w.done
		w.mu.Unlock()
		if done != nil {
			close(done)
		}
	}()

	select {
	case <-ctx.Done():
		return
	case <-time.After(w.config.PollInitial):
	}

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		w.mu.Lock()
		tick := w.onPoll
		w.mu.Unlock()
		if tick != nil {
			tick()
		}

		invoice, err := w.invoices.FindByID(ctx, invoiceID)
		if err != nil {
			// Poll errors do not stop the loop; the transfer may still land.
			w.logger.Warn("payment poll failed", zap.String("invoice_id", invoiceID), zap.Error(err))
		} else if invoice.Status == models.InvoiceStatusPaid {
			w.settle(invoiceID)
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *PaymentWatcher) settle(invoiceID string) {
	w.mu.Lock()
	w.state = WatcherStateSuccess
	callback := w.onPaid
	w.mu.Unlock()

	if callback != nil {
		callback(invoiceID)
	}

	time.Sleep(w.config.SuccessLinger)
	w.Close(true)
}
