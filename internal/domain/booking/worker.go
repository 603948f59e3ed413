package booking

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Worker sweeps stale pending bookings and payments on two cadences:
// bookings every 5 minutes, payments every 10.
type Worker struct {
	svc           *Service
	bookingCutoff time.Duration
	paymentCutoff time.Duration
	bookingTick   time.Duration
	paymentTick   time.Duration
	stopCh        chan struct{}
}

// NewWorker creates a sweep worker. Cutoffs are how old a pending row
// must be before it is swept.
func NewWorker(svc *Service, bookingCutoff, paymentCutoff time.Duration) *Worker {
	if bookingCutoff == 0 {
		bookingCutoff = 15 * time.Minute
	}
	if paymentCutoff == 0 {
		paymentCutoff = 30 * time.Minute
	}
	return &Worker{
		svc:           svc,
		bookingCutoff: bookingCutoff,
		paymentCutoff: paymentCutoff,
		bookingTick:   5 * time.Minute,
		paymentTick:   10 * time.Minute,
		stopCh:        make(chan struct{}),
	}
}

// Start begins the background sweeps
func (w *Worker) Start() {
	log.Info().Msg("Starting booking sweep worker...")
	go w.loop()
}

// Stop gracefully stops the background sweeps
func (w *Worker) Stop() {
	log.Info().Msg("Stopping booking sweep worker...")
	close(w.stopCh)
}

func (w *Worker) loop() {
	bookingTicker := time.NewTicker(w.bookingTick)
	defer bookingTicker.Stop()
	paymentTicker := time.NewTicker(w.paymentTick)
	defer paymentTicker.Stop()

	// Run once immediately on startup
	w.sweepBookings()
	w.sweepPayments()

	for {
		select {
		case <-bookingTicker.C:
			w.sweepBookings()
		case <-paymentTicker.C:
			w.sweepPayments()
		case <-w.stopCh:
			return
		}
	}
}

func (w *Worker) sweepBookings() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	count, err := w.svc.SweepStaleBookings(ctx, w.bookingCutoff)
	if err != nil {
		log.Error().Err(err).Msg("Failed to sweep stale bookings")
		return
	}
	if count > 0 {
		log.Info().Int64("count", count).Msg("Cancelled stale pending bookings")
	}
}

func (w *Worker) sweepPayments() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	count, err := w.svc.SweepStalePayments(ctx, w.paymentCutoff)
	if err != nil {
		log.Error().Err(err).Msg("Failed to sweep stale payments")
		return
	}
	if count > 0 {
		log.Info().Int("count", count).Msg("Resolved stale pending payments")
	}
}
