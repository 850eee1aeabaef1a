package worker

// shift_poller.go
// Background goroutine that periodically reconciles the local register
// session with the backend, so a session closed or reopened from another
// terminal (or the back office) is picked up without a cashier action.
// Skips ticks while the backend circuit breaker is open.

import (
	"context"
	"time"

	"github.com/ally-360/pos-terminal/internal/infra"
	"github.com/ally-360/pos-terminal/internal/model"

	"github.com/rs/zerolog/log"
)

const defaultShiftPollInterval = 15 * time.Second

// RegisterSyncer is the part of the register service the poller drives.
type RegisterSyncer interface {
	Sync(ctx context.Context) (*model.RegisterSession, error)
}

// BreakerState reports the backend circuit breaker state.
type BreakerState interface {
	State() infra.CBState
}

// ShiftPollerConfig holds all dependencies for the poller goroutine.
type ShiftPollerConfig struct {
	Registers RegisterSyncer
	CB        BreakerState // optional
	Interval  time.Duration
}

// StartShiftPoller launches the poller. It stops when ctx is cancelled and
// returns a channel closed once the goroutine has exited.
func StartShiftPoller(ctx context.Context, cfg ShiftPollerConfig) <-chan struct{} {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultShiftPollInterval
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(cfg.Interval)
		defer ticker.Stop()

		log.Info().Dur("interval", cfg.Interval).Msg("shift_poller: started")

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("shift_poller: shutting down")
				return
			case <-ticker.C:
				pollShift(ctx, cfg)
			}
		}
	}()
	return done
}

func pollShift(ctx context.Context, cfg ShiftPollerConfig) {
	if cfg.CB != nil && cfg.CB.State() == infra.CBOpen {
		log.Debug().Msg("shift_poller: circuit breaker is open, skipping tick")
		return
	}

	reg, err := cfg.Registers.Sync(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("shift_poller: sync failed")
		return
	}
	if reg == nil {
		log.Debug().Msg("shift_poller: no open register")
		return
	}
	log.Debug().
		Str("register_id", reg.ID).
		Str("status", string(reg.Status)).
		Msg("shift_poller: register in sync")
}
