package tokens

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"calendar-chat/internal/common/logging"
	"calendar-chat/internal/storage"
)

// OnDemandRefresher is the slice of the Supervisor the sweep needs: an
// unconditional refresh that ignores the buffered expiry check.
type OnDemandRefresher interface {
	RefreshNow(ctx context.Context, userID string) error
}

// Sweeper proactively refreshes credentials that are about to expire so
// interactive requests rarely pay the refresh latency. Reactive refresh in
// the Supervisor remains the source of truth; the sweep is an optimization
// and every failure here is retried on the next run or on demand.
type Sweeper struct {
	store      storage.CredentialStore
	supervisor OnDemandRefresher
	logger     logging.Logger

	schedule string
	horizon  time.Duration
	cron     *cron.Cron
}

// NewSweeper creates a Sweeper that runs on the given cron schedule and
// refreshes credentials expiring within the horizon.
func NewSweeper(store storage.CredentialStore, supervisor OnDemandRefresher, schedule string, horizon time.Duration) *Sweeper {
	if schedule == "" {
		schedule = "*/10 * * * *"
	}
	if horizon <= 0 {
		horizon = 15 * time.Minute
	}
	return &Sweeper{
		store:      store,
		supervisor: supervisor,
		logger:     logging.GetGlobalLogger(),
		schedule:   schedule,
		horizon:    horizon,
	}
}

// Start schedules the sweep. It returns an error only when the cron
// expression cannot be parsed.
func (s *Sweeper) Start() error {
	s.cron = cron.New()
	if _, err := s.cron.AddFunc(s.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		s.Sweep(ctx)
	}); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("Token sweeper started",
		logging.Field{Key: "schedule", Value: s.schedule},
		logging.Field{Key: "horizon", Value: s.horizon.String()},
	)
	return nil
}

// Stop halts the schedule and waits for an in-flight sweep to finish
func (s *Sweeper) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

// Sweep refreshes every credential expiring within the horizon. Individual
// failures are logged and skipped so one broken account cannot starve the
// rest of the sweep.
func (s *Sweeper) Sweep(ctx context.Context) {
	before := time.Now().Add(s.horizon).Unix()
	creds, err := s.store.ListExpiringCredentials(ctx, before)
	if err != nil {
		s.logger.Error("Failed to list expiring credentials", err)
		return
	}
	if len(creds) == 0 {
		return
	}

	s.logger.Debug("Sweeping expiring credentials",
		logging.Field{Key: "count", Value: len(creds)},
	)

	refreshed := 0
	for _, cred := range creds {
		if ctx.Err() != nil {
			return
		}
		if err := s.supervisor.RefreshNow(ctx, cred.UserID); err != nil {
			s.logger.Warn("Proactive refresh failed",
				logging.Field{Key: "user_id", Value: cred.UserID},
				logging.Field{Key: "error", Value: err},
			)
			continue
		}
		refreshed++
	}

	s.logger.Info("Token sweep complete",
		logging.Field{Key: "candidates", Value: len(creds)},
		logging.Field{Key: "refreshed", Value: refreshed},
	)
}
