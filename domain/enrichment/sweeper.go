package enrichment

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/fx"

	"github.com/ragedhq/raged/internal/config"
	"github.com/ragedhq/raged/pkg/logger"
)

// Sweeper periodically releases expired task leases so work held by a
// crashed worker becomes claimable again.
type Sweeper struct {
	cron    *cron.Cron
	service *Service
	log     *slog.Logger
}

// NewSweeper creates the stale lease sweeper
func NewSweeper(service *Service, log *slog.Logger) *Sweeper {
	return &Sweeper{
		cron:    cron.New(),
		service: service,
		log:     log.With(logger.Scope("enrichment-sweeper")),
	}
}

// RegisterSweeper schedules the sweep when enrichment is enabled.
func RegisterSweeper(lc fx.Lifecycle, cfg *config.Config, sweeper *Sweeper) error {
	if !cfg.Enrichment.Enabled {
		return nil
	}

	_, err := sweeper.cron.AddFunc(cfg.Enrichment.StaleSweepCron, sweeper.sweep)
	if err != nil {
		return err
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			sweeper.cron.Start()
			sweeper.log.Info("stale lease sweep scheduled",
				slog.String("schedule", cfg.Enrichment.StaleSweepCron))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			stopCtx := sweeper.cron.Stop()
			select {
			case <-stopCtx.Done():
			case <-ctx.Done():
				sweeper.log.Warn("sweeper stop timeout")
			}
			return nil
		},
	})
	return nil
}

func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	count, err := s.service.RecoverStale(ctx)
	if err != nil {
		s.log.Error("stale lease sweep failed", logger.Error(err))
		return
	}
	if count > 0 {
		s.log.Info("stale lease sweep", slog.Int("recovered", count))
	}
}
