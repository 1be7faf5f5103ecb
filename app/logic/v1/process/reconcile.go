package process

import (
	"context"
	"log/slog"

	"github.com/lapomascherj/atmo-core/app/core"
	v1 "github.com/lapomascherj/atmo-core/app/logic/v1"
	"github.com/lapomascherj/atmo-core/pkg/queue"
	"github.com/lapomascherj/atmo-core/pkg/register"
	"github.com/lapomascherj/atmo-core/pkg/safe"
)

func init() {
	register.RegisterFunc[*Process](ProcessKey{}, func(p *Process) {
		reconcileQueue := queue.NewReconcileQueueWithClient(p.core.Cfg().Redis.KeyPrefix, p.asynqClient)
		p.SetReconcileQueue(reconcileQueue)

		reconcileQueue.RegisterHandler(p.asynqMux, func(ctx context.Context, entityIDs []string) error {
			_, err := v1.NewReconcileLogic(ctx, p.core).Reconcile(entityIDs...)
			return err
		})
		p.core.SetReconcileEnqueue(reconcileQueue.EnqueueTask)

		// recurring sweep catches rows the inline path missed
		spec := p.core.Cfg().Reconcile.CronSpecOrDefault()
		if _, err := p.cron.AddFunc(spec, func() {
			safe.Run(func() {
				sweepUnprocessed(p.core)
			})
		}); err != nil {
			slog.Error("failed to schedule reconcile sweep", slog.String("spec", spec), slog.String("error", err.Error()))
		}
	})
}

// sweepUnprocessed drains pending parsed entities batch by batch until the
// backlog is empty or a batch fails.
func sweepUnprocessed(c *core.Core) {
	ctx := context.Background()
	for {
		total, err := c.Store().ParsedEntityStore().TotalUnprocessed(ctx)
		if err != nil {
			slog.Error("failed to count unprocessed entities", slog.String("error", err.Error()))
			return
		}
		if total == 0 {
			return
		}

		report, err := v1.NewReconcileLogic(ctx, c).Reconcile()
		if err != nil {
			slog.Error("reconcile sweep failed", slog.String("error", err.Error()))
			return
		}
		if report.Claimed == 0 {
			// everything pending is claimed by another worker
			return
		}
		slog.Info("reconcile sweep finished batch",
			slog.Int64("claimed", report.Claimed),
			slog.Int64("created", report.Created),
			slog.Int64("updated", report.Updated),
			slog.Int64("skipped", report.Skipped),
			slog.Int64("failed", report.Failed))

		if report.Failed > 0 && report.Created == 0 && report.Updated == 0 && report.Skipped == 0 {
			// a fully failing batch would spin forever, leave it for the next tick
			return
		}
	}
}
