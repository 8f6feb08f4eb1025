package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vibast-solutions/ms-go-memberships/config"
)

var (
	expireWorker        bool
	cancelPendingWorker bool
)

var expireCmd = &cobra.Command{
	Use:   "expire",
	Short: "Expire memberships whose scheduled end has passed",
	Run: func(_ *cobra.Command, _ []string) {
		runCommand(
			"expire",
			expireWorker,
			func(cfg *config.Config) string { return cfg.Jobs.ExpirySchedule },
			func(ctx context.Context, c *container) error {
				result, err := c.expiries.SweepExpiries(ctx)
				if err != nil {
					return err
				}
				logrus.WithFields(logrus.Fields{
					"expired": result.Expired,
					"stale":   result.Stale,
					"failed":  result.Failed,
				}).Info("expiry sweep finished")
				return nil
			},
		)
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel",
	Short: "Run cancellation-related processing commands",
}

var cancelPendingOrdersCmd = &cobra.Command{
	Use:   "pending-orders",
	Short: "Abandon checkout orders left pending past the configured timeout",
	Run: func(_ *cobra.Command, _ []string) {
		runCommand(
			"cancel_pending_orders",
			cancelPendingWorker,
			func(cfg *config.Config) string { return cfg.Jobs.PendingOrderSchedule },
			func(ctx context.Context, c *container) error {
				abandoned, err := c.checkout.AbandonStalePendingOrders(ctx)
				if err != nil {
					return err
				}
				logrus.WithField("abandoned", abandoned).Info("pending order cleanup finished")
				return nil
			},
		)
	},
}

func init() {
	rootCmd.AddCommand(expireCmd)
	rootCmd.AddCommand(cancelCmd)
	cancelCmd.AddCommand(cancelPendingOrdersCmd)

	expireCmd.Flags().BoolVar(&expireWorker, "worker", false, "Run continuously using the configured cron schedule")
	cancelPendingOrdersCmd.Flags().BoolVar(&cancelPendingWorker, "worker", false, "Run continuously using the configured cron schedule")
}

func runCommand(
	name string,
	worker bool,
	scheduleResolver func(cfg *config.Config) string,
	fn func(ctx context.Context, c *container) error,
) {
	c := mustBuildContainer()
	defer c.Close()

	if worker {
		runWorker(name, scheduleResolver(c.cfg), c, fn)
		return
	}

	ctx := context.Background()
	runJob(name, func() error { return fn(ctx, c) })
}

func runWorker(
	name string,
	schedule string,
	c *container,
	fn func(ctx context.Context, c *container) error,
) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scheduler := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := scheduler.AddFunc(schedule, func() {
		runJob(name, func() error { return fn(ctx, c) })
	}); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{"job": name, "schedule": schedule}).Fatal("invalid worker schedule")
	}

	runJob(name, func() error { return fn(ctx, c) })

	scheduler.Start()
	logrus.WithFields(logrus.Fields{"job": name, "schedule": schedule}).Info("Worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.WithField("job", name).Info("Worker shutdown requested")

	cancel()
	<-scheduler.Stop().Done()
}

func runJob(name string, fn func() error) {
	start := time.Now()
	err := fn()
	latency := time.Since(start)
	if err != nil {
		logrus.WithError(err).WithField("job", name).WithField("latency", latency.String()).Error("job_failed")
		return
	}
	logrus.WithField("job", name).WithField("latency", latency.String()).Info("job_completed")
}
