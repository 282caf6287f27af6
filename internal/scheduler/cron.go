package scheduler

import (
	"context"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	core "github.com/R3E-Network/worldcore/internal/core/service"
	"github.com/R3E-Network/worldcore/internal/dispatcher"
	"github.com/R3E-Network/worldcore/internal/interp"
)

// CronScheduler supplements the due-time Scheduler with cron-form periodic
// verb triggers (SPEC_FULL.md §4.6): world content registers a recurring
// verb call ("@every 1h", "0 */6 * * *") independent of the one-shot
// schedule() opcode's delay queue.
//
// Grounded on the teacher's internal/app/services/automation Scheduler /
// JobDispatcher split: a lifecycle-managed component wrapping a polling
// mechanism — here robfig/cron's own goroutine takes the place of the
// teacher's ticker — dispatching into the same Runner the delay-queue
// Scheduler uses.
type CronScheduler struct {
	runner *dispatcher.Runner
	cron   *cron.Cron
	log    *logrus.Entry
	gas    int64

	mu      sync.Mutex
	entries map[string]cron.EntryID
}

// NewCron constructs a CronScheduler. gas defaults to interp.DefaultGas.
func NewCron(runner *dispatcher.Runner, log *logrus.Entry, gas int64) *CronScheduler {
	if gas <= 0 {
		gas = interp.DefaultGas
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &CronScheduler{
		runner:  runner,
		cron:    cron.New(),
		log:     log,
		gas:     gas,
		entries: map[string]cron.EntryID{},
	}
}

// Name identifies the cron scheduler as a lifecycle-managed component.
func (c *CronScheduler) Name() string { return "cron-scheduler" }

// Descriptor implements system.DescriptorProvider.
func (c *CronScheduler) Descriptor() core.Descriptor {
	return core.Descriptor{Name: c.Name(), Layer: core.LayerScheduler, Capabilities: []string{"cron-trigger"}}
}

// Register binds a cron expression to a recurring verb call on entityID.
// Re-registering the same key replaces the previous schedule. key lets
// world content remove a trigger later without tracking cron.EntryID itself.
func (c *CronScheduler) Register(key, cronExpr string, entityID int64, verbName string, args []any) error {
	id, err := c.cron.AddFunc(cronExpr, func() {
		ctx := context.Background()
		_, warnings, err := c.runner.InvokeFresh(ctx, entityID, entityID, verbName, args, c.gas, nil)
		log := c.log.WithFields(logrus.Fields{"entity": entityID, "verb": verbName, "trigger": key})
		if err != nil {
			if se, ok := interp.AsScriptError(err); ok {
				log.WithField("kind", se.Kind).Warn("periodic verb call failed")
			} else {
				log.WithError(err).Warn("periodic verb call failed")
			}
			return
		}
		for _, w := range warnings {
			log.Warn("periodic verb warning: " + w)
		}
	})
	if err != nil {
		return err
	}

	c.mu.Lock()
	if old, ok := c.entries[key]; ok {
		c.cron.Remove(old)
	}
	c.entries[key] = id
	c.mu.Unlock()
	return nil
}

// Unregister removes a previously registered periodic trigger by key.
func (c *CronScheduler) Unregister(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id, ok := c.entries[key]; ok {
		c.cron.Remove(id)
		delete(c.entries, key)
	}
}

// Start begins the cron scheduler's background goroutine.
func (c *CronScheduler) Start(ctx context.Context) error {
	c.cron.Start()
	c.log.Info("cron scheduler started")
	return nil
}

// Stop halts the cron scheduler, waiting for any in-flight trigger to finish.
func (c *CronScheduler) Stop(ctx context.Context) error {
	stopCtx := c.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	c.log.Info("cron scheduler stopped")
	return nil
}
