// Package jobs runs the scheduled background work of the API.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/fee"
)

const jobTimeout = 10 * time.Minute

type Scheduler struct {
	cron   *cron.Cron
	conf   *core.Config
	logger core.Logger
	fees   *fee.Service
}

// NewScheduler registers the enabled jobs. Schedules are standard 5-field cron specs in UTC.
func NewScheduler(conf *core.Config, logger core.Logger, fees *fee.Service) (*Scheduler, error) {
	s := &Scheduler{
		cron:   cron.New(cron.WithLocation(time.UTC)),
		conf:   conf,
		logger: logger,
		fees:   fees,
	}
	if conf.Fees.RemindersEnabled {
		if _, err := s.cron.AddFunc(conf.Fees.RemindersSpec, s.RemindOverdue); err != nil {
			return nil, errors.Wrapf(err, "scheduling overdue reminders %q", conf.Fees.RemindersSpec)
		}
	}
	return s, nil
}

// Jobs returns the number of registered jobs.
func (s *Scheduler) Jobs() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) Start() {
	s.logger.Info(fmt.Sprintf("Starting scheduler : %d job(s)", s.Jobs()))
	s.cron.Start()
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("Scheduler stopped")
}

// RemindOverdue emails the parents of students with overdue charges.
func (s *Scheduler) RemindOverdue() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	sent, err := s.fees.RemindOverdue(ctx, core.Today())
	if err != nil {
		s.logger.Error(fmt.Sprintf("overdue reminders: %v", err), err)
		return
	}
	s.logger.Info(fmt.Sprintf("overdue reminders : %d sent", sent))
}
