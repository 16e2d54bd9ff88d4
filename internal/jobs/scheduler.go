package jobs

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// Schedule is how often each housekeeping task runs and with which thresholds.
type Schedule struct {
	PhotoSweepEvery time.Duration
	StagedTTL       time.Duration
	SessionEvery    time.Duration
	IdleTTL         time.Duration
}

type Scheduler interface {
	RegisterTasks(s Schedule) error
	Run() error
	Shutdown()
}

type scheduler struct {
	asynqScheduler *asynq.Scheduler
	log            *slog.Logger
}

func NewScheduler(redisOpt asynq.RedisConnOpt, log *slog.Logger) Scheduler {
	if log == nil {
		log = slog.Default()
	}

	return &scheduler{
		asynqScheduler: asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{
			Location: time.UTC,
		}),
		log: log,
	}
}

// RegisterTasks adds the periodic entries. A zero interval or threshold skips that task.
func (s *scheduler) RegisterTasks(sched Schedule) error {
	if sched.PhotoSweepEvery > 0 && sched.StagedTTL > 0 {
		task, err := NewPhotoSweepTask(sched.StagedTTL)
		if err != nil {
			return err
		}
		if err := s.register(sched.PhotoSweepEvery, task); err != nil {
			return err
		}
	}

	if sched.SessionEvery > 0 && sched.IdleTTL > 0 {
		task, err := NewSessionExpireTask(sched.IdleTTL)
		if err != nil {
			return err
		}
		if err := s.register(sched.SessionEvery, task); err != nil {
			return err
		}
	}

	return nil
}

func (s *scheduler) register(every time.Duration, task *asynq.Task) error {
	spec := fmt.Sprintf("@every %s", every)
	if _, err := s.asynqScheduler.Register(spec, task); err != nil {
		return fmt.Errorf("register %s: %w", task.Type(), err)
	}

	s.log.Info("scheduler: registered task", slog.String("task", task.Type()), slog.String("spec", spec))
	return nil
}

// Run blocks until Shutdown is called.
func (s *scheduler) Run() error {
	s.log.Info("scheduler: starting")
	return s.asynqScheduler.Run()
}

func (s *scheduler) Shutdown() {
	s.log.Info("scheduler: shutting down")
	s.asynqScheduler.Shutdown()
}
