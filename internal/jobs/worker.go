package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/Proton-105/homebox-bot/pkg/metrics"
)

// Worker provides APIs to register handlers and control the background worker lifecycle.
type Worker interface {
	RegisterHandler(taskType string, handler asynq.Handler)
	Run() error
	Shutdown()
}

type worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	log    *slog.Logger
}

var _ Worker = (*worker)(nil)

// NewWorker constructs a Worker backed by an asynq.Server instance.
func NewWorker(redisOpt asynq.RedisConnOpt, log *slog.Logger) Worker {
	if log == nil {
		log = slog.Default()
	}

	server := asynq.NewServer(redisOpt, asynq.Config{
		Queues:      map[string]int{QueueDefault: 3, QueueLow: 1},
		Concurrency: 2,
		Logger:      newAsynqLogger(log),
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			metrics.RecordError(task.Type(), "low")
			log.WarnContext(ctx, "jobs worker: task failed", slog.String("task", task.Type()), slog.Any("error", err))
		}),
	})

	return &worker{
		server: server,
		mux:    asynq.NewServeMux(),
		log:    log,
	}
}

// RegisterHandler wires a task type to the provided handler.
func (w *worker) RegisterHandler(taskType string, handler asynq.Handler) {
	w.mux.Handle(taskType, handler)
}

// Run blocks processing tasks until Shutdown.
func (w *worker) Run() error {
	w.log.Info("jobs worker: starting processing loop")
	return w.server.Run(w.mux)
}

// Shutdown gracefully stops the worker.
func (w *worker) Shutdown() {
	w.log.Info("jobs worker: shutting down")
	w.server.Shutdown()
}

// asynqLogger routes asynq's internal logging into slog.
type asynqLogger struct {
	log *slog.Logger
}

func newAsynqLogger(log *slog.Logger) asynqLogger {
	return asynqLogger{log: log.With(slog.String("component", "asynq"))}
}

func (l asynqLogger) Debug(args ...interface{}) { l.log.Debug(sprint(args)) }
func (l asynqLogger) Info(args ...interface{})  { l.log.Info(sprint(args)) }
func (l asynqLogger) Warn(args ...interface{})  { l.log.Warn(sprint(args)) }
func (l asynqLogger) Error(args ...interface{}) { l.log.Error(sprint(args)) }
func (l asynqLogger) Fatal(args ...interface{}) { l.log.Error(sprint(args)) }
