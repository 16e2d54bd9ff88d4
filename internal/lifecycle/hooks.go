package lifecycle

import "context"

// Stage orders shutdown hooks. Lower stages finish before higher ones start.
type Stage int

const (
	// StageIntake stops accepting updates and finishes in-flight workflow operations.
	StageIntake Stage = iota
	// StageFlush writes buffered state.
	StageFlush
	// StageClose releases connections.
	StageClose
)

// Hook describes a named shutdown hook.
type Hook struct {
	Name  string
	Stage Stage
	Fn    func(ctx context.Context) error
}
