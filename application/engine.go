// Package application provides the reasoning loop and the batch analysis
// built on it.
package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/adcompliance/domain/agent"
	"github.com/felixgeelhaar/adcompliance/domain/event"
	"github.com/felixgeelhaar/adcompliance/domain/middleware"
	"github.com/felixgeelhaar/adcompliance/domain/tool"
	"github.com/felixgeelhaar/adcompliance/infrastructure/logging"
	inframw "github.com/felixgeelhaar/adcompliance/infrastructure/middleware"
	"github.com/felixgeelhaar/adcompliance/infrastructure/planner"
	"github.com/felixgeelhaar/adcompliance/infrastructure/statemachine"
)

// DefaultMaxIterations is the think-step budget of a run.
const DefaultMaxIterations = 30

// Engine runs the reasoning loop: think, act, observe, until the planner
// finishes or the iteration budget is spent.
type Engine struct {
	planner       planner.Planner
	maxIterations int
	middleware    *middleware.Registry
	notifier      *event.Notifier
	newID         func() string
}

// EngineConfig contains configuration for the engine.
type EngineConfig struct {
	Planner       planner.Planner
	MaxIterations int
	Middleware    *middleware.Registry
	Notifier      *event.Notifier
	NewID         func() string
}

// RunRequest describes one run of the loop.
type RunRequest struct {
	// RunID identifies the run; generated when empty.
	RunID string
	// File is the input file the run analyzes, for labels only.
	File string
	// Task is the user message given to the planner.
	Task string
	// Registry holds the tools the planner may call.
	Registry tool.Registry
}

// NewEngine creates a new engine with the given configuration.
func NewEngine(config EngineConfig) (*Engine, error) {
	if config.Planner == nil {
		return nil, errors.New("planner is required")
	}

	e := &Engine{
		planner:       config.Planner,
		maxIterations: config.MaxIterations,
		middleware:    config.Middleware,
		notifier:      config.Notifier,
		newID:         config.NewID,
	}

	// Set defaults
	if e.maxIterations <= 0 {
		e.maxIterations = DefaultMaxIterations
	}
	if e.newID == nil {
		e.newID = uuid.NewString
	}
	if e.middleware == nil {
		e.middleware = e.defaultMiddlewareChain()
	}

	return e, nil
}

// defaultMiddlewareChain notifies observers around each tool call and logs it.
func (e *Engine) defaultMiddlewareChain() *middleware.Registry {
	return middleware.NewRegistry().
		Use(inframw.Observe(e.notifier)).
		Use(inframw.Logging(inframw.LoggingConfig{}))
}

// MaxIterations returns the think-step budget.
func (e *Engine) MaxIterations() int {
	return e.maxIterations
}

// Run executes the loop. The returned run is never nil once the request is
// valid; its Status tells the outcome. The error is agent.ErrBudgetExhausted
// for exhaustion, wraps agent.ErrTimeout when ctx's deadline passed, is
// ctx.Err() on cancellation and wraps the planner error when planning failed.
func (e *Engine) Run(ctx context.Context, req RunRequest) (*agent.Run, error) {
	if strings.TrimSpace(req.Task) == "" {
		return nil, agent.ErrEmptyTask
	}
	if req.Registry == nil {
		return nil, errors.New("registry is required")
	}
	runID := req.RunID
	if runID == "" {
		runID = e.newID()
	}

	run := agent.NewRun(runID, req.Task)
	machine, err := statemachine.NewLoopMachine()
	if err != nil {
		return nil, fmt.Errorf("failed to create state machine: %w", err)
	}
	interp := statemachine.NewInterpreter(machine, statemachine.NewContext(run, e.maxIterations))

	logging.Info().
		Add(logging.RunID(runID)).
		Add(logging.File(req.File)).
		Add(logging.Count("max_iterations", e.maxIterations)).
		Msg("run started")

	interp.Start()
	defer interp.Stop()

	tools := toolInfos(req.Registry)
	lastFinal := ""

	for {
		if err := ctx.Err(); err != nil {
			return run, e.abort(interp, run, err)
		}
		if !statemachine.WithinBudget(run.Iterations+1, e.maxIterations) {
			return run, e.exhaust(interp, run)
		}

		run.Iterations++
		decision, err := e.think(ctx, req, run, tools)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return run, e.abort(interp, run, ctxErr)
			}
			var formatErr *planner.FormatError
			if errors.As(err, &formatErr) {
				run.AddStep(agent.Step{
					Iteration:   run.Iterations,
					Thought:     formatErr.Output,
					Observation: formatObservation(formatErr),
					IsError:     true,
				})
				logging.Warn().
					Add(logging.RunID(runID)).
					Add(logging.Iteration(run.Iterations)).
					Add(logging.ErrorField(err)).
					Msg("unparseable planner output")
				continue
			}
			return run, e.fail(interp, run, fmt.Errorf("planner error: %w", err))
		}

		logging.Debug().
			Add(logging.RunID(runID)).
			Add(logging.Iteration(run.Iterations)).
			Add(logging.Decision(decision.Type)).
			Msg("planner decision")

		switch decision.Type {
		case agent.DecisionFinish:
			answer := strings.TrimSpace(decision.Finish.Answer)
			if answer == "" {
				answer = lastFinal
			}
			if err := interp.Transition(agent.StateDone); err != nil {
				return run, e.fail(interp, run, err)
			}
			run.Complete(answer)
			logging.Info().
				Add(logging.RunID(runID)).
				Add(logging.Iteration(run.Iterations)).
				Add(logging.Duration(run.Duration())).
				Msg("run completed")
			return run, nil

		case agent.DecisionCallTool:
			if err := interp.Transition(agent.StateActing); err != nil {
				return run, e.fail(interp, run, err)
			}
			step, final := e.act(ctx, req, run, decision)
			run.AddStep(step)
			if final {
				lastFinal = step.Observation
			}
			if err := interp.Transition(agent.StateThinking); err != nil {
				return run, e.fail(interp, run, err)
			}

		default:
			return run, e.fail(interp, run, fmt.Errorf("unknown decision type: %s", decision.Type))
		}
	}
}

// think asks the planner for the next decision under the thinking stage.
func (e *Engine) think(ctx context.Context, req RunRequest, run *agent.Run, tools []planner.ToolInfo) (agent.Decision, error) {
	stage := event.Stage{RunID: run.ID, File: req.File, Name: event.StageThinking, Iteration: run.Iterations}
	ctx = event.WithStage(ctx, stage)

	e.notifier.Enter(ctx, stage)
	start := time.Now()
	decision, err := e.planner.Plan(ctx, planner.PlanRequest{
		RunID:         run.ID,
		Task:          run.Task,
		Iteration:     run.Iterations,
		MaxIterations: e.maxIterations,
		Tools:         tools,
		Steps:         run.Steps,
	})
	e.notifier.Exit(ctx, stage, event.StageResult{Duration: time.Since(start), Err: err})
	return decision, err
}

// act runs the chosen tool through the middleware chain. Every failure
// becomes an error observation. final reports a successful final tool.
func (e *Engine) act(ctx context.Context, req RunRequest, run *agent.Run, decision agent.Decision) (agent.Step, bool) {
	call := decision.CallTool
	step := agent.Step{
		Iteration: run.Iterations,
		Thought:   decision.Thought,
		Action:    call.ToolName,
		Input:     call.Input,
	}

	t, ok := req.Registry.Get(call.ToolName)
	if !ok {
		step.Observation = fmt.Sprintf("%v: %s. Outils disponibles : %s",
			tool.ErrToolNotFound, call.ToolName, strings.Join(req.Registry.Names(), ", "))
		step.IsError = true
		return step, false
	}

	execCtx := &middleware.ExecutionContext{
		RunID:        run.ID,
		File:         req.File,
		Iteration:    run.Iterations,
		CurrentState: run.CurrentState,
		Tool:         t,
		Input:        call.Input,
		Reason:       call.Reason,
	}
	core := func(ctx context.Context, ec *middleware.ExecutionContext) (tool.Result, error) {
		return ec.Tool.Execute(ctx, ec.Input)
	}

	start := time.Now()
	result, err := e.middleware.Chain()(core)(ctx, execCtx)
	step.Duration = time.Since(start)
	if err != nil {
		step.Observation = err.Error()
		step.IsError = true
		return step, false
	}
	step.Observation = result.Output
	return step, t.Annotations().Final
}

func (e *Engine) exhaust(interp *statemachine.Interpreter, run *agent.Run) error {
	if !interp.IsTerminal() {
		_ = interp.Transition(agent.StateFailed)
	}
	run.Exhaust()
	logging.Warn().
		Add(logging.RunID(run.ID)).
		Add(logging.Iteration(run.Iterations)).
		Msg("iteration budget exhausted")
	return agent.ErrBudgetExhausted
}

func (e *Engine) abort(interp *statemachine.Interpreter, run *agent.Run, ctxErr error) error {
	err := ctxErr
	if errors.Is(ctxErr, context.DeadlineExceeded) {
		err = fmt.Errorf("%w: %v", agent.ErrTimeout, ctxErr)
	}
	return e.fail(interp, run, err)
}

func (e *Engine) fail(interp *statemachine.Interpreter, run *agent.Run, err error) error {
	if !interp.IsTerminal() {
		_ = interp.Transition(agent.StateFailed)
	}
	run.Fail(err.Error())
	logging.Error().
		Add(logging.RunID(run.ID)).
		Add(logging.State(run.CurrentState)).
		Add(logging.Iteration(run.Iterations)).
		Add(logging.ErrorField(err)).
		Msg("run failed")
	return err
}

func toolInfos(reg tool.Registry) []planner.ToolInfo {
	tools := reg.List()
	infos := make([]planner.ToolInfo, len(tools))
	for i, t := range tools {
		infos[i] = planner.ToolInfo{
			Name:        t.Name(),
			Description: t.Description(),
			Schema:      t.InputSchema().Raw(),
		}
	}
	return infos
}

func formatObservation(err *planner.FormatError) string {
	return fmt.Sprintf("Erreur de format : %v. Réponds avec un seul objet JSON conforme au protocole.", err.Err)
}
