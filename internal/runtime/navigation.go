package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
)

// run is the state of a single execution. It is owned by one goroutine.
type run struct {
	engine    *Engine
	exec      *domain.Execution
	handle    *domain.Handle
	tree      *domain.Tree
	providers []ports.Provider
	payload   domain.Payload
	logger    *slog.Logger
}

func (r *run) execute(ctx context.Context) {
	if err := r.initProviders(); err != nil {
		r.fail(ctx, err)
		return
	}
	if err := r.walk(ctx, r.tree.Root()); err != nil {
		r.fail(ctx, err)
		return
	}

	r.exec.Settle(domain.StatusSucceeded)
	r.emit(ctx, domain.EventExecutionEnd, nil, map[string]any{
		domain.DataPayload: r.payload.Clone(),
	})
	r.logger.Debug("execution finished")
	r.handle.Resolve(r.payload)
}

// walk executes the elements of a block in order.
// A branch map is only entered through the Path selected by the step before it.
func (r *run) walk(ctx context.Context, block *domain.Block) error {
	for i := 0; i < len(block.Elements); i++ {
		el := block.Elements[i]
		if el.Step == nil {
			// Not selected by the preceding step: fall through to the next node.
			continue
		}

		path, err := r.step(ctx, el.Step)
		if err != nil {
			return err
		}
		if path == nil {
			continue
		}

		var branch *domain.Block
		if i+1 < len(block.Elements) && block.Elements[i+1].Step == nil {
			branch = block.Elements[i+1].Paths[path.Name]
		}
		if branch == nil {
			return r.structuralError(el.Step.Details, path.Name)
		}
		if err := r.walk(ctx, branch); err != nil {
			return err
		}
		i++
	}
	return nil
}

// step runs one function and interprets its result. It returns the selected path, if any.
func (r *run) step(ctx context.Context, s *domain.Step) (*domain.Path, error) {
	fn := s.Details
	if err := ctx.Err(); err != nil {
		return nil, r.newError(domain.KindStep, fn, err)
	}

	stepCtx, err := r.buildContext(ctx, fn)
	if err != nil {
		return nil, err
	}

	r.exec.Enter(fn.Index)
	defer r.exec.Leave(fn.Index)

	r.emit(ctx, domain.EventFunctionStart, &fn.Index, map[string]any{
		domain.DataName:    fn.Name,
		domain.DataPayload: r.payload.Clone(),
	})

	res, err := invoke(s.Fn, stepCtx)
	for err == nil && res.Kind() == domain.ResultDeferred {
		res, err = r.await(ctx, res.Deferred())
	}
	if err != nil {
		return nil, r.newError(domain.KindStep, fn, err)
	}

	var selected *domain.Path
	switch res.Kind() {
	case domain.ResultMerge:
		r.payload = r.payload.Merge(res.Payload())
	case domain.ResultPath:
		p, _ := res.Path()
		if !slices.Contains(fn.Paths, p.Name) {
			return nil, r.structuralError(fn, p.Name)
		}
		r.payload = r.payload.Merge(p.Payload)
		selected = &p
		r.emit(ctx, domain.EventPathStart, &fn.Index, map[string]any{
			domain.DataName: fn.Name,
			domain.DataPath: p.Name,
		})
	}

	if res.Reported() {
		r.emit(ctx, domain.EventFunctionEnd, &fn.Index, map[string]any{
			domain.DataName:    fn.Name,
			domain.DataOutput:  res.Payload(),
			domain.DataPayload: r.payload.Clone(),
		})
	}

	return selected, nil
}

// invoke calls the step, converting a panic into an error.
func invoke(fn domain.StepFunc, ctx *domain.Context) (res domain.Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return fn(ctx)
}

// await suspends the run until the deferred computation settles or ctx is cancelled.
func (r *run) await(ctx context.Context, fn domain.DeferredFunc) (domain.Result, error) {
	if fn == nil {
		return domain.Result{}, errors.New("deferred result has no continuation")
	}

	type outcome struct {
		res domain.Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		var out outcome
		defer func() {
			if rec := recover(); rec != nil {
				out.err = fmt.Errorf("panic: %v", rec)
			}
			done <- out
		}()
		out.res, out.err = fn(ctx)
	}()

	select {
	case out := <-done:
		return out.res, out.err
	case <-ctx.Done():
		return domain.Result{}, ctx.Err()
	}
}

func (r *run) structuralError(fn domain.FunctionDetails, name string) error {
	return r.newError(domain.KindStructural, fn, fmt.Errorf("%w: tree must declare a path named %q", domain.ErrUnknownPath, name))
}

func (r *run) newError(kind domain.ErrorKind, fn domain.FunctionDetails, cause error) *domain.ExecutionError {
	return &domain.ExecutionError{
		Kind:          kind,
		Message:       cause.Error(),
		FunctionIndex: fn.Index,
		FunctionName:  fn.Name,
		ExecutionID:   r.exec.ID,
		Err:           cause,
	}
}

// fail settles the run with err. No executionEnd is emitted for a failed run.
func (r *run) fail(ctx context.Context, err error) {
	var execErr *domain.ExecutionError
	if !errors.As(err, &execErr) {
		execErr = r.newError(domain.KindStep, domain.FunctionDetails{Index: -1}, err)
	}

	r.exec.Settle(domain.StatusFailed)

	var index *int
	if execErr.FunctionIndex >= 0 {
		index = &execErr.FunctionIndex
	}
	r.emit(ctx, domain.EventFunctionError, index, map[string]any{
		domain.DataName: execErr.FunctionName,
		domain.DataError: map[string]any{
			"kind":          string(execErr.Kind),
			"name":          execErr.FunctionName,
			"message":       execErr.Message,
			"functionIndex": execErr.FunctionIndex,
			"executionId":   execErr.ExecutionID,
		},
		domain.DataPayload: r.payload.Clone(),
	})
	r.logger.Debug("execution failed", "kind", execErr.Kind, "function", execErr.FunctionName, "err", execErr.Err)
	r.handle.Reject(execErr)
}
