// Package command runs multi-step mutations as apply/rollback pairs.
package command

import (
	"context"
	"errors"
	"fmt"
)

// Command is one reversible step. Rollback may be nil for steps with nothing
// to undo.
type Command struct {
	Name     string
	Apply    func(ctx context.Context) error
	Rollback func(ctx context.Context) error
}

// Result is the outcome of Execute.
type Result struct {
	OK           bool
	Failed       string
	Reason       string
	Err          error
	RollbackErrs []error
}

// Error returns the failure as an error, nil when OK.
func (r Result) Error() error {
	if r.OK {
		return nil
	}
	if len(r.RollbackErrs) == 0 {
		return r.Err
	}
	return errors.Join(append([]error{r.Err}, r.RollbackErrs...)...)
}

// Execute applies cmds in order. On the first failure the already applied
// commands are rolled back in reverse order and Execute stops.
func Execute(ctx context.Context, cmds ...Command) Result {
	applied := make([]Command, 0, len(cmds))
	for _, cmd := range cmds {
		if err := ctx.Err(); err != nil {
			return rollback(ctx, applied, cmd.Name, err)
		}
		if err := cmd.Apply(ctx); err != nil {
			return rollback(ctx, applied, cmd.Name, err)
		}
		applied = append(applied, cmd)
	}
	return Result{OK: true}
}

func rollback(ctx context.Context, applied []Command, failed string, cause error) Result {
	res := Result{
		Failed: failed,
		Reason: fmt.Sprintf("%s: %v", failed, cause),
		Err:    cause,
	}
	// Rollbacks run even if ctx was cancelled.
	ctx = context.WithoutCancel(ctx)
	for i := len(applied) - 1; i >= 0; i-- {
		cmd := applied[i]
		if cmd.Rollback == nil {
			continue
		}
		if err := cmd.Rollback(ctx); err != nil {
			res.RollbackErrs = append(res.RollbackErrs, fmt.Errorf("rollback %s: %w", cmd.Name, err))
		}
	}
	return res
}
