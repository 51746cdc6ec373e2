package executor

import (
	"context"
	"fmt"
	"math"
	"time"
)

// PrefixExecutor prepends a fixed argument list to the command before
// delegating. Useful for wrappers such as ulimit shims, emulators like qemu,
// or memory checkers like valgrind.
type PrefixExecutor struct {
	prefix []string
	inner  Executor
}

// NewPrefix wraps inner so that every command starts with prefix
func NewPrefix(prefix []string, inner Executor) *PrefixExecutor {
	return &PrefixExecutor{prefix: append([]string(nil), prefix...), inner: inner}
}

// Kind returns KindWrapped
func (e *PrefixExecutor) Kind() Kind {
	return KindWrapped
}

// Unwrap returns the wrapped executor
func (e *PrefixExecutor) Unwrap() Executor {
	return e.inner
}

// Run delegates with the prefixed command
func (e *PrefixExecutor) Run(ctx context.Context, req Request) (*Result, error) {
	cmd := req.command()
	req.Command = append(append(make([]string, 0, len(e.prefix)+len(cmd)), e.prefix...), cmd...)
	return e.inner.Run(ctx, req)
}

// PostfixExecutor appends a fixed argument list to the command before
// delegating.
type PostfixExecutor struct {
	postfix []string
	inner   Executor
}

// NewPostfix wraps inner so that every command ends with postfix
func NewPostfix(postfix []string, inner Executor) *PostfixExecutor {
	return &PostfixExecutor{postfix: append([]string(nil), postfix...), inner: inner}
}

// Kind returns KindWrapped
func (e *PostfixExecutor) Kind() Kind {
	return KindWrapped
}

// Unwrap returns the wrapped executor
func (e *PostfixExecutor) Unwrap() Executor {
	return e.inner
}

// Run delegates with the postfixed command
func (e *PostfixExecutor) Run(ctx context.Context, req Request) (*Result, error) {
	req.Command = append(req.command(), e.postfix...)
	return e.inner.Run(ctx, req)
}

// NewTimeout wraps inner with the coreutils timeout command.
//
// Deprecated: prefer a context deadline set by the harness. This remains for
// harnesses that cannot enforce their own timeout.
func NewTimeout(d time.Duration, inner Executor) *PrefixExecutor {
	return NewPrefix([]string{"timeout", TimeoutArg(d)}, inner)
}

// TimeoutArg formats d as a whole number of seconds for timeout(1),
// rounding up so short durations never become zero.
func TimeoutArg(d time.Duration) string {
	return fmt.Sprintf("%ds", int64(math.Ceil(d.Seconds())))
}
