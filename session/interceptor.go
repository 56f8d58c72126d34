package session

import "context"

// Interceptor observes every statement lifecycle transition. A hook may
// return a replacement statement, which the following interceptors and
// stages receive; returning nil keeps the statement unchanged.
//
// Exception receives the failure of any stage after construction. It may
// wrap or translate the error but cannot swallow it: a nil return keeps the
// original error. Closed runs exactly once per statement, after Exception.
type Interceptor interface {
	Construct(ctx context.Context, st *Statement) *Statement
	Preparing(ctx context.Context, st *Statement) *Statement
	Prepared(ctx context.Context, st *Statement) *Statement
	Executed(ctx context.Context, st *Statement) *Statement
	Exception(ctx context.Context, st *Statement, err error) error
	Closed(ctx context.Context, st *Statement) *Statement
}

// NopInterceptor implements every hook as a no-op. Embed it to implement
// only some hooks.
type NopInterceptor struct{}

func (NopInterceptor) Construct(context.Context, *Statement) *Statement { return nil }
func (NopInterceptor) Preparing(context.Context, *Statement) *Statement { return nil }
func (NopInterceptor) Prepared(context.Context, *Statement) *Statement { return nil }
func (NopInterceptor) Executed(context.Context, *Statement) *Statement { return nil }
func (NopInterceptor) Exception(_ context.Context, _ *Statement, err error) error { return err }
func (NopInterceptor) Closed(context.Context, *Statement) *Statement { return nil }

// Chain runs interceptors in registration order.
type Chain []Interceptor

type hook func(Interceptor, context.Context, *Statement) *Statement

func (c Chain) run(ctx context.Context, st *Statement, h hook) *Statement {
	for _, i := range c {
		if next := h(i, ctx, st); next != nil {
			st = next
		}
	}
	return st
}

func (c Chain) construct(ctx context.Context, st *Statement) *Statement {
	return c.run(ctx, st, Interceptor.Construct)
}

func (c Chain) preparing(ctx context.Context, st *Statement) *Statement {
	return c.run(ctx, st, Interceptor.Preparing)
}

func (c Chain) prepared(ctx context.Context, st *Statement) *Statement {
	return c.run(ctx, st, Interceptor.Prepared)
}

func (c Chain) executed(ctx context.Context, st *Statement) *Statement {
	return c.run(ctx, st, Interceptor.Executed)
}

func (c Chain) closed(ctx context.Context, st *Statement) *Statement {
	return c.run(ctx, st, Interceptor.Closed)
}

func (c Chain) exception(ctx context.Context, st *Statement, err error) error {
	for _, i := range c {
		if wrapped := i.Exception(ctx, st, err); wrapped != nil {
			err = wrapped
		}
	}
	return err
}
