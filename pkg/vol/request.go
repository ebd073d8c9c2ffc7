package vol

import (
	"context"
	"sync"
	"time"

	"github.com/ajitpratap0/hvol/pkg/connector/core"
	"github.com/ajitpratap0/hvol/pkg/errors"
)

// Request tracks an asynchronous operation a connector left in flight. A
// bound request holds a count on its container until it is freed.
type Request struct {
	mu        sync.Mutex
	container *Container
	token     any
	status    core.RequestStatus
}

// NewRequest returns an unbound request to pass to a routed operation
func NewRequest() *Request {
	return &Request{}
}

// Pending reports whether a connector bound an asynchronous token to r
func (r *Request) Pending() bool {
	if r == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.container != nil
}

// Status returns the last status observed by RequestWait
func (r *Request) Status() core.RequestStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// out returns the connector-facing out-parameter, nil when r is nil
func (r *Request) out() *core.Request {
	if r == nil {
		return nil
	}
	return &core.Request{}
}

// bind records the token a connector stored in out
func (r *Request) bind(c *Container, out *core.Request) error {
	if r == nil || !out.Pending() {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.container != nil {
		return errors.New(errors.ErrorTypeProtocol, "request is already bound to an operation")
	}
	if _, err := c.IncRef(); err != nil {
		return err
	}
	r.container = c
	r.token = out.Token()
	r.status = core.RequestInProgress
	return nil
}

func (r *Request) bound() (*Container, any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.container == nil {
		return nil, nil, errors.New(errors.ErrorTypeProtocol, "request has no operation in flight")
	}
	return r.container, r.token, nil
}

// unbind clears r and returns what it was bound to, so only one caller can
// release a binding
func (r *Request) unbind() (*Container, any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, token := r.container, r.token
	if c == nil {
		return nil, nil, errors.New(errors.ErrorTypeProtocol, "request has no operation in flight")
	}
	r.container, r.token = nil, nil
	return c, token, nil
}

func requestOps(c *Container) (core.RequestOps, error) {
	if c.cls.Request == nil {
		return nil, unsupported(c.cls, "request")
	}
	return c.cls.Request, nil
}

// RequestWait waits up to timeout for the operation behind req
func (l *Library) RequestWait(ctx context.Context, req *Request, timeout time.Duration) (core.RequestStatus, error) {
	c, token, err := req.bound()
	if err != nil {
		return core.RequestFailed, err
	}
	ops, err := requestOps(c)
	if err != nil {
		return core.RequestFailed, err
	}

	var status core.RequestStatus
	err = l.call(ctx, c, "request.wait", func(ctx context.Context) error {
		var err error
		status, err = ops.Wait(ctx, token, timeout)
		return err
	})
	if err != nil {
		return core.RequestFailed, err
	}
	req.mu.Lock()
	req.status = status
	req.mu.Unlock()
	return status, nil
}

// RequestCancel asks the connector to abandon the operation behind req
func (l *Library) RequestCancel(ctx context.Context, req *Request) error {
	c, token, err := req.bound()
	if err != nil {
		return err
	}
	ops, err := requestOps(c)
	if err != nil {
		return err
	}
	return l.call(ctx, c, "request.cancel", func(ctx context.Context) error {
		return ops.Cancel(ctx, token)
	})
}

// RequestFree releases the token behind req and the container hold it
// carries. The hold is dropped even when the connector fails to free the token.
func (l *Library) RequestFree(ctx context.Context, req *Request) error {
	c, token, err := req.unbind()
	if err != nil {
		return err
	}
	ops, err := requestOps(c)
	if err == nil {
		err = l.call(ctx, c, "request.free", func(ctx context.Context) error {
			return ops.Free(ctx, token)
		})
	}

	if _, derr := c.DecRef(ctx); derr != nil {
		err = errors.Cleanup(err, derr)
	}
	return err
}
