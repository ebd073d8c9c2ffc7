package vol

import (
	"context"
	"sync"

	"github.com/ajitpratap0/hvol/pkg/errors"
	"github.com/ajitpratap0/hvol/pkg/ids"
	"github.com/ajitpratap0/hvol/pkg/logger"
	"github.com/ajitpratap0/hvol/pkg/metrics"
	"go.uber.org/zap"
)

// Role is the part a Container plays in an operation
type Role int

const (
	// RolePrimary is the container an operation is routed to
	RolePrimary Role = iota
	// RoleSource is the container data is read from in a two-container operation
	RoleSource
	// RoleDestination is the container data is written to in a two-container operation
	RoleDestination
	roleCount
)

func (r Role) String() string {
	switch r {
	case RolePrimary:
		return "primary"
	case RoleSource:
		return "source"
	case RoleDestination:
		return "destination"
	default:
		return "unknown"
	}
}

func (r Role) valid() bool {
	return r >= RolePrimary && r < roleCount
}

// frame is one active container context. count tracks nested pushes of the
// same container.
type frame struct {
	container *Container
	wrapCtx   any
	count     int
}

// Session holds the container contexts of one logical call chain. It travels
// in a context.Context; PushContext installs one when none is present.
type Session struct {
	mu     sync.Mutex
	stacks [roleCount][]*frame
}

type sessionKey struct{}

func stackLogger() *zap.Logger {
	return logger.With(zap.String("component", "context_stack"))
}

// SessionFrom returns the session carried by ctx, or nil
func SessionFrom(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionKey{}).(*Session)
	return s
}

// WithSession returns ctx carrying a session, reusing one already present
func WithSession(ctx context.Context) (context.Context, *Session) {
	if s := SessionFrom(ctx); s != nil {
		return ctx, s
	}
	s := &Session{}
	return context.WithValue(ctx, sessionKey{}, s), s
}

func (s *Session) top(role Role) *frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	stack := s.stacks[role]
	if len(stack) == 0 {
		return nil
	}
	return stack[len(stack)-1]
}

// Active returns the container on top of role's stack, or nil
func (s *Session) Active(role Role) *Container {
	if s == nil || !role.valid() {
		return nil
	}
	if f := s.top(role); f != nil {
		return f.container
	}
	return nil
}

// Count returns the nesting count of the top context for role, 0 when none is active
func (s *Session) Count(role Role) int {
	if s == nil || !role.valid() {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stack := s.stacks[role]
	if len(stack) == 0 {
		return 0
	}
	return stack[len(stack)-1].count
}

// Depth returns how many distinct contexts are stacked for role
func (s *Session) Depth(role Role) int {
	if s == nil || !role.valid() {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.stacks[role])
}

// push makes c the active container for role. Pushing the container already
// on top raises its count; a new frame takes a container reference and the
// connector's wrap context.
func (s *Session) push(ctx context.Context, role Role, c *Container) error {
	s.mu.Lock()
	raised := s.raiseTopLocked(role, c)
	s.mu.Unlock()
	if raised {
		return nil
	}

	if _, err := c.IncRef(); err != nil {
		return err
	}
	var wrapCtx any
	if get := c.cls.Wrap.GetWrapCtx; get != nil {
		var err error
		if wrapCtx, err = get(c.raw); err != nil {
			_, derr := c.DecRef(ctx)
			return errors.Cleanup(errors.Dispatch(err, c.cls.Name, "wrap.get_wrap_ctx"), derr)
		}
	}

	s.mu.Lock()
	if s.raiseTopLocked(role, c) {
		// A concurrent push of c won; hand back what this one acquired
		s.mu.Unlock()
		return s.releaseFrame(ctx, c, wrapCtx)
	}
	s.stacks[role] = append(s.stacks[role], &frame{container: c, wrapCtx: wrapCtx, count: 1})
	s.mu.Unlock()

	metrics.ContextDepth.WithLabelValues(role.String()).Inc()
	stackLogger().Debug("context pushed", zap.Stringer("role", role), zap.Stringer("container", c.id))
	return nil
}

// raiseTopLocked raises the count of role's top frame when it holds c
func (s *Session) raiseTopLocked(role Role, c *Container) bool {
	stack := s.stacks[role]
	if len(stack) == 0 || stack[len(stack)-1].container != c {
		return false
	}
	stack[len(stack)-1].count++
	return true
}

// releaseFrame frees a wrap context and drops the container reference a frame held
func (s *Session) releaseFrame(ctx context.Context, c *Container, wrapCtx any) error {
	var err error
	if wrapCtx != nil && c.cls.Wrap.FreeWrapCtx != nil {
		if ferr := c.cls.Wrap.FreeWrapCtx(wrapCtx); ferr != nil {
			err = errors.Dispatch(ferr, c.cls.Name, "wrap.free_wrap_ctx")
		}
	}
	if _, derr := c.DecRef(ctx); derr != nil {
		err = errors.Cleanup(err, derr)
	}
	return err
}

// pop undoes one push for role. When the top frame's count reaches zero its
// wrap context is freed and its container reference dropped.
func (s *Session) pop(ctx context.Context, role Role) error {
	s.mu.Lock()
	stack := s.stacks[role]
	if len(stack) == 0 {
		s.mu.Unlock()
		return errors.Newf(errors.ErrorTypeProtocol, "no active %s context", role)
	}
	f := stack[len(stack)-1]
	f.count--
	if f.count > 0 {
		s.mu.Unlock()
		return nil
	}
	stack[len(stack)-1] = nil
	s.stacks[role] = stack[:len(stack)-1]
	s.mu.Unlock()

	metrics.ContextDepth.WithLabelValues(role.String()).Dec()
	stackLogger().Debug("context popped", zap.Stringer("role", role), zap.Stringer("container", f.container.id))

	return s.releaseFrame(ctx, f.container, f.wrapCtx)
}

// PushContext makes the container of object id the active container for
// role. The returned context carries the session and must be used for the
// matching PopContext.
func (l *Library) PushContext(ctx context.Context, role Role, id ids.ID) (context.Context, error) {
	if !role.valid() {
		return ctx, errors.Newf(errors.ErrorTypeValidation, "unknown context role %d", role)
	}
	o, err := l.Object(id)
	if err != nil {
		return ctx, err
	}
	ctx, s := WithSession(ctx)
	return ctx, s.push(ctx, role, o.container)
}

// PopContext undoes the most recent PushContext for role
func (l *Library) PopContext(ctx context.Context, role Role) error {
	if !role.valid() {
		return errors.Newf(errors.ErrorTypeValidation, "unknown context role %d", role)
	}
	s := SessionFrom(ctx)
	if s == nil {
		return errors.Newf(errors.ErrorTypeProtocol, "no active %s context", role)
	}
	return s.pop(ctx, role)
}

// ContextCount returns the nesting count of the active context for role
func ContextCount(ctx context.Context, role Role) int {
	return SessionFrom(ctx).Count(role)
}

// ActiveContainer returns the container active for role in ctx, or nil
func ActiveContainer(ctx context.Context, role Role) *Container {
	return SessionFrom(ctx).Active(role)
}

// With runs fn with c active for role and pops the context on every path.
// A failure to pop is reported after fn's own error.
func With(ctx context.Context, role Role, c *Container, fn func(ctx context.Context) error) (err error) {
	if !role.valid() {
		return errors.Newf(errors.ErrorTypeValidation, "unknown context role %d", role)
	}
	ctx, s := WithSession(ctx)
	if err := s.push(ctx, role, c); err != nil {
		return err
	}
	defer func() {
		if perr := s.pop(ctx, role); perr != nil {
			if err != nil {
				stackLogger().Warn("failed to pop context after error", zap.Stringer("role", role), zap.Error(perr))
			}
			err = errors.Cleanup(err, perr)
		}
	}()
	return fn(ctx)
}

// activeFrame returns the top primary frame, or nil
func activeFrame(ctx context.Context) *frame {
	s := SessionFrom(ctx)
	if s == nil {
		return nil
	}
	return s.top(RolePrimary)
}
