package vol_test

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"

	"github.com/ajitpratap0/hvol/pkg/connector/core"
	"github.com/ajitpratap0/hvol/pkg/errors"
	"github.com/ajitpratap0/hvol/pkg/metrics"
	"github.com/ajitpratap0/hvol/pkg/vol"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func depth(role vol.Role) float64 {
	return promtest.ToFloat64(metrics.ContextDepth.WithLabelValues(role.String()))
}

func TestNestedPushReusesContext(t *testing.T) {
	ctx := context.Background()
	lib := newLibrary(t, nil)

	file, err := lib.FileCreate(ctx, "nested", core.FileReadWrite, nil)
	require.NoError(t, err)
	o1, err := lib.GroupCreate(ctx, file, "g")
	require.NoError(t, err)
	c := containerOf(t, lib, o1)
	held := c.Count()
	gauge := depth(vol.RolePrimary)

	ctx1, err := lib.PushContext(ctx, vol.RolePrimary, o1)
	require.NoError(t, err)
	assert.Equal(t, 1, vol.ContextCount(ctx1, vol.RolePrimary))
	assert.Same(t, c, vol.ActiveContainer(ctx1, vol.RolePrimary))
	assert.Equal(t, held+1, c.Count())

	ctx2, err := lib.PushContext(ctx1, vol.RolePrimary, o1)
	require.NoError(t, err)
	assert.Same(t, vol.SessionFrom(ctx1), vol.SessionFrom(ctx2), "nested pushes share the session")
	assert.Equal(t, 2, vol.ContextCount(ctx2, vol.RolePrimary))
	assert.Equal(t, 1, vol.SessionFrom(ctx2).Depth(vol.RolePrimary))
	assert.Equal(t, held+1, c.Count(), "the second push reuses the context")
	assert.Equal(t, gauge+1, depth(vol.RolePrimary))

	require.NoError(t, lib.PopContext(ctx2, vol.RolePrimary))
	assert.Equal(t, 1, vol.ContextCount(ctx2, vol.RolePrimary))
	assert.Equal(t, held+1, c.Count())

	require.NoError(t, lib.PopContext(ctx1, vol.RolePrimary))
	assert.Zero(t, vol.ContextCount(ctx1, vol.RolePrimary))
	assert.Nil(t, vol.ActiveContainer(ctx1, vol.RolePrimary))
	assert.Equal(t, held, c.Count(), "the hold is released exactly once")
	assert.Equal(t, gauge, depth(vol.RolePrimary))

	require.NoError(t, lib.CloseObject(ctx, o1))
	require.NoError(t, lib.FileClose(ctx, file))
}

func TestPopWithoutPush(t *testing.T) {
	ctx := context.Background()
	lib := newLibrary(t, nil)

	err := lib.PopContext(ctx, vol.RolePrimary)
	assert.True(t, errors.IsType(err, errors.ErrorTypeProtocol))

	file, err := lib.FileCreate(ctx, "unbalanced", core.FileReadWrite, nil)
	require.NoError(t, err)
	pushed, err := lib.PushContext(ctx, vol.RolePrimary, file)
	require.NoError(t, err)
	require.NoError(t, lib.PopContext(pushed, vol.RolePrimary))

	err = lib.PopContext(pushed, vol.RolePrimary)
	assert.True(t, errors.IsType(err, errors.ErrorTypeProtocol), "an emptied stack cannot be popped")
	assert.ErrorContains(t, err, "no active primary context")

	_, err = lib.PushContext(ctx, vol.Role(9), file)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
	require.NoError(t, lib.FileClose(ctx, file))
}

func TestDistinctContainersStack(t *testing.T) {
	ctx := context.Background()
	lib := newLibrary(t, nil)

	a, err := lib.FileCreate(ctx, "a", core.FileReadWrite, nil)
	require.NoError(t, err)
	b, err := lib.FileCreate(ctx, "b", core.FileReadWrite, nil)
	require.NoError(t, err)
	ca, cb := containerOf(t, lib, a), containerOf(t, lib, b)

	ctx, err = lib.PushContext(ctx, vol.RolePrimary, a)
	require.NoError(t, err)
	ctx, err = lib.PushContext(ctx, vol.RolePrimary, b)
	require.NoError(t, err)

	s := vol.SessionFrom(ctx)
	assert.Equal(t, 2, s.Depth(vol.RolePrimary))
	assert.Same(t, cb, s.Active(vol.RolePrimary), "the latest push is active")
	assert.Equal(t, 1, s.Count(vol.RolePrimary))

	ctx, err = lib.PushContext(ctx, vol.RolePrimary, a)
	require.NoError(t, err)
	assert.Equal(t, 3, s.Depth(vol.RolePrimary), "a container under the top gets a new frame")
	assert.Equal(t, int64(3), ca.Count())

	for i := 0; i < 3; i++ {
		require.NoError(t, lib.PopContext(ctx, vol.RolePrimary))
	}
	assert.Zero(t, s.Depth(vol.RolePrimary))
	assert.Equal(t, int64(1), ca.Count())
	assert.Equal(t, int64(1), cb.Count())

	require.NoError(t, lib.FileClose(ctx, a))
	require.NoError(t, lib.FileClose(ctx, b))
}

func TestRolesAreIndependent(t *testing.T) {
	ctx := context.Background()
	lib := newLibrary(t, nil)

	src, err := lib.FileCreate(ctx, "src", core.FileReadWrite, nil)
	require.NoError(t, err)
	dst, err := lib.FileCreate(ctx, "dst", core.FileReadWrite, nil)
	require.NoError(t, err)

	ctx, err = lib.PushContext(ctx, vol.RoleSource, src)
	require.NoError(t, err)
	ctx, err = lib.PushContext(ctx, vol.RoleDestination, dst)
	require.NoError(t, err)

	assert.Same(t, containerOf(t, lib, src), vol.ActiveContainer(ctx, vol.RoleSource))
	assert.Same(t, containerOf(t, lib, dst), vol.ActiveContainer(ctx, vol.RoleDestination))
	assert.Nil(t, vol.ActiveContainer(ctx, vol.RolePrimary))

	err = lib.PopContext(ctx, vol.RolePrimary)
	assert.True(t, errors.IsType(err, errors.ErrorTypeProtocol))

	require.NoError(t, lib.PopContext(ctx, vol.RoleSource))
	assert.Nil(t, vol.ActiveContainer(ctx, vol.RoleSource))
	assert.NotNil(t, vol.ActiveContainer(ctx, vol.RoleDestination))
	require.NoError(t, lib.PopContext(ctx, vol.RoleDestination))

	require.NoError(t, lib.FileClose(ctx, src))
	require.NoError(t, lib.FileClose(ctx, dst))
}

func TestWithPopsOnError(t *testing.T) {
	ctx := context.Background()
	lib := newLibrary(t, nil)

	file, err := lib.FileCreate(ctx, "with", core.FileReadWrite, nil)
	require.NoError(t, err)
	c := containerOf(t, lib, file)
	ctx, s := vol.WithSession(ctx)

	boom := stderrors.New("boom")
	err = vol.With(ctx, vol.RolePrimary, c, func(inner context.Context) error {
		assert.Same(t, c, vol.ActiveContainer(inner, vol.RolePrimary))
		return vol.With(inner, vol.RolePrimary, c, func(inner context.Context) error {
			assert.Equal(t, 2, vol.ContextCount(inner, vol.RolePrimary))
			return boom
		})
	})
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, s.Depth(vol.RolePrimary))
	assert.Equal(t, int64(1), c.Count())

	require.NoError(t, lib.FileClose(ctx, file))
}

func TestRoutedCallsLeaveNoContext(t *testing.T) {
	ctx, s := vol.WithSession(context.Background())
	lib := newLibrary(t, nil)

	file, err := lib.FileCreate(ctx, "routed", core.FileReadWrite, nil)
	require.NoError(t, err)
	grp, err := lib.GroupCreate(ctx, file, "g")
	require.NoError(t, err)
	_, err = lib.GroupOpen(ctx, grp, "missing")
	require.Error(t, err)

	for _, role := range []vol.Role{vol.RolePrimary, vol.RoleSource, vol.RoleDestination} {
		assert.Zero(t, s.Depth(role), role.String())
	}
	require.NoError(t, lib.CloseObject(ctx, grp))
	require.NoError(t, lib.FileClose(ctx, file))
}

func TestConcurrentPushesShareOneFrame(t *testing.T) {
	ctx := context.Background()
	lib := newLibrary(t, nil)

	file, err := lib.FileCreate(ctx, "shared-session", core.FileReadWrite, nil)
	require.NoError(t, err)
	c := containerOf(t, lib, file)
	held := c.Count()

	const pushes = 16
	sctx, session := vol.WithSession(ctx)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < pushes; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := lib.PushContext(sctx, vol.RolePrimary, file)
			assert.NoError(t, err)
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, session.Depth(vol.RolePrimary))
	assert.Equal(t, pushes, session.Count(vol.RolePrimary))
	assert.Equal(t, held+1, c.Count(), "one frame holds one container reference")

	for i := 0; i < pushes; i++ {
		require.NoError(t, lib.PopContext(sctx, vol.RolePrimary))
	}
	assert.Zero(t, session.Depth(vol.RolePrimary))
	assert.Equal(t, held, c.Count())
	require.NoError(t, lib.FileClose(ctx, file))
}
