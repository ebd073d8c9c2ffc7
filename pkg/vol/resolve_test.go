package vol_test

import (
	"context"
	"testing"

	"github.com/ajitpratap0/hvol/pkg/connector/core"
	"github.com/ajitpratap0/hvol/pkg/ids"
	"github.com/ajitpratap0/hvol/pkg/vol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// linkedFiles creates file x holding an external link "ext" to /target in file y
func linkedFiles(ctx context.Context, t *testing.T, lib *vol.Library) (x, y ids.ID) {
	t.Helper()
	y, err := lib.FileCreate(ctx, "y", core.FileReadWrite, nil)
	require.NoError(t, err)
	target, err := lib.GroupCreate(ctx, y, "target")
	require.NoError(t, err)
	require.NoError(t, lib.GroupClose(ctx, target))

	x, err = lib.FileCreate(ctx, "x", core.FileReadWrite, nil)
	require.NoError(t, err)
	require.NoError(t, lib.LinkCreateExternal(ctx, "y", "/target", x, "ext"))
	return x, y
}

func TestExternalLinkResolvesToNewContainer(t *testing.T) {
	ctx := context.Background()
	lib := newLibrary(t, nil)
	x, y := linkedFiles(ctx, t, lib)
	c1 := containerOf(t, lib, x)
	cy := containerOf(t, lib, y)

	g, err := lib.GroupOpen(ctx, x, "ext")
	require.NoError(t, err)
	c2 := containerOf(t, lib, g)

	assert.NotSame(t, c1, c2, "an object in another file gets its own container")
	assert.NotSame(t, cy, c2, "resolution does not reuse containers opened by name")
	assert.Equal(t, int64(1), c1.Count(), "the crossing container is untouched")
	assert.Equal(t, int64(1), c2.Count(), "only the object holds the new container")
	assert.Equal(t, c1.ConnectorID(), c2.ConnectorID())
	assert.Nil(t, c2.Info())

	same, err := lib.SameContainer(ctx, c2, cy)
	require.NoError(t, err)
	assert.True(t, same, "the new container is bound to y's storage instance")

	name, err := lib.FileName(ctx, g)
	require.NoError(t, err)
	assert.Equal(t, "y", name)

	path, err := lib.ObjectName(ctx, g)
	require.NoError(t, err)
	assert.Equal(t, "/target", path)

	require.NoError(t, lib.GroupClose(ctx, g))
	assert.Zero(t, c2.Count(), "closing the object releases the resolved container")
	assert.Equal(t, int64(1), c1.Count())
	assert.Equal(t, int64(1), cy.Count())

	require.NoError(t, lib.FileClose(ctx, x))
	require.NoError(t, lib.FileClose(ctx, y))
}

func TestExternalLinkThroughObjectOpen(t *testing.T) {
	ctx := context.Background()
	lib := newLibrary(t, nil)
	x, y := linkedFiles(ctx, t, lib)

	g, err := lib.ObjectOpen(ctx, x, "ext")
	require.NoError(t, err)
	assert.Equal(t, ids.KindGroup, ids.KindOf(g))
	assert.NotSame(t, containerOf(t, lib, x), containerOf(t, lib, g))

	name, err := lib.FileName(ctx, g)
	require.NoError(t, err)
	assert.Equal(t, "y", name)

	require.NoError(t, lib.CloseObject(ctx, g))
	require.NoError(t, lib.FileClose(ctx, x))
	require.NoError(t, lib.FileClose(ctx, y))
}

func TestSameFileOpenReusesContainer(t *testing.T) {
	ctx := context.Background()
	lib := newLibrary(t, nil)

	file, err := lib.FileCreate(ctx, "local", core.FileReadWrite, nil)
	require.NoError(t, err)
	grp, err := lib.GroupCreate(ctx, file, "g")
	require.NoError(t, err)
	require.NoError(t, lib.LinkCreateSoft(ctx, "/g", file, "alias"))

	alias, err := lib.GroupOpen(ctx, file, "alias")
	require.NoError(t, err)
	c := containerOf(t, lib, file)
	assert.Same(t, c, containerOf(t, lib, alias))
	assert.Equal(t, int64(3), c.Count())

	same, err := lib.IsSame(ctx, grp, alias)
	require.NoError(t, err)
	assert.True(t, same, "a soft link opens the same group")

	require.NoError(t, lib.GroupClose(ctx, alias))
	require.NoError(t, lib.GroupClose(ctx, grp))
	require.NoError(t, lib.FileClose(ctx, file))
}

func TestResolutionSkippedWhenStacked(t *testing.T) {
	ctx := context.Background()
	lib := newLibrary(t, nil)
	fapl := passthruAccess(t, lib, "")

	y, err := lib.FileCreate(ctx, "y", core.FileReadWrite, fapl)
	require.NoError(t, err)
	target, err := lib.GroupCreate(ctx, y, "target")
	require.NoError(t, err)
	require.NoError(t, lib.GroupClose(ctx, target))

	x, err := lib.FileCreate(ctx, "x", core.FileReadWrite, fapl)
	require.NoError(t, err)
	require.NoError(t, lib.LinkCreateExternal(ctx, "y", "/target", x, "ext"))

	g, err := lib.GroupOpen(ctx, x, "ext")
	require.NoError(t, err)
	c1 := containerOf(t, lib, x)
	assert.Same(t, c1, containerOf(t, lib, g), "only the base connector is resolved across files")

	path, err := lib.ObjectName(ctx, g)
	require.NoError(t, err)
	assert.Equal(t, "/target", path)

	require.NoError(t, lib.GroupClose(ctx, g))
	assert.Equal(t, int64(1), c1.Count())
	require.NoError(t, lib.FileClose(ctx, x))
	require.NoError(t, lib.FileClose(ctx, y))
}
