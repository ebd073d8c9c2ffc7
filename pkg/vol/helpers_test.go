package vol_test

import (
	"context"
	"testing"

	"github.com/ajitpratap0/hvol/pkg/connector/passthru"
	"github.com/ajitpratap0/hvol/pkg/ids"
	"github.com/ajitpratap0/hvol/pkg/plist"
	"github.com/ajitpratap0/hvol/pkg/vol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// access returns a file access list selecting connector id. The list is
// released before the library closes.
func access(t *testing.T, lib *vol.Library, id ids.ID, info any) *plist.FileAccess {
	t.Helper()
	ctx := context.Background()
	fapl := plist.NewFileAccess()
	require.NoError(t, lib.SetFileAccessConnector(ctx, fapl, id, info))
	t.Cleanup(func() { assert.NoError(t, lib.ReleaseFileAccess(ctx, fapl)) })
	return fapl
}

// passthruAccess returns a file access list stacking the pass-through
// connector on native with the given compression
func passthruAccess(t *testing.T, lib *vol.Library, compression string) *plist.FileAccess {
	t.Helper()
	ctx := context.Background()
	id, err := lib.RegisterConnectorByName(ctx, passthru.Name, nil)
	require.NoError(t, err)
	fapl := access(t, lib, id, &passthru.Info{UnderName: "native", Compression: compression})
	require.NoError(t, lib.UnregisterConnector(ctx, id))
	return fapl
}

func mustObject(t *testing.T, lib *vol.Library, id ids.ID) *vol.Object {
	t.Helper()
	o, err := lib.Object(id)
	require.NoError(t, err)
	return o
}

func containerOf(t *testing.T, lib *vol.Library, id ids.ID) *vol.Container {
	t.Helper()
	return mustObject(t, lib, id).Container()
}
