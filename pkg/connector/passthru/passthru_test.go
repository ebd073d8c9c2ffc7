package passthru_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/ajitpratap0/hvol/pkg/connector/core"
	"github.com/ajitpratap0/hvol/pkg/connector/native"
	"github.com/ajitpratap0/hvol/pkg/connector/passthru"
	"github.com/ajitpratap0/hvol/pkg/connector/plugin"
	"github.com/ajitpratap0/hvol/pkg/connector/registry"
	"github.com/ajitpratap0/hvol/pkg/errors"
	"github.com/ajitpratap0/hvol/pkg/ids"
	"github.com/ajitpratap0/hvol/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fixture struct {
	reg      *registry.Registry
	nativeID ids.ID
	native   *core.Class
	pt       *core.Class
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger.Set(zaptest.NewLogger(t))
	ctx := context.Background()

	reg := registry.New(ids.NewTable(), plugin.Default())
	nid, err := reg.RegisterByName(ctx, native.Name, nil)
	require.NoError(t, err)
	pid, err := reg.RegisterByName(ctx, passthru.Name, nil)
	require.NoError(t, err)

	f := &fixture{reg: reg, nativeID: nid}
	f.native, err = reg.Class(nid)
	require.NoError(t, err)
	f.pt, err = reg.Class(pid)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Close(context.Background()) })
	return f
}

func (f *fixture) nativeRefs(t *testing.T) int64 {
	t.Helper()
	n, err := f.reg.RefCount(f.nativeID)
	require.NoError(t, err)
	return n
}

func TestStackedOperations(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	before := f.nativeRefs(t)

	file, err := f.pt.File.Create(ctx, "stacked", core.FileReadWrite, &passthru.Info{UnderName: "native"}, nil)
	require.NoError(t, err)
	assert.Equal(t, before+1, f.nativeRefs(t), "an open file holds the connector beneath")

	pf := file.(*passthru.Object)
	assert.IsType(t, &native.File{}, pf.Under())

	g, err := f.pt.Group.Create(ctx, file, core.Self(core.KindFile), "g", nil)
	require.NoError(t, err)
	d, err := f.pt.Dataset.Create(ctx, g, core.Self(core.KindGroup), "d", "int8", nil)
	require.NoError(t, err)
	require.NoError(t, f.pt.Dataset.Write(ctx, d, []byte("hello"), nil))

	data, err := f.pt.Dataset.Read(ctx, d, nil)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	raw, err := f.native.Dataset.Read(ctx, d.(*passthru.Object).Under(), nil)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(raw), "without compression payloads pass unchanged")

	require.NoError(t, f.pt.Dataset.Close(ctx, d, nil))
	require.NoError(t, f.pt.Group.Close(ctx, g, nil))
	require.NoError(t, f.pt.File.Close(ctx, file, nil))
	assert.Equal(t, before, f.nativeRefs(t), "closing the last object releases the connector beneath")
}

func TestCompression(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	payload := bytes.Repeat([]byte("abcdefgh"), 512)

	for _, alg := range []string{"gzip", "snappy", "lz4", "zstd", "s2"} {
		t.Run(alg, func(t *testing.T) {
			info := &passthru.Info{UnderName: "native", Compression: alg, CompressionLevel: "best"}
			file, err := f.pt.File.Create(ctx, "c-"+alg, core.FileReadWrite, info, nil)
			require.NoError(t, err)
			defer func() { require.NoError(t, f.pt.File.Close(ctx, file, nil)) }()

			d, err := f.pt.Dataset.Create(ctx, file, core.Self(core.KindFile), "d", "bytes", nil)
			require.NoError(t, err)
			require.NoError(t, f.pt.Dataset.Write(ctx, d, payload, nil))

			stored, err := f.native.Dataset.Read(ctx, d.(*passthru.Object).Under(), nil)
			require.NoError(t, err)
			assert.Less(t, len(stored), len(payload))

			got, err := f.pt.Dataset.Read(ctx, d, nil)
			require.NoError(t, err)
			assert.Equal(t, payload, got)

			a, err := f.pt.Attr.Create(ctx, d, core.Self(core.KindDataset), "note", nil)
			require.NoError(t, err)
			require.NoError(t, f.pt.Attr.Write(ctx, a, payload, nil))
			av, err := f.pt.Attr.Read(ctx, a, nil)
			require.NoError(t, err)
			assert.Equal(t, payload, av)

			require.NoError(t, f.pt.Attr.Close(ctx, a, nil))
			require.NoError(t, f.pt.Dataset.Close(ctx, d, nil))
		})
	}
}

func TestWrapCallbacks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	before := f.nativeRefs(t)

	file, err := f.pt.File.Create(ctx, "wrap", core.FileReadWrite, nil, nil)
	require.NoError(t, err)
	nativeFile := file.(*passthru.Object).Under()

	term, err := f.pt.Wrap.GetObject(file)
	require.NoError(t, err)
	assert.Same(t, nativeFile, term)

	one, err := f.pt.Wrap.UnwrapObject(file)
	require.NoError(t, err)
	assert.Same(t, nativeFile, one)

	rawGroup, err := f.native.Group.Create(ctx, nativeFile, core.Self(core.KindFile), "g", nil)
	require.NoError(t, err)

	wctx, err := f.pt.Wrap.GetWrapCtx(file)
	require.NoError(t, err)
	wrapped, err := f.pt.Wrap.WrapObject(rawGroup, core.KindGroup, wctx)
	require.NoError(t, err)
	require.NoError(t, f.pt.Wrap.FreeWrapCtx(wctx))

	w := wrapped.(*passthru.Object)
	assert.Equal(t, core.KindGroup, w.Kind())
	assert.Same(t, rawGroup, w.Under())

	info := &core.GroupGetArgs{Op: core.GroupGetInfo}
	require.NoError(t, f.pt.Group.Get(ctx, wrapped, info, nil))

	require.NoError(t, f.pt.Group.Close(ctx, wrapped, nil))
	require.NoError(t, f.pt.File.Close(ctx, file, nil))
	assert.Equal(t, before, f.nativeRefs(t))
}

func TestIntrospect(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	file, err := f.pt.File.Create(ctx, "introspect", core.FileReadWrite, nil, nil)
	require.NoError(t, err)
	defer func() { require.NoError(t, f.pt.File.Close(ctx, file, nil)) }()

	cur, err := f.pt.Introspect.GetConnectorClass(ctx, file, core.LevelCurrent)
	require.NoError(t, err)
	assert.Same(t, f.pt, cur)

	term, err := f.pt.Introspect.GetConnectorClass(ctx, file, core.LevelTerminal)
	require.NoError(t, err)
	assert.Same(t, f.native, term)
}

func TestNestedStack(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	info := &passthru.Info{UnderName: passthru.Name, UnderInfo: `{"under_name":"native","compression":"zstd"}`}
	file, err := f.pt.File.Create(ctx, "nested", core.FileReadWrite, info, nil)
	require.NoError(t, err)

	inner := file.(*passthru.Object).Under()
	require.IsType(t, &passthru.Object{}, inner)

	term, err := f.pt.Wrap.GetObject(file)
	require.NoError(t, err)
	assert.IsType(t, &native.File{}, term)

	cls, err := f.pt.Introspect.GetConnectorClass(ctx, file, core.LevelTerminal)
	require.NoError(t, err)
	assert.Same(t, f.native, cls)

	d, err := f.pt.Dataset.Create(ctx, file, core.Self(core.KindFile), "d", "bytes", nil)
	require.NoError(t, err)
	require.NoError(t, f.pt.Dataset.Write(ctx, d, []byte("nested payload"), nil))
	got, err := f.pt.Dataset.Read(ctx, d, nil)
	require.NoError(t, err)
	assert.Equal(t, "nested payload", string(got))

	require.NoError(t, f.pt.Dataset.Close(ctx, d, nil))
	require.NoError(t, f.pt.File.Close(ctx, file, nil))
}

func TestIsEqualUnwraps(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	a, err := f.pt.File.Create(ctx, "eq-a", core.FileReadWrite, nil, nil)
	require.NoError(t, err)
	b, err := f.pt.File.Open(ctx, "eq-a", core.FileReadWrite, nil, nil)
	require.NoError(t, err)

	args := &core.FileSpecificArgs{Op: core.FileIsEqual, Other: b}
	require.NoError(t, f.pt.File.Specific(ctx, a, args, nil))
	assert.True(t, args.Result, "two opens of one file wrap the same native file")

	require.NoError(t, f.pt.File.Close(ctx, a, nil))
	require.NoError(t, f.pt.File.Close(ctx, b, nil))

	acc := &core.FileSpecificArgs{Op: core.FileIsAccessible, Name: "eq-a"}
	require.NoError(t, f.pt.File.Specific(ctx, nil, acc, nil))
	assert.True(t, acc.Result)
}

func TestUnknownUnderConnector(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.pt.File.Create(ctx, "x", core.FileReadWrite, &passthru.Info{UnderName: "nope"}, nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestInfoStrings(t *testing.T) {
	f := newFixture(t)

	info, err := f.pt.Info.FromString(`{"under_name":"native","compression":"lz4"}`)
	require.NoError(t, err)
	assert.Equal(t, &passthru.Info{UnderName: "native", Compression: "lz4"}, info)

	info, err = f.pt.Info.FromString("native")
	require.NoError(t, err)
	assert.Equal(t, "native", info.(*passthru.Info).UnderName)

	_, err = f.pt.Info.FromString(`{"under":"native"}`)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig), "unknown fields are rejected")

	s, err := f.pt.Info.ToString(&passthru.Info{UnderName: "native", Compression: "zstd"})
	require.NoError(t, err)
	back, err := f.pt.Info.FromString(s)
	require.NoError(t, err)
	cmp, err := f.pt.Info.Compare(back, &passthru.Info{UnderName: "native", Compression: "zstd"})
	require.NoError(t, err)
	assert.Zero(t, cmp)

	cp, err := f.pt.Info.Copy(back)
	require.NoError(t, err)
	assert.NotSame(t, back, cp)
	assert.Equal(t, back, cp)
}
