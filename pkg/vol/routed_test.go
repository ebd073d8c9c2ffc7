package vol_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/ajitpratap0/hvol/pkg/connector/core"
	"github.com/ajitpratap0/hvol/pkg/connector/passthru"
	"github.com/ajitpratap0/hvol/pkg/errors"
	"github.com/ajitpratap0/hvol/pkg/ids"
	"github.com/ajitpratap0/hvol/pkg/plist"
	"github.com/ajitpratap0/hvol/pkg/testutil"
	"github.com/ajitpratap0/hvol/pkg/vol"
	"github.com/stretchr/testify/suite"
)

// RoutedSuite runs every routed operation against one connector stack
type RoutedSuite struct {
	suite.Suite
	stacked bool

	ctx  context.Context
	lib  *vol.Library
	fapl *plist.FileAccess
	file ids.ID
}

func TestRoutedNative(t *testing.T) {
	suite.Run(t, &RoutedSuite{})
}

func TestRoutedPassthru(t *testing.T) {
	suite.Run(t, &RoutedSuite{stacked: true})
}

func (s *RoutedSuite) SetupTest() {
	s.ctx = context.Background()
	s.lib = newLibrary(s.T(), nil)
	s.fapl = nil
	if s.stacked {
		s.fapl = passthruAccess(s.T(), s.lib, "lz4")
	}
	s.file = s.create("main")
}

func (s *RoutedSuite) TearDownTest() {
	s.Require().NoError(s.lib.FileClose(s.ctx, s.file))
	for kind := core.KindFile; kind <= core.KindAttr; kind++ {
		s.Zero(s.lib.OpenObjects(kind), "%s handles left open", kind)
	}
}

func (s *RoutedSuite) create(name string) ids.ID {
	id, err := s.lib.FileCreate(s.ctx, name, core.FileReadWrite, s.fapl)
	s.Require().NoError(err)
	return id
}

func (s *RoutedSuite) close(id ids.ID) {
	s.Require().NoError(s.lib.CloseObject(s.ctx, id))
}

func (s *RoutedSuite) TestGroups() {
	g, err := s.lib.GroupCreate(s.ctx, s.file, "g")
	s.Require().NoError(err)
	defer s.close(g)

	for _, child := range []string{"a", "b", "c"} {
		id, err := s.lib.GroupCreate(s.ctx, g, child)
		s.Require().NoError(err)
		s.close(id)
	}
	nested, err := s.lib.GroupCreate(s.ctx, s.file, "g/a/deep")
	s.Require().NoError(err)
	s.close(nested)

	info, err := s.lib.GroupInfo(s.ctx, g)
	s.Require().NoError(err)
	s.Equal(3, info.NumLinks)
	s.NoError(s.lib.GroupSpecific(s.ctx, g, &core.GroupSpecificArgs{Op: core.GroupFlush}))

	reopened, err := s.lib.GroupOpen(s.ctx, s.file, "/g")
	s.Require().NoError(err)
	same, err := s.lib.IsSame(s.ctx, g, reopened)
	s.Require().NoError(err)
	s.True(same)
	s.close(reopened)

	_, err = s.lib.GroupCreate(s.ctx, s.file, "g")
	s.True(errors.IsType(err, errors.ErrorTypeDispatch))
	s.True(errors.HasType(err, errors.ErrorTypeValidation), "the callback's error type survives dispatch")

	_, err = s.lib.GroupOpen(s.ctx, s.file, "missing")
	s.True(errors.IsType(err, errors.ErrorTypeDispatch))
	s.True(errors.HasType(err, errors.ErrorTypeNotFound))

	err = s.lib.GroupGet(s.ctx, s.file, &core.GroupGetArgs{Op: core.GroupGetInfo})
	s.True(errors.IsType(err, errors.ErrorTypeValidation), "a file handle is not a group handle")
}

func (s *RoutedSuite) TestDatasets() {
	d, err := s.lib.DatasetCreate(s.ctx, s.file, "d", "uint8")
	s.Require().NoError(err)
	defer s.close(d)

	payload := bytes.Repeat([]byte("hierarchical "), 512)
	s.Require().NoError(s.lib.DatasetWrite(s.ctx, d, payload, nil))

	got, err := s.lib.DatasetRead(s.ctx, d, nil)
	s.Require().NoError(err)
	s.Equal(payload, got)

	typ := &core.DatasetGetArgs{Op: core.DatasetGetType}
	s.Require().NoError(s.lib.DatasetGet(s.ctx, d, typ))
	s.Equal("uint8", typ.Type)

	size := &core.DatasetGetArgs{Op: core.DatasetGetStorageSize}
	s.Require().NoError(s.lib.DatasetGet(s.ctx, d, size))
	if s.stacked {
		s.Less(size.StorageSize, int64(len(payload)), "payloads are stored compressed")
	} else {
		s.Equal(int64(len(payload)), size.StorageSize)
	}
	s.NoError(s.lib.DatasetSpecific(s.ctx, d, &core.DatasetSpecificArgs{Op: core.DatasetFlush}))

	again, err := s.lib.DatasetOpen(s.ctx, s.file, "d")
	s.Require().NoError(err)
	got, err = s.lib.DatasetRead(s.ctx, again, nil)
	s.Require().NoError(err)
	s.Equal(payload, got)
	s.NoError(s.lib.DatasetClose(s.ctx, again))

	_, err = s.lib.DatasetCreate(s.ctx, s.file, "untyped", "")
	s.True(errors.HasType(err, errors.ErrorTypeValidation))
}

func (s *RoutedSuite) TestDatatypes() {
	dt, err := s.lib.DatatypeCommit(s.ctx, s.file, "celsius", "float64")
	s.Require().NoError(err)
	s.Equal(ids.KindDatatype, ids.KindOf(dt))
	s.NoError(s.lib.DatatypeClose(s.ctx, dt))

	dt, err = s.lib.DatatypeOpen(s.ctx, s.file, "celsius")
	s.Require().NoError(err)
	desc, err := s.lib.DatatypeDescriptor(s.ctx, dt)
	s.Require().NoError(err)
	s.Equal("float64", desc)
	s.NoError(s.lib.DatatypeClose(s.ctx, dt))
}

func (s *RoutedSuite) TestAttributes() {
	g, err := s.lib.GroupCreate(s.ctx, s.file, "g")
	s.Require().NoError(err)
	defer s.close(g)

	for _, name := range []string{"units", "scale"} {
		a, err := s.lib.AttrCreate(s.ctx, g, name)
		s.Require().NoError(err)
		s.Require().NoError(s.lib.AttrWrite(s.ctx, a, []byte(name+"-value")))
		s.NoError(s.lib.AttrClose(s.ctx, a))
	}

	a, err := s.lib.AttrOpen(s.ctx, g, "units")
	s.Require().NoError(err)
	data, err := s.lib.AttrRead(s.ctx, a)
	s.Require().NoError(err)
	s.Equal("units-value", string(data))
	name := &core.AttrGetArgs{Op: core.AttrGetName}
	s.Require().NoError(s.lib.AttrGet(s.ctx, a, name))
	s.Equal("units", name.Name)
	s.NoError(s.lib.AttrClose(s.ctx, a))

	var names []string
	s.Require().NoError(s.lib.AttrIterate(s.ctx, g, func(name string) (bool, error) {
		names = append(names, name)
		return false, nil
	}))
	s.Equal([]string{"scale", "units"}, names)

	ok, err := s.lib.AttrExists(s.ctx, g, "scale")
	s.Require().NoError(err)
	s.True(ok)
	s.Require().NoError(s.lib.AttrDelete(s.ctx, g, "scale"))
	ok, err = s.lib.AttrExists(s.ctx, g, "scale")
	s.Require().NoError(err)
	s.False(ok)

	err = s.lib.AttrDelete(s.ctx, g, "scale")
	s.True(errors.HasType(err, errors.ErrorTypeNotFound))
}

func (s *RoutedSuite) TestMaps() {
	m, err := s.lib.MapCreate(s.ctx, s.file, "index")
	s.Require().NoError(err)
	defer s.close(m)

	s.Require().NoError(s.lib.MapPut(s.ctx, m, "alpha", []byte("1")))
	s.Require().NoError(s.lib.MapPut(s.ctx, m, "beta", []byte("2")))

	v, found, err := s.lib.MapGet(s.ctx, m, "beta")
	s.Require().NoError(err)
	s.True(found)
	s.Equal("2", string(v))

	_, found, err = s.lib.MapGet(s.ctx, m, "gamma")
	s.Require().NoError(err)
	s.False(found)

	n, err := s.lib.MapCount(s.ctx, m)
	s.Require().NoError(err)
	s.Equal(2, n)

	again, err := s.lib.MapOpen(s.ctx, s.file, "index")
	s.Require().NoError(err)
	s.NoError(s.lib.MapClose(s.ctx, again))
}

func (s *RoutedSuite) TestLinks() {
	g, err := s.lib.GroupCreate(s.ctx, s.file, "g")
	s.Require().NoError(err)
	defer s.close(g)

	s.Require().NoError(s.lib.LinkCreateHard(s.ctx, g, s.file, "hard"))
	s.Require().NoError(s.lib.LinkCreateSoft(s.ctx, "/g", s.file, "soft"))
	s.Require().NoError(s.lib.LinkCreateExternal(s.ctx, "elsewhere", "/target", s.file, "ext"))

	info, value, err := s.lib.LinkInfo(s.ctx, s.file, "hard")
	s.Require().NoError(err)
	s.Equal(core.LinkHard, info.Type)
	s.Empty(value)

	info, value, err = s.lib.LinkInfo(s.ctx, s.file, "soft")
	s.Require().NoError(err)
	s.Equal(core.LinkSoft, info.Type)
	s.Equal("/g", value)

	info, value, err = s.lib.LinkInfo(s.ctx, s.file, "ext")
	s.Require().NoError(err)
	s.Equal(core.LinkExternal, info.Type)
	s.Equal("elsewhere:/target", value)

	for _, name := range []string{"hard", "soft"} {
		id, err := s.lib.GroupOpen(s.ctx, s.file, name)
		s.Require().NoError(err)
		same, err := s.lib.IsSame(s.ctx, g, id)
		s.Require().NoError(err)
		s.True(same, name)
		s.close(id)
	}

	_, err = s.lib.GroupOpen(s.ctx, s.file, "ext")
	s.True(errors.HasType(err, errors.ErrorTypeNotFound), "the external file does not exist")

	var names []string
	s.Require().NoError(s.lib.LinkIterate(s.ctx, s.file, func(name string, _ core.LinkInfo) (bool, error) {
		names = append(names, name)
		return name == "hard", nil
	}))
	s.Equal([]string{"ext", "g", "hard"}, names, "iteration is in name order and stops on request")

	s.Require().NoError(s.lib.LinkDelete(s.ctx, s.file, "soft"))
	ok, err := s.lib.LinkExists(s.ctx, s.file, "soft")
	s.Require().NoError(err)
	s.False(ok)
	ok, err = s.lib.LinkExists(s.ctx, s.file, "hard")
	s.Require().NoError(err)
	s.True(ok)
}

func (s *RoutedSuite) TestHardLinkAcrossConnectors() {
	rec := testutil.NewRecorder("rec-hardlink", 320)
	connID, err := s.lib.RegisterConnector(s.ctx, rec.Class, nil)
	s.Require().NoError(err)
	other, err := s.lib.FileCreate(s.ctx, "recorded", core.FileReadWrite, access(s.T(), s.lib, connID, nil))
	s.Require().NoError(err)
	defer s.close(other)

	err = s.lib.LinkCreateHard(s.ctx, other, s.file, "foreign")
	s.True(errors.IsType(err, errors.ErrorTypeProtocol))
}

func (s *RoutedSuite) TestObjectOpenAndExists() {
	d, err := s.lib.DatasetCreate(s.ctx, s.file, "d", "int32")
	s.Require().NoError(err)
	s.close(d)

	ok, err := s.lib.ObjectExists(s.ctx, s.file, "d")
	s.Require().NoError(err)
	s.True(ok)
	ok, err = s.lib.ObjectExists(s.ctx, s.file, "nope")
	s.Require().NoError(err)
	s.False(ok)

	id, err := s.lib.ObjectOpen(s.ctx, s.file, "d")
	s.Require().NoError(err)
	s.Equal(ids.KindDataset, ids.KindOf(id))
	path, err := s.lib.ObjectName(s.ctx, id)
	s.Require().NoError(err)
	s.Equal("/d", path)
	s.close(id)
}

func (s *RoutedSuite) TestObjectCopy() {
	g, err := s.lib.GroupCreate(s.ctx, s.file, "g")
	s.Require().NoError(err)
	a, err := s.lib.AttrCreate(s.ctx, g, "units")
	s.Require().NoError(err)
	s.Require().NoError(s.lib.AttrWrite(s.ctx, a, []byte("K")))
	s.close(a)
	s.close(g)

	dst := s.create("copy-target")
	defer s.close(dst)
	src := containerOf(s.T(), s.lib, s.file)
	dstc := containerOf(s.T(), s.lib, dst)

	s.Require().NoError(s.lib.ObjectCopy(s.ctx, s.file, "g", dst, "g2"))
	s.Equal(int64(1), src.Count(), "copy contexts are released")
	s.Equal(int64(1), dstc.Count())

	copied, err := s.lib.GroupOpen(s.ctx, dst, "g2")
	s.Require().NoError(err)
	defer s.close(copied)
	s.Same(dstc, containerOf(s.T(), s.lib, copied))

	a, err = s.lib.AttrOpen(s.ctx, copied, "units")
	s.Require().NoError(err)
	data, err := s.lib.AttrRead(s.ctx, a)
	s.Require().NoError(err)
	s.Equal("K", string(data))
	s.close(a)

	orig, err := s.lib.GroupOpen(s.ctx, s.file, "g")
	s.Require().NoError(err)
	same, err := s.lib.IsSame(s.ctx, orig, copied)
	s.Require().NoError(err)
	s.False(same, "a copy is a new object")
	s.close(orig)
}

func (s *RoutedSuite) TestObjectCopyLinkCycle() {
	g, err := s.lib.GroupCreate(s.ctx, s.file, "g")
	s.Require().NoError(err)
	defer s.close(g)
	s.Require().NoError(s.lib.LinkCreateHard(s.ctx, g, g, "up"))

	done := make(chan error, 1)
	go func() { done <- s.lib.ObjectCopy(s.ctx, s.file, "g", s.file, "g2") }()
	select {
	case err := <-done:
		s.Require().NoError(err)
	case <-time.After(5 * time.Second):
		s.FailNow("copy did not return")
	}

	g2, err := s.lib.GroupOpen(s.ctx, s.file, "g2")
	s.Require().NoError(err)
	defer s.close(g2)
	up, err := s.lib.GroupOpen(s.ctx, s.file, "g2/up/up")
	s.Require().NoError(err)
	defer s.close(up)

	same, err := s.lib.IsSame(s.ctx, g2, up)
	s.Require().NoError(err)
	s.True(same, "the link in the copy points at the copy")
	same, err = s.lib.IsSame(s.ctx, g, up)
	s.Require().NoError(err)
	s.False(same)
}

func (s *RoutedSuite) TestObjectCopyAcrossConnectors() {
	var fapl *plist.FileAccess
	if !s.stacked {
		fapl = passthruAccess(s.T(), s.lib, "")
	}
	id, err := s.lib.FileCreate(s.ctx, "mixed", core.FileReadWrite, fapl)
	s.Require().NoError(err)
	defer s.close(id)

	g, err := s.lib.GroupCreate(s.ctx, s.file, "g")
	s.Require().NoError(err)
	s.close(g)

	err = s.lib.ObjectCopy(s.ctx, s.file, "g", id, "g")
	s.True(errors.IsType(err, errors.ErrorTypeProtocol))
}

func (s *RoutedSuite) TestObjectVisit() {
	g, err := s.lib.GroupCreate(s.ctx, s.file, "g")
	s.Require().NoError(err)
	d, err := s.lib.DatasetCreate(s.ctx, g, "d", "int8")
	s.Require().NoError(err)
	m, err := s.lib.MapCreate(s.ctx, s.file, "m")
	s.Require().NoError(err)
	for _, id := range []ids.ID{d, m, g} {
		s.close(id)
	}
	c := containerOf(s.T(), s.lib, s.file)

	type seen struct {
		name string
		kind ids.Kind
	}
	var got []seen
	err = s.lib.ObjectVisit(s.ctx, s.file, func(name string, id ids.ID) (bool, error) {
		got = append(got, seen{name, ids.KindOf(id)})
		o := mustObject(s.T(), s.lib, id)
		s.Same(c, o.Container(), "visited objects live in the visited file")
		if s.stacked {
			s.IsType(&passthru.Object{}, o.Raw(), "visited objects are wrapped for the stack")
		}
		return false, nil
	})
	s.Require().NoError(err)
	s.Equal([]seen{
		{"g", ids.KindGroup},
		{"g/d", ids.KindDataset},
		{"m", ids.KindMap},
	}, got)
	s.Equal(int64(1), c.Count(), "visited handles are closed")

	var kept ids.ID
	err = s.lib.ObjectVisit(s.ctx, s.file, func(_ string, id ids.ID) (bool, error) {
		_, err := s.lib.IncRef(id)
		kept = id
		return true, err
	})
	s.Require().NoError(err)
	path, err := s.lib.ObjectName(s.ctx, kept)
	s.Require().NoError(err)
	s.Equal("/g", path)
	s.close(kept)
}

func (s *RoutedSuite) TestFileQueries() {
	name, err := s.lib.FileName(s.ctx, s.file)
	s.Require().NoError(err)
	s.Equal("main", name)
	s.NoError(s.lib.FileFlush(s.ctx, s.file))

	ok, err := s.lib.FileIsAccessible(s.ctx, "main", s.fapl)
	s.Require().NoError(err)
	s.True(ok)
	ok, err = s.lib.FileIsAccessible(s.ctx, "absent", s.fapl)
	s.Require().NoError(err)
	s.False(ok)

	scratch := s.create("scratch")
	err = s.lib.FileDelete(s.ctx, "scratch", s.fapl)
	s.True(errors.HasType(err, errors.ErrorTypeFile), "an open file cannot be deleted")
	s.close(scratch)
	s.Require().NoError(s.lib.FileDelete(s.ctx, "scratch", s.fapl))
	ok, err = s.lib.FileIsAccessible(s.ctx, "scratch", s.fapl)
	s.Require().NoError(err)
	s.False(ok)

	reopened, err := s.lib.FileOpen(s.ctx, "main", core.FileReadOnly, s.fapl)
	s.Require().NoError(err)
	s.NotSame(containerOf(s.T(), s.lib, s.file), containerOf(s.T(), s.lib, reopened), "each open gets its own container")
	s.close(reopened)

	_, err = s.lib.FileOpen(s.ctx, "absent", core.FileReadOnly, s.fapl)
	s.True(errors.HasType(err, errors.ErrorTypeNotFound))
}

func (s *RoutedSuite) TestUnsupportedOperations() {
	rec := testutil.NewRecorder("rec-unsupported", 321)
	connID, err := s.lib.RegisterConnector(s.ctx, rec.Class, nil)
	s.Require().NoError(err)
	id, err := s.lib.FileCreate(s.ctx, "recorded", core.FileReadWrite, access(s.T(), s.lib, connID, nil))
	s.Require().NoError(err)
	defer s.close(id)

	_, err = s.lib.GroupCreate(s.ctx, id, "g")
	s.True(errors.IsType(err, errors.ErrorTypeProtocol))
	_, err = s.lib.DatasetCreate(s.ctx, id, "d", "int8")
	s.True(errors.IsType(err, errors.ErrorTypeProtocol))
	_, err = s.lib.LinkExists(s.ctx, id, "x")
	s.True(errors.IsType(err, errors.ErrorTypeProtocol))
	s.Equal(int64(1), containerOf(s.T(), s.lib, id).Count(), "failed routing leaves no holds behind")

	err = s.lib.CloseObject(s.ctx, ids.Invalid)
	s.True(errors.IsType(err, errors.ErrorTypeProtocol))
	err = s.lib.CloseObject(s.ctx, connID)
	s.True(errors.IsType(err, errors.ErrorTypeProtocol), "a connector handle is not an object")
}
