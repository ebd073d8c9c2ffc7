package ids

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"

	"github.com/ajitpratap0/hvol/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTable_RegisterAndLookup(t *testing.T) {
	tbl := NewTable()

	id, err := tbl.Register(KindGroup, "g1")
	require.NoError(t, err)
	assert.Equal(t, KindGroup, KindOf(id))

	obj, err := tbl.ObjectOf(id)
	require.NoError(t, err)
	assert.Equal(t, "g1", obj)

	_, err = tbl.ObjectOfKind(id, KindDataset)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))

	_, err = tbl.Register(KindBad, "x")
	assert.Error(t, err)
	_, err = tbl.Register(KindFile, nil)
	assert.Error(t, err)
}

func TestTable_DetachLeavesFreeToCaller(t *testing.T) {
	tbl := NewTable()
	tbl.SetFreeFunc(KindConnector, func(context.Context, any) error {
		t.Fatal("detach must not run the free function")
		return nil
	})

	id, err := tbl.Register(KindConnector, "conn")
	require.NoError(t, err)
	_, err = tbl.IncRef(id)
	require.NoError(t, err)

	n, obj, err := tbl.Detach(id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Nil(t, obj)

	n, obj, err = tbl.Detach(id)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, "conn", obj)

	_, _, err = tbl.Detach(id)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindBad, KindOf(Invalid))
	assert.Equal(t, KindBad, KindOf(0))
	assert.Equal(t, KindBad, KindOf(ID(int64(kindCount)<<kindShift|1)))
}

func TestTable_RefCounting(t *testing.T) {
	ctx := context.Background()
	tbl := NewTable()

	freed := 0
	tbl.SetFreeFunc(KindDataset, func(_ context.Context, obj any) error {
		freed++
		assert.Equal(t, "d", obj)
		return nil
	})

	id, err := tbl.Register(KindDataset, "d")
	require.NoError(t, err)

	n, err := tbl.IncRef(id)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = tbl.DecRef(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 0, freed)

	n, err = tbl.DecRef(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
	assert.Equal(t, 1, freed)

	_, err = tbl.ObjectOf(id)
	assert.True(t, errors.IsNotFound(err))
	_, err = tbl.IncRef(id)
	assert.Error(t, err)
	_, err = tbl.DecRef(ctx, id)
	assert.Error(t, err)
}

func TestTable_FreeErrorStillRemoves(t *testing.T) {
	ctx := context.Background()
	tbl := NewTable()
	cause := stderrors.New("close failed")
	tbl.SetFreeFunc(KindAttr, func(context.Context, any) error { return cause })

	id, err := tbl.Register(KindAttr, 1)
	require.NoError(t, err)

	_, err = tbl.DecRef(ctx, id)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 0, tbl.Count(KindAttr))
}

func TestTable_IterateInRegistrationOrder(t *testing.T) {
	tbl := NewTable()
	var want []ID
	for i := 0; i < 5; i++ {
		id, err := tbl.Register(KindConnector, i)
		require.NoError(t, err)
		want = append(want, id)
	}
	_, err := tbl.Register(KindGroup, "other")
	require.NoError(t, err)

	var got []ID
	err = tbl.Iterate(KindConnector, func(id ID, _ any) (bool, error) {
		got = append(got, id)
		return false, nil
	})
	require.NoError(t, err)
	assert.Equal(t, want, got)

	got = got[:0]
	err = tbl.Iterate(KindConnector, func(id ID, obj any) (bool, error) {
		got = append(got, id)
		return obj.(int) == 2, nil
	})
	require.NoError(t, err)
	assert.Len(t, got, 3)

	cause := stderrors.New("stop")
	err = tbl.Iterate(KindConnector, func(ID, any) (bool, error) { return false, cause })
	assert.ErrorIs(t, err, cause)
}

func TestTable_ConcurrentRefCounting(t *testing.T) {
	ctx := context.Background()
	tbl := NewTable()
	freed := 0
	tbl.SetFreeFunc(KindFile, func(context.Context, any) error {
		freed++
		return nil
	})

	id, err := tbl.Register(KindFile, "f")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = tbl.IncRef(id)
			_, _ = tbl.DecRef(ctx, id)
		}()
	}
	wg.Wait()

	n, err := tbl.RefCount(id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 0, freed)
}

func TestID_String(t *testing.T) {
	tbl := NewTable()
	id, err := tbl.Register(KindMap, "m")
	require.NoError(t, err)
	assert.Equal(t, "map:1", id.String())
	assert.Equal(t, "invalid", Invalid.String())
}
