package vol_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ajitpratap0/hvol/pkg/connector/core"
	"github.com/ajitpratap0/hvol/pkg/errors"
	"github.com/ajitpratap0/hvol/pkg/ids"
	"github.com/ajitpratap0/hvol/pkg/testutil"
	"github.com/ajitpratap0/hvol/pkg/vol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordedFile(t *testing.T, lib *vol.Library, name string, value core.Value) (*testutil.Recorder, ids.ID, ids.ID) {
	t.Helper()
	ctx := context.Background()
	rec := testutil.NewRecorder(name, value)
	connID, err := lib.RegisterConnector(ctx, rec.Class, nil)
	require.NoError(t, err)
	file, err := lib.FileCreate(ctx, "async", core.FileReadWrite, access(t, lib, connID, nil))
	require.NoError(t, err)
	return rec, connID, file
}

func flush(t *testing.T, lib *vol.Library, file ids.ID) *vol.Request {
	t.Helper()
	req := vol.NewRequest()
	require.NoError(t, lib.FileSpecific(context.Background(), file, &core.FileSpecificArgs{Op: core.FileFlush}, req))
	require.True(t, req.Pending())
	return req
}

func TestAsyncFlushLifecycle(t *testing.T) {
	ctx := context.Background()
	lib := newLibrary(t, nil)
	rec, _, file := recordedFile(t, lib, "rec-async", 330)
	c := containerOf(t, lib, file)

	req := flush(t, lib, file)
	assert.Equal(t, int64(2), c.Count(), "an in-flight request holds its container")
	require.Len(t, rec.Tokens(), 1)
	token := rec.Tokens()[0]

	status, err := lib.RequestWait(ctx, req, 5*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, core.RequestInProgress, status)

	go func() {
		time.Sleep(10 * time.Millisecond)
		token.Complete()
	}()
	status, err = lib.RequestWait(ctx, req, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, core.RequestSucceeded, status)
	assert.Equal(t, core.RequestSucceeded, req.Status())

	require.NoError(t, lib.RequestFree(ctx, req))
	assert.True(t, token.Freed())
	assert.False(t, req.Pending())
	assert.Equal(t, int64(1), c.Count())

	_, err = lib.RequestWait(ctx, req, time.Millisecond)
	assert.True(t, errors.IsType(err, errors.ErrorTypeProtocol), "a freed request has nothing to wait for")

	require.NoError(t, lib.FileClose(ctx, file))
}

func TestAsyncRequestOutlivesHandle(t *testing.T) {
	ctx := context.Background()
	lib := newLibrary(t, nil)
	_, connID, file := recordedFile(t, lib, "rec-outlive", 331)
	c := containerOf(t, lib, file)
	held, err := lib.Registry().RefCount(connID)
	require.NoError(t, err)

	req := vol.NewRequest()
	require.NoError(t, c.Specific(ctx, &core.FileSpecificArgs{Op: core.FileFlush}, req))
	require.True(t, req.Pending())

	require.NoError(t, lib.FileClose(ctx, file))
	assert.Equal(t, int64(1), c.Count(), "the request keeps the container alive")
	n, err := lib.Registry().RefCount(connID)
	require.NoError(t, err)
	assert.Equal(t, held, n)

	require.NoError(t, lib.RequestFree(ctx, req))
	assert.Zero(t, c.Count())
	n, err = lib.Registry().RefCount(connID)
	require.NoError(t, err)
	assert.Equal(t, held-1, n)
}

func TestAsyncCancel(t *testing.T) {
	ctx := context.Background()
	lib := newLibrary(t, nil)
	rec, _, file := recordedFile(t, lib, "rec-cancel", 332)

	req := flush(t, lib, file)
	require.NoError(t, lib.RequestCancel(ctx, req))
	status, err := lib.RequestWait(ctx, req, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, core.RequestCanceled, status)
	assert.True(t, rec.Called("request.cancel"))

	require.NoError(t, lib.RequestFree(ctx, req))
	require.NoError(t, lib.FileClose(ctx, file))
}

func TestSynchronousOperationsLeaveRequestUnbound(t *testing.T) {
	ctx := context.Background()
	lib := newLibrary(t, nil)

	file, err := lib.FileCreate(ctx, "sync", core.FileReadWrite, nil)
	require.NoError(t, err)
	d, err := lib.DatasetCreate(ctx, file, "d", "int8")
	require.NoError(t, err)

	req := vol.NewRequest()
	require.NoError(t, lib.DatasetWrite(ctx, d, []byte{1, 2, 3}, req))
	assert.False(t, req.Pending())
	data, err := lib.DatasetRead(ctx, d, req)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, data)
	assert.False(t, req.Pending())

	err = lib.RequestFree(ctx, req)
	assert.True(t, errors.IsType(err, errors.ErrorTypeProtocol))
	err = lib.RequestCancel(ctx, req)
	assert.True(t, errors.IsType(err, errors.ErrorTypeProtocol))

	require.NoError(t, lib.CloseObject(ctx, d))
	require.NoError(t, lib.FileClose(ctx, file))
}

func TestRequestCannotBindTwice(t *testing.T) {
	ctx := context.Background()
	lib := newLibrary(t, nil)
	_, _, file := recordedFile(t, lib, "rec-rebind", 333)

	req := flush(t, lib, file)
	err := lib.FileSpecific(ctx, file, &core.FileSpecificArgs{Op: core.FileFlush}, req)
	assert.True(t, errors.IsType(err, errors.ErrorTypeProtocol))

	require.NoError(t, lib.RequestFree(ctx, req))
	require.NoError(t, lib.FileClose(ctx, file))
}

func TestConcurrentFreeReleasesOnce(t *testing.T) {
	ctx := context.Background()
	lib := newLibrary(t, nil)
	rec, _, file := recordedFile(t, lib, "rec-free-race", 335)
	c := containerOf(t, lib, file)

	req := flush(t, lib, file)
	rec.Tokens()[0].Complete()
	require.Equal(t, int64(2), c.Count())

	const frees = 8
	errs := make(chan error, frees)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < frees; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			errs <- lib.RequestFree(ctx, req)
		}()
	}
	close(start)
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, errors.IsType(err, errors.ErrorTypeProtocol), "%v", err)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, int64(1), c.Count(), "the container hold is dropped once")
	assert.True(t, rec.Tokens()[0].Freed())

	require.NoError(t, lib.FileClose(ctx, file))
}
