package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/ajitpratap0/hvol/pkg/connector/core"
	"github.com/ajitpratap0/hvol/pkg/errors"
)

// Recorder is a connector that only knows files. It logs every callback it
// receives so tests can assert what was routed to it, and it completes file
// flushes asynchronously when the caller passes a request.
type Recorder struct {
	Class *core.Class

	mu     sync.Mutex
	calls  []string
	files  map[string]*RecordedFile
	copies int
	frees  int
	tokens []*Token
}

// RecordedFile is the file object a Recorder hands out
type RecordedFile struct {
	Name  string
	opens int
}

// RecorderInfo is a Recorder's connector info
type RecorderInfo struct {
	Label string
}

// Token is the asynchronous token of a Recorder flush
type Token struct {
	mu       sync.Mutex
	status   core.RequestStatus
	freed    bool
	canceled bool
}

// Complete marks the flush finished
func (t *Token) Complete() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status == core.RequestInProgress {
		t.status = core.RequestSucceeded
	}
}

// Freed reports whether the library released the token
func (t *Token) Freed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.freed
}

// NewRecorder returns a Recorder whose class has the given name and value
func NewRecorder(name string, value core.Value) *Recorder {
	r := &Recorder{files: make(map[string]*RecordedFile)}
	r.Class = &core.Class{
		ProtocolVersion: core.ProtocolVersion,
		Value:           value,
		Name:            name,
		Version:         1,
		CapFlags:        core.CapAsync,
		Initialize: func(context.Context, any) error {
			r.record("initialize")
			return nil
		},
		Terminate: func(context.Context) error {
			r.record("terminate")
			return nil
		},
		Info: core.InfoClass{
			Copy:       r.copyInfo,
			Free:       r.freeInfo,
			FromString: func(s string) (any, error) { return &RecorderInfo{Label: s}, nil },
			ToString: func(info any) (string, error) {
				if ri, ok := info.(*RecorderInfo); ok {
					return ri.Label, nil
				}
				return "", nil
			},
		},
		File:       recorderFiles{r},
		Object:     recorderObjects{r},
		Introspect: recorderIntrospect{r},
		Request:    recorderRequests{r},
	}
	return r
}

func (r *Recorder) record(call string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
}

// Calls returns the callbacks received so far, in order
func (r *Recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// Called reports whether call was received at least once
func (r *Recorder) Called(call string) bool {
	for _, c := range r.Calls() {
		if c == call {
			return true
		}
	}
	return false
}

// InfoCopies returns how many info copies were made and freed
func (r *Recorder) InfoCopies() (copies, frees int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.copies, r.frees
}

// Tokens returns the asynchronous tokens handed out so far
func (r *Recorder) Tokens() []*Token {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Token(nil), r.tokens...)
}

func (r *Recorder) copyInfo(info any) (any, error) {
	ri, ok := info.(*RecorderInfo)
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeConfig, "recorder info has type %T", info)
	}
	r.mu.Lock()
	r.copies++
	r.mu.Unlock()
	cp := *ri
	return &cp, nil
}

func (r *Recorder) freeInfo(any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frees++
	return nil
}

type recorderFiles struct{ r *Recorder }

func (f recorderFiles) open(name string, create bool) (any, error) {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	file, ok := f.r.files[name]
	switch {
	case !ok && !create:
		return nil, errors.Newf(errors.ErrorTypeNotFound, "file %s does not exist", name)
	case !ok:
		file = &RecordedFile{Name: name}
		f.r.files[name] = file
	}
	file.opens++
	return file, nil
}

func (f recorderFiles) Create(_ context.Context, name string, _ uint32, _ any, _ *core.Request) (any, error) {
	f.r.record("file.create")
	return f.open(name, true)
}

func (f recorderFiles) Open(_ context.Context, name string, _ uint32, _ any, _ *core.Request) (any, error) {
	f.r.record("file.open")
	return f.open(name, false)
}

func (f recorderFiles) Get(_ context.Context, file any, args *core.FileGetArgs, _ *core.Request) error {
	f.r.record("file.get")
	rf, ok := file.(*RecordedFile)
	if !ok {
		return errors.Newf(errors.ErrorTypeValidation, "not a recorded file: %T", file)
	}
	switch args.Op {
	case core.FileGetName:
		args.Name = rf.Name
	case core.FileGetID:
		args.ID = rf.Name
	default:
		return errors.Newf(errors.ErrorTypeValidation, "unsupported file query %d", args.Op)
	}
	return nil
}

func (f recorderFiles) Specific(_ context.Context, file any, args *core.FileSpecificArgs, req *core.Request) error {
	f.r.record("file.specific")
	switch args.Op {
	case core.FileFlush:
		if req != nil {
			t := &Token{}
			f.r.mu.Lock()
			f.r.tokens = append(f.r.tokens, t)
			f.r.mu.Unlock()
			req.SetToken(t)
		}
	case core.FileIsEqual:
		args.Result = file != nil && file == args.Other
	case core.FileIsAccessible:
		f.r.mu.Lock()
		_, args.Result = f.r.files[args.Name]
		f.r.mu.Unlock()
	case core.FileDelete:
		f.r.mu.Lock()
		delete(f.r.files, args.Name)
		f.r.mu.Unlock()
	}
	return nil
}

func (f recorderFiles) Close(_ context.Context, file any, _ *core.Request) error {
	f.r.record("file.close")
	rf, ok := file.(*RecordedFile)
	if !ok {
		return errors.Newf(errors.ErrorTypeValidation, "not a recorded file: %T", file)
	}
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	if rf.opens == 0 {
		return errors.Newf(errors.ErrorTypeFile, "file %s is not open", rf.Name)
	}
	rf.opens--
	return nil
}

type recorderObjects struct{ r *Recorder }

func (o recorderObjects) Open(context.Context, any, core.LocParams, *core.Request) (any, core.ObjectKind, error) {
	o.r.record("object.open")
	return nil, 0, errors.New(errors.ErrorTypeNotFound, "recorder files are empty")
}

func (o recorderObjects) Copy(context.Context, any, core.LocParams, string, any, core.LocParams, string, *core.Request) error {
	o.r.record("object.copy")
	return errors.New(errors.ErrorTypeNotFound, "recorder files are empty")
}

func (o recorderObjects) Get(_ context.Context, obj any, _ core.LocParams, args *core.ObjectGetArgs, _ *core.Request) error {
	o.r.record("object.get")
	if args.Op == core.ObjectGetFile {
		args.File = obj
	}
	return nil
}

func (o recorderObjects) Specific(_ context.Context, obj any, _ core.LocParams, args *core.ObjectSpecificArgs, _ *core.Request) error {
	o.r.record("object.specific")
	if args.Op == core.ObjectIsEqual {
		args.Result = obj != nil && obj == args.Other
	}
	return nil
}

type recorderIntrospect struct{ r *Recorder }

func (i recorderIntrospect) GetConnectorClass(context.Context, any, core.ConnLevel) (*core.Class, error) {
	return i.r.Class, nil
}

type recorderRequests struct{ r *Recorder }

func asToken(token any) (*Token, error) {
	t, ok := token.(*Token)
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeValidation, "not a recorder token: %T", token)
	}
	return t, nil
}

// Wait polls the token until it leaves the in-progress state or timeout passes
func (q recorderRequests) Wait(ctx context.Context, token any, timeout time.Duration) (core.RequestStatus, error) {
	q.r.record("request.wait")
	t, err := asToken(token)
	if err != nil {
		return core.RequestFailed, err
	}
	deadline := time.Now().Add(timeout)
	for {
		t.mu.Lock()
		status := t.status
		t.mu.Unlock()
		if status != core.RequestInProgress || !time.Now().Before(deadline) {
			return status, nil
		}
		select {
		case <-ctx.Done():
			return status, ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
}

func (q recorderRequests) Cancel(_ context.Context, token any) error {
	q.r.record("request.cancel")
	t, err := asToken(token)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status == core.RequestInProgress {
		t.status = core.RequestCanceled
		t.canceled = true
	}
	return nil
}

func (q recorderRequests) Free(_ context.Context, token any) error {
	q.r.record("request.free")
	t, err := asToken(token)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.freed = true
	return nil
}
