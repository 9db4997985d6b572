package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWindow struct {
	mu        sync.Mutex
	open      bool
	err       error
	announced []bool
}

func (f *fakeWindow) BookingOpen(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open, f.err
}

func (f *fakeWindow) AnnounceWindow(_ context.Context, open bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.announced = append(f.announced, open)
}

func (f *fakeWindow) set(open bool, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.open, f.err = open, err
}

func (f *fakeWindow) calls() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bool(nil), f.announced...)
}

func TestWindowWatcher_AnnouncesTransitionsOnly(t *testing.T) {
	src := &fakeWindow{}
	w := NewWindowWatcher(src, "", nil)
	ctx := context.Background()

	w.Check(ctx)
	w.Check(ctx)
	assert.Empty(t, src.calls())

	src.set(true, nil)
	w.Check(ctx)
	w.Check(ctx)
	assert.Equal(t, []bool{true}, src.calls())

	src.set(true, errors.New("store down"))
	w.Check(ctx)
	assert.Equal(t, []bool{true}, src.calls())

	src.set(false, nil)
	w.Check(ctx)
	assert.Equal(t, []bool{true, false}, src.calls())
}

func TestWindowWatcher_Schedule(t *testing.T) {
	src := &fakeWindow{}
	w := NewWindowWatcher(src, "@every 1s", nil)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	src.set(true, nil)
	require.Eventually(t, func() bool { return len(src.calls()) == 1 }, 3*time.Second, 50*time.Millisecond)
}

func TestWindowWatcher_BadSpec(t *testing.T) {
	w := NewWindowWatcher(&fakeWindow{}, "every now and then", nil)
	assert.Error(t, w.Start(context.Background()))
	w.Stop()
}
