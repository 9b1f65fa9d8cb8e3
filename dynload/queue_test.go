// SPDX-License-Identifier: GPL-2.0-or-later

package dynload

import (
	"context"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus/hooks/test"
)

type fakeAssets struct {
	mu       sync.Mutex
	gate     map[string]chan struct{}
	loaded   []string
	unloaded []string
}

func newFakeAssets() *fakeAssets {
	return &fakeAssets{gate: make(map[string]chan struct{})}
}

func (f *fakeAssets) block(name string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := make(chan struct{})
	f.gate[name] = c
	return c
}

func (f *fakeAssets) hooks() Hooks {
	return Hooks{
		Load: func(ctx context.Context, name string) (any, error) {
			f.mu.Lock()
			g := f.gate[name]
			f.mu.Unlock()
			if g != nil {
				select {
				case <-g:
				case <-ctx.Done():
					return nil, ctx.Err()
				}
			}
			f.mu.Lock()
			f.loaded = append(f.loaded, name)
			f.mu.Unlock()
			return name, nil
		},
		Unload: func(name string) {
			f.mu.Lock()
			f.unloaded = append(f.unloaded, name)
			f.mu.Unlock()
		},
	}
}

func (f *fakeAssets) loadOrder() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.loaded...)
}

func (f *fakeAssets) unloads() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.unloaded...)
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
	return c.t
}

func newQueue(t *testing.T, f *fakeAssets, opts ...Option) (*Queue, *clock) {
	c := &clock{t: time.Unix(1000, 0)}
	log, _ := test.NewNullLogger()
	opts = append([]Option{WithLogger(log), WithClock(c.now)}, opts...)
	q := New(f.hooks(), opts...)
	t.Cleanup(q.Close)
	return q, c
}

// settle drives Update until nothing is loading or queued.
func settle(t *testing.T, q *Queue, now time.Time) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		q.Update(now)
		q.mu.Lock()
		idle := q.loading == nil && len(q.pending) == 0
		q.mu.Unlock()
		if idle {
			q.Update(now)
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("queue did not settle")
}

func TestClientRequestsFirst(t *testing.T) {
	f := newFakeAssets()
	gate := f.block("a")
	q, c := newQueue(t, f)
	q.AddRef("a", false)
	q.Update(c.now())
	if got := q.State("a"); got != Loading {
		t.Fatalf("State(a) = %v, want %v", got, Loading)
	}
	q.AddRef("b", false)
	q.AddRef("c", false)
	q.AddRef("d", true)
	if got, want := q.Pending(), []string{"d", "b", "c"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Pending() = %v, want %v", got, want)
	}
	q.AddRef("c", true)
	if got, want := q.Pending(), []string{"c", "d", "b"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Pending() after promotion = %v, want %v", got, want)
	}
	close(gate)
	settle(t, q, c.now())
	if got, want := f.loadOrder(), []string{"a", "c", "d", "b"}; !reflect.DeepEqual(got, want) {
		t.Errorf("load order = %v, want %v", got, want)
	}
	if got := q.State("c"); got != FullyReady {
		t.Errorf("State(c) with client and server refs = %v, want %v", got, FullyReady)
	}
	if got := q.State("d"); got != ClientReady {
		t.Errorf("State(d) = %v, want %v", got, ClientReady)
	}
}

func TestEvictAfterGrace(t *testing.T) {
	f := newFakeAssets()
	q, c := newQueue(t, f, WithGrace(150*time.Second))
	q.AddRef("m", false)
	q.AddRef("m", true)
	settle(t, q, c.now())
	if !q.IsReady("m", false) {
		t.Fatalf("IsReady(m) = false after load")
	}
	if err := q.Release("m", true); err != nil {
		t.Fatalf("Release() = %v", err)
	}
	q.Update(c.advance(200 * time.Second))
	if got := q.State("m"); got != FullyReady {
		t.Errorf("State(m) with one ref left = %v, want %v", got, FullyReady)
	}
	if err := q.Release("m", false); err != nil {
		t.Fatalf("Release() = %v", err)
	}
	q.Update(c.advance(149 * time.Second))
	if len(f.unloads()) != 0 || q.State("m") == Absent {
		t.Errorf("evicted before the grace period")
	}
	q.Update(c.advance(time.Second))
	if got := f.unloads(); !reflect.DeepEqual(got, []string{"m"}) {
		t.Errorf("unloads = %v, want [m]", got)
	}
	if got := q.State("m"); got != Absent {
		t.Errorf("State(m) after eviction = %v, want %v", got, Absent)
	}
	if err := q.Release("m", false); !errors.Is(err, ErrNotManaged) {
		t.Errorf("Release() after eviction = %v, want %v", err, ErrNotManaged)
	}
}

func TestReaddCancelsEviction(t *testing.T) {
	f := newFakeAssets()
	q, c := newQueue(t, f, WithGrace(10*time.Second))
	q.AddRef("m", false)
	settle(t, q, c.now())
	q.Release("m", false)
	q.Update(c.advance(5 * time.Second))
	q.AddRef("m", false)
	q.Update(c.advance(time.Hour))
	if got := q.State("m"); got != FullyReady {
		t.Errorf("State(m) = %v, want %v", got, FullyReady)
	}
	if err := q.Release("m", true); !errors.Is(err, ErrNoReference) {
		t.Errorf("Release(client) without client ref = %v, want %v", err, ErrNoReference)
	}
}

func TestImmediateCallbackFiresOnce(t *testing.T) {
	f := newFakeAssets()
	q, c := newQueue(t, f)
	q.AddRef("m", false)
	settle(t, q, c.now())
	calls := 0
	_, err := q.RegisterCallback("m", func(string, error) { calls++ }, false, true)
	if err != nil {
		t.Fatalf("RegisterCallback() = %v", err)
	}
	if calls != 1 {
		t.Errorf("immediate callback ran %d times before return, want 1", calls)
	}
	q.Update(c.advance(time.Second))
	q.Update(c.advance(time.Second))
	if calls != 1 {
		t.Errorf("immediate callback ran %d times, want 1", calls)
	}
}

func TestCallbacksInOrder(t *testing.T) {
	f := newFakeAssets()
	gate := f.block("m")
	q, c := newQueue(t, f)
	q.AddRef("m", true)
	var got []string
	rec := func(tag string) Callback {
		return func(string, error) { got = append(got, tag) }
	}
	q.RegisterCallback("m", rec("server"), false, true)
	q.RegisterCallback("m", rec("client1"), true, true)
	id, _ := q.RegisterCallback("m", rec("dropped"), true, false)
	q.RegisterCallback("m", rec("client2"), true, false)
	q.UnregisterCallback("m", id)
	q.UnregisterCallback("m", id)
	close(gate)
	settle(t, q, c.now())
	if want := []string{"client1", "client2"}; !reflect.DeepEqual(got, want) {
		t.Errorf("callbacks at client ready = %v, want %v", got, want)
	}
	q.AddRef("m", false)
	q.Update(c.advance(time.Second))
	if want := []string{"client1", "client2", "server"}; !reflect.DeepEqual(got, want) {
		t.Errorf("callbacks at full ready = %v, want %v", got, want)
	}
	if _, err := q.RegisterCallback("nope", rec("x"), false, false); !errors.Is(err, ErrNotManaged) {
		t.Errorf("RegisterCallback(unknown) = %v, want %v", err, ErrNotManaged)
	}
}

func TestCancel(t *testing.T) {
	f := newFakeAssets()
	gate := f.block("a")
	q, c := newQueue(t, f)
	q.AddRef("a", false)
	q.Update(c.now())
	q.AddRef("b", false)
	if err := q.Cancel("a"); !errors.Is(err, ErrLoadInFlight) {
		t.Errorf("Cancel(loading) = %v, want %v", err, ErrLoadInFlight)
	}
	if err := q.Cancel("b"); err != nil {
		t.Errorf("Cancel(queued) = %v, want nil", err)
	}
	if err := q.Cancel("zzz"); !errors.Is(err, ErrNotManaged) {
		t.Errorf("Cancel(unknown) = %v, want %v", err, ErrNotManaged)
	}
	close(gate)
	settle(t, q, c.now())
	if err := q.Cancel("a"); !errors.Is(err, ErrNotQueued) {
		t.Errorf("Cancel(ready) = %v, want %v", err, ErrNotQueued)
	}
	if got := f.loadOrder(); !reflect.DeepEqual(got, []string{"a"}) {
		t.Errorf("loads = %v, want [a]", got)
	}
	if got := f.unloads(); !reflect.DeepEqual(got, []string{"b"}) {
		t.Errorf("unloads = %v, want [b]", got)
	}
}

func TestSplitServerConfirm(t *testing.T) {
	f := newFakeAssets()
	q, c := newQueue(t, f, WithSplit(true))
	q.AddRef("m", false)
	settle(t, q, c.now())
	if got := q.State("m"); got != ServerPending {
		t.Fatalf("State(m) = %v, want %v", got, ServerPending)
	}
	if !q.IsReady("m", true) || q.IsReady("m", false) {
		t.Errorf("IsReady(client, server) = %v %v, want true false", q.IsReady("m", true), q.IsReady("m", false))
	}
	fired := false
	q.RegisterCallback("m", func(string, error) { fired = true }, false, true)
	if fired {
		t.Errorf("server callback fired before confirmation")
	}
	if err := q.ConfirmServer("m"); err != nil {
		t.Fatalf("ConfirmServer() = %v", err)
	}
	q.Update(c.advance(time.Second))
	if !fired || !q.IsReady("m", false) {
		t.Errorf("after ConfirmServer fired = %v ready = %v, want true true", fired, q.IsReady("m", false))
	}
}

func TestFailedLoadReportsError(t *testing.T) {
	boom := errors.New("boom")
	log, _ := test.NewNullLogger()
	q := New(Hooks{Load: func(context.Context, string) (any, error) { return nil, boom }}, WithLogger(log))
	defer q.Close()
	q.AddRef("m", false)
	var got error
	q.RegisterCallback("m", func(_ string, err error) { got = err }, false, false)
	settle(t, q, time.Now())
	if got != boom {
		t.Errorf("callback error = %v, want %v", got, boom)
	}
}

func TestAddResident(t *testing.T) {
	f := newFakeAssets()
	gate := f.block("a")
	q, c := newQueue(t, f)
	q.AddResident("m", true)
	if got := q.State("m"); got != FullyReady {
		t.Errorf("State(m) = %v, want %v", got, FullyReady)
	}
	if !q.IsReady("m", true) {
		t.Errorf("resident model not ready")
	}

	q.AddRef("a", false)
	q.Update(c.now())
	q.AddRef("b", false)
	q.AddResident("b", false)
	if got := q.Pending(); len(got) != 0 {
		t.Errorf("Pending() = %v, want none", got)
	}
	close(gate)
	settle(t, q, c.now())
	if got, want := f.loadOrder(), []string{"a"}; !reflect.DeepEqual(got, want) {
		t.Errorf("loaded %v, want %v", got, want)
	}
	for _, e := range q.Entries() {
		if e.Name == "b" && e.RefCount != 2 {
			t.Errorf("b RefCount = %d, want 2", e.RefCount)
		}
	}
}
