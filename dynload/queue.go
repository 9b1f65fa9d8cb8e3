// SPDX-License-Identifier: GPL-2.0-or-later

package dynload

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var (
	ErrNotManaged   = errors.New("model is not dynamically managed")
	ErrLoadInFlight = errors.New("load already in flight")
	ErrNotQueued    = errors.New("model is not queued")
	ErrNoReference  = errors.New("no reference to release")
)

type State int

const (
	Absent State = iota
	Queued
	Loading
	ClientReady
	ServerPending // client side done, waiting for the server
	FullyReady
)

func (s State) String() string {
	switch s {
	case Absent:
		return "absent"
	case Queued:
		return "queued"
	case Loading:
		return "loading"
	case ClientReady:
		return "client-ready"
	case ServerPending:
		return "server-pending"
	case FullyReady:
		return "ready"
	}
	return "unknown"
}

const (
	DefaultGrace         = 150 * time.Second
	DefaultSweepInterval = time.Second
)

// Callback runs on the Update goroutine once the model is ready. err is the
// load error, if any.
type Callback func(name string, err error)

// Hooks connect the queue to whoever owns the assets.
type Hooks struct {
	// Load runs on the background goroutine.
	Load func(ctx context.Context, name string) (any, error)
	// Install runs on the Update goroutine with the result of Load.
	Install func(name string, result any, err error)
	// Unload runs when an idle entry is evicted or a queued one cancelled.
	Unload func(name string)
}

type registration struct {
	id         uuid.UUID
	fn         Callback
	clientOnly bool
}

// Entry is the queue's view of one dynamically loaded model.
type Entry struct {
	Name           string
	ID             uuid.UUID
	RefCount       int
	ClientRefCount int
	State          State
	LastTouch      time.Time // when RefCount last dropped to zero
	Err            error

	callbacks []registration
}

func (e *Entry) clientReady() bool {
	return e.State >= ClientReady
}

type result struct {
	e   *Entry
	res any
	err error
}

type call struct {
	fn   Callback
	name string
	err  error
}

// Queue loads models in the background, one at a time, client requests
// first.
type Queue struct {
	hooks Hooks
	log   logrus.FieldLogger
	now   func() time.Time

	mu         sync.Mutex
	entries    map[string]*Entry
	pending    []*Entry
	loading    *Entry
	results    chan result
	grace      time.Duration
	sweepEvery time.Duration
	lastSweep  time.Time
	split      bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type Option func(*Queue)

func WithLogger(l logrus.FieldLogger) Option {
	return func(q *Queue) { q.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

func WithGrace(d time.Duration) Option {
	return func(q *Queue) { q.grace = d }
}

func WithSweepInterval(d time.Duration) Option {
	return func(q *Queue) { q.sweepEvery = d }
}

// WithSplit makes server completion wait for ConfirmServer.
func WithSplit(split bool) Option {
	return func(q *Queue) { q.split = split }
}

func New(h Hooks, opts ...Option) *Queue {
	q := &Queue{
		hooks:      h,
		log:        logrus.StandardLogger(),
		now:        time.Now,
		entries:    make(map[string]*Entry),
		results:    make(chan result, 1),
		grace:      DefaultGrace,
		sweepEvery: DefaultSweepInterval,
	}
	for _, o := range opts {
		o(q)
	}
	q.ctx, q.cancel = context.WithCancel(context.Background())
	return q
}

func (q *Queue) SetGrace(d time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.grace = d
}

func (q *Queue) SetSweepInterval(d time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.sweepEvery = d
}

func (q *Queue) SetSplit(split bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.split = split
}

// AddRef takes a reference on name, queueing it if it is not managed yet.
// Client references jump ahead of everything that is not already loading.
func (q *Queue) AddRef(name string, client bool) {
	q.addRef(name, client, false)
}

// AddResident takes a reference on a model its owner already has loaded.
// The entry is ready at once and nothing is read in the background.
func (q *Queue) AddResident(name string, client bool) {
	q.addRef(name, client, true)
}

func (q *Queue) addRef(name string, client, resident bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.entries[name]
	switch {
	case !ok && resident:
		e = &Entry{
			Name:  name,
			ID:    uuid.Must(uuid.NewV7()),
			State: FullyReady,
		}
		q.entries[name] = e
	case !ok:
		e = &Entry{
			Name:  name,
			ID:    uuid.Must(uuid.NewV7()),
			State: Queued,
		}
		q.entries[name] = e
		q.enqueue(e, client)
	case resident && e.State == Queued:
		q.removePending(e)
		e.State = FullyReady
	case client && e.State == Queued && e.ClientRefCount == 0:
		q.removePending(e)
		q.enqueue(e, true)
	}
	e.RefCount++
	if client {
		e.ClientRefCount++
	}
	e.LastTouch = time.Time{}
	// a server reference on a client only model needs the server part
	if !client && e.State == ClientReady {
		e.State = q.serverState()
	}
	q.log.WithFields(logrus.Fields{"asset": name, "client": client, "refs": e.RefCount, "state": e.State}).Debug("dynamic addref")
}

func (q *Queue) serverState() State {
	if q.split {
		return ServerPending
	}
	return FullyReady
}

func (q *Queue) enqueue(e *Entry, front bool) {
	if front {
		q.pending = append([]*Entry{e}, q.pending...)
		return
	}
	q.pending = append(q.pending, e)
}

func (q *Queue) removePending(e *Entry) {
	for i, p := range q.pending {
		if p == e {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			return
		}
	}
}

// Release drops a reference. The model stays loaded until it has been idle
// for the grace period.
func (q *Queue) Release(name string, client bool) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.entries[name]
	if !ok {
		return errors.Wrap(ErrNotManaged, name)
	}
	if e.RefCount == 0 || (client && e.ClientRefCount == 0) {
		return errors.Wrap(ErrNoReference, name)
	}
	e.RefCount--
	if client {
		e.ClientRefCount--
	}
	if e.RefCount == 0 {
		e.LastTouch = q.now()
	}
	return nil
}

// Cancel stops a queued load. A load that already started cannot be
// cancelled.
func (q *Queue) Cancel(name string) error {
	q.mu.Lock()
	e, ok := q.entries[name]
	if !ok {
		q.mu.Unlock()
		return errors.Wrap(ErrNotManaged, name)
	}
	switch e.State {
	case Loading:
		q.mu.Unlock()
		return errors.Wrap(ErrLoadInFlight, name)
	case Queued:
	default:
		q.mu.Unlock()
		return errors.Wrapf(ErrNotQueued, "%s is %v", name, e.State)
	}
	q.removePending(e)
	delete(q.entries, name)
	q.mu.Unlock()
	if q.hooks.Unload != nil {
		q.hooks.Unload(name)
	}
	return nil
}

// ConfirmServer completes the server side of a split load.
func (q *Queue) ConfirmServer(name string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.entries[name]
	if !ok {
		return errors.Wrap(ErrNotManaged, name)
	}
	if e.State == ServerPending {
		e.State = FullyReady
	}
	return nil
}

// RegisterCallback asks for fn to run once name is ready, on the client
// side only if clientOnly. With immediate set and the model already ready,
// fn runs before RegisterCallback returns and is not kept.
func (q *Queue) RegisterCallback(name string, fn Callback, clientOnly, immediate bool) (uuid.UUID, error) {
	id := uuid.New()
	q.mu.Lock()
	e, ok := q.entries[name]
	if !ok {
		q.mu.Unlock()
		return uuid.Nil, errors.Wrap(ErrNotManaged, name)
	}
	ready := e.State == FullyReady || (clientOnly && e.clientReady())
	if immediate && ready {
		err := e.Err
		q.mu.Unlock()
		fn(name, err)
		return id, nil
	}
	e.callbacks = append(e.callbacks, registration{id: id, fn: fn, clientOnly: clientOnly})
	q.mu.Unlock()
	return id, nil
}

// UnregisterCallback removes a pending callback. Unknown ids are ignored.
func (q *Queue) UnregisterCallback(name string, id uuid.UUID) {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.entries[name]
	if !ok {
		return
	}
	for i, r := range e.callbacks {
		if r.id == id {
			e.callbacks = append(e.callbacks[:i], e.callbacks[i+1:]...)
			return
		}
	}
}

// IsReady reports whether name finished loading for the given side.
func (q *Queue) IsReady(name string, client bool) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.entries[name]
	if !ok {
		return false
	}
	if client {
		return e.clientReady()
	}
	return e.State == FullyReady
}

func (q *Queue) State(name string) State {
	q.mu.Lock()
	defer q.mu.Unlock()
	if e, ok := q.entries[name]; ok {
		return e.State
	}
	return Absent
}

// Entries returns copies of the managed entries sorted by name.
func (q *Queue) Entries() []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Entry, 0, len(q.entries))
	for _, e := range q.entries {
		c := *e
		c.callbacks = nil
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Pending returns the queued names in service order.
func (q *Queue) Pending() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, len(q.pending))
	for i, e := range q.pending {
		out[i] = e.Name
	}
	return out
}

// Update advances the queue. It must be called regularly from one
// goroutine; hooks and callbacks run on it.
func (q *Queue) Update(now time.Time) {
	select {
	case r := <-q.results:
		q.complete(r, now)
	default:
	}
	q.startNext()
	q.flushCallbacks()
	q.sweep(now)
}

func (q *Queue) complete(r result, now time.Time) {
	if q.hooks.Install != nil {
		q.hooks.Install(r.e.Name, r.res, r.err)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	e := r.e
	q.loading = nil
	e.Err = r.err
	switch {
	case r.err != nil:
		e.State = FullyReady
	case e.RefCount > e.ClientRefCount:
		e.State = q.serverState()
	case e.ClientRefCount > 0:
		e.State = ClientReady
	default:
		// released while loading
		e.State = FullyReady
		e.LastTouch = now
	}
	l := q.log.WithFields(logrus.Fields{"asset": e.Name, "state": e.State})
	if r.err != nil {
		l.WithError(r.err).Warn("dynamic load failed")
	} else {
		l.Debug("dynamic load done")
	}
}

func (q *Queue) startNext() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.loading != nil || len(q.pending) == 0 {
		return
	}
	e := q.pending[0]
	q.pending = q.pending[1:]
	e.State = Loading
	q.loading = e
	name, ctx := e.Name, q.ctx
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		var res any
		var err error
		if q.hooks.Load != nil {
			res, err = q.hooks.Load(ctx, name)
		}
		q.results <- result{e: e, res: res, err: err}
	}()
}

func (q *Queue) flushCallbacks() {
	var calls []call
	q.mu.Lock()
	names := make([]string, 0, len(q.entries))
	for n := range q.entries {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		e := q.entries[n]
		if !e.clientReady() || len(e.callbacks) == 0 {
			continue
		}
		kept := e.callbacks[:0]
		for _, r := range e.callbacks {
			if e.State == FullyReady || (r.clientOnly && e.clientReady()) {
				calls = append(calls, call{fn: r.fn, name: e.Name, err: e.Err})
				continue
			}
			kept = append(kept, r)
		}
		e.callbacks = kept
	}
	q.mu.Unlock()
	for _, c := range calls {
		c.fn(c.name, c.err)
	}
}

func (q *Queue) sweep(now time.Time) {
	q.mu.Lock()
	if now.Sub(q.lastSweep) < q.sweepEvery {
		q.mu.Unlock()
		return
	}
	q.lastSweep = now
	var evicted []string
	for name, e := range q.entries {
		if e.RefCount > 0 || e.State == Loading || e.LastTouch.IsZero() {
			continue
		}
		if now.Sub(e.LastTouch) < q.grace {
			continue
		}
		if e.State == Queued {
			q.removePending(e)
		}
		delete(q.entries, name)
		evicted = append(evicted, name)
	}
	q.mu.Unlock()
	sort.Strings(evicted)
	for _, name := range evicted {
		q.log.WithField("asset", name).Debug("dynamic unload")
		if q.hooks.Unload != nil {
			q.hooks.Unload(name)
		}
	}
}

// Close cancels the running load and waits for it.
func (q *Queue) Close() {
	q.cancel()
	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	for {
		select {
		case <-done:
			return
		case <-q.results:
		}
	}
}
