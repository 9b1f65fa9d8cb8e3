// SPDX-License-Identifier: GPL-2.0-or-later

package model

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"govbsp/bsp"
)

// Source reads asset files by name.
type Source interface {
	ReadFile(name string) ([]byte, error)
}

// WorldLoader turns the contents of a map file into world data.
type WorldLoader interface {
	LoadWorld(ctx context.Context, name string, data []byte) (*bsp.WorldData, error)
}

// DynamicQueue services dynamic references in the background.
type DynamicQueue interface {
	AddRef(name string, clientSide bool)
	// AddResident is AddRef for a model that is already loaded.
	AddResident(name string, clientSide bool)
	Release(name string, clientSide bool) error
}

// Registry tracks every asset by name together with its references.
type Registry struct {
	log     logrus.FieldLogger
	src     Source
	worlds  WorldLoader
	loaders loaderTable

	mu      sync.Mutex
	strict  bool
	dynamic DynamicQueue
	onWorld func(old, cur *bsp.WorldData)
	records map[string]*Record
	session int
	world   *Record
}

type Option func(*Registry)

func WithLogger(l logrus.FieldLogger) Option {
	return func(r *Registry) { r.log = l }
}

// WithStrict makes reference count violations panic.
func WithStrict(strict bool) Option {
	return func(r *Registry) { r.strict = strict }
}

func WithDynamicQueue(q DynamicQueue) Option {
	return func(r *Registry) { r.dynamic = q }
}

// WithLoader overrides the loader for magic in this registry only.
func WithLoader(kind Kind, magic uint32, f LoadFunc) Option {
	return func(r *Registry) { r.loaders.byMagic[magic] = loader{kind, f} }
}

// WithWorldHook is called after the active world changes. Either argument
// may be nil.
func WithWorldHook(f func(old, cur *bsp.WorldData)) Option {
	return func(r *Registry) { r.onWorld = f }
}

func NewRegistry(src Source, worlds WorldLoader, opts ...Option) *Registry {
	r := &Registry{
		log:     logrus.StandardLogger(),
		src:     src,
		worlds:  worlds,
		loaders: defaultLoaders(),
		records: make(map[string]*Record),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *Registry) SetStrict(strict bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strict = strict
}

func (r *Registry) SetDynamicQueue(q DynamicQueue) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dynamic = q
}

// BeginSession starts a new level and returns its number.
func (r *Registry) BeginSession() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.session++
	return r.session
}

func (r *Registry) Session() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session
}

// FindOrCreate returns the record for name, creating an unloaded one.
func (r *Registry) FindOrCreate(name string) (*Record, error) {
	n := NormalizeName(name)
	kind, err := KindOf(n)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.findOrCreateLocked(n, kind), nil
}

func (r *Registry) findOrCreateLocked(name string, kind Kind) *Record {
	k := Key(name)
	if rec, ok := r.records[k]; ok {
		return rec
	}
	rec := &Record{Name: name, Key: k, Kind: kind}
	r.records[k] = rec
	return rec
}

// Find returns the record for name or nil.
func (r *Registry) Find(name string) *Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.records[Key(NormalizeName(name))]
}

// Acquire adds ref to the asset and loads it if needed. Dynamic references
// only queue the asset and never block. Acquiring a reference the record
// already holds does nothing but touch the session.
func (r *Registry) Acquire(ctx context.Context, name string, ref RefType) (*Record, error) {
	n := NormalizeName(name)
	kind, err := KindOf(n)
	if err != nil {
		return nil, err
	}
	if ref.Dynamic() && kind != KindStudio && kind != KindSprite {
		return nil, errors.Errorf("%s: %v models can not be loaded dynamically", n, kind)
	}
	r.mu.Lock()
	rec := r.findOrCreateLocked(n, kind)
	if rec.Bad {
		r.mu.Unlock()
		return rec, errors.Wrap(ErrNotFound, rec.Name)
	}
	had := rec.Refs.Has(ref)
	rec.Refs = rec.Refs.With(ref)
	rec.LastSession = r.session
	if ref.Dynamic() {
		q, loaded := r.dynamic, rec.Loaded
		r.mu.Unlock()
		switch {
		case q == nil:
			return rec, errors.Errorf("%s: no dynamic queue", rec.Name)
		case had:
		case loaded:
			q.AddResident(rec.Name, ref == RefDynamicClient)
		default:
			q.AddRef(rec.Name, ref == RefDynamicClient)
		}
		return rec, nil
	}
	if rec.Loaded {
		r.mu.Unlock()
		return rec, nil
	}
	if kind == KindSubmodel {
		defer r.mu.Unlock()
		return rec, r.bindSubmodelLocked(rec)
	}
	r.mu.Unlock()

	l := r.log.WithFields(logrus.Fields{"asset": rec.Name, "ref": ref})
	p, err := r.LoadPayload(ctx, rec.Name)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			r.mu.Lock()
			rec.Bad = true
			r.mu.Unlock()
			l.Warn("missing asset")
		}
		return rec, err
	}
	r.Install(rec, p)
	l.Debug("loaded")
	return rec, nil
}

func (r *Registry) bindSubmodelLocked(rec *Record) error {
	i := submodelIndex(rec.Name)
	if r.world == nil {
		return errors.Errorf("%s: no world loaded", rec.Name)
	}
	w := r.worldLocked()
	if i <= 0 || i >= len(w.Models) {
		rec.Bad = true
		return errors.Wrap(ErrNotFound, rec.Name)
	}
	rec.Payload = &SubmodelPayload{World: w, Index: i}
	rec.Loaded = true
	return nil
}

// LoadPayload reads and decodes name without touching any record. It is safe
// to call from a background goroutine.
func (r *Registry) LoadPayload(ctx context.Context, name string) (Payload, error) {
	n := NormalizeName(name)
	kind, err := KindOf(n)
	if err != nil {
		return nil, err
	}
	if kind == KindSubmodel {
		return nil, errors.Errorf("%s: submodels come with their world", n)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := r.src.ReadFile(n)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errors.Wrap(ErrNotFound, n)
		}
		return nil, errors.Wrapf(err, "read %s", n)
	}
	if kind == KindWorld {
		if r.worlds == nil {
			return nil, errors.Errorf("%s: no world loader", n)
		}
		w, err := r.worlds.LoadWorld(ctx, n, data)
		if err != nil {
			return nil, err
		}
		return &WorldPayload{World: w}, nil
	}
	f, ok := r.loaders.find(kind, data)
	if !ok {
		return nil, errors.Wrapf(ErrUnknownFormat, "%s", n)
	}
	a, err := f(n, data)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", n)
	}
	if kind == KindSprite {
		return &SpritePayload{Model: a}, nil
	}
	return &StudioPayload{Model: a}, nil
}

// Install attaches a decoded payload to rec. A record that got loaded in the
// meantime keeps its payload. Installing a world replaces the active one.
func (r *Registry) Install(rec *Record, p Payload) {
	r.mu.Lock()
	if rec.Loaded || r.records[rec.Key] != rec {
		r.mu.Unlock()
		return
	}
	rec.Payload = p
	rec.Loaded = true
	wp, ok := p.(*WorldPayload)
	if !ok {
		r.mu.Unlock()
		return
	}
	old := r.worldLocked()
	if r.world != nil {
		r.removeLocked(r.world)
	}
	r.world = rec
	for i := 1; i < len(wp.World.Models); i++ {
		name := fmt.Sprintf("*%d", i)
		sub := r.findOrCreateLocked(name, KindSubmodel)
		sub.Refs = rec.Refs.Without(RefDynamicServer).Without(RefDynamicClient)
		sub.LastSession = rec.LastSession
		sub.Payload = &SubmodelPayload{World: wp.World, Index: i}
		sub.Loaded = true
		sub.Bad = false
	}
	hook := r.onWorld
	r.mu.Unlock()
	if hook != nil {
		hook(old, wp.World)
	}
}

// World returns the active world or nil.
func (r *Registry) World() *bsp.WorldData {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.worldLocked()
}

// Release drops ref from rec. Releasing a reference the record does not hold
// panics in strict mode and is ignored otherwise.
func (r *Registry) Release(rec *Record, ref RefType) {
	r.mu.Lock()
	if r.records[rec.Key] != rec || !rec.Refs.Has(ref) {
		strict := r.strict
		r.mu.Unlock()
		msg := fmt.Sprintf("release of %v reference not held by %s", ref, rec.Name)
		if strict {
			panic(msg)
		}
		r.log.WithFields(logrus.Fields{"asset": rec.Name, "ref": ref}).Warn(msg)
		return
	}
	rec.Refs = rec.Refs.Without(ref)
	q := r.dynamic
	r.mu.Unlock()
	if ref.Dynamic() && q != nil {
		if err := q.Release(rec.Name, ref == RefDynamicClient); err != nil {
			r.log.WithField("asset", rec.Name).WithError(err).Warn("dynamic release")
		}
	}
}

// ReleaseName is Release by name.
func (r *Registry) ReleaseName(name string, ref RefType) error {
	rec := r.Find(name)
	if rec == nil {
		return errors.Wrap(ErrNotFound, name)
	}
	r.Release(rec, ref)
	return nil
}

// Purge drops the references of every asset not touched in the current
// session, except dynamic ones, and then unloads all assets left without
// references. Submodels keep the references they got from their world and go
// with it. Bad records are dropped too so a later level can retry them. It
// returns the number of records removed.
func (r *Registry) Purge() int {
	r.mu.Lock()
	oldWorld := r.worldLocked()
	var removed []string
	for k, rec := range r.records {
		if rec.Kind != KindSubmodel && rec.LastSession != r.session {
			rec.Refs = rec.Refs.Persistent()
		}
		if rec.Refs.Empty() || rec.Bad {
			removed = append(removed, k)
		}
	}
	sort.Strings(removed)
	before := len(r.records)
	for _, k := range removed {
		if rec, ok := r.records[k]; ok {
			r.removeLocked(rec)
		}
	}
	n := before - len(r.records)
	newWorld := r.worldLocked()
	hook := r.onWorld
	r.mu.Unlock()
	if hook != nil && oldWorld != newWorld {
		hook(oldWorld, newWorld)
	}
	r.log.WithField("removed", n).Debug("purge")
	return n
}

func (r *Registry) worldLocked() *bsp.WorldData {
	if r.world == nil {
		return nil
	}
	return r.world.Payload.(*WorldPayload).World
}

// removeLocked drops rec and, for the active world, its submodels.
func (r *Registry) removeLocked(rec *Record) {
	delete(r.records, rec.Key)
	rec.Loaded = false
	rec.Payload = nil
	if rec != r.world {
		return
	}
	r.world = nil
	for k, sub := range r.records {
		if sub.Kind == KindSubmodel {
			delete(r.records, k)
			sub.Loaded = false
			sub.Payload = nil
		}
	}
}

// Unload removes name regardless of its references.
func (r *Registry) Unload(name string) error {
	r.mu.Lock()
	rec, ok := r.records[Key(NormalizeName(name))]
	if !ok {
		r.mu.Unlock()
		return errors.Wrap(ErrNotFound, name)
	}
	var old *bsp.WorldData
	if rec == r.world {
		old = r.worldLocked()
	}
	dyn := rec.Refs.Persistent()
	r.removeLocked(rec)
	q, hook := r.dynamic, r.onWorld
	r.mu.Unlock()
	if q != nil {
		for _, t := range dyn.Types() {
			q.Release(rec.Name, t == RefDynamicClient)
		}
	}
	if old != nil && hook != nil {
		hook(old, nil)
	}
	return nil
}

// InstallDynamic takes the result of a background load.
func (r *Registry) InstallDynamic(name string, res any, err error) {
	r.mu.Lock()
	rec, ok := r.records[Key(name)]
	r.mu.Unlock()
	if !ok {
		return
	}
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			r.mu.Lock()
			rec.Bad = true
			r.mu.Unlock()
		}
		return
	}
	p, ok := res.(Payload)
	if !ok {
		r.log.WithField("asset", name).Errorf("dynamic load returned %T", res)
		return
	}
	r.Install(rec, p)
}

// EvictDynamic drops the dynamic references of name after the queue let it
// go. The record is unloaded when nothing else holds it.
func (r *Registry) EvictDynamic(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[Key(name)]
	if !ok {
		return
	}
	rec.Refs = rec.Refs.Without(RefDynamicServer).Without(RefDynamicClient)
	if rec.Refs.Empty() {
		r.removeLocked(rec)
	}
}

// Records returns a copy of every record sorted by name.
func (r *Registry) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
