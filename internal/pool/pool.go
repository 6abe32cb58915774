// Package pool keeps one live exchange client per credential identity and
// hands it to one caller at a time.
package pool

import (
	"context"
	"errors"
	"io"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"exchangelink/internal/errs"
	"exchangelink/internal/exchange"
	"exchangelink/internal/metrics"
	"exchangelink/logger"
	"exchangelink/models"
)

// ErrClosed is the cause of acquisitions attempted after Close.
var ErrClosed = errors.New("pool closed")

const defaultAcquireTimeout = 10 * time.Second

// Options tunes the pool. Zero values fall back to the defaults noted.
type Options struct {
	AcquireTimeout         time.Duration // 10s
	IdleTimeout            time.Duration // 0 disables idle eviction
	MaxConsecutiveFailures int           // 0 disables failure eviction
	JanitorInterval        time.Duration // 0 disables the janitor
}

// Fingerprinter derives a keyed, non-reversible digest of a value.
type Fingerprinter interface {
	Fingerprint(value string) string
}

// Key identifies one pooled client. It never holds credential material.
type Key struct {
	Exchange string
	id       string
}

// KeyFor derives the identity key of a credential set. Two keys are equal
// exactly when exchange, api key, secret and sandbox flag are equal.
func KeyFor(fp Fingerprinter, exchangeID string, creds models.Credentials, sandbox bool) Key {
	secret := fp.Fingerprint(creds.APISecret)
	id := fp.Fingerprint(strings.Join([]string{exchangeID, creds.APIKey, secret, strconv.FormatBool(sandbox)}, "\x00"))
	return Key{Exchange: exchangeID, id: id}
}

// String is safe to log.
func (k Key) String() string {
	short := k.id
	if len(short) > 12 {
		short = short[:12]
	}
	return k.Exchange + "/" + short
}

// Factory builds a new client for a key. It runs outside the pool lock.
type Factory func() (exchange.Client, error)

type entry struct {
	key Key
	// token holds one value while the entry is free; receiving it grants
	// exclusive use of client.
	token    chan struct{}
	client   exchange.Client
	failures int
	lastUsed time.Time
	inUse    bool
	evicted  bool
}

// Pool is safe for concurrent use.
type Pool struct {
	opts Options
	log  *logger.Log
	now  func() time.Time

	mu      sync.Mutex
	entries map[Key]*entry
	closed  bool

	stop chan struct{}
	wg   sync.WaitGroup
}

// Stats is a point-in-time view of the pool.
type Stats struct {
	Entries int `json:"entries"`
	Clients int `json:"clients"`
	InUse   int `json:"inUse"`
}

// New creates a pool and starts its janitor when both JanitorInterval and
// IdleTimeout are set.
func New(opts Options, log *logger.Log) *Pool {
	if opts.AcquireTimeout <= 0 {
		opts.AcquireTimeout = defaultAcquireTimeout
	}
	if log == nil {
		log = logger.GetLogger()
	}
	p := &Pool{
		opts:    opts,
		log:     log,
		now:     time.Now,
		entries: make(map[Key]*entry),
		stop:    make(chan struct{}),
	}
	if opts.JanitorInterval > 0 && opts.IdleTimeout > 0 {
		p.wg.Add(1)
		go p.janitor()
	}
	return p
}

func (p *Pool) entryFor(key Key) (*entry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, errs.PoolTimeout(ErrClosed, "%s: pool is closed", key.Exchange)
	}
	e, ok := p.entries[key]
	if !ok {
		e = &entry{key: key, token: make(chan struct{}, 1), lastUsed: p.now()}
		e.token <- struct{}{}
		p.entries[key] = e
	}
	return e, nil
}

// Acquire waits until the client for key is free and returns a handle to it,
// building the client with factory when none exists. It fails with a pool
// timeout error when the client stays busy past AcquireTimeout or ctx ends
// first. The caller must Release the handle exactly once.
func (p *Pool) Acquire(ctx context.Context, key Key, factory Factory) (*Handle, error) {
	start := time.Now()
	timer := time.NewTimer(p.opts.AcquireTimeout)
	defer timer.Stop()

	for {
		e, err := p.entryFor(key)
		if err != nil {
			return nil, err
		}

		select {
		case <-e.token:
		case <-timer.C:
			metrics.IncPoolTimeout(key.Exchange)
			return nil, errs.PoolTimeout(nil, "%s: no client available within %s", key.Exchange, p.opts.AcquireTimeout)
		case <-ctx.Done():
			metrics.IncPoolTimeout(key.Exchange)
			return nil, errs.PoolTimeout(ctx.Err(), "%s: acquire abandoned", key.Exchange)
		}

		p.mu.Lock()
		if e.evicted {
			// dropped while we waited; let other waiters notice too
			p.mu.Unlock()
			e.token <- struct{}{}
			continue
		}
		e.inUse = true
		client := e.client
		p.mu.Unlock()

		if client == nil {
			client, err = factory()
			if err != nil {
				p.mu.Lock()
				e.inUse = false
				e.lastUsed = p.now()
				p.mu.Unlock()
				e.token <- struct{}{}
				return nil, err
			}
			metrics.IncConstruction(key.Exchange)
			p.log.WithComponent("pool").WithFields(logger.Fields{"key": key.String()}).Debug("client constructed")

			p.mu.Lock()
			e.client = client
			e.failures = 0
			p.mu.Unlock()
		}

		metrics.ObserveAcquireWait(time.Since(start))
		p.reportSize()
		return &Handle{pool: p, entry: e, client: client}, nil
	}
}

func (p *Pool) release(e *entry) {
	var (
		dropped exchange.Client
		reason  string
	)
	p.mu.Lock()
	e.inUse = false
	e.lastUsed = p.now()
	switch {
	case p.closed:
		dropped, reason = e.client, "closed"
		delete(p.entries, e.key)
		e.evicted = true
	case p.opts.MaxConsecutiveFailures > 0 && e.failures >= p.opts.MaxConsecutiveFailures:
		dropped, reason = e.client, "failures"
	}
	if dropped != nil {
		e.client = nil
		e.failures = 0
	}
	p.mu.Unlock()

	if dropped != nil {
		p.discard(e.key, dropped, reason)
	}
	e.token <- struct{}{}
	p.reportSize()
}

func (p *Pool) report(e *entry, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err == nil {
		e.failures = 0
		return
	}
	if !errs.IsCallerFault(err) {
		e.failures++
	}
}

func (p *Pool) discard(key Key, client exchange.Client, reason string) {
	metrics.IncEviction(reason)
	log := p.log.WithComponent("pool").WithFields(logger.Fields{"key": key.String(), "reason": reason})
	if closer, ok := client.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			log.WithError(err).Warn("closing evicted client failed")
		}
	}
	log.Info("client evicted")
}

// EvictIdle drops every free client unused for longer than IdleTimeout and
// returns how many were dropped.
func (p *Pool) EvictIdle() int {
	if p.opts.IdleTimeout <= 0 {
		return 0
	}
	now := p.now()
	var dropped []*entry

	p.mu.Lock()
	for k, e := range p.entries {
		if e.inUse {
			continue
		}
		select {
		case <-e.token:
		default:
			continue
		}
		if now.Sub(e.lastUsed) >= p.opts.IdleTimeout {
			delete(p.entries, k)
			e.evicted = true
			dropped = append(dropped, e)
		}
		e.token <- struct{}{}
	}
	p.mu.Unlock()

	for _, e := range dropped {
		if e.client != nil {
			p.discard(e.key, e.client, "idle")
		}
	}
	if len(dropped) > 0 {
		p.reportSize()
	}
	return len(dropped)
}

func (p *Pool) janitor() {
	defer p.wg.Done()
	ticker := time.NewTicker(p.opts.JanitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			p.EvictIdle()
		}
	}
}

// Stats reports the current pool occupancy.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := Stats{Entries: len(p.entries)}
	for _, e := range p.entries {
		if e.client != nil {
			s.Clients++
		}
		if e.inUse {
			s.InUse++
		}
	}
	return s
}

func (p *Pool) reportSize() {
	s := p.Stats()
	metrics.SetPoolSize(s.Clients, s.InUse)
}

// Close stops the janitor and drops every free client. Clients still checked
// out are dropped when released. Further acquisitions fail.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	var dropped []*entry
	for k, e := range p.entries {
		select {
		case <-e.token:
		default:
			continue
		}
		delete(p.entries, k)
		e.evicted = true
		dropped = append(dropped, e)
		e.token <- struct{}{}
	}
	p.mu.Unlock()

	close(p.stop)
	p.wg.Wait()

	for _, e := range dropped {
		if e.client != nil {
			p.discard(e.key, e.client, "closed")
		}
	}
	p.reportSize()
}

// Handle is one checked out client.
type Handle struct {
	pool     *Pool
	entry    *entry
	client   exchange.Client
	released atomic.Bool
}

// Client returns the checked out client. It must not be used after Release.
func (h *Handle) Client() exchange.Client { return h.client }

// Report records the outcome of a call made with the client. Failures that
// are not the caller's fault count towards eviction; a success resets the
// count.
func (h *Handle) Report(err error) {
	h.pool.report(h.entry, err)
}

// Release returns the client to the pool. Calls after the first are no-ops.
func (h *Handle) Release() {
	if !h.released.CompareAndSwap(false, true) {
		return
	}
	h.pool.release(h.entry)
}
