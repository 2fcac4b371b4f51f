package notify

import (
	"context"
	"encoding/json"
	"errors"
	"hash/fnv"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"zenflow/internal/eventbus"
	rtsup "zenflow/internal/runtime/supervisor"
	"zenflow/internal/storage"
	logx "zenflow/pkg/logx"
)

// Service implements Dispatcher as queue + worker + rate limit + retry +
// dedup in front of one Sink.
//
// It is safe for concurrent use.
type Service struct {
	mu sync.Mutex

	log   logx.Logger
	sink  Sink
	bus   eventbus.Publisher
	store storage.Store

	cfg     Config
	limiter *rate.Limiter

	perm      PermissionState
	permMu    sync.Mutex // serializes permission requests
	accepting bool
	sendWG    sync.WaitGroup
	queue     chan Message
	sup       *rtsup.Supervisor

	dmu   sync.Mutex
	dedup map[uint64]time.Time
	now   func() time.Time
}

// New builds the service. store may be nil; when set, the permission answer
// is restored from it and saved to it, so a process restart does not reset
// a granted or denied state.
func New(cfg Config, sink Sink, log logx.Logger, bus eventbus.Publisher, store storage.Store) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{
		log:   log.With(logx.String("comp", "notify")),
		sink:  sink,
		bus:   bus,
		store: store,
		dedup: map[uint64]time.Time{},
		now:   time.Now,
	}
	s.applyLocked(cfg)
	s.perm = s.loadPermission(context.Background())
	return s
}

type permissionRecord struct {
	Sink  string `json:"sink"`
	State string `json:"state"`
}

// loadPermission returns the stored answer for the current sink. Answers
// recorded for another sink do not carry over.
func (s *Service) loadPermission(ctx context.Context) PermissionState {
	if s.store == nil || s.sink == nil {
		return Undetermined
	}
	b, ok, err := s.store.Get(ctx, PermissionKey)
	if err != nil {
		s.log.Warn("permission load failed", logx.Err(err))
		return Undetermined
	}
	if !ok || len(b) == 0 {
		return Undetermined
	}
	var rec permissionRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		s.log.Warn("stored permission unreadable", logx.Err(err))
		return Undetermined
	}
	if rec.Sink != s.sink.Name() {
		return Undetermined
	}
	state := parsePermission(rec.State)
	if state != Undetermined {
		s.log.Debug("notification permission restored", logx.String("sink", rec.Sink), logx.String("state", state.String()))
	}
	return state
}

func (s *Service) savePermission(ctx context.Context, state PermissionState) {
	if s.store == nil {
		return
	}
	b, err := json.Marshal(permissionRecord{Sink: s.sink.Name(), State: state.String()})
	if err != nil {
		return
	}
	if err := s.store.Set(ctx, PermissionKey, b); err != nil {
		s.log.Warn("permission save failed", logx.Err(err))
	}
}

// Apply swaps the pipeline settings. Queue size takes effect on the next
// Start.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.applyLocked(cfg)
	s.mu.Unlock()
}

func (s *Service) applyLocked(cfg Config) {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 1
	}
	if cfg.RetryMax < 0 {
		cfg.RetryMax = 0
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 500 * time.Millisecond
	}
	if cfg.DedupWindow < 0 {
		cfg.DedupWindow = 0
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	burst := int(cfg.RatePerSec)
	if burst < 1 {
		burst = 1
	}
	s.cfg = cfg
	s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), burst)
}

func (s *Service) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Enabled && s.sink != nil
}

// Start launches the delivery worker. It is idempotent.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queue != nil || !s.cfg.Enabled || s.sink == nil {
		return
	}
	s.queue = make(chan Message, s.cfg.QueueSize)
	s.accepting = true
	s.sup = rtsup.New(ctx, rtsup.WithLogger(s.log))
	q := s.queue
	s.sup.GoRestart("notify.worker", func(c context.Context) error {
		s.workerLoop(c, q)
		if c.Err() != nil {
			return c.Err()
		}
		return nil
	}, rtsup.WithPublishFirstError(true))
}

// Stop closes intake and lets the worker drain until ctx is done.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	q, sup := s.queue, s.sup
	if q == nil {
		s.mu.Unlock()
		return
	}
	s.accepting = false
	s.queue = nil
	s.sup = nil
	s.mu.Unlock()

	s.sendWG.Wait()
	close(q)
	if err := sup.Wait(ctx); err != nil {
		sup.Cancel()
		s.log.Debug("notify drain cut short", logx.Err(err))
	}
	if s.sink != nil {
		if err := s.sink.Close(); err != nil {
			s.log.Debug("sink close failed", logx.Err(err))
		}
	}
}

func (s *Service) PermissionState() PermissionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.cfg.Enabled || s.sink == nil {
		return Denied
	}
	return s.perm
}

// RequestPermission probes the sink while the answer is undetermined. Once
// an answer exists, it is returned without probing again.
func (s *Service) RequestPermission(ctx context.Context) PermissionState {
	if !s.Enabled() {
		return Denied
	}
	s.permMu.Lock()
	defer s.permMu.Unlock()
	if st := s.PermissionState(); st != Undetermined {
		return st
	}

	state := Granted
	if err := s.sink.Probe(ctx); err != nil {
		state = Denied
		s.log.Info("notification permission denied", logx.String("sink", s.sink.Name()), logx.Err(err))
	} else {
		s.log.Debug("notification permission granted", logx.String("sink", s.sink.Name()))
	}
	s.mu.Lock()
	s.perm = state
	s.mu.Unlock()
	s.savePermission(ctx, state)
	return s.PermissionState()
}

// Notify enqueues a message. Messages with the same dedup key inside the
// dedup window are dropped silently.
func (s *Service) Notify(ctx context.Context, m Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	switch {
	case !s.cfg.Enabled || s.sink == nil:
		s.mu.Unlock()
		return ErrDisabled
	case s.perm != Granted:
		s.mu.Unlock()
		return ErrNotPermitted
	case !s.accepting || s.queue == nil:
		s.mu.Unlock()
		return ErrStopped
	}
	q := s.queue
	window := s.cfg.DedupWindow
	s.sendWG.Add(1)
	s.mu.Unlock()
	defer s.sendWG.Done()

	if window > 0 && !s.dedupAllow(m, window) {
		s.publish(eventbus.NotifyDeduped, m, nil)
		return nil
	}
	select {
	case q <- m:
		return nil
	default:
		s.publish(eventbus.NotifyDropped, m, ErrQueueFull)
		return ErrQueueFull
	}
}

func (s *Service) workerLoop(ctx context.Context, q <-chan Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-q:
			if !ok {
				return
			}
			s.sendWithRetry(ctx, m)
		}
	}
}

func (s *Service) sendWithRetry(ctx context.Context, m Message) {
	s.mu.Lock()
	cfg, lim, sink := s.cfg, s.limiter, s.sink
	s.mu.Unlock()

	var lastErr error
	delay := cfg.RetryBase
	for attempt := 0; attempt <= cfg.RetryMax; attempt++ {
		if attempt > 0 {
			t := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				t.Stop()
				return
			case <-t.C:
			}
			delay *= 2
		}
		if err := lim.Wait(ctx); err != nil {
			return
		}
		sctx, cancel := context.WithTimeout(ctx, cfg.SendTimeout)
		err := sink.Send(sctx, m)
		cancel()
		if err == nil {
			s.publish(eventbus.NotifySent, m, nil)
			return
		}
		lastErr = err
		s.log.Debug("notify send failed", logx.String("sink", sink.Name()), logx.Int("attempt", attempt+1), logx.Err(err))
		if errors.Is(err, context.Canceled) {
			return
		}
	}
	s.log.Warn("notification dropped", logx.String("sink", sink.Name()), logx.Err(lastErr))
	s.publish(eventbus.NotifyFailed, m, lastErr)
}

func (s *Service) dedupAllow(m Message, window time.Duration) bool {
	key := dedupKey(m)
	now := s.now()

	s.dmu.Lock()
	defer s.dmu.Unlock()
	if until, ok := s.dedup[key]; ok && now.Before(until) {
		return false
	}
	for k, until := range s.dedup {
		if !now.Before(until) {
			delete(s.dedup, k)
		}
	}
	s.dedup[key] = now.Add(window)
	return true
}

func dedupKey(m Message) uint64 {
	h := fnv.New64a()
	if m.Key != "" {
		_, _ = h.Write([]byte("k|"))
		_, _ = h.Write([]byte(m.Key))
		return h.Sum64()
	}
	_, _ = h.Write([]byte(strconv.Itoa(len(m.Title))))
	_, _ = h.Write([]byte(m.Title))
	_, _ = h.Write([]byte(m.Body))
	return h.Sum64()
}

func (s *Service) publish(typ string, m Message, err error) {
	if s.bus == nil {
		return
	}
	ev := Event{Sink: s.sink.Name(), Title: m.Title, At: s.now()}
	if err != nil {
		ev.Error = err.Error()
	}
	eventbus.Publish(s.bus, typ, ev)
}
