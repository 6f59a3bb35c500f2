package eapsession

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/francistor/radeap/core"
	"github.com/prometheus/client_golang/prometheus"
)

// Store is a single-goroutine actor owning the correlator→*EapSession table.
// All access is serialised through its request channels, the idiom the
// reference sessionserver.RadiusSessionServer uses for its own session
// table's eventLoop: a single owner thread, exclusive hand-out between thaw
// and freeze, never two workers holding the same session concurrently.
type Store struct {
	lifetime time.Duration

	thawChan   chan thawRequest
	freezeChan chan freezeRequest
	createChan chan createRequest
	evictChan  chan struct{}
	closeChan  chan struct{}
	doneChan   chan struct{}

	sessionGauge prometheus.Gauge
	evictCounter prometheus.Counter
}

type entry struct {
	session *EapSession
	expires time.Time
	busy    bool
}

type thawRequest struct {
	correlator string
	reply      chan thawResult
}

type thawResult struct {
	session *EapSession
	found   bool
	busy    bool
}

type freezeRequest struct {
	session *EapSession
	reply   chan error
}

type createRequest struct {
	reply chan *EapSession
}

// NewStore starts a new session store whose entries are evicted after
// lifetime of inactivity (the RADIUS State-attribute lifetime).
func NewStore(lifetime time.Duration) *Store {
	st := &Store{
		lifetime:   lifetime,
		thawChan:   make(chan thawRequest),
		freezeChan: make(chan freezeRequest),
		createChan: make(chan createRequest),
		evictChan:  make(chan struct{}, 1),
		closeChan:  make(chan struct{}),
		doneChan:   make(chan struct{}),
		sessionGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "eap_sessions_live",
			Help: "Number of EAP sessions currently held by the store.",
		}),
		evictCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "eap_sessions_evicted_total",
			Help: "Number of EAP sessions evicted for exceeding their lifetime.",
		}),
	}
	go st.run()
	return st
}

// Collectors exposes this store's Prometheus metrics for registration.
func (st *Store) Collectors() []prometheus.Collector {
	return []prometheus.Collector{st.sessionGauge, st.evictCounter}
}

func (st *Store) run() {
	defer close(st.doneChan)

	sessions := make(map[string]*entry)
	ticker := time.NewTicker(st.lifetime / 4)
	defer ticker.Stop()

	sweep := func() {
		now := time.Now()
		for k, e := range sessions {
			if e.busy {
				continue
			}
			if now.After(e.expires) {
				e.session.FreeOpaque()
				e.session.ReleaseHandle()
				delete(sessions, k)
				st.evictCounter.Inc()
				core.GetLogger().Warnw("eap session evicted on timeout", "correlator", k)
			}
		}
		st.sessionGauge.Set(float64(len(sessions)))
	}

	for {
		select {
		case <-st.closeChan:
			return

		case <-ticker.C:
			sweep()

		case <-st.evictChan:
			sweep()

		case req := <-st.createChan:
			correlator, err := newCorrelator()
			if err != nil {
				req.reply <- nil
				continue
			}
			now := time.Now()
			s := NewSession(correlator, now)
			sessions[correlator] = &entry{session: s, expires: now.Add(st.lifetime), busy: true}
			st.sessionGauge.Set(float64(len(sessions)))
			req.reply <- s

		case req := <-st.thawChan:
			e, found := sessions[req.correlator]
			if !found {
				req.reply <- thawResult{found: false}
				continue
			}
			if e.busy {
				// A retransmission arrived before the previous round
				// completed. The same session must never be handed to two
				// workers concurrently; report busy rather than block,
				// leaving retry policy to the caller.
				req.reply <- thawResult{busy: true}
				continue
			}
			e.busy = true
			req.reply <- thawResult{session: e.session, found: true}

		case req := <-st.freezeChan:
			e, found := sessions[req.session.Correlator]
			if !found {
				req.reply <- fmt.Errorf("freeze of unknown correlator %s", req.session.Correlator)
				continue
			}
			if req.session.ShouldDestroyOnFreeze() {
				e.session.FreeOpaque()
				e.session.ReleaseHandle()
				delete(sessions, req.session.Correlator)
				st.sessionGauge.Set(float64(len(sessions)))
				req.reply <- nil
				continue
			}
			e.session = req.session
			e.busy = false
			e.expires = time.Now().Add(st.lifetime)
			req.reply <- nil
		}
	}
}

// Create allocates a brand-new session under a fresh correlator, returned
// already held exclusively by the caller (as if just thawed).
func (st *Store) Create() (*EapSession, error) {
	reply := make(chan *EapSession)
	st.createChan <- createRequest{reply: reply}
	s := <-reply
	if s == nil {
		return nil, fmt.Errorf("could not allocate a session correlator")
	}
	return s, nil
}

// ErrBusy is returned by Thaw when the correlator names a session another
// worker currently holds.
var ErrBusy = fmt.Errorf("session busy: held by another worker")

// Thaw looks up a session by correlator and, if found and not already held
// by another worker, hands it to the caller under exclusive ownership. The
// caller must Freeze it (even a destroyed one) when done.
func (st *Store) Thaw(correlator string) (*EapSession, error) {
	reply := make(chan thawResult)
	st.thawChan <- thawRequest{correlator: correlator, reply: reply}
	res := <-reply
	if res.busy {
		return nil, ErrBusy
	}
	if !res.found {
		return nil, nil
	}
	return res.session, nil
}

// Freeze returns a session to the store. If the session has reached a
// terminal state it is discarded instead of stored.
func (st *Store) Freeze(s *EapSession) error {
	reply := make(chan error)
	st.freezeChan <- freezeRequest{session: s, reply: reply}
	return <-reply
}

// Close stops the store's goroutine, waiting for it to exit.
func (st *Store) Close() {
	close(st.closeChan)
	<-st.doneChan
}

func newCorrelator() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
