package lockservice

import (
	"sync"
	"time"

	"github.com/coldfront/dfs/internal/dfserr"
	"github.com/coldfront/dfs/internal/logger"
	"github.com/coldfront/dfs/pkg/metrics"
)

// dispatchQueueSize bounds the revoke/retry dispatcher queues. A full
// queue means callbacks aren't keeping up with grant traffic; jobs are
// dropped with a warning rather than blocking the lock mutex.
const dispatchQueueSize = 1024

// defaultDialTimeout bounds how long a dispatcher will wait to reach a
// client's callback listener before giving up on that job.
const defaultDialTimeout = 2 * time.Second

// now is overridable in tests that need deterministic revoke-timeout
// behavior without sleeping real wall-clock time.
var now = time.Now

type revokeJob struct {
	lockID     uint64
	clientAddr string
	xxid       uint64
}

type retryJob struct {
	lockID     uint64
	clientAddr string
	xxid       uint64
}

// Server is the cache-coherent lock server of spec.md §4.1. All state
// is owned by mu; the revoke and retry dispatcher loops pull jobs off
// buffered channels and perform their outbound RPC without holding it.
type Server struct {
	mu    sync.Mutex
	locks map[uint64]*entry

	metric *metrics.LockMetrics
	dialer Dialer

	revokeCh chan revokeJob
	retryCh  chan retryJob
	stop     chan struct{}
	wg       sync.WaitGroup
}

// NewServer constructs a lock server with its dispatcher loops not yet
// started; call Start to begin processing revoke/retry jobs.
func NewServer() *Server {
	return &Server{
		locks:    make(map[uint64]*entry),
		metric:   metrics.NewLockMetrics(),
		dialer:   tcpDialer{timeout: defaultDialTimeout},
		revokeCh: make(chan revokeJob, dispatchQueueSize),
		retryCh:  make(chan retryJob, dispatchQueueSize),
		stop:     make(chan struct{}),
	}
}

// SetDialer overrides how the revoke/retry dispatcher loops reach
// clients; used by tests to substitute an in-process transport.
func (s *Server) SetDialer(d Dialer) {
	s.dialer = d
}

// Start launches the revoker and retryer dispatcher loops.
func (s *Server) Start() {
	s.wg.Add(2)
	go s.revokeLoop()
	go s.retryLoop()
}

// Close stops the dispatcher loops. Queued jobs are abandoned.
func (s *Server) Close() {
	close(s.stop)
	s.wg.Wait()
}

// Acquire implements spec.md §4.1's acquire state machine.
func (s *Server) Acquire(args *AcquireArgs, reply *AcquireReply) error {
	s.mu.Lock()

	e, ok := s.locks[args.LockID]
	if !ok {
		e = &entry{state: StateFree}
		s.locks[args.LockID] = e
	}

	from := e.state
	var result dfserr.Code

	switch e.state {
	case StateFree:
		e.state = StateLocked
		e.holder, e.holderAddr, e.xid = args.ClientID, args.ClientAddr, args.Xid
		result = dfserr.OK

	case StateLocked:
		e.waiters = append(e.waiters, waiter{args.ClientID, args.ClientAddr, args.Xid})
		e.state = StateRevoked
		e.revokedAt = now()
		s.scheduleRevokeLocked(args.LockID, e)
		result = dfserr.RETRY

	case StateRevoked:
		e.waiters = append(e.waiters, waiter{args.ClientID, args.ClientAddr, args.Xid})
		result = dfserr.RETRY

	case StateRetried:
		if args.ClientID == e.retriedTo {
			e.holder, e.holderAddr, e.xid = args.ClientID, args.ClientAddr, args.Xid
			e.retriedTo = ""
			e.state = StateLocked
			if len(e.waiters) > 0 {
				e.state = StateRevoked
				e.revokedAt = now()
				s.scheduleRevokeLocked(args.LockID, e)
			}
			result = dfserr.OK
		} else {
			e.waiters = append(e.waiters, waiter{args.ClientID, args.ClientAddr, args.Xid})
			result = dfserr.RETRY
		}
	}

	s.metric.SetHeld(s.countHeldLocked())
	s.mu.Unlock()

	s.metric.ObserveAcquire(result.String())
	reply.Status = result
	logger.Debug("lock acquire",
		logger.LockID(args.LockID), logger.ClientID(args.ClientID), logger.Xid(args.Xid),
		logger.State(from.String()), logger.Result(result.String()))
	return nil
}

// Release implements spec.md §4.1's release transition.
func (s *Server) Release(args *ReleaseArgs, reply *ReleaseReply) error {
	s.mu.Lock()

	e, ok := s.locks[args.LockID]
	if !ok || e.holder != args.ClientID || e.xid != args.Xid {
		s.mu.Unlock()
		reply.Status = dfserr.NOENT
		return nil
	}

	from := e.state
	if len(e.waiters) == 0 {
		e.state = StateFree
		e.holder, e.holderAddr = "", ""
	} else {
		w := e.waiters[0]
		e.waiters = e.waiters[1:]
		e.holder, e.holderAddr, e.xid = w.clientID, w.clientAddr, w.xid
		e.retriedTo = w.clientID
		e.state = StateRetried
		s.scheduleRetryLocked(args.LockID, e, w.clientAddr, w.xid)
	}

	s.metric.SetHeld(s.countHeldLocked())
	s.mu.Unlock()

	reply.Status = dfserr.OK
	logger.Debug("lock release", logger.LockID(args.LockID), logger.ClientID(args.ClientID),
		logger.State(from.String()))
	return nil
}

// Stat is a diagnostic hook whose semantics under the caching protocol
// spec.md §9 leaves unspecified; like the reference implementation it
// answers, it always reports zero.
func (s *Server) Stat(args *StatArgs, reply *StatReply) error {
	reply.Count = 0
	return nil
}

// countHeldLocked returns the number of locks currently owned by some
// client. Called with mu held.
func (s *Server) countHeldLocked() int {
	n := 0
	for _, e := range s.locks {
		if e.state != StateFree {
			n++
		}
	}
	return n
}

// scheduleRevokeLocked enqueues a revoke to the current holder of lid.
// Called with mu held.
func (s *Server) scheduleRevokeLocked(lid uint64, e *entry) {
	job := revokeJob{lockID: lid, clientAddr: e.holderAddr, xxid: e.xid + 1}
	select {
	case s.revokeCh <- job:
	default:
		logger.Warn("revoke queue full, dropping job", logger.LockID(lid), logger.ClientID(e.holder))
	}
}

// scheduleRetryLocked enqueues a retry to the client lid was just
// handed to. Called with mu held.
func (s *Server) scheduleRetryLocked(lid uint64, e *entry, addr string, xid uint64) {
	job := retryJob{lockID: lid, clientAddr: addr, xxid: xid + 1}
	select {
	case s.retryCh <- job:
	default:
		logger.Warn("retry queue full, dropping job", logger.LockID(lid), logger.ClientID(e.retriedTo))
	}
}

func (s *Server) revokeLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.stop:
			return
		case job := <-s.revokeCh:
			s.metric.ObserveRevoke()
			if err := s.callRevoke(job); err != nil {
				logger.Warn("revoke callback failed", logger.LockID(job.lockID), logger.Err(err))
			}
		}
	}
}

func (s *Server) retryLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.stop:
			return
		case job := <-s.retryCh:
			s.metric.ObserveRetry()
			if err := s.callRetry(job); err != nil {
				logger.Warn("retry callback failed", logger.LockID(job.lockID), logger.Err(err))
			}
		}
	}
}

func (s *Server) callRevoke(job revokeJob) error {
	conn, err := s.dialer.Dial(job.clientAddr)
	if err != nil {
		return err
	}
	defer conn.Close()

	args := RevokeArgs{LockID: job.lockID, Xxid: job.xxid}
	var reply RevokeReply
	return conn.Call(ClientServiceName+".Revoke", &args, &reply)
}

func (s *Server) callRetry(job retryJob) error {
	conn, err := s.dialer.Dial(job.clientAddr)
	if err != nil {
		return err
	}
	defer conn.Close()

	args := RetryArgs{LockID: job.lockID, Xxid: job.xxid}
	var reply RetryReply
	return conn.Call(ClientServiceName+".Retry", &args, &reply)
}
