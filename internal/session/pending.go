package session

// pendingOp is a continuation parked while a connect attempt is in flight.
// Exactly one of run or fail is invoked when the attempt resolves.
type pendingOp struct {
	kind string // connect, subscribe or publish; used for logging only
	run  func()
	fail func(err error)
}

// enqueueLocked parks a continuation. Caller holds s.mu.
func (s *Session) enqueueLocked(op pendingOp) {
	s.pending = append(s.pending, op)
	s.safeMetricsUpdate(func() {
		s.metrics.SetPendingOperations(float64(len(s.pending)))
	})
}

// takePendingLocked removes and returns all parked continuations.
// Caller holds s.mu.
func (s *Session) takePendingLocked() []pendingOp {
	ops := s.pending
	s.pending = nil
	s.safeMetricsUpdate(func() {
		s.metrics.SetPendingOperations(0)
	})
	return ops
}

// resolvePending runs or fails continuations in arrival order, outside the
// session lock. Sequential execution keeps publishes issued back-to-back
// while disconnected in their original order.
func (s *Session) resolvePending(ops []pendingOp, err error) {
	for _, op := range ops {
		if err != nil {
			s.log.Debug("failing pending operation", "kind", op.kind, "error", err)
			if op.fail != nil {
				op.fail(err)
			}
			continue
		}
		s.log.Debug("resuming pending operation", "kind", op.kind)
		if op.run != nil {
			op.run()
		}
	}
}
