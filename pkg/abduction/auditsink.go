package abduction

// AuditSink receives the session's ordered event trace as it is produced,
// so a caller can forward events into the audit chain (Component F)
// without the session needing to know about hashing or persistence.
type AuditSink interface {
	Emit(e Event)
}

// InMemorySink is the default sink: it simply accumulates events, which
// Session.Run also returns directly in Result.Events. Useful standalone
// for tests and for callers that want the trace without wiring a real
// audit chain.
type InMemorySink struct {
	Events []Event
}

func (s *InMemorySink) Emit(e Event) {
	s.Events = append(s.Events, e)
}
