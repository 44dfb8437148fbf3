package evaljob

// Observer is a push sink with identity. The concrete SocketObserver
// delivers messages to one client session through a Sink, implemented by
// internal/server's WebSocket hub.
type Observer interface {
	SessionID() string
	UpdateStarted()
	UpdatePercentage(percent int)
	UpdateComplete(payload map[string]any)
}

// Sink is the minimal push-message capability an Observer needs from the
// transport layer; internal/server's WebSocket hub implements this.
type Sink interface {
	Push(sessionID string, event string, payload any)
}

// SocketObserver is the one concrete Observer variant. It is single-shot
// on completion: UpdateComplete also asks the registry to forget it.
type SocketObserver struct {
	sessionID string
	sink      Sink
	onDone    func(*SocketObserver)
}

// NewSocketObserver constructs an Observer bound to sessionID. onDone, if
// non-nil, is invoked after UpdateComplete fires so the registry can drop
// its sessionID -> Observer entry.
func NewSocketObserver(sessionID string, sink Sink, onDone func(*SocketObserver)) *SocketObserver {
	return &SocketObserver{sessionID: sessionID, sink: sink, onDone: onDone}
}

func (s *SocketObserver) SessionID() string { return s.sessionID }

func (s *SocketObserver) UpdateStarted() {
	s.sink.Push(s.sessionID, "started-processing", nil)
}

func (s *SocketObserver) UpdatePercentage(percent int) {
	s.sink.Push(s.sessionID, "progress", map[string]any{"percent": percent})
}

func (s *SocketObserver) UpdateComplete(payload map[string]any) {
	s.sink.Push(s.sessionID, "complete", payload)
	if s.onDone != nil {
		s.onDone(s)
	}
}
