package outbound

import "sync"

// Ledger is the transient set of request ids awaiting either the broker echo
// or the REST confirmation of a send. It is the only coordination point
// between the asynchronous completions that can race for the same logical
// message.
type Ledger struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

func NewLedger() *Ledger {
	return &Ledger{ids: make(map[string]struct{})}
}

// Add records a freshly issued request id.
func (l *Ledger) Add(requestID string) {
	l.mu.Lock()
	l.ids[requestID] = struct{}{}
	l.mu.Unlock()
}

// Claim removes the request id and reports whether it was present. Check and
// removal are one atomic step: whichever completion claims first wins, the
// other sees false.
func (l *Ledger) Claim(requestID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.ids[requestID]; !ok {
		return false
	}
	delete(l.ids, requestID)
	return true
}

// Len reports the number of outstanding request ids.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.ids)
}
