package identity

import "sync"

// EventType distinguishes session changes.
type EventType string

const (
	SignedIn  EventType = "signed_in"
	SignedOut EventType = "signed_out"
)

// Event announces a session change of one user. TokenID names the session
// token that signed in or out.
type Event struct {
	Type    EventType
	UserID  string
	TokenID string
}

// Ends reports whether ev signs out sess. An event without a token id ends
// every session of the user.
func (ev Event) Ends(sess *Session) bool {
	if ev.Type != SignedOut || sess == nil || ev.UserID != sess.UserID {
		return false
	}
	return ev.TokenID == "" || ev.TokenID == sess.TokenID
}

// Events fans session changes out to subscribers of a user, such as the live
// streams opened on that user's behalf.
type Events struct {
	mu   sync.Mutex
	next int
	subs map[string]map[int]chan Event
}

func NewEvents() *Events {
	return &Events{subs: make(map[string]map[int]chan Event)}
}

// Subscribe returns a buffered channel of the user's events and a function
// that ends the subscription.
func (e *Events) Subscribe(userID string) (<-chan Event, func()) {
	ch := make(chan Event, 4)
	e.mu.Lock()
	id := e.next
	e.next++
	if e.subs[userID] == nil {
		e.subs[userID] = make(map[int]chan Event)
	}
	e.subs[userID][id] = ch
	e.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			delete(e.subs[userID], id)
			if len(e.subs[userID]) == 0 {
				delete(e.subs, userID)
			}
			close(ch)
		})
	}
}

// Publish delivers ev without blocking; a subscriber with a full buffer misses it.
func (e *Events) Publish(ev Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, ch := range e.subs[ev.UserID] {
		select {
		case ch <- ev:
		default:
		}
	}
}
