package jobs

// Subscribe returns a channel that receives orchestration events.
// The caller must call Unsubscribe when done to prevent resource leaks.
func (o *Orchestrator) Subscribe() <-chan Event {
	ch := make(chan Event, 100)
	o.mu.Lock()
	o.subs = append(o.subs, ch)
	o.mu.Unlock()
	return ch
}

// Unsubscribe removes a channel created by Subscribe.
// The channel is not closed; after Unsubscribe returns no further events
// are sent to it.
func (o *Orchestrator) Unsubscribe(ch <-chan Event) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i, sub := range o.subs {
		if sub == ch {
			o.subs = append(o.subs[:i], o.subs[i+1:]...)
			return
		}
	}
}

// emit delivers e to every subscriber without blocking.
func (o *Orchestrator) emit(e Event) {
	o.mu.RLock()
	subs := make([]chan Event, len(o.subs))
	copy(subs, o.subs)
	o.mu.RUnlock()

	for _, ch := range subs {
		select {
		case ch <- e:
		default:
			// Drop if full.
		}
	}
}
