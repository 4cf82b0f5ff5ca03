package store

import "sync"

// listenerRegistry fans table-change notifications out to subscribers.
// This is the store's whole reactive surface: callers either query on
// demand or register a callback per table and re-query when it fires.
type listenerRegistry struct {
	mu     sync.Mutex
	nextID int
	subs   map[string]map[int]func(table string)
}

func (r *listenerRegistry) subscribe(table string, fn func(table string)) func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.subs == nil {
		r.subs = make(map[string]map[int]func(table string))
	}
	if r.subs[table] == nil {
		r.subs[table] = make(map[int]func(table string))
	}
	id := r.nextID
	r.nextID++
	r.subs[table][id] = fn
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.subs[table], id)
	}
}

func (r *listenerRegistry) notify(touched map[string]bool) {
	if len(touched) == 0 {
		return
	}
	r.mu.Lock()
	var fns []func(string)
	var tables []string
	for table := range touched {
		for _, fn := range r.subs[table] {
			fns = append(fns, fn)
			tables = append(tables, table)
		}
	}
	r.mu.Unlock()

	for i, fn := range fns {
		fn(tables[i])
	}
}
