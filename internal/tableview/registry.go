package tableview

import "sync"

// Registry tracks the mounted views so that requests carrying a view id reach
// the view holding their cool-down state.
type Registry struct {
	mu    sync.RWMutex
	views map[string]*View
}

func NewRegistry() *Registry {
	return &Registry{views: make(map[string]*View)}
}

func (r *Registry) Add(v *View) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.views[v.ID] = v
}

func (r *Registry) Get(id string) (*View, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.views[id]
	return v, ok
}

// Remove drops v and closes it.
func (r *Registry) Remove(v *View) {
	r.mu.Lock()
	if cur, ok := r.views[v.ID]; ok && cur == v {
		delete(r.views, v.ID)
	}
	r.mu.Unlock()
	v.Close()
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.views)
}

// CloseAll closes every registered view.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	views := make([]*View, 0, len(r.views))
	for id, v := range r.views {
		views = append(views, v)
		delete(r.views, id)
	}
	r.mu.Unlock()

	for _, v := range views {
		v.Close()
	}
}
