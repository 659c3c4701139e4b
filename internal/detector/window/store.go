package window

import "sync"

// View is a read-only snapshot of one sensor's window after a push. It
// shares storage with the buffer; later pushes do not change it.
type View struct {
	values []float64
	size   int
}

// Len returns the number of values in the snapshot.
func (v View) Len() int { return len(v.values) }

// Full reports whether the snapshot holds exactly the configured window size.
func (v View) Full() bool { return len(v.values) == v.size }

// Values returns a copy of the snapshot ordered oldest to newest.
func (v View) Values() []float64 {
	out := make([]float64, len(v.values))
	copy(out, v.values)
	return out
}

// Store provides thread-safe access to per-sensor windows. Windows are
// created on the first push for a sensor and live as long as the Store.
type Store struct {
	mu      sync.RWMutex
	size    int
	windows map[string]*sensorWindow
}

// sensorWindow guards a single buffer so pushes to different sensors do not
// contend on the store lock.
type sensorWindow struct {
	mu  sync.Mutex
	buf *Buffer
}

// NewStore creates a Store whose windows hold at most size values.
func NewStore(size int) *Store {
	if size < 1 {
		size = 1
	}
	return &Store{
		size:    size,
		windows: make(map[string]*sensorWindow),
	}
}

// Size returns the configured window capacity W.
func (s *Store) Size() int {
	return s.size
}

// Push appends value to the sensor's window and returns the resulting
// view in amortized O(1).
func (s *Store) Push(sensorID string, value float64) View {
	w := s.getOrCreate(sensorID)
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf.Push(value)
	return View{values: w.buf.Window(), size: s.size}
}

// Snapshot returns the current view for a sensor without modifying it.
func (s *Store) Snapshot(sensorID string) (View, bool) {
	s.mu.RLock()
	w, ok := s.windows[sensorID]
	s.mu.RUnlock()
	if !ok {
		return View{size: s.size}, false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return View{values: w.buf.Window(), size: s.size}, true
}

func (s *Store) getOrCreate(sensorID string) *sensorWindow {
	s.mu.RLock()
	w, ok := s.windows[sensorID]
	s.mu.RUnlock()
	if ok {
		return w
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Double-check after acquiring write lock
	if w, ok = s.windows[sensorID]; ok {
		return w
	}
	w = &sensorWindow{buf: NewBuffer(s.size)}
	s.windows[sensorID] = w
	return w
}
