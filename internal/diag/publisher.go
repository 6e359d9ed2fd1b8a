package diag

// Publisher receives the diagnostics of each reload cycle.
// Реализации: Recorder (запоминает последний набор), Nop, MultiPublisher (fan-out).
type Publisher interface {
	// Publish replaces whatever was shown before with s.
	Publish(s Set)
	// Clear removes all diagnostics.
	Clear()
}

// Nop discards everything.
type Nop struct{}

func (Nop) Publish(Set) {}
func (Nop) Clear()      {}

// Recorder keeps the last published set.
type Recorder struct {
	Last      Set
	Publishes int
	Clears    int
}

func (r *Recorder) Publish(s Set) {
	r.Last = s.Clone()
	r.Publishes++
}

func (r *Recorder) Clear() {
	r.Last = nil
	r.Clears++
}

// MultiPublisher fans out to several publishers in order.
type MultiPublisher []Publisher

func (m MultiPublisher) Publish(s Set) {
	for _, p := range m {
		if p != nil {
			p.Publish(s)
		}
	}
}

func (m MultiPublisher) Clear() {
	for _, p := range m {
		if p != nil {
			p.Clear()
		}
	}
}

// PublisherFunc adapts a function; Clear publishes an empty set.
type PublisherFunc func(Set)

func (f PublisherFunc) Publish(s Set) { f(s) }
func (f PublisherFunc) Clear()        { f(Set{}) }
