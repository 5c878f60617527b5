package render

// scope collects release functions as resources are created and runs them
// newest first. Unwinding twice is a no-op.
type scope struct {
	cleanups []func()
}

func (s *scope) add(fn func()) {
	s.cleanups = append(s.cleanups, fn)
}

func (s *scope) unwind() {
	for i := len(s.cleanups) - 1; i >= 0; i-- {
		s.cleanups[i]()
	}
	s.cleanups = nil
}

func (s *scope) len() int { return len(s.cleanups) }
