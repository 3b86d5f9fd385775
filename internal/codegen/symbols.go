package codegen

// symbolSet is the set of variables referenced by the program, kept in order
// of first use so the data section comes out the same on every run.
type symbolSet struct {
	order []byte
	seen  map[byte]struct{}
}

func newSymbolSet() *symbolSet {
	return &symbolSet{seen: make(map[byte]struct{})}
}

func (s *symbolSet) add(name byte) {
	if _, ok := s.seen[name]; ok {
		return
	}
	s.seen[name] = struct{}{}
	s.order = append(s.order, name)
}

func (s *symbolSet) names() []byte {
	return append([]byte(nil), s.order...)
}

func (s *symbolSet) size() int {
	return len(s.order)
}
