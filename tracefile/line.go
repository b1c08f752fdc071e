package tracefile

// Line is one tokenized physical line. Words are views into the reader's
// character arena and go stale on Reset, ResetSource and Close.
type Line struct {
	// Words holds at most MaxColumns words.
	Words [][]byte
	// Number is the 1-based physical line number, 0 if nothing was read.
	Number int

	gen uint32
}

// Len returns the number of words.
func (l *Line) Len() int { return len(l.Words) }

// Word returns word i, or nil when i is out of range.
func (l *Line) Word(i int) []byte {
	if i < 0 || i >= len(l.Words) {
		return nil
	}
	return l.Words[i]
}

// Strings copies the words into strings.
func (l *Line) Strings() []string {
	out := make([]string, len(l.Words))
	for i, w := range l.Words {
		out[i] = string(w)
	}
	return out
}

func (l *Line) reset(gen uint32) {
	l.Words = nil
	l.Number = 0
	l.gen = gen
}
