package chunker

// window is the accumulate/emit/retain loop shared by every chunker variant.
// T is the unit of measure: runes for character chunking, token ids for
// token chunking.
type window[T any] struct {
	size    int
	overlap int
	emit    func(part []T, first, last int)

	buf     []T
	first   int // Locator of the first unit since the last emission
	last    int // Locator of the most recent unit
	started bool
	emitted int
}

// add appends one unit and emits full windows while the buffer is over size.
// After an emission the last overlap items of the emitted window stay in the
// buffer, followed by anything not yet emitted, and the locator range restarts
// at the current unit.
func (w *window[T]) add(unit []T, number int) {
	w.buf = append(w.buf, unit...)
	if !w.started {
		w.first = number
		w.started = true
	}
	w.last = number

	for len(w.buf) > w.size {
		w.emit(w.buf[:w.size], w.first, w.last)
		w.emitted++
		w.buf = w.buf[w.size-w.overlap:]
		w.first = number
	}
}

// flush emits the residual buffer unless it is no longer than the overlap,
// in which case the previous chunk already holds it. A document that never
// filled a window is still emitted so short inputs are not lost.
func (w *window[T]) flush() {
	if len(w.buf) == 0 {
		return
	}
	if len(w.buf) > w.overlap || w.emitted == 0 {
		w.emit(w.buf, w.first, w.last)
		w.emitted++
	}
	w.buf = nil
}
