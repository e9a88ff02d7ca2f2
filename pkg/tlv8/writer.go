package tlv8

// Writer accumulates encoded TLV8 items.
type Writer struct {
	buf []byte
}

// NewWriter creates an empty Writer.
func NewWriter() *Writer {
	return &Writer{}
}

// Put writes one item, fragmenting values longer than MaxFragment.
// A zero-length value produces a single empty item.
func (w *Writer) Put(t Type, value []byte) {
	if len(value) == 0 {
		w.buf = append(w.buf, byte(t), 0)
		return
	}
	for len(value) > 0 {
		n := len(value)
		if n > MaxFragment {
			n = MaxFragment
		}
		w.buf = append(w.buf, byte(t), byte(n))
		w.buf = append(w.buf, value[:n]...)
		value = value[n:]
	}
}

// Bytes returns the encoded items.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Len returns the number of encoded bytes.
func (w *Writer) Len() int {
	return len(w.buf)
}
