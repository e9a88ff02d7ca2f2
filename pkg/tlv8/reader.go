package tlv8

import "io"

// Reader decodes TLV8 items from a byte slice.
type Reader struct {
	data []byte
	pos  int
}

// NewReader creates a Reader over data.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// More reports whether unread input remains.
func (r *Reader) More() bool {
	return r.pos < len(r.data)
}

// Next returns the next logical item, or io.EOF at the end of input.
// A run of full fragments of the same type is joined with the fragment
// that ends it.
func (r *Reader) Next() (Item, error) {
	if !r.More() {
		return Item{}, io.EOF
	}
	t, chunk, err := r.readRaw()
	if err != nil {
		return Item{}, err
	}
	value := append([]byte(nil), chunk...)
	for len(chunk) == MaxFragment && r.More() && Type(r.data[r.pos]) == t {
		_, chunk, err = r.readRaw()
		if err != nil {
			return Item{}, err
		}
		value = append(value, chunk...)
	}
	if value == nil {
		value = []byte{}
	}
	return Item{Type: t, Value: value}, nil
}

func (r *Reader) readRaw() (Type, []byte, error) {
	if len(r.data)-r.pos < 2 {
		return 0, nil, ErrUnexpectedEOF
	}
	t := Type(r.data[r.pos])
	n := int(r.data[r.pos+1])
	start := r.pos + 2
	if len(r.data)-start < n {
		return 0, nil, ErrUnexpectedEOF
	}
	r.pos = start + n
	return t, r.data[start:r.pos], nil
}
