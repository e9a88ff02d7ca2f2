// Package tlv8 implements the TLV8 encoding used by HomeKit pairing messages.
//
// Each item is a one byte type, a one byte length and up to 255 bytes of
// value. Longer values are written as consecutive fragments of the same type;
// every fragment but the last carries exactly 255 bytes. Decoding merges such
// fragments back into one value. Two adjacent items of the same type that
// must stay distinct are divided by a zero-length separator item.
package tlv8

import "io"

// Type is a TLV8 item type.
type Type byte

// MaxFragment is the largest value a single item carries.
const MaxFragment = 255

// Item is one decoded TLV8 item.
type Item struct {
	Type  Type
	Value []byte
}

// Container is an ordered list of items.
type Container struct {
	items []Item
}

// New returns an empty container.
func New() *Container {
	return &Container{}
}

// Add appends an item. The value is copied.
func (c *Container) Add(t Type, value []byte) *Container {
	v := make([]byte, len(value))
	copy(v, value)
	c.items = append(c.items, Item{Type: t, Value: v})
	return c
}

// AddByte appends a single-byte item.
func (c *Container) AddByte(t Type, b byte) *Container {
	return c.Add(t, []byte{b})
}

// AddUint appends an unsigned integer in the shortest little-endian form.
func (c *Container) AddUint(t Type, v uint64) *Container {
	b := []byte{byte(v)}
	for v >>= 8; v != 0; v >>= 8 {
		b = append(b, byte(v))
	}
	return c.Add(t, b)
}

// AddString appends a UTF-8 string item.
func (c *Container) AddString(t Type, s string) *Container {
	return c.Add(t, []byte(s))
}

// AddSeparator appends a zero-length item of type sep.
func (c *Container) AddSeparator(sep Type) *Container {
	c.items = append(c.items, Item{Type: sep, Value: []byte{}})
	return c
}

// Items returns the items in order.
func (c *Container) Items() []Item {
	return c.items
}

// Len returns the number of items.
func (c *Container) Len() int {
	return len(c.items)
}

// Has reports whether an item of type t is present.
func (c *Container) Has(t Type) bool {
	_, ok := c.Get(t)
	return ok
}

// Get returns the value of the first item of type t.
func (c *Container) Get(t Type) ([]byte, bool) {
	for _, it := range c.items {
		if it.Type == t {
			return it.Value, true
		}
	}
	return nil, false
}

// GetAll returns the values of all items of type t in order.
func (c *Container) GetAll(t Type) [][]byte {
	var out [][]byte
	for _, it := range c.items {
		if it.Type == t {
			out = append(out, it.Value)
		}
	}
	return out
}

// Bytes returns the value of the first item of type t or ErrMissing.
func (c *Container) Bytes(t Type) ([]byte, error) {
	v, ok := c.Get(t)
	if !ok {
		return nil, ErrMissing
	}
	return v, nil
}

// Byte returns the single-byte value of type t.
func (c *Container) Byte(t Type) (byte, error) {
	v, ok := c.Get(t)
	if !ok {
		return 0, ErrMissing
	}
	if len(v) != 1 {
		return 0, ErrInvalidLength
	}
	return v[0], nil
}

// Uint returns the little-endian unsigned integer value of type t.
func (c *Container) Uint(t Type) (uint64, error) {
	v, ok := c.Get(t)
	if !ok {
		return 0, ErrMissing
	}
	if len(v) == 0 {
		return 0, ErrInvalidLength
	}
	if len(v) > 8 {
		return 0, ErrOverflow
	}
	var n uint64
	for i := len(v) - 1; i >= 0; i-- {
		n = n<<8 | uint64(v[i])
	}
	return n, nil
}

// Split divides the container at every item of type sep, dropping the
// separators. Empty groups are omitted.
func (c *Container) Split(sep Type) []*Container {
	var groups []*Container
	cur := New()
	for _, it := range c.items {
		if it.Type == sep {
			if cur.Len() > 0 {
				groups = append(groups, cur)
			}
			cur = New()
			continue
		}
		cur.items = append(cur.items, it)
	}
	if cur.Len() > 0 {
		groups = append(groups, cur)
	}
	return groups
}

// Encode serializes the container.
func (c *Container) Encode() []byte {
	w := NewWriter()
	for _, it := range c.items {
		w.Put(it.Type, it.Value)
	}
	return w.Bytes()
}

// Decode parses data into a container, merging fragmented values.
func Decode(data []byte) (*Container, error) {
	r := NewReader(data)
	c := New()
	for {
		it, err := r.Next()
		if err != nil {
			if err == io.EOF {
				return c, nil
			}
			return nil, err
		}
		c.items = append(c.items, it)
	}
}
