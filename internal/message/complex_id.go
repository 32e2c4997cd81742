package message

import "strconv"

// ComplexID is a venue identifier with a numeric form and a string fallback.
// A non-zero ID is canonical, otherwise StringID is.
type ComplexID struct {
	ID       int64  `json:"id,omitempty"`
	StringID string `json:"stringId,omitempty"`
}

// ComplexKey is the canonical comparable form of a ComplexID.
type ComplexKey struct {
	numeric bool
	id      int64
	str     string
}

func (c ComplexID) IsEmpty() bool { return c.ID == 0 && c.StringID == "" }

// Key returns the canonical key. Two ids with the same numeric id are equal
// regardless of their string ids.
func (c ComplexID) Key() ComplexKey {
	if c.ID != 0 {
		return ComplexKey{numeric: true, id: c.ID}
	}
	return ComplexKey{str: c.StringID}
}

func (c ComplexID) String() string {
	if c.ID != 0 {
		return strconv.FormatInt(c.ID, 10)
	}
	return c.StringID
}

func (k ComplexKey) String() string {
	if k.numeric {
		return strconv.FormatInt(k.id, 10)
	}
	return k.str
}
