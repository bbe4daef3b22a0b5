package http

import "strings"

// Header is an ordered multimap of header fields. Names compare without regard
// to case, values keep insertion order and duplicates are preserved.
type Header struct {
	fields []Field
}

type Field struct {
	Name  string
	Value string
}

func NewHeader(pairs ...string) Header {
	h := Header{fields: make([]Field, 0, len(pairs)/2)}
	for i := 0; i+1 < len(pairs); i += 2 {
		h.Add(pairs[i], pairs[i+1])
	}
	return h
}

func (h *Header) Add(name, value string) {
	h.fields = append(h.fields, Field{Name: name, Value: value})
}

// Set removes every field named name and appends a single one.
func (h *Header) Set(name, value string) {
	h.Del(name)
	h.Add(name, value)
}

func (h *Header) Del(name string) {
	n := 0
	for _, f := range h.fields {
		if !equalFold(f.Name, name) {
			h.fields[n] = f
			n++
		}
	}
	clear(h.fields[n:])
	h.fields = h.fields[:n]
}

// Get returns the first value for name, or "".
func (h Header) Get(name string) string {
	for _, f := range h.fields {
		if equalFold(f.Name, name) {
			return f.Value
		}
	}
	return ""
}

func (h Header) Lookup(name string) (string, bool) {
	for _, f := range h.fields {
		if equalFold(f.Name, name) {
			return f.Value, true
		}
	}
	return "", false
}

func (h Header) Has(name string) bool {
	_, ok := h.Lookup(name)
	return ok
}

func (h Header) Values(name string) []string {
	var values []string
	for _, f := range h.fields {
		if equalFold(f.Name, name) {
			values = append(values, f.Value)
		}
	}
	return values
}

func (h Header) Len() int {
	return len(h.fields)
}

// Fields returns the fields in order. The slice must not be modified.
func (h Header) Fields() []Field {
	return h.fields
}

func (h Header) Clone() Header {
	if h.fields == nil {
		return Header{}
	}
	fields := make([]Field, len(h.fields))
	copy(fields, h.fields)
	return Header{fields: fields}
}

func (h Header) String() string {
	var sb strings.Builder
	for _, f := range h.fields {
		sb.WriteString(f.Name)
		sb.WriteString(": ")
		sb.WriteString(f.Value)
		sb.WriteString("\r\n")
	}
	return sb.String()
}
