package extraction

import "encoding/json"

// NotFound is the wire value of a field the heuristics could not resolve.
// It only appears at the boundary (JSON, CSV, sheets); inside the module
// an unresolved field is a zero Field.
const NotFound = "Ej hittat"

// Field is an extracted value that is either resolved or absent.
// The zero value is unresolved.
type Field struct {
	value    string
	resolved bool
}

// Resolved returns a resolved field holding v.
func Resolved(v string) Field {
	return Field{value: v, resolved: true}
}

// Value returns the resolved value and whether the field was resolved.
func (f Field) Value() (string, bool) {
	return f.value, f.resolved
}

// IsResolved reports whether the field holds a value.
func (f Field) IsResolved() bool {
	return f.resolved
}

// Ptr returns a pointer to the value, or nil when unresolved.
func (f Field) Ptr() *string {
	if !f.resolved {
		return nil
	}
	v := f.value
	return &v
}

// String renders the value, or NotFound when unresolved.
func (f Field) String() string {
	if !f.resolved {
		return NotFound
	}
	return f.value
}

// MarshalJSON writes the boundary form of the field.
func (f Field) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.String())
}

// UnmarshalJSON reads the boundary form; NotFound and "" become unresolved.
func (f *Field) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" || s == NotFound {
		*f = Field{}
		return nil
	}
	*f = Resolved(s)
	return nil
}
