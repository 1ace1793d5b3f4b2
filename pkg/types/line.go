package types

// Line is one unit of the input stream with its line terminator removed.
// It carries no structure of its own; the dashboard attempts to decode it as
// JSON and drops it when that fails.
type Line string

// Bytes returns the line as a byte slice suitable for a text frame.
func (l Line) Bytes() []byte {
	return []byte(l)
}

// String implements fmt.Stringer.
func (l Line) String() string {
	return string(l)
}
