package acq

// Source returns one raw sample for a 0-based channel. It has no failure mode.
type Source interface {
	Read(channel int) uint16
}

// SourceFunc adapts a function to Source.
type SourceFunc func(channel int) uint16

// Read calls f(channel).
func (f SourceFunc) Read(channel int) uint16 {
	return f(channel)
}
