package acq

// Single-byte commands accepted on the link between ticks.
const (
	CmdDump byte = 'p' // Emit every partition of the buffer
	CmdTick byte = 'c' // Run one tick; used with TriggerManual where nothing ticks on its own
)

// Handle applies cmd on the Sampler's execution context and reports whether it
// was recognised. Unknown bytes, including line endings, are ignored.
func (s *Sampler) Handle(cmd byte) bool {
	switch cmd {
	case CmdDump:
		s.Dump()
	case CmdTick:
		s.Tick()
	default:
		return false
	}
	return true
}
