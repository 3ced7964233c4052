package sample

// NewAveragingConverter creates a converter that replaces each block with the
// element-wise mean of the last windowSize blocks of the same channel. Blocks
// must all have the same length, which holds for a single geometry.
func NewAveragingConverter(windowSize int, bufSize int) func(in <-chan Block) <-chan Block {
	if windowSize <= 0 {
		windowSize = 1 // No averaging if invalid
	}
	if bufSize <= 0 {
		bufSize = 100
	}

	return func(in <-chan Block) <-chan Block {
		out := make(chan Block, bufSize)

		go func() {
			defer close(out)

			history := make(map[int][]Block)
			for b := range in {
				h := append(history[b.Channel], b)
				if len(h) > windowSize {
					h = h[1:] // Remove oldest
				}
				history[b.Channel] = h

				out <- averageBlocks(h)
			}
		}()

		return out
	}
}

// averageBlocks averages a slice of blocks element-wise. Channel, sequence and
// timestamp come from the most recent block.
func averageBlocks(blocks []Block) Block {
	if len(blocks) == 0 {
		return Block{}
	}

	last := blocks[len(blocks)-1]
	if len(blocks) == 1 {
		return last
	}

	rawSum := make([]uint32, len(last.Raw))
	volts := make([]float32, len(last.Volts))
	for _, b := range blocks {
		for i := range rawSum {
			rawSum[i] += uint32(b.Raw[i])
		}
		for i := range volts {
			volts[i] += b.Volts[i]
		}
	}

	n := uint32(len(blocks))
	raw := make([]uint16, len(rawSum))
	for i, s := range rawSum {
		raw[i] = uint16((s + n/2) / n) // Round to nearest
	}
	for i := range volts {
		volts[i] /= float32(n)
	}

	return Block{
		Channel:   last.Channel,
		Seq:       last.Seq,
		Timestamp: last.Timestamp,
		Period:    last.Period,
		Raw:       raw,
		Volts:     volts,
	}
}
