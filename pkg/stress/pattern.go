package stress

// patternPeriod is the period of the byte pattern the writer produces. It
// is prime so it does not divide typical power-of-two buffer sizes.
const patternPeriod = 251

// fill writes the pattern for the bytes at absolute positions abs,
// abs+1, ... into p.
func fill(p []byte, abs uint64) {
	for i := range p {
		p[i] = byte((abs + uint64(i)) % patternPeriod)
	}
}

// checker verifies that consecutive bytes follow the pattern.
type checker struct {
	started bool
	prev    byte
}

func (c *checker) reset() {
	c.started = false
}

// check returns the number of bytes in p that do not follow the byte before
// them.
func (c *checker) check(p []byte) uint64 {
	var breaks uint64
	for _, b := range p {
		if c.started && int(b) != (int(c.prev)+1)%patternPeriod {
			breaks++
		}
		c.prev = b
		c.started = true
	}
	return breaks
}

// absAt returns the absolute position of the byte last written at offset
// off of a circular buffer of the given length, after written bytes in
// total. written must be at least length.
func absAt(written uint64, off int, length uint64) uint64 {
	d := (written%length + length - uint64(off)) % length
	if d == 0 {
		d = length
	}
	return written - d
}
