// SPDX-License-Identifier: MIT
package audio

// bufferCodec presents one sample pair of a callback's interleaved buffers
// as the single-sample codec the synthesizer expects.
type bufferCodec struct {
	in  []int16
	out []int16
	pos int // Sample pair index within the buffers
}

func (c *bufferCodec) reset(in, out []int16) {
	c.in = in
	c.out = out
	c.pos = 0
}

// at selects the sample pair the next read and write refer to.
func (c *bufferCodec) at(i int) {
	c.pos = i
}

// ReadSample returns the input pair, or silence past the end of the input
// buffer.
func (c *bufferCodec) ReadSample() (left, right int16) {
	i := 2 * c.pos
	if i+1 >= len(c.in) {
		return 0, 0
	}
	return c.in[i], c.in[i+1]
}

// WriteSample stores the output pair. Writes past the end are dropped.
func (c *bufferCodec) WriteSample(left, right int16) {
	i := 2 * c.pos
	if i+1 >= len(c.out) {
		return
	}
	c.out[i] = left
	c.out[i+1] = right
}
