// SPDX-License-Identifier: MIT
package analysis

// Peak is one local maximum of a magnitude spectrum.
type Peak struct {
	Bin       int
	Magnitude float32
}

// FindLocalMaxima appends to dst every bin in 1..n/2-1 whose magnitude is
// strictly greater than both neighbours, in bin order, where n = len(mags).
// Bin n/2 is only ever read as a right neighbour. dst should have capacity
// n/2 so that no allocation happens.
func FindLocalMaxima(dst []Peak, mags []float32) []Peak {
	dst = dst[:0]

	last := len(mags)/2 - 1
	if last > len(mags)-2 {
		last = len(mags) - 2
	}
	for i := 1; i <= last; i++ {
		m := mags[i]
		if m > mags[i-1] && m > mags[i+1] {
			dst = append(dst, Peak{Bin: i, Magnitude: m})
		}
	}
	return dst
}

// FindLocalMaximaFull is FindLocalMaxima over every interior bin
// 1..len(mags)-2, mirrored half included.
func FindLocalMaximaFull(dst []Peak, mags []float32) []Peak {
	dst = dst[:0]
	for i := 1; i < len(mags)-1; i++ {
		m := mags[i]
		if m > mags[i-1] && m > mags[i+1] {
			dst = append(dst, Peak{Bin: i, Magnitude: m})
		}
	}
	return dst
}

// RankTop moves the k largest peaks to the front of peaks in descending
// magnitude order and returns them. It is a partial selection sort: each
// position takes the first maximum found in the remaining entries, so ties
// keep their scan order. Entries beyond k are left in unspecified order.
func RankTop(peaks []Peak, k int) []Peak {
	if k > len(peaks) {
		k = len(peaks)
	}
	for i := 0; i < k; i++ {
		best := i
		for j := i + 1; j < len(peaks); j++ {
			if peaks[j].Magnitude > peaks[best].Magnitude {
				best = j
			}
		}
		peaks[i], peaks[best] = peaks[best], peaks[i]
	}
	return peaks[:k]
}

// BinToFrequency returns the frequency in Hz of bin for an n point
// transform at sampleRate.
func BinToFrequency(bin int, sampleRate float64, n int) float64 {
	if n <= 0 {
		return 0
	}
	return float64(bin) * sampleRate / float64(n)
}

// FoldedBinToFrequency is BinToFrequency for a single-sided reading of a
// full spectrum: bins above n/2 are mirrored to n-bin first.
func FoldedBinToFrequency(bin int, sampleRate float64, n int) float64 {
	if bin > n/2 {
		bin = n - bin
	}
	return BinToFrequency(bin, sampleRate, n)
}

// PeakDetector owns the scratch space for peak extraction over spectra of
// one transform size. A single-sided detector only looks at bins below n/2;
// a folding detector scans the full spectrum and maps mirrored bins back
// when converting to frequency.
type PeakDetector struct {
	n          int
	sampleRate float64
	fold       bool
	scratch    []Peak
}

// NewPeakDetector returns a detector for n point spectra. With fold set,
// peaks are searched across the full spectrum and frequencies are computed
// single-sided.
func NewPeakDetector(n int, sampleRate float64, fold bool) *PeakDetector {
	capacity := n / 2
	if fold {
		capacity = n
	}
	if capacity < 1 {
		capacity = 1
	}
	return &PeakDetector{
		n:          n,
		sampleRate: sampleRate,
		fold:       fold,
		scratch:    make([]Peak, 0, capacity),
	}
}

// Detect returns up to k ranked peaks of mags. The returned slice aliases
// the detector's scratch space and is valid until the next call.
func (d *PeakDetector) Detect(mags []float32, k int) []Peak {
	if d.fold {
		d.scratch = FindLocalMaximaFull(d.scratch, mags)
	} else {
		d.scratch = FindLocalMaxima(d.scratch, mags)
	}
	return RankTop(d.scratch, k)
}

// Frequency converts bin to Hz using the detector's configuration.
func (d *PeakDetector) Frequency(bin int) float64 {
	if d.fold {
		return FoldedBinToFrequency(bin, d.sampleRate, d.n)
	}
	return BinToFrequency(bin, d.sampleRate, d.n)
}

// Resolution returns the width of one bin in Hz.
func (d *PeakDetector) Resolution() float64 {
	return BinToFrequency(1, d.sampleRate, d.n)
}
