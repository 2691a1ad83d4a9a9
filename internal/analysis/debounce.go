// SPDX-License-Identifier: MIT
package analysis

// Debouncer turns per-frame classifications into key presses. A symbol is
// accepted once the same raw result has been seen on two consecutive
// frames, and reported only when the accepted value changes. NoSymbol
// frames between presses re-arm it, so a held key is reported once.
type Debouncer struct {
	previous  Symbol
	accepted  Symbol
	announced Symbol
}

// Update feeds one frame's classification and returns the newly pressed
// symbol, or NoSymbol if there is nothing new to report.
func (d *Debouncer) Update(raw Symbol) Symbol {
	if raw == d.previous {
		d.accepted = raw
	}
	d.previous = raw

	var pressed Symbol
	if d.accepted != d.announced && d.accepted != NoSymbol {
		pressed = d.accepted
	}
	d.announced = d.accepted
	return pressed
}

// Current returns the accepted symbol, which stays set while a key is held.
func (d *Debouncer) Current() Symbol {
	return d.accepted
}

// Reset forgets all history.
func (d *Debouncer) Reset() {
	*d = Debouncer{}
}
