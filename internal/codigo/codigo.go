// Package codigo renders the human-readable pedido codes (Dx0001, Dx0002, ...).
package codigo

import "fmt"

// Prefix starts every pedido code.
const Prefix = "Dx"

const width = 4

// Next returns the code that follows lastID, the highest assigned pedido id.
// A lastID of zero (empty store) yields Dx0001.
func Next(lastID int64) string {
	if lastID < 0 {
		lastID = 0
	}
	return Format(lastID + 1)
}

// Format renders seq zero-padded to four digits. Larger sequences keep all
// their digits (Dx10000).
func Format(seq int64) string {
	return fmt.Sprintf("%s%0*d", Prefix, width, seq)
}
