package network

import "math"

// FillGeneratorPNomMax replaces every undefined (NaN) generator p_nom_max with v and
// returns how many generators were changed. Defined bounds are left untouched.
func (n *Network) FillGeneratorPNomMax(v float64) int {
	filled := 0
	for i := range n.Generators {
		if math.IsNaN(n.Generators[i].PNomMax) {
			n.Generators[i].PNomMax = v
			filled++
		}
	}
	return filled
}
