// Package network holds the in-memory power-system model consumed by the LOPF builder.
//
// # Reading Guide
//
//   - network.go: component types, PyPSA-compatible defaults, result fields
//   - load.go: path dispatch (CSV folder or YAML document)
//   - csvfolder.go: PyPSA CSV-folder import/export
//   - yaml.go: single-document YAML form, strict keys
//   - validate.go: referential and bound checks run by Open after either format
//   - snapshots.go, fill.go: the two in-place edits applied before a benchmark solve
//
// Static attributes use PyPSA's names in both serialized forms (p_nom, p_nom_max,
// marginal_cost, ...). A NaN capacity bound means "undefined" and is left for the
// caller to resolve, see FillGeneratorPNomMax.
package network
