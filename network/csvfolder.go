package network

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// column binds one CSV column of a static component table to a struct field.
type column[T any] struct {
	name   string
	format func(*T) string
	parse  func(*T, string) error
}

func strCol[T any](name string, field func(*T) *string) column[T] {
	return column[T]{
		name:   name,
		format: func(v *T) string { return *field(v) },
		parse: func(v *T, s string) error {
			*field(v) = s
			return nil
		},
	}
}

// floatCol keeps the default when the cell is empty.
func floatCol[T any](name string, field func(*T) *float64) column[T] {
	return column[T]{
		name:   name,
		format: func(v *T) string { return formatFloat(*field(v)) },
		parse: func(v *T, s string) error {
			if s == "" {
				return nil
			}
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return fmt.Errorf("column %s: %w", name, err)
			}
			*field(v) = f
			return nil
		},
	}
}

// boundCol treats an empty cell as an undefined (NaN) bound.
func boundCol[T any](name string, field func(*T) *float64) column[T] {
	c := floatCol(name, field)
	parse := c.parse
	c.parse = func(v *T, s string) error {
		if s == "" {
			*field(v) = math.NaN()
			return nil
		}
		return parse(v, s)
	}
	return c
}

func boolCol[T any](name string, field func(*T) *bool) column[T] {
	return column[T]{
		name: name,
		format: func(v *T) string {
			if *field(v) {
				return "True"
			}
			return "False"
		},
		parse: func(v *T, s string) error {
			if s == "" {
				return nil
			}
			b, err := strconv.ParseBool(s)
			if err != nil {
				return fmt.Errorf("column %s: %w", name, err)
			}
			*field(v) = b
			return nil
		},
	}
}

var carrierColumns = []column[Carrier]{
	floatCol("co2_emissions", func(c *Carrier) *float64 { return &c.CO2Emissions }),
}

var busColumns = []column[Bus]{
	floatCol("v_nom", func(b *Bus) *float64 { return &b.VNom }),
	strCol("carrier", func(b *Bus) *string { return &b.Carrier }),
	floatCol("x", func(b *Bus) *float64 { return &b.X }),
	floatCol("y", func(b *Bus) *float64 { return &b.Y }),
}

var generatorColumns = []column[Generator]{
	strCol("bus", func(g *Generator) *string { return &g.Bus }),
	strCol("carrier", func(g *Generator) *string { return &g.Carrier }),
	floatCol("p_nom", func(g *Generator) *float64 { return &g.PNom }),
	boolCol("p_nom_extendable", func(g *Generator) *bool { return &g.PNomExtendable }),
	floatCol("p_nom_min", func(g *Generator) *float64 { return &g.PNomMin }),
	boundCol("p_nom_max", func(g *Generator) *float64 { return &g.PNomMax }),
	floatCol("p_min_pu", func(g *Generator) *float64 { return &g.PMinPu }),
	floatCol("p_max_pu", func(g *Generator) *float64 { return &g.PMaxPu }),
	floatCol("marginal_cost", func(g *Generator) *float64 { return &g.MarginalCost }),
	floatCol("capital_cost", func(g *Generator) *float64 { return &g.CapitalCost }),
	floatCol("efficiency", func(g *Generator) *float64 { return &g.Efficiency }),
	floatCol("p_nom_opt", func(g *Generator) *float64 { return &g.PNomOpt }),
}

var loadColumns = []column[Load]{
	strCol("bus", func(l *Load) *string { return &l.Bus }),
	floatCol("p_set", func(l *Load) *float64 { return &l.PSet }),
}

var lineColumns = []column[Line]{
	strCol("bus0", func(l *Line) *string { return &l.Bus0 }),
	strCol("bus1", func(l *Line) *string { return &l.Bus1 }),
	floatCol("x", func(l *Line) *float64 { return &l.X }),
	floatCol("r", func(l *Line) *float64 { return &l.R }),
	floatCol("s_nom", func(l *Line) *float64 { return &l.SNom }),
	boolCol("s_nom_extendable", func(l *Line) *bool { return &l.SNomExtendable }),
	floatCol("s_nom_min", func(l *Line) *float64 { return &l.SNomMin }),
	boundCol("s_nom_max", func(l *Line) *float64 { return &l.SNomMax }),
	floatCol("s_max_pu", func(l *Line) *float64 { return &l.SMaxPu }),
	floatCol("capital_cost", func(l *Line) *float64 { return &l.CapitalCost }),
	floatCol("s_nom_opt", func(l *Line) *float64 { return &l.SNomOpt }),
}

var linkColumns = []column[Link]{
	strCol("bus0", func(k *Link) *string { return &k.Bus0 }),
	strCol("bus1", func(k *Link) *string { return &k.Bus1 }),
	floatCol("p_nom", func(k *Link) *float64 { return &k.PNom }),
	boolCol("p_nom_extendable", func(k *Link) *bool { return &k.PNomExtendable }),
	floatCol("p_nom_min", func(k *Link) *float64 { return &k.PNomMin }),
	floatCol("p_nom_max", func(k *Link) *float64 { return &k.PNomMax }),
	floatCol("p_min_pu", func(k *Link) *float64 { return &k.PMinPu }),
	floatCol("p_max_pu", func(k *Link) *float64 { return &k.PMaxPu }),
	floatCol("efficiency", func(k *Link) *float64 { return &k.Efficiency }),
	floatCol("marginal_cost", func(k *Link) *float64 { return &k.MarginalCost }),
	floatCol("capital_cost", func(k *Link) *float64 { return &k.CapitalCost }),
	floatCol("p_nom_opt", func(k *Link) *float64 { return &k.PNomOpt }),
}

var storageUnitColumns = []column[StorageUnit]{
	strCol("bus", func(s *StorageUnit) *string { return &s.Bus }),
	strCol("carrier", func(s *StorageUnit) *string { return &s.Carrier }),
	floatCol("p_nom", func(s *StorageUnit) *float64 { return &s.PNom }),
	boolCol("p_nom_extendable", func(s *StorageUnit) *bool { return &s.PNomExtendable }),
	floatCol("p_nom_min", func(s *StorageUnit) *float64 { return &s.PNomMin }),
	floatCol("p_nom_max", func(s *StorageUnit) *float64 { return &s.PNomMax }),
	floatCol("max_hours", func(s *StorageUnit) *float64 { return &s.MaxHours }),
	floatCol("efficiency_store", func(s *StorageUnit) *float64 { return &s.EfficiencyStore }),
	floatCol("efficiency_dispatch", func(s *StorageUnit) *float64 { return &s.EfficiencyDispatch }),
	floatCol("state_of_charge_initial", func(s *StorageUnit) *float64 { return &s.StateOfChargeInitial }),
	boolCol("cyclic_state_of_charge", func(s *StorageUnit) *bool { return &s.CyclicStateOfCharge }),
	floatCol("marginal_cost", func(s *StorageUnit) *float64 { return &s.MarginalCost }),
	floatCol("capital_cost", func(s *StorageUnit) *float64 { return &s.CapitalCost }),
	floatCol("p_nom_opt", func(s *StorageUnit) *float64 { return &s.PNomOpt }),
}

var globalConstraintColumns = []column[GlobalConstraint]{
	strCol("type", func(gc *GlobalConstraint) *string { return &gc.Type }),
	strCol("carrier_attribute", func(gc *GlobalConstraint) *string { return &gc.CarrierAttribute }),
	strCol("sense", func(gc *GlobalConstraint) *string { return &gc.Sense }),
	floatCol("constant", func(gc *GlobalConstraint) *float64 { return &gc.Constant }),
}

// seriesFile binds a "<component>-<attr>.csv" time-series file to a per-component slice.
type seriesFile struct {
	file  string
	names func(n *Network) []string
	field func(n *Network, i int) *[]float64
}

var seriesFiles = []seriesFile{
	{"generators-p_max_pu.csv", generatorNames, func(n *Network, i int) *[]float64 { return &n.Generators[i].PMaxPuT }},
	{"loads-p_set.csv", loadNames, func(n *Network, i int) *[]float64 { return &n.Loads[i].PSetT }},
	{"links-p_max_pu.csv", linkNames, func(n *Network, i int) *[]float64 { return &n.Links[i].PMaxPuT }},
	{"generators-p.csv", generatorNames, func(n *Network, i int) *[]float64 { return &n.Generators[i].PT }},
	{"lines-p0.csv", lineNames, func(n *Network, i int) *[]float64 { return &n.Lines[i].P0T }},
	{"links-p0.csv", linkNames, func(n *Network, i int) *[]float64 { return &n.Links[i].P0T }},
	{"storage_units-p_dispatch.csv", storageUnitNames, func(n *Network, i int) *[]float64 { return &n.StorageUnits[i].PDispatchT }},
	{"storage_units-p_store.csv", storageUnitNames, func(n *Network, i int) *[]float64 { return &n.StorageUnits[i].PStoreT }},
	{"storage_units-state_of_charge.csv", storageUnitNames, func(n *Network, i int) *[]float64 { return &n.StorageUnits[i].StateOfChargeT }},
	{"buses-marginal_price.csv", busNames, func(n *Network, i int) *[]float64 { return &n.Buses[i].MarginalPriceT }},
}

func busNames(n *Network) []string {
	out := make([]string, len(n.Buses))
	for i := range n.Buses {
		out[i] = n.Buses[i].Name
	}
	return out
}

func generatorNames(n *Network) []string {
	out := make([]string, len(n.Generators))
	for i := range n.Generators {
		out[i] = n.Generators[i].Name
	}
	return out
}

func loadNames(n *Network) []string {
	out := make([]string, len(n.Loads))
	for i := range n.Loads {
		out[i] = n.Loads[i].Name
	}
	return out
}

func lineNames(n *Network) []string {
	out := make([]string, len(n.Lines))
	for i := range n.Lines {
		out[i] = n.Lines[i].Name
	}
	return out
}

func linkNames(n *Network) []string {
	out := make([]string, len(n.Links))
	for i := range n.Links {
		out[i] = n.Links[i].Name
	}
	return out
}

func storageUnitNames(n *Network) []string {
	out := make([]string, len(n.StorageUnits))
	for i := range n.StorageUnits {
		out[i] = n.StorageUnits[i].Name
	}
	return out
}

// ImportCSVFolder reads a network from a PyPSA CSV folder. Missing component files
// mean "no components of that kind"; missing columns keep defaults.
func ImportCSVFolder(dir string) (*Network, error) {
	n := &Network{Name: nameFromPath(dir)}

	snapshots, err := readSnapshots(filepath.Join(dir, "snapshots.csv"))
	if err != nil {
		return nil, err
	}
	n.Snapshots = snapshots

	if n.Carriers, err = readStatic(dir, "carriers.csv", carrierColumns, func(name string) Carrier { return Carrier{Name: name} }); err != nil {
		return nil, err
	}
	if n.Buses, err = readStatic(dir, "buses.csv", busColumns, func(name string) Bus { return Bus{Name: name} }); err != nil {
		return nil, err
	}
	if n.Generators, err = readStatic(dir, "generators.csv", generatorColumns, func(name string) Generator { return NewGenerator(name, "") }); err != nil {
		return nil, err
	}
	if n.Loads, err = readStatic(dir, "loads.csv", loadColumns, func(name string) Load { return NewLoad(name, "") }); err != nil {
		return nil, err
	}
	if n.Lines, err = readStatic(dir, "lines.csv", lineColumns, func(name string) Line { return NewLine(name, "", "") }); err != nil {
		return nil, err
	}
	if n.Links, err = readStatic(dir, "links.csv", linkColumns, func(name string) Link { return NewLink(name, "", "") }); err != nil {
		return nil, err
	}
	if n.StorageUnits, err = readStatic(dir, "storage_units.csv", storageUnitColumns, func(name string) StorageUnit { return NewStorageUnit(name, "") }); err != nil {
		return nil, err
	}
	if n.GlobalConstraints, err = readStatic(dir, "global_constraints.csv", globalConstraintColumns, func(name string) GlobalConstraint { return NewGlobalConstraint(name, 0) }); err != nil {
		return nil, err
	}

	for _, sf := range seriesFiles {
		if err := readSeries(dir, sf, n); err != nil {
			return nil, err
		}
	}
	return n, nil
}

// ExportCSVFolder writes n as a PyPSA CSV folder, creating dir if needed.
func (n *Network) ExportCSVFolder(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating CSV folder: %w", err)
	}
	if err := writeSnapshots(filepath.Join(dir, "snapshots.csv"), n.Snapshots); err != nil {
		return err
	}
	if err := writeStatic(dir, "carriers.csv", n.Carriers, func(c *Carrier) string { return c.Name }, carrierColumns); err != nil {
		return err
	}
	if err := writeStatic(dir, "buses.csv", n.Buses, func(b *Bus) string { return b.Name }, busColumns); err != nil {
		return err
	}
	if err := writeStatic(dir, "generators.csv", n.Generators, func(g *Generator) string { return g.Name }, generatorColumns); err != nil {
		return err
	}
	if err := writeStatic(dir, "loads.csv", n.Loads, func(l *Load) string { return l.Name }, loadColumns); err != nil {
		return err
	}
	if err := writeStatic(dir, "lines.csv", n.Lines, func(l *Line) string { return l.Name }, lineColumns); err != nil {
		return err
	}
	if err := writeStatic(dir, "links.csv", n.Links, func(k *Link) string { return k.Name }, linkColumns); err != nil {
		return err
	}
	if err := writeStatic(dir, "storage_units.csv", n.StorageUnits, func(s *StorageUnit) string { return s.Name }, storageUnitColumns); err != nil {
		return err
	}
	if err := writeStatic(dir, "global_constraints.csv", n.GlobalConstraints, func(gc *GlobalConstraint) string { return gc.Name }, globalConstraintColumns); err != nil {
		return err
	}
	for _, sf := range seriesFiles {
		if err := writeSeries(dir, sf, n); err != nil {
			return err
		}
	}
	return nil
}

// readTable loads a CSV file. A missing file returns (nil, nil, nil).
func readTable(path string) ([]string, [][]string, error) {
	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("opening %s: %w", filepath.Base(path), err)
	}
	defer func() { _ = file.Close() }()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("reading %s header: %w", filepath.Base(path), err)
	}
	var rows [][]string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("reading %s: %w", filepath.Base(path), err)
		}
		rows = append(rows, row)
	}
	return header, rows, nil
}

func readSnapshots(path string) ([]Snapshot, error) {
	header, rows, err := readTable(path)
	if err != nil {
		return nil, err
	}
	if header == nil {
		return nil, nil
	}
	weightCol := -1
	for j, h := range header {
		if h == "objective" || (h == "weightings" && weightCol < 0) {
			weightCol = j
		}
	}
	out := make([]Snapshot, 0, len(rows))
	for i, row := range rows {
		s := NewSnapshot(row[0])
		if weightCol > 0 && row[weightCol] != "" {
			w, err := strconv.ParseFloat(row[weightCol], 64)
			if err != nil {
				return nil, fmt.Errorf("snapshots.csv row %d: %w", i+1, err)
			}
			s.Weighting = w
		}
		out = append(out, s)
	}
	return out, nil
}

func readStatic[T any](dir, file string, cols []column[T], newT func(name string) T) ([]T, error) {
	header, rows, err := readTable(filepath.Join(dir, file))
	if err != nil || header == nil {
		return nil, err
	}
	byName := make(map[string]column[T], len(cols))
	for _, c := range cols {
		byName[c.name] = c
	}
	bound := make([]*column[T], len(header))
	for j := 1; j < len(header); j++ {
		if c, ok := byName[header[j]]; ok {
			bound[j] = &c
		} else {
			logrus.Debugf("%s: ignoring unknown column %q", file, header[j])
		}
	}

	out := make([]T, 0, len(rows))
	for i, row := range rows {
		v := newT(row[0])
		for j := 1; j < len(row) && j < len(bound); j++ {
			if bound[j] == nil {
				continue
			}
			if err := bound[j].parse(&v, strings.TrimSpace(row[j])); err != nil {
				return nil, fmt.Errorf("%s row %d (%s): %w", file, i+1, row[0], err)
			}
		}
		out = append(out, v)
	}
	return out, nil
}

func readSeries(dir string, sf seriesFile, n *Network) error {
	header, rows, err := readTable(filepath.Join(dir, sf.file))
	if err != nil || header == nil {
		return err
	}
	byLabel := make(map[string][]string, len(rows))
	for _, row := range rows {
		byLabel[row[0]] = row
	}
	names := sf.names(n)
	index := make(map[string]int, len(names))
	for i, nm := range names {
		index[nm] = i
	}

	for j := 1; j < len(header); j++ {
		i, ok := index[header[j]]
		if !ok {
			logrus.Debugf("%s: ignoring unknown component %q", sf.file, header[j])
			continue
		}
		values := make([]float64, len(n.Snapshots))
		for t, s := range n.Snapshots {
			row, ok := byLabel[s.Name]
			if !ok {
				return fmt.Errorf("%s: missing snapshot %q", sf.file, s.Name)
			}
			if j >= len(row) || row[j] == "" {
				values[t] = math.NaN()
				continue
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(row[j]), 64)
			if err != nil {
				return fmt.Errorf("%s: snapshot %q, component %q: %w", sf.file, s.Name, header[j], err)
			}
			values[t] = v
		}
		*sf.field(n, i) = values
	}
	return nil
}

// createFile opens export targets; replaced in tests.
var createFile = func(path string) (io.WriteCloser, error) { return os.Create(path) }

func writeTable(path string, header []string, rows [][]string) error {
	file, err := createFile(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Base(path), err)
	}

	writer := csv.NewWriter(file)
	if err := writer.Write(header); err != nil {
		file.Close()
		return fmt.Errorf("writing %s header: %w", filepath.Base(path), err)
	}
	if err := writer.WriteAll(rows); err != nil {
		file.Close()
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", filepath.Base(path), err)
	}
	return nil
}

func writeSnapshots(path string, snapshots []Snapshot) error {
	rows := make([][]string, len(snapshots))
	for i, s := range snapshots {
		rows[i] = []string{s.Name, formatFloat(s.Weighting)}
	}
	return writeTable(path, []string{"snapshot", "objective"}, rows)
}

func writeStatic[T any](dir, file string, items []T, name func(*T) string, cols []column[T]) error {
	if len(items) == 0 {
		return nil
	}
	header := make([]string, 0, len(cols)+1)
	header = append(header, "name")
	for _, c := range cols {
		header = append(header, c.name)
	}
	rows := make([][]string, len(items))
	for i := range items {
		row := make([]string, 0, len(header))
		row = append(row, name(&items[i]))
		for _, c := range cols {
			row = append(row, c.format(&items[i]))
		}
		rows[i] = row
	}
	return writeTable(filepath.Join(dir, file), header, rows)
}

func writeSeries(dir string, sf seriesFile, n *Network) error {
	names := sf.names(n)
	header := []string{"snapshot"}
	var cols [][]float64
	for i, nm := range names {
		if s := *sf.field(n, i); s != nil {
			header = append(header, nm)
			cols = append(cols, s)
		}
	}
	if len(cols) == 0 {
		return nil
	}
	rows := make([][]string, len(n.Snapshots))
	for t, s := range n.Snapshots {
		row := make([]string, 0, len(header))
		row = append(row, s.Name)
		for _, c := range cols {
			row = append(row, formatFloat(c[t]))
		}
		rows[t] = row
	}
	return writeTable(filepath.Join(dir, sf.file), header, rows)
}

// formatFloat writes NaN as an empty cell so undefined bounds survive a round trip.
func formatFloat(v float64) string {
	switch {
	case math.IsNaN(v):
		return ""
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
