package lp

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// termsPerLine keeps LP file lines well under the 510 character limit some readers enforce.
const termsPerLine = 8

// ColumnName is the identifier used for column j in LP files.
func ColumnName(j int) string { return "x" + strconv.Itoa(j) }

// RowName is the identifier used for row i in LP files. Ranged rows are written twice,
// with "_lo" and "_up" suffixes.
func RowName(i int) string { return "c" + strconv.Itoa(i) }

// ParseColumnName inverts ColumnName.
func ParseColumnName(s string) (int, bool) {
	return parseIndexed(s, "x")
}

// ParseRowName inverts RowName, accepting the ranged-row suffixes.
func ParseRowName(s string) (int, bool) {
	s = strings.TrimSuffix(strings.TrimSuffix(s, "_lo"), "_up")
	return parseIndexed(s, "c")
}

func parseIndexed(s, prefix string) (int, bool) {
	if !strings.HasPrefix(s, prefix) {
		return 0, false
	}
	i, err := strconv.Atoi(s[len(prefix):])
	if err != nil || i < 0 {
		return 0, false
	}
	return i, true
}

// WriteLP writes p in CPLEX LP format. Column and row names are replaced by positional
// identifiers (see ColumnName, RowName) so any component name is safe to use.
func WriteLP(w io.Writer, p *Problem) error {
	if len(p.Columns) == 0 {
		return errors.New("lp: cannot write a problem without columns")
	}
	bw := bufio.NewWriter(w)
	name := p.Name
	if name == "" {
		name = "lopf"
	}
	fmt.Fprintf(bw, "\\ Problem: %s\n\\ %d columns, %d rows, %d non-zeros\n", name, len(p.Columns), len(p.Rows), p.NumNonZeros())

	bw.WriteString("minimize\n obj:")
	var obj []Term
	for j, c := range p.Columns {
		if c.Cost != 0 {
			obj = append(obj, Term{Col: j, Coef: c.Cost})
		}
	}
	if len(obj) == 0 {
		obj = []Term{{Col: 0, Coef: 0}}
	}
	writeTerms(bw, obj)
	bw.WriteString("\n")

	bw.WriteString("subject to\n")
	for i := range p.Rows {
		r := &p.Rows[i]
		terms := r.Terms
		if len(terms) == 0 {
			terms = []Term{{Col: 0, Coef: 0}}
		}
		switch r.Kind() {
		case RowEqual:
			writeRow(bw, RowName(i), terms, "=", r.Lower)
		case RowLessEqual:
			writeRow(bw, RowName(i), terms, "<=", r.Upper)
		case RowGreaterEqual:
			writeRow(bw, RowName(i), terms, ">=", r.Lower)
		case RowRanged:
			writeRow(bw, RowName(i)+"_lo", terms, ">=", r.Lower)
			writeRow(bw, RowName(i)+"_up", terms, "<=", r.Upper)
		case RowFree:
			// nothing to enforce
		}
	}

	bw.WriteString("bounds\n")
	for j, c := range p.Columns {
		x := ColumnName(j)
		lo, up := !math.IsInf(c.Lower, -1), !math.IsInf(c.Upper, 1)
		switch {
		case lo && up && c.Lower == c.Upper:
			fmt.Fprintf(bw, " %s = %s\n", x, formatNumber(c.Lower))
		case lo && up:
			fmt.Fprintf(bw, " %s <= %s <= %s\n", formatNumber(c.Lower), x, formatNumber(c.Upper))
		case lo:
			fmt.Fprintf(bw, " %s >= %s\n", x, formatNumber(c.Lower))
		case up:
			fmt.Fprintf(bw, " -inf <= %s <= %s\n", x, formatNumber(c.Upper))
		default:
			fmt.Fprintf(bw, " %s free\n", x)
		}
	}
	bw.WriteString("end\n")
	return bw.Flush()
}

func writeRow(bw *bufio.Writer, name string, terms []Term, sense string, rhs float64) {
	fmt.Fprintf(bw, " %s:", name)
	writeTerms(bw, terms)
	fmt.Fprintf(bw, " %s %s\n", sense, formatNumber(rhs))
}

func writeTerms(bw *bufio.Writer, terms []Term) {
	for k, t := range terms {
		if k > 0 && k%termsPerLine == 0 {
			bw.WriteString("\n   ")
		}
		sign := "+"
		coef := t.Coef
		if coef < 0 || (coef == 0 && math.Signbit(coef)) {
			sign = "-"
			coef = -coef
		}
		fmt.Fprintf(bw, " %s %s %s", sign, formatNumber(coef), ColumnName(t.Col))
	}
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// RowOrder lists, for each constraint WriteLP emits, the problem row it came from. Ranged
// rows appear twice and free rows not at all. Readers that number rows by position use it
// to map solution values back.
func RowOrder(p *Problem) []int {
	order := make([]int, 0, len(p.Rows))
	for i := range p.Rows {
		switch p.Rows[i].Kind() {
		case RowEqual, RowLessEqual, RowGreaterEqual:
			order = append(order, i)
		case RowRanged:
			order = append(order, i, i)
		case RowFree:
		}
	}
	return order
}

// ColumnOrder lists columns in the order they first appear in WriteLP output: objective,
// then constraints, then bounds. Readers that create columns on first sight (GLPK) number
// them this way.
func ColumnOrder(p *Problem) []int {
	seen := make([]bool, len(p.Columns))
	order := make([]int, 0, len(p.Columns))
	visit := func(j int) {
		if !seen[j] {
			seen[j] = true
			order = append(order, j)
		}
	}
	costed := false
	for j, c := range p.Columns {
		if c.Cost != 0 {
			visit(j)
			costed = true
		}
	}
	if !costed && len(p.Columns) > 0 {
		visit(0)
	}
	for _, i := range RowOrder(p) {
		if len(p.Rows[i].Terms) == 0 {
			visit(0)
		}
		for _, t := range p.Rows[i].Terms {
			visit(t.Col)
		}
	}
	for j := range p.Columns {
		visit(j)
	}
	return order
}
