package prompt

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/MorganRO8/LoA-sub000/constants"
	"github.com/MorganRO8/LoA-sub000/internal/schema"
)

// GenerateExamples draws n synthetic rows for s. Values are well typed but visibly fake:
// strings carry the example marker and numbers come from the declared bounds, or from
// bounds derived from the column index when none are declared. The same seed always yields
// the same rows.
func GenerateExamples(s *schema.Schema, n int, seed int64) [][]string {
	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))
	rows := make([][]string, n)
	for i := range rows {
		row := make([]string, s.NumColumns())
		for j, col := range s.Columns() {
			row[j] = exampleValue(rng, col, i+1)
		}
		rows[i] = row
	}
	return rows
}

func exampleValue(rng *rand.Rand, col schema.Column, ordinal int) string {
	if allowed := col.AllowedValues(); len(allowed) > 0 {
		return allowed[rng.IntN(len(allowed))]
	}
	lo, hi := defaultBounds(col.Index)

	switch k := col.Kind.(type) {
	case schema.StringKind:
		return exampleString(col, k, ordinal)
	case schema.IntegerKind:
		ilo, ihi := int64(lo), int64(hi)
		if k.Min != nil {
			ilo = *k.Min
		}
		if k.Max != nil {
			ihi = *k.Max
		}
		if ihi < ilo {
			ilo, ihi = ihi, ilo
		}
		span := uint64(ihi) - uint64(ilo)
		if span == math.MaxUint64 {
			return strconv.FormatInt(int64(rng.Uint64()), 10)
		}
		return strconv.FormatInt(int64(uint64(ilo)+rng.Uint64N(span+1)), 10)
	case schema.FloatKind:
		flo, fhi := bounds(k.Min, k.Max, lo, hi)
		return formatFloat(flo + rng.Float64()*(fhi-flo))
	case schema.ComplexKind:
		re := float64(rng.IntN(hi*10)) / 10
		im := float64(rng.IntN(hi*10)) / 10
		return fmt.Sprintf("%s+%sj", formatFloat(re), formatFloat(im))
	case schema.RangeKind:
		flo, fhi := bounds(k.Min, k.Max, lo, hi)
		// Negative lower bounds would render ambiguously as "-a-b".
		if flo < 0 {
			flo = 0
		}
		if fhi < flo {
			fhi = flo + float64(hi)
		}
		a := flo + rng.Float64()*(fhi-flo)
		b := flo + rng.Float64()*(fhi-flo)
		if a > b {
			a, b = b, a
		}
		return formatFloat(a) + "-" + formatFloat(b)
	case schema.BooleanKind:
		if rng.IntN(2) == 0 {
			return "false"
		}
		return "true"
	}
	return constants.NullToken
}

func exampleString(col schema.Column, k schema.StringKind, ordinal int) string {
	var b strings.Builder
	b.WriteString(constants.ExampleMarker)
	for _, r := range strings.ToUpper(col.Name) {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '_' || r == '-':
			b.WriteByte('_')
		}
	}
	b.WriteByte('_')
	b.WriteString(strconv.Itoa(ordinal))
	if len(k.Whitelist) > 0 {
		b.WriteByte('_')
		b.WriteString(k.Whitelist[0])
	}
	return b.String()
}

// defaultBounds spreads example values by column so neighbouring numeric columns differ.
func defaultBounds(index int) (int, int) {
	return index, index*10 + 10
}

func bounds(min, max *float64, lo, hi int) (float64, float64) {
	flo, fhi := float64(lo), float64(hi)
	if min != nil {
		flo = *min
	}
	if max != nil {
		fhi = *max
	}
	if fhi < flo {
		flo, fhi = fhi, flo
	}
	return flo, fhi
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}
