package correctionlib

import (
	"fmt"
	"sort"

	"github.com/rotisserie/eris"
)

// Lookup returns the correction with the given name
func (s *CorrectionSet) Lookup(name string) (*Correction, error) {
	for idx := range s.Corrections {
		if s.Corrections[idx].Name == name {
			return &s.Corrections[idx], nil
		}
	}

	return nil, eris.Errorf("correction %s not found", name)
}

// Evaluate returns the scale factor for a jet with the given pT.
// Values outside the edges use the first or last bin when the binning clamps.
func (c *Correction) Evaluate(pt float64, systematic string) (float64, error) {
	bin, err := c.Data.find(pt)
	if err != nil {
		return 0, eris.Wrapf(err, "correction %s", c.Name)
	}

	value, err := c.Data.Content[bin].lookup(systematic)
	if err != nil {
		return 0, eris.Wrapf(err, "correction %s", c.Name)
	}

	return value, nil
}

// EventWeight multiplies the scale factors of all jets of an event
func (c *Correction) EventWeight(pts []float64, systematic string) (float64, error) {
	weight := 1.0
	for _, pt := range pts {
		sf, err := c.Evaluate(pt, systematic)
		if err != nil {
			return 0, err
		}
		weight *= sf
	}

	return weight, nil
}

func (b *Binning) find(x float64) (int, error) {
	if len(b.Edges) < 2 || len(b.Content) != len(b.Edges)-1 {
		return 0, eris.Errorf("binning over %s has %d edges for %d bins", b.Input, len(b.Edges), len(b.Content))
	}

	last := len(b.Edges) - 1
	if x < b.Edges[0] || x >= b.Edges[last] {
		if b.Flow != "clamp" {
			return 0, eris.Errorf("%s = %g is outside of [%g, %g)", b.Input, x, b.Edges[0], b.Edges[last])
		}
		if x < b.Edges[0] {
			return 0, nil
		}
		return last - 1, nil
	}

	// the bin starts one edge before the first edge above x
	return sort.Search(len(b.Edges), func(i int) bool { return b.Edges[i] > x }) - 1, nil
}

func (c *Category) lookup(key string) (float64, error) {
	for _, item := range c.Content {
		if item.Key == key {
			return item.Value, nil
		}
	}

	if c.Default != nil {
		return *c.Default, nil
	}

	return 0, eris.Errorf("unknown %s %s", c.Input, key)
}

// EraCorrections loads the bb and cc corrections of an era from a combined file
func EraCorrections(path, era string) (bb, cc *Correction, err error) {
	set, err := ReadFile(path)
	if err != nil {
		return nil, nil, err
	}

	bb, err = set.Lookup(fmt.Sprintf("HHbbww_%s_SF_bb", era))
	if err != nil {
		return nil, nil, eris.Wrapf(err, "%s does not belong to era %s", path, era)
	}

	cc, err = set.Lookup(fmt.Sprintf("HHbbww_%s_SF_cc", era))
	if err != nil {
		return nil, nil, eris.Wrapf(err, "%s does not belong to era %s", path, era)
	}

	return bb, cc, nil
}
