package correctionlib

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// PtBin is one of the jet pT bins the fits were performed in
type PtBin struct {
	Tag   string
	Lower float64
	Upper float64
}

var PtBins = []PtBin{
	{"300to350", 300, 350},
	{"350to425", 350, 425},
	{"425toInf", 425, 20000},
}

var DefaultEras = []string{
	"2022_preEE",
	"2022_postEE",
	"2023_preBPix",
	"2023_postBPix",
}

// Systematics lists the category keys in the order they're written
var Systematics = []string{"nominal", "up", "down", "tau21Up", "tau21Down", "msdUp", "msdDown"}

// InputPath returns the per-bin file produced for the given pT bin and era
func InputPath(dir, ptTag, era string) string {
	return filepath.Join(dir, fmt.Sprintf("ak8_sf_msdtest_Pt-%s__%s.json", ptTag, era))
}

// OutputPath returns the combined file for the given era
func OutputPath(dir, era string) string {
	return filepath.Join(dir, fmt.Sprintf("ak8_sf_msdtest_Pt-combined_%s.json", era))
}

type namedValues struct {
	name   string
	values map[string]float64
}

func loadValues(path string) ([]namedValues, error) {
	set, err := ReadFile(path)
	if err != nil {
		return nil, err
	}

	result := make([]namedValues, 0, len(set.Corrections))
	for _, corr := range set.Corrections {
		if len(corr.Data.Content) == 0 {
			return nil, eris.Errorf("correction %s in %s has no bins", corr.Name, path)
		}

		values := make(map[string]float64)
		for _, item := range corr.Data.Content[0].Content {
			values[item.Key] = item.Value
		}
		result = append(result, namedValues{name: corr.Name, values: values})
	}

	return result, nil
}

func findSuffix(list []namedValues, suffix string) map[string]float64 {
	for _, item := range list {
		if strings.HasSuffix(item.name, suffix) {
			return item.values
		}
	}

	return nil
}

func buildCorrection(name, desc string, perBin []map[string]float64) (Correction, error) {
	content := make([]Category, len(perBin))
	for idx, values := range perBin {
		items := make([]CategoryItem, len(Systematics))
		for sIdx, syst := range Systematics {
			value, ok := values[syst]
			if !ok {
				return Correction{}, eris.Errorf("%s: bin %s is missing systematic %s", name, PtBins[idx].Tag, syst)
			}
			items[sIdx] = CategoryItem{Key: syst, Value: value}
		}

		content[idx] = Category{
			NodeType: "category",
			Input:    "systematic",
			Content:  items,
		}
	}

	edges := make([]float64, 0, len(PtBins)+1)
	for _, bin := range PtBins {
		edges = append(edges, bin.Lower)
	}
	edges = append(edges, PtBins[len(PtBins)-1].Upper)

	return Correction{
		Name:        name,
		Description: desc,
		Version:     1,
		Inputs: []Variable{
			{Name: "pt", Type: "real", Description: "AK8 jet pT (GeV)"},
			{Name: "systematic", Type: "string", Description: strings.Join(Systematics, "|")},
		},
		Output: Variable{Name: "sf", Type: "real", Description: "scale factor"},
		Data: Binning{
			NodeType: "binning",
			Input:    "pt",
			Edges:    edges,
			Content:  content,
			Flow:     "clamp",
		},
	}, nil
}

// CombineEra merges the per-bin files of one era found in dir into a single correction set
// with a bb and a cc correction.
func CombineEra(dir, era string) (*CorrectionSet, error) {
	perBinBB := make([]map[string]float64, 0, len(PtBins))
	perBinCC := make([]map[string]float64, 0, len(PtBins))

	for _, bin := range PtBins {
		path := InputPath(dir, bin.Tag, era)
		values, err := loadValues(path)
		if err != nil {
			return nil, err
		}

		bb := findSuffix(values, "_SF_bb")
		cc := findSuffix(values, "_SF_cc")
		if bb == nil || cc == nil {
			return nil, eris.Errorf("Missing bb/cc corrections in %s %s", bin.Tag, era)
		}

		perBinBB = append(perBinBB, bb)
		perBinCC = append(perBinCC, cc)
	}

	corrBB, err := buildCorrection(
		fmt.Sprintf("HHbbww_%s_SF_bb", era),
		fmt.Sprintf("HHbbww Run3 scale factors | combined pT bins | %s | r", era),
		perBinBB,
	)
	if err != nil {
		return nil, err
	}

	corrCC, err := buildCorrection(
		fmt.Sprintf("HHbbww_%s_SF_cc", era),
		fmt.Sprintf("HHbbww Run3 scale factors | combined pT bins | %s | SF_c", era),
		perBinCC,
	)
	if err != nil {
		return nil, err
	}

	return &CorrectionSet{
		SchemaVersion: 2,
		Description:   fmt.Sprintf("HHbbww Run3 scale factors combined pT bins (300-350, 350-425, 425-Inf) for %s", era),
		Corrections:   []Correction{corrBB, corrCC},
	}, nil
}
