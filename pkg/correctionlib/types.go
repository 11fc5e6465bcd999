// Package correctionlib reads and writes the subset of the correctionlib (schema v2) JSON format
// used for the AK8 jet scale factors.
package correctionlib

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
)

// CorrectionSet is the top-level document
type CorrectionSet struct {
	SchemaVersion       int               `json:"schema_version"`
	Description         string            `json:"description"`
	Corrections         []Correction      `json:"corrections"`
	CompoundCorrections []json.RawMessage `json:"compound_corrections"`
}

// Variable describes an input or output of a correction
type Variable struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

// Correction is a single named correction with a pt binning as its root node
type Correction struct {
	Name            string            `json:"name"`
	Description     string            `json:"description"`
	Version         int               `json:"version"`
	Inputs          []Variable        `json:"inputs"`
	Output          Variable          `json:"output"`
	GenericFormulas []json.RawMessage `json:"generic_formulas"`
	Data            Binning           `json:"data"`
}

// Binning splits an input into bins. Each bin holds a category node.
type Binning struct {
	NodeType string     `json:"nodetype"`
	Input    string     `json:"input"`
	Edges    []float64  `json:"edges"`
	Content  []Category `json:"content"`
	Flow     string     `json:"flow"`
}

// Category maps string keys to values
type Category struct {
	NodeType string         `json:"nodetype"`
	Input    string         `json:"input"`
	Content  []CategoryItem `json:"content"`
	Default  *float64       `json:"default"`
}

type CategoryItem struct {
	Key   string  `json:"key"`
	Value float64 `json:"value"`
}

// ReadFile parses a correction set
func ReadFile(path string) (*CorrectionSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "Could not open file %s", path)
	}

	var set CorrectionSet
	err = json.Unmarshal(data, &set)
	if err != nil {
		return nil, eris.Wrapf(err, "Failed to parse %s", path)
	}

	return &set, nil
}

// WriteFile stores the correction set as indented JSON
func WriteFile(path string, set *CorrectionSet) error {
	data, err := json.MarshalIndent(set, "", "  ")
	if err != nil {
		return eris.Wrap(err, "Failed to encode correction set")
	}

	err = os.WriteFile(path, append(data, '\n'), 0660)
	if err != nil {
		return eris.Wrapf(err, "Failed to write %s", path)
	}

	return nil
}
