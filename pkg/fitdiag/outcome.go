package fitdiag

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Status is the result of processing one directory
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

// Outcome records what happened to a single candidate directory
type Outcome struct {
	Dir      string
	Status   Status
	Reason   string
	Err      error
	Duration time.Duration
}

// Summary holds the outcomes of a run in discovery order
type Summary struct {
	Channel  string
	Outcomes []Outcome
}

// Count returns the number of outcomes with the given status
func (s *Summary) Count(status Status) int {
	n := 0
	for _, o := range s.Outcomes {
		if o.Status == status {
			n++
		}
	}

	return n
}

// Failed returns all failed outcomes
func (s *Summary) Failed() []Outcome {
	result := []Outcome{}
	for _, o := range s.Outcomes {
		if o.Status == StatusFailed {
			result = append(result, o)
		}
	}

	return result
}

// Err returns a *FailedError if any directory failed
func (s *Summary) Err() error {
	failed := s.Failed()
	if len(failed) == 0 {
		return nil
	}

	dirs := make([]string, len(failed))
	for idx, o := range failed {
		dirs[idx] = o.Dir
	}

	return &FailedError{Dirs: dirs}
}

// FailedError is returned by Driver.Run when at least one fit failed
type FailedError struct {
	Dirs []string
}

func (e *FailedError) Error() string {
	if len(e.Dirs) == 1 {
		return "fit failed in " + e.Dirs[0]
	}

	return fmt.Sprintf("%d fits failed: %s", len(e.Dirs), strings.Join(e.Dirs, ", "))
}

type reportEntry struct {
	Dir     string  `yaml:"dir"`
	Status  Status  `yaml:"status"`
	Reason  string  `yaml:"reason,omitempty"`
	Error   string  `yaml:"error,omitempty"`
	Seconds float64 `yaml:"seconds"`
}

type report struct {
	Channel   string        `yaml:"channel"`
	Succeeded int           `yaml:"succeeded"`
	Skipped   int           `yaml:"skipped"`
	Failed    int           `yaml:"failed"`
	Dirs      []reportEntry `yaml:"dirs"`
}

// WriteReport stores the summary as YAML
func (s *Summary) WriteReport(path string) error {
	rep := report{
		Channel:   s.Channel,
		Succeeded: s.Count(StatusSucceeded),
		Skipped:   s.Count(StatusSkipped),
		Failed:    s.Count(StatusFailed),
		Dirs:      make([]reportEntry, len(s.Outcomes)),
	}

	for idx, o := range s.Outcomes {
		entry := reportEntry{
			Dir:     o.Dir,
			Status:  o.Status,
			Reason:  o.Reason,
			Seconds: o.Duration.Seconds(),
		}
		if o.Err != nil {
			entry.Error = o.Err.Error()
		}
		rep.Dirs[idx] = entry
	}

	data, err := yaml.Marshal(&rep)
	if err != nil {
		return eris.Wrap(err, "Failed to encode report")
	}

	err = os.WriteFile(path, data, 0660)
	if err != nil {
		return eris.Wrapf(err, "Failed to write %s", path)
	}

	return nil
}
