// Package fitdiag runs combine's FitDiagnostics mode over a tree of datacard directories.
// Each directory's combine_cards.sh is sourced with mvdan.cc/sh so that whatever the script
// exports is visible to the fit, without ever changing the process working directory.
package fitdiag
