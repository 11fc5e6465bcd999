package fitdiag

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/rotisserie/eris"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/syntax"
)

// DirPattern selects the tau21 working point directories below <era>/<pt bin>/
const DirPattern = "202*/*/tau21*"

// baseReadDir lists directories relative to base, so base itself is never part of a pattern
func baseReadDir(base string) func(string) ([]os.FileInfo, error) {
	return func(path string) ([]os.FileInfo, error) {
		entries, err := os.ReadDir(filepath.Join(base, filepath.FromSlash(path)))
		if err != nil {
			if eris.Is(err, os.ErrNotExist) {
				return nil, nil
			}
			return nil, err
		}

		infos := make([]os.FileInfo, 0, len(entries))
		for _, entry := range entries {
			info, err := entry.Info()
			if err != nil {
				// the entry vanished between listing and stat
				continue
			}
			infos = append(infos, info)
		}

		return infos, nil
	}
}

// Discover returns every directory matching <baseDir>/202*/*/tau21* in lexical order.
// baseDir is matched literally, only DirPattern is treated as a glob.
func Discover(baseDir string) ([]string, error) {
	word := &syntax.Word{
		Parts: []syntax.WordPart{&syntax.Lit{Value: DirPattern}},
	}

	cfg := expand.Config{
		Env:      expand.ListEnviron(),
		ReadDir:  baseReadDir(baseDir),
		NullGlob: true,
	}

	matches, err := expand.Fields(&cfg, word)
	if err != nil {
		return nil, eris.Wrapf(err, "Failed to resolve pattern %s", filepath.Join(baseDir, DirPattern))
	}

	result := make([]string, 0, len(matches))
	for _, match := range matches {
		path := filepath.Join(baseDir, filepath.FromSlash(match))
		info, err := os.Stat(path)
		if err != nil {
			if eris.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, eris.Wrapf(err, "Failed to check %s", path)
		}

		if info.IsDir() {
			result = append(result, path)
		}
	}

	sort.Strings(result)
	return result, nil
}
