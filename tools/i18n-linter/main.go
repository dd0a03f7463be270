// Copyright (c) 2026 Keymaster Team
// dbdispatch - unified database dispatch with blocking-call offload
// This source code is licensed under the MIT license found in the LICENSE file.

// i18n-linter checks the CLI translations for consistency. It collects the
// i18n.T("key") calls of the Go sources and compares them against the YAML
// locale files: a key used but not defined, or defined in English but missing
// from another locale, fails the run. Orphaned keys and literal strings that
// reach the printer untranslated are reported as warnings.
//
// Run it from the repository root:
//
//	go run ./tools/i18n-linter
package main

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	localesDir    = "internal/i18n/locales"
	primaryLocale = "en.yaml"
)

// Location stores the file and line number of a found string.
type Location struct {
	Filepath string
	Line     int
}

type report struct {
	used         map[string]Location
	primary      map[string]struct{}
	undefined    []string
	orphaned     []string
	missing      map[string][]string // locale file -> keys
	untranslated map[string]Location
}

func (r *report) failed() bool {
	if len(r.undefined) > 0 {
		return true
	}
	for _, keys := range r.missing {
		if len(keys) > 0 {
			return true
		}
	}
	return false
}

func main() {
	r, err := lint(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "i18n-linter: %v\n", err)
		os.Exit(1)
	}
	r.write(os.Stdout)
	if r.failed() {
		os.Exit(1)
	}
}

// lint scans the module rooted at root.
func lint(root string) (*report, error) {
	used, err := findUsedKeys(root)
	if err != nil {
		return nil, fmt.Errorf("scanning sources: %w", err)
	}
	dir := filepath.Join(root, localesDir)
	primary, err := loadKeysFromLocale(filepath.Join(dir, primaryLocale))
	if err != nil {
		return nil, fmt.Errorf("loading primary locale %s: %w", primaryLocale, err)
	}
	files, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}

	r := &report{used: used, primary: primary, missing: map[string][]string{}}
	for key := range used {
		if _, ok := primary[key]; !ok {
			r.undefined = append(r.undefined, key)
		}
	}
	for key := range primary {
		if _, ok := used[key]; !ok {
			r.orphaned = append(r.orphaned, key)
		}
	}
	sort.Strings(r.undefined)
	sort.Strings(r.orphaned)

	for _, file := range files {
		name := filepath.Base(file)
		if name == primaryLocale {
			continue
		}
		keys, err := loadKeysFromLocale(file)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", name, err)
		}
		var missing []string
		for key := range primary {
			if _, ok := keys[key]; !ok {
				missing = append(missing, key)
			}
		}
		sort.Strings(missing)
		r.missing[name] = missing
	}

	r.untranslated, err = findUntranslatedStrings(root)
	if err != nil {
		return nil, fmt.Errorf("scanning for literals: %w", err)
	}
	return r, nil
}

func (r *report) write(w io.Writer) {
	fmt.Fprintf(w, "Found %d translation keys in source, %d in %s.\n", len(r.used), len(r.primary), primaryLocale)

	section(w, "Undefined keys (used in code, missing from "+primaryLocale+")", r.undefined, func(k string) string {
		loc := r.used[k]
		return fmt.Sprintf("%s (%s:%d)", k, loc.Filepath, loc.Line)
	})
	section(w, "Orphaned keys (defined but never used)", r.orphaned, nil)

	locales := make([]string, 0, len(r.missing))
	for name := range r.missing {
		locales = append(locales, name)
	}
	sort.Strings(locales)
	for _, name := range locales {
		section(w, "Missing keys in "+name, r.missing[name], nil)
	}

	literals := make([]string, 0, len(r.untranslated))
	for lit := range r.untranslated {
		literals = append(literals, lit)
	}
	sort.Strings(literals)
	section(w, "Potentially untranslated strings", literals, func(lit string) string {
		loc := r.untranslated[lit]
		return fmt.Sprintf("%q (%s:%d)", lit, loc.Filepath, loc.Line)
	})

	switch {
	case r.failed():
		fmt.Fprintln(w, "\nFAIL: translations are inconsistent.")
	case len(r.orphaned) > 0:
		fmt.Fprintln(w, "\nOK with warnings: consider removing orphaned keys.")
	default:
		fmt.Fprintln(w, "\nOK: all translation files are consistent.")
	}
}

func section(w io.Writer, title string, items []string, format func(string) string) {
	fmt.Fprintf(w, "\n--- %s ---\n", title)
	if len(items) == 0 {
		fmt.Fprintln(w, "  none")
		return
	}
	for _, it := range items {
		if format != nil {
			it = format(it)
		}
		fmt.Fprintf(w, "  - %s\n", it)
	}
}

var (
	keyCallRe = regexp.MustCompile(`i18n\.T\("([^"]+)"`)
	// Literals handed straight to the CLI printer or used as a command's
	// short help.
	printerLiteralRe = regexp.MustCompile(`\.(?:ok|line|title|field)\("([^"]+)"|Short:\s*"([^"]+)"`)
)

// walkSources calls fn for every non-test Go file below root. Directories
// the go tool ignores (leading "." or "_", testdata) and tools/ are skipped.
func walkSources(root string, fn func(path string, lines []string)) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != root && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") || name == "testdata" || name == "tools" || name == "vendor") {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		fn(path, strings.Split(string(content), "\n"))
		return nil
	})
}

// findUsedKeys returns each key passed as a literal to i18n.T with its first
// location.
func findUsedKeys(root string) (map[string]Location, error) {
	keys := make(map[string]Location)
	err := walkSources(root, func(path string, lines []string) {
		for i, line := range lines {
			for _, m := range keyCallRe.FindAllStringSubmatch(line, -1) {
				if _, seen := keys[m[1]]; !seen {
					keys[m[1]] = Location{Filepath: path, Line: i + 1}
				}
			}
		}
	})
	return keys, err
}

// findUntranslatedStrings reports literal text that reaches the user without
// going through i18n.T.
func findUntranslatedStrings(root string) (map[string]Location, error) {
	found := make(map[string]Location)
	err := walkSources(root, func(path string, lines []string) {
		for i, line := range lines {
			for _, m := range printerLiteralRe.FindAllStringSubmatch(line, -1) {
				lit := m[1]
				if lit == "" {
					lit = m[2]
				}
				// Single words are labels or format verbs more often than prose.
				if !strings.Contains(strings.TrimSpace(lit), " ") {
					continue
				}
				if _, seen := found[lit]; !seen {
					found[lit] = Location{Filepath: path, Line: i + 1}
				}
			}
		}
	})
	return found, err
}

// loadKeysFromLocale reads a YAML file and returns a flat map of its keys.
func loadKeysFromLocale(path string) (map[string]struct{}, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var data map[string]any
	if err := yaml.Unmarshal(content, &data); err != nil {
		return nil, err
	}

	keys := make(map[string]struct{})
	flattenYAML("", data, keys)
	return keys, nil
}

// flattenYAML converts a nested map into dot-separated keys. go-i18n treats
// a map holding "other" (or another plural form) as one message, so such
// maps end the recursion.
func flattenYAML(prefix string, node any, keys map[string]struct{}) {
	v, ok := node.(map[string]any)
	if !ok || (prefix != "" && isMessage(v)) {
		if prefix != "" {
			keys[prefix] = struct{}{}
		}
		return
	}
	for k, val := range v {
		next := k
		if prefix != "" {
			next = prefix + "." + k
		}
		flattenYAML(next, val, keys)
	}
}

func isMessage(m map[string]any) bool {
	for _, form := range []string{"other", "one", "few", "many", "zero", "two"} {
		if _, ok := m[form]; ok {
			return true
		}
	}
	return false
}
