// Package ignore evaluates .tfignore exclusions. A .tfignore file applies to
// the folder holding it and everything below; rules from deeper files are
// evaluated after their parents', so they can override them.
package ignore

import (
	"bufio"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// FileName is the per-folder exclusion file.
const FileName = ".tfignore"

// defaults always apply below a workspace root.
var defaults = []string{
	"/.tfvc/",
	"$tf/",
	".git/",
	".svn/",
	".hg/",
	".DS_Store",
	"Thumbs.db",
	"Desktop.ini",
	"*.swp",
	"*.swo",
	"*~",
	"*.tmp",
	"*.temp",
}

type rule struct {
	scope   string // root-relative folder the rule was read in, "" for the root
	glob    string
	include bool // "!" re-includes what earlier rules excluded
	folder  bool // trailing slash: folders only
}

// parseRule reads one line. Both slash styles are accepted, a leading
// separator anchors the rule to its scope folder, and matching ignores case.
func parseRule(line, scope string) (rule, bool) {
	line = strings.TrimSpace(line)
	if line == "" || line[0] == '#' {
		return rule{}, false
	}

	r := rule{scope: scope}
	if line[0] == '!' {
		r.include = true
		line = line[1:]
	}
	line = strings.ToLower(strings.ReplaceAll(line, `\`, "/"))

	if strings.HasSuffix(line, "/") {
		r.folder = true
		line = strings.TrimRight(line, "/")
	}
	switch {
	case strings.HasPrefix(line, "/"):
		line = strings.TrimLeft(line, "/")
	case !strings.Contains(line, "/"):
		line = "**/" + line
	}
	if line == "" || line == "**/" {
		return rule{}, false
	}
	r.glob = line
	return r, true
}

// matches tests rel and each of its parent folders, so an excluded folder
// excludes its contents.
func (r rule) matches(rel string, isDir bool) bool {
	if r.scope != "" {
		if !strings.HasPrefix(rel, r.scope+"/") {
			return false
		}
		rel = rel[len(r.scope)+1:]
	}

	parts := strings.Split(rel, "/")
	for i := 1; i <= len(parts); i++ {
		dir := i < len(parts) || isDir
		if r.folder && !dir {
			continue
		}
		if ok, _ := doublestar.Match(r.glob, strings.Join(parts[:i], "/")); ok {
			return true
		}
	}
	return false
}

// Matcher decides whether workspace-relative paths are excluded.
type Matcher struct {
	root   string
	rules  []rule
	nested bool
	read   map[string]bool // scopes whose .tfignore was consulted
}

// NewMatcher returns a Matcher without rules. root is only used by MatchPath
// and by nested file lookup.
func NewMatcher(root string) *Matcher {
	return &Matcher{root: root, read: make(map[string]bool)}
}

// Compile returns a Matcher holding root-scoped patterns.
func Compile(patterns []string) *Matcher {
	m := NewMatcher("")
	m.Add("", patterns...)
	return m
}

// LoadFromDir returns the Matcher for a workspace root: the defaults, then
// root/.tfignore, then any .tfignore found in sub folders as paths below
// them are matched.
func LoadFromDir(root string) (*Matcher, error) {
	return LoadWithFile(root, filepath.Join(root, FileName))
}

// LoadWithFile is LoadFromDir with file read in place of root/.tfignore.
func LoadWithFile(root, file string) (*Matcher, error) {
	m := NewMatcher(root)
	m.LoadDefaults()
	if err := m.LoadFile(file); err != nil {
		return nil, err
	}
	m.read[""] = true
	m.nested = true
	return m, nil
}

// Add appends pattern lines read in the scope folder. Blank lines and #
// comments are skipped.
func (m *Matcher) Add(scope string, lines ...string) {
	scope = strings.ToLower(strings.Trim(filepath.ToSlash(scope), "/"))
	for _, line := range lines {
		if r, ok := parseRule(line, scope); ok {
			m.rules = append(m.rules, r)
		}
	}
}

// Len returns the number of rules.
func (m *Matcher) Len() int {
	return len(m.rules)
}

// LoadDefaults adds the exclusions every workspace gets.
func (m *Matcher) LoadDefaults() {
	m.Add("", defaults...)
}

// LoadFile adds root-scoped patterns from path; a missing file is fine.
func (m *Matcher) LoadFile(path string) error {
	return m.load(path, "")
}

func (m *Matcher) load(file, scope string) error {
	f, err := os.Open(file)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	lines, err := readLines(f)
	if err != nil {
		return err
	}
	m.Add(scope, lines...)
	return nil
}

func readLines(r io.Reader) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines, sc.Err()
}

// loadNested reads the .tfignore of every folder above rel, top down.
// Unreadable files are skipped.
func (m *Matcher) loadNested(rel string) {
	dir := path.Dir(rel)
	if dir == "." {
		return
	}
	parts := strings.Split(dir, "/")
	for i := 1; i <= len(parts); i++ {
		scope := strings.Join(parts[:i], "/")
		k := strings.ToLower(scope)
		if m.read[k] {
			continue
		}
		m.read[k] = true
		_ = m.load(filepath.Join(m.root, filepath.FromSlash(scope), FileName), scope)
	}
}

// Match reports whether the root-relative path is excluded. The last rule
// that matches decides.
func (m *Matcher) Match(rel string, isDir bool) bool {
	rel = strings.Trim(strings.TrimPrefix(filepath.ToSlash(rel), "./"), "/")
	if rel == "" || rel == "." {
		return false
	}
	if m.nested {
		m.loadNested(rel)
	}
	rel = strings.ToLower(rel)

	excluded := false
	for _, r := range m.rules {
		if r.matches(rel, isDir) {
			excluded = !r.include
		}
	}
	return excluded
}

// MatchPath is Match with the folder flag taken from disk.
func (m *Matcher) MatchPath(rel string) bool {
	info, err := os.Stat(filepath.Join(m.root, filepath.FromSlash(rel)))
	return m.Match(rel, err == nil && info.IsDir())
}
