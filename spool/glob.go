package spool

import (
	"io/fs"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// ExpandGlobs returns the regular files matched by globs, deduplicated, in
// the order the globs are given. A "**" segment matches zero or more
// directories.
func ExpandGlobs(globs []string) ([]string, error) {
	seen := make(map[string]struct{})
	var out []string
	for _, g := range globs {
		g = strings.TrimSpace(g)
		if g == "" {
			continue
		}
		matches, err := expandGlob(g)
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			out = append(out, m)
		}
	}
	return out, nil
}

func expandGlob(pattern string) ([]string, error) {
	if !strings.Contains(pattern, "**") {
		return filepath.Glob(pattern)
	}

	slash := filepath.ToSlash(pattern)
	segs := strings.Split(slash, "/")
	// Walk from the longest prefix without wildcards.
	i := 0
	for i < len(segs) && !hasMeta(segs[i]) {
		i++
	}
	root := strings.Join(segs[:i], "/")
	if root == "" {
		if strings.HasPrefix(slash, "/") {
			root = "/"
		} else {
			root = "."
		}
	}
	rest := segs[i:]

	var matches []string
	err := filepath.WalkDir(filepath.FromSlash(root), func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(filepath.FromSlash(root), p)
		if err != nil {
			return err
		}
		ok, err := matchSegments(rest, strings.Split(filepath.ToSlash(rel), "/"))
		if err != nil {
			return err
		}
		if ok {
			matches = append(matches, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

func matchSegments(pattern, name []string) (bool, error) {
	for len(pattern) > 0 {
		if pattern[0] == "**" {
			for len(pattern) > 0 && pattern[0] == "**" {
				pattern = pattern[1:]
			}
			if len(pattern) == 0 {
				return true, nil
			}
			for skip := 0; skip <= len(name); skip++ {
				ok, err := matchSegments(pattern, name[skip:])
				if err != nil || ok {
					return ok, err
				}
			}
			return false, nil
		}
		if len(name) == 0 {
			return false, nil
		}
		ok, err := path.Match(pattern[0], name[0])
		if err != nil || !ok {
			return false, err
		}
		pattern, name = pattern[1:], name[1:]
	}
	return len(name) == 0, nil
}

func hasMeta(seg string) bool {
	return strings.ContainsAny(seg, `*?[\`)
}
