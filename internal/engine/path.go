package engine

import (
	"path/filepath"
	"strings"
)

// Join concatenates base and name with exactly one separator between
// them. Leading separators on name are dropped so an absolute source path
// nests under base. Nothing else is normalized: "." and ".." segments are
// kept as written.
func Join(base, name string) string {
	name = strings.TrimLeft(name, "/")
	if base == "" {
		return name
	}
	if strings.HasSuffix(base, "/") {
		return base + name
	}
	return base + "/" + name
}

// escapesRoot reports whether joining source under a root would leave it.
func escapesRoot(source string) bool {
	rel := filepath.Clean(strings.TrimLeft(source, "/"))
	return rel == ".." || strings.HasPrefix(rel, "../")
}

// within reports whether path is dir or lies below it. Both must be absolute
// and clean.
func within(dir, path string) bool {
	if dir == path {
		return true
	}
	if dir == "/" {
		return true
	}
	return strings.HasPrefix(path, dir+"/")
}
