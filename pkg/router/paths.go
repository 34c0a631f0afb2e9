package router

import "strings"

// joinPaths joins path fragments with single slashes, producing an
// absolute path with no trailing slash except for the root itself.
func joinPaths(fragments ...string) string {
	var sb strings.Builder
	for _, f := range fragments {
		for _, seg := range strings.Split(f, "/") {
			if seg == "" {
				continue
			}
			sb.WriteByte('/')
			sb.WriteString(seg)
		}
	}
	if sb.Len() == 0 {
		return "/"
	}
	return sb.String()
}

// normalizePath collapses redundant slashes and strips any trailing
// slash, keeping "/" for the root.
func normalizePath(p string) string {
	return joinPaths(p)
}
