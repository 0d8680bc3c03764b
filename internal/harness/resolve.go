package harness

import (
	"fmt"
	"sort"
	"strings"
)

// Resolve substitutes ${NAME} placeholders in s from vars. The descriptor
// format defers path resolution to the harness, so every placeholder must be
// bound by the time a value reaches the training process; unbound names are
// an error. Bare $NAME is left alone.
func Resolve(s string, vars map[string]string) (string, error) {
	var out strings.Builder
	var missing []string
	for {
		i := strings.Index(s, "${")
		if i < 0 {
			out.WriteString(s)
			break
		}
		out.WriteString(s[:i])
		rest := s[i+2:]
		j := strings.IndexByte(rest, '}')
		if j < 0 {
			return "", fmt.Errorf("unterminated placeholder in %q", s)
		}
		name := rest[:j]
		if val, ok := vars[name]; ok {
			out.WriteString(val)
		} else {
			missing = append(missing, name)
		}
		s = rest[j+1:]
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return "", fmt.Errorf("unbound placeholders: %s", strings.Join(missing, ", "))
	}
	return out.String(), nil
}

// ResolveAll resolves each string in argv, returning the first error.
func ResolveAll(argv []string, vars map[string]string) ([]string, error) {
	resolved := make([]string, len(argv))
	for i, s := range argv {
		r, err := Resolve(s, vars)
		if err != nil {
			return nil, fmt.Errorf("argument %q: %w", s, err)
		}
		resolved[i] = r
	}
	return resolved, nil
}
