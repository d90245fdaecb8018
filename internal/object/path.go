package object

import (
	"fmt"
	"strings"
)

// RegisterRoot is the first segment of every Register path.
const RegisterRoot = "_"

// Path is a parsed, dot-separated name sequence. A path whose first segment
// is "_" addresses the executing Block's Register; every other path addresses
// the Store.
type Path struct {
	Segments []string
}

// ParsePath splits a path token. A trailing dot marks a reference path
// ("a.b." denotes the Cell at a.b rather than its payload) and is reported
// through ref.
func ParsePath(s string) (p Path, ref bool, err error) {
	if s == "" {
		return Path{}, false, fmt.Errorf("empty path")
	}
	body := s
	if strings.HasSuffix(body, ".") {
		ref = true
		body = body[:len(body)-1]
	}
	segments := strings.Split(body, ".")
	for _, seg := range segments {
		if seg == "" {
			return Path{}, false, fmt.Errorf("empty path component in '%s'", s)
		}
	}
	if first := segments[0]; first != RegisterRoot && strings.HasPrefix(first, RegisterRoot) {
		return Path{}, false, fmt.Errorf(
			"invalid register syntax '%s': register paths must use '_.%s' (with dot), not '%s'",
			s, first[1:], first)
	}
	return Path{Segments: segments}, ref, nil
}

// MustPath parses s and panics on malformed input. It is meant for host
// registration tables and tests.
func MustPath(s string) Path {
	p, _, err := ParsePath(s)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Path) IsRegister() bool {
	return len(p.Segments) > 0 && p.Segments[0] == RegisterRoot
}

func (p Path) String() string {
	return strings.Join(p.Segments, ".")
}

// Child returns a new path one segment deeper.
func (p Path) Child(name string) Path {
	segments := make([]string, len(p.Segments), len(p.Segments)+1)
	copy(segments, p.Segments)
	return Path{Segments: append(segments, name)}
}
