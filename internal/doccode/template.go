// template.go parses and evaluates split templates.
//
// A template is a comma separated list of tokens, each producing one path
// segment from a document code:
//
//	0:3        bytes [0,3) of the code; "5:" runs to the end
//	group:1    capture group 1 of the rule pattern
//	hash:2     two fan-out segments from the blake2b-256 digest of the code
//	'inv'      a literal segment
//
// Evaluation is pure: the same rule and code always yield the same segments.

package doccode

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/blake2b"
)

type tokenKind int

const (
	tokSlice tokenKind = iota
	tokGroup
	tokHash
	tokLiteral
)

// maxHashLevels bounds hash fan-out; a blake2b-256 digest has 32 bytes.
const maxHashLevels = 8

type token struct {
	kind tokenKind
	a, b int // slice bounds; b < 0 means to end. group/hash use a.
	lit  string
}

func parseTemplate(tmpl string) ([]token, error) {
	tmpl = strings.TrimSpace(tmpl)
	if tmpl == "" {
		return nil, nil
	}

	var tokens []token
	for _, raw := range strings.Split(tmpl, ",") {
		part := strings.TrimSpace(raw)
		t, err := parseToken(part)
		if err != nil {
			return nil, fmt.Errorf("split template %q: %w", tmpl, err)
		}
		tokens = append(tokens, t)
	}
	return tokens, nil
}

func parseToken(part string) (token, error) {
	switch {
	case part == "":
		return token{}, fmt.Errorf("empty token")

	case len(part) >= 2 && part[0] == '\'' && part[len(part)-1] == '\'':
		lit := part[1 : len(part)-1]
		if err := checkSegment(lit); err != nil {
			return token{}, err
		}
		return token{kind: tokLiteral, lit: lit}, nil

	case strings.HasPrefix(part, "group:"):
		n, err := strconv.Atoi(strings.TrimPrefix(part, "group:"))
		if err != nil || n < 0 {
			return token{}, fmt.Errorf("bad group token %q", part)
		}
		return token{kind: tokGroup, a: n}, nil

	case strings.HasPrefix(part, "hash:"):
		n, err := strconv.Atoi(strings.TrimPrefix(part, "hash:"))
		if err != nil || n < 1 || n > maxHashLevels {
			return token{}, fmt.Errorf("bad hash token %q (levels 1-%d)", part, maxHashLevels)
		}
		return token{kind: tokHash, a: n}, nil
	}

	lo, hi, ok := strings.Cut(part, ":")
	if !ok {
		return token{}, fmt.Errorf("unknown token %q", part)
	}
	a, err := strconv.Atoi(lo)
	if err != nil || a < 0 {
		return token{}, fmt.Errorf("bad slice start in %q", part)
	}
	b := -1
	if hi != "" {
		b, err = strconv.Atoi(hi)
		if err != nil || b <= a {
			return token{}, fmt.Errorf("bad slice end in %q", part)
		}
	}
	return token{kind: tokSlice, a: a, b: b}, nil
}

// segments evaluates tokens against a code already known to match the rule.
func (r *Rule) segments(code string) ([]string, error) {
	if len(r.tokens) == 0 {
		return nil, nil
	}

	var groups []string
	out := make([]string, 0, len(r.tokens))
	for _, t := range r.tokens {
		switch t.kind {
		case tokLiteral:
			out = append(out, t.lit)

		case tokSlice:
			if t.a >= len(code) {
				return nil, fmt.Errorf("slice %d: beyond code %q", t.a, code)
			}
			end := len(code)
			if t.b >= 0 && t.b < end {
				end = t.b
			}
			out = append(out, code[t.a:end])

		case tokGroup:
			if groups == nil {
				groups = r.re.FindStringSubmatch(code)
			}
			if t.a >= len(groups) || groups[t.a] == "" {
				return nil, fmt.Errorf("group %d empty for code %q", t.a, code)
			}
			out = append(out, groups[t.a])

		case tokHash:
			sum := blake2b.Sum256([]byte(code))
			for i := range t.a {
				out = append(out, hex.EncodeToString(sum[i:i+1]))
			}
		}
	}

	for _, s := range out {
		if err := checkSegment(s); err != nil {
			return nil, fmt.Errorf("code %q: %w", code, err)
		}
	}
	return out, nil
}

// checkSegment rejects segments that would escape or confuse a path join.
func checkSegment(s string) error {
	switch {
	case s == "":
		return fmt.Errorf("empty path segment")
	case s == "." || s == "..":
		return fmt.Errorf("path segment %q not allowed", s)
	case strings.ContainsAny(s, "/\\\x00"):
		return fmt.Errorf("path segment %q contains a separator", s)
	}
	return nil
}
