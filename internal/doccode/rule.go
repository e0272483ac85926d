// rule.go defines DocumentCodeRule and its compilation.
//
// A Rule is declared by configuration and compiled once on registration:
// the pattern becomes an anchored regexp and the split template becomes a
// token list. Compiled state is private so a registered rule cannot drift
// from what was validated.

package doccode

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/jpl-au/dms/internal/errs"
)

// Rule describes one family of document codes.
type Rule struct {
	ID          int    `yaml:"id" json:"id"`
	Title       string `yaml:"title" json:"title"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Pattern is matched against the whole stripped filename.
	Pattern string `yaml:"pattern,omitempty" json:"pattern,omitempty"`
	// Split is the storage-path template (see template.go).
	Split string `yaml:"split,omitempty" json:"split,omitempty"`
	// Format contains exactly one %s replaced by the zero-padded number.
	Format string `yaml:"format,omitempty" json:"format,omitempty"`
	Width  int    `yaml:"width,omitempty" json:"width,omitempty"`

	// SequenceStart is the last number considered used before the first
	// allocation, so the first allocated number is SequenceStart+1.
	SequenceStart int64 `yaml:"sequence_start,omitempty" json:"sequence_start,omitempty"`

	// NoDoccode marks the catch-all rule for uncategorized filenames.
	NoDoccode bool `yaml:"no_doccode,omitempty" json:"no_doccode,omitempty"`
	Active    bool `yaml:"active" json:"active"`
	// Luhn additionally requires the trailing digits to pass the Luhn check.
	Luhn bool `yaml:"luhn,omitempty" json:"luhn,omitempty"`

	re     *regexp.Regexp
	tokens []token
}

// compile validates the rule and fills its private state.
func (r *Rule) compile() error {
	if r.Width < 0 {
		return errs.Configurationf("rule %d: negative width", r.ID)
	}
	if r.SequenceStart < 0 {
		return errs.Configurationf("rule %d: negative sequence start", r.ID)
	}
	if r.Pattern == "" && !r.NoDoccode {
		return errs.Configurationf("rule %d: pattern is required", r.ID)
	}

	pattern := r.Pattern
	if pattern == "" {
		pattern = ".+"
	}
	re, err := regexp.Compile("^(?:" + pattern + ")$")
	if err != nil {
		return errs.Configurationf("rule %d: invalid pattern: %v", r.ID, err)
	}

	if r.Format != "" && strings.Count(r.Format, "%s") != 1 {
		return errs.Configurationf("rule %d: format %q must contain exactly one %%s", r.ID, r.Format)
	}
	if r.Format != "" && strings.Count(r.Format, "%") != 1 {
		return errs.Configurationf("rule %d: format %q contains a stray %%", r.ID, r.Format)
	}

	tokens, err := parseTemplate(r.Split)
	if err != nil {
		return errs.Configurationf("rule %d: %v", r.ID, err)
	}
	for _, t := range tokens {
		if t.kind == tokGroup && t.a > re.NumSubexp() {
			return errs.Configurationf("rule %d: split references group %d, pattern has %d", r.ID, t.a, re.NumSubexp())
		}
	}

	r.re = re
	r.tokens = tokens
	return nil
}

// Matches reports whether code belongs to this rule.
func (r *Rule) Matches(code string) bool {
	if r.re == nil || !r.re.MatchString(code) {
		return false
	}
	if r.Luhn && !luhnValid(trailingDigits(code)) {
		return false
	}
	return true
}

// CanAllocate reports whether the rule can produce codes on its own.
func (r *Rule) CanAllocate() bool { return r.Format != "" }

// String renders a short identifying label for logs.
func (r *Rule) String() string {
	return fmt.Sprintf("%d:%s", r.ID, r.Title)
}

func trailingDigits(s string) string {
	i := len(s)
	for i > 0 && s[i-1] >= '0' && s[i-1] <= '9' {
		i--
	}
	return s[i:]
}

// luhnValid implements the mod-10 checksum used by card-number rules.
func luhnValid(digits string) bool {
	if len(digits) < 2 {
		return false
	}
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}
