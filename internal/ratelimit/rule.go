// Package ratelimit applies per-client fixed-window request limits backed by
// Redis or by process memory.
package ratelimit

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
)

var ErrInvalidRule = errors.New("invalid rate limit rule")

// Rule allows Limit hits per Window.
type Rule struct {
	Limit  int
	Window time.Duration
}

var units = map[string]time.Duration{
	"second": time.Second,
	"minute": time.Minute,
	"hour":   time.Hour,
	"day":    24 * time.Hour,
}

// ParseRule accepts "10 per minute", "10/minute" and "50 per 2 hours".
func ParseRule(s string) (Rule, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	var amount, period string
	if a, p, ok := strings.Cut(s, " per "); ok {
		amount, period = a, p
	} else if a, p, ok := strings.Cut(s, "/"); ok {
		amount, period = a, p
	} else {
		return Rule{}, fmt.Errorf("%w: %q", ErrInvalidRule, s)
	}

	limit, err := strconv.Atoi(strings.TrimSpace(amount))
	if err != nil || limit <= 0 {
		return Rule{}, fmt.Errorf("%w: bad amount in %q", ErrInvalidRule, s)
	}

	fields := strings.Fields(period)
	multiplier := 1
	switch len(fields) {
	case 1:
	case 2:
		multiplier, err = strconv.Atoi(fields[0])
		if err != nil || multiplier <= 0 {
			return Rule{}, fmt.Errorf("%w: bad multiplier in %q", ErrInvalidRule, s)
		}
		fields = fields[1:]
	default:
		return Rule{}, fmt.Errorf("%w: bad period in %q", ErrInvalidRule, s)
	}

	unit, ok := units[strings.TrimSuffix(fields[0], "s")]
	if !ok {
		return Rule{}, fmt.Errorf("%w: unknown unit in %q", ErrInvalidRule, s)
	}
	return Rule{Limit: limit, Window: time.Duration(multiplier) * unit}, nil
}

// ParseRules parses a list of rules separated by ';' or ','.
func ParseRules(s string) ([]Rule, error) {
	parts := lo.Filter(strings.FieldsFunc(s, func(r rune) bool { return r == ';' || r == ',' }),
		func(p string, _ int) bool { return strings.TrimSpace(p) != "" })

	rules := make([]Rule, 0, len(parts))
	for _, p := range parts {
		r, err := ParseRule(p)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, nil
}

func (r Rule) String() string {
	return fmt.Sprintf("%d per %s", r.Limit, r.Window)
}
