package ratelimit

import (
	"fmt"
	"slices"
	"time"

	"github.com/Proton-105/homebox-bot/pkg/config"
)

// Kind selects one of the configured rules.
type Kind string

const (
	KindGlobal Kind = "global"
	KindUser   Kind = "user"
	KindPhoto  Kind = "photo"
)

// Rule is a parsed "limit per window" pair.
type Rule struct {
	Limit  int
	Window time.Duration
}

// Enabled reports whether the rule restricts anything.
func (r Rule) Enabled() bool { return r.Limit > 0 && r.Window > 0 }

// Rules holds the parsed limits and the whitelist.
type Rules struct {
	whitelist []int64
	rules     map[Kind]Rule
}

// NewRules parses cfg. A rule without a window is disabled; a malformed window is an error.
func NewRules(cfg config.RateLimitConfig) (*Rules, error) {
	r := &Rules{whitelist: cfg.Whitelist, rules: make(map[Kind]Rule, 3)}

	for kind, raw := range map[Kind]config.RateLimitRule{
		KindGlobal: cfg.Global,
		KindUser:   cfg.PerUser,
		KindPhoto:  cfg.Photos,
	} {
		rule, err := parseRule(raw)
		if err != nil {
			return nil, fmt.Errorf("ratelimit: %s rule: %w", kind, err)
		}
		r.rules[kind] = rule
	}

	return r, nil
}

// IsWhitelisted reports whether userID bypasses every limit.
func (r *Rules) IsWhitelisted(userID int64) bool {
	return slices.Contains(r.whitelist, userID)
}

// Get returns the rule for kind; the zero Rule is disabled.
func (r *Rules) Get(kind Kind) Rule {
	return r.rules[kind]
}

// Key is the limiter key for kind and user. Global rules ignore the user.
func Key(kind Kind, userID int64) string {
	if kind == KindGlobal {
		return string(kind)
	}
	return fmt.Sprintf("%s:%d", kind, userID)
}

func parseRule(rule config.RateLimitRule) (Rule, error) {
	if rule.Window == "" || rule.Limit <= 0 {
		return Rule{}, nil
	}
	window, err := time.ParseDuration(rule.Window)
	if err != nil {
		return Rule{}, err
	}
	return Rule{Limit: rule.Limit, Window: window}, nil
}
