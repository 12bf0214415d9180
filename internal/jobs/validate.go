package jobs

import (
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"
)

// Limits declares the bounds enforced on submission parameters.
// Values come from configuration; DefaultLimits provides the shipped defaults.
type Limits struct {
	TopicMaxLen      int      `mapstructure:"topic_max_len"`
	DomainMaxLen     int      `mapstructure:"domain_max_len"`
	GoalMaxLen       int      `mapstructure:"goal_max_len"`
	BackgroundMaxLen int      `mapstructure:"background_max_len"`
	FocusMaxLen      int      `mapstructure:"focus_max_len"`
	MinChapters      int      `mapstructure:"min_chapters"`
	MaxChapters      int      `mapstructure:"max_chapters"`
	DefaultChapters  int      `mapstructure:"default_chapters"`
	Tiers            []string `mapstructure:"tiers"`
	DefaultTier      string   `mapstructure:"default_tier"`
}

// DefaultLimits returns the default submission bounds.
func DefaultLimits() Limits {
	return Limits{
		TopicMaxLen:      200,
		DomainMaxLen:     100,
		GoalMaxLen:       500,
		BackgroundMaxLen: 2000,
		FocusMaxLen:      500,
		MinChapters:      1,
		MaxChapters:      30,
		DefaultChapters:  10,
		Tiers:            []string{"draft", "standard", "premium"},
		DefaultTier:      "standard",
	}
}

// Validate checks p against the limits, applying defaults for optional
// fields. It returns a *ValidationError listing every problem found, or nil.
// This runs before any pipeline or storage call.
func (l Limits) Validate(p *Params) error {
	var problems []string

	p.Topic = strings.TrimSpace(p.Topic)
	p.Domain = strings.TrimSpace(p.Domain)
	p.Goal = strings.TrimSpace(p.Goal)

	problems = appendRequired(problems, "topic", p.Topic, l.TopicMaxLen)
	problems = appendRequired(problems, "domain", p.Domain, l.DomainMaxLen)
	problems = appendRequired(problems, "goal", p.Goal, l.GoalMaxLen)
	problems = appendOptional(problems, "background", p.Background, l.BackgroundMaxLen)
	problems = appendOptional(problems, "focus", p.Focus, l.FocusMaxLen)

	if p.NumChapters == 0 {
		p.NumChapters = l.DefaultChapters
	}
	if p.NumChapters < l.MinChapters || p.NumChapters > l.MaxChapters {
		problems = append(problems, fmt.Sprintf("num_chapters must be between %d and %d", l.MinChapters, l.MaxChapters))
	}

	if p.Tier == "" {
		p.Tier = l.DefaultTier
	}
	if !slices.Contains(l.Tiers, p.Tier) {
		problems = append(problems, fmt.Sprintf("tier must be one of %s", strings.Join(l.Tiers, ", ")))
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

func appendRequired(problems []string, field, value string, maxLen int) []string {
	if value == "" {
		return append(problems, field+" is required")
	}
	return appendOptional(problems, field, value, maxLen)
}

func appendOptional(problems []string, field, value string, maxLen int) []string {
	if n := utf8.RuneCountInString(value); n > maxLen {
		return append(problems, fmt.Sprintf("%s exceeds %d characters", field, maxLen))
	}
	return problems
}
