package engine

import (
	"context"
	"log/slog"
	"strings"

	"civicrank/core"
)

// RuleResolver looks up the active point rule for an event.
type RuleResolver struct {
	store RuleStore
	log   *slog.Logger
}

func NewRuleResolver(store RuleStore, log *slog.Logger) *RuleResolver {
	if log == nil {
		log = slog.Default()
	}
	return &RuleResolver{store: store, log: log}
}

// Resolve returns the rule for (eventType, condition), or ok=false when no rule
// applies or the matching rule awards zero points. When several active rules
// match, the oldest one wins.
func (r *RuleResolver) Resolve(ctx context.Context, eventType string, condition *string) (core.PointRule, bool, error) {
	if strings.TrimSpace(eventType) == "" {
		return core.PointRule{}, false, ErrEmptyEventType
	}
	rules, err := r.store.ActiveRules(ctx, eventType, condition)
	if err != nil {
		return core.PointRule{}, false, err
	}
	if len(rules) == 0 {
		return core.PointRule{}, false, nil
	}
	if len(rules) > 1 {
		r.log.WarnContext(ctx, "ambiguous point rules, using oldest",
			"event_type", eventType, "matches", len(rules), "rule_id", rules[0].ID)
	}
	rule := rules[0]
	if rule.Points == 0 {
		return rule, false, nil
	}
	return rule, true, nil
}
