package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"civicrank/core"
)

const (
	EventManualAdjustment = "manual_adjustment"
	DefaultHistoryLimit   = 50
)

type ledgerStore interface {
	LedgerStore
	UserStore
}

// AwardRequest describes an event that may earn points.
type AwardRequest struct {
	UserID         core.UserID
	EventType      string
	EventCondition *string
	Related        core.RelatedIDs
	AwardedBy      *core.UserID
	// Description overrides the rule description on the transaction. The
	// notification keeps the rule description.
	Description string
}

// Ledger records point transactions and keeps user totals and levels in step.
type Ledger struct {
	store    ledgerStore
	rules    *RuleResolver
	levels   *LevelProgression
	notifier *Notifier
	bus      *EventBus
	log      *slog.Logger
	now      func() time.Time
}

func NewLedger(store ledgerStore, rules *RuleResolver, levels *LevelProgression, notifier *Notifier, bus *EventBus, log *slog.Logger, now func() time.Time) *Ledger {
	if log == nil {
		log = slog.Default()
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Ledger{store: store, rules: rules, levels: levels, notifier: notifier, bus: bus, log: log, now: now}
}

// AwardPoints applies the active rule for the event to the user. Missing users,
// staff accounts and unmatched events produce a successful result with zero points.
func (l *Ledger) AwardPoints(ctx context.Context, req AwardRequest) (AwardResult, error) {
	var res AwardResult
	userID, err := core.NormalizeUserID(req.UserID)
	if err != nil {
		return res, ErrInvalidUser
	}
	if strings.TrimSpace(req.EventType) == "" {
		return res, ErrEmptyEventType
	}

	u, found, err := l.lookup(ctx, &res, userID)
	if err != nil || !found {
		return res, err
	}

	if !u.Role.EarnsPoints() {
		res.skip(StepEligibility, "role "+string(u.Role)+" does not earn points")
		res.TotalPoints = u.CurrentPoints
		res.Message = "role not eligible for points"
		return res, nil
	}
	res.ok(StepEligibility, "")

	rule, ok, err := l.rules.Resolve(ctx, req.EventType, req.EventCondition)
	if err != nil {
		res.fail(StepResolveRule, err)
		return res, &PipelineError{Step: StepResolveRule, Err: err}
	}
	if !ok {
		res.skip(StepResolveRule, "no rule")
		res.TotalPoints = u.CurrentPoints
		res.Message = "no points rule for event"
		return res, nil
	}
	res.ok(StepResolveRule, rule.ID)

	desc := req.Description
	if desc == "" {
		desc = rule.Description
	}
	tx := core.PointTransaction{
		UserID:            u.ID,
		Points:            rule.Points,
		EventType:         req.EventType,
		EventCondition:    req.EventCondition,
		RelatedForumID:    req.Related.ForumID,
		RelatedCommentID:  req.Related.CommentID,
		RelatedReactionID: req.Related.ReactionID,
		Description:       desc,
		AwardedBy:         req.AwardedBy,
		RuleID:            &rule.ID,
	}
	if err := l.commit(ctx, &res, u, tx, rule.Description); err != nil {
		return res, err
	}
	res.Message = "points awarded"
	return res, nil
}

// ManualAdjustment credits or debits points on behalf of an admin. It applies
// to every role.
func (l *Ledger) ManualAdjustment(ctx context.Context, admin, user core.UserID, points int64, reason string) (AwardResult, error) {
	var res AwardResult
	userID, err := core.NormalizeUserID(user)
	if err != nil {
		return res, ErrInvalidUser
	}
	if points == 0 {
		return res, ErrZeroAdjustment
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return res, ErrEmptyReason
	}

	u, found, err := l.lookup(ctx, &res, userID)
	if err != nil || !found {
		return res, err
	}
	res.skip(StepEligibility, "manual adjustment")
	res.skip(StepResolveRule, "manual adjustment")

	var awardedBy *core.UserID
	if admin != "" {
		awardedBy = &admin
	}
	tx := core.PointTransaction{
		UserID:      u.ID,
		Points:      points,
		EventType:   EventManualAdjustment,
		Description: "Manual adjustment: " + reason,
		AwardedBy:   awardedBy,
	}
	if err := l.commit(ctx, &res, u, tx, adjustmentMessage(points, reason)); err != nil {
		return res, err
	}
	res.Message = "points adjusted"
	return res, nil
}

func adjustmentMessage(points int64, reason string) string {
	if points > 0 {
		return fmt.Sprintf("You received %d points: %s", points, reason)
	}
	return fmt.Sprintf("%d points were deducted: %s", -points, reason)
}

func (l *Ledger) lookup(ctx context.Context, res *AwardResult, id core.UserID) (core.User, bool, error) {
	u, err := l.store.GetUser(ctx, id)
	if errors.Is(err, core.ErrNotFound) {
		res.skip(StepLookupUser, "user not found")
		res.Message = "user not found"
		return core.User{}, false, nil
	}
	if err != nil {
		res.fail(StepLookupUser, err)
		return core.User{}, false, &PipelineError{Step: StepLookupUser, Err: err}
	}
	res.ok(StepLookupUser, "")
	return u, true, nil
}

// commit runs the recording steps shared by awards and adjustments. The level
// and notify steps are best-effort and never fail the call.
func (l *Ledger) commit(ctx context.Context, res *AwardResult, u core.User, tx core.PointTransaction, message string) error {
	tx.CreatedAt = l.now()
	if err := l.store.InsertTransaction(ctx, &tx); err != nil {
		res.fail(StepRecordTransaction, err)
		return &PipelineError{Step: StepRecordTransaction, Err: err}
	}
	res.TransactionID = tx.ID
	res.ok(StepRecordTransaction, tx.ID)

	total, err := l.store.IncrementPoints(ctx, u.ID, tx.Points)
	if err != nil {
		res.fail(StepUpdateTotal, err)
		l.log.ErrorContext(ctx, "points total update failed after transaction",
			"user_id", u.ID, "transaction_id", tx.ID, "error", err)
		return &PipelineError{Step: StepUpdateTotal, Partial: true, Err: err}
	}
	res.Points = tx.Points
	res.TotalPoints = total
	res.ok(StepUpdateTotal, "")

	if l.levels != nil {
		level, changed, err := l.levels.update(ctx, u, total)
		switch {
		case err != nil:
			res.fail(StepUpdateLevel, err)
			l.log.WarnContext(ctx, "level update failed", "user_id", u.ID, "step", StepUpdateLevel, "error", err)
		case changed:
			res.Level = &level
			res.ok(StepUpdateLevel, level.Name)
		default:
			res.skip(StepUpdateLevel, "unchanged")
		}
	} else {
		res.skip(StepUpdateLevel, "disabled")
	}

	if l.notifier != nil {
		if _, err := l.notifier.SendPoints(ctx, u.ID, tx.Points, message); err != nil {
			res.fail(StepNotify, err)
			l.log.WarnContext(ctx, "points notification failed", "user_id", u.ID, "step", StepNotify, "error", err)
		} else {
			res.ok(StepNotify, "")
		}
	} else {
		res.skip(StepNotify, "disabled")
	}

	if l.bus != nil {
		l.bus.Publish(ctx, core.NewPointsAwarded(u.ID, tx.EventType, tx.Points, total))
	}
	l.log.DebugContext(ctx, "points recorded", "user_id", u.ID, "event_type", tx.EventType, "points", tx.Points, "total", total)
	return nil
}

// UserPointHistory returns the user's newest transactions.
func (l *Ledger) UserPointHistory(ctx context.Context, user core.UserID, limit int) ([]core.PointTransaction, error) {
	id, err := core.NormalizeUserID(user)
	if err != nil {
		return nil, ErrInvalidUser
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return l.store.ListTransactions(ctx, id, limit)
}
