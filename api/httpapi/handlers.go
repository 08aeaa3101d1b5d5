package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"civicrank/analytics"
	"civicrank/core"
	"civicrank/engine"
	"civicrank/leaderboard"
)

type awardBody struct {
	UserID         core.UserID     `json:"user_id"`
	EventType      string          `json:"event_type"`
	EventCondition *string         `json:"event_condition"`
	Related        core.RelatedIDs `json:"related"`
	AwardedBy      *core.UserID    `json:"awarded_by"`
	Description    string          `json:"description"`
}

func (s *server) award(c *gin.Context) {
	var body awardBody
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_body", err.Error(), nil)
		return
	}
	res, err := s.svc.AwardPoints(c.Request.Context(), engine.AwardRequest{
		UserID:         body.UserID,
		EventType:      body.EventType,
		EventCondition: body.EventCondition,
		Related:        body.Related,
		AwardedBy:      body.AwardedBy,
		Description:    body.Description,
	})
	if err != nil {
		s.writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type adjustBody struct {
	AdminID  core.UserID `json:"admin_id"`
	Username string      `json:"username"`
	Points   int64       `json:"points"`
	Reason   string      `json:"reason"`
}

// adjust applies an admin correction addressed by username.
func (s *server) adjust(c *gin.Context) {
	var body adjustBody
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_body", err.Error(), nil)
		return
	}
	if strings.TrimSpace(body.Username) == "" {
		writeError(c, http.StatusBadRequest, "invalid_input", "username is required", nil)
		return
	}
	ctx := c.Request.Context()
	u, err := s.svc.FindUserByUsername(ctx, strings.TrimSpace(body.Username))
	if errors.Is(err, core.ErrNotFound) {
		writeError(c, http.StatusNotFound, "user_not_found", "user not found", gin.H{"username": body.Username})
		return
	}
	if err != nil {
		s.writeEngineError(c, err)
		return
	}
	res, err := s.svc.ManualAdjustment(ctx, body.AdminID, u.ID, body.Points, body.Reason)
	if err != nil {
		s.writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": res, "user": u})
}

func (s *server) history(c *gin.Context) {
	user, ok := userParam(c)
	if !ok {
		return
	}
	limit, ok := intQuery(c, "limit", engine.DefaultHistoryLimit)
	if !ok {
		return
	}
	txs, err := s.svc.UserPointHistory(c.Request.Context(), user, limit)
	if err != nil {
		s.writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txs})
}

func (s *server) userProgress(c *gin.Context) {
	user, ok := userParam(c)
	if !ok {
		return
	}
	u, p, err := s.svc.UserProgress(c.Request.Context(), user)
	if err != nil {
		s.writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u, "progress": p})
}

func (s *server) levels(c *gin.Context) {
	levels, err := s.svc.Levels(c.Request.Context())
	if err != nil {
		s.writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"levels": levels})
}

func (s *server) ensureLevels(c *gin.Context) {
	levels, err := s.svc.EnsureDefaultLevels(c.Request.Context())
	if err != nil {
		s.writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"levels": levels})
}

func (s *server) progress(c *gin.Context) {
	points, err := strconv.ParseInt(c.Query("points"), 10, 64)
	if err != nil {
		writeError(c, http.StatusBadRequest, "invalid_points", "points must be an integer", nil)
		return
	}
	p, err := s.svc.Progress(c.Request.Context(), points)
	if err != nil {
		s.writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *server) listRules(c *gin.Context) {
	rules, err := s.svc.ListRules(c.Request.Context())
	if err != nil {
		s.writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rules": rules})
}

// saveRule serves both create (POST) and replace (PUT /rules/:id).
func (s *server) saveRule(c *gin.Context) {
	var rule core.PointRule
	if err := c.ShouldBindJSON(&rule); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_body", err.Error(), nil)
		return
	}
	status := http.StatusCreated
	if id := c.Param("id"); id != "" {
		rule.ID = id
		status = http.StatusOK
	}
	saved, err := s.svc.SaveRule(c.Request.Context(), rule)
	if err != nil {
		s.writeEngineError(c, err)
		return
	}
	c.JSON(status, saved)
}

func (s *server) deleteRule(c *gin.Context) {
	if err := s.svc.DeleteRule(c.Request.Context(), c.Param("id")); err != nil {
		s.writeEngineError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *server) trending(c *gin.Context) {
	limit, ok := intQuery(c, "limit", engine.DefaultTrendingLimit)
	if !ok {
		return
	}
	res, err := s.svc.Trending(c.Request.Context(), limit)
	if err != nil {
		s.writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *server) leaderboard(c *gin.Context) {
	limit, ok := intQuery(c, "limit", engine.DefaultTopUsers)
	if !ok {
		return
	}
	offset, ok := boundedQuery(c, "offset", 0, 0)
	if !ok {
		return
	}
	if b := s.deps.Leaderboard; b != nil {
		entries := b.Range(offset, limit)
		if entries == nil {
			entries = []leaderboard.Entry{}
		}
		c.JSON(http.StatusOK, gin.H{"entries": entries, "total": b.Len()})
		return
	}
	users, err := s.svc.TopUsers(c.Request.Context(), offset+limit)
	if err != nil {
		s.writeEngineError(c, err)
		return
	}
	entries := []leaderboard.Entry{}
	for i := offset; i < len(users); i++ {
		entries = append(entries, leaderboard.Entry{User: users[i].ID, Points: users[i].CurrentPoints, Rank: i + 1})
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries, "total": len(users)})
}

type statsResponse struct {
	engine.PointStatistics
	ActiveEarnersToday *int             `json:"active_earners_today,omitempty"`
	Activity           *analytics.Stats `json:"activity,omitempty"`
}

func (s *server) stats(c *gin.Context) {
	top, ok := intQuery(c, "top", engine.DefaultTopUsers)
	if !ok {
		return
	}
	stats, err := s.svc.PointStatistics(c.Request.Context(), top)
	if err != nil {
		s.writeEngineError(c, err)
		return
	}
	out := statsResponse{PointStatistics: stats}
	if s.deps.DAU != nil {
		n := s.deps.DAU.CountAt(time.Now())
		out.ActiveEarnersToday = &n
	}
	if s.deps.Stats != nil {
		snap := s.deps.Stats.Snapshot()
		out.Activity = &snap
	}
	c.JSON(http.StatusOK, out)
}

func (s *server) inbox(c *gin.Context) {
	user, ok := userParam(c)
	if !ok {
		return
	}
	limit, ok := intQuery(c, "limit", engine.DefaultInboxLimit)
	if !ok {
		return
	}
	notes, unread, err := s.svc.Notifier().Inbox(c.Request.Context(), user, limit)
	if err != nil {
		s.writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": notes, "unread_count": unread})
}

func (s *server) unread(c *gin.Context) {
	user, ok := userParam(c)
	if !ok {
		return
	}
	n, err := s.svc.Notifier().UnreadCount(c.Request.Context(), user)
	if err != nil {
		s.writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread_count": n})
}

func (s *server) markRead(c *gin.Context) {
	user, ok := userParam(c)
	if !ok {
		return
	}
	if err := s.svc.Notifier().MarkRead(c.Request.Context(), user, c.Param("nid")); err != nil {
		s.writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *server) markAllRead(c *gin.Context) {
	user, ok := userParam(c)
	if !ok {
		return
	}
	n, err := s.svc.Notifier().MarkAllRead(c.Request.Context(), user)
	if err != nil {
		s.writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": n})
}

type systemBody struct {
	Title   string        `json:"title"`
	Message string        `json:"message"`
	ForumID *core.ForumID `json:"forum_id"`
}

func (s *server) system(c *gin.Context) {
	user, ok := userParam(c)
	if !ok {
		return
	}
	var body systemBody
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_body", err.Error(), nil)
		return
	}
	if strings.TrimSpace(body.Title) == "" || strings.TrimSpace(body.Message) == "" {
		writeError(c, http.StatusBadRequest, "invalid_input", "title and message are required", nil)
		return
	}
	note, err := s.svc.Notifier().SendSystem(c.Request.Context(), user, body.Title, body.Message, body.ForumID)
	if err != nil {
		s.writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusCreated, note)
}

// displayName resolves the actor's name when the caller did not send one.
func (s *server) displayName(ctx context.Context, id core.UserID, given string) string {
	if name := strings.TrimSpace(given); name != "" {
		return name
	}
	u, err := s.svc.GetUser(ctx, id)
	if err != nil {
		return core.User{}.DisplayName()
	}
	return u.DisplayName()
}

type likeBody struct {
	UserID core.UserID `json:"user_id"`
	Name   string      `json:"name"`
}

func (s *server) like(c *gin.Context) {
	var body likeBody
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_body", err.Error(), nil)
		return
	}
	liker, err := core.NormalizeUserID(body.UserID)
	if err != nil {
		writeError(c, http.StatusBadRequest, "invalid_user", err.Error(), nil)
		return
	}
	ctx := c.Request.Context()
	note, sent, err := s.svc.Notifier().SendLike(ctx, core.ForumID(c.Param("id")), liker, s.displayName(ctx, liker, body.Name))
	if err != nil {
		s.writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sent": sent, "notification": note})
}

type commentBody struct {
	AuthorID       core.UserID `json:"author_id"`
	ParentAuthorID core.UserID `json:"parent_author_id"`
	Content        string      `json:"content"`
}

func (s *server) comment(c *gin.Context) {
	var body commentBody
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_body", err.Error(), nil)
		return
	}
	author, err := core.NormalizeUserID(body.AuthorID)
	if err != nil {
		writeError(c, http.StatusBadRequest, "invalid_user", err.Error(), nil)
		return
	}
	notes, err := s.svc.Notifier().NotifyComment(c.Request.Context(), engine.CommentNotice{
		ForumID:        core.ForumID(c.Param("id")),
		AuthorID:       author,
		ParentAuthorID: body.ParentAuthorID,
		Content:        body.Content,
	})
	if err != nil {
		s.writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": notes})
}

type statusBody struct {
	Status    engine.ReportStatus `json:"status"`
	AdminName string              `json:"admin_name"`
}

func (s *server) status(c *gin.Context) {
	var body statusBody
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_body", err.Error(), nil)
		return
	}
	if strings.TrimSpace(string(body.Status)) == "" {
		writeError(c, http.StatusBadRequest, "invalid_input", "status is required", nil)
		return
	}
	note, sent, err := s.svc.Notifier().SendStatusChange(c.Request.Context(), core.ForumID(c.Param("id")), body.Status, body.AdminName)
	if err != nil {
		s.writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sent": sent, "notification": note})
}
