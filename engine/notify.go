package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"time"

	"civicrank/core"
)

const (
	DefaultLikeWindow = time.Hour
	DefaultRetention  = 30 * 24 * time.Hour
	DefaultInboxLimit = 50

	mentionExcerptRunes = 50
)

// notifyStore is the subset of Storage the notifier touches.
type notifyStore interface {
	NotificationStore
	ForumStore
	UserStore
}

// Notifier creates notifications and folds repeated likes into one row.
type Notifier struct {
	store      notifyStore
	bus        *EventBus
	log        *slog.Logger
	now        func() time.Time
	likeWindow time.Duration
	retention  time.Duration
}

func NewNotifier(store notifyStore, bus *EventBus, log *slog.Logger, now func() time.Time, likeWindow, retention time.Duration) *Notifier {
	if log == nil {
		log = slog.Default()
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	if likeWindow <= 0 {
		likeWindow = DefaultLikeWindow
	}
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Notifier{store: store, bus: bus, log: log, now: now, likeWindow: likeWindow, retention: retention}
}

// Create stores a fresh unread notification.
func (n *Notifier) Create(ctx context.Context, note core.Notification) (core.Notification, error) {
	note.IsRead = false
	note.ReadAt = nil
	note.CreatedAt = n.now()
	if note.AggregateCount < 1 {
		note.AggregateCount = 1
	}
	if err := n.store.InsertNotification(ctx, &note); err != nil {
		return core.Notification{}, fmt.Errorf("insert notification: %w", err)
	}
	n.publish(ctx, note)
	return note, nil
}

func (n *Notifier) publish(ctx context.Context, note core.Notification) {
	if n.bus != nil {
		n.bus.Publish(ctx, core.NewNotificationEvent(note))
	}
}

// forumOwner returns the owner of forum, or ok=false when the forum is gone.
func (n *Notifier) forumOwner(ctx context.Context, forum core.ForumID) (core.UserID, bool, error) {
	f, err := n.store.GetForum(ctx, forum)
	if errors.Is(err, core.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get forum: %w", err)
	}
	return f.UserID, true, nil
}

// SendLike tells the post owner about a like. Likes on the same post within the
// coalescing window are merged into the existing notification.
func (n *Notifier) SendLike(ctx context.Context, forum core.ForumID, liker core.UserID, likerName string) (core.Notification, bool, error) {
	owner, ok, err := n.forumOwner(ctx, forum)
	if err != nil || !ok || owner == liker {
		return core.Notification{}, false, err
	}

	existing, err := n.store.FindRecentLike(ctx, owner, forum, n.now().Add(-n.likeWindow))
	switch {
	case err == nil:
		prior := existing.AggregateCount
		if prior < 1 {
			prior = legacyLikeCount(existing.Message)
		}
		count := prior + 1
		existing.AggregateCount = count
		existing.Title = likerName + " dan lainnya"
		existing.Message = likeMessage(likerName, count)
		existing.IsRead = false
		existing.ReadAt = nil
		existing.CreatedAt = n.now()
		if err := n.store.UpdateNotification(ctx, existing); err != nil {
			return core.Notification{}, false, fmt.Errorf("update notification: %w", err)
		}
		n.publish(ctx, existing)
		return existing, true, nil
	case errors.Is(err, core.ErrNotFound):
		note, err := n.Create(ctx, core.Notification{
			UserID:  owner,
			ForumID: &forum,
			Title:   likerName,
			Message: likeMessage(likerName, 1),
			Type:    core.NotifyLike,
		})
		return note, err == nil, err
	default:
		return core.Notification{}, false, fmt.Errorf("find recent like: %w", err)
	}
}

func likeMessage(name string, count int) string {
	if count <= 1 {
		return name + " menyukai laporan Anda"
	}
	return fmt.Sprintf("%s dan %d lainnya menyukai laporan Anda", name, count-1)
}

var legacyLikePattern = regexp.MustCompile(`(\d+) lainnya`)

// legacyLikeCount recovers the actor count from rows written before
// aggregate_count existed. Unparseable messages count as a single actor.
func legacyLikeCount(message string) int {
	m := legacyLikePattern.FindStringSubmatch(message)
	if m == nil {
		return 1
	}
	others, err := strconv.Atoi(m[1])
	if err != nil || others < 0 {
		return 1
	}
	return others + 1
}

// SendComment tells the post owner about a new root comment.
func (n *Notifier) SendComment(ctx context.Context, forum core.ForumID, commenter core.UserID, commenterName string) (core.Notification, bool, error) {
	owner, ok, err := n.forumOwner(ctx, forum)
	if err != nil || !ok || owner == commenter {
		return core.Notification{}, false, err
	}
	note, err := n.Create(ctx, core.Notification{
		UserID:  owner,
		ForumID: &forum,
		Title:   commenterName,
		Message: commenterName + " mengomentari laporan Anda",
		Type:    core.NotifyForumComment,
	})
	return note, err == nil, err
}

// SendReply tells a comment's author about a reply to it.
func (n *Notifier) SendReply(ctx context.Context, forum core.ForumID, parentAuthor, replier core.UserID, replierName string) (core.Notification, bool, error) {
	if parentAuthor == "" || parentAuthor == replier {
		return core.Notification{}, false, nil
	}
	note, err := n.Create(ctx, core.Notification{
		UserID:  parentAuthor,
		ForumID: &forum,
		Title:   replierName,
		Message: replierName + " membalas komentar Anda",
		Type:    core.NotifyForumComment,
	})
	return note, err == nil, err
}

// SendMentions notifies every distinct user mentioned in content, except the author.
func (n *Notifier) SendMentions(ctx context.Context, forum core.ForumID, author core.UserID, authorHandle, content string) ([]core.Notification, error) {
	handles := core.ParseMentions(content)
	if len(handles) == 0 {
		return nil, nil
	}
	excerpt := truncateRunes(content, mentionExcerptRunes)
	seen := make(map[core.UserID]struct{}, len(handles))
	var out []core.Notification
	for _, h := range handles {
		u, ok, err := n.resolveHandle(ctx, h)
		if err != nil {
			return out, err
		}
		if !ok || u.ID == author {
			continue
		}
		if _, dup := seen[u.ID]; dup {
			continue
		}
		seen[u.ID] = struct{}{}
		note, err := n.Create(ctx, core.Notification{
			UserID:  u.ID,
			ForumID: &forum,
			Title:   "@" + authorHandle,
			Message: fmt.Sprintf("@%s menyebut Anda dalam komentar: \"%s...\"", authorHandle, excerpt),
			Type:    core.NotifyMention,
		})
		if err != nil {
			return out, err
		}
		out = append(out, note)
	}
	return out, nil
}

// resolveHandle finds a user by exact username, then by full-name substring.
func (n *Notifier) resolveHandle(ctx context.Context, handle string) (core.User, bool, error) {
	u, err := n.store.FindUserByUsername(ctx, handle)
	if err == nil {
		return u, true, nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return core.User{}, false, fmt.Errorf("find user %q: %w", handle, err)
	}
	u, err = n.store.FindUserByFullName(ctx, handle)
	if errors.Is(err, core.ErrNotFound) {
		return core.User{}, false, nil
	}
	if err != nil {
		return core.User{}, false, fmt.Errorf("find user %q: %w", handle, err)
	}
	return u, true, nil
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// CommentNotice describes a freshly created comment.
type CommentNotice struct {
	ForumID        core.ForumID
	AuthorID       core.UserID
	ParentAuthorID core.UserID
	Content        string
}

// NotifyComment sends the reply or root-comment notification and any mention
// notifications for a new comment.
func (n *Notifier) NotifyComment(ctx context.Context, c CommentNotice) ([]core.Notification, error) {
	author, err := n.store.GetUser(ctx, c.AuthorID)
	if err != nil {
		return nil, fmt.Errorf("get author: %w", err)
	}
	handle := author.Handle()

	var out []core.Notification
	var (
		note core.Notification
		sent bool
	)
	if c.ParentAuthorID != "" {
		note, sent, err = n.SendReply(ctx, c.ForumID, c.ParentAuthorID, author.ID, handle)
	} else {
		note, sent, err = n.SendComment(ctx, c.ForumID, author.ID, handle)
	}
	if err != nil {
		return nil, err
	}
	if sent {
		out = append(out, note)
	}
	mentions, err := n.SendMentions(ctx, c.ForumID, author.ID, handle, c.Content)
	return append(out, mentions...), err
}

// ReportStatus is the lifecycle state of a filed report.
type ReportStatus string

const (
	StatusInProgress ReportStatus = "in_progress"
	StatusResolved   ReportStatus = "resolved"
	StatusClosed     ReportStatus = "closed"
	StatusRejected   ReportStatus = "rejected"
)

func statusCopy(status ReportStatus, adminName string) (title, message string) {
	switch status {
	case StatusInProgress:
		return "Sistem GatotKota", "Laporan Anda telah diverifikasi oleh admin dan sedang dalam proses penanganan."
	case StatusResolved:
		return "Sistem GatotKota", "Laporan Anda telah selesai ditangani."
	case StatusClosed:
		return "Dinas Pekerjaan Umum", "Laporan Anda berhasil menjadi \"Selesai\"."
	case StatusRejected:
		return "Sistem GatotKota", "Laporan Anda telah ditinjau dan tidak memenuhi kriteria untuk ditindaklanjuti."
	default:
		if adminName == "" {
			adminName = "Admin"
		}
		return adminName, fmt.Sprintf("Status laporan Anda telah diperbarui menjadi \"%s\".", status)
	}
}

// SendStatusChange tells the post owner that staff changed the report status.
func (n *Notifier) SendStatusChange(ctx context.Context, forum core.ForumID, status ReportStatus, adminName string) (core.Notification, bool, error) {
	owner, ok, err := n.forumOwner(ctx, forum)
	if err != nil || !ok {
		return core.Notification{}, false, err
	}
	title, message := statusCopy(status, adminName)
	note, err := n.Create(ctx, core.Notification{
		UserID:  owner,
		ForumID: &forum,
		Title:   title,
		Message: message,
		Type:    core.NotifyStatusChange,
	})
	return note, err == nil, err
}

func (n *Notifier) SendSystem(ctx context.Context, user core.UserID, title, message string, forum *core.ForumID) (core.Notification, error) {
	return n.Create(ctx, core.Notification{UserID: user, ForumID: forum, Title: title, Message: message, Type: core.NotifySystem})
}

func (n *Notifier) SendLevelUp(ctx context.Context, user core.UserID, level core.Level) (core.Notification, error) {
	return n.Create(ctx, core.Notification{
		UserID:  user,
		Title:   "Naik level: " + level.Name,
		Message: fmt.Sprintf("Selamat! Anda mencapai %s (%d poin).", level.Name, level.Points),
		Type:    core.NotifyLevelUp,
	})
}

// SendPoints reports a points change; the title carries sign and magnitude.
func (n *Notifier) SendPoints(ctx context.Context, user core.UserID, points int64, message string) (core.Notification, error) {
	return n.Create(ctx, core.Notification{
		UserID:  user,
		Title:   pointsTitle(points),
		Message: message,
		Type:    core.NotifyPoints,
	})
}

func pointsTitle(points int64) string {
	if points > 0 {
		return fmt.Sprintf("You earned %d points! 🎉", points)
	}
	return fmt.Sprintf("Points deducted: %d 📉", -points)
}

// Inbox lists a user's newest notifications with the unread total.
func (n *Notifier) Inbox(ctx context.Context, user core.UserID, limit int) ([]core.Notification, int64, error) {
	if limit <= 0 {
		limit = DefaultInboxLimit
	}
	notes, err := n.store.ListNotifications(ctx, user, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}
	unread, err := n.store.CountUnread(ctx, user)
	if err != nil {
		return nil, 0, fmt.Errorf("count unread: %w", err)
	}
	return notes, unread, nil
}

// MarkRead marks one of the user's notifications read.
func (n *Notifier) MarkRead(ctx context.Context, user core.UserID, id string) error {
	return n.store.MarkRead(ctx, user, id, n.now())
}

func (n *Notifier) MarkAllRead(ctx context.Context, user core.UserID) (int64, error) {
	return n.store.MarkAllRead(ctx, user, n.now())
}

func (n *Notifier) UnreadCount(ctx context.Context, user core.UserID) (int64, error) {
	return n.store.CountUnread(ctx, user)
}

// CleanupOldNotifications deletes notifications older than the retention horizon.
func (n *Notifier) CleanupOldNotifications(ctx context.Context) (int64, error) {
	cutoff := n.now().Add(-n.retention)
	deleted, err := n.store.DeleteNotificationsBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete notifications: %w", err)
	}
	n.log.InfoContext(ctx, "old notifications cleaned up", "deleted", deleted, "cutoff", cutoff)
	return deleted, nil
}
