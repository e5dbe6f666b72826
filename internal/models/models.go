package models

import (
	"time"
)

// NotificationType enumerates the events an account can be notified about.
type NotificationType string

const (
	NotificationLiked    NotificationType = "liked"
	NotificationReplied  NotificationType = "replied"
	NotificationFollowed NotificationType = "followed"
)

// BlockStatus values. Only "blocked" is consulted for visibility today;
// the column exists so softer states (muted etc.) can be added without
// a migration.
const (
	BlockStatusBlocked = "blocked"
)

// Account is a platform user. NotificationCount is the running unread
// counter, incremented with notification creation and zeroed on dismiss.
type Account struct {
	ID                uint      `gorm:"primarykey" json:"id"`
	Username          string    `gorm:"uniqueIndex;not null" json:"username"`
	NotificationCount int       `gorm:"not null;default:0" json:"notificationCount"`
	PendingDeletion   bool      `gorm:"not null;default:false;index" json:"-"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"-"`
}

// Post is the unit of content. IDs are auto-incremented and therefore
// time-sortable, which is what cursor pagination relies on. A soft-deleted
// post keeps its ID and parent link but loses content and likes.
type Post struct {
	ID          uint         `gorm:"primarykey" json:"id"`
	AuthorID    uint         `gorm:"not null;index" json:"authorId"`
	Content     *string      `json:"content"`
	CommentToID *uint        `gorm:"index" json:"commentTo,omitempty"`
	Deleted     bool         `gorm:"not null;default:false" json:"deleted"`
	LikedBy     int          `gorm:"not null;default:0" json:"likedBy"`
	Views       int64        `gorm:"not null;default:0" json:"views"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
	Poll        *Poll        `gorm:"foreignKey:PostID" json:"-"`
	Attachments []Attachment `gorm:"foreignKey:PostID" json:"-"`
}

// Poll belongs to exactly one post.
type Poll struct {
	ID      uint         `gorm:"primarykey" json:"id"`
	PostID  uint         `gorm:"uniqueIndex;not null" json:"postId"`
	Choices []PollChoice `gorm:"foreignKey:PollID" json:"choices"`
}

// PollChoice keeps creation order via its ID. Vote counts are derived by
// counting PollVote rows, never stored here.
type PollChoice struct {
	ID     uint   `gorm:"primarykey" json:"id"`
	PollID uint   `gorm:"not null;index" json:"pollId"`
	Label  string `gorm:"not null" json:"label"`
}

// PollVote records one vote. The (poll, voter) unique index is the final
// arbiter for the one-vote-per-poll rule.
type PollVote struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	PollID    uint      `gorm:"not null;uniqueIndex:idx_poll_votes_voter" json:"pollId"`
	VoterID   uint      `gorm:"not null;uniqueIndex:idx_poll_votes_voter" json:"voterId"`
	ChoiceID  uint      `gorm:"not null;index" json:"choiceId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Like is a (user, post) pair, unique per pair. Its creation/removal is
// always paired with an eager update of Post.LikedBy.
type Like struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	PostID    uint      `gorm:"not null;uniqueIndex:idx_likes_post_user" json:"postId"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_likes_post_user" json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Block is a directed blocker -> blocked edge.
type Block struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	BlockerID uint      `gorm:"not null;uniqueIndex:idx_blocks_pair" json:"blockerId"`
	BlockedID uint      `gorm:"not null;uniqueIndex:idx_blocks_pair;index" json:"blockedId"`
	Status    string    `gorm:"not null;default:blocked" json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// Follow is a directed follower -> followee edge feeding the home timeline.
type Follow struct {
	ID         uint      `gorm:"primarykey" json:"id"`
	FollowerID uint      `gorm:"not null;uniqueIndex:idx_follows_pair" json:"followerId"`
	FolloweeID uint      `gorm:"not null;uniqueIndex:idx_follows_pair" json:"followeeId"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Notification is unique on (actor, recipient, type, subject); duplicate
// actions collapse to the existing row and leave the unread counter alone.
type Notification struct {
	ID            uint             `gorm:"primarykey" json:"id"`
	ActorID       uint             `gorm:"not null;uniqueIndex:idx_notifications_tuple" json:"actorId"`
	RecipientID   uint             `gorm:"not null;uniqueIndex:idx_notifications_tuple;index" json:"recipientId"`
	Type          NotificationType `gorm:"not null;uniqueIndex:idx_notifications_tuple" json:"type"`
	SubjectPostID *uint            `gorm:"uniqueIndex:idx_notifications_tuple" json:"subjectPostId,omitempty"`
	CreatedAt     time.Time        `json:"createdAt"`
}

// Attachment references media stored elsewhere; only the linkage lives here.
type Attachment struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	PostID    uint      `gorm:"not null;index" json:"postId"`
	URL       string    `gorm:"not null" json:"url"`
	MimeType  string    `json:"mimeType"`
	CreatedAt time.Time `json:"createdAt"`
}

// Announcement marks a post as a site-wide announcement.
type Announcement struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	PostID    uint      `gorm:"uniqueIndex;not null" json:"postId"`
	CreatedAt time.Time `json:"createdAt"`
}

// All returns every model for AutoMigrate.
func All() []any {
	return []any{
		&Account{}, &Post{}, &Poll{}, &PollChoice{}, &PollVote{},
		&Like{}, &Block{}, &Follow{}, &Notification{},
		&Attachment{}, &Announcement{},
	}
}
