// Package events publishes domain events over NATS for downstream
// consumers (search indexers, push relays). Publishing is strictly
// fire-and-forget: a nil publisher or a broken connection never affects
// the operation that produced the event.
package events

import (
	"encoding/json"
	"log"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	SubjectPostCreated         = "post.created"
	SubjectPostLiked           = "post.liked"
	SubjectNotificationCreated = "notification.created"
)

type PostCreatedEvent struct {
	PostID    uint   `json:"post_id"`
	AuthorID  uint   `json:"author_id"`
	CommentTo *uint  `json:"comment_to,omitempty"`
	Timestamp string `json:"timestamp"`
}

type PostLikedEvent struct {
	PostID    uint   `json:"post_id"`
	UserID    uint   `json:"user_id"`
	Timestamp string `json:"timestamp"`
}

type NotificationCreatedEvent struct {
	RecipientID uint   `json:"recipient_id"`
	Type        string `json:"type"`
	Timestamp   string `json:"timestamp"`
}

type Publisher struct {
	nc *nats.Conn
}

// Connect dials NATS and returns a publisher. Callers treat a nil
// *Publisher as "events disabled".
func Connect(url string) (*Publisher, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, err
	}
	log.Println("NATS connected successfully")
	return &Publisher{nc: nc}, nil
}

func (p *Publisher) Close() {
	if p != nil && p.nc != nil {
		p.nc.Close()
	}
}

func (p *Publisher) PostCreated(postID, authorID uint, commentTo *uint) {
	p.publish(SubjectPostCreated, PostCreatedEvent{
		PostID:    postID,
		AuthorID:  authorID,
		CommentTo: commentTo,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (p *Publisher) PostLiked(postID, userID uint) {
	p.publish(SubjectPostLiked, PostLikedEvent{
		PostID:    postID,
		UserID:    userID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (p *Publisher) NotificationCreated(recipientID uint, typ string) {
	p.publish(SubjectNotificationCreated, NotificationCreatedEvent{
		RecipientID: recipientID,
		Type:        typ,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	})
}

func (p *Publisher) publish(subject string, event any) {
	if p == nil || p.nc == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("events: marshal %s: %v", subject, err)
		return
	}
	if err := p.nc.Publish(subject, data); err != nil {
		log.Printf("events: publish %s: %v", subject, err)
	}
}
