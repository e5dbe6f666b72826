package feed

import (
	"errors"
	"time"

	"github.com/suryabasnet/murmur/internal/models"
	"gorm.io/gorm"
)

// maxChainDepth caps the parent-chain walk. The chain is linear by
// construction (IDs are never reused, so a post cannot become its own
// ancestor); the cap only guards against corrupted data.
const maxChainDepth = 512

// PostView is an assembled post as returned to viewers. A Blocked view is
// a placeholder: only ID, CommentToID and AuthorID survive redaction.
type PostView struct {
	ID          uint                `json:"id"`
	AuthorID    uint                `json:"authorId"`
	Author      string              `json:"author,omitempty"`
	Content     *string             `json:"content"`
	CommentToID *uint               `json:"commentTo,omitempty"`
	Deleted     bool                `json:"deleted,omitempty"`
	Blocked     bool                `json:"blocked,omitempty"`
	LikedBy     int                 `json:"likedBy"`
	Views       int64               `json:"views"`
	Liked       bool                `json:"liked,omitempty"`
	CreatedAt   time.Time           `json:"createdAt"`
	EditedAt    time.Time           `json:"editedAt"`
	Poll        *PollView           `json:"poll,omitempty"`
	Attachments []models.Attachment `json:"attachments,omitempty"`
	Parent      *PostView           `json:"parent,omitempty"`
}

// PollView carries derived choice counts and the requester's own vote.
type PollView struct {
	ID            uint         `json:"id"`
	Choices       []ChoiceView `json:"choices"`
	VotedChoiceID *uint        `json:"votedChoiceId,omitempty"`
}

type ChoiceView struct {
	ID    uint   `json:"id"`
	Label string `json:"label"`
	Votes int64  `json:"votes"`
}

// FetchPost returns a single post with its full parent chain assembled.
// Blocked nodes (the post itself or any ancestor) are redacted to
// placeholders; the chain shape is preserved so the client can still render
// the thread. The post and every walked ancestor are queued for view
// counting.
func (s *Service) FetchPost(viewer uint, postID uint, fingerprint string) (*PostView, error) {
	post, err := s.loadPost(postID)
	if err != nil {
		return nil, err
	}

	view, err := s.assembleOne(viewer, post)
	if err != nil {
		return nil, err
	}

	// Walk the commentTo chain. Each node is redacted or assembled
	// independently, so a thread can mix blocked and visible ancestors.
	viewed := []uint{post.ID}
	cur := view
	depth := 0
	for cur.CommentToID != nil {
		depth++
		if depth > maxChainDepth {
			return nil, errTransient("comment chain too deep", nil)
		}
		parent, err := s.loadPost(*cur.CommentToID)
		if err != nil {
			if KindOf(err) == KindNotFound {
				break // dangling parent link, stop the walk
			}
			return nil, err
		}
		pv, err := s.assembleOne(viewer, parent)
		if err != nil {
			return nil, err
		}
		viewed = append(viewed, parent.ID)
		cur.Parent = pv
		cur = pv
	}

	s.recordViews(fingerprint, viewed...)
	return view, nil
}

func (s *Service) loadPost(id uint) (*models.Post, error) {
	var post models.Post
	if err := s.DB.First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errNotFound("post %d not found", id)
		}
		return nil, errTransient("failed to load post", err)
	}
	return &post, nil
}

// assembleOne builds a single view, applying redaction when the viewer and
// author block each other.
func (s *Service) assembleOne(viewer uint, post *models.Post) (*PostView, error) {
	blocked, err := s.IsBlocked(viewer, post.AuthorID)
	if err != nil {
		return nil, err
	}
	if blocked {
		return redact(post), nil
	}
	views, err := s.assemblePage(viewer, []models.Post{*post})
	if err != nil {
		return nil, err
	}
	return views[0], nil
}

// redact strips a post down to the minimal placeholder that still holds
// the thread together.
func redact(post *models.Post) *PostView {
	return &PostView{
		ID:          post.ID,
		AuthorID:    post.AuthorID,
		CommentToID: post.CommentToID,
		Blocked:     true,
	}
}

// assemblePage turns a page of post rows into views, batching the lookups
// for likes, polls, vote counts, attachments and author names so the cost
// stays a handful of queries per page.
func (s *Service) assemblePage(viewer uint, posts []models.Post) ([]*PostView, error) {
	if len(posts) == 0 {
		return []*PostView{}, nil
	}

	postIDs := make([]uint, len(posts))
	authorIDs := make([]uint, 0, len(posts))
	seenAuthor := make(map[uint]bool)
	for i, p := range posts {
		postIDs[i] = p.ID
		if !seenAuthor[p.AuthorID] {
			seenAuthor[p.AuthorID] = true
			authorIDs = append(authorIDs, p.AuthorID)
		}
	}

	authors := make(map[uint]string)
	var accounts []models.Account
	if err := s.DB.Where("id IN ?", authorIDs).Find(&accounts).Error; err != nil {
		return nil, errTransient("failed to load authors", err)
	}
	for _, a := range accounts {
		authors[a.ID] = a.Username
	}

	likedSet := make(map[uint]bool)
	if viewer != 0 {
		var likes []models.Like
		if err := s.DB.Where("user_id = ? AND post_id IN ?", viewer, postIDs).Find(&likes).Error; err != nil {
			return nil, errTransient("failed to load likes", err)
		}
		for _, l := range likes {
			likedSet[l.PostID] = true
		}
	}

	polls, err := s.pollViews(viewer, postIDs)
	if err != nil {
		return nil, err
	}

	var attachments []models.Attachment
	if err := s.DB.Where("post_id IN ?", postIDs).Order("id").Find(&attachments).Error; err != nil {
		return nil, errTransient("failed to load attachments", err)
	}
	attachmentsByPost := make(map[uint][]models.Attachment)
	for _, a := range attachments {
		attachmentsByPost[a.PostID] = append(attachmentsByPost[a.PostID], a)
	}

	views := make([]*PostView, len(posts))
	for i, p := range posts {
		views[i] = &PostView{
			ID:          p.ID,
			AuthorID:    p.AuthorID,
			Author:      authors[p.AuthorID],
			Content:     p.Content,
			CommentToID: p.CommentToID,
			Deleted:     p.Deleted,
			LikedBy:     p.LikedBy,
			Views:       p.Views,
			Liked:       likedSet[p.ID],
			CreatedAt:   p.CreatedAt,
			EditedAt:    p.UpdatedAt,
			Poll:        polls[p.ID],
			Attachments: attachmentsByPost[p.ID],
		}
	}
	return views, nil
}

// pollViews loads the polls attached to the given posts, derives choice
// counts by counting vote rows, and marks the viewer's own vote.
func (s *Service) pollViews(viewer uint, postIDs []uint) (map[uint]*PollView, error) {
	out := make(map[uint]*PollView)

	var polls []models.Poll
	// Stable choice order = creation order = ID order.
	preload := func(db *gorm.DB) *gorm.DB { return db.Order("id") }
	if err := s.DB.Preload("Choices", preload).Where("post_id IN ?", postIDs).Find(&polls).Error; err != nil {
		return nil, errTransient("failed to load polls", err)
	}
	if len(polls) == 0 {
		return out, nil
	}

	pollIDs := make([]uint, len(polls))
	for i, p := range polls {
		pollIDs[i] = p.ID
	}

	type choiceCount struct {
		ChoiceID uint
		N        int64
	}
	var counts []choiceCount
	err := s.DB.Model(&models.PollVote{}).
		Select("choice_id, COUNT(*) AS n").
		Where("poll_id IN ?", pollIDs).
		Group("choice_id").
		Scan(&counts).Error
	if err != nil {
		return nil, errTransient("failed to count poll votes", err)
	}
	countByChoice := make(map[uint]int64)
	for _, c := range counts {
		countByChoice[c.ChoiceID] = c.N
	}

	ownVotes := make(map[uint]uint) // pollID -> choiceID
	if viewer != 0 {
		var votes []models.PollVote
		if err := s.DB.Where("voter_id = ? AND poll_id IN ?", viewer, pollIDs).Find(&votes).Error; err != nil {
			return nil, errTransient("failed to load own votes", err)
		}
		for _, v := range votes {
			ownVotes[v.PollID] = v.ChoiceID
		}
	}

	for _, p := range polls {
		pv := &PollView{ID: p.ID, Choices: make([]ChoiceView, len(p.Choices))}
		for i, c := range p.Choices {
			pv.Choices[i] = ChoiceView{ID: c.ID, Label: c.Label, Votes: countByChoice[c.ID]}
		}
		if choiceID, ok := ownVotes[p.ID]; ok {
			id := choiceID
			pv.VotedChoiceID = &id
		}
		out[p.PostID] = pv
	}
	return out, nil
}
