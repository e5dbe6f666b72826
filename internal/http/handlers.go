package http

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/suryabasnet/murmur/internal/feed"
	"github.com/suryabasnet/murmur/internal/models"
	"github.com/suryabasnet/murmur/internal/ws"
)

// --- Configuration Constants ---
const (
	rateLimitRPS   = 1.0 / 3.0 // 1 request every 3 seconds
	rateLimitBurst = 1
)

// --- Structs for request binding ---
type CreatePostInput struct {
	Content     string            `json:"content" binding:"required,min=1,max=1000"`
	CommentTo   *uint             `json:"commentTo"`
	PollChoices []string          `json:"pollChoices"`
	Attachments []AttachmentInput `json:"attachments"`
}

// AttachmentInput references media already uploaded to external storage.
type AttachmentInput struct {
	URL      string `json:"url" binding:"required,url"`
	MimeType string `json:"mimeType"`
}

type EditPostInput struct {
	Content string `json:"content" binding:"required,min=1,max=1000"`
}

type VoteInput struct {
	PollID   uint `json:"pollId" binding:"required"`
	ChoiceID uint `json:"choiceId" binding:"required"`
}

// WsMessage defines the JSON structure the frontend expects.
type WsMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// --- Rate Limiter ---
type IPRateLimiter struct {
	visitors map[string]*rate.Limiter
	mu       sync.RWMutex
	rps      rate.Limit
	burst    int
}

func NewIPRateLimiter(r rate.Limit, b int) *IPRateLimiter {
	return &IPRateLimiter{
		visitors: make(map[string]*rate.Limiter),
		mu:       sync.RWMutex{},
		rps:      r,
		burst:    b,
	}
}

func (rl *IPRateLimiter) GetLimiter(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	limiter, exists := rl.visitors[ip]
	if !exists {
		limiter = rate.NewLimiter(rl.rps, rl.burst)
		rl.visitors[ip] = limiter
	}
	return limiter
}

func RateLimitMiddleware(limiter *IPRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !limiter.GetLimiter(ip).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests. Please wait."})
			return
		}
		c.Next()
	}
}

// --- Handlers ---
type Env struct {
	Svc *feed.Service
	Hub *ws.Hub
}

// viewer returns the requesting user's ID, 0 for anonymous. The upstream
// auth layer is expected to have validated X-User-ID; this core treats it
// as its output.
func viewer(c *gin.Context) uint {
	id, err := strconv.ParseUint(c.GetHeader("X-User-ID"), 10, 32)
	if err != nil {
		return 0
	}
	return uint(id)
}

// fingerprint is the opaque view-dedup key: the user ID when
// authenticated, falling back to the client IP.
func fingerprint(c *gin.Context) string {
	if v := viewer(c); v != 0 {
		return "u:" + strconv.FormatUint(uint64(v), 10)
	}
	return "ip:" + c.ClientIP()
}

func pathID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return 0, false
	}
	return uint(id), true
}

func cursor(c *gin.Context) feed.Cursor {
	after, _ := strconv.ParseUint(c.Query("afterId"), 10, 32)
	before, _ := strconv.ParseUint(c.Query("beforeId"), 10, 32)
	limit, _ := strconv.Atoi(c.Query("limit"))
	return feed.Cursor{AfterID: uint(after), BeforeID: uint(before), Limit: limit}
}

// respondError maps domain error kinds to HTTP statuses.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch feed.KindOf(err) {
	case feed.KindNotFound:
		status = http.StatusNotFound
	case feed.KindForbidden:
		status = http.StatusForbidden
	case feed.KindConflict:
		status = http.StatusConflict
	case feed.KindTransient:
		log.Printf("transient error: %v", err)
		c.JSON(status, gin.H{"error": "Something went wrong", "kind": string(feed.KindTransient)})
		return
	}
	c.JSON(status, gin.H{"error": err.Error(), "kind": string(feed.KindOf(err))})
}

func (e *Env) page(c *gin.Context, f feed.Filter) {
	posts, err := e.Svc.Paginate(viewer(c), f, cursor(c), fingerprint(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, posts)
}

// GetFeed returns the viewer's home feed (own posts plus followees').
func (e *Env) GetFeed(c *gin.Context) {
	e.page(c, feed.Filter{Home: true})
}

// GetGlobalFeed returns all top-level posts.
func (e *Env) GetGlobalFeed(c *gin.Context) {
	e.page(c, feed.Filter{})
}

// GetTimeline returns one user's posts.
func (e *Env) GetTimeline(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}
	e.page(c, feed.Filter{AuthorID: &id})
}

// GetThread returns the replies to a post.
func (e *Env) GetThread(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid post ID"})
		return
	}
	e.page(c, feed.Filter{CommentTo: &id})
}

// GetLiked returns the posts a user has liked.
func (e *Env) GetLiked(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}
	e.page(c, feed.Filter{LikedBy: &id})
}

// GetAnnouncements returns the announcement feed.
func (e *Env) GetAnnouncements(c *gin.Context) {
	e.page(c, feed.Filter{Announcements: true})
}

// GetPost returns a single post with its parent chain, redacting blocked
// nodes.
func (e *Env) GetPost(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid post ID"})
		return
	}
	post, err := e.Svc.FetchPost(viewer(c), id, fingerprint(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

func (e *Env) CreatePost(c *gin.Context) {
	v := viewer(c)
	if v == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Sign in to post"})
		return
	}
	var input CreatePostInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}
	attachments := make([]models.Attachment, len(input.Attachments))
	for i, a := range input.Attachments {
		attachments[i] = models.Attachment{URL: a.URL, MimeType: a.MimeType}
	}
	post, err := e.Svc.CreatePost(v, feed.CreatePostInput{
		Content:     input.Content,
		CommentTo:   input.CommentTo,
		PollChoices: input.PollChoices,
		Attachments: attachments,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	e.broadcastMessage(WsMessage{Type: "new_post", Data: post})
	c.JSON(http.StatusCreated, post)
}

func (e *Env) EditPost(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid post ID"})
		return
	}
	var input EditPostInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}
	post, err := e.Svc.EditPost(viewer(c), id, input.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

func (e *Env) DeletePost(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid post ID"})
		return
	}
	if err := e.Svc.DeletePost(viewer(c), id, false); err != nil {
		respondError(c, err)
		return
	}
	e.broadcastMessage(WsMessage{Type: "delete", Data: gin.H{"id": id}})
	c.JSON(http.StatusOK, gin.H{"message": "Post deleted"})
}

// ModerationDeletePost is the admin variant: owner check bypassed.
func (e *Env) ModerationDeletePost(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid post ID"})
		return
	}
	if err := e.Svc.DeletePost(0, id, true); err != nil {
		respondError(c, err)
		return
	}
	e.broadcastMessage(WsMessage{Type: "delete", Data: gin.H{"id": id}})
	c.JSON(http.StatusOK, gin.H{"message": "Post deleted"})
}

func (e *Env) LikePost(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid post ID"})
		return
	}
	v := viewer(c)
	if v == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Sign in to like"})
		return
	}
	if err := e.Svc.LikePost(v, id); err != nil {
		respondError(c, err)
		return
	}
	e.broadcastMessage(WsMessage{Type: "like", Data: gin.H{"id": id}})
	c.JSON(http.StatusOK, gin.H{"message": "Liked"})
}

func (e *Env) UnlikePost(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid post ID"})
		return
	}
	if err := e.Svc.UnlikePost(viewer(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Unliked"})
}

func (e *Env) Vote(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid post ID"})
		return
	}
	v := viewer(c)
	if v == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Sign in to vote"})
		return
	}
	var input VoteInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}
	if err := e.Svc.Vote(v, id, input.PollID, input.ChoiceID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Vote recorded"})
}

func (e *Env) FollowUser(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}
	v := viewer(c)
	if v == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Sign in to follow"})
		return
	}
	if err := e.Svc.Follow(v, id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Following"})
}

func (e *Env) UnfollowUser(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}
	if err := e.Svc.Unfollow(viewer(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Unfollowed"})
}

func (e *Env) BlockUser(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}
	v := viewer(c)
	if v == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Sign in to block"})
		return
	}
	if err := e.Svc.BlockUser(v, id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Blocked"})
}

func (e *Env) UnblockUser(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}
	if err := e.Svc.UnblockUser(viewer(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Unblocked"})
}

func (e *Env) GetNotifications(c *gin.Context) {
	v := viewer(c)
	if v == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Sign in required"})
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	rows, err := e.Svc.Notifications(v, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	unread, err := e.Svc.UnreadCount(v)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": rows, "unread": unread})
}

func (e *Env) DismissNotifications(c *gin.Context) {
	v := viewer(c)
	if v == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Sign in required"})
		return
	}
	if err := e.Svc.Dismiss(v); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Dismissed"})
}

// Announce marks a post as an announcement (admin only, gated in routes).
func (e *Env) Announce(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid post ID"})
		return
	}
	if err := e.Svc.Announce(id); err != nil {
		respondError(c, err)
		return
	}
	e.broadcastMessage(WsMessage{Type: "announcement", Data: gin.H{"id": id}})
	c.JSON(http.StatusCreated, gin.H{"message": "Announced"})
}

// broadcastMessage pushes a message to every connected websocket client.
func (e *Env) broadcastMessage(msg WsMessage) {
	if e.Hub == nil {
		return
	}
	jsonMsg, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Error marshalling WS message: %v", err)
		return
	}
	e.Hub.Broadcast <- jsonMsg
}
