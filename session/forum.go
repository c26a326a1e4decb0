package session

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mmonsif/aeroconnect/db"
	"github.com/mmonsif/aeroconnect/models"
	"github.com/mmonsif/aeroconnect/visibility"
)

// ForumPosts returns posts newest first, each with its replies oldest first.
func (s *Session) ForumPosts() []models.ForumPost {
	replies := make(map[string][]models.ForumReply)
	for _, r := range s.mirror.Rows(models.TableForumReplies) {
		reply := db.DecodeForumReply(r)
		replies[reply.PostID] = append(replies[reply.PostID], reply)
	}

	rows := s.mirror.Rows(models.TableForumPosts)
	posts := make([]models.ForumPost, 0, len(rows))
	for _, r := range rows {
		post := db.DecodeForumPost(r)
		if rs := replies[post.ID]; len(rs) > 0 {
			sort.SliceStable(rs, func(i, j int) bool { return rs[i].CreatedAt.Before(rs[j].CreatedAt) })
			post.Replies = rs
		}
		posts = append(posts, post)
	}
	return posts
}

func (s *Session) CreatePost(ctx context.Context, title, content string) (models.ForumPost, error) {
	user, _ := s.actor()
	title = strings.TrimSpace(title)
	if title == "" || strings.TrimSpace(content) == "" {
		return models.ForumPost{}, fmt.Errorf("title and content are required: %w", ErrInvalid)
	}

	post := models.ForumPost{
		ID:         uuid.NewString(),
		AuthorID:   user.ID,
		AuthorName: user.Name,
		Title:      title,
		Content:    content,
		CreatedAt:  time.Now().UTC(),
	}
	row, err := s.write(ctx, models.TableForumPosts, db.Mutation{Op: models.OpInsert, Payload: db.ForumPostRow(post)})
	if err != nil {
		return models.ForumPost{}, err
	}
	return db.DecodeForumPost(row), nil
}

func (s *Session) Reply(ctx context.Context, postID, content string) (models.ForumReply, error) {
	user, _ := s.actor()
	if strings.TrimSpace(content) == "" {
		return models.ForumReply{}, fmt.Errorf("content is required: %w", ErrInvalid)
	}
	if _, ok := s.mirror.Get(models.TableForumPosts, postID); !ok {
		return models.ForumReply{}, fmt.Errorf("forum post %s: %w", postID, ErrNotFound)
	}

	reply := models.ForumReply{
		ID:         uuid.NewString(),
		PostID:     postID,
		AuthorID:   user.ID,
		AuthorName: user.Name,
		Content:    content,
		CreatedAt:  time.Now().UTC(),
	}
	row, err := s.write(ctx, models.TableForumReplies, db.Mutation{Op: models.OpInsert, Payload: db.ForumReplyRow(reply)})
	if err != nil {
		return models.ForumReply{}, err
	}
	return db.DecodeForumReply(row), nil
}

// DeletePost removes a post and its replies.
func (s *Session) DeletePost(ctx context.Context, postID string) error {
	if !s.Engine().CanModerate() {
		return visibility.ErrForbidden
	}
	if _, ok := s.mirror.Get(models.TableForumPosts, postID); !ok {
		return fmt.Errorf("forum post %s: %w", postID, ErrNotFound)
	}
	if _, err := s.write(ctx, models.TableForumReplies, db.Mutation{Op: models.OpDelete, Match: models.Row{"post_id": postID}}); err != nil {
		return err
	}
	_, err := s.write(ctx, models.TableForumPosts, db.Mutation{Op: models.OpDelete, ID: postID})
	return err
}
