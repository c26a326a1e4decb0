package handlers

import (
	"log"
	"net/http"
)

type ForumHandler struct{}

func NewForumHandler() *ForumHandler {
	return &ForumHandler{}
}

type CreatePostRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type ReplyRequest struct {
	PostID  string `json:"post_id"`
	Content string `json:"content"`
}

func (h *ForumHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.ForumPosts())
}

func (h *ForumHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}

	var req CreatePostRequest
	if !decode(w, r, &req) {
		return
	}

	post, err := sess.CreatePost(r.Context(), req.Title, req.Content)
	if err != nil {
		fail(w, "create post", err)
		return
	}
	writeJSON(w, http.StatusCreated, post)
}

func (h *ForumHandler) Reply(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}

	var req ReplyRequest
	if !decode(w, r, &req) {
		return
	}

	reply, err := sess.Reply(r.Context(), req.PostID, req.Content)
	if err != nil {
		fail(w, "reply to post", err)
		return
	}
	writeJSON(w, http.StatusCreated, reply)
}

// DeletePost removes a post and its replies. Moderators only.
func (h *ForumHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}

	var req IDRequest
	if !decode(w, r, &req) {
		return
	}

	if err := sess.DeletePost(r.Context(), req.ID); err != nil {
		fail(w, "delete post", err)
		return
	}

	log.Printf("✅ Forum post %s deleted by %s", req.ID, sess.User().Username)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Post deleted"})
}
