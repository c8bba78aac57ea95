package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/teris-io/shortid"

	"github.com/dan-divy/spruce/internal/database"
	"github.com/dan-divy/spruce/internal/types"
)

const apiKeyScheme = "sk_"

type CreatePostRequest struct {
	MediaPath string `json:"media_path"`
	Caption   string `json:"caption"`
}

type LikeRequest struct {
	PostId int `json:"post_id"`
}

type LikeResponse struct {
	PostId       int  `json:"post_id"`
	Liked        bool `json:"liked"`
	AlreadyLiked bool `json:"already_liked,omitempty"`
	LikeCount    int  `json:"like_count"`
}

type CommentRequest struct {
	PostId  int    `json:"post_id"`
	Content string `json:"content"`
}

func (s *SpruceApp) createPost(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req CreatePostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.MediaPath == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	sid, err := shortid.Generate()
	if err != nil {
		s.log.Println("generate post id:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	post, err := s.db.CreatePost(database.CreatePostParams{
		ExternalId: sid,
		AuthorId:   userId,
		MediaPath:  req.MediaPath,
		Caption:    req.Caption,
	})
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusCreated, types.Post{
		Id:         post.Id,
		ExternalId: post.ExternalId,
		AuthorId:   post.AuthorId,
		MediaPath:  post.MediaPath,
		Caption:    post.Caption,
		LikeCount:  post.LikeCount,
		CreatedAt:  post.CreatedAt,
	})
}

func (s *SpruceApp) getPost(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	externalId := r.URL.Query().Get("id")
	if externalId == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	post, err := s.db.GetPostByExternalId(externalId)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	liked, err := s.db.HasLiked(post.Id, userId)
	if err != nil {
		s.log.Printf("has liked: %v", err)
	}

	dbComments, err := s.db.ListComments(post.Id)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	comments := make([]types.Comment, len(dbComments))
	for i, c := range dbComments {
		comments[i] = types.Comment{
			Id:        c.Id,
			PostId:    c.PostId,
			AuthorId:  c.AuthorId,
			Author:    c.Author,
			Content:   c.Content,
			CreatedAt: c.CreatedAt,
		}
	}

	s.writeJson(w, http.StatusOK, types.Post{
		Id:            post.Id,
		ExternalId:    post.ExternalId,
		AuthorId:      post.AuthorId,
		MediaPath:     post.MediaPath,
		Caption:       post.Caption,
		LikeCount:     post.LikeCount,
		LikedByCaller: liked,
		Comments:      comments,
		CreatedAt:     post.CreatedAt,
	})
}

func (s *SpruceApp) listPosts(w http.ResponseWriter, r *http.Request) {
	var limit int
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		var err error
		limit, err = strconv.Atoi(limitStr)
		if err != nil {
			errResp := NewBadRequestError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}
	}

	dbPosts, err := s.db.ListPosts(limit)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	posts := make([]types.Post, len(dbPosts))
	for i, p := range dbPosts {
		posts[i] = types.Post{
			Id:         p.Id,
			ExternalId: p.ExternalId,
			AuthorId:   p.AuthorId,
			MediaPath:  p.MediaPath,
			Caption:    p.Caption,
			LikeCount:  p.LikeCount,
			CreatedAt:  p.CreatedAt,
		}
	}

	s.writeJson(w, http.StatusOK, posts)
}

// likePost fronts the aggregator over HTTP. A repeat like is a success
// response with already_liked set, not an error.
func (s *SpruceApp) likePost(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req LikeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PostId == 0 {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	likeCount, err := s.feed.Like(req.PostId, userId)
	switch {
	case errors.Is(err, database.ErrAlreadyLiked):
		post, err := s.db.GetPost(req.PostId)
		if err != nil {
			errResp := NewInternalServerError(err)
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}
		s.writeJson(w, http.StatusOK, LikeResponse{
			PostId:       req.PostId,
			Liked:        false,
			AlreadyLiked: true,
			LikeCount:    post.LikeCount,
		})
	case errors.Is(err, sql.ErrNoRows):
		errResp := NewNotFoundError()
		s.writeJson(w, errResp.StatusCode, errResp)
	case err != nil:
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
	default:
		s.writeJson(w, http.StatusOK, LikeResponse{
			PostId:    req.PostId,
			Liked:     true,
			LikeCount: likeCount,
		})
	}
}

func (s *SpruceApp) commentPost(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req CommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PostId == 0 || req.Content == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	comment, err := s.feed.Comment(req.PostId, userId, req.Content)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		errResp := NewNotFoundError()
		s.writeJson(w, errResp.StatusCode, errResp)
	case err != nil:
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
	default:
		s.writeJson(w, http.StatusCreated, types.Comment{
			Id:        comment.Id,
			PostId:    comment.PostId,
			AuthorId:  comment.AuthorId,
			Author:    comment.Author,
			Content:   comment.Content,
			CreatedAt: comment.CreatedAt,
		})
	}
}

type ApiKeyResponse struct {
	// Key is the full secret, returned only at creation time
	Key       string `json:"key,omitempty"`
	Prefix    string `json:"prefix"`
	CreatedAt string `json:"created_at,omitempty"`
}

// apiKeyPrefix extracts the lookup prefix from a full key: the scheme
// plus the first eight characters of the secret.
func apiKeyPrefix(rawKey string) string {
	secret := strings.TrimPrefix(rawKey, apiKeyScheme)
	if len(secret) > 8 {
		secret = secret[:8]
	}
	return apiKeyScheme + secret
}

func (s *SpruceApp) createApiKey(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	rawKey := apiKeyScheme + strings.ReplaceAll(uuid.NewString(), "-", "")
	keyHash, err := hashPassword(rawKey)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	key, err := s.db.CreateApiKey(userId, apiKeyPrefix(rawKey), keyHash)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusCreated, ApiKeyResponse{
		Key:       rawKey,
		Prefix:    key.Prefix,
		CreatedAt: key.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	})
}

func (s *SpruceApp) deleteApiKey(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	prefix := r.URL.Query().Get("prefix")
	if prefix == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.db.DeleteApiKey(userId, prefix); err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusNoContent, nil)
}
