// Package feed applies like and comment operations to posts and fans
// the results out to connected clients.
package feed

import (
	"log"

	"github.com/dan-divy/spruce/internal/database"
	"github.com/dan-divy/spruce/internal/server"
	"github.com/dan-divy/spruce/internal/stats"
	"github.com/dan-divy/spruce/internal/types"
)

// Broadcaster delivers an event to connected clients: to one user's
// connections when the message carries a user id, globally otherwise.
// Implemented by server.ChatServer.
type Broadcaster interface {
	Broadcast(msg *server.ServerMessage)
}

type Service struct {
	log *log.Logger
	db  database.SpruceRepository
	st  stats.StatsProvider
	bc  Broadcaster
}

func NewService(logger *log.Logger, db database.SpruceRepository, sp stats.StatsProvider, bc Broadcaster) *Service {
	sp.RegisterMetric("NumLikes")
	sp.RegisterMetric("NumComments")

	return &Service{
		log: logger,
		db:  db,
		st:  sp,
		bc:  bc,
	}
}

// Like records an at-most-once like by actorId on postId and returns
// the new like count. The store applies the dedup-set insert and the
// counter increment as one atomic operation, so concurrent likes cannot
// corrupt either. Returns database.ErrAlreadyLiked, with no mutation
// and no broadcast, if the actor has liked the post before.
func (s *Service) Like(postId, actorId int) (int, error) {
	likeCount, err := s.db.LikePost(postId, actorId)
	if err != nil {
		return 0, err
	}

	s.st.Incr("NumLikes")

	s.bc.Broadcast(&server.ServerMessage{
		BaseMessage: server.BaseMessage{Timestamp: server.Now()},
		Notification: &server.Notification{
			PostLiked: &server.PostLiked{
				PostId:    postId,
				LikeCount: likeCount,
				UserId:    actorId,
			},
		},
	})

	s.notifyAuthor("like", postId, actorId, &server.Notification{
		PostLiked: &server.PostLiked{
			PostId:    postId,
			LikeCount: likeCount,
			UserId:    actorId,
		},
	})

	return likeCount, nil
}

// Comment appends a comment to the post's comment list and broadcasts
// it. Comments are never deduplicated; broadcast order follows append
// order at the store.
func (s *Service) Comment(postId, actorId int, content string) (database.Comment, error) {
	comment, err := s.db.CreateComment(database.CreateCommentParams{
		PostId:   postId,
		AuthorId: actorId,
		Content:  content,
	})
	if err != nil {
		return database.Comment{}, err
	}

	s.st.Incr("NumComments")

	s.bc.Broadcast(&server.ServerMessage{
		BaseMessage: server.BaseMessage{Timestamp: server.Now()},
		Notification: &server.Notification{
			PostCommented: &server.PostCommented{
				PostId: postId,
				Comment: types.Comment{
					Id:        comment.Id,
					PostId:    comment.PostId,
					AuthorId:  comment.AuthorId,
					Author:    comment.Author,
					Content:   comment.Content,
					CreatedAt: comment.CreatedAt,
				},
			},
		},
	})

	s.notifyAuthor("comment", postId, actorId, &server.Notification{
		PostCommented: &server.PostCommented{
			PostId: postId,
			Comment: types.Comment{
				Id:        comment.Id,
				PostId:    comment.PostId,
				AuthorId:  comment.AuthorId,
				Author:    comment.Author,
				Content:   comment.Content,
				CreatedAt: comment.CreatedAt,
			},
		},
	})

	return comment, nil
}

// notifyAuthor persists a notification for the post's author and pushes
// it to their private channel. Best effort: failures are logged and
// never surface to the caller, whose like or comment has already
// committed.
func (s *Service) notifyAuthor(kind string, postId, actorId int, n *server.Notification) {
	post, err := s.db.GetPost(postId)
	if err != nil {
		s.log.Printf("%s notification: load post %d: %v", kind, postId, err)
		return
	}

	if post.AuthorId == actorId {
		return
	}

	if _, err := s.db.CreateNotification(database.CreateNotificationParams{
		Kind:        kind,
		ActorId:     actorId,
		RecipientId: post.AuthorId,
		PostId:      postId,
	}); err != nil {
		s.log.Printf("create %s notification: %v", kind, err)
	}

	s.bc.Broadcast(&server.ServerMessage{
		BaseMessage:  server.BaseMessage{Timestamp: server.Now()},
		Notification: n,
		UserId:       post.AuthorId,
	})
}
