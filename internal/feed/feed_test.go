package feed

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dan-divy/spruce/internal/database"
	"github.com/dan-divy/spruce/internal/server"
	"github.com/dan-divy/spruce/internal/stats"
	"github.com/dan-divy/spruce/internal/testutil"
)

// captureBroadcaster records every fanned-out message in order.
type captureBroadcaster struct {
	msgs []*server.ServerMessage
}

func (b *captureBroadcaster) Broadcast(msg *server.ServerMessage) {
	b.msgs = append(b.msgs, msg)
}

func newTestService(t *testing.T, db database.SpruceRepository, su *stats.MockStatsUpdater, bc Broadcaster) *Service {
	su.On("RegisterMetric", mock.Anything).Times(2)
	return NewService(testutil.TestLogger(t), db, su, bc)
}

func TestService_Like(t *testing.T) {
	t.Run("records like, broadcasts count, notifies author", func(t *testing.T) {
		db := &database.MockSpruceRepository{}
		defer db.AssertExpectations(t)
		db.On("LikePost", 9, 1).Return(4, nil).Once()
		db.On("GetPost", 9).Return(database.Post{Id: 9, AuthorId: 2}, nil).Once()
		db.On("CreateNotification", database.CreateNotificationParams{
			Kind:        "like",
			ActorId:     1,
			RecipientId: 2,
			PostId:      9,
		}).Return(database.Notification{Id: 1}, nil).Once()

		su := &stats.MockStatsUpdater{}
		su.On("Incr", "NumLikes").Once()
		defer su.AssertExpectations(t)

		bc := &captureBroadcaster{}
		svc := newTestService(t, db, su, bc)

		likeCount, err := svc.Like(9, 1)
		assert.NoError(t, err, "expected no error liking post")
		assert.Equal(t, 4, likeCount, "expected new like count")

		require.Len(t, bc.msgs, 2, "expected a global broadcast and an author push")

		global := bc.msgs[0]
		assert.Equal(t, 0, global.UserId, "expected first broadcast to be global")
		require.NotNil(t, global.Notification, "expected notification message")
		require.NotNil(t, global.Notification.PostLiked, "expected post liked notification")
		assert.Equal(t, 9, global.Notification.PostLiked.PostId, "expected post id to match")
		assert.Equal(t, 4, global.Notification.PostLiked.LikeCount, "expected like count to match")
		assert.Equal(t, 1, global.Notification.PostLiked.UserId, "expected actor id to match")

		push := bc.msgs[1]
		assert.Equal(t, 2, push.UserId, "expected author push to target the author's channel")
		require.NotNil(t, push.Notification, "expected notification message")
		require.NotNil(t, push.Notification.PostLiked, "expected post liked notification")
	})

	t.Run("actor liking their own post is not notified", func(t *testing.T) {
		db := &database.MockSpruceRepository{}
		defer db.AssertExpectations(t)
		db.On("LikePost", 9, 2).Return(1, nil).Once()
		db.On("GetPost", 9).Return(database.Post{Id: 9, AuthorId: 2}, nil).Once()

		su := &stats.MockStatsUpdater{}
		su.On("Incr", "NumLikes").Once()
		defer su.AssertExpectations(t)

		bc := &captureBroadcaster{}
		svc := newTestService(t, db, su, bc)

		_, err := svc.Like(9, 2)
		assert.NoError(t, err, "expected no error liking own post")
		assert.Len(t, bc.msgs, 1, "expected only the global broadcast")
		assert.Equal(t, 0, bc.msgs[0].UserId, "expected the remaining broadcast to be global")
	})

	t.Run("repeat like mutates nothing and broadcasts nothing", func(t *testing.T) {
		db := &database.MockSpruceRepository{}
		defer db.AssertExpectations(t)
		db.On("LikePost", 9, 1).Return(0, database.ErrAlreadyLiked).Once()

		su := &stats.MockStatsUpdater{}
		defer su.AssertExpectations(t)

		bc := &captureBroadcaster{}
		svc := newTestService(t, db, su, bc)

		_, err := svc.Like(9, 1)
		assert.ErrorIs(t, err, database.ErrAlreadyLiked, "expected already liked error")
		assert.Len(t, bc.msgs, 0, "expected no broadcasts for a repeat like")
	})

	t.Run("unknown post passes through", func(t *testing.T) {
		db := &database.MockSpruceRepository{}
		defer db.AssertExpectations(t)
		db.On("LikePost", 9, 1).Return(0, sql.ErrNoRows).Once()

		bc := &captureBroadcaster{}
		svc := newTestService(t, db, &stats.MockStatsUpdater{}, bc)

		_, err := svc.Like(9, 1)
		assert.ErrorIs(t, err, sql.ErrNoRows, "expected no rows error")
		assert.Len(t, bc.msgs, 0, "expected no broadcasts")
	})

	t.Run("notification failure never surfaces", func(t *testing.T) {
		db := &database.MockSpruceRepository{}
		defer db.AssertExpectations(t)
		db.On("LikePost", 9, 1).Return(4, nil).Once()
		db.On("GetPost", 9).Return(database.Post{Id: 9, AuthorId: 2}, nil).Once()
		db.On("CreateNotification", mock.Anything).Return(database.Notification{}, errors.New("db error")).Once()

		su := &stats.MockStatsUpdater{}
		su.On("Incr", "NumLikes").Once()
		defer su.AssertExpectations(t)

		bc := &captureBroadcaster{}
		svc := newTestService(t, db, su, bc)

		likeCount, err := svc.Like(9, 1)
		assert.NoError(t, err, "expected like to succeed despite notification failure")
		assert.Equal(t, 4, likeCount, "expected like count to be returned")
	})

	t.Run("author lookup failure skips the push", func(t *testing.T) {
		db := &database.MockSpruceRepository{}
		defer db.AssertExpectations(t)
		db.On("LikePost", 9, 1).Return(4, nil).Once()
		db.On("GetPost", 9).Return(database.Post{}, errors.New("db error")).Once()

		su := &stats.MockStatsUpdater{}
		su.On("Incr", "NumLikes").Once()
		defer su.AssertExpectations(t)

		bc := &captureBroadcaster{}
		svc := newTestService(t, db, su, bc)

		_, err := svc.Like(9, 1)
		assert.NoError(t, err, "expected like to succeed despite lookup failure")
		assert.Len(t, bc.msgs, 1, "expected only the global broadcast")
	})
}

func TestService_Comment(t *testing.T) {
	t.Run("appends comment and broadcasts it", func(t *testing.T) {
		dbComment := database.Comment{Id: 12, PostId: 9, AuthorId: 1, Author: "alice", Content: "nice"}

		db := &database.MockSpruceRepository{}
		defer db.AssertExpectations(t)
		db.On("CreateComment", database.CreateCommentParams{
			PostId:   9,
			AuthorId: 1,
			Content:  "nice",
		}).Return(dbComment, nil).Once()
		db.On("GetPost", 9).Return(database.Post{Id: 9, AuthorId: 2}, nil).Once()
		db.On("CreateNotification", database.CreateNotificationParams{
			Kind:        "comment",
			ActorId:     1,
			RecipientId: 2,
			PostId:      9,
		}).Return(database.Notification{Id: 1}, nil).Once()

		su := &stats.MockStatsUpdater{}
		su.On("Incr", "NumComments").Once()
		defer su.AssertExpectations(t)

		bc := &captureBroadcaster{}
		svc := newTestService(t, db, su, bc)

		comment, err := svc.Comment(9, 1, "nice")
		assert.NoError(t, err, "expected no error commenting")
		assert.Equal(t, dbComment, comment, "expected stored comment to be returned")

		require.Len(t, bc.msgs, 2, "expected a global broadcast and an author push")

		global := bc.msgs[0]
		require.NotNil(t, global.Notification, "expected notification message")
		require.NotNil(t, global.Notification.PostCommented, "expected post commented notification")
		assert.Equal(t, 9, global.Notification.PostCommented.PostId, "expected post id to match")
		assert.Equal(t, "nice", global.Notification.PostCommented.Comment.Content, "expected comment content")
		assert.Equal(t, "alice", global.Notification.PostCommented.Comment.Author, "expected comment author")

		assert.Equal(t, 2, bc.msgs[1].UserId, "expected author push to target the author's channel")
	})

	t.Run("unknown post passes through", func(t *testing.T) {
		db := &database.MockSpruceRepository{}
		defer db.AssertExpectations(t)
		db.On("CreateComment", mock.Anything).Return(database.Comment{}, sql.ErrNoRows).Once()

		bc := &captureBroadcaster{}
		svc := newTestService(t, db, &stats.MockStatsUpdater{}, bc)

		_, err := svc.Comment(9, 1, "nice")
		assert.ErrorIs(t, err, sql.ErrNoRows, "expected no rows error")
		assert.Len(t, bc.msgs, 0, "expected no broadcasts")
	})
}
