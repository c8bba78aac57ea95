package server

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/dan-divy/spruce/internal/database"
	"github.com/dan-divy/spruce/internal/stats"
	"github.com/dan-divy/spruce/internal/types"
)

type mockAggregator struct {
	mock.Mock
}

func (m *mockAggregator) Like(postId, actorId int) (int, error) {
	args := m.Called(postId, actorId)
	return args.Int(0), args.Error(1)
}

func (m *mockAggregator) Comment(postId, actorId int, content string) (database.Comment, error) {
	args := m.Called(postId, actorId, content)
	return args.Get(0).(database.Comment), args.Error(1)
}

func TestNewClient(t *testing.T) {
	cs := newTestChatServer(t, &database.MockSpruceRepository{}, &stats.MockStatsUpdater{})
	user := types.User{Id: 1, Username: "alice"}

	c := NewClient(user, nil, cs, cs.log)
	assert.NotNil(t, c, "expected client to be non-nil")
	assert.Equal(t, user, c.user, "expected user to be set")
	assert.Equal(t, cs, c.chatServer, "expected chat server to be set")
	assert.NotNil(t, c.send, "expected send channel to be initialized")
	assert.NotNil(t, c.stop, "expected stop channel to be initialized")
	assert.Nil(t, c.currentRoom(), "expected no room on a new connection")
}

func TestClient_queueMessage(t *testing.T) {
	cs := newTestChatServer(t, &database.MockSpruceRepository{}, &stats.MockStatsUpdater{})

	t.Run("queues message", func(t *testing.T) {
		c := &Client{send: make(chan *ServerMessage, 1), log: cs.log}
		msg := NoErrAccepted(1)
		assert.True(t, c.queueMessage(msg), "expected message to be queued")

		select {
		case got := <-c.send:
			assert.Equal(t, msg, got, "expected messages to match")
		default:
			t.Error("expected message on send channel")
		}
	})

	t.Run("returns false when channel is full", func(t *testing.T) {
		c := &Client{send: make(chan *ServerMessage, 1), log: cs.log}
		c.send <- &ServerMessage{}
		assert.False(t, c.queueMessage(NoErrAccepted(1)), "expected queueMessage to report a full channel")
	})
}

func TestClient_joinRoom(t *testing.T) {
	t.Run("forwards join to the chat server", func(t *testing.T) {
		cs := newTestChatServer(t, &database.MockSpruceRepository{}, &stats.MockStatsUpdater{})
		c := &Client{chatServer: cs, send: make(chan *ServerMessage, 1), log: cs.log}

		msg := &ClientMessage{
			BaseMessage: BaseMessage{Id: 1, Timestamp: Now()},
			Join:        &Join{TargetUser: "bob"},
			client:      c,
		}
		c.joinRoom(msg)

		select {
		case got := <-cs.joinChan:
			assert.Equal(t, msg, got, "expected join to be forwarded to chat server")
		default:
			t.Error("expected join message on joinChan")
		}
	})

	t.Run("leaves the current room before joining another", func(t *testing.T) {
		cs := newTestChatServer(t, &database.MockSpruceRepository{}, &stats.MockStatsUpdater{})
		c := &Client{
			chatServer: cs,
			user:       types.User{Id: 1, Username: "alice"},
			send:       make(chan *ServerMessage, 1),
			log:        cs.log,
		}
		current := &Room{externalId: "old-room", leaveChan: make(chan *ClientMessage, 1)}
		c.setRoom(current)

		c.joinRoom(&ClientMessage{
			BaseMessage: BaseMessage{Id: 2, Timestamp: Now()},
			Join:        &Join{TargetUser: "bob"},
			client:      c,
		})

		select {
		case leave := <-current.leaveChan:
			assert.NotNil(t, leave.Leave, "expected implicit leave for current room")
			assert.Equal(t, "old-room", leave.Leave.RoomId, "expected leave to target the current room")
		default:
			t.Error("expected implicit leave to be queued to current room")
		}

		select {
		case <-cs.joinChan:
		default:
			t.Error("expected join message on joinChan")
		}
	})
}

func TestClient_leaveRoom(t *testing.T) {
	t.Run("forwards leave to the current room", func(t *testing.T) {
		cs := newTestChatServer(t, &database.MockSpruceRepository{}, &stats.MockStatsUpdater{})
		c := &Client{send: make(chan *ServerMessage, 1), log: cs.log}
		room := &Room{externalId: "room-ext", leaveChan: make(chan *ClientMessage, 1)}
		c.setRoom(room)

		msg := &ClientMessage{
			BaseMessage: BaseMessage{Id: 1, Timestamp: Now()},
			Leave:       &Leave{RoomId: "room-ext"},
			client:      c,
		}
		c.leaveRoom(msg)

		select {
		case got := <-room.leaveChan:
			assert.Equal(t, msg, got, "expected leave to be forwarded to room")
		default:
			t.Error("expected leave message on leaveChan")
		}
	})

	t.Run("reports room not found when not joined", func(t *testing.T) {
		cs := newTestChatServer(t, &database.MockSpruceRepository{}, &stats.MockStatsUpdater{})
		c := &Client{send: make(chan *ServerMessage, 1), log: cs.log}

		c.leaveRoom(&ClientMessage{
			BaseMessage: BaseMessage{Id: 1, Timestamp: Now()},
			Leave:       &Leave{RoomId: "room-ext"},
			client:      c,
		})

		select {
		case msg := <-c.send:
			assert.NotNil(t, msg.Response, "expected response message")
			assert.Equal(t, 404, msg.Response.ResponseCode, "expected response code to be 404")
		default:
			t.Error("expected error message to be queued")
		}
	})
}

func TestClient_forwardToRoom(t *testing.T) {
	cs := newTestChatServer(t, &database.MockSpruceRepository{}, &stats.MockStatsUpdater{})

	t.Run("forwards to the joined room", func(t *testing.T) {
		c := &Client{send: make(chan *ServerMessage, 1), log: cs.log}
		room := &Room{externalId: "room-ext", clientMsgChan: make(chan *ClientMessage, 1)}
		c.setRoom(room)

		msg := &ClientMessage{
			BaseMessage: BaseMessage{Id: 1, Timestamp: Now()},
			Publish:     &Publish{RoomId: "room-ext", Content: "hello"},
			client:      c,
		}
		c.forwardToRoom(msg, msg.Publish.RoomId)

		select {
		case got := <-room.clientMsgChan:
			assert.Equal(t, msg, got, "expected message to be forwarded to room")
		default:
			t.Error("expected message on clientMsgChan")
		}
	})

	t.Run("rejects publish to a room the connection is not in", func(t *testing.T) {
		c := &Client{send: make(chan *ServerMessage, 1), log: cs.log}
		room := &Room{externalId: "room-ext", clientMsgChan: make(chan *ClientMessage, 1)}
		c.setRoom(room)

		c.forwardToRoom(&ClientMessage{
			BaseMessage: BaseMessage{Id: 1, Timestamp: Now()},
			Publish:     &Publish{RoomId: "other-room", Content: "hello"},
			client:      c,
		}, "other-room")

		assert.Len(t, room.clientMsgChan, 0, "expected nothing to be forwarded")

		select {
		case msg := <-c.send:
			assert.NotNil(t, msg.Response, "expected response message")
			assert.Equal(t, 404, msg.Response.ResponseCode, "expected response code to be 404")
		default:
			t.Error("expected error message to be queued")
		}
	})

	t.Run("rejects publish when not joined to any room", func(t *testing.T) {
		c := &Client{send: make(chan *ServerMessage, 1), log: cs.log}

		c.forwardToRoom(&ClientMessage{
			BaseMessage: BaseMessage{Id: 1, Timestamp: Now()},
			Publish:     &Publish{RoomId: "room-ext", Content: "hello"},
			client:      c,
		}, "room-ext")

		select {
		case msg := <-c.send:
			assert.NotNil(t, msg.Response, "expected response message")
			assert.Equal(t, 404, msg.Response.ResponseCode, "expected response code to be 404")
		default:
			t.Error("expected error message to be queued")
		}
	})
}

func TestClient_likePost(t *testing.T) {
	newLikeClient := func(t *testing.T, agg Aggregator) *Client {
		cs := newTestChatServer(t, &database.MockSpruceRepository{}, &stats.MockStatsUpdater{})
		cs.SetFeed(agg)
		return &Client{
			chatServer: cs,
			user:       types.User{Id: 1, Username: "alice"},
			send:       make(chan *ServerMessage, 1),
			log:        cs.log,
		}
	}

	t.Run("returns new like count", func(t *testing.T) {
		agg := &mockAggregator{}
		defer agg.AssertExpectations(t)
		agg.On("Like", 9, 1).Return(4, nil).Once()

		c := newLikeClient(t, agg)
		c.likePost(&ClientMessage{
			BaseMessage: BaseMessage{Id: 1, Timestamp: Now()},
			Like:        &Like{PostId: 9},
			client:      c,
		})

		select {
		case msg := <-c.send:
			assert.NotNil(t, msg.Response, "expected response message")
			assert.Equal(t, 200, msg.Response.ResponseCode, "expected like to be acknowledged")
			assert.Equal(t, 9, msg.Response.Data["post_id"], "expected post id in response")
			assert.Equal(t, 4, msg.Response.Data["like_count"], "expected new like count in response")
		default:
			t.Error("expected response to be queued")
		}
	})

	t.Run("repeat like is reported to the caller only", func(t *testing.T) {
		agg := &mockAggregator{}
		defer agg.AssertExpectations(t)
		agg.On("Like", 9, 1).Return(0, database.ErrAlreadyLiked).Once()

		c := newLikeClient(t, agg)
		c.likePost(&ClientMessage{
			BaseMessage: BaseMessage{Id: 1, Timestamp: Now()},
			Like:        &Like{PostId: 9},
			client:      c,
		})

		select {
		case msg := <-c.send:
			assert.NotNil(t, msg.Response, "expected response message")
			assert.Equal(t, 200, msg.Response.ResponseCode, "expected repeat like to succeed quietly")
			assert.Equal(t, true, msg.Response.Data["already_liked"], "expected already_liked flag")
			assert.NotContains(t, msg.Response.Data, "like_count", "expected no count on repeat like")
		default:
			t.Error("expected response to be queued")
		}
	})

	t.Run("unknown post reports post not found", func(t *testing.T) {
		agg := &mockAggregator{}
		defer agg.AssertExpectations(t)
		agg.On("Like", 9, 1).Return(0, sql.ErrNoRows).Once()

		c := newLikeClient(t, agg)
		c.likePost(&ClientMessage{
			BaseMessage: BaseMessage{Id: 1, Timestamp: Now()},
			Like:        &Like{PostId: 9},
			client:      c,
		})

		select {
		case msg := <-c.send:
			assert.NotNil(t, msg.Response, "expected response message")
			assert.Equal(t, 404, msg.Response.ResponseCode, "expected response code to be 404")
			assert.Equal(t, "post not found", msg.Response.Error, "expected post not found error")
		default:
			t.Error("expected response to be queued")
		}
	})

	t.Run("store error reports internal error", func(t *testing.T) {
		agg := &mockAggregator{}
		defer agg.AssertExpectations(t)
		agg.On("Like", 9, 1).Return(0, errors.New("db error")).Once()

		c := newLikeClient(t, agg)
		c.likePost(&ClientMessage{
			BaseMessage: BaseMessage{Id: 1, Timestamp: Now()},
			Like:        &Like{PostId: 9},
			client:      c,
		})

		select {
		case msg := <-c.send:
			assert.NotNil(t, msg.Response, "expected response message")
			assert.Equal(t, 500, msg.Response.ResponseCode, "expected response code to be 500")
		default:
			t.Error("expected response to be queued")
		}
	})

	t.Run("unavailable without an aggregator", func(t *testing.T) {
		cs := newTestChatServer(t, &database.MockSpruceRepository{}, &stats.MockStatsUpdater{})
		c := &Client{chatServer: cs, send: make(chan *ServerMessage, 1), log: cs.log}

		c.likePost(&ClientMessage{
			BaseMessage: BaseMessage{Id: 1, Timestamp: Now()},
			Like:        &Like{PostId: 9},
			client:      c,
		})

		select {
		case msg := <-c.send:
			assert.NotNil(t, msg.Response, "expected response message")
			assert.Equal(t, 503, msg.Response.ResponseCode, "expected response code to be 503")
		default:
			t.Error("expected response to be queued")
		}
	})
}

func TestClient_commentPost(t *testing.T) {
	t.Run("returns comment id", func(t *testing.T) {
		agg := &mockAggregator{}
		defer agg.AssertExpectations(t)
		agg.On("Comment", 9, 1, "nice").Return(database.Comment{Id: 12, PostId: 9, AuthorId: 1}, nil).Once()

		cs := newTestChatServer(t, &database.MockSpruceRepository{}, &stats.MockStatsUpdater{})
		cs.SetFeed(agg)
		c := &Client{
			chatServer: cs,
			user:       types.User{Id: 1, Username: "alice"},
			send:       make(chan *ServerMessage, 1),
			log:        cs.log,
		}

		c.commentPost(&ClientMessage{
			BaseMessage: BaseMessage{Id: 1, Timestamp: Now()},
			Comment:     &Comment{PostId: 9, Content: "nice"},
			client:      c,
		})

		select {
		case msg := <-c.send:
			assert.NotNil(t, msg.Response, "expected response message")
			assert.Equal(t, 200, msg.Response.ResponseCode, "expected comment to be acknowledged")
			assert.Equal(t, 9, msg.Response.Data["post_id"], "expected post id in response")
			assert.Equal(t, 12, msg.Response.Data["comment_id"], "expected comment id in response")
		default:
			t.Error("expected response to be queued")
		}
	})

	t.Run("unknown post reports post not found", func(t *testing.T) {
		agg := &mockAggregator{}
		defer agg.AssertExpectations(t)
		agg.On("Comment", 9, 1, "nice").Return(database.Comment{}, sql.ErrNoRows).Once()

		cs := newTestChatServer(t, &database.MockSpruceRepository{}, &stats.MockStatsUpdater{})
		cs.SetFeed(agg)
		c := &Client{
			chatServer: cs,
			user:       types.User{Id: 1, Username: "alice"},
			send:       make(chan *ServerMessage, 1),
			log:        cs.log,
		}

		c.commentPost(&ClientMessage{
			BaseMessage: BaseMessage{Id: 1, Timestamp: Now()},
			Comment:     &Comment{PostId: 9, Content: "nice"},
			client:      c,
		})

		select {
		case msg := <-c.send:
			assert.NotNil(t, msg.Response, "expected response message")
			assert.Equal(t, 404, msg.Response.ResponseCode, "expected response code to be 404")
		default:
			t.Error("expected response to be queued")
		}
	})
}

func TestClient_setRoom_clearRoom(t *testing.T) {
	c := &Client{}
	r1 := &Room{externalId: "one"}
	r2 := &Room{externalId: "two"}

	c.setRoom(r1)
	assert.Equal(t, r1, c.currentRoom(), "expected room to be set")

	// clearing a stale pointer leaves the current room intact
	c.clearRoom(r2)
	assert.Equal(t, r1, c.currentRoom(), "expected current room to be unchanged")

	c.clearRoom(r1)
	assert.Nil(t, c.currentRoom(), "expected room to be cleared")
}
