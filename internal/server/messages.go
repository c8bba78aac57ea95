package server

import (
	"net/http"
	"time"

	"github.com/dan-divy/spruce/internal/types"
)

type BaseMessage struct {
	Id        int       `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ClientMessage is the client-to-server envelope. Exactly one of the
// operation fields is set.
type ClientMessage struct {
	BaseMessage
	Join    *Join    `json:"join,omitempty"`
	Publish *Publish `json:"publish,omitempty"`
	Typing  *Typing  `json:"typing,omitempty"`
	Leave   *Leave   `json:"leave,omitempty"`
	Like    *Like    `json:"like,omitempty"`
	Comment *Comment `json:"comment,omitempty"`
	UserId  int      `json:"-"`
	client  *Client  `json:"-"`
}

// Join targets either the direct room for a user pair (TargetUser) or an
// explicit room id. The server derives the pair key from the session
// identity and the target, so a client cannot join a pair room it is not
// part of.
type Join struct {
	TargetUser string `json:"target_user,omitempty"`
	RoomId     string `json:"room_id,omitempty"`
}

type Publish struct {
	RoomId     string `json:"room_id"`
	Content    string `json:"content"`
	TargetUser string `json:"target_user,omitempty"`
}

type Typing struct {
	RoomId string `json:"room_id"`
	Active bool   `json:"active"`
}

type Leave struct {
	RoomId string `json:"room_id"`
}

type Like struct {
	PostId int `json:"post_id"`
}

type Comment struct {
	PostId  int    `json:"post_id"`
	Content string `json:"content"`
}

// ServerMessage is the server-to-client envelope. UserId routes the
// message to a single user's connections (their private channel); zero
// means room or global fan-out depending on the send path.
type ServerMessage struct {
	BaseMessage
	Response     *Response      `json:"response,omitempty"`
	Message      *types.Message `json:"message,omitempty"`
	History      *History       `json:"history,omitempty"`
	Notification *Notification  `json:"notification,omitempty"`
	UserId       int            `json:"-"`
	SkipClient   *Client        `json:"-"`
}

type Response struct {
	ResponseCode int            `json:"response_code"`
	Error        string         `json:"error,omitempty"`
	Data         map[string]any `json:"data,omitempty"`
}

// History is sent to the joining connection only, oldest-first.
type History struct {
	RoomId   string          `json:"room_id"`
	Messages []types.Message `json:"messages"`
}

type Notification struct {
	UserJoined    *PresenceChange     `json:"user_joined,omitempty"`
	UserLeft      *PresenceChange     `json:"user_left,omitempty"`
	Typing        *TypingNotification `json:"typing,omitempty"`
	PostLiked     *PostLiked          `json:"post_liked,omitempty"`
	PostCommented *PostCommented      `json:"post_commented,omitempty"`
}

type PresenceChange struct {
	RoomId      string `json:"room_id"`
	UserId      int    `json:"user_id"`
	Username    string `json:"username"`
	MemberCount int    `json:"member_count"`
}

type TypingNotification struct {
	RoomId   string `json:"room_id"`
	UserId   int    `json:"user_id"`
	Username string `json:"username"`
	Active   bool   `json:"active"`
}

type PostLiked struct {
	PostId    int    `json:"post_id"`
	LikeCount int    `json:"like_count"`
	UserId    int    `json:"user_id"`
	Username  string `json:"username,omitempty"`
}

type PostCommented struct {
	PostId  int           `json:"post_id"`
	Comment types.Comment `json:"comment"`
}

func NoErrOK(id int, data map[string]any) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusOK,
			Data:         data,
		},
	}
}

func NoErrAccepted(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusAccepted,
		},
	}
}

func ErrRoomNotFound(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusNotFound,
			Error:        "room not found",
		},
	}
}

func ErrUserNotFound(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusNotFound,
			Error:        "user not found",
		},
	}
}

func ErrPostNotFound(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusNotFound,
			Error:        "post not found",
		},
	}
}

func ErrInternalError(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusInternalServerError,
			Error:        "internal server error",
		},
	}
}

func ErrServiceUnavailable(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusServiceUnavailable,
			Error:        "service unavailable",
		},
	}
}

func ErrInvalidMessage(id int) *ServerMessage {
	msg := &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusBadRequest,
			Error:        "invalid message format",
		},
	}

	if id > 0 {
		msg.Id = id
	}
	return msg
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
