package server

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dan-divy/spruce/internal/database"
	"github.com/dan-divy/spruce/internal/types"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 4096
)

type Client struct {
	conn       *websocket.Conn
	chatServer *ChatServer
	log        *log.Logger
	user       types.User
	send       chan *ServerMessage
	// room is the at-most-one room this connection is joined to
	room     *Room
	roomLock sync.RWMutex
	stop     chan struct{}
	stopOnce sync.Once
}

func NewClient(user types.User, conn *websocket.Conn, cs *ChatServer, l *log.Logger) *Client {
	return &Client{
		conn:       conn,
		chatServer: cs,
		log:        l,
		user:       user,
		send:       make(chan *ServerMessage, 256),
		stop:       make(chan struct{}),
	}
}

func (c *Client) Write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.log.Println("write exiting")
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}

			bytes, err := json.Marshal(msg)
			if err != nil {
				c.log.Println("failed to serialize message:", err)
				continue
			}

			if !c.sendMessage(websocket.TextMessage, bytes) {
				return
			}
		case <-c.stop:
			return
		case <-ticker.C:
			if !c.sendMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *Client) Read() {
	defer func() {
		c.conn.Close()
		c.cleanup()
		c.log.Println("read exiting")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(appData string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Printf("ws: read: %v", err)
			}
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.log.Println("error parsing message:", err)
			c.queueMessage(ErrInvalidMessage(-1))
			continue
		}

		msg.client = c
		msg.UserId = c.user.Id
		msg.Timestamp = Now()

		switch {
		case msg.Join != nil:
			c.joinRoom(&msg)
		case msg.Leave != nil:
			c.leaveRoom(&msg)
		case msg.Publish != nil:
			c.forwardToRoom(&msg, msg.Publish.RoomId)
		case msg.Typing != nil:
			c.forwardToRoom(&msg, msg.Typing.RoomId)
		case msg.Like != nil:
			c.likePost(&msg)
		case msg.Comment != nil:
			c.commentPost(&msg)
		default:
			c.queueMessage(ErrInvalidMessage(msg.Id))
		}
	}
}

func (c *Client) queueMessage(msg *ServerMessage) bool {
	select {
	case c.send <- msg:
	default:
		c.log.Println("failed to send message to client, channel is full")
		return false
	}

	return true
}

func (c *Client) sendMessage(msgType int, msg []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Printf("write message: %s", err)
		}
		return false
	}

	return true
}

func (c *Client) stopClient() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
}

func (c *Client) cleanup() {
	c.chatServer.deregisterChan <- c
	c.leaveCurrentRoom()
	c.stopClient()
}

// joinRoom forwards a join to the chat server. A connection is joined
// to at most one room, so the current room is left first.
func (c *Client) joinRoom(msg *ClientMessage) {
	c.leaveCurrentRoom()

	select {
	case c.chatServer.joinChan <- msg:
	default:
		c.log.Println("joinChan full")
		c.queueMessage(ErrServiceUnavailable(msg.Id))
	}
}

func (c *Client) leaveRoom(msg *ClientMessage) {
	r := c.currentRoom()
	if r == nil {
		c.queueMessage(ErrRoomNotFound(msg.Id))
		return
	}

	select {
	case r.leaveChan <- msg:
	default:
		c.log.Printf("leaveChan full for room %q", r.externalId)
		c.queueMessage(ErrServiceUnavailable(msg.Id))
	}
}

func (c *Client) leaveCurrentRoom() {
	r := c.currentRoom()
	if r == nil {
		return
	}

	select {
	case r.leaveChan <- &ClientMessage{
		Leave:  &Leave{RoomId: r.externalId},
		UserId: c.user.Id,
		client: c,
	}:
	default:
		c.log.Printf("leaveChan full for room %q", r.externalId)
	}
}

func (c *Client) forwardToRoom(msg *ClientMessage, roomId string) {
	r := c.currentRoom()
	if r == nil || (roomId != "" && r.externalId != roomId) {
		c.queueMessage(ErrRoomNotFound(msg.Id))
		return
	}

	select {
	case r.clientMsgChan <- msg:
	default:
		c.log.Printf("clientMsgChan full for room %q", r.externalId)
		c.queueMessage(ErrServiceUnavailable(msg.Id))
	}
}

func (c *Client) likePost(msg *ClientMessage) {
	if c.chatServer.feed == nil {
		c.queueMessage(ErrServiceUnavailable(msg.Id))
		return
	}

	likeCount, err := c.chatServer.feed.Like(msg.Like.PostId, c.user.Id)
	switch {
	case errors.Is(err, database.ErrAlreadyLiked):
		// idempotent no-op, reported to the caller only
		c.queueMessage(NoErrOK(msg.Id, map[string]any{
			"post_id":       msg.Like.PostId,
			"already_liked": true,
		}))
	case errors.Is(err, sql.ErrNoRows):
		c.queueMessage(ErrPostNotFound(msg.Id))
	case err != nil:
		c.log.Println("like post:", err)
		c.queueMessage(ErrInternalError(msg.Id))
	default:
		c.queueMessage(NoErrOK(msg.Id, map[string]any{
			"post_id":    msg.Like.PostId,
			"like_count": likeCount,
		}))
	}
}

func (c *Client) commentPost(msg *ClientMessage) {
	if c.chatServer.feed == nil {
		c.queueMessage(ErrServiceUnavailable(msg.Id))
		return
	}

	comment, err := c.chatServer.feed.Comment(msg.Comment.PostId, c.user.Id, msg.Comment.Content)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		c.queueMessage(ErrPostNotFound(msg.Id))
	case err != nil:
		c.log.Println("comment post:", err)
		c.queueMessage(ErrInternalError(msg.Id))
	default:
		c.queueMessage(NoErrOK(msg.Id, map[string]any{
			"post_id":    comment.PostId,
			"comment_id": comment.Id,
		}))
	}
}

func (c *Client) setRoom(r *Room) {
	c.roomLock.Lock()
	defer c.roomLock.Unlock()
	c.room = r
}

func (c *Client) clearRoom(r *Room) {
	c.roomLock.Lock()
	defer c.roomLock.Unlock()
	if c.room == r {
		c.room = nil
	}
}

func (c *Client) currentRoom() *Room {
	c.roomLock.RLock()
	defer c.roomLock.RUnlock()
	return c.room
}
