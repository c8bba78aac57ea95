package server

import (
	"log"
	"sync"
	"time"

	"github.com/dan-divy/spruce/internal/database"
	"github.com/dan-divy/spruce/internal/types"
)

const (
	idleRoomTimeout = time.Second * 5
	// historyLimit caps the replay sent to a joining connection
	historyLimit = 50
)

type exitReq struct {
	done chan struct{}
}

type Room struct {
	id            int
	externalId    string
	pairKey       string
	cs            *ChatServer
	joinChan      chan *ClientMessage
	leaveChan     chan *ClientMessage
	clientMsgChan chan *ClientMessage
	clients       map[*Client]struct{}
	userMap       map[int]map[*Client]struct{}
	clientLock    sync.RWMutex
	log           *log.Logger
	// killTimer unloads the room once it has been empty for a while
	killTimer *time.Timer
	exit      chan exitReq
}

func (r *Room) start() {
	r.log.Printf("starting room %q", r.externalId)
	r.killTimer = time.NewTimer(idleRoomTimeout)
	r.killTimer.Stop()

	for {
		select {
		case join := <-r.joinChan:
			r.handleJoin(join)
		case leaveMsg := <-r.leaveChan:
			r.handleLeave(leaveMsg)
		case msg := <-r.clientMsgChan:
			if msg.Publish != nil {
				r.saveAndBroadcast(msg)
			} else if msg.Typing != nil {
				r.handleTyping(msg)
			}
		case <-r.killTimer.C:
			r.handleRoomTimeout()
		case e := <-r.exit:
			r.handleRoomExit(e)
			return
		}
	}
}

func (r *Room) handleRoomTimeout() {
	r.log.Printf("room %q timed out", r.externalId)
	select {
	case r.cs.unloadRoomChan <- r.externalId:
	default:
		// retry on the next tick if the server is busy
		r.killTimer.Reset(idleRoomTimeout)
	}
}

func (r *Room) handleRoomExit(e exitReq) {
	r.log.Printf("room %q is exiting", r.externalId)

	r.clientLock.Lock()
	for c := range r.clients {
		c.clearRoom(r)
	}
	r.clientLock.Unlock()

	if e.done != nil {
		close(e.done)
	}
}

// handleJoin replays the tail of the message log to the joining
// connection only, then announces the join to the rest of the room.
func (r *Room) handleJoin(join *ClientMessage) {
	r.killTimer.Stop()

	c := join.client
	history, err := r.cs.db.GetRecentMessages(r.id, historyLimit)
	if err != nil {
		r.log.Println("GetRecentMessages:", err)
		c.queueMessage(ErrInternalError(join.Id))
		if r.len() == 0 {
			r.killTimer.Reset(idleRoomTimeout)
		}
		return
	}

	r.addClient(c)

	c.queueMessage(NoErrOK(join.Id, map[string]any{
		"room_id":  r.externalId,
		"pair_key": r.pairKey,
	}))

	messages := make([]types.Message, len(history))
	for i, msg := range history {
		messages[i] = types.Message{
			RoomId:     r.externalId,
			UserId:     msg.UserId,
			Username:   msg.Username,
			Content:    msg.Content,
			TargetUser: msg.TargetUser,
			Timestamp:  msg.CreatedAt,
		}
	}

	c.queueMessage(&ServerMessage{
		BaseMessage: BaseMessage{Timestamp: Now()},
		History: &History{
			RoomId:   r.externalId,
			Messages: messages,
		},
	})

	r.broadcast(&ServerMessage{
		BaseMessage: BaseMessage{Timestamp: Now()},
		Notification: &Notification{
			UserJoined: &PresenceChange{
				RoomId:      r.externalId,
				UserId:      c.user.Id,
				Username:    c.user.Username,
				MemberCount: r.memberCount(),
			},
		},
		SkipClient: c,
	})
}

func (r *Room) handleLeave(leaveMsg *ClientMessage) {
	c := leaveMsg.client
	r.removeClient(c)

	if leaveMsg.Id != 0 {
		c.queueMessage(NoErrOK(leaveMsg.Id, nil))
	}

	// announce only once the user's last connection is gone
	if r.userConnections(c.user.Id) == 0 {
		r.broadcast(&ServerMessage{
			BaseMessage: BaseMessage{Timestamp: Now()},
			Notification: &Notification{
				UserLeft: &PresenceChange{
					RoomId:      r.externalId,
					UserId:      c.user.Id,
					Username:    c.user.Username,
					MemberCount: r.memberCount(),
				},
			},
			SkipClient: c,
		})
	}
}

func (r *Room) handleTyping(msg *ClientMessage) {
	// presence only, never persisted
	r.broadcast(&ServerMessage{
		BaseMessage: BaseMessage{Timestamp: Now()},
		Notification: &Notification{
			Typing: &TypingNotification{
				RoomId:   r.externalId,
				UserId:   msg.client.user.Id,
				Username: msg.client.user.Username,
				Active:   msg.Typing.Active,
			},
		},
		SkipClient: msg.client,
	})
}

// saveAndBroadcast persists the message, then fans it out to the room.
// A persistence failure is reported to the sender only and nothing is
// broadcast, so no client ever sees a message that was not stored.
func (r *Room) saveAndBroadcast(msg *ClientMessage) {
	dbMsg, err := r.cs.db.CreateMessage(database.Message{
		RoomId:     r.id,
		UserId:     msg.client.user.Id,
		Content:    msg.Publish.Content,
		TargetUser: msg.Publish.TargetUser,
		CreatedAt:  msg.Timestamp,
	})
	if err != nil {
		r.log.Println("error saving message:", err)
		msg.client.queueMessage(ErrInternalError(msg.Id))
		return
	}

	msg.client.queueMessage(NoErrAccepted(msg.Id))
	r.cs.stats.Incr("NumMessages")

	r.broadcast(&ServerMessage{
		BaseMessage: BaseMessage{
			Id:        msg.Id,
			Timestamp: dbMsg.CreatedAt,
		},
		Message: &types.Message{
			RoomId:     r.externalId,
			UserId:     msg.client.user.Id,
			Username:   msg.client.user.Username,
			Content:    msg.Publish.Content,
			TargetUser: msg.Publish.TargetUser,
			Timestamp:  dbMsg.CreatedAt,
		},
	})
}

func (r *Room) addClient(c *Client) {
	r.clientLock.Lock()
	defer r.clientLock.Unlock()

	r.clients[c] = struct{}{}
	if r.userMap[c.user.Id] == nil {
		r.userMap[c.user.Id] = make(map[*Client]struct{})
	}
	r.userMap[c.user.Id][c] = struct{}{}

	c.setRoom(r)
}

func (r *Room) removeClient(c *Client) {
	r.clientLock.Lock()
	defer r.clientLock.Unlock()

	if _, ok := r.clients[c]; !ok {
		r.log.Printf("client %q not found in room %q", c.user.Username, r.externalId)
		return
	}

	delete(r.clients, c)
	c.clearRoom(r)

	if userClients, ok := r.userMap[c.user.Id]; ok {
		delete(userClients, c)
		if len(userClients) == 0 {
			delete(r.userMap, c.user.Id)
		}
	}

	if len(r.clients) == 0 {
		r.log.Printf("no clients in %q, starting kill timer", r.externalId)
		r.killTimer.Reset(idleRoomTimeout)
	}
}

func (r *Room) len() int {
	r.clientLock.RLock()
	defer r.clientLock.RUnlock()
	return len(r.clients)
}

// memberCount is the number of distinct users with a live connection in
// the room.
func (r *Room) memberCount() int {
	r.clientLock.RLock()
	defer r.clientLock.RUnlock()
	return len(r.userMap)
}

func (r *Room) userConnections(userId int) int {
	r.clientLock.RLock()
	defer r.clientLock.RUnlock()
	return len(r.userMap[userId])
}

func (r *Room) broadcast(msg *ServerMessage) {
	r.clientLock.RLock()
	defer r.clientLock.RUnlock()

	for client := range r.clients {
		if client == msg.SkipClient {
			continue
		}

		client.queueMessage(msg)
	}
}
