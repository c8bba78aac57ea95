package server

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/teris-io/shortid"

	"github.com/dan-divy/spruce/internal/database"
	"github.com/dan-divy/spruce/internal/stats"
)

// Aggregator applies like/comment operations on behalf of socket
// clients. Implemented by the feed package; wired after construction to
// avoid a dependency cycle with the broadcaster.
type Aggregator interface {
	Like(postId, actorId int) (int, error)
	Comment(postId, actorId int, content string) (database.Comment, error)
}

type stopReq struct {
	done chan struct{}
}

type ChatServer struct {
	log            *log.Logger
	db             database.SpruceRepository
	stats          stats.StatsProvider
	feed           Aggregator
	clients        map[*Client]struct{}
	userMap        map[int]map[*Client]struct{}
	clientsLock    sync.Mutex
	joinChan       chan *ClientMessage
	registerChan   chan *Client
	deregisterChan chan *Client
	broadcastChan  chan *ServerMessage
	unloadRoomChan chan string
	rooms          map[string]*Room
	stop           chan stopReq
}

func NewChatServer(logger *log.Logger, db database.SpruceRepository, sp stats.StatsProvider) (*ChatServer, error) {
	cs := &ChatServer{
		log:            logger,
		db:             db,
		stats:          sp,
		clients:        make(map[*Client]struct{}),
		userMap:        make(map[int]map[*Client]struct{}),
		joinChan:       make(chan *ClientMessage, 256),
		registerChan:   make(chan *Client),
		deregisterChan: make(chan *Client),
		broadcastChan:  make(chan *ServerMessage, 256),
		unloadRoomChan: make(chan string, 256),
		rooms:          make(map[string]*Room),
		stop:           make(chan stopReq),
	}

	sp.RegisterMetric("NumConnections")
	sp.RegisterMetric("NumActiveRooms")
	sp.RegisterMetric("NumMessages")

	return cs, nil
}

// SetFeed wires the like/comment aggregator. Must be called before any
// client connects.
func (cs *ChatServer) SetFeed(f Aggregator) {
	cs.feed = f
}

// DirectRoomKey derives the deterministic key for the 1:1 room between
// two users: the usernames sorted lexicographically and concatenated.
// Symmetric in its arguments.
func DirectRoomKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + b
}

func (cs *ChatServer) Run() {
	for {
		select {
		case joinMsg := <-cs.joinChan:
			cs.handleJoin(joinMsg)
		case client := <-cs.registerChan:
			cs.log.Printf("adding connection from %q", client.user.Username)
			cs.addClient(client)
			cs.stats.Incr("NumConnections")
		case client := <-cs.deregisterChan:
			cs.log.Printf("removing connection from %q", client.user.Username)
			cs.removeClient(client)
			cs.stats.Decr("NumConnections")
		case msg := <-cs.broadcastChan:
			cs.fanOut(msg)
		case id := <-cs.unloadRoomChan:
			cs.unloadRoom(id)
		case req := <-cs.stop:
			cs.log.Println("shutting down rooms")
			for _, r := range cs.rooms {
				done := make(chan struct{})
				r.exit <- exitReq{done: done}
				<-done
			}

			cs.clientsLock.Lock()
			for c := range cs.clients {
				c.stopClient()
			}
			cs.clientsLock.Unlock()

			close(req.done)
			return
		}
	}
}

// handleJoin resolves the join target to a persisted room and hands the
// message to the room's goroutine, starting one if the room is not
// loaded. Direct rooms are created atomically on first contact; the
// store's uniqueness constraint guarantees concurrent callers converge
// on a single room.
func (cs *ChatServer) handleJoin(joinMsg *ClientMessage) {
	c := joinMsg.client

	var dbRoom database.Room
	switch {
	case joinMsg.Join.TargetUser != "":
		target, err := cs.db.GetAccountByUsername(joinMsg.Join.TargetUser)
		if err != nil {
			c.queueMessage(ErrUserNotFound(joinMsg.Id))
			return
		}

		externalId, err := shortid.Generate()
		if err != nil {
			cs.log.Println("generate room id:", err)
			c.queueMessage(ErrInternalError(joinMsg.Id))
			return
		}

		pairKey := DirectRoomKey(c.user.Username, target.Username)
		seed := fmt.Sprintf("%s and %s are now connected", c.user.Username, target.Username)

		room, created, err := cs.db.GetOrCreateDirectRoom(pairKey, externalId, c.user.Id, target.Id, seed)
		if err != nil {
			cs.log.Println("GetOrCreateDirectRoom:", err)
			c.queueMessage(ErrInternalError(joinMsg.Id))
			return
		}
		if created {
			cs.log.Printf("created direct room %q for pair %q", room.ExternalId, pairKey)
		}
		dbRoom = room
	case joinMsg.Join.RoomId != "":
		room, err := cs.db.GetRoomByExternalId(joinMsg.Join.RoomId)
		if err != nil {
			c.queueMessage(ErrRoomNotFound(joinMsg.Id))
			return
		}
		dbRoom = room
	default:
		c.queueMessage(ErrInvalidMessage(joinMsg.Id))
		return
	}

	if room, ok := cs.rooms[dbRoom.ExternalId]; ok {
		select {
		case room.joinChan <- joinMsg:
		default:
			cs.log.Printf("join channel full on room %q", room.externalId)
			c.queueMessage(ErrServiceUnavailable(joinMsg.Id))
		}
		return
	}

	room := &Room{
		id:            dbRoom.Id,
		externalId:    dbRoom.ExternalId,
		pairKey:       dbRoom.PairKey,
		cs:            cs,
		joinChan:      make(chan *ClientMessage, 256),
		leaveChan:     make(chan *ClientMessage, 256),
		clientMsgChan: make(chan *ClientMessage, 256),
		clients:       make(map[*Client]struct{}),
		userMap:       make(map[int]map[*Client]struct{}),
		log:           cs.log,
		exit:          make(chan exitReq),
	}

	cs.rooms[room.externalId] = room
	cs.stats.Incr("NumActiveRooms")
	room.joinChan <- joinMsg

	go room.start()
}

// fanOut delivers a message to a single user's connections when UserId
// is set, otherwise to every connected client.
func (cs *ChatServer) fanOut(msg *ServerMessage) {
	cs.clientsLock.Lock()
	defer cs.clientsLock.Unlock()

	if msg.UserId != 0 {
		for c := range cs.userMap[msg.UserId] {
			c.queueMessage(msg)
		}
		return
	}

	for c := range cs.clients {
		if c == msg.SkipClient {
			continue
		}
		c.queueMessage(msg)
	}
}

// Broadcast queues a message for fan-out. Non-blocking; dropped with a
// log line if the broadcast channel is full.
func (cs *ChatServer) Broadcast(msg *ServerMessage) {
	select {
	case cs.broadcastChan <- msg:
	default:
		cs.log.Println("broadcast channel full, dropping message")
	}
}

func (cs *ChatServer) RegisterClient(c *Client) {
	cs.registerChan <- c
}

func (cs *ChatServer) addClient(c *Client) {
	cs.clientsLock.Lock()
	defer cs.clientsLock.Unlock()

	cs.clients[c] = struct{}{}
	if cs.userMap[c.user.Id] == nil {
		cs.userMap[c.user.Id] = make(map[*Client]struct{})
	}
	cs.userMap[c.user.Id][c] = struct{}{}
}

func (cs *ChatServer) removeClient(c *Client) {
	cs.clientsLock.Lock()
	defer cs.clientsLock.Unlock()

	delete(cs.clients, c)
	if userClients, ok := cs.userMap[c.user.Id]; ok {
		delete(userClients, c)
		if len(userClients) == 0 {
			delete(cs.userMap, c.user.Id)
		}
	}
}

func (cs *ChatServer) unloadRoom(roomId string) {
	r, ok := cs.rooms[roomId]
	if !ok {
		return
	}

	cs.log.Printf("unloading room %q", r.externalId)
	delete(cs.rooms, roomId)
	cs.stats.Decr("NumActiveRooms")

	done := make(chan struct{})
	r.exit <- exitReq{done: done}
	<-done
}

func (cs *ChatServer) Shutdown(ctx context.Context) error {
	req := stopReq{done: make(chan struct{})}

	select {
	case cs.stop <- req:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-req.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
