package types

import (
	"time"
)

type User struct {
	Id           int       `json:"id"`
	Username     string    `json:"username"`
	EmailAddress string    `json:"email_address,omitempty"`
	Password     string    `json:"-"`
	PicturePath  string    `json:"picture_path,omitempty"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"`
}

type Post struct {
	Id            int       `json:"id"`
	ExternalId    string    `json:"external_id"`
	AuthorId      int       `json:"author_id"`
	MediaPath     string    `json:"media_path"`
	Caption       string    `json:"caption"`
	LikeCount     int       `json:"like_count"`
	LikedByCaller bool      `json:"liked_by_caller,omitempty"`
	Comments      []Comment `json:"comments,omitempty"`
	CreatedAt     time.Time `json:"created_at,omitempty"`
}

type Comment struct {
	Id        int       `json:"id"`
	PostId    int       `json:"post_id"`
	AuthorId  int       `json:"author_id"`
	Author    string    `json:"author,omitempty"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type Room struct {
	Id         int       `json:"id"`
	ExternalId string    `json:"external_id"`
	PairKey    string    `json:"pair_key,omitempty"`
	Members    []User    `json:"members,omitempty"`
	CreatedAt  time.Time `json:"created_at,omitempty"`
	UpdatedAt  time.Time `json:"updated_at,omitempty"`
}

type Message struct {
	RoomId     string    `json:"room_id"`
	UserId     int       `json:"user_id"`
	Username   string    `json:"username"`
	Content    string    `json:"content"`
	TargetUser string    `json:"target_user,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

type Notification struct {
	Id          int       `json:"id"`
	Kind        string    `json:"kind"`
	ActorId     int       `json:"actor_id"`
	RecipientId int       `json:"recipient_id"`
	PostId      int       `json:"post_id,omitempty"`
	Read        bool      `json:"read"`
	CreatedAt   time.Time `json:"created_at"`
}
