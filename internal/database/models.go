package database

import (
	"database/sql"
	"time"
)

type Account struct {
	Id           int
	Username     string
	EmailAddress string
	PasswordHash string
	PicturePath  string
	LastSeenAt   sql.NullTime
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Post struct {
	Id         int
	ExternalId string
	AuthorId   int
	MediaPath  string
	Caption    string
	LikeCount  int
	CreatedAt  time.Time
}

type Comment struct {
	Id        int
	PostId    int
	AuthorId  int
	Author    string
	Content   string
	CreatedAt time.Time
}

type Room struct {
	Id         int
	ExternalId string
	// PairKey is empty for group rooms
	PairKey   string
	Members   []Account
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Message struct {
	Id     int
	RoomId int
	// UserId is zero for seed/system messages
	UserId     int
	Username   string
	Content    string
	TargetUser string
	CreatedAt  time.Time
}

type Notification struct {
	Id          int
	Kind        string
	ActorId     int
	RecipientId int
	PostId      int
	Read        bool
	CreatedAt   time.Time
}

type ApiKey struct {
	Id        int
	AccountId int
	Prefix    string
	KeyHash   string
	CreatedAt time.Time
}

type CreateAccountParams struct {
	Username     string
	EmailAddress string
	PasswordHash string
}

type UpdateAccountParams struct {
	AccountId    int
	Username     string
	PasswordHash string
	PicturePath  string
}

type CreatePostParams struct {
	ExternalId string
	AuthorId   int
	MediaPath  string
	Caption    string
}

type CreateCommentParams struct {
	PostId   int
	AuthorId int
	Content  string
}

type CreateNotificationParams struct {
	Kind        string
	ActorId     int
	RecipientId int
	PostId      int
}
