package database

import (
	"errors"
	"time"
)

// ErrAlreadyLiked is returned by LikePost when the account has
// already liked the post. The store is left unchanged.
var ErrAlreadyLiked = errors.New("post already liked by account")

type SpruceRepository interface {
	Ping() error

	CreateAccount(params CreateAccountParams) (Account, error)
	UpdateAccount(params UpdateAccountParams) (Account, error)
	GetAccountById(accountId int) (Account, error)
	GetAccountByUsername(username string) (Account, error)
	GetAccountByEmail(email string) (Account, error)
	TouchLastSeen(accountId int) error

	CreateFollow(followerId, followedId int) error
	DeleteFollow(followerId, followedId int) error
	GetFollowers(accountId int) ([]Account, error)

	CreatePost(params CreatePostParams) (Post, error)
	GetPost(postId int) (Post, error)
	GetPostByExternalId(externalId string) (Post, error)
	ListPosts(limit int) ([]Post, error)
	LikePost(postId, accountId int) (int, error)
	HasLiked(postId, accountId int) (bool, error)
	CreateComment(params CreateCommentParams) (Comment, error)
	ListComments(postId int) ([]Comment, error)

	GetOrCreateDirectRoom(pairKey, externalId string, memberA, memberB int, seedContent string) (Room, bool, error)
	GetRoomByExternalId(externalId string) (Room, error)
	GetRoomMembers(roomId int) ([]Account, error)
	ListRoomsForAccount(accountId int) ([]Room, error)
	CreateMessage(msg Message) (Message, error)
	GetRecentMessages(roomId, limit int) ([]Message, error)

	CreateNotification(params CreateNotificationParams) (Notification, error)
	ListNotifications(accountId, limit int) ([]Notification, error)

	CreateApiKey(accountId int, prefix, keyHash string) (ApiKey, error)
	GetApiKeyByPrefix(prefix string) (ApiKey, error)
	DeleteApiKey(accountId int, prefix string) error

	RevokeToken(jti string, expiresAt time.Time) error
	IsTokenRevoked(jti string) (bool, error)
}
