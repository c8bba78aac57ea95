package database

import (
	"time"

	"github.com/stretchr/testify/mock"
)

type MockSpruceRepository struct {
	mock.Mock
}

func (m *MockSpruceRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockSpruceRepository) CreateAccount(params CreateAccountParams) (Account, error) {
	args := m.Called(params)
	return args.Get(0).(Account), args.Error(1)
}
func (m *MockSpruceRepository) UpdateAccount(params UpdateAccountParams) (Account, error) {
	args := m.Called(params)
	return args.Get(0).(Account), args.Error(1)
}
func (m *MockSpruceRepository) GetAccountById(accountId int) (Account, error) {
	args := m.Called(accountId)
	return args.Get(0).(Account), args.Error(1)
}
func (m *MockSpruceRepository) GetAccountByUsername(username string) (Account, error) {
	args := m.Called(username)
	return args.Get(0).(Account), args.Error(1)
}
func (m *MockSpruceRepository) GetAccountByEmail(email string) (Account, error) {
	args := m.Called(email)
	return args.Get(0).(Account), args.Error(1)
}
func (m *MockSpruceRepository) TouchLastSeen(accountId int) error {
	args := m.Called(accountId)
	return args.Error(0)
}
func (m *MockSpruceRepository) CreateFollow(followerId, followedId int) error {
	args := m.Called(followerId, followedId)
	return args.Error(0)
}
func (m *MockSpruceRepository) DeleteFollow(followerId, followedId int) error {
	args := m.Called(followerId, followedId)
	return args.Error(0)
}
func (m *MockSpruceRepository) GetFollowers(accountId int) ([]Account, error) {
	args := m.Called(accountId)
	return args.Get(0).([]Account), args.Error(1)
}
func (m *MockSpruceRepository) CreatePost(params CreatePostParams) (Post, error) {
	args := m.Called(params)
	return args.Get(0).(Post), args.Error(1)
}
func (m *MockSpruceRepository) GetPost(postId int) (Post, error) {
	args := m.Called(postId)
	return args.Get(0).(Post), args.Error(1)
}
func (m *MockSpruceRepository) GetPostByExternalId(externalId string) (Post, error) {
	args := m.Called(externalId)
	return args.Get(0).(Post), args.Error(1)
}
func (m *MockSpruceRepository) ListPosts(limit int) ([]Post, error) {
	args := m.Called(limit)
	return args.Get(0).([]Post), args.Error(1)
}
func (m *MockSpruceRepository) LikePost(postId, accountId int) (int, error) {
	args := m.Called(postId, accountId)
	return args.Int(0), args.Error(1)
}
func (m *MockSpruceRepository) HasLiked(postId, accountId int) (bool, error) {
	args := m.Called(postId, accountId)
	return args.Bool(0), args.Error(1)
}
func (m *MockSpruceRepository) CreateComment(params CreateCommentParams) (Comment, error) {
	args := m.Called(params)
	return args.Get(0).(Comment), args.Error(1)
}
func (m *MockSpruceRepository) ListComments(postId int) ([]Comment, error) {
	args := m.Called(postId)
	return args.Get(0).([]Comment), args.Error(1)
}
func (m *MockSpruceRepository) GetOrCreateDirectRoom(pairKey, externalId string, memberA, memberB int, seedContent string) (Room, bool, error) {
	args := m.Called(pairKey, externalId, memberA, memberB, seedContent)
	return args.Get(0).(Room), args.Bool(1), args.Error(2)
}
func (m *MockSpruceRepository) GetRoomByExternalId(externalId string) (Room, error) {
	args := m.Called(externalId)
	return args.Get(0).(Room), args.Error(1)
}
func (m *MockSpruceRepository) GetRoomMembers(roomId int) ([]Account, error) {
	args := m.Called(roomId)
	return args.Get(0).([]Account), args.Error(1)
}
func (m *MockSpruceRepository) ListRoomsForAccount(accountId int) ([]Room, error) {
	args := m.Called(accountId)
	return args.Get(0).([]Room), args.Error(1)
}
func (m *MockSpruceRepository) CreateMessage(msg Message) (Message, error) {
	args := m.Called(msg)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockSpruceRepository) GetRecentMessages(roomId, limit int) ([]Message, error) {
	args := m.Called(roomId, limit)
	return args.Get(0).([]Message), args.Error(1)
}
func (m *MockSpruceRepository) CreateNotification(params CreateNotificationParams) (Notification, error) {
	args := m.Called(params)
	return args.Get(0).(Notification), args.Error(1)
}
func (m *MockSpruceRepository) ListNotifications(accountId, limit int) ([]Notification, error) {
	args := m.Called(accountId, limit)
	return args.Get(0).([]Notification), args.Error(1)
}
func (m *MockSpruceRepository) CreateApiKey(accountId int, prefix, keyHash string) (ApiKey, error) {
	args := m.Called(accountId, prefix, keyHash)
	return args.Get(0).(ApiKey), args.Error(1)
}
func (m *MockSpruceRepository) GetApiKeyByPrefix(prefix string) (ApiKey, error) {
	args := m.Called(prefix)
	return args.Get(0).(ApiKey), args.Error(1)
}
func (m *MockSpruceRepository) DeleteApiKey(accountId int, prefix string) error {
	args := m.Called(accountId, prefix)
	return args.Error(0)
}
func (m *MockSpruceRepository) RevokeToken(jti string, expiresAt time.Time) error {
	args := m.Called(jti, expiresAt)
	return args.Error(0)
}
func (m *MockSpruceRepository) IsTokenRevoked(jti string) (bool, error) {
	args := m.Called(jti)
	return args.Bool(0), args.Error(1)
}
