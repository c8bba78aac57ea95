package database

import (
	"database/sql"
	"time"

	"github.com/lib/pq"
)

const pqForeignKeyViolation = "23503"

func (db *PgSpruceRepository) CreatePost(params CreatePostParams) (Post, error) {
	res := db.conn.QueryRow(
		"INSERT INTO posts (external_id, author_id, media_path, caption, created_at) "+
			"VALUES ($1, $2, $3, $4, $5) RETURNING id, external_id, author_id, media_path, caption, like_count, created_at",
		params.ExternalId,
		params.AuthorId,
		params.MediaPath,
		params.Caption,
		time.Now().UTC(),
	)

	var p Post
	err := res.Scan(
		&p.Id,
		&p.ExternalId,
		&p.AuthorId,
		&p.MediaPath,
		&p.Caption,
		&p.LikeCount,
		&p.CreatedAt,
	)

	return p, err
}

func (db *PgSpruceRepository) GetPost(postId int) (Post, error) {
	row := db.conn.QueryRow(
		"SELECT id, external_id, author_id, media_path, caption, like_count, created_at FROM posts "+
			"WHERE id = $1 LIMIT 1",
		postId,
	)

	var p Post
	err := row.Scan(
		&p.Id,
		&p.ExternalId,
		&p.AuthorId,
		&p.MediaPath,
		&p.Caption,
		&p.LikeCount,
		&p.CreatedAt,
	)

	return p, err
}

func (db *PgSpruceRepository) GetPostByExternalId(externalId string) (Post, error) {
	row := db.conn.QueryRow(
		"SELECT id, external_id, author_id, media_path, caption, like_count, created_at FROM posts "+
			"WHERE external_id = $1 LIMIT 1",
		externalId,
	)

	var p Post
	err := row.Scan(
		&p.Id,
		&p.ExternalId,
		&p.AuthorId,
		&p.MediaPath,
		&p.Caption,
		&p.LikeCount,
		&p.CreatedAt,
	)

	return p, err
}

func (db *PgSpruceRepository) ListPosts(limit int) ([]Post, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := db.conn.Query(
		"SELECT id, external_id, author_id, media_path, caption, like_count, created_at FROM posts "+
			"ORDER BY id DESC LIMIT $1",
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts = make([]Post, 0, limit)
	for rows.Next() {
		var p Post
		if err = rows.Scan(&p.Id, &p.ExternalId, &p.AuthorId, &p.MediaPath, &p.Caption, &p.LikeCount, &p.CreatedAt); err != nil {
			break
		}

		posts = append(posts, p)
	}

	return posts, err
}

// LikePost records a like by accountId on postId and returns the new like
// count. A single statement inserts the dedup row and increments the
// counter, so the two cannot diverge and concurrent likes cannot lose
// updates. Returns ErrAlreadyLiked without mutating anything if the
// account has liked the post before, and sql.ErrNoRows if the post does
// not exist.
func (db *PgSpruceRepository) LikePost(postId, accountId int) (int, error) {
	row := db.conn.QueryRow(
		"WITH ins AS ("+
			"INSERT INTO likes (post_id, account_id, created_at) VALUES ($1, $2, $3) "+
			"ON CONFLICT (post_id, account_id) DO NOTHING RETURNING post_id"+
			") "+
			"UPDATE posts p SET like_count = like_count + 1 FROM ins "+
			"WHERE p.id = ins.post_id RETURNING p.like_count",
		postId,
		accountId,
		time.Now().UTC(),
	)

	var likeCount int
	err := row.Scan(&likeCount)
	if err == sql.ErrNoRows {
		// the insert hit the dedup constraint
		return 0, ErrAlreadyLiked
	}
	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == pqForeignKeyViolation {
		// no such post
		return 0, sql.ErrNoRows
	}

	return likeCount, err
}

func (db *PgSpruceRepository) HasLiked(postId, accountId int) (bool, error) {
	row := db.conn.QueryRow(
		"SELECT 1 FROM likes WHERE post_id = $1 AND account_id = $2 LIMIT 1",
		postId,
		accountId,
	)

	var one int
	err := row.Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}

	return err == nil, err
}

func (db *PgSpruceRepository) CreateComment(params CreateCommentParams) (Comment, error) {
	res := db.conn.QueryRow(
		"WITH c AS ("+
			"INSERT INTO comments (post_id, author_id, content, created_at) "+
			"VALUES ($1, $2, $3, $4) RETURNING id, post_id, author_id, content, created_at"+
			") "+
			"SELECT c.id, c.post_id, c.author_id, a.username, c.content, c.created_at "+
			"FROM c JOIN accounts a ON c.author_id = a.id",
		params.PostId,
		params.AuthorId,
		params.Content,
		time.Now().UTC(),
	)

	var c Comment
	err := res.Scan(
		&c.Id,
		&c.PostId,
		&c.AuthorId,
		&c.Author,
		&c.Content,
		&c.CreatedAt,
	)
	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == pqForeignKeyViolation {
		return Comment{}, sql.ErrNoRows
	}

	return c, err
}

func (db *PgSpruceRepository) ListComments(postId int) ([]Comment, error) {
	rows, err := db.conn.Query(
		"SELECT c.id, c.post_id, c.author_id, a.username, c.content, c.created_at FROM comments c "+
			"JOIN accounts a ON c.author_id = a.id WHERE c.post_id = $1 ORDER BY c.id",
		postId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comments = make([]Comment, 0)
	for rows.Next() {
		var c Comment
		if err = rows.Scan(&c.Id, &c.PostId, &c.AuthorId, &c.Author, &c.Content, &c.CreatedAt); err != nil {
			break
		}

		comments = append(comments, c)
	}

	return comments, err
}

func (db *PgSpruceRepository) CreateNotification(params CreateNotificationParams) (Notification, error) {
	var postId any
	if params.PostId != 0 {
		postId = params.PostId
	}

	res := db.conn.QueryRow(
		"INSERT INTO notifications (kind, actor_id, recipient_id, post_id, created_at) "+
			"VALUES ($1, $2, $3, $4, $5) RETURNING id, kind, actor_id, recipient_id, COALESCE(post_id, 0), read, created_at",
		params.Kind,
		params.ActorId,
		params.RecipientId,
		postId,
		time.Now().UTC(),
	)

	var n Notification
	err := res.Scan(
		&n.Id,
		&n.Kind,
		&n.ActorId,
		&n.RecipientId,
		&n.PostId,
		&n.Read,
		&n.CreatedAt,
	)

	return n, err
}

func (db *PgSpruceRepository) ListNotifications(accountId, limit int) ([]Notification, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := db.conn.Query(
		"SELECT id, kind, actor_id, recipient_id, COALESCE(post_id, 0), read, created_at FROM notifications "+
			"WHERE recipient_id = $1 ORDER BY id DESC LIMIT $2",
		accountId,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifications = make([]Notification, 0, limit)
	for rows.Next() {
		var n Notification
		if err = rows.Scan(&n.Id, &n.Kind, &n.ActorId, &n.RecipientId, &n.PostId, &n.Read, &n.CreatedAt); err != nil {
			break
		}

		notifications = append(notifications, n)
	}

	return notifications, err
}

func (db *PgSpruceRepository) CreateApiKey(accountId int, prefix, keyHash string) (ApiKey, error) {
	res := db.conn.QueryRow(
		"INSERT INTO api_keys (account_id, prefix, key_hash, created_at) "+
			"VALUES ($1, $2, $3, $4) RETURNING id, account_id, prefix, key_hash, created_at",
		accountId,
		prefix,
		keyHash,
		time.Now().UTC(),
	)

	var key ApiKey
	err := res.Scan(
		&key.Id,
		&key.AccountId,
		&key.Prefix,
		&key.KeyHash,
		&key.CreatedAt,
	)

	return key, err
}

func (db *PgSpruceRepository) GetApiKeyByPrefix(prefix string) (ApiKey, error) {
	row := db.conn.QueryRow(
		"SELECT id, account_id, prefix, key_hash, created_at FROM api_keys "+
			"WHERE prefix = $1 LIMIT 1",
		prefix,
	)

	var key ApiKey
	err := row.Scan(
		&key.Id,
		&key.AccountId,
		&key.Prefix,
		&key.KeyHash,
		&key.CreatedAt,
	)

	return key, err
}

func (db *PgSpruceRepository) DeleteApiKey(accountId int, prefix string) error {
	_, err := db.conn.Exec(
		"DELETE FROM api_keys WHERE account_id = $1 AND prefix = $2",
		accountId,
		prefix,
	)

	return err
}

func (db *PgSpruceRepository) RevokeToken(jti string, expiresAt time.Time) error {
	_, err := db.conn.Exec(
		"INSERT INTO revoked_tokens (jti, expires_at, created_at) VALUES ($1, $2, $3) "+
			"ON CONFLICT (jti) DO NOTHING",
		jti,
		expiresAt,
		time.Now().UTC(),
	)

	return err
}

func (db *PgSpruceRepository) IsTokenRevoked(jti string) (bool, error) {
	row := db.conn.QueryRow(
		"SELECT 1 FROM revoked_tokens WHERE jti = $1 LIMIT 1",
		jti,
	)

	var one int
	err := row.Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}

	return err == nil, err
}
