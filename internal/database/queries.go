package database

import (
	"database/sql"
	"fmt"
	"time"
)

func (db *PgSpruceRepository) CreateAccount(params CreateAccountParams) (Account, error) {
	res := db.conn.QueryRow(
		"INSERT INTO accounts (username, email, password_hash, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $4) RETURNING id, username, email, created_at, updated_at",
		params.Username,
		params.EmailAddress,
		params.PasswordHash,
		time.Now().UTC(),
	)

	var a Account
	err := res.Scan(
		&a.Id,
		&a.Username,
		&a.EmailAddress,
		&a.CreatedAt,
		&a.UpdatedAt,
	)

	return a, err
}

func (db *PgSpruceRepository) UpdateAccount(params UpdateAccountParams) (Account, error) {
	res := db.conn.QueryRow(
		"UPDATE accounts SET username = $2, password_hash = $3, picture_path = $4, updated_at = $5 "+
			"WHERE id = $1 RETURNING id, username, email, picture_path, created_at, updated_at",
		params.AccountId,
		params.Username,
		params.PasswordHash,
		params.PicturePath,
		time.Now().UTC(),
	)

	var a Account
	err := res.Scan(
		&a.Id,
		&a.Username,
		&a.EmailAddress,
		&a.PicturePath,
		&a.CreatedAt,
		&a.UpdatedAt,
	)

	return a, err
}

func (db *PgSpruceRepository) GetAccountById(accountId int) (Account, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, email, picture_path, created_at, updated_at FROM accounts "+
			"WHERE id = $1 LIMIT 1",
		accountId,
	)

	var a Account
	err := row.Scan(
		&a.Id,
		&a.Username,
		&a.EmailAddress,
		&a.PicturePath,
		&a.CreatedAt,
		&a.UpdatedAt,
	)

	return a, err
}

func (db *PgSpruceRepository) GetAccountByUsername(username string) (Account, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, email, picture_path, created_at, updated_at FROM accounts "+
			"WHERE username = $1 LIMIT 1",
		username,
	)

	var a Account
	err := row.Scan(
		&a.Id,
		&a.Username,
		&a.EmailAddress,
		&a.PicturePath,
		&a.CreatedAt,
		&a.UpdatedAt,
	)

	return a, err
}

func (db *PgSpruceRepository) GetAccountByEmail(email string) (Account, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, email, password_hash, created_at, updated_at FROM accounts "+
			"WHERE email = $1 LIMIT 1",
		email,
	)

	var a Account
	err := row.Scan(
		&a.Id,
		&a.Username,
		&a.EmailAddress,
		&a.PasswordHash,
		&a.CreatedAt,
		&a.UpdatedAt,
	)

	return a, err
}

func (db *PgSpruceRepository) TouchLastSeen(accountId int) error {
	_, err := db.conn.Exec(
		"UPDATE accounts SET last_seen_at = $2 WHERE id = $1",
		accountId,
		time.Now().UTC(),
	)

	return err
}

func (db *PgSpruceRepository) CreateFollow(followerId, followedId int) error {
	_, err := db.conn.Exec(
		"INSERT INTO follows (follower_id, followed_id, created_at) VALUES ($1, $2, $3) "+
			"ON CONFLICT (follower_id, followed_id) DO NOTHING",
		followerId,
		followedId,
		time.Now().UTC(),
	)

	return err
}

func (db *PgSpruceRepository) DeleteFollow(followerId, followedId int) error {
	_, err := db.conn.Exec(
		"DELETE FROM follows WHERE follower_id = $1 AND followed_id = $2",
		followerId,
		followedId,
	)

	return err
}

func (db *PgSpruceRepository) GetFollowers(accountId int) ([]Account, error) {
	rows, err := db.conn.Query(
		"SELECT a.id, a.username, a.picture_path FROM follows f "+
			"JOIN accounts a ON f.follower_id = a.id WHERE f.followed_id = $1",
		accountId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var followers = make([]Account, 0)
	for rows.Next() {
		var a Account
		if err = rows.Scan(&a.Id, &a.Username, &a.PicturePath); err != nil {
			break
		}

		followers = append(followers, a)
	}

	return followers, err
}

// GetOrCreateDirectRoom returns the direct room for pairKey, creating it
// atomically if absent. The unique constraint on pair_key serializes
// concurrent first-contact callers: at most one insert wins and every
// other caller reads the winner's row. The seed message and both member
// rows are written only by the creating caller, in the same transaction
// as the room row. The second return value reports whether this call
// created the room.
func (db *PgSpruceRepository) GetOrCreateDirectRoom(pairKey, externalId string, memberA, memberB int, seedContent string) (Room, bool, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return Room{}, false, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	res := tx.QueryRow(
		"INSERT INTO rooms (external_id, pair_key, created_at, updated_at) VALUES ($1, $2, $3, $3) "+
			"ON CONFLICT (pair_key) DO NOTHING RETURNING id, external_id, pair_key, created_at, updated_at",
		externalId,
		pairKey,
		now,
	)

	var room Room
	err = res.Scan(
		&room.Id,
		&room.ExternalId,
		&room.PairKey,
		&room.CreatedAt,
		&room.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		// another caller won the insert; read their row
		if err = tx.Rollback(); err != nil {
			return Room{}, false, err
		}

		room, err := db.getRoomByPairKey(pairKey)
		return room, false, err
	} else if err != nil {
		return Room{}, false, err
	}

	for _, memberId := range []int{memberA, memberB} {
		if _, err = tx.Exec(
			"INSERT INTO room_members (room_id, account_id, created_at) VALUES ($1, $2, $3) "+
				"ON CONFLICT (room_id, account_id) DO NOTHING",
			room.Id,
			memberId,
			now,
		); err != nil {
			return Room{}, false, err
		}
	}

	if _, err = tx.Exec(
		"INSERT INTO messages (room_id, user_id, content, created_at) VALUES ($1, NULL, $2, $3)",
		room.Id,
		seedContent,
		now,
	); err != nil {
		return Room{}, false, err
	}

	if err = tx.Commit(); err != nil {
		return Room{}, false, err
	}

	return room, true, nil
}

func (db *PgSpruceRepository) getRoomByPairKey(pairKey string) (Room, error) {
	row := db.conn.QueryRow(
		"SELECT id, external_id, pair_key, created_at, updated_at FROM rooms "+
			"WHERE pair_key = $1 LIMIT 1",
		pairKey,
	)

	var room Room
	err := row.Scan(
		&room.Id,
		&room.ExternalId,
		&room.PairKey,
		&room.CreatedAt,
		&room.UpdatedAt,
	)

	return room, err
}

func (db *PgSpruceRepository) GetRoomByExternalId(externalId string) (Room, error) {
	row := db.conn.QueryRow(
		"SELECT id, external_id, COALESCE(pair_key, ''), created_at, updated_at FROM rooms "+
			"WHERE external_id = $1 LIMIT 1",
		externalId,
	)

	var room Room
	err := row.Scan(
		&room.Id,
		&room.ExternalId,
		&room.PairKey,
		&room.CreatedAt,
		&room.UpdatedAt,
	)

	return room, err
}

func (db *PgSpruceRepository) GetRoomMembers(roomId int) ([]Account, error) {
	rows, err := db.conn.Query(
		"SELECT a.id, a.username, a.picture_path FROM room_members m "+
			"JOIN accounts a ON m.account_id = a.id WHERE m.room_id = $1",
		roomId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members = make([]Account, 0)
	for rows.Next() {
		var a Account
		if err = rows.Scan(&a.Id, &a.Username, &a.PicturePath); err != nil {
			break
		}

		members = append(members, a)
	}

	return members, err
}

func (db *PgSpruceRepository) ListRoomsForAccount(accountId int) ([]Room, error) {
	rows, err := db.conn.Query(
		"SELECT r.id, r.external_id, COALESCE(r.pair_key, ''), r.created_at, r.updated_at "+
			"FROM room_members m JOIN rooms r ON m.room_id = r.id WHERE m.account_id = $1 "+
			"ORDER BY r.updated_at DESC",
		accountId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms []Room
	for rows.Next() {
		var room Room
		if err = rows.Scan(&room.Id, &room.ExternalId, &room.PairKey, &room.CreatedAt, &room.UpdatedAt); err != nil {
			break
		}

		rooms = append(rooms, room)
	}

	return rooms, err
}

func (db *PgSpruceRepository) CreateMessage(msg Message) (Message, error) {
	var userId any
	if msg.UserId != 0 {
		userId = msg.UserId
	}

	res := db.conn.QueryRow(
		"INSERT INTO messages (room_id, user_id, content, target_user, created_at) "+
			"VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at",
		msg.RoomId,
		userId,
		msg.Content,
		msg.TargetUser,
		msg.CreatedAt,
	)

	err := res.Scan(&msg.Id, &msg.CreatedAt)
	if err != nil {
		return Message{}, err
	}

	_, err = db.conn.Exec("UPDATE rooms SET updated_at = $2 WHERE id = $1", msg.RoomId, msg.CreatedAt)

	return msg, err
}

// GetRecentMessages returns the tail of the room's message log, at most
// limit entries, ordered oldest-first.
func (db *PgSpruceRepository) GetRecentMessages(roomId, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := db.conn.Query(
		"SELECT m.id, m.room_id, COALESCE(m.user_id, 0), COALESCE(a.username, ''), m.content, m.target_user, m.created_at "+
			"FROM messages m LEFT JOIN accounts a ON m.user_id = a.id "+
			"WHERE m.room_id = $1 ORDER BY m.id DESC LIMIT $2",
		roomId,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages = make([]Message, 0, limit)
	for rows.Next() {
		var msg Message
		if err = rows.Scan(&msg.Id, &msg.RoomId, &msg.UserId, &msg.Username, &msg.Content, &msg.TargetUser, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}

		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// reverse to oldest-first
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}
