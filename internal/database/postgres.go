package database

import (
	"database/sql"
)

type PgSpruceRepository struct {
	conn *sql.DB
}

func NewPgSpruceRepository(dsn string) (*PgSpruceRepository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	return &PgSpruceRepository{conn: db}, nil
}

func (db *PgSpruceRepository) Ping() error {
	return db.conn.Ping()
}

func (db *PgSpruceRepository) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}
