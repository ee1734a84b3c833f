package journal

import (
	"database/sql"
	"time"

	_ "modernc.org/sqlite"
)

// Journal keeps a record of finished transfers so operators can audit what
// was sent, how much of it, and whether it failed.
type Journal struct {
	db *sql.DB
}

type Transfer struct {
	ID       int64
	Checksum string
	Bytes    int64
	Duration time.Duration
	Error    string
	Created  string
}

func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
                CREATE TABLE IF NOT EXISTS transfers (
                        id INTEGER PRIMARY KEY AUTOINCREMENT,
                        checksum TEXT,
                        bytes INTEGER,
                        duration_ms INTEGER,
                        error TEXT,
                        created_at TEXT DEFAULT CURRENT_TIMESTAMP
                )
        `)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Journal{
		db: db,
	}, nil
}

func (journal *Journal) Record(transfer Transfer) error {
	_, err := journal.db.Exec(`
                INSERT INTO transfers (checksum, bytes, duration_ms, error)
                VALUES (?, ?, ?, ?)
        `, transfer.Checksum, transfer.Bytes, transfer.Duration.Milliseconds(), transfer.Error)

	return err
}

func (journal *Journal) List() ([]Transfer, error) {
	rows, err := journal.db.Query(`
                SELECT id, checksum, bytes, duration_ms, error, created_at
                FROM transfers
                ORDER BY id
        `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transfers []Transfer

	for rows.Next() {
		var transfer Transfer
		var durationMs int64

		err := rows.Scan(&transfer.ID, &transfer.Checksum, &transfer.Bytes, &durationMs, &transfer.Error, &transfer.Created)
		if err != nil {
			return nil, err
		}

		transfer.Duration = time.Duration(durationMs) * time.Millisecond

		transfers = append(transfers, transfer)
	}

	return transfers, rows.Err()
}

func (journal *Journal) Close() error {
	return journal.db.Close()
}
