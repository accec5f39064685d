// Package store persists the chat log.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/rudransh-shrivastava/peer-room/internal/room"
)

type ChatRecord struct {
	ID        string `gorm:"primaryKey"`
	UserID    string `gorm:"index;not null"`
	Recipient string
	Message   string
	Image     string
	Timestamp int64 `gorm:"index"`
}

// Open opens (creating if needed) the sqlite database at path and migrates it.
func Open(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		PrepareStmt: true,
		Logger:      logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.AutoMigrate(&ChatRecord{}); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, nil
}

// Close releases the connection pool behind db.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

type ChatStore struct {
	DB *gorm.DB
}

var _ room.ChatLog = (*ChatStore)(nil)

func NewChatStore(db *gorm.DB) *ChatStore {
	return &ChatStore{DB: db}
}

func (cs *ChatStore) Append(entry room.ChatEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	record := ChatRecord{
		ID:        entry.ID.String(),
		UserID:    entry.UserID,
		Recipient: entry.Recipient,
		Message:   entry.Message,
		Image:     entry.Image,
		Timestamp: entry.Timestamp.UnixMilli(),
	}
	return cs.DB.Create(&record).Error
}

// List returns the most recent limit entries, oldest first. A limit of zero or
// less returns everything.
func (cs *ChatStore) List(ctx context.Context, limit int) ([]room.ChatEntry, error) {
	var records []ChatRecord
	q := cs.DB.WithContext(ctx).Order("timestamp desc, id desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&records).Error; err != nil {
		return nil, err
	}

	entries := make([]room.ChatEntry, 0, len(records))
	for i := len(records) - 1; i >= 0; i-- {
		r := records[i]
		id, err := uuid.Parse(r.ID)
		if err != nil {
			return nil, fmt.Errorf("chat record %q: %w", r.ID, err)
		}
		entries = append(entries, room.ChatEntry{
			ID:        id,
			UserID:    r.UserID,
			Recipient: r.Recipient,
			Message:   r.Message,
			Image:     r.Image,
			Timestamp: time.UnixMilli(r.Timestamp),
		})
	}
	return entries, nil
}

func (cs *ChatStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := cs.DB.WithContext(ctx).Model(&ChatRecord{}).Count(&n).Error
	return n, err
}
