package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/QDev-Technolab/document-reader-ai/internal/model"
	"github.com/QDev-Technolab/document-reader-ai/internal/store"
)

// InsertMessage persists a message. The parent, when set, must already exist;
// this keeps the parent chain cycle-free by construction.
func (s *Store) InsertMessage(ctx context.Context, msg *model.Message) error {
	var parent any
	if msg.ParentID != nil {
		parent = *msg.ParentID
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, role, content, parent_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.ConversationID, string(msg.Role), msg.Content, parent,
		msg.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// GetMessage returns the message only if it belongs to the conversation.
func (s *Store) GetMessage(ctx context.Context, conversationID, id string) (*model.Message, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, conversation_id, role, content, parent_id, created_at
		FROM messages WHERE id = ? AND conversation_id = ?`, id, conversationID)

	msg, err := scanMessage(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get message: %w", err)
	}
	return msg, nil
}

// Siblings returns all messages sharing (parentID, role) within the
// conversation, ordered by creation time then id.
func (s *Store) Siblings(ctx context.Context, conversationID string, parentID *string, role model.Role) ([]model.Message, error) {
	var rows *sql.Rows
	var err error

	if parentID == nil {
		rows, err = s.db.QueryContext(ctx, `
			SELECT id, conversation_id, role, content, parent_id, created_at
			FROM messages
			WHERE conversation_id = ? AND role = ? AND parent_id IS NULL
			ORDER BY created_at ASC, id ASC`, conversationID, string(role))
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT id, conversation_id, role, content, parent_id, created_at
			FROM messages
			WHERE conversation_id = ? AND role = ? AND parent_id = ?
			ORDER BY created_at ASC, id ASC`, conversationID, string(role), *parentID)
	}
	if err != nil {
		return nil, fmt.Errorf("query siblings: %w", err)
	}
	defer rows.Close()

	var msgs []model.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, *msg)
	}
	return msgs, rows.Err()
}

func scanMessage(r rowScanner) (*model.Message, error) {
	var msg model.Message
	var role string
	var parent sql.NullString
	var createdAt int64

	if err := r.Scan(&msg.ID, &msg.ConversationID, &role, &msg.Content, &parent, &createdAt); err != nil {
		return nil, err
	}

	msg.Role = model.Role(role)
	if parent.Valid {
		msg.ParentID = &parent.String
	}
	msg.CreatedAt = time.Unix(0, createdAt)
	return &msg, nil
}
