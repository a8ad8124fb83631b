package postgres

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"eventsponsor.messaging/internal/model"
)

const insertArchivedMessage = `
	INSERT INTO chat_messages_archive (id, conversation_id, sender_id, sender_role, text, msg_type, sent_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (id) DO NOTHING
`

// MessageArchive copies chat messages into PostgreSQL for long-term history.
type MessageArchive struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

// NewMessageArchive creates an archive writer.
func NewMessageArchive(db *pgxpool.Pool) *MessageArchive {
	return &MessageArchive{
		db:     db,
		logger: slog.Default(),
	}
}

// SaveBatch inserts msgs in one round trip. Rows already archived are skipped; the
// last row error, if any, is returned after every row was attempted.
func (a *MessageArchive) SaveBatch(ctx context.Context, msgs []model.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, m := range msgs {
		batch.Queue(insertArchivedMessage,
			m.ID,
			m.ConversationID,
			m.SenderID,
			string(m.SenderRole),
			m.Text,
			string(m.Type),
			time.UnixMilli(m.Timestamp).UTC(),
		)
	}

	br := a.db.SendBatch(ctx, batch)
	defer func() {
		if err := br.Close(); err != nil {
			a.logger.Error("Failed to close batch results", "error", err)
		}
	}()

	var batchErr error
	for i := range msgs {
		if _, err := br.Exec(); err != nil {
			batchErr = err
			a.logger.Error("Failed to archive message",
				"messageId", msgs[i].ID,
				"conversationId", msgs[i].ConversationID,
				"error", err,
			)
		}
	}
	return batchErr
}
