// Package sqlitestore is a single-file embedded conversation.Store backed
// by modernc.org/sqlite and pressly/goose/v3 migrations, grounded on
// dotcommander-vybe's WAL-tuned sqlite store, for local/dev use and the
// turn package's tests (the CLI harness keeps conversations in memory).
// registry/store/mongostore persists registry snapshots only, not
// conversations.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jv92admin/alfred/conversation"
)

// Store implements conversation.Store.
type Store struct {
	db *sql.DB
}

// New wraps an already-opened, already-migrated *sql.DB. Use Open to get one.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Create(ctx context.Context, userID string, createdAt time.Time) (conversation.Conversation, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (user_id, created_at, history_summary) VALUES (?, ?, '')
		 ON CONFLICT(user_id) DO NOTHING`,
		userID, createdAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return conversation.Conversation{}, fmt.Errorf("sqlitestore: create conversation: %w", err)
	}
	return s.Load(ctx, userID)
}

func (s *Store) Load(ctx context.Context, userID string) (conversation.Conversation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT created_at, history_summary, turn_count FROM conversations WHERE user_id = ?`, userID)
	var createdAtStr, historySummary string
	var turnCount int
	if err := row.Scan(&createdAtStr, &historySummary, &turnCount); err != nil {
		if err == sql.ErrNoRows {
			return conversation.Conversation{}, conversation.ErrNotFound
		}
		return conversation.Conversation{}, fmt.Errorf("sqlitestore: load conversation: %w", err)
	}
	createdAt, err := time.Parse(time.RFC3339Nano, createdAtStr)
	if err != nil {
		return conversation.Conversation{}, fmt.Errorf("sqlitestore: parse created_at: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT turn_id, user_message, assistant_response, assistant_summary, execution_summary, created_at
		 FROM conversation_turns WHERE user_id = ? ORDER BY seq ASC`, userID)
	if err != nil {
		return conversation.Conversation{}, fmt.Errorf("sqlitestore: load turns: %w", err)
	}
	defer rows.Close()

	var turns []conversation.Turn
	for rows.Next() {
		var t conversation.Turn
		var execJSON, turnCreatedAtStr string
		if err := rows.Scan(&t.TurnID, &t.UserMessage, &t.AssistantResponse, &t.AssistantSummary, &execJSON, &turnCreatedAtStr); err != nil {
			return conversation.Conversation{}, fmt.Errorf("sqlitestore: scan turn: %w", err)
		}
		if err := json.Unmarshal([]byte(execJSON), &t.ExecutionSummary); err != nil {
			return conversation.Conversation{}, fmt.Errorf("sqlitestore: decode execution_summary: %w", err)
		}
		t.CreatedAt, err = time.Parse(time.RFC3339Nano, turnCreatedAtStr)
		if err != nil {
			return conversation.Conversation{}, fmt.Errorf("sqlitestore: parse turn created_at: %w", err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return conversation.Conversation{}, fmt.Errorf("sqlitestore: iterate turns: %w", err)
	}

	return conversation.Conversation{
		UserID:         userID,
		CreatedAt:      createdAt,
		TurnCount:      turnCount,
		Recent:         turns,
		HistorySummary: historySummary,
	}, nil
}

// AppendTurn persists t, drops evicted turns from the full-detail table,
// and updates history_summary in one transaction.
func (s *Store) AppendTurn(ctx context.Context, userID string, t conversation.Turn, evicted []conversation.Turn, newHistorySummary string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlitestore: begin tx: %w", err)
	}
	defer tx.Rollback()

	if len(evicted) > 0 {
		evictedIDs := make([]string, len(evicted))
		for i, e := range evicted {
			evictedIDs[i] = e.TurnID
		}
		for _, id := range evictedIDs {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM conversation_turns WHERE user_id = ? AND turn_id = ?`, userID, id); err != nil {
				return fmt.Errorf("sqlitestore: evict turn: %w", err)
			}
		}
	}

	var nextSeq int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM conversation_turns WHERE user_id = ?`, userID).Scan(&nextSeq); err != nil {
		return fmt.Errorf("sqlitestore: next seq: %w", err)
	}

	execJSON, err := json.Marshal(t.ExecutionSummary)
	if err != nil {
		return fmt.Errorf("sqlitestore: encode execution_summary: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO conversation_turns (user_id, turn_id, seq, user_message, assistant_response, assistant_summary, execution_summary, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		userID, t.TurnID, nextSeq, t.UserMessage, t.AssistantResponse, t.AssistantSummary, string(execJSON), t.CreatedAt.UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("sqlitestore: insert turn: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE conversations SET history_summary = ?, turn_count = turn_count + 1 WHERE user_id = ?`, newHistorySummary, userID); err != nil {
		return fmt.Errorf("sqlitestore: update history_summary: %w", err)
	}

	return tx.Commit()
}
