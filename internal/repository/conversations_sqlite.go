package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/maklermatch/outreach/internal/domain"
)

const DefaultConversationDBPath = "outreach.db"

// SQLiteConversationStore keeps follow-up cadence state in a local SQLite
// file so restarts do not lose track of who was contacted when. Sent
// messages are stored as a JSON column since they are only ever read back
// as a whole.
type SQLiteConversationStore struct {
	db *sql.DB
}

func NewSQLiteConversationStore(dbPath string) (*SQLiteConversationStore, error) {
	if dbPath == "" {
		dbPath = DefaultConversationDBPath
	}

	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	// WAL mode so the poll loop and timer callbacks can read concurrently.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	store := &SQLiteConversationStore{db: db}
	if err := store.initTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init tables: %w", err)
	}
	return store, nil
}

func (s *SQLiteConversationStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteConversationStore) initTables() error {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS conversations (
			listing_id           TEXT PRIMARY KEY,
			listing_url          TEXT NOT NULL,
			seller_id            TEXT,
			messages_sent        TEXT NOT NULL DEFAULT '[]',
			current_stage        INTEGER NOT NULL DEFAULT 0,
			first_contact_at     DATETIME,
			last_message_at      DATETIME,
			next_followup_at     DATETIME,
			reply_received       BOOLEAN NOT NULL DEFAULT FALSE,
			reply_at             DATETIME,
			reply_sentiment      TEXT NOT NULL DEFAULT '',
			conversation_active  BOOLEAN NOT NULL DEFAULT TRUE,
			listing_still_active BOOLEAN NOT NULL DEFAULT TRUE
		)`,

		`CREATE TABLE IF NOT EXISTS contacted_sellers (
			seller_id    TEXT PRIMARY KEY,
			contacted_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, table := range tables {
		if _, err := s.db.Exec(table); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteConversationStore) Save(ctx context.Context, state *domain.ConversationState) error {
	messages, err := json.Marshal(state.MessagesSent)
	if err != nil {
		return fmt.Errorf("marshal messages: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO conversations (
			listing_id, listing_url, seller_id, messages_sent, current_stage,
			first_contact_at, last_message_at, next_followup_at,
			reply_received, reply_at, reply_sentiment,
			conversation_active, listing_still_active
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(listing_id) DO UPDATE SET
			listing_url          = excluded.listing_url,
			seller_id            = excluded.seller_id,
			messages_sent        = excluded.messages_sent,
			current_stage        = excluded.current_stage,
			first_contact_at     = excluded.first_contact_at,
			last_message_at      = excluded.last_message_at,
			next_followup_at     = excluded.next_followup_at,
			reply_received       = excluded.reply_received,
			reply_at             = excluded.reply_at,
			reply_sentiment      = excluded.reply_sentiment,
			conversation_active  = excluded.conversation_active,
			listing_still_active = excluded.listing_still_active
	`,
		state.ListingID,
		state.ListingURL,
		state.SellerID,
		string(messages),
		int(state.CurrentStage),
		state.FirstContactAt,
		state.LastMessageAt,
		state.NextFollowupAt,
		state.ReplyReceived,
		state.ReplyAt,
		string(state.ReplySentiment),
		state.ConversationActive,
		state.ListingStillActive,
	)
	if err != nil {
		return fmt.Errorf("save conversation: %w", err)
	}
	return nil
}

const conversationColumns = `listing_id, listing_url, seller_id, messages_sent, current_stage,
	first_contact_at, last_message_at, next_followup_at,
	reply_received, reply_at, reply_sentiment,
	conversation_active, listing_still_active`

func (s *SQLiteConversationStore) Get(ctx context.Context, listingID string) (*domain.ConversationState, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations
		WHERE listing_id = ?
	`, listingID)

	state, err := scanConversation(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query conversation: %w", err)
	}
	return state, nil
}

func (s *SQLiteConversationStore) All(ctx context.Context) ([]*domain.ConversationState, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations
	`)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer rows.Close()

	var all []*domain.ConversationState
	for rows.Next() {
		state, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		all = append(all, state)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate conversations: %w", rows.Err())
	}
	return all, nil
}

func (s *SQLiteConversationStore) MarkSellerContacted(ctx context.Context, sellerID string) error {
	if sellerID == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO contacted_sellers (seller_id) VALUES (?)
	`, sellerID)
	if err != nil {
		return fmt.Errorf("mark seller contacted: %w", err)
	}
	return nil
}

func (s *SQLiteConversationStore) IsSellerContacted(ctx context.Context, sellerID string) (bool, error) {
	if sellerID == "" {
		return false, nil
	}
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM contacted_sellers WHERE seller_id = ?
	`, sellerID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("query contacted seller: %w", err)
	}
	return count > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row rowScanner) (*domain.ConversationState, error) {
	var (
		state     domain.ConversationState
		messages  string
		stage     int
		sentiment string
	)
	err := row.Scan(
		&state.ListingID,
		&state.ListingURL,
		&state.SellerID,
		&messages,
		&stage,
		&state.FirstContactAt,
		&state.LastMessageAt,
		&state.NextFollowupAt,
		&state.ReplyReceived,
		&state.ReplyAt,
		&sentiment,
		&state.ConversationActive,
		&state.ListingStillActive,
	)
	if err != nil {
		return nil, err
	}
	state.ReplySentiment = domain.ReplySentiment(sentiment)
	state.CurrentStage = domain.FollowUpStage(stage)
	if err := json.Unmarshal([]byte(messages), &state.MessagesSent); err != nil {
		return nil, fmt.Errorf("unmarshal messages: %w", err)
	}
	return &state, nil
}
