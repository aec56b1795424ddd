package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"gopkg.in/yaml.v3"
)

// maxCandidateArticles bounds how many matching rows FindArticles hands back
// for ranking.
const maxCandidateArticles = 200

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows a single writer; one connection avoids "database is locked".
	db.SetMaxOpenConns(1)
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err = store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS conversations (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        session_id TEXT NOT NULL,
        user_id INTEGER,
        started_at DATETIME NOT NULL,
        ended_at DATETIME,
        status TEXT NOT NULL CHECK (status IN ('Active', 'Ended', 'Escalated')),
        ticket_id INTEGER,
        escalation_reason TEXT
    );
    CREATE INDEX IF NOT EXISTS idx_conversations_session ON conversations (session_id, status);
    -- At most one active conversation per session.
    CREATE UNIQUE INDEX IF NOT EXISTS idx_conversations_one_active ON conversations (session_id) WHERE status = 'Active';

    CREATE TABLE IF NOT EXISTS messages (
        id TEXT PRIMARY KEY, -- UUID
        conversation_id INTEGER NOT NULL,
        body TEXT NOT NULL,
        type TEXT NOT NULL CHECK (type IN ('user', 'bot', 'system')),
        sent_at DATETIME NOT NULL,
        related_article_id INTEGER,
        confidence REAL,
        is_helpful BOOLEAN DEFAULT FALSE,
        feedback_at DATETIME,
        FOREIGN KEY (conversation_id) REFERENCES conversations (id)
    );
    CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages (conversation_id, sent_at);

    CREATE TABLE IF NOT EXISTS knowledge_articles (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        title TEXT NOT NULL,
        body TEXT NOT NULL,
        category_name TEXT NOT NULL DEFAULT 'General',
        created_at DATETIME NOT NULL
    );

    CREATE TABLE IF NOT EXISTS tickets (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        conversation_id INTEGER NOT NULL,
        user_id INTEGER,
        title TEXT NOT NULL,
        description TEXT NOT NULL,
        created_at DATETIME NOT NULL,
        FOREIGN KEY (conversation_id) REFERENCES conversations (id)
    );
    `
	_, err := s.db.Exec(schema)
	return err
}

// Conversation methods

const conversationColumns = "id, session_id, user_id, started_at, ended_at, status, ticket_id, escalation_reason"

func (s *SQLiteStore) CreateConversation(ctx context.Context, sessionID string, userID *int64) (*Conversation, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO conversations (session_id, user_id, started_at, status) VALUES (?, ?, ?, ?)",
		sessionID, userID, now, StatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to insert conversation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read conversation id: %w", err)
	}
	return &Conversation{ID: id, SessionID: sessionID, UserID: userID, StartedAt: now, Status: StatusActive}, nil
}

// GetConversationBySession returns the newest conversation for the session,
// restricted to status when it is non-empty. It returns nil, nil when none exists.
func (s *SQLiteStore) GetConversationBySession(ctx context.Context, sessionID string, status ConversationStatus) (*Conversation, error) {
	query := "SELECT " + conversationColumns + " FROM conversations WHERE session_id = ?"
	args := []any{sessionID}
	if status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}
	query += " ORDER BY id DESC LIMIT 1"

	conv, err := scanConversation(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return conv, nil
}

func (s *SQLiteStore) GetConversationByID(ctx context.Context, id int64) (*Conversation, error) {
	conv, err := scanConversation(s.db.QueryRowContext(ctx,
		"SELECT "+conversationColumns+" FROM conversations WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return conv, nil
}

func scanConversation(row *sql.Row) (*Conversation, error) {
	var (
		conv     Conversation
		userID   sql.NullInt64
		endedAt  sql.NullTime
		ticketID sql.NullInt64
		reason   sql.NullString
	)
	if err := row.Scan(&conv.ID, &conv.SessionID, &userID, &conv.StartedAt, &endedAt, &conv.Status, &ticketID, &reason); err != nil {
		return nil, err
	}
	if userID.Valid {
		conv.UserID = &userID.Int64
	}
	if endedAt.Valid {
		conv.EndedAt = &endedAt.Time
	}
	if ticketID.Valid {
		conv.TicketID = &ticketID.Int64
	}
	if reason.Valid {
		conv.EscalationReason = &reason.String
	}
	return &conv, nil
}

func (s *SQLiteStore) EndConversation(ctx context.Context, conversationID int64) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE conversations SET status = ?, ended_at = ? WHERE id = ?",
		StatusEnded, time.Now().UTC(), conversationID)
	if err != nil {
		return fmt.Errorf("failed to end conversation: %w", err)
	}
	return expectAffected(res, "conversation")
}

// EscalateConversation marks the conversation escalated and links the ticket, if any.
func (s *SQLiteStore) EscalateConversation(ctx context.Context, conversationID int64, ticketID *int64, reason string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE conversations SET status = ?, ticket_id = ?, escalation_reason = ? WHERE id = ?",
		StatusEscalated, ticketID, reason, conversationID)
	if err != nil {
		return fmt.Errorf("failed to escalate conversation: %w", err)
	}
	return expectAffected(res, "conversation")
}

// Message methods

const messageColumns = "id, conversation_id, body, type, sent_at, related_article_id, confidence, is_helpful, feedback_at"

func (s *SQLiteStore) CreateMessage(ctx context.Context, msg *Message) error {
	msg.ID = uuid.NewString() // Ensure ID is set
	msg.SentAt = time.Now().UTC()

	stmt, err := s.db.PrepareContext(ctx, "INSERT INTO messages ("+messageColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare message insert: %w", err)
	}
	defer stmt.Close()

	_, err = stmt.ExecContext(ctx, msg.ID, msg.ConversationID, msg.Body, msg.Type, msg.SentAt,
		msg.RelatedArticleID, msg.Confidence, msg.IsHelpful, msg.FeedbackAt)
	if err != nil {
		return fmt.Errorf("failed to execute message insert: %w", err)
	}
	return nil
}

// GetMessagesByConversationID returns messages oldest first. Rows with equal
// timestamps keep insertion order.
func (s *SQLiteStore) GetMessagesByConversationID(ctx context.Context, conversationID int64, limit int, offset int) ([]Message, error) {
	query := "SELECT " + messageColumns + " FROM messages WHERE conversation_id = ? ORDER BY sent_at ASC, rowid ASC LIMIT ? OFFSET ?"
	rows, err := s.db.QueryContext(ctx, query, conversationID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var (
			msg        Message
			articleID  sql.NullInt64
			confidence sql.NullFloat64
			feedbackAt sql.NullTime
		)
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.Body, &msg.Type, &msg.SentAt,
			&articleID, &confidence, &msg.IsHelpful, &feedbackAt); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		if articleID.Valid {
			msg.RelatedArticleID = &articleID.Int64
		}
		if confidence.Valid {
			msg.Confidence = &confidence.Float64
		}
		if feedbackAt.Valid {
			msg.FeedbackAt = &feedbackAt.Time
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// SetMessageFeedback records helpfulness once per message.
func (s *SQLiteStore) SetMessageFeedback(ctx context.Context, messageID string, helpful bool) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE messages SET is_helpful = ?, feedback_at = ? WHERE id = ? AND feedback_at IS NULL",
		helpful, time.Now().UTC(), messageID)
	if err != nil {
		return fmt.Errorf("failed to execute feedback update: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected > 0 {
		return nil
	}

	var exists int
	err = s.db.QueryRowContext(ctx, "SELECT 1 FROM messages WHERE id = ?", messageID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("message %s: %w", messageID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to check message: %w", err)
	}
	return fmt.Errorf("message %s: %w", messageID, ErrFeedbackAlreadySet)
}

// Knowledge article methods

// FindArticles returns articles whose title or body contains any of the terms,
// case-insensitively. Title matches come first, newest first within each
// group, so the candidate cap never drops a title match for a body match.
func (s *SQLiteStore) FindArticles(ctx context.Context, terms []string) ([]Article, error) {
	if len(terms) == 0 {
		return nil, nil
	}

	titleClauses := make([]string, 0, len(terms))
	matchClauses := make([]string, 0, len(terms))
	patterns := make([]any, 0, len(terms))
	for _, term := range terms {
		patterns = append(patterns, "%"+escapeLike(strings.ToLower(term))+"%")
		titleClauses = append(titleClauses, `lower(title) LIKE ? ESCAPE '\'`)
		matchClauses = append(matchClauses, `lower(title) LIKE ? ESCAPE '\' OR lower(body) LIKE ? ESCAPE '\'`)
	}

	args := make([]any, 0, len(patterns)*3+1)
	for _, p := range patterns {
		args = append(args, p, p)
	}
	args = append(args, patterns...)
	args = append(args, maxCandidateArticles)

	query := "SELECT id, title, body, category_name, created_at FROM knowledge_articles WHERE " +
		strings.Join(matchClauses, " OR ") +
		" ORDER BY CASE WHEN " + strings.Join(titleClauses, " OR ") + " THEN 0 ELSE 1 END," +
		" created_at DESC, id DESC LIMIT ?"
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query knowledge articles: %w", err)
	}
	defer rows.Close()

	var articles []Article
	for rows.Next() {
		var a Article
		if err := rows.Scan(&a.ID, &a.Title, &a.Body, &a.CategoryName, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan knowledge article row: %w", err)
		}
		articles = append(articles, a)
	}
	return articles, rows.Err()
}

func escapeLike(term string) string {
	return strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`).Replace(term)
}

func (s *SQLiteStore) CreateArticle(ctx context.Context, article *Article) error {
	if article.CreatedAt.IsZero() {
		article.CreatedAt = time.Now().UTC()
	}
	if strings.TrimSpace(article.CategoryName) == "" {
		article.CategoryName = "General"
	}
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO knowledge_articles (title, body, category_name, created_at) VALUES (?, ?, ?, ?)",
		article.Title, article.Body, article.CategoryName, article.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert knowledge article: %w", err)
	}
	article.ID, _ = res.LastInsertId()
	return nil
}

type articleFile struct {
	Articles []Article `yaml:"articles"`
}

// IngestArticlesFromFile loads knowledge articles from a YAML file of the form
//
//	articles:
//	  - title: Password Reset Guide
//	    category: Accounts
//	    body: |
//	      ...
//
// Articles whose title already exists are skipped, so the file can be re-run.
func (s *SQLiteStore) IngestArticlesFromFile(ctx context.Context, filePath string) (int, error) {
	contentBytes, err := os.ReadFile(filePath)
	if err != nil {
		return 0, fmt.Errorf("failed to read article file %s: %w", filePath, err)
	}

	var file articleFile
	if err := yaml.Unmarshal(contentBytes, &file); err != nil {
		return 0, fmt.Errorf("failed to parse article file %s: %w", filePath, err)
	}
	if len(file.Articles) == 0 {
		log.Printf("No articles found in %s. Expected a top-level 'articles' list.", filePath)
		return 0, nil
	}

	count := 0
	for i, article := range file.Articles {
		article.Title = strings.TrimSpace(article.Title)
		article.Body = strings.TrimSpace(article.Body)
		if article.Title == "" || article.Body == "" {
			log.Printf("Skipping article %d: title and body are required", i+1)
			continue
		}

		var exists int
		err := s.db.QueryRowContext(ctx, "SELECT 1 FROM knowledge_articles WHERE title = ?", article.Title).Scan(&exists)
		if err == nil {
			log.Printf("Skipping article %q: already present", article.Title)
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return count, fmt.Errorf("failed to check article %q: %w", article.Title, err)
		}

		if err := s.CreateArticle(ctx, &article); err != nil {
			log.Printf("Failed to store article %q: %v. Skipping.", article.Title, err)
			continue
		}
		count++
	}
	log.Printf("Successfully ingested %d articles.", count)
	return count, nil
}

// Ticket methods

func (s *SQLiteStore) CreateTicket(ctx context.Context, ticket *Ticket) error {
	ticket.CreatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO tickets (conversation_id, user_id, title, description, created_at) VALUES (?, ?, ?, ?, ?)",
		ticket.ConversationID, ticket.UserID, ticket.Title, ticket.Description, ticket.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert ticket: %w", err)
	}
	ticket.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read ticket id: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetTicketByID(ctx context.Context, id int64) (*Ticket, error) {
	var (
		t      Ticket
		userID sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, conversation_id, user_id, title, description, created_at FROM tickets WHERE id = ?", id).
		Scan(&t.ID, &t.ConversationID, &userID, &t.Title, &t.Description, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get ticket: %w", err)
	}
	if userID.Valid {
		t.UserID = &userID.Int64
	}
	return &t, nil
}

func expectAffected(res sql.Result, what string) error {
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}
