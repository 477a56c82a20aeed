package sqlqueue

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/soroosh-tanzadeh/bgqueue/contracts"
)

func parseID(id string) (int64, bool) {
	n, err := strconv.ParseInt(id, 10, 64)
	return n, err == nil
}

// Push inserts a row for subjectID unless one is already pending in queue.
func (s *Store) Push(ctx context.Context, queue, subjectID string, payload contracts.Payload) (string, error) {
	encoded, err := payload.Encode()
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}

	res, err := s.execWithRetry(ctx,
		`INSERT INTO queue_items (queue_name, subject_id, attempts, payload, created_at)
		 VALUES (?, ?, 0, ?, ?)
		 ON CONFLICT (queue_name, subject_id) DO NOTHING`,
		queue, subjectID, encoded, time.Now().Unix(),
	)
	if err != nil {
		return "", fmt.Errorf("insert item: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("insert item: %w", err)
	}
	if affected == 0 {
		return "", contracts.ErrDuplicateItem
	}

	id, err := res.LastInsertId()
	if err != nil {
		return "", fmt.Errorf("insert item: %w", err)
	}
	return strconv.FormatInt(id, 10), nil
}

func (s *Store) PeekBatch(ctx context.Context, queue string, limit int) ([]contracts.QueueItem, error) {
	items := []contracts.QueueItem{}
	if limit <= 0 {
		return items, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, queue_name, subject_id, attempts, payload
		 FROM queue_items
		 WHERE queue_name = ?
		 ORDER BY id ASC
		 LIMIT ?`,
		queue, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select batch: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id      int64
			item    contracts.QueueItem
			payload string
		)
		if err := rows.Scan(&id, &item.Queue, &item.SubjectID, &item.Attempts, &payload); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		item.ID = strconv.FormatInt(id, 10)
		if item.Payload, err = contracts.DecodePayload(payload); err != nil {
			return nil, fmt.Errorf("decode payload of item %d: %w", id, err)
		}
		items = append(items, item)
	}

	return items, rows.Err()
}

func (s *Store) execOne(ctx context.Context, query string, args ...any) error {
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return contracts.ErrItemNotFound
	}
	return nil
}

func (s *Store) MarkAttempt(ctx context.Context, id string) error {
	rowID, ok := parseID(id)
	if !ok {
		return contracts.ErrItemNotFound
	}
	return s.execOne(ctx, "UPDATE queue_items SET attempts = attempts + 1 WHERE id = ?", rowID)
}

func (s *Store) UpdatePayload(ctx context.Context, id string, payload contracts.Payload) error {
	rowID, ok := parseID(id)
	if !ok {
		return contracts.ErrItemNotFound
	}
	encoded, err := payload.Encode()
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	return s.execOne(ctx, "UPDATE queue_items SET payload = ? WHERE id = ?", encoded, rowID)
}

func (s *Store) Delete(ctx context.Context, id string) error {
	rowID, ok := parseID(id)
	if !ok {
		return contracts.ErrItemNotFound
	}
	return s.execOne(ctx, "DELETE FROM queue_items WHERE id = ?", rowID)
}

func (s *Store) Count(ctx context.Context, queue string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM queue_items WHERE queue_name = ?", queue).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count items: %w", err)
	}
	return count, nil
}

func (s *Store) DeleteQueue(ctx context.Context, queue string) (int64, error) {
	res, err := s.execWithRetry(ctx, "DELETE FROM queue_items WHERE queue_name = ?", queue)
	if err != nil {
		return 0, fmt.Errorf("delete queue: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) Queues(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT queue_name FROM queue_items ORDER BY queue_name")
	if err != nil {
		return nil, fmt.Errorf("list queues: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

var _ contracts.QueueStore = (*Store)(nil)
