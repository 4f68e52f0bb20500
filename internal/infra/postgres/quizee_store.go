package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"quizee-service/internal/domain"
)

// QuizeeStore keeps quizees as JSONB documents in Postgres.
type QuizeeStore struct {
	pool *pgxpool.Pool
}

func NewQuizeeStore(pool *pgxpool.Pool) *QuizeeStore {
	return &QuizeeStore{pool: pool}
}

func (s *QuizeeStore) GetQuizee(ctx context.Context, quizID string) (domain.Quiz, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM quizees WHERE id=$1`, quizID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quizee: %w", err)
	}
	var quiz domain.Quiz
	if err := json.Unmarshal(raw, &quiz); err != nil {
		return domain.Quiz{}, fmt.Errorf("unmarshal quizee: %w", err)
	}
	return quiz, nil
}

func (s *QuizeeStore) ListQuizees(ctx context.Context) ([]domain.QuizInfo, error) {
	rows, err := s.pool.Query(ctx, `SELECT data->'info' FROM quizees ORDER BY updated_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list quizees: %w", err)
	}
	defer rows.Close()

	infos := make([]domain.QuizInfo, 0)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan quizee info: %w", err)
		}
		var info domain.QuizInfo
		if err := json.Unmarshal(raw, &info); err != nil {
			return nil, fmt.Errorf("unmarshal quizee info: %w", err)
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

// SaveQuizee inserts or replaces a quizee. Existing quizees can only be
// replaced by their owner; unowned rows are claimed by the first save.
func (s *QuizeeStore) SaveQuizee(ctx context.Context, ownerID string, quiz domain.Quiz) error {
	raw, err := json.Marshal(quiz)
	if err != nil {
		return fmt.Errorf("marshal quizee: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO quizees (id, owner_id, data) VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (id) DO UPDATE
		SET data = EXCLUDED.data, owner_id = EXCLUDED.owner_id, updated_at = now()
		WHERE quizees.owner_id = '' OR quizees.owner_id = EXCLUDED.owner_id`,
		quiz.Info.ID, ownerID, string(raw))
	if err != nil {
		return fmt.Errorf("save quizee: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotOwner
	}
	return nil
}
