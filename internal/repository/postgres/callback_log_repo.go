package postgres

import (
	"context"
	"fmt"

	"scan2pay-service/internal/domain"
)

func (s *Store) RecordCallback(ctx context.Context, rec *domain.CallbackRecord) error {
	query := `
		INSERT INTO callback_log (correlation_id, result_code, resolution, payload)
		VALUES ($1, $2, $3, $4)
		RETURNING id, received_at`

	var payload []byte
	if len(rec.Payload) > 0 {
		payload = rec.Payload
	}

	err := s.db.QueryRow(ctx, query,
		rec.CorrelationID,
		rec.ResultCode,
		string(rec.Resolution),
		payload,
	).Scan(&rec.ID, &rec.ReceivedAt)
	if err != nil {
		return mapError(fmt.Errorf("insert callback log: %w", err))
	}
	return nil
}
