package store

import (
	"time"

	"github.com/sqlmerr/twotty/internal/models"
)

// RecordActivity stores a into activity_by_user. Records are idempotent on
// (user_id, occurred_at, activity_id), so redelivered messages overwrite
// themselves.
func (s *Store) RecordActivity(a models.Activity) error {
	if err := s.Session.Query(`
		INSERT INTO activity_by_user (user_id, occurred_at, activity_id, username, kind, subject)
		VALUES (?, ?, ?, ?, ?, ?)`,
		a.UserID, a.OccurredAt, a.ID, a.Username, string(a.Kind), a.Subject,
	).Exec(); err != nil {
		logg.Error("store", "Failed to record activity", err)
		return err
	}

	logg.Debug("store", "Activity recorded (user IDs anonymized)")
	return nil
}

// ListActivity returns the newest limit records of userID.
func (s *Store) ListActivity(userID string, limit int) ([]models.Activity, error) {
	iter := s.Session.Query(`
		SELECT activity_id, username, kind, subject, occurred_at
		FROM activity_by_user WHERE user_id = ? LIMIT ?`,
		userID, limit,
	).Iter()

	var res []models.Activity
	var id, username, kind, subject string
	var occurred time.Time

	for iter.Scan(&id, &username, &kind, &subject, &occurred) {
		res = append(res, models.Activity{
			ID:         id,
			UserID:     userID,
			Username:   username,
			Kind:       models.ActivityKind(kind),
			Subject:    subject,
			OccurredAt: occurred,
		})
	}

	if err := iter.Close(); err != nil {
		logg.Error("store", "Failed to list activity", err)
		return nil, err
	}

	return res, nil
}
