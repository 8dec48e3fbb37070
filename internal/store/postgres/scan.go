package postgres

import (
	"database/sql"
	"encoding/json"

	"github.com/streamglass/pulse/internal/model"
)

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanPost(row scanner) (*model.Post, error) {
	var (
		p       model.Post
		emotion sql.NullString
		emoConf sql.NullFloat64
	)
	err := row.Scan(
		&p.PostID, &p.Source, &p.Content, &p.Author, &p.CreatedAt, &p.IngestedAt,
		&p.SentimentLabel, &p.SentimentConfidence, &emotion, &emoConf, &p.ModelName,
	)
	if err != nil {
		return nil, err
	}
	if emotion.Valid {
		p.Emotion = &emotion.String
	}
	if emoConf.Valid {
		p.EmotionConfidence = &emoConf.Float64
	}
	return &p, nil
}

func scanPostWithTotal(row scanner) (*model.Post, int, error) {
	var (
		total   int
		p       model.Post
		emotion sql.NullString
		emoConf sql.NullFloat64
	)
	err := row.Scan(
		&total,
		&p.PostID, &p.Source, &p.Content, &p.Author, &p.CreatedAt, &p.IngestedAt,
		&p.SentimentLabel, &p.SentimentConfidence, &emotion, &emoConf, &p.ModelName,
	)
	if err != nil {
		return nil, 0, err
	}
	if emotion.Valid {
		p.Emotion = &emotion.String
	}
	if emoConf.Valid {
		p.EmotionConfidence = &emoConf.Float64
	}
	return &p, total, nil
}

func scanAlert(row scanner) (*model.Alert, error) {
	var (
		a       model.Alert
		details []byte
	)
	err := row.Scan(
		&a.ID, &a.AlertType, &a.ThresholdValue, &a.ActualValue,
		&a.WindowStart, &a.WindowEnd, &a.PostCount, &a.TriggeredAt, &details,
	)
	if err != nil {
		return nil, err
	}
	if len(details) > 0 {
		a.Details = json.RawMessage(details)
	}
	return &a, nil
}

func scanLabelCounts(rows *sql.Rows) ([]model.LabelCount, error) {
	var counts []model.LabelCount
	for rows.Next() {
		var lc model.LabelCount
		if err := rows.Scan(&lc.Label, &lc.Count); err != nil {
			return nil, err
		}
		counts = append(counts, lc)
	}
	return counts, rows.Err()
}

func nullStringPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullFloatPtr(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func jsonbBytes(raw json.RawMessage) []byte {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
