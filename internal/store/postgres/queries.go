package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/streamglass/pulse/internal/model"
)

// postColumns is the column list used for SELECT statements on the posts table.
const postColumns = `post_id, source, content, author, created_at, ingested_at,
	sentiment_label, sentiment_confidence, emotion, emotion_confidence, model_name`

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func queryUpsertPost(ctx context.Context, db executor, p *model.Post) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO posts (
			post_id, source, content, author, created_at, ingested_at,
			sentiment_label, sentiment_confidence, emotion, emotion_confidence, model_name
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11
		)
		ON CONFLICT (post_id) DO UPDATE SET
			sentiment_label = EXCLUDED.sentiment_label,
			sentiment_confidence = EXCLUDED.sentiment_confidence,
			emotion = EXCLUDED.emotion,
			emotion_confidence = EXCLUDED.emotion_confidence,
			model_name = EXCLUDED.model_name`,
		p.PostID,
		p.Source,
		p.Content,
		p.Author,
		p.CreatedAt,
		p.IngestedAt,
		p.SentimentLabel,
		p.SentimentConfidence,
		nullStringPtr(p.Emotion),
		nullFloatPtr(p.EmotionConfidence),
		p.ModelName,
	)
	return err
}

func queryListPosts(ctx context.Context, db executor, filter model.PostFilter) ([]*model.Post, int, error) {
	var (
		whereClauses []string
		args         []any
		argIdx       int
	)

	nextArg := func() string {
		argIdx++
		return fmt.Sprintf("$%d", argIdx)
	}

	if filter.Source != "" {
		whereClauses = append(whereClauses, "source = "+nextArg())
		args = append(args, filter.Source)
	}
	if filter.Sentiment != "" {
		whereClauses = append(whereClauses, "sentiment_label = "+nextArg())
		args = append(args, filter.Sentiment)
	}
	if filter.Start != nil {
		whereClauses = append(whereClauses, "created_at >= "+nextArg())
		args = append(args, *filter.Start)
	}
	if filter.End != nil {
		whereClauses = append(whereClauses, "created_at <= "+nextArg())
		args = append(args, *filter.End)
	}

	where := ""
	if len(whereClauses) > 0 {
		where = " WHERE " + strings.Join(whereClauses, " AND ")
	}

	query := `SELECT COUNT(*) OVER() AS total_count, ` + postColumns +
		` FROM posts` + where + ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		query += " LIMIT " + nextArg()
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET " + nextArg()
		args = append(args, filter.Offset)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var (
		posts []*model.Post
		total int
	)
	for rows.Next() {
		p, rowTotal, err := scanPostWithTotal(rows)
		if err != nil {
			return nil, 0, err
		}
		total = rowTotal
		posts = append(posts, p)
	}
	return posts, total, rows.Err()
}

func queryPostsSince(ctx context.Context, db executor, since time.Time) ([]*model.Post, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+postColumns+`
		FROM posts WHERE ingested_at > $1 ORDER BY ingested_at`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []*model.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

func querySentimentBuckets(ctx context.Context, db executor, period string, start, end time.Time, source string) ([]model.BucketRow, error) {
	args := []any{period, start, end}
	sourceClause := ""
	if source != "" {
		sourceClause = " AND source = $4"
		args = append(args, source)
	}

	rows, err := db.QueryContext(ctx, `
		SELECT date_trunc($1, created_at) AS time_bucket,
			sentiment_label,
			COUNT(*) AS count,
			AVG(sentiment_confidence) AS avg_confidence
		FROM posts
		WHERE created_at >= $2 AND created_at < $3`+sourceClause+`
		GROUP BY time_bucket, sentiment_label
		ORDER BY time_bucket`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var buckets []model.BucketRow
	for rows.Next() {
		var b model.BucketRow
		if err := rows.Scan(&b.Bucket, &b.Label, &b.Count, &b.AvgConfidence); err != nil {
			return nil, err
		}
		buckets = append(buckets, b)
	}
	return buckets, rows.Err()
}

func querySentimentCounts(ctx context.Context, db executor, start, end time.Time, source string) ([]model.LabelCount, error) {
	args := []any{start, end}
	sourceClause := ""
	if source != "" {
		sourceClause = " AND source = $3"
		args = append(args, source)
	}

	rows, err := db.QueryContext(ctx, `
		SELECT sentiment_label, COUNT(*) AS count
		FROM posts
		WHERE created_at >= $1 AND created_at < $2`+sourceClause+`
		GROUP BY sentiment_label`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanLabelCounts(rows)
}

func queryTopEmotions(ctx context.Context, db executor, start, end time.Time, source string, limit int) ([]model.LabelCount, error) {
	args := []any{start, end}
	argIdx := 2
	sourceClause := ""
	if source != "" {
		argIdx++
		sourceClause = fmt.Sprintf(" AND source = $%d", argIdx)
		args = append(args, source)
	}
	argIdx++
	args = append(args, limit)

	rows, err := db.QueryContext(ctx, fmt.Sprintf(`
		SELECT emotion, COUNT(*) AS count
		FROM posts
		WHERE created_at >= $1 AND created_at < $2 AND emotion IS NOT NULL%s
		GROUP BY emotion
		ORDER BY count DESC
		LIMIT $%d`, sourceClause, argIdx), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanLabelCounts(rows)
}

func queryInsertAlert(ctx context.Context, db executor, a *model.Alert) error {
	return db.QueryRowContext(ctx, `
		INSERT INTO sentiment_alerts (
			alert_type, threshold_value, actual_value,
			window_start, window_end, post_count, triggered_at, details
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		a.AlertType,
		a.ThresholdValue,
		a.ActualValue,
		a.WindowStart,
		a.WindowEnd,
		a.PostCount,
		a.TriggeredAt,
		jsonbBytes(a.Details),
	).Scan(&a.ID)
}

func queryListAlerts(ctx context.Context, db executor, limit int) ([]*model.Alert, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, alert_type, threshold_value, actual_value,
			window_start, window_end, post_count, triggered_at, details
		FROM sentiment_alerts
		ORDER BY triggered_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []*model.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}
