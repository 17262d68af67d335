package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/statement-insights/internal/store"
	"google.golang.org/api/iterator"
)

const insightsCacheTable = "insights_cache"

// GetLatestCacheWithClient retrieves the most recently generated cache row
// of the user whose expiry is strictly after now. Returns nil when no valid
// row exists; an expired row is treated the same as no row at all.
func GetLatestCacheWithClient(ctx context.Context, client *bigquery.Client, dataset, userID string, now time.Time) (*store.InsightsCacheRow, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT
			cache_id,
			user_id,
			insights_data,
			generated_at,
			expires_at
		FROM %s.%s
		WHERE user_id = @user_id
		  AND expires_at > @now
		ORDER BY generated_at DESC
		LIMIT 1
	`, dataset, insightsCacheTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "now", Value: now},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("GetLatestCache: query read: %w", err)
	}

	var row store.InsightsCacheRow
	err = it.Next(&row)
	if err == iterator.Done {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetLatestCache: reading row: %w", err)
	}

	return &row, nil
}

// DeleteCacheWithClient removes all cache rows of the user. Called before
// inserting a fresh row so at most one live row exists per user.
func DeleteCacheWithClient(ctx context.Context, client *bigquery.Client, dataset, userID string) error {
	q := client.Query(fmt.Sprintf(`
		DELETE FROM %s.%s
		WHERE user_id = @user_id
	`, dataset, insightsCacheTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
	}

	if _, err := runDML(ctx, q); err != nil {
		return fmt.Errorf("DeleteCache: %w", err)
	}
	return nil
}

// InsertCacheWithClient inserts a single cache row via DML so it is
// immediately deletable when the next regeneration supersedes it.
func InsertCacheWithClient(ctx context.Context, client *bigquery.Client, dataset string, row *store.InsightsCacheRow) error {
	q := client.Query(fmt.Sprintf(`
		INSERT %s.%s (
			cache_id,
			user_id,
			insights_data,
			generated_at,
			expires_at
		)
		VALUES (
			@cache_id,
			@user_id,
			@insights_data,
			@generated_at,
			@expires_at
		)
	`, dataset, insightsCacheTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "cache_id", Value: row.CacheID},
		{Name: "user_id", Value: row.UserID},
		{Name: "insights_data", Value: row.InsightsJSON},
		{Name: "generated_at", Value: row.GeneratedAt},
		{Name: "expires_at", Value: row.ExpiresAt},
	}

	if _, err := runDML(ctx, q); err != nil {
		return fmt.Errorf("InsertCache: %w", err)
	}
	return nil
}
