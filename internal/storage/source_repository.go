package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/insight-scraper/internal/models"
)

// SourceRepository handles the tracked target list and the scraped
// content written back for each target.
type SourceRepository struct {
	db *PostgresDB
}

// NewSourceRepository creates a new source repository
func NewSourceRepository(db *PostgresDB) *SourceRepository {
	return &SourceRepository{db: db}
}

// ListUsernames returns every tracked handle. This is the batch mode
// target list.
func (r *SourceRepository) ListUsernames(ctx context.Context) ([]string, error) {
	query := `SELECT username FROM insight_sources ORDER BY username`

	rows, err := r.db.Pool().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list source usernames: %w", err)
	}
	defer rows.Close()

	var usernames []string
	for rows.Next() {
		var username string
		if err := rows.Scan(&username); err != nil {
			return nil, fmt.Errorf("failed to scan source username: %w", err)
		}
		usernames = append(usernames, username)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating source usernames: %w", err)
	}

	return usernames, nil
}

// UpsertFromProfile creates or refreshes the source row for a scraped
// profile. Profiles without a user id are skipped.
func (r *SourceRepository) UpsertFromProfile(ctx context.Context, profile *models.Profile) error {
	if profile == nil || profile.UserID == "" {
		return nil
	}

	query := `
		INSERT INTO insight_sources (
			id, name, username, icon, bio, twitter_url,
			followers_count, following_count, tweets_count,
			is_private, is_verified, location, website
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			username = EXCLUDED.username,
			icon = EXCLUDED.icon,
			bio = EXCLUDED.bio,
			twitter_url = EXCLUDED.twitter_url,
			followers_count = EXCLUDED.followers_count,
			following_count = EXCLUDED.following_count,
			tweets_count = EXCLUDED.tweets_count,
			is_private = EXCLUDED.is_private,
			is_verified = EXCLUDED.is_verified,
			location = EXCLUDED.location,
			website = EXCLUDED.website`

	_, err := r.db.Pool().Exec(ctx, query,
		profile.UserID,
		profile.Name,
		profile.Username,
		profile.Avatar,
		profile.Biography,
		profile.URL,
		profile.FollowersCount,
		profile.FollowingCount,
		profile.TweetsCount,
		profile.IsPrivate,
		profile.IsVerified,
		profile.Location,
		profile.Website,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert source profile: %w", err)
	}
	return nil
}

// InsertTweets inserts tweets for a source, skipping tweet ids already
// stored. Returns the number of newly inserted rows.
func (r *SourceRepository) InsertTweets(ctx context.Context, tweets []models.Tweet) (int, error) {
	inserted := 0
	for _, tweet := range tweets {
		photos, err := json.Marshal(tweet.Photos)
		if err != nil {
			return inserted, fmt.Errorf("failed to marshal tweet photos: %w", err)
		}
		videos, err := json.Marshal(tweet.Videos)
		if err != nil {
			return inserted, fmt.Errorf("failed to marshal tweet videos: %w", err)
		}
		urls, err := json.Marshal(tweet.URLs)
		if err != nil {
			return inserted, fmt.Errorf("failed to marshal tweet urls: %w", err)
		}

		query := `
			INSERT INTO insight_source_tweets (
				tweet_id, tweet_text, tweet_url, tweet_author_id,
				tweet_images, tweet_videos, tweet_urls, tweet_created_at
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (tweet_id) DO NOTHING`

		tag, err := r.db.Pool().Exec(ctx, query,
			tweet.TweetID,
			tweet.Text,
			tweet.URL,
			tweet.AuthorID,
			photos,
			videos,
			urls,
			tweet.CreatedAt,
		)
		if err != nil {
			return inserted, fmt.Errorf("failed to insert tweet %s: %w", tweet.TweetID, err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}
