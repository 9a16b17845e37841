package db

import (
	"context"

	"github.com/raphaelgruber/spoilerguard/internal/models"
)

const episodeFields = `record::id(id) AS id, title_id, season, number, name, duration_ms`

func (c *Client) UpsertTitle(ctx context.Context, t models.Title) error {
	return c.exec(ctx, "upsert title", `
		UPSERT type::record("title", $id) SET
			name = $name,
			description = $description
	`, map[string]any{"id": t.ID, "name": t.Name, "description": t.Description})
}

func (c *Client) UpsertEpisode(ctx context.Context, e models.Episode) error {
	return c.exec(ctx, "upsert episode", `
		UPSERT type::record("episode", $id) SET
			title_id = $title,
			season = $season,
			number = $number,
			name = $name,
			duration_ms = $duration
	`, map[string]any{
		"id":       e.ID,
		"title":    e.TitleID,
		"season":   e.Season,
		"number":   e.Number,
		"name":     e.Name,
		"duration": e.DurationMs,
	})
}

// GetEpisode retrieves an episode by ID.
// Returns nil if not found.
func (c *Client) GetEpisode(ctx context.Context, id string) (*models.Episode, error) {
	return queryOne[models.Episode](ctx, c, "get episode",
		`SELECT `+episodeFields+` FROM type::record("episode", $id)`,
		map[string]any{"id": id})
}
