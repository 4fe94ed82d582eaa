package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/quill/pkg/models"
)

// GetActorConfig returns the persisted configuration row for an actor kind.
// A kind that was never saved returns ErrNotFound.
func (db *DB) GetActorConfig(ctx context.Context, t models.ActorType) (*models.ActorConfig, error) {
	row := db.QueryRowContext(ctx, `
		SELECT actor_type, enabled, provider, model, temperature, max_tokens, safety, instructions, updated_at
		FROM actor_configs WHERE actor_type = ?
	`, string(t))

	c, err := scanActorConfig(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("actor config %s: %w", t, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get actor config: %w", err)
	}
	return c, nil
}

// SaveActorConfig inserts or replaces the configuration row for an actor kind.
func (db *DB) SaveActorConfig(ctx context.Context, c *models.ActorConfig) error {
	if !c.ActorType.Valid() {
		return fmt.Errorf("save actor config: unknown actor type %q", c.ActorType)
	}
	c.UpdatedAt = time.Now()
	_, err := db.ExecContext(ctx, `
		INSERT INTO actor_configs (actor_type, enabled, provider, model, temperature, max_tokens, safety, instructions, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(actor_type) DO UPDATE SET
			enabled = excluded.enabled,
			provider = excluded.provider,
			model = excluded.model,
			temperature = excluded.temperature,
			max_tokens = excluded.max_tokens,
			safety = excluded.safety,
			instructions = excluded.instructions,
			updated_at = excluded.updated_at
	`, string(c.ActorType), boolInt(c.Enabled), c.Provider, c.Model, c.Temperature, c.MaxTokens,
		c.Safety, c.Instructions, formatTime(c.UpdatedAt))
	if err != nil {
		return fmt.Errorf("save actor config: %w", err)
	}
	return nil
}

// ListActorConfigs lists every persisted actor configuration.
func (db *DB) ListActorConfigs(ctx context.Context) ([]models.ActorConfig, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT actor_type, enabled, provider, model, temperature, max_tokens, safety, instructions, updated_at
		FROM actor_configs ORDER BY actor_type
	`)
	if err != nil {
		return nil, fmt.Errorf("list actor configs: %w", err)
	}
	defer rows.Close()

	var configs []models.ActorConfig
	for rows.Next() {
		c, err := scanActorConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("scan actor config: %w", err)
		}
		configs = append(configs, *c)
	}
	return configs, rows.Err()
}

func scanActorConfig(row rowScanner) (*models.ActorConfig, error) {
	var c models.ActorConfig
	var actorType, updatedAt string
	var enabled int
	var provider, model, safety, instructions sql.NullString
	err := row.Scan(&actorType, &enabled, &provider, &model, &c.Temperature, &c.MaxTokens,
		&safety, &instructions, &updatedAt)
	if err != nil {
		return nil, err
	}
	c.ActorType = models.ActorType(actorType)
	c.Enabled = enabled != 0
	c.Provider = provider.String
	c.Model = model.String
	c.Safety = safety.String
	c.Instructions = instructions.String
	c.UpdatedAt, _ = parseTime(updatedAt)
	return &c, nil
}

// SaveCustomActor inserts or replaces a custom actor definition.
func (db *DB) SaveCustomActor(ctx context.Context, a *models.CustomActor) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	if a.Name == "" || a.Instructions == "" {
		return fmt.Errorf("save custom actor: name and instructions are required")
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO custom_actors (id, board_id, name, description, instructions, provider, model, enabled, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			board_id = excluded.board_id,
			name = excluded.name,
			description = excluded.description,
			instructions = excluded.instructions,
			provider = excluded.provider,
			model = excluded.model,
			enabled = excluded.enabled
	`, a.ID, a.BoardID, a.Name, a.Description, a.Instructions, a.Provider, a.Model,
		boolInt(a.Enabled), formatTime(a.CreatedAt))
	if err != nil {
		return fmt.Errorf("save custom actor: %w", err)
	}
	return nil
}

// GetCustomActor retrieves a custom actor definition by ID.
func (db *DB) GetCustomActor(ctx context.Context, id string) (*models.CustomActor, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, board_id, name, description, instructions, provider, model, enabled, created_at
		FROM custom_actors WHERE id = ?
	`, id)
	a, err := scanCustomActor(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("custom actor %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get custom actor: %w", err)
	}
	return a, nil
}

// ListCustomActors lists custom actors visible to a board: its own plus the
// global ones (empty board id). An empty boardID lists every definition.
func (db *DB) ListCustomActors(ctx context.Context, boardID string) ([]models.CustomActor, error) {
	query := `
		SELECT id, board_id, name, description, instructions, provider, model, enabled, created_at
		FROM custom_actors`
	var args []any
	if boardID != "" {
		query += ` WHERE board_id = ? OR board_id = '' OR board_id IS NULL`
		args = append(args, boardID)
	}
	query += ` ORDER BY created_at, rowid`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list custom actors: %w", err)
	}
	defer rows.Close()

	var actors []models.CustomActor
	for rows.Next() {
		a, err := scanCustomActor(rows)
		if err != nil {
			return nil, fmt.Errorf("scan custom actor: %w", err)
		}
		actors = append(actors, *a)
	}
	return actors, rows.Err()
}

func scanCustomActor(row rowScanner) (*models.CustomActor, error) {
	var a models.CustomActor
	var boardID, description, provider, model sql.NullString
	var enabled int
	var createdAt string
	err := row.Scan(&a.ID, &boardID, &a.Name, &description, &a.Instructions, &provider, &model,
		&enabled, &createdAt)
	if err != nil {
		return nil, err
	}
	a.BoardID = boardID.String
	a.Description = description.String
	a.Provider = provider.String
	a.Model = model.String
	a.Enabled = enabled != 0
	a.CreatedAt, _ = parseTime(createdAt)
	return &a, nil
}
