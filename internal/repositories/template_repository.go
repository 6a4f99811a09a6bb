package repositories

import (
	"context"
	"encoding/json"
	"fmt"

	"civicforge/internal/database"
	"civicforge/internal/models"

	"github.com/gofrs/uuid"
	"go.uber.org/zap"
)

// templateRepository implements TemplateRepository on Postgres
type templateRepository struct {
	*BaseRepository
}

// NewTemplateRepository creates a template repository
func NewTemplateRepository(db *database.Manager, logger *zap.Logger) TemplateRepository {
	return &templateRepository{BaseRepository: NewBaseRepository(db, logger)}
}

const templateColumns = `id, slug, name, description, value_statement, config, created_at`

func scanTemplate(row interface{ Scan(...interface{}) error }) (*models.GameTemplate, error) {
	var t models.GameTemplate
	var rawConfig []byte
	err := row.Scan(&t.ID, &t.Slug, &t.Name, &t.Description,
		&t.ValueStatement, &rawConfig, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	if len(rawConfig) > 0 {
		if err := json.Unmarshal(rawConfig, &t.Config); err != nil {
			return nil, fmt.Errorf("failed to decode template config: %w", err)
		}
	}
	return &t, nil
}

func (r *templateRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.GameTemplate, error) {
	query := fmt.Sprintf(`SELECT %s FROM game_templates WHERE id = $1`, templateColumns)
	template, err := scanTemplate(r.db.QueryRowContext(ctx, query, id))
	if IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	return template, nil
}

func (r *templateRepository) GetBySlug(ctx context.Context, slug string) (*models.GameTemplate, error) {
	query := fmt.Sprintf(`SELECT %s FROM game_templates WHERE slug = $1`, templateColumns)
	template, err := scanTemplate(r.db.QueryRowContext(ctx, query, slug))
	if IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get template by slug: %w", err)
	}
	return template, nil
}

func (r *templateRepository) List(ctx context.Context) ([]*models.GameTemplate, error) {
	query := fmt.Sprintf(`SELECT %s FROM game_templates ORDER BY name`, templateColumns)
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	defer rows.Close()

	var templates []*models.GameTemplate
	for rows.Next() {
		template, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan template: %w", err)
		}
		templates = append(templates, template)
	}
	return templates, rows.Err()
}
