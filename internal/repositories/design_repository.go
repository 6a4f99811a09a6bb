package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"civicforge/internal/database"
	"civicforge/internal/models"

	"github.com/gofrs/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

// designRepository implements DesignRepository on Postgres
type designRepository struct {
	*BaseRepository
}

// NewDesignRepository creates a design repository
func NewDesignRepository(db *database.Manager, logger *zap.Logger) DesignRepository {
	return &designRepository{BaseRepository: NewBaseRepository(db, logger)}
}

const designColumns = `id, community_id, name, description, value_statement,
	design_rationale, status, version, previous_version_id, template_id,
	created_by, submitted_proposal_id, activated_by_proposal_id, sunset_at,
	created_at, updated_at`

func scanDesign(row interface{ Scan(...interface{}) error }) (*models.GameDesign, error) {
	var d models.GameDesign
	err := row.Scan(
		&d.ID, &d.CommunityID, &d.Name, &d.Description, &d.ValueStatement,
		&d.DesignRationale, &d.Status, &d.Version, &d.PreviousVersionID,
		&d.TemplateID, &d.CreatedBy, &d.SubmittedProposalID,
		&d.ActivatedByProposalID, &d.SunsetAt, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *designRepository) Create(ctx context.Context, design *models.GameDesign) error {
	query := `
		INSERT INTO game_designs (community_id, name, description,
			value_statement, design_rationale, status, version,
			previous_version_id, template_id, created_by, sunset_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		design.CommunityID, design.Name, design.Description,
		design.ValueStatement, design.DesignRationale, design.Status,
		design.Version, design.PreviousVersionID, design.TemplateID,
		design.CreatedBy, design.SunsetAt,
	).Scan(&design.ID, &design.CreatedAt, &design.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create design: %w", err)
	}
	return nil
}

// CreateWithChildren creates a design and seeds its child collections from
// a template config in one transaction. A failed seed rolls everything back.
func (r *designRepository) CreateWithChildren(ctx context.Context, design *models.GameDesign, cfg *models.TemplateConfig) error {
	return r.WithTransaction(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			INSERT INTO game_designs (community_id, name, description,
				value_statement, design_rationale, status, version,
				previous_version_id, template_id, created_by, sunset_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			RETURNING id, created_at, updated_at`,
			design.CommunityID, design.Name, design.Description,
			design.ValueStatement, design.DesignRationale, design.Status,
			design.Version, design.PreviousVersionID, design.TemplateID,
			design.CreatedBy, design.SunsetAt,
		).Scan(&design.ID, &design.CreatedAt, &design.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to create design: %w", err)
		}
		return seedChildren(ctx, tx, design.ID, cfg)
	})
}

func seedChildren(ctx context.Context, tx *sql.Tx, designID uuid.UUID, cfg *models.TemplateConfig) error {
	for _, qt := range cfg.QuestTypes {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO game_quest_types (game_design_id, slug, label,
				description, validation_method, validation_threshold,
				recognition_type, base_recognition, narrative_prompt,
				cooldown_hours, max_party_size, sort_order)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			designID, qt.Slug, qt.Label, qt.Description, qt.ValidationMethod,
			qt.ValidationThreshold, qt.RecognitionType, qt.BaseRecognition,
			qt.NarrativePrompt, qt.CooldownHours, qt.MaxPartySize, qt.SortOrder)
		if err != nil {
			return fmt.Errorf("failed to seed quest type %q: %w", qt.Slug, err)
		}
	}
	for _, sd := range cfg.SkillDomains {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO game_skill_domains (game_design_id, slug, label,
				description, examples, visibility_default, sort_order)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			designID, sd.Slug, sd.Label, sd.Description,
			pq.Array([]string(sd.Examples)), sd.VisibilityDefault, sd.SortOrder)
		if err != nil {
			return fmt.Errorf("failed to seed skill domain %q: %w", sd.Slug, err)
		}
	}
	for _, rt := range cfg.RecognitionTiers {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO game_recognition_tiers (game_design_id, tier_number,
				name, threshold_type, threshold_value, unlocks)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			designID, rt.TierNumber, rt.Name, rt.ThresholdType,
			rt.ThresholdValue, pq.Array([]string(rt.Unlocks)))
		if err != nil {
			return fmt.Errorf("failed to seed recognition tier %q: %w", rt.Name, err)
		}
	}
	for _, rs := range cfg.RecognitionSources {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO game_recognition_sources (game_design_id, source_type,
				amount, max_per_day)
			VALUES ($1, $2, $3, $4)`,
			designID, rs.SourceType, rs.Amount, rs.MaxPerDay)
		if err != nil {
			return fmt.Errorf("failed to seed recognition source %q: %w", rs.SourceType, err)
		}
	}
	return nil
}

func (r *designRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.GameDesign, error) {
	query := fmt.Sprintf(`SELECT %s FROM game_designs WHERE id = $1`, designColumns)
	design, err := scanDesign(r.db.QueryRowContext(ctx, query, id))
	if IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get design: %w", err)
	}
	return design, nil
}

func (r *designRepository) GetActiveByCommunity(ctx context.Context, communityID uuid.UUID) (*models.GameDesign, error) {
	query := fmt.Sprintf(`SELECT %s FROM game_designs WHERE community_id = $1 AND status = $2`, designColumns)
	design, err := scanDesign(r.db.QueryRowContext(ctx, query, communityID, models.DesignStatusActive))
	if IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active design: %w", err)
	}
	return design, nil
}

func (r *designRepository) GetBySubmittedProposal(ctx context.Context, proposalID uuid.UUID) (*models.GameDesign, error) {
	query := fmt.Sprintf(`SELECT %s FROM game_designs WHERE submitted_proposal_id = $1`, designColumns)
	design, err := scanDesign(r.db.QueryRowContext(ctx, query, proposalID))
	if IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get design by proposal: %w", err)
	}
	return design, nil
}

func (r *designRepository) ListByCommunity(ctx context.Context, communityID uuid.UUID) ([]*models.GameDesign, error) {
	query := fmt.Sprintf(`SELECT %s FROM game_designs WHERE community_id = $1 ORDER BY version DESC, created_at DESC`, designColumns)
	rows, err := r.db.QueryContext(ctx, query, communityID)
	if err != nil {
		return nil, fmt.Errorf("failed to list designs: %w", err)
	}
	defer rows.Close()

	var designs []*models.GameDesign
	for rows.Next() {
		design, err := scanDesign(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan design: %w", err)
		}
		designs = append(designs, design)
	}
	return designs, rows.Err()
}

func (r *designRepository) UpdateHeader(ctx context.Context, design *models.GameDesign) error {
	query := `
		UPDATE game_designs
		SET name = $1, description = $2, value_statement = $3,
			design_rationale = $4, sunset_at = $5, updated_at = NOW()
		WHERE id = $6
		RETURNING updated_at`

	err := r.db.QueryRowContext(ctx, query,
		design.Name, design.Description, design.ValueStatement,
		design.DesignRationale, design.SunsetAt, design.ID,
	).Scan(&design.UpdatedAt)
	if IsNotFound(err) {
		return ErrStaleTransition
	}
	if err != nil {
		return fmt.Errorf("failed to update design: %w", err)
	}
	return nil
}

// Lock stamps the submitted proposal onto an unlocked draft. Conditional on
// the design still being an unsubmitted draft.
func (r *designRepository) Lock(ctx context.Context, designID, proposalID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE game_designs
		SET submitted_proposal_id = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3 AND submitted_proposal_id IS NULL`,
		proposalID, designID, models.DesignStatusDraft)
	if err != nil {
		return fmt.Errorf("failed to lock design: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check lock result: %w", err)
	}
	if affected == 0 {
		return ErrStaleTransition
	}
	return nil
}

// ===============================
// QUEST TYPES
// ===============================

func (r *designRepository) ListQuestTypes(ctx context.Context, designID uuid.UUID) ([]models.QuestType, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, game_design_id, slug, label, description,
			validation_method, validation_threshold, recognition_type,
			base_recognition, narrative_prompt, cooldown_hours,
			max_party_size, sort_order
		FROM game_quest_types
		WHERE game_design_id = $1
		ORDER BY sort_order, slug`, designID)
	if err != nil {
		return nil, fmt.Errorf("failed to list quest types: %w", err)
	}
	defer rows.Close()

	var result []models.QuestType
	for rows.Next() {
		var qt models.QuestType
		if err := rows.Scan(&qt.ID, &qt.GameDesignID, &qt.Slug, &qt.Label,
			&qt.Description, &qt.ValidationMethod, &qt.ValidationThreshold,
			&qt.RecognitionType, &qt.BaseRecognition, &qt.NarrativePrompt,
			&qt.CooldownHours, &qt.MaxPartySize, &qt.SortOrder); err != nil {
			return nil, fmt.Errorf("failed to scan quest type: %w", err)
		}
		result = append(result, qt)
	}
	return result, rows.Err()
}

func (r *designRepository) AddQuestType(ctx context.Context, qt *models.QuestType) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO game_quest_types (game_design_id, slug, label,
			description, validation_method, validation_threshold,
			recognition_type, base_recognition, narrative_prompt,
			cooldown_hours, max_party_size, sort_order)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`,
		qt.GameDesignID, qt.Slug, qt.Label, qt.Description,
		qt.ValidationMethod, qt.ValidationThreshold, qt.RecognitionType,
		qt.BaseRecognition, qt.NarrativePrompt, qt.CooldownHours,
		qt.MaxPartySize, qt.SortOrder,
	).Scan(&qt.ID)
	if err != nil {
		return fmt.Errorf("failed to add quest type: %w", err)
	}
	return nil
}

func (r *designRepository) UpdateQuestType(ctx context.Context, qt *models.QuestType) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE game_quest_types
		SET label = $1, description = $2, validation_method = $3,
			validation_threshold = $4, recognition_type = $5,
			base_recognition = $6, narrative_prompt = $7,
			cooldown_hours = $8, max_party_size = $9, sort_order = $10
		WHERE game_design_id = $11 AND slug = $12`,
		qt.Label, qt.Description, qt.ValidationMethod,
		qt.ValidationThreshold, qt.RecognitionType, qt.BaseRecognition,
		qt.NarrativePrompt, qt.CooldownHours, qt.MaxPartySize, qt.SortOrder,
		qt.GameDesignID, qt.Slug)
	if err != nil {
		return fmt.Errorf("failed to update quest type: %w", err)
	}
	return requireRows(result)
}

func (r *designRepository) DeleteQuestType(ctx context.Context, designID uuid.UUID, slug string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM game_quest_types WHERE game_design_id = $1 AND slug = $2`,
		designID, slug)
	if err != nil {
		return fmt.Errorf("failed to delete quest type: %w", err)
	}
	return requireRows(result)
}

// ===============================
// SKILL DOMAINS
// ===============================

func (r *designRepository) ListSkillDomains(ctx context.Context, designID uuid.UUID) ([]models.SkillDomain, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, game_design_id, slug, label, description, examples,
			visibility_default, sort_order
		FROM game_skill_domains
		WHERE game_design_id = $1
		ORDER BY sort_order, slug`, designID)
	if err != nil {
		return nil, fmt.Errorf("failed to list skill domains: %w", err)
	}
	defer rows.Close()

	var result []models.SkillDomain
	for rows.Next() {
		var sd models.SkillDomain
		if err := rows.Scan(&sd.ID, &sd.GameDesignID, &sd.Slug, &sd.Label,
			&sd.Description, &sd.Examples, &sd.VisibilityDefault,
			&sd.SortOrder); err != nil {
			return nil, fmt.Errorf("failed to scan skill domain: %w", err)
		}
		result = append(result, sd)
	}
	return result, rows.Err()
}

func (r *designRepository) AddSkillDomain(ctx context.Context, sd *models.SkillDomain) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO game_skill_domains (game_design_id, slug, label,
			description, examples, visibility_default, sort_order)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		sd.GameDesignID, sd.Slug, sd.Label, sd.Description,
		pq.Array([]string(sd.Examples)), sd.VisibilityDefault, sd.SortOrder,
	).Scan(&sd.ID)
	if err != nil {
		return fmt.Errorf("failed to add skill domain: %w", err)
	}
	return nil
}

func (r *designRepository) UpdateSkillDomain(ctx context.Context, sd *models.SkillDomain) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE game_skill_domains
		SET label = $1, description = $2, examples = $3,
			visibility_default = $4, sort_order = $5
		WHERE game_design_id = $6 AND slug = $7`,
		sd.Label, sd.Description, pq.Array([]string(sd.Examples)),
		sd.VisibilityDefault, sd.SortOrder, sd.GameDesignID, sd.Slug)
	if err != nil {
		return fmt.Errorf("failed to update skill domain: %w", err)
	}
	return requireRows(result)
}

func (r *designRepository) DeleteSkillDomain(ctx context.Context, designID uuid.UUID, slug string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM game_skill_domains WHERE game_design_id = $1 AND slug = $2`,
		designID, slug)
	if err != nil {
		return fmt.Errorf("failed to delete skill domain: %w", err)
	}
	return requireRows(result)
}

// ===============================
// RECOGNITION TIERS
// ===============================

func (r *designRepository) ListRecognitionTiers(ctx context.Context, designID uuid.UUID) ([]models.RecognitionTier, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, game_design_id, tier_number, name, threshold_type,
			threshold_value, unlocks
		FROM game_recognition_tiers
		WHERE game_design_id = $1
		ORDER BY tier_number`, designID)
	if err != nil {
		return nil, fmt.Errorf("failed to list recognition tiers: %w", err)
	}
	defer rows.Close()

	var result []models.RecognitionTier
	for rows.Next() {
		var rt models.RecognitionTier
		if err := rows.Scan(&rt.ID, &rt.GameDesignID, &rt.TierNumber,
			&rt.Name, &rt.ThresholdType, &rt.ThresholdValue, &rt.Unlocks); err != nil {
			return nil, fmt.Errorf("failed to scan recognition tier: %w", err)
		}
		result = append(result, rt)
	}
	return result, rows.Err()
}

func (r *designRepository) AddRecognitionTier(ctx context.Context, rt *models.RecognitionTier) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO game_recognition_tiers (game_design_id, tier_number,
			name, threshold_type, threshold_value, unlocks)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		rt.GameDesignID, rt.TierNumber, rt.Name, rt.ThresholdType,
		rt.ThresholdValue, pq.Array([]string(rt.Unlocks)),
	).Scan(&rt.ID)
	if err != nil {
		return fmt.Errorf("failed to add recognition tier: %w", err)
	}
	return nil
}

func (r *designRepository) UpdateRecognitionTier(ctx context.Context, rt *models.RecognitionTier) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE game_recognition_tiers
		SET tier_number = $1, threshold_type = $2, threshold_value = $3,
			unlocks = $4
		WHERE game_design_id = $5 AND name = $6`,
		rt.TierNumber, rt.ThresholdType, rt.ThresholdValue,
		pq.Array([]string(rt.Unlocks)), rt.GameDesignID, rt.Name)
	if err != nil {
		return fmt.Errorf("failed to update recognition tier: %w", err)
	}
	return requireRows(result)
}

func (r *designRepository) DeleteRecognitionTier(ctx context.Context, designID uuid.UUID, name string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM game_recognition_tiers WHERE game_design_id = $1 AND name = $2`,
		designID, name)
	if err != nil {
		return fmt.Errorf("failed to delete recognition tier: %w", err)
	}
	return requireRows(result)
}

// ===============================
// RECOGNITION SOURCES
// ===============================

func (r *designRepository) ListRecognitionSources(ctx context.Context, designID uuid.UUID) ([]models.RecognitionSource, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, game_design_id, source_type, amount, max_per_day
		FROM game_recognition_sources
		WHERE game_design_id = $1
		ORDER BY source_type`, designID)
	if err != nil {
		return nil, fmt.Errorf("failed to list recognition sources: %w", err)
	}
	defer rows.Close()

	var result []models.RecognitionSource
	for rows.Next() {
		var rs models.RecognitionSource
		if err := rows.Scan(&rs.ID, &rs.GameDesignID, &rs.SourceType,
			&rs.Amount, &rs.MaxPerDay); err != nil {
			return nil, fmt.Errorf("failed to scan recognition source: %w", err)
		}
		result = append(result, rs)
	}
	return result, rows.Err()
}

// ReplaceRecognitionSources swaps the full source set atomically
func (r *designRepository) ReplaceRecognitionSources(ctx context.Context, designID uuid.UUID, sources []models.RecognitionSource) error {
	return r.WithTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM game_recognition_sources WHERE game_design_id = $1`,
			designID); err != nil {
			return fmt.Errorf("failed to clear recognition sources: %w", err)
		}
		for _, rs := range sources {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO game_recognition_sources (game_design_id,
					source_type, amount, max_per_day)
				VALUES ($1, $2, $3, $4)`,
				designID, rs.SourceType, rs.Amount, rs.MaxPerDay); err != nil {
				return fmt.Errorf("failed to insert recognition source %q: %w", rs.SourceType, err)
			}
		}
		return nil
	})
}

// ===============================
// ACTIVATION
// ===============================

// Activate swaps the community's active design in one transaction: archive
// the current active row, then promote the draft conditionally on it still
// being a draft. A zero-row promote or a hit on the one-active partial
// unique index means the draft lost a race.
func (r *designRepository) Activate(ctx context.Context, designID, communityID, proposalID uuid.UUID) error {
	err := r.WithTransaction(ctx, func(tx *sql.Tx) error {
		// Serialize activations per community on the active row
		if _, err := tx.ExecContext(ctx, `
			SELECT id FROM game_designs
			WHERE community_id = $1 AND status = $2
			FOR UPDATE`,
			communityID, models.DesignStatusActive); err != nil {
			return fmt.Errorf("failed to lock active design: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE game_designs
			SET status = $1, updated_at = NOW()
			WHERE community_id = $2 AND status = $3`,
			models.DesignStatusArchived, communityID, models.DesignStatusActive); err != nil {
			return fmt.Errorf("failed to archive active design: %w", err)
		}

		result, err := tx.ExecContext(ctx, `
			UPDATE game_designs
			SET status = $1, activated_by_proposal_id = $2, updated_at = NOW()
			WHERE id = $3 AND community_id = $4 AND status = $5`,
			models.DesignStatusActive, proposalID, designID, communityID,
			models.DesignStatusDraft)
		if err != nil {
			return fmt.Errorf("failed to promote design: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check promote result: %w", err)
		}
		if affected == 0 {
			return ErrConcurrentActivation
		}
		return nil
	})
	if err != nil && IsUniqueViolation(err, "one_active_design_per_community") {
		return ErrConcurrentActivation
	}
	return err
}

func requireRows(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if affected == 0 {
		return ErrStaleTransition
	}
	return nil
}
