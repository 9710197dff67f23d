package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/tierdx/tierdx/internal/domain"
)

// AssessmentRepository persists classify results for later lookup and
// for cross-referencing against future validation runs.
type AssessmentRepository struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewAssessmentRepository creates a new assessment repository.
func NewAssessmentRepository(db *pgxpool.Pool, logger *logrus.Logger) *AssessmentRepository {
	return &AssessmentRepository{
		db:  db,
		log: logger,
	}
}

// Create inserts a new assessment into the database.
func (r *AssessmentRepository) Create(ctx context.Context, a *domain.Assessment) error {
	therapiesJSON, err := json.Marshal(a.RecommendedTherapies)
	if err != nil {
		return fmt.Errorf("marshaling recommended therapies: %w", err)
	}
	sourcesJSON, err := json.Marshal(a.EvidenceSources)
	if err != nil {
		return fmt.Errorf("marshaling evidence sources: %w", err)
	}
	annotationsJSON, err := json.Marshal(a.Annotations)
	if err != nil {
		return fmt.Errorf("marshaling annotations: %w", err)
	}

	query := `
		INSERT INTO assessments (
			request_id, gene, variant, tumor_type, tier, confidence,
			sublevel_internal, reason_code, recommended_therapies,
			evidence_sources, narrative, annotations
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		)`

	_, err = r.db.Exec(ctx, query,
		a.RequestID,
		a.Variant.Gene,
		a.Variant.VariantNormalized,
		a.Variant.TumorType,
		a.Tier,
		a.Confidence,
		a.SublevelInternal,
		a.ReasonCode,
		therapiesJSON,
		sourcesJSON,
		a.Narrative,
		annotationsJSON,
	)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": a.RequestID,
			"gene":       a.Variant.Gene,
			"error":      err,
		}).Error("failed to create assessment")
		return fmt.Errorf("creating assessment: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"request_id": a.RequestID,
		"gene":       a.Variant.Gene,
		"tier":       a.Tier,
	}).Info("assessment created")
	return nil
}

// GetByRequestID retrieves an assessment by its request ID.
func (r *AssessmentRepository) GetByRequestID(ctx context.Context, requestID string) (*domain.Assessment, error) {
	query := `
		SELECT request_id, gene, variant, tumor_type, tier, confidence,
			   sublevel_internal, reason_code, recommended_therapies,
			   evidence_sources, narrative, annotations, created_at
		FROM assessments
		WHERE request_id = $1`

	var a domain.Assessment
	var therapiesJSON, sourcesJSON, annotationsJSON []byte

	err := r.db.QueryRow(ctx, query, requestID).Scan(
		&a.RequestID,
		&a.Variant.Gene,
		&a.Variant.VariantNormalized,
		&a.Variant.TumorType,
		&a.Tier,
		&a.Confidence,
		&a.SublevelInternal,
		&a.ReasonCode,
		&therapiesJSON,
		&sourcesJSON,
		&a.Narrative,
		&annotationsJSON,
		&a.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("assessment not found: %w", domain.ErrNotFound)
		}
		r.log.WithFields(logrus.Fields{"request_id": requestID, "error": err}).Error("failed to get assessment")
		return nil, fmt.Errorf("getting assessment: %w", err)
	}

	if err := json.Unmarshal(therapiesJSON, &a.RecommendedTherapies); err != nil {
		return nil, fmt.Errorf("unmarshaling recommended therapies: %w", err)
	}
	if err := json.Unmarshal(sourcesJSON, &a.EvidenceSources); err != nil {
		return nil, fmt.Errorf("unmarshaling evidence sources: %w", err)
	}
	if err := json.Unmarshal(annotationsJSON, &a.Annotations); err != nil {
		return nil, fmt.Errorf("unmarshaling annotations: %w", err)
	}

	return &a, nil
}

// GetByGene retrieves assessments for a gene with pagination, most recent
// first.
func (r *AssessmentRepository) GetByGene(ctx context.Context, gene string, limit, offset int) ([]*domain.Assessment, error) {
	query := `
		SELECT request_id, gene, variant, tumor_type, tier, confidence,
			   sublevel_internal, reason_code, recommended_therapies,
			   evidence_sources, narrative, annotations, created_at
		FROM assessments
		WHERE gene = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(ctx, query, gene, limit, offset)
	if err != nil {
		r.log.WithFields(logrus.Fields{"gene": gene, "error": err}).Error("failed to get assessments by gene")
		return nil, fmt.Errorf("getting assessments by gene: %w", err)
	}
	defer rows.Close()

	var assessments []*domain.Assessment
	for rows.Next() {
		var a domain.Assessment
		var therapiesJSON, sourcesJSON, annotationsJSON []byte
		var createdAt time.Time

		if err := rows.Scan(
			&a.RequestID,
			&a.Variant.Gene,
			&a.Variant.VariantNormalized,
			&a.Variant.TumorType,
			&a.Tier,
			&a.Confidence,
			&a.SublevelInternal,
			&a.ReasonCode,
			&therapiesJSON,
			&sourcesJSON,
			&a.Narrative,
			&annotationsJSON,
			&createdAt,
		); err != nil {
			r.log.WithFields(logrus.Fields{"gene": gene, "error": err}).Error("failed to scan assessment row")
			return nil, fmt.Errorf("scanning assessment row: %w", err)
		}

		if err := json.Unmarshal(therapiesJSON, &a.RecommendedTherapies); err != nil {
			return nil, fmt.Errorf("unmarshaling recommended therapies: %w", err)
		}
		if err := json.Unmarshal(sourcesJSON, &a.EvidenceSources); err != nil {
			return nil, fmt.Errorf("unmarshaling evidence sources: %w", err)
		}
		if err := json.Unmarshal(annotationsJSON, &a.Annotations); err != nil {
			return nil, fmt.Errorf("unmarshaling annotations: %w", err)
		}
		a.CreatedAt = createdAt

		assessments = append(assessments, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating assessment rows: %w", err)
	}
	return assessments, nil
}

// GetByTier retrieves assessments at a given tier with pagination.
func (r *AssessmentRepository) GetByTier(ctx context.Context, tier domain.Tier, limit, offset int) ([]*domain.Assessment, error) {
	query := `
		SELECT request_id, gene, variant, tumor_type, tier, confidence,
			   sublevel_internal, reason_code, recommended_therapies,
			   evidence_sources, narrative, annotations, created_at
		FROM assessments
		WHERE tier = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(ctx, query, tier, limit, offset)
	if err != nil {
		r.log.WithFields(logrus.Fields{"tier": tier, "error": err}).Error("failed to get assessments by tier")
		return nil, fmt.Errorf("getting assessments by tier: %w", err)
	}
	defer rows.Close()

	var assessments []*domain.Assessment
	for rows.Next() {
		var a domain.Assessment
		var therapiesJSON, sourcesJSON, annotationsJSON []byte
		var createdAt time.Time

		if err := rows.Scan(
			&a.RequestID,
			&a.Variant.Gene,
			&a.Variant.VariantNormalized,
			&a.Variant.TumorType,
			&a.Tier,
			&a.Confidence,
			&a.SublevelInternal,
			&a.ReasonCode,
			&therapiesJSON,
			&sourcesJSON,
			&a.Narrative,
			&annotationsJSON,
			&createdAt,
		); err != nil {
			r.log.WithFields(logrus.Fields{"tier": tier, "error": err}).Error("failed to scan assessment row")
			return nil, fmt.Errorf("scanning assessment row: %w", err)
		}

		if err := json.Unmarshal(therapiesJSON, &a.RecommendedTherapies); err != nil {
			return nil, fmt.Errorf("unmarshaling recommended therapies: %w", err)
		}
		if err := json.Unmarshal(sourcesJSON, &a.EvidenceSources); err != nil {
			return nil, fmt.Errorf("unmarshaling evidence sources: %w", err)
		}
		if err := json.Unmarshal(annotationsJSON, &a.Annotations); err != nil {
			return nil, fmt.Errorf("unmarshaling annotations: %w", err)
		}
		a.CreatedAt = createdAt

		assessments = append(assessments, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating assessment rows: %w", err)
	}
	return assessments, nil
}

// Delete removes an assessment from the database.
func (r *AssessmentRepository) Delete(ctx context.Context, requestID string) error {
	query := `DELETE FROM assessments WHERE request_id = $1`

	result, err := r.db.Exec(ctx, query, requestID)
	if err != nil {
		r.log.WithFields(logrus.Fields{"request_id": requestID, "error": err}).Error("failed to delete assessment")
		return fmt.Errorf("deleting assessment: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("assessment not found: %w", domain.ErrNotFound)
	}

	r.log.WithFields(logrus.Fields{"request_id": requestID}).Info("assessment deleted")
	return nil
}
