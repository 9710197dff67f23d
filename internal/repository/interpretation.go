package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/tierdx/tierdx/internal/domain"
)

// ValidationReportRepository persists the outcome of validate batch runs,
// so accuracy trends can be tracked across decision-table changes.
type ValidationReportRepository struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewValidationReportRepository creates a new validation report repository.
func NewValidationReportRepository(db *pgxpool.Pool, logger *logrus.Logger) *ValidationReportRepository {
	return &ValidationReportRepository{
		db:  db,
		log: logger,
	}
}

// Create stores a validation report and returns its generated ID.
func (r *ValidationReportRepository) Create(ctx context.Context, report *domain.ValidationReport, label string) (uuid.UUID, error) {
	id := uuid.New()

	perTierJSON, err := json.Marshal(report.PerTier)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshaling per-tier metrics: %w", err)
	}
	confusionJSON, err := json.Marshal(report.ConfusionMatrix)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshaling confusion matrix: %w", err)
	}
	failuresJSON, err := json.Marshal(report.Failures)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshaling failures: %w", err)
	}

	query := `
		INSERT INTO validation_reports (
			id, label, overall_accuracy, per_tier, confusion_matrix,
			average_tier_distance, failures, total_cases
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		)`

	_, err = r.db.Exec(ctx, query,
		id,
		label,
		report.OverallAccuracy,
		perTierJSON,
		confusionJSON,
		report.AverageTierDistance,
		failuresJSON,
		report.TotalCases,
	)
	if err != nil {
		r.log.WithFields(logrus.Fields{"report_id": id, "error": err}).Error("failed to create validation report")
		return uuid.Nil, fmt.Errorf("creating validation report: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"report_id": id,
		"label":     label,
		"accuracy":  report.OverallAccuracy,
	}).Info("validation report created")
	return id, nil
}

// GetByID retrieves a validation report by its ID.
func (r *ValidationReportRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.ValidationReport, error) {
	query := `
		SELECT overall_accuracy, per_tier, confusion_matrix,
			   average_tier_distance, failures, total_cases
		FROM validation_reports
		WHERE id = $1`

	var report domain.ValidationReport
	var perTierJSON, confusionJSON, failuresJSON []byte

	err := r.db.QueryRow(ctx, query, id).Scan(
		&report.OverallAccuracy,
		&perTierJSON,
		&confusionJSON,
		&report.AverageTierDistance,
		&failuresJSON,
		&report.TotalCases,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("validation report not found: %w", domain.ErrNotFound)
		}
		r.log.WithFields(logrus.Fields{"report_id": id, "error": err}).Error("failed to get validation report")
		return nil, fmt.Errorf("getting validation report: %w", err)
	}

	if err := json.Unmarshal(perTierJSON, &report.PerTier); err != nil {
		return nil, fmt.Errorf("unmarshaling per-tier metrics: %w", err)
	}
	if err := json.Unmarshal(confusionJSON, &report.ConfusionMatrix); err != nil {
		return nil, fmt.Errorf("unmarshaling confusion matrix: %w", err)
	}
	if err := json.Unmarshal(failuresJSON, &report.Failures); err != nil {
		return nil, fmt.Errorf("unmarshaling failures: %w", err)
	}

	return &report, nil
}

// reportRow is the shape ListRecent scans before unmarshaling JSONB
// columns, paired with its label and timestamp.
type reportRow struct {
	ID        uuid.UUID
	Label     string
	Report    domain.ValidationReport
	CreatedAt time.Time
}

// ListRecent returns the most recent validation reports, most recent
// first, for tracking accuracy across decision-table changes.
func (r *ValidationReportRepository) ListRecent(ctx context.Context, limit int) ([]reportRow, error) {
	query := `
		SELECT id, label, overall_accuracy, per_tier, confusion_matrix,
			   average_tier_distance, failures, total_cases, created_at
		FROM validation_reports
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("listing validation reports: %w", err)
	}
	defer rows.Close()

	var results []reportRow
	for rows.Next() {
		var row reportRow
		var perTierJSON, confusionJSON, failuresJSON []byte

		if err := rows.Scan(
			&row.ID,
			&row.Label,
			&row.Report.OverallAccuracy,
			&perTierJSON,
			&confusionJSON,
			&row.Report.AverageTierDistance,
			&failuresJSON,
			&row.Report.TotalCases,
			&row.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning validation report row: %w", err)
		}

		if err := json.Unmarshal(perTierJSON, &row.Report.PerTier); err != nil {
			return nil, fmt.Errorf("unmarshaling per-tier metrics: %w", err)
		}
		if err := json.Unmarshal(confusionJSON, &row.Report.ConfusionMatrix); err != nil {
			return nil, fmt.Errorf("unmarshaling confusion matrix: %w", err)
		}
		if err := json.Unmarshal(failuresJSON, &row.Report.Failures); err != nil {
			return nil, fmt.Errorf("unmarshaling failures: %w", err)
		}

		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating validation report rows: %w", err)
	}
	return results, nil
}

// Delete removes a validation report from the database.
func (r *ValidationReportRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM validation_reports WHERE id = $1`

	result, err := r.db.Exec(ctx, query, id)
	if err != nil {
		r.log.WithFields(logrus.Fields{"report_id": id, "error": err}).Error("failed to delete validation report")
		return fmt.Errorf("deleting validation report: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("validation report not found: %w", domain.ErrNotFound)
	}

	r.log.WithFields(logrus.Fields{"report_id": id}).Info("validation report deleted")
	return nil
}
