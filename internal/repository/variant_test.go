package repository

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/tierdx/tierdx/internal/database"
	"github.com/tierdx/tierdx/internal/domain"
)

// generateTestPassword creates a secure random password for test databases
func generateTestPassword() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "test_fallback_password_123"
	}
	return "test_" + hex.EncodeToString(bytes)
}

func setupTestDB(t *testing.T) (*database.DB, func()) {
	ctx := context.Background()

	testPassword := generateTestPassword()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword(testPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	host, err := pgContainer.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get container host: %v", err)
	}
	port, err := pgContainer.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("failed to get container port: %v", err)
	}

	config := database.Config{
		Host:        host,
		Port:        port.Int(),
		Database:    "testdb",
		Username:    "testuser",
		Password:    testPassword,
		MaxConns:    10,
		MinConns:    2,
		MaxConnLife: time.Hour,
		MaxConnIdle: time.Minute * 30,
		SSLMode:     "disable",
	}

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	db, err := database.NewConnection(ctx, config, logger)
	if err != nil {
		t.Fatalf("failed to create database connection: %v", err)
	}

	databaseURL := "postgres://testuser:" + testPassword + "@" + host + ":" + port.Port() + "/testdb?sslmode=disable"
	migrationRunner, err := database.NewMigrationRunner(databaseURL, "../../migrations", logger)
	if err != nil {
		t.Fatalf("failed to create migration runner: %v", err)
	}
	if err := migrationRunner.Up(ctx); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	cleanup := func() {
		migrationRunner.Close()
		db.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate postgres container: %v", err)
		}
	}
	return db, cleanup
}

func testAssessment(requestID, gene string) *domain.Assessment {
	return &domain.Assessment{
		RequestID: requestID,
		Variant: domain.NormalizedVariant{
			Gene:              gene,
			VariantNormalized: "V600E",
			TumorType:         "melanoma",
		},
		Tier:                 domain.TierI,
		Confidence:           0.92,
		RecommendedTherapies: []string{"vemurafenib", "dabrafenib"},
		EvidenceSources:      []string{"fda", "civic", "cgi"},
		Narrative:            "BRAF V600E is an FDA-approved biomarker in melanoma.",
		Annotations:          map[string]string{"oncotree": "SKCM"},
	}
}

func TestAssessmentRepositoryCreateAndGetByRequestID(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	repo := NewAssessmentRepository(db.Pool, logger)

	assessment := testAssessment("req-1", "BRAF")

	ctx := context.Background()
	if err := repo.Create(ctx, assessment); err != nil {
		t.Fatalf("failed to create assessment: %v", err)
	}

	retrieved, err := repo.GetByRequestID(ctx, assessment.RequestID)
	if err != nil {
		t.Fatalf("failed to retrieve assessment: %v", err)
	}

	if retrieved.Variant.Gene != assessment.Variant.Gene {
		t.Errorf("expected gene %s, got %s", assessment.Variant.Gene, retrieved.Variant.Gene)
	}
	if retrieved.Tier != assessment.Tier {
		t.Errorf("expected tier %s, got %s", assessment.Tier, retrieved.Tier)
	}
	if len(retrieved.RecommendedTherapies) != len(assessment.RecommendedTherapies) {
		t.Errorf("expected %d therapies, got %d", len(assessment.RecommendedTherapies), len(retrieved.RecommendedTherapies))
	}
}

func TestAssessmentRepositoryGetByGene(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	repo := NewAssessmentRepository(db.Pool, logger)

	ctx := context.Background()
	for i, id := range []string{"req-2", "req-3"} {
		a := testAssessment(id, "BRAF")
		a.Confidence = 0.8 + float64(i)*0.01
		if err := repo.Create(ctx, a); err != nil {
			t.Fatalf("failed to create assessment: %v", err)
		}
	}

	retrieved, err := repo.GetByGene(ctx, "BRAF", 10, 0)
	if err != nil {
		t.Fatalf("failed to get assessments by gene: %v", err)
	}
	if len(retrieved) != 2 {
		t.Errorf("expected 2 assessments, got %d", len(retrieved))
	}
	for _, a := range retrieved {
		if a.Variant.Gene != "BRAF" {
			t.Errorf("expected gene BRAF, got %s", a.Variant.Gene)
		}
	}
}

func TestAssessmentRepositoryDelete(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	repo := NewAssessmentRepository(db.Pool, logger)

	assessment := testAssessment("req-4", "BRAF")
	ctx := context.Background()
	if err := repo.Create(ctx, assessment); err != nil {
		t.Fatalf("failed to create assessment: %v", err)
	}

	if err := repo.Delete(ctx, assessment.RequestID); err != nil {
		t.Fatalf("failed to delete assessment: %v", err)
	}

	if _, err := repo.GetByRequestID(ctx, assessment.RequestID); err == nil {
		t.Error("expected error getting deleted assessment, got nil")
	}
}
