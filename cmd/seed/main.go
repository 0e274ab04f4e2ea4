// Command seed populates a folio database with sample portfolio content.
// It is meant for local development and demos, not production.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"

	"github.com/foliohq/folio/internal/db"
	"github.com/foliohq/folio/internal/repositories"
)

func main() {
	_ = godotenv.Load()

	driver := flag.String("db-driver", envOrDefault("FOLIO_DB_DRIVER", "sqlite"), "database driver (sqlite or postgres)")
	dsn := flag.String("db-dsn", envOrDefault("FOLIO_DB_DSN", "./folio.db"), "database DSN or file path for SQLite")
	secretKey := flag.String("secret-key", envOrDefault("FOLIO_SECRET_KEY", ""), "master secret key, 32 bytes")
	flag.Parse()

	if err := run(*driver, *dsn, *secretKey); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(driver, dsn, secretKey string) error {
	logger, err := zap.NewDevelopment()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	if len(secretKey) != 32 {
		return fmt.Errorf("secret key must be exactly 32 bytes: set --secret-key or FOLIO_SECRET_KEY")
	}
	if err := db.InitEncryption([]byte(secretKey)); err != nil {
		return err
	}

	database, err := db.New(db.Config{
		Driver:   driver,
		DSN:      dsn,
		Logger:   logger,
		LogLevel: gormlogger.Silent,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	ctx := context.Background()

	companies := repositories.NewCompanyRepository(database)
	education := repositories.NewEducationRepository(database)
	projects := repositories.NewProjectRepository(database)
	documents := repositories.NewDocumentRepository(database)

	date := func(y int, m time.Month, d int) time.Time {
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}
	datePtr := func(y int, m time.Month, d int) *time.Time {
		t := date(y, m, d)
		return &t
	}

	sampleCompanies := []*db.Company{
		{
			Name:        "Acme Systems",
			Role:        "Senior Backend Engineer",
			Description: "Built and operated the billing platform, 40k events/sec at peak.",
			Location:    "Berlin, Germany",
			URL:         "https://acme.example.com",
			StartDate:   date(2022, time.March, 1),
			SortOrder:   1,
		},
		{
			Name:        "Widget Labs",
			Role:        "Software Engineer",
			Description: "Shipped the public REST API and the internal admin tooling.",
			Location:    "Remote",
			URL:         "https://widgetlabs.example.com",
			StartDate:   date(2019, time.June, 1),
			EndDate:     datePtr(2022, time.February, 28),
			SortOrder:   2,
		},
	}
	for _, c := range sampleCompanies {
		if err := companies.Create(ctx, c); err != nil {
			return fmt.Errorf("seed company %q: %w", c.Name, err)
		}
	}

	sampleEducation := []*db.Education{
		{
			School:    "Technical University of Munich",
			Degree:    "M.Sc.",
			Field:     "Computer Science",
			StartDate: date(2016, time.October, 1),
			EndDate:   datePtr(2019, time.March, 31),
		},
	}
	for _, e := range sampleEducation {
		if err := education.Create(ctx, e); err != nil {
			return fmt.Errorf("seed education %q: %w", e.School, err)
		}
	}

	sampleProjects := []*db.Project{
		{
			Name:        "folio",
			Description: "The backend powering this site.",
			RepoURL:     "https://github.com/foliohq/folio",
			Tags:        `["go","oauth","jwt"]`,
			Featured:    true,
			SortOrder:   1,
		},
		{
			Name:        "tinycache",
			Description: "A sharded in-process cache with TTL eviction.",
			RepoURL:     "https://github.com/foliohq/tinycache",
			Tags:        `["go","caching"]`,
			SortOrder:   2,
		},
	}
	for _, p := range sampleProjects {
		if err := projects.Create(ctx, p); err != nil {
			return fmt.Errorf("seed project %q: %w", p.Name, err)
		}
	}

	sampleDocuments := []*db.Document{
		{
			Title:       "Resume",
			Kind:        "resume",
			URL:         "https://cdn.example.com/resume.pdf",
			ContentType: "application/pdf",
			SizeBytes:   104_230,
			Published:   true,
		},
	}
	for _, d := range sampleDocuments {
		if err := documents.Create(ctx, d); err != nil {
			return fmt.Errorf("seed document %q: %w", d.Title, err)
		}
	}

	logger.Info("seed complete",
		zap.Int("companies", len(sampleCompanies)),
		zap.Int("education", len(sampleEducation)),
		zap.Int("projects", len(sampleProjects)),
		zap.Int("documents", len(sampleDocuments)),
	)
	return nil
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
