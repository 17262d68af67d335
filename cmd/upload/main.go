package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dvloznov/statement-insights/internal/config"
	"github.com/dvloznov/statement-insights/internal/currency"
	"github.com/dvloznov/statement-insights/internal/docstore"
	infraBQ "github.com/dvloznov/statement-insights/internal/infra/bigquery"
	"github.com/dvloznov/statement-insights/internal/logger"
	"github.com/dvloznov/statement-insights/internal/statement"
)

// Uploads a local statement document and creates its record with status
// "uploaded". Processing is triggered separately through the API.
func main() {
	log := logger.New()

	var (
		userID   string
		filePath string
	)

	flag.StringVar(&userID, "user", "", "User ID owning the statement (required)")
	flag.StringVar(&filePath, "file", "", "Path to local statement document (required)")
	flag.Parse()

	if userID == "" || filePath == "" {
		log.Fatal().Msg("Usage: upload -user USER_ID -file /path/to/statement.pdf")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if cfg.Bucket == "" {
		log.Fatal().Msg("GCS_BUCKET is required")
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		log.Fatal().Err(err).Str("file", filePath).Msg("Failed to read file")
	}

	ctx := logger.WithContext(context.Background(), log)

	repo, err := infraBQ.NewRepository(ctx, cfg.GCPProjectID, cfg.Dataset)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery repository")
	}
	defer repo.Close()

	documents, err := docstore.NewGCSStore(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create document store")
	}
	defer documents.Close()

	// No extractor: Upload never calls the inference service.
	svc := statement.NewService(repo, repo, documents, nil, cfg.Bucket, currency.Options{
		FilenameOverride: cfg.CurrencyFilenameOverride,
	})

	fileName := filepath.Base(filePath)

	log.Info().
		Str("user_id", userID).
		Str("file", fileName).
		Msg("Uploading statement")

	st, err := svc.Upload(ctx, userID, fileName, contentTypeForFile(fileName), data)
	if err != nil {
		log.Fatal().Err(err).Msg("Upload failed")
	}

	fmt.Printf("Uploaded %s as statement %s (%s)\n", filePath, st.StatementID, st.StoragePath)
}

func contentTypeForFile(fileName string) string {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	default:
		return "application/pdf"
	}
}
