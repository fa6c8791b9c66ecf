package cloudinary

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/rs/zerolog"
)

// Config contains credentials required to talk to Cloudinary.
type Config struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

// Archiver copies stored submissions to Cloudinary as raw assets.
type Archiver struct {
	client *cloudinary.Cloudinary
	folder string
	logger zerolog.Logger
}

// New constructs a Cloudinary archiver instance.
func New(cfg Config, logger zerolog.Logger) (*Archiver, error) {
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("cloudinary credentials must be provided")
	}

	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}

	return &Archiver{
		client: cld,
		folder: strings.Trim(cfg.Folder, "/"),
		logger: logger.With().Str("component", "cloudinary").Logger(),
	}, nil
}

// Archive uploads the document and returns its secure URL. storedName is already
// unique, so it is reused as the public id.
func (a *Archiver) Archive(ctx context.Context, storedName string, reader io.Reader) (string, error) {
	params := uploader.UploadParams{
		Folder:       a.folder,
		PublicID:     PublicID(storedName),
		ResourceType: "raw",
	}

	result, err := a.client.Upload.Upload(ctx, reader, params)
	if err != nil {
		return "", fmt.Errorf("failed to archive document: %w", err)
	}
	if result.Error.Message != "" {
		return "", fmt.Errorf("failed to archive document: %s", result.Error.Message)
	}

	a.logger.Info().Str("public_id", result.PublicID).Msg("document archived to cloudinary")

	return result.SecureURL, nil
}

// PublicID maps a stored name to a Cloudinary public id. Raw assets keep their
// extension in the id.
func PublicID(storedName string) string {
	name := filepath.Base(storedName)
	ext := strings.ToLower(filepath.Ext(name))
	base := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			return r
		}
		return '-'
	}, strings.TrimSuffix(name, filepath.Ext(name)))

	base = strings.Trim(base, "-")
	if base == "" {
		base = "submission"
	}

	return base + ext
}
