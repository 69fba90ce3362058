package images

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/google/uuid"
)

// Cloudinary stores images as png under a single folder.
type Cloudinary struct {
	cld    *cloudinary.Cloudinary
	folder string
	logger *slog.Logger
}

var _ Store = (*Cloudinary)(nil)

func NewCloudinary(cloudName, apiKey, apiSecret, folder string, logger *slog.Logger) (*Cloudinary, error) {
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to configure cloudinary: %w", err)
	}
	cld.Config.URL.Secure = true
	return &Cloudinary{cld: cld, folder: folder, logger: logger}, nil
}

func (c *Cloudinary) Upload(ctx context.Context, filename string, r io.Reader) (string, error) {
	// uuid suffix keeps two uploads of the same filename apart
	publicID := baseName(filename) + "_" + uuid.NewString()[:8]

	resp, err := c.cld.Upload.Upload(ctx, r, uploader.UploadParams{
		PublicID:       publicID,
		Folder:         c.folder,
		UseFilename:    api.Bool(true),
		UniqueFilename: api.Bool(false),
		Format:         "png",
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", filename, err)
	}
	if resp.Error.Message != "" {
		return "", fmt.Errorf("failed to upload %s: %s", filename, resp.Error.Message)
	}

	c.logger.Debug("Image uploaded", "public_id", resp.PublicID, "url", resp.SecureURL)
	return resp.SecureURL, nil
}

func (c *Cloudinary) Delete(ctx context.Context, imageURL string) error {
	publicID, err := PublicIDFromURL(imageURL)
	if err != nil {
		return fmt.Errorf("invalid image url %q: %w", imageURL, err)
	}

	resp, err := c.cld.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: publicID})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", publicID, err)
	}
	if resp.Error.Message != "" {
		return fmt.Errorf("failed to delete %s: %s", publicID, resp.Error.Message)
	}
	switch resp.Result {
	case "ok":
		return nil
	case "not found":
		return fmt.Errorf("%s: %w", publicID, ErrNotFound)
	default:
		return errors.New("unexpected destroy result " + resp.Result)
	}
}
