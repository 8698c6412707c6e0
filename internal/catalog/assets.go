package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"videoflix/internal/dbx"
	"videoflix/internal/fileutil"
	"videoflix/internal/logging"
	"videoflix/internal/services"
	"videoflix/internal/textutil"
)

const assetColumns = "id, title, description, category, source_path, thumbnail_path, created_at"

// Create registers an upload. The video (and optional thumbnail) is copied
// under the media root, the row inserted and its transcode deferred until
// commit. Copied files are removed again if the transaction fails.
func (c *Catalog) Create(ctx context.Context, req CreateRequest) (*Asset, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, services.Wrap(services.ErrValidation, "catalog", "create", "title is required", nil)
	}
	if !SupportedVideo(req.VideoFile) {
		return nil, services.Wrap(services.ErrValidation, "catalog", "create",
			fmt.Sprintf("unsupported file extension %q; allowed: %s", filepath.Ext(req.VideoFile), strings.Join(VideoExtensions, ", ")), nil)
	}
	category, ok := ParseCategory(req.Category)
	if !ok {
		return nil, services.Wrap(services.ErrValidation, "catalog", "create", fmt.Sprintf("unknown category %q", req.Category), nil)
	}

	token := strings.ReplaceAll(uuid.NewString(), "-", "")
	asset := &Asset{
		Title:       title,
		Description: strings.TrimSpace(req.Description),
		Category:    category,
		SourcePath:  c.videoPath(token, req.VideoFile),
		CreatedAt:   c.clock(),
	}
	if err := fileutil.CopyFileVerified(req.VideoFile, asset.SourcePath); err != nil {
		return nil, services.Wrap(services.ErrIO, "catalog", "copy upload", req.VideoFile, err)
	}
	copied := []string{asset.SourcePath}
	if req.ThumbnailFile != "" {
		asset.ThumbnailPath = c.thumbnailPath(token, req.ThumbnailFile)
		if err := fileutil.CopyFileVerified(req.ThumbnailFile, asset.ThumbnailPath); err != nil {
			c.discard(copied)
			return nil, services.Wrap(services.ErrIO, "catalog", "copy thumbnail", req.ThumbnailFile, err)
		}
		copied = append(copied, asset.ThumbnailPath)
	}

	err := dbx.WithTx(ctx, c.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := tx.QueryRowContext(ctx,
			`INSERT INTO assets (title, description, category, source_path, thumbnail_path, created_at)
             VALUES (?, ?, ?, ?, ?, ?)
             RETURNING id`,
			asset.Title, asset.Description, string(asset.Category), asset.SourcePath, asset.ThumbnailPath,
			asset.CreatedAt.Format(timeLayout),
		).Scan(&asset.ID); err != nil {
			return fmt.Errorf("insert asset: %w", err)
		}
		return c.dispatcher.DeferTranscode(ctx, asset.SourcePath)
	})
	if err != nil {
		c.discard(copied)
		return nil, fmt.Errorf("create asset: %w", err)
	}

	logging.WithContext(ctx, c.logger).Info("asset created",
		logging.String(logging.FieldEventType, "asset_created"),
		logging.Int64("asset_id", asset.ID),
		logging.String(logging.FieldAsset, filepath.Base(asset.SourcePath)),
	)
	return asset, nil
}

// Delete removes the row and defers cleanup of its files until commit.
func (c *Catalog) Delete(ctx context.Context, id int64) (*Asset, error) {
	var asset *Asset
	err := dbx.WithTx(ctx, c.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		found, err := scanAsset(tx.QueryRowContext(ctx,
			`DELETE FROM assets WHERE id = ? RETURNING `+assetColumns, id))
		if errors.Is(err, sql.ErrNoRows) {
			return services.Wrap(services.ErrNotFound, "catalog", "delete", fmt.Sprintf("asset %d", id), nil)
		}
		if err != nil {
			return fmt.Errorf("delete asset %d: %w", id, err)
		}
		asset = found
		return c.dispatcher.DeferCleanup(ctx, found.SourcePath, found.ThumbnailPath)
	})
	if err != nil {
		return nil, err
	}

	logging.WithContext(ctx, c.logger).Info("asset deleted",
		logging.String(logging.FieldEventType, "asset_deleted"),
		logging.Int64("asset_id", asset.ID),
		logging.String(logging.FieldAsset, filepath.Base(asset.SourcePath)),
	)
	return asset, nil
}

// Get returns one asset or an ErrNotFound error.
func (c *Catalog) Get(ctx context.Context, id int64) (*Asset, error) {
	asset, err := scanAsset(c.db.QueryRowContext(ctx, `SELECT `+assetColumns+` FROM assets WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "catalog", "get", fmt.Sprintf("asset %d", id), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("get asset %d: %w", id, err)
	}
	return asset, nil
}

// List returns assets newest first, optionally restricted to one category.
func (c *Catalog) List(ctx context.Context, category Category) ([]*Asset, error) {
	query := `SELECT ` + assetColumns + ` FROM assets`
	var args []any
	if category != "" {
		query += ` WHERE category = ?`
		args = append(args, string(category))
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	var assets []*Asset
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		assets = append(assets, asset)
	}
	return assets, rows.Err()
}

// videoPath is <media_root>/videos/<token>_<slug><ext>.
func (c *Catalog) videoPath(token, upload string) string {
	base := filepath.Base(upload)
	ext := filepath.Ext(base)
	slug := textutil.Slugify(strings.TrimSuffix(base, ext))
	return filepath.Join(c.mediaRoot, "videos", token+"_"+slug+strings.ToLower(ext))
}

func (c *Catalog) thumbnailPath(token, upload string) string {
	name := textutil.SanitizeFileName(filepath.Base(upload))
	if name == "" {
		name = "thumbnail"
	}
	return filepath.Join(c.mediaRoot, "thumbnails", token[:8]+"_"+name)
}

func (c *Catalog) discard(paths []string) {
	for _, path := range paths {
		if _, err := fileutil.RemoveIfExists(path); err != nil {
			c.logger.Warn("copied upload not removed",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldEventType, "upload_discard_failed"),
				logging.String(logging.FieldErrorHint, "delete the file manually"),
			)
		}
	}
}

func scanAsset(scanner interface{ Scan(dest ...any) error }) (*Asset, error) {
	var (
		asset     Asset
		category  string
		createdAt string
	)
	if err := scanner.Scan(&asset.ID, &asset.Title, &asset.Description, &category,
		&asset.SourcePath, &asset.ThumbnailPath, &createdAt); err != nil {
		return nil, err
	}
	asset.Category = Category(category)
	asset.CreatedAt = parseTime(createdAt)
	return &asset, nil
}

// Exists reports whether the asset's source file is still on disk.
func (a *Asset) Exists() bool {
	info, err := os.Stat(a.SourcePath)
	return err == nil && info.Mode().IsRegular()
}
