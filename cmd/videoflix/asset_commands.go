package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"videoflix/internal/catalog"
	"videoflix/internal/config"
	"videoflix/internal/hls"
	"videoflix/internal/logging"
)

type assetView struct {
	ID            int64    `json:"id"`
	Title         string   `json:"title"`
	Description   string   `json:"description,omitempty"`
	Category      string   `json:"category"`
	SourcePath    string   `json:"source_path"`
	ThumbnailPath string   `json:"thumbnail_path,omitempty"`
	CreatedAt     string   `json:"created_at"`
	Variants      []string `json:"variants,omitempty"`
}

func newAssetView(a *catalog.Asset) assetView {
	return assetView{
		ID:            a.ID,
		Title:         a.Title,
		Description:   a.Description,
		Category:      string(a.Category),
		SourcePath:    a.SourcePath,
		ThumbnailPath: a.ThumbnailPath,
		CreatedAt:     a.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func newAssetCommand(ctx *commandContext) *cobra.Command {
	assetCmd := &cobra.Command{
		Use:   "asset",
		Short: "Manage catalog assets",
	}
	assetCmd.AddCommand(newAssetAddCommand(ctx))
	assetCmd.AddCommand(newAssetDeleteCommand(ctx))
	assetCmd.AddCommand(newAssetListCommand(ctx))
	assetCmd.AddCommand(newAssetShowCommand(ctx))
	return assetCmd
}

func newAssetAddCommand(ctx *commandContext) *cobra.Command {
	var req catalog.CreateRequest

	cmd := &cobra.Command{
		Use:   "add <video-file>",
		Short: "Register a video and queue its transcode",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			video, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			req.VideoFile = video
			if strings.TrimSpace(req.ThumbnailFile) != "" {
				if req.ThumbnailFile, err = config.ExpandPath(req.ThumbnailFile); err != nil {
					return err
				}
			}
			return ctx.withCatalog(func(cat *catalog.Catalog) error {
				asset, err := cat.Create(cmd.Context(), req)
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, newAssetView(asset))
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added asset %d (%s); transcode queued for %s\n",
					asset.ID, asset.Category.Label(), asset.SourcePath)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&req.Title, "title", "t", "", "Asset title (required)")
	cmd.Flags().StringVarP(&req.Description, "description", "d", "", "Asset description")
	cmd.Flags().StringVar(&req.Category, "category", "", "Category ("+categoryNames()+"); defaults to MOVIE")
	cmd.Flags().StringVar(&req.ThumbnailFile, "thumbnail", "", "Thumbnail image to copy alongside the video")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func newAssetDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an asset and queue removal of its files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return ctx.withCatalog(func(cat *catalog.Catalog) error {
				asset, err := cat.Delete(cmd.Context(), id)
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, newAssetView(asset))
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted asset %d; cleanup queued for %s\n", asset.ID, asset.SourcePath)
				return nil
			})
		},
	}
}

func newAssetListCommand(ctx *commandContext) *cobra.Command {
	var categoryFlag string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List assets, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			var category catalog.Category
			if strings.TrimSpace(categoryFlag) != "" {
				parsed, ok := catalog.ParseCategory(categoryFlag)
				if !ok {
					return fmt.Errorf("unknown category %q (expected one of %s)", categoryFlag, categoryNames())
				}
				category = parsed
			}
			return ctx.withCatalog(func(cat *catalog.Catalog) error {
				assets, err := cat.List(cmd.Context(), category)
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					views := make([]assetView, 0, len(assets))
					for _, a := range assets {
						views = append(views, newAssetView(a))
					}
					return writeJSON(cmd, views)
				}
				out := cmd.OutOrStdout()
				if len(assets) == 0 {
					fmt.Fprintln(out, "No assets")
					return nil
				}
				rows := make([][]string, 0, len(assets))
				for _, a := range assets {
					rows = append(rows, []string{
						strconv.FormatInt(a.ID, 10),
						a.Title,
						a.Category.Label(),
						a.CreatedAt.Local().Format("2006-01-02 15:04"),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Title", "Category", "Created"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&categoryFlag, "category", "", "Only list assets in this category")
	return cmd
}

func newAssetShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one asset and its published variants",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return ctx.withCatalog(func(cat *catalog.Catalog) error {
				asset, err := cat.Get(cmd.Context(), id)
				if err != nil {
					return err
				}
				view := newAssetView(asset)
				dirs := hls.NewManager(logging.NewNop())
				source := hls.AssetFromSource(asset.SourcePath)
				heights, err := dirs.Variants(source)
				if err != nil {
					return err
				}
				for _, h := range heights {
					if dirs.Complete(source, h) {
						view.Variants = append(view.Variants, strconv.Itoa(h)+"p")
					}
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, view)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "ID:          %d\n", view.ID)
				fmt.Fprintf(out, "Title:       %s\n", view.Title)
				fmt.Fprintf(out, "Category:    %s\n", asset.Category.Label())
				if view.Description != "" {
					fmt.Fprintf(out, "Description: %s\n", view.Description)
				}
				fmt.Fprintf(out, "Source:      %s (present: %s)\n", view.SourcePath, yesNo(asset.Exists()))
				if view.ThumbnailPath != "" {
					fmt.Fprintf(out, "Thumbnail:   %s\n", view.ThumbnailPath)
				}
				fmt.Fprintf(out, "Created:     %s\n", view.CreatedAt)
				variants := "none"
				if len(view.Variants) > 0 {
					variants = strings.Join(view.Variants, ", ")
				}
				fmt.Fprintf(out, "Variants:    %s\n", variants)
				return nil
			})
		},
	}
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}

func categoryNames() string {
	names := make([]string, 0, len(catalog.Categories()))
	for _, c := range catalog.Categories() {
		names = append(names, string(c))
	}
	return strings.Join(names, ", ")
}
