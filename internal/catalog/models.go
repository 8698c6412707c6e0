package catalog

import (
	"path/filepath"
	"slices"
	"strings"
	"time"

	"videoflix/internal/textutil"
)

// Category classifies an asset for browsing.
type Category string

const (
	CategoryMovie       Category = "MOVIE"
	CategoryTutorial    Category = "TUTORIAL"
	CategoryVlog        Category = "VLOG"
	CategoryMusic       Category = "MUSIC"
	CategoryNews        Category = "NEWS"
	CategoryGaming      Category = "GAMING"
	CategoryDocumentary Category = "DOCUMENTARY"
)

var allCategories = []Category{
	CategoryMovie,
	CategoryTutorial,
	CategoryVlog,
	CategoryMusic,
	CategoryNews,
	CategoryGaming,
	CategoryDocumentary,
}

// Categories returns every category in display order.
func Categories() []Category {
	return slices.Clone(allCategories)
}

// ParseCategory accepts a category name in any case. Empty input selects
// CategoryMovie.
func ParseCategory(value string) (Category, bool) {
	value = strings.ToUpper(strings.TrimSpace(value))
	if value == "" {
		return CategoryMovie, true
	}
	for _, c := range allCategories {
		if string(c) == value {
			return c, true
		}
	}
	return "", false
}

// Label is the human readable category name.
func (c Category) Label() string {
	if c == CategoryMusic {
		return "Music Video"
	}
	return textutil.TitleCase(strings.ToLower(string(c)))
}

// VideoExtensions lists the accepted upload extensions.
var VideoExtensions = []string{".mp4", ".mov", ".avi", ".mkv", ".flv", ".wmv"}

// SupportedVideo reports whether path has an accepted extension.
func SupportedVideo(path string) bool {
	return slices.Contains(VideoExtensions, strings.ToLower(filepath.Ext(path)))
}

// Asset is one catalog row.
type Asset struct {
	ID            int64
	Title         string
	Description   string
	Category      Category
	SourcePath    string
	ThumbnailPath string
	CreatedAt     time.Time
}

// CreateRequest describes an upload to register.
type CreateRequest struct {
	Title         string
	Description   string
	Category      string
	VideoFile     string
	ThumbnailFile string
}
