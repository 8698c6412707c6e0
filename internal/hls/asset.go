package hls

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Manifest is the playlist name inside every variant directory.
const Manifest = "index.m3u8"

// SegmentPattern is the ffmpeg -hls_segment_filename template.
const SegmentPattern = "segment_%03d.ts"

// Asset identifies a source video by the pieces its derived paths are built
// from: <Dir>/<Stem><Ext>.
type Asset struct {
	Dir  string
	Stem string
	Ext  string
}

// AssetFromSource splits a source path into directory, stem and extension.
func AssetFromSource(path string) Asset {
	clean := filepath.Clean(path)
	base := filepath.Base(clean)
	ext := filepath.Ext(base)
	return Asset{
		Dir:  filepath.Dir(clean),
		Stem: strings.TrimSuffix(base, ext),
		Ext:  ext,
	}
}

// SourcePath reassembles the original file path.
func (a Asset) SourcePath() string {
	return filepath.Join(a.Dir, a.Stem+a.Ext)
}

func (a Asset) String() string {
	return a.Stem
}

// VariantName is the directory name for one resolution, e.g. clip_720p.
func VariantName(stem string, height int) string {
	return fmt.Sprintf("%s_%dp", stem, height)
}
