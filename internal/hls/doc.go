// Package hls manages the per-resolution output directories that sit next to
// each source video.
//
// A published variant lives at <dir>/<stem>_<height>p and contains index.m3u8
// plus segment_NNN.ts files. Encodes never write there directly: they fill
// .<stem>_<height>p.partial and Publish renames it into place, so readers
// resolving the final name see either a complete variant or nothing.
package hls
