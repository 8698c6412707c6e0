// Package encoding invokes ffmpeg to turn a source video into a single-height
// HLS variant: an index.m3u8 VOD playlist and numbered .ts segments.
//
// Each call handles exactly one resolution. Failures come back as
// *EncodeFailedError carrying the exit status and the tail of stderr; the
// caller decides whether other resolutions continue.
package encoding
