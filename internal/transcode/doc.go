// Package transcode turns one source asset into every configured HLS
// resolution.
//
// Each resolution is encoded into its own staging directory and published
// independently. A failed resolution never aborts the others: the attempt is
// succeeded when all resolutions publish, partially_failed when some do, and
// failed when none do. Only a failed attempt returns an error, so the
// execution queue retries whole failures and leaves partial ones alone.
package transcode
