// Package preflight provides readiness checks for the programs and paths
// videoflix depends on.
//
// These checks run in two contexts:
//   - The worker pool calls RunAll before it starts claiming jobs and refuses
//     to start when a required check fails.
//   - The CLI "videoflix preflight" command prints every result.
//
// Advisory checks (free space) report a problem without blocking startup.
package preflight
