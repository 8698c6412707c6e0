// Package textutil normalizes user supplied text into filesystem-safe names
// and display titles.
package textutil
