// Package catalog is the owning record of uploaded videos.
//
// Creating an asset copies the upload under <media_root>/videos, inserts the
// row and schedules its transcode in one unit of work; deleting an asset
// removes the row and schedules cleanup of its files. Jobs reach the queue
// only if the catalog transaction commits.
package catalog
