// Package catalog holds the durable mapping from document identifier to
// discovered metadata. The full mapping lives in memory; Flush serializes it
// through a crawler.CatalogBackend (local file, GCS object, or memory).
package catalog
