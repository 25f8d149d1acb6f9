// Package crawler holds the document-ID crawl engine and the types shared by
// its collaborators. The engine scans an inclusive ID range in ascending
// order, asks a Classifier whether each unknown ID names a downloadable file,
// titles the file with a TitleExtractor, and records the result in a Catalog.
// Progress is readable at any time through Engine.Status.
package crawler
