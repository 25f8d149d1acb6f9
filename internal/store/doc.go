// Package store defines interfaces for secondary persistence of crawl runs
// and discovered documents. Implementations live in other packages; this
// package must not import database drivers or concrete clients.
package store
