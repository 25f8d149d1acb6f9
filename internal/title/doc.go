// Package title derives a human readable title from a PDF's first page.
//
// pdfcpu reads the document in memory and yields the page-1 content stream
// and font resources. A small content-stream scanner recovers the shown text
// as blocks (one per BT/ET text object) and lines, decoding each string with
// the active font's ToUnicode CMap when it has one. The first block longer
// than five characters wins, then the first three non-blank lines, then the
// UnknownTitle sentinel. Any failure to read the document yields ErrorTitle.
// Extract never returns an empty string.
package title
