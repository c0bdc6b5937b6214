// Package isam implements an indexed sequential access method: a table of
// variable-length rows keyed by one or more compressed B+tree indexes,
// stored as a pair of files (data + index) and made crash-safe by a
// write-ahead transaction log.
//
// A Table is opened with Build or Open and driven through row-at-a-time
// primitives — Write, Read, Rewrite, Delete — plus ordered traversal via
// Start/Read(NEXT|PREV). Every operation brackets its work with an
// internal enter/exit pair that takes a byte-range lock on the index
// file, detects cross-process mutation via the dictionary's transaction
// counter, and keeps the in-memory B+tree mirror consistent with disk.
package isam
