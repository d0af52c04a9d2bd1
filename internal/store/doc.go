// Package store persists conversations as one indented JSON document per
// conversation. Reads recover the longest valid prefix of a damaged record;
// writes go through a temp file and rename so a crash never leaves a torn
// record behind.
package store
