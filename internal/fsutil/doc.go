// Package fsutil provides the durability primitive used by the WAL writer.
package fsutil
