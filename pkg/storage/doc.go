// Package storage provides progress.Storage backends: an in-memory map, a
// directory of files on an afero filesystem, and Redis.
package storage
