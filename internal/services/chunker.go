package services

import (
	"errors"
	"fmt"

	"github.com/Lllllllleong/titlereport/internal/models"
)

// DefaultChunkSize is the number of pages sent in one generation call.
const DefaultChunkSize = 90

// ErrInvalidChunkSize is returned for chunk sizes below one.
var ErrInvalidChunkSize = errors.New("chunk size must be at least 1")

// ChunkPages partitions pages, in order, into groups of size. Only the last
// chunk may be smaller. No input gives no chunks.
func ChunkPages(pages []models.TranslatedPage, size int) ([]models.Chunk, error) {
	if size < 1 {
		return nil, fmt.Errorf("%w, got %d", ErrInvalidChunkSize, size)
	}

	chunks := make([]models.Chunk, 0, (len(pages)+size-1)/size)
	for start := 0; start < len(pages); start += size {
		end := min(start+size, len(pages))
		chunks = append(chunks, models.Chunk{
			Index: len(chunks),
			Pages: pages[start:end:end],
		})
	}
	return chunks, nil
}
