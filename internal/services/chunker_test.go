package services

import (
	"math/rand"
	"testing"
	"testing/quick"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/titlereport/internal/models"
)

func translatedPages(n int) []models.TranslatedPage {
	pages := make([]models.TranslatedPage, n)
	for i := range pages {
		pages[i] = models.TranslatedPage{Label: models.PageLabel(i + 1), Text: "text"}
	}
	return pages
}

func TestChunkPages(t *testing.T) {
	tests := []struct {
		name  string
		pages int
		size  int
		want  []int
	}{
		{"200 pages default size", 200, 90, []int{90, 90, 20}},
		{"exact multiple", 180, 90, []int{90, 90}},
		{"fewer pages than size", 5, 90, []int{5}},
		{"size one", 3, 1, []int{1, 1, 1}},
		{"empty", 0, 90, []int{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks, err := ChunkPages(translatedPages(tt.pages), tt.size)
			require.NoError(t, err)

			sizes := make([]int, len(chunks))
			for i, c := range chunks {
				sizes[i] = len(c.Pages)
				assert.Equal(t, i, c.Index)
			}
			assert.Equal(t, tt.want, sizes)
		})
	}
}

func TestChunkPages_InvalidSize(t *testing.T) {
	for _, size := range []int{0, -1} {
		_, err := ChunkPages(translatedPages(3), size)
		assert.ErrorIs(t, err, ErrInvalidChunkSize)
	}
}

func TestChunkPages_PartitionProperty(t *testing.T) {
	property := func(n uint8, s uint8) bool {
		size := int(s)%100 + 1
		pages := translatedPages(int(n))

		chunks, err := ChunkPages(pages, size)
		if err != nil {
			return false
		}

		flat := []string{}
		for i, c := range chunks {
			if len(c.Pages) == 0 || len(c.Pages) > size {
				return false
			}
			if i < len(chunks)-1 && len(c.Pages) != size {
				return false
			}
			flat = append(flat, c.Labels()...)
		}
		want := []string{}
		for _, p := range pages {
			want = append(want, p.Label)
		}
		return assert.ObjectsAreEqual(want, flat)
	}

	cfg := &quick.Config{MaxCount: 100, Rand: rand.New(rand.NewSource(42))}
	require.NoError(t, quick.Check(property, cfg))
}
