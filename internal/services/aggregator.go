package services

import (
	"strings"

	"github.com/Lllllllleong/titlereport/internal/models"
)

// FragmentSeparator sits between consecutive report fragments.
const FragmentSeparator = "\n\n"

// Aggregate joins the fragment contents in order. Failed fragments contribute
// their error placeholder.
func Aggregate(fragments []models.Fragment) string {
	parts := make([]string, len(fragments))
	for i, f := range fragments {
		parts[i] = f.Content()
	}
	return strings.Join(parts, FragmentSeparator)
}
