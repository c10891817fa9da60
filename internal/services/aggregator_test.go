package services

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Lllllllleong/titlereport/internal/models"
)

func TestAggregate(t *testing.T) {
	fragments := []models.Fragment{
		{Index: 0, Provider: "Watsonx", Text: "# Report On Title"},
		{Index: 1, Provider: "Watsonx", Err: errors.New("unexpected end of JSON input"), Raw: ""},
		{Index: 2, Provider: "Watsonx", Text: "IX. OPINION"},
	}
	assert.Equal(t,
		"# Report On Title\n\n[Watsonx response error: unexpected end of JSON input - Raw: ]\n\nIX. OPINION",
		Aggregate(fragments))
}

func TestAggregate_Edges(t *testing.T) {
	assert.Equal(t, "", Aggregate(nil))
	assert.Equal(t, "only", Aggregate([]models.Fragment{{Text: "only"}}))
}
