package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/soundpool-go/internal/errors"
)

func TestParsePriority(t *testing.T) {
	t.Parallel()

	for _, valid := range []string{"low", "medium", "high", "critical"} {
		p, err := ParsePriority(valid)
		require.NoError(t, err, "priority %q should parse", valid)
		assert.Equal(t, Priority(valid), p)
	}
}

func TestParsePriorityRejectsUnknownValues(t *testing.T) {
	t.Parallel()

	for _, invalid := range []string{"", "urgent", "HIGH", "Critical "} {
		_, err := ParsePriority(invalid)
		require.Error(t, err, "priority %q should be rejected", invalid)
		assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
	}
}

func TestPriorityOrdering(t *testing.T) {
	t.Parallel()

	assert.True(t, PriorityCritical.AtLeast(PriorityHigh))
	assert.True(t, PriorityHigh.AtLeast(PriorityHigh))
	assert.False(t, PriorityMedium.AtLeast(PriorityHigh))
	assert.False(t, PriorityLow.AtLeast(PriorityMedium))
	assert.True(t, PriorityLow.AtLeast(PriorityLow))
}

func TestCategoryPriority(t *testing.T) {
	t.Parallel()

	tests := []struct {
		category string
		want     Priority
	}{
		{string(errors.CategoryEngineInit), PriorityCritical},
		{string(errors.CategoryDatabase), PriorityCritical},
		{string(errors.CategorySystem), PriorityHigh},
		{string(errors.CategoryConfiguration), PriorityHigh},
		{string(errors.CategoryCatalogLoad), PriorityHigh},
		{string(errors.CategoryMQTTConnection), PriorityMedium},
		{string(errors.CategoryPlayback), PriorityMedium},
		{string(errors.CategoryValidation), PriorityLow},
		{string(errors.CategoryNotFound), PriorityLow},
		{"something-new", PriorityMedium},
	}

	for _, tt := range tests {
		t.Run(tt.category, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, categoryPriority(tt.category))
		})
	}
}
