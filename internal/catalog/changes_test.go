package catalog

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyChangeField(t *testing.T) {
	t.Parallel()

	tests := []struct {
		field string
		want  string
	}{
		{"stock", "stock"},
		{"Stock_Status", "stock"},
		{"availability", "stock"},
		{"qty_on_hand", "stock"},
		{"inventory_level", "stock"},
		{"description", "description"},
		{"product_description", "description"},
		{"marketing_copy", "description"},
		{"page_content", "description"},
		{"price", "price"},
		{"sale_price", "price"},
		{"unit_cost", "price"},
		{"title", "other"},
		{"  Condition ", "other"},
		{"", "other"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyChangeField(tt.field), "field %q", tt.field)
	}
}

func TestMeaningfulChange(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		field    string
		oldValue string
		newValue string
		want     bool
	}{
		{"stock flip", "stock", "in_stock", "out_of_stock", true},
		{"separator only", "stock", "in_stock", "In Stock", false},
		{"case only", "stock", "LIMITED", "limited", false},
		{"both empty", "stock", "", "  ", false},
		{"empty to value", "stock", "", "in_stock", true},
		{"description edit", "description", "OEM part", "OEM pulled part", true},
		{"description whitespace", "description", "OEM part", " OEM  part ", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, meaningfulChange(tt.field, tt.oldValue, tt.newValue))
		})
	}
}

func TestTruncateChangeValue(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "short", truncateChangeValue("  short  "))

	long := strings.Repeat("a", 600)
	got := truncateChangeValue(long)
	assert.Len(t, got, changeValueLimit)
	assert.True(t, strings.HasSuffix(got, "..."))
}
