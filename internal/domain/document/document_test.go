package document

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTable_Text(t *testing.T) {
	tbl := Table{
		Name:    "Income statement",
		Columns: []string{"Quarter", "Revenue"},
		Rows:    [][]string{{"Q2", "24.9B"}, {"Q3", "25.2B"}},
	}
	assert.Equal(t,
		"Table: Income statement\nColumns: Quarter, Revenue\nRows:\n- Q2, 24.9B\n- Q3, 25.2B",
		tbl.Text())
	assert.True(t, strings.HasPrefix(Table{Columns: []string{"a"}}.Text(), "Table: untitled\n"))
}

func TestArticle_Text(t *testing.T) {
	assert.Equal(t, "Deliveries beat\nRecord quarter", Article{Title: "Deliveries beat", Summary: "Record quarter"}.Text())
	assert.Equal(t, "only title", Article{Title: " only title "}.Text())
	assert.Equal(t, "only summary", Article{Summary: "only summary"}.Text())
}

func TestDocument_Validate(t *testing.T) {
	tests := []struct {
		name    string
		doc     Document
		wantErr bool
	}{
		{"valid", Document{Name: "10-Q", Text: "x", Tables: []Table{{Columns: []string{"a"}, Rows: [][]string{{"1"}}}}}, false},
		{"no name", Document{Text: "x"}, true},
		{"ragged table", Document{Name: "d", Tables: []Table{{Columns: []string{"a", "b"}, Rows: [][]string{{"1"}}}}}, true},
		{"table without columns", Document{Name: "d", Tables: []Table{{Name: "t"}}}, true},
		{"empty article", Document{Name: "d", Articles: []Article{{URL: "https://x"}}}, true},
		{"too large", Document{Name: "d", Text: strings.Repeat("a", MaxTextSize+1)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.doc.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
