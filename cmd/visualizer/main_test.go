package main

import (
	"strings"
	"testing"
)

func TestDecodeResults(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		rows    int
		columns string
		wantErr bool
	}{
		{"array", `[{"country":"Finland","year":2020},{"country":"Sweden","year":2020}]`, 2, "country,year", false},
		{"response", `{"original_cypher":"q","executed_cypher":"q","results":[{"year":2019,"happiness":7.6}]}`, 1, "year,happiness", false},
		{"empty array", `[]`, 0, "", false},
		{"garbage", `not json`, 0, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs, err := decodeResults([]byte(tt.input))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if rs.Len() != tt.rows {
				t.Errorf("rows = %d, want %d", rs.Len(), tt.rows)
			}
			if got := strings.Join(rs.Schema(), ","); got != tt.columns {
				t.Errorf("columns = %q, want %q", got, tt.columns)
			}
		})
	}
}
