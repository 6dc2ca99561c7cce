package validation

import "testing"

func TestIsValidMonth(t *testing.T) {
	tests := []struct {
		name  string
		month string
		want  bool
	}{
		{"valid january", "2024-01", true},
		{"valid december", "2024-12", true},
		{"month zero", "2024-00", false},
		{"month thirteen", "2024-13", false},
		{"no separator", "2024001", false},
		{"letters", "2O24-01", false},
		{"too short", "2024-1", false},
		{"too long", "2024-011", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidMonth(tt.month); got != tt.want {
				t.Errorf("IsValidMonth(%q) = %v, want %v", tt.month, got, tt.want)
			}
		})
	}
}
