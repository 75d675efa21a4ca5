package version

import "testing"

func TestMajor(t *testing.T) {
	tests := []struct {
		input string
		want  int
	}{
		{"v3.36.0", 3},
		{"3.36.0", 3},
		{"v12.0.1-dev", 12},
		{"4", 4},
		{"v4+build", 4},
		{"", 0},
		{"garbage", 0},
	}
	for _, tt := range tests {
		if got := Major(tt.input); got != tt.want {
			t.Errorf("Major(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}
