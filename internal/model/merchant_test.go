package model

import "testing"

func TestNormalizeMerchant(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"NETFLIX.COM", "netflix com"},
		{"  Spotify   AB  ", "spotify ab"},
		{"CITY-POWER & LIGHT", "city power light"},
		{"AMZN Mktp US*1X2Y3", "amzn mktp us 1x2y3"},
		{"", ""},
		{"...", ""},
	}
	for _, tt := range tests {
		if got := NormalizeMerchant(tt.in); got != tt.want {
			t.Errorf("NormalizeMerchant(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
