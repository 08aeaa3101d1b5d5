package core

import (
	"reflect"
	"testing"
)

func TestParseMentions(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"halo @budi dan @siti, cc @budi", []string{"budi", "siti"}},
		{"@Budi @budi", []string{"Budi", "budi"}},
		{"no mentions here", nil},
		{"email a@b then @dewi_2", []string{"b", "dewi_2"}},
		{"@Çelik ok", []string{"Çelik"}},
	}
	for _, tt := range tests {
		got := ParseMentions(tt.in)
		if !reflect.DeepEqual(got, tt.want) {
			t.Fatalf("ParseMentions(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
