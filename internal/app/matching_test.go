package app

import (
	"testing"

	"github.com/dkeye/CineMatch/internal/domain"
)

func TestEvaluateMatch(t *testing.T) {
	t.Parallel()

	ids := func(v ...domain.UserID) []domain.UserID { return v }
	tests := []struct {
		name         string
		participants []domain.UserID
		likers       []domain.UserID
		want         bool
	}{
		{name: "no participants", participants: nil, likers: ids("a"), want: false},
		{name: "no participants no likers", participants: nil, likers: nil, want: false},
		{name: "single participant liked", participants: ids("a"), likers: ids("a"), want: true},
		{name: "one of three", participants: ids("a", "b", "c"), likers: ids("b"), want: false},
		{name: "two of three", participants: ids("a", "b", "c"), likers: ids("b", "c"), want: false},
		{name: "all three", participants: ids("a", "b", "c"), likers: ids("c", "a", "b"), want: true},
		{name: "likers superset", participants: ids("a", "b"), likers: ids("a", "b", "gone"), want: true},
		{name: "late joiner missing", participants: ids("a", "b", "late"), likers: ids("a", "b"), want: false},
		{name: "duplicate likers", participants: ids("a", "b"), likers: ids("a", "a"), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := EvaluateMatch(tt.participants, tt.likers); got != tt.want {
				t.Fatalf("EvaluateMatch(%v, %v) = %v, want %v", tt.participants, tt.likers, got, tt.want)
			}
		})
	}
}
