package app

import "github.com/dkeye/CineMatch/internal/domain"

// EvaluateMatch reports whether every participant is among likers.
// An empty participant set never matches.
func EvaluateMatch(participants, likers []domain.UserID) bool {
	if len(participants) == 0 {
		return false
	}
	liked := make(map[domain.UserID]struct{}, len(likers))
	for _, id := range likers {
		liked[id] = struct{}{}
	}
	for _, id := range participants {
		if _, ok := liked[id]; !ok {
			return false
		}
	}
	return true
}
