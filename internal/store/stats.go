package store

import (
	"github.com/google/uuid"

	"github.com/proctorhq/proctor-backend/internal/model"
)

// LiveStats is the dashboard summary derived from current store contents.
type LiveStats struct {
	TotalSessions      int `json:"total_sessions"`
	ActiveSessions     int `json:"active_sessions"`
	SubmittedSessions  int `json:"submitted_sessions"`
	TerminatedSessions int `json:"terminated_sessions"`
	TotalAnswers       int `json:"total_answers"`
	GradedAnswers      int `json:"graded_answers"`
	PendingGrading     int `json:"pending_grading"`
}

// ComputeStats recounts the stats from scratch in O(n) over the given
// snapshots. Store sizes are bounded by one exam's roster, so there is no
// incremental accounting. Invariant: GradedAnswers + PendingGrading ==
// TotalAnswers.
func ComputeStats(sessions []model.Session, answers []model.Answer) LiveStats {
	stats := LiveStats{
		TotalSessions: len(sessions),
		TotalAnswers:  len(answers),
	}

	for i := range sessions {
		switch model.NormalizeStatus(sessions[i].Status) {
		case model.SessionStatusInProgress:
			stats.ActiveSessions++
		case model.SessionStatusSubmitted:
			stats.SubmittedSessions++
		case model.SessionStatusTerminated:
			stats.TerminatedSessions++
		}
	}

	for i := range answers {
		if answers[i].Graded() {
			stats.GradedAnswers++
		} else {
			stats.PendingGrading++
		}
	}

	return stats
}

// AtRiskSessions returns the ids of live sessions whose warning total has
// reached the threshold. Derived per call, never stored. A threshold of zero
// disables the flag.
func AtRiskSessions(sessions []model.Session, threshold int) []uuid.UUID {
	if threshold <= 0 {
		return nil
	}

	var ids []uuid.UUID
	for i := range sessions {
		if sessions[i].Status.IsLive() && sessions[i].TotalWarnings >= threshold {
			ids = append(ids, sessions[i].ID)
		}
	}
	return ids
}
