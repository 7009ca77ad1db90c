package autofee

import (
	"fmt"
	"time"
)

// PolicyStats summarizes a single pass over a policy's channels.
type PolicyStats struct {
	PolicyID   string
	PolicyName string

	// ChannelsProcessed is the number of channels that passed the
	// policy's filters.
	ChannelsProcessed int

	// AdjustmentsMade is the number of fee updates the node accepted.
	AdjustmentsMade int

	// AdjustmentsFailed is the number of fee updates the node rejected.
	AdjustmentsFailed int

	// Errors holds update failures and any error that ended the pass
	// early.
	Errors []string
}

func newPolicyStats(policy *Policy) *PolicyStats {
	return &PolicyStats{
		PolicyID:   policy.ID,
		PolicyName: policy.Name,
	}
}

func (s *PolicyStats) addError(err error) {
	s.Errors = append(s.Errors, err.Error())
}

// String returns a one line summary of the pass.
func (s *PolicyStats) String() string {
	return fmt.Sprintf("policy %v (%v): %v channels, %v adjusted, %v "+
		"failed, %v errors", s.PolicyID, s.PolicyName,
		s.ChannelsProcessed, s.AdjustmentsMade, s.AdjustmentsFailed,
		len(s.Errors))
}

// RunStats summarizes a pass over a set of policies.
type RunStats struct {
	Start    time.Time
	Duration time.Duration

	PoliciesProcessed int
	ChannelsProcessed int
	AdjustmentsMade   int
	AdjustmentsFailed int

	// Policies holds the per-policy results in the order the policies
	// were listed.
	Policies []*PolicyStats

	// Error is set if we could not list the policies to process.
	Error string
}

func (s *RunStats) add(policy *PolicyStats) {
	s.PoliciesProcessed++
	s.ChannelsProcessed += policy.ChannelsProcessed
	s.AdjustmentsMade += policy.AdjustmentsMade
	s.AdjustmentsFailed += policy.AdjustmentsFailed
	s.Policies = append(s.Policies, policy)
}

// String returns a one line summary of the run.
func (s *RunStats) String() string {
	return fmt.Sprintf("%v policies, %v channels, %v adjustments made, "+
		"%v failed, duration: %v", s.PoliciesProcessed,
		s.ChannelsProcessed, s.AdjustmentsMade, s.AdjustmentsFailed,
		s.Duration)
}
