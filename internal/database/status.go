package database

// IncidentStatus represents the lifecycle state of an error incident
type IncidentStatus string

const (
	IncidentStatusOpen          IncidentStatus = "open"
	IncidentStatusInvestigating IncidentStatus = "investigating"
	IncidentStatusResolved      IncidentStatus = "resolved"
	IncidentStatusClosed        IncidentStatus = "closed"
)

// incidentTransitions is the set of legal incident status transitions.
// Reopening a resolved or closed incident is not allowed; a recurring
// error opens a fresh incident instead.
var incidentTransitions = map[IncidentStatus][]IncidentStatus{
	IncidentStatusOpen:          {IncidentStatusInvestigating, IncidentStatusResolved, IncidentStatusClosed},
	IncidentStatusInvestigating: {IncidentStatusResolved, IncidentStatusClosed},
	IncidentStatusResolved:      {IncidentStatusClosed},
	IncidentStatusClosed:        {},
}

// IsValid reports whether the status is a recognized value
func (s IncidentStatus) IsValid() bool {
	_, ok := incidentTransitions[s]
	return ok
}

// IsActive reports whether the incident still participates in dedup
func (s IncidentStatus) IsActive() bool {
	return s == IncidentStatusOpen || s == IncidentStatusInvestigating
}

// IsTerminal reports whether no further transitions are possible
func (s IncidentStatus) IsTerminal() bool {
	return s == IncidentStatusClosed
}

// CanTransitionTo reports whether moving from s to next is legal
func (s IncidentStatus) CanTransitionTo(next IncidentStatus) bool {
	for _, allowed := range incidentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// AttemptStatus represents the pipeline state of a remediation attempt
type AttemptStatus string

const (
	AttemptStatusStarted   AttemptStatus = "started"
	AttemptStatusAnalyzed  AttemptStatus = "analyzed"
	AttemptStatusFixed     AttemptStatus = "fixed"
	AttemptStatusTested    AttemptStatus = "tested"
	AttemptStatusPRCreated AttemptStatus = "pr_created"
	AttemptStatusApproved  AttemptStatus = "approved"
	AttemptStatusFailed    AttemptStatus = "failed"
)

// attemptOrder encodes the forward-only pipeline position for each
// non-terminal status. "failed" is reachable from any non-terminal
// status; "approved" only from pr_created.
var attemptOrder = map[AttemptStatus]int{
	AttemptStatusStarted:   0,
	AttemptStatusAnalyzed:  1,
	AttemptStatusFixed:     2,
	AttemptStatusTested:    3,
	AttemptStatusPRCreated: 4,
}

// IsValid reports whether the status is a recognized value
func (s AttemptStatus) IsValid() bool {
	if _, ok := attemptOrder[s]; ok {
		return true
	}
	return s == AttemptStatusApproved || s == AttemptStatusFailed
}

// IsTerminal reports whether the attempt has finished
func (s AttemptStatus) IsTerminal() bool {
	return s == AttemptStatusApproved || s == AttemptStatusFailed
}

// CanTransitionTo reports whether moving from s to next is legal
func (s AttemptStatus) CanTransitionTo(next AttemptStatus) bool {
	if s.IsTerminal() {
		return false
	}
	if next == AttemptStatusFailed {
		return true
	}
	if next == AttemptStatusApproved {
		return s == AttemptStatusPRCreated
	}
	cur, ok := attemptOrder[s]
	if !ok {
		return false
	}
	nxt, ok := attemptOrder[next]
	if !ok {
		return false
	}
	return nxt > cur
}
