package api

import (
	"time"

	"github.com/autoremedy/autoremedy/internal/database"
)

// IncidentToListItem converts an ErrorIncident to its compact list form.
func IncidentToListItem(i database.ErrorIncident) IncidentListItem {
	item := IncidentListItem{
		ID:              i.ID,
		ErrorType:       i.ErrorType,
		ErrorMessage:    i.ErrorMessage,
		Severity:        i.Severity,
		ServiceName:     i.ServiceName,
		Environment:     i.Environment,
		OccurrenceCount: i.OccurrenceCount,
		Status:          i.Status,
		AttemptCount:    len(i.RemediationAttempts),
		LastOccurred:    i.LastOccurred.Format(time.RFC3339),
		CreatedAt:       i.CreatedAt.Format(time.RFC3339),
	}
	if i.ResolvedAt != nil {
		item.ResolvedAt = i.ResolvedAt.Format(time.RFC3339)
	}
	return item
}

// IncidentsToListItems converts a slice of incidents to list items.
func IncidentsToListItems(incidents []database.ErrorIncident) []IncidentListItem {
	items := make([]IncidentListItem, len(incidents))
	for i, inc := range incidents {
		items[i] = IncidentToListItem(inc)
	}
	return items
}
