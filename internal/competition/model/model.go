package model

import (
	"time"

	"alchemy/internal/competition/status"
)

// Event types carried on the status topic.
const (
	EventStatusChanged = "competition.status_changed"
)

// StatusRecord is the transport view of a derived status.
type StatusRecord struct {
	ID           string       `json:"id"`
	DAO          string       `json:"dao"`
	Title        string       `json:"title,omitempty"`
	Kind         status.Kind  `json:"kind"`
	Label        string       `json:"label"`
	EvaluatedAt  time.Time    `json:"evaluated_at"`
	NextBoundary *time.Time   `json:"next_boundary,omitempty"`
	Flags        status.Flags `json:"flags"`
}

// NewStatusRecord flattens s for d.
func NewStatusRecord(d status.Descriptor, s status.Status) StatusRecord {
	rec := StatusRecord{
		ID:          d.ID,
		DAO:         d.DAO,
		Title:       d.Title,
		Kind:        s.Kind,
		Label:       status.Label(s.Kind),
		EvaluatedAt: s.EvaluatedAt,
		Flags:       s.Flags(),
	}
	if at, ok := status.NextBoundary(s, d); ok {
		rec.NextBoundary = &at
	}
	return rec
}

// CompetitionView is what the API returns for one competition.
type CompetitionView struct {
	Descriptor status.Descriptor `json:"descriptor"`
	Status     StatusRecord      `json:"status"`
}

// StatusChangedEvent is published whenever a competition enters a new kind.
type StatusChangedEvent struct {
	Type      string       `json:"type"`
	Status    StatusRecord `json:"status"`
	CreatedAt int64        `json:"created_at"`
}

// DescriptorMessage is the payload of the descriptor push topic. Every
// message replaces the stored descriptor; Deleted removes it.
type DescriptorMessage struct {
	Descriptor status.Descriptor `json:"descriptor"`
	Deleted    bool              `json:"deleted,omitempty"`
}

// ArchiveRecord is the final snapshot kept in object storage once a
// competition is over.
type ArchiveRecord struct {
	Descriptor status.Descriptor `json:"descriptor"`
	Status     StatusRecord      `json:"status"`
	ArchivedAt time.Time         `json:"archived_at"`
}
