package entity

import (
	"time"

	"github.com/google/uuid"
)

type TreatmentRecord struct {
	Species   string    `json:"species"`
	Condition string    `json:"condition"`
	Treatment string    `json:"treatment"`
	SessionId uuid.UUID `json:"session_id"`
	At        time.Time `json:"at"`
}

type UserProfile struct {
	UserId             uuid.UUID
	ExperienceLevel    string
	CommunicationStyle string
	OwnedPlants        []string
	TopicCounts        map[string]int
	TreatmentHistory   []TreatmentRecord
	CreatedAt          time.Time
	UpdatedAt          *time.Time
}

// ProfileDelta is what a single turn contributes. Counters only ever grow.
type ProfileDelta struct {
	UserId             uuid.UUID
	ExperienceLevel    string
	CommunicationStyle string
	Plants             []string
	Topics             map[string]int
	Treatments         []TreatmentRecord
}

func (d ProfileDelta) IsEmpty() bool {
	return d.ExperienceLevel == "" && d.CommunicationStyle == "" &&
		len(d.Plants) == 0 && len(d.Topics) == 0 && len(d.Treatments) == 0
}

// Merge applies the delta onto the profile in place.
func (p *UserProfile) Merge(d ProfileDelta) {
	if d.ExperienceLevel != "" {
		p.ExperienceLevel = d.ExperienceLevel
	}
	if d.CommunicationStyle != "" {
		p.CommunicationStyle = d.CommunicationStyle
	}

	seen := make(map[string]bool, len(p.OwnedPlants))
	for _, plant := range p.OwnedPlants {
		seen[plant] = true
	}
	for _, plant := range d.Plants {
		if plant == "" || seen[plant] {
			continue
		}
		seen[plant] = true
		p.OwnedPlants = append(p.OwnedPlants, plant)
	}

	if p.TopicCounts == nil {
		p.TopicCounts = make(map[string]int)
	}
	for topic, n := range d.Topics {
		if n > 0 {
			p.TopicCounts[topic] += n
		}
	}

	p.TreatmentHistory = append(p.TreatmentHistory, d.Treatments...)
}
