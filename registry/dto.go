package registry

import (
	"fmt"
	"strings"
	"time"

	"github.com/Dosada05/roster-system/models"
)

type clubDTO struct {
	ID int `json:"id"`
}

type nameDTO struct {
	FederationNumber int      `json:"dfvNumber"`
	FirstName        *string  `json:"firstName"`
	LastName         *string  `json:"lastName"`
	LastModified     string   `json:"lastModified"`
	Consent          bool     `json:"dse"`
	Club             *clubDTO `json:"club"`
}

type profileDTO struct {
	FederationNumber int      `json:"dfvNumber"`
	Consent          bool     `json:"dse"`
	Paid             bool     `json:"paid"`
	Active           bool     `json:"active"`
	Idle             bool     `json:"idle"`
	Gender           string   `json:"gender"`
	DobString        string   `json:"dobString"`
	Email            string   `json:"email"`
	Club             *clubDTO `json:"club"`
}

var lastModifiedLayouts = []string{
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
}

func parseLastModified(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range lastModifiedLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: invalid lastModified %q", ErrBadData, raw)
}

// toModel never fails: an entry without a usable number or lastModified keeps a
// zero value there and is reported as malformed by the sync.
func (d nameDTO) toModel() models.Identity {
	id := models.Identity{
		FederationNumber: d.FederationNumber,
		FirstName:        d.FirstName,
		LastName:         d.LastName,
		Consent:          d.Consent,
	}
	if lm, err := parseLastModified(d.LastModified); err == nil {
		id.LastModified = lm
	}
	if d.Club != nil {
		id.ClubID = d.Club.ID
	}
	return id
}

func (d profileDTO) toModel() (*models.ProfileDetail, error) {
	p := &models.ProfileDetail{
		FederationNumber: d.FederationNumber,
		Consent:          d.Consent,
		Paid:             d.Paid,
		Active:           d.Active,
		Idle:             d.Idle,
		Gender:           d.Gender,
		Email:            d.Email,
	}
	if d.Club != nil {
		p.ClubID = d.Club.ID
	}
	if dob := strings.TrimSpace(d.DobString); dob != "" {
		bd, err := time.Parse("2006-01-02", dob)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid dobString %q", ErrBadData, dob)
		}
		p.BirthDate = &bd
	}
	return p, nil
}
