package service

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"alchemy/internal/competition/status"
	appErr "alchemy/pkg/errors"
)

const maxIDLength = 128

// Ids double as archive object names, so separators are not allowed.
var idPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._:-]*$`)

func validateID(id string) error {
	if id == "" {
		return appErr.ValidationError("id", "required")
	}
	if len(id) > maxIDLength {
		return appErr.ValidationError("id", "too_long")
	}
	if !idPattern.MatchString(id) {
		return appErr.ValidationError("id", "invalid_characters")
	}
	return nil
}

func normalizeDescriptor(d status.Descriptor) status.Descriptor {
	d.ID = strings.TrimSpace(d.ID)
	d.DAO = strings.TrimSpace(d.DAO)
	d.Title = strings.TrimSpace(d.Title)
	d.StartTime = d.StartTime.UTC()
	d.SuggestionsEndTime = d.SuggestionsEndTime.UTC()
	d.VotingStartTime = d.VotingStartTime.UTC()
	d.EndTime = d.EndTime.UTC()
	return d
}

func validateDescriptor(d status.Descriptor) error {
	if err := validateID(d.ID); err != nil {
		return err
	}
	if d.DAO == "" {
		return appErr.ValidationError("dao", "required")
	}
	for _, f := range []struct {
		name string
		at   time.Time
	}{
		{"start_time", d.StartTime},
		{"suggestions_end_time", d.SuggestionsEndTime},
		{"voting_start_time", d.VotingStartTime},
		{"end_time", d.EndTime},
	} {
		if f.at.IsZero() {
			return appErr.ValidationError(f.name, "required")
		}
	}
	if d.TotalSubmissions < 0 {
		return appErr.ValidationError("total_submissions", "negative")
	}
	if d.NumberOfWinningSubmissions < 0 {
		return appErr.ValidationError("number_of_winning_submissions", "negative")
	}
	if err := d.Validate(); err != nil {
		var be *status.BoundaryError
		if errors.As(err, &be) {
			return appErr.New(appErr.DescriptorOutOfOrder).
				WithMessage(err.Error()).
				WithDetail("earlier", be.Earlier).
				WithDetail("later", be.Later)
		}
		return appErr.Wrap(err, appErr.InvalidDescriptor)
	}
	return nil
}
