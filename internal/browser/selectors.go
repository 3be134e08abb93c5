package browser

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Selectors name every hook into the scheduling page's markup. The page is
// third-party and unversioned, so all of them can be overridden from a YAML
// file without touching the step logic. Semantic attributes (aria-label,
// data-*) are preferred over CSS classes; the Add Guests control has no
// stable attribute at all and is matched by visible text.
type Selectors struct {
	Calendar       string `yaml:"calendar"`
	AvailableDates string `yaml:"available_dates"`
	TimeSlots      string `yaml:"time_slots"`
	NextButton     string `yaml:"next_button"`
	Form           string `yaml:"form"`
	NameInput      string `yaml:"name_input"`
	EmailInput     string `yaml:"email_input"`
	AddGuestsText  string `yaml:"add_guests_text"`
	GuestInput     string `yaml:"guest_input"`
	AddedGuest     string `yaml:"added_guest"`
	NotesInput     string `yaml:"notes_input"`
	SubmitButton   string `yaml:"submit_button"`
	Confirmation   string `yaml:"confirmation"`
}

// DefaultSelectors matches the Calendly markup as of the last manual check.
func DefaultSelectors() Selectors {
	return Selectors{
		Calendar:       `[data-testid="calendar"]`,
		AvailableDates: `button[aria-label*="Times available"]:not([disabled])`,
		TimeSlots:      `button[data-container="time-button"]:not([disabled])`,
		NextButton:     `button[aria-label^="Next"]`,
		Form:           `form`,
		NameInput:      `input[name="full_name"]`,
		EmailInput:     `input[name="email"]`,
		AddGuestsText:  `Add Guests`,
		GuestInput:     `#invitee_guest_input`,
		AddedGuest:     `[data-qa="added-guest"]`,
		NotesInput:     `textarea[name="question_0"]`,
		SubmitButton:   `button[type="submit"]`,
		Confirmation:   `[data-component="confirmation-header"]`,
	}
}

// LoadSelectors reads overrides from path on top of the defaults. Empty
// fields in the file keep their default value.
func LoadSelectors(path string) (Selectors, error) {
	sel := DefaultSelectors()
	if path == "" {
		return sel, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return sel, fmt.Errorf("read selectors file: %w", err)
	}

	var fileConfig struct {
		Selectors Selectors `yaml:"selectors"`
	}
	if err := yaml.Unmarshal(data, &fileConfig); err != nil {
		return sel, fmt.Errorf("parse selectors file: %w", err)
	}

	merge := func(dst *string, src string) {
		if src != "" {
			*dst = src
		}
	}
	merge(&sel.Calendar, fileConfig.Selectors.Calendar)
	merge(&sel.AvailableDates, fileConfig.Selectors.AvailableDates)
	merge(&sel.TimeSlots, fileConfig.Selectors.TimeSlots)
	merge(&sel.NextButton, fileConfig.Selectors.NextButton)
	merge(&sel.Form, fileConfig.Selectors.Form)
	merge(&sel.NameInput, fileConfig.Selectors.NameInput)
	merge(&sel.EmailInput, fileConfig.Selectors.EmailInput)
	merge(&sel.AddGuestsText, fileConfig.Selectors.AddGuestsText)
	merge(&sel.GuestInput, fileConfig.Selectors.GuestInput)
	merge(&sel.AddedGuest, fileConfig.Selectors.AddedGuest)
	merge(&sel.NotesInput, fileConfig.Selectors.NotesInput)
	merge(&sel.SubmitButton, fileConfig.Selectors.SubmitButton)
	merge(&sel.Confirmation, fileConfig.Selectors.Confirmation)

	return sel, nil
}
