package browser

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"calbook/internal/models"
	"calbook/internal/retry"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"
)

// Navigate loads the scheduling URL and waits for network activity to settle
// before the calendar is touched.
func (s *Session) Navigate(ctx context.Context, url string) error {
	if s.page == nil {
		return ErrSessionClosed
	}

	page := s.page.Context(ctx).Timeout(s.cfg.NavigationTimeout())
	wait := page.WaitNavigation(proto.PageLifecycleEventNameNetworkIdle)
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	wait()

	s.logger.Debug().Str("url", url).Msg("page loaded")
	return nil
}

// SelectDate clicks the first calendar date that advertises available times
// and returns its label for later timestamp reconstruction.
func (s *Session) SelectDate(ctx context.Context) (string, error) {
	if s.page == nil {
		return "", ErrSessionClosed
	}

	var label string
	err := retry.Do(ctx, s.retry, func() error {
		page := s.page.Context(ctx)

		// Wait until the calendar itself renders; the date buttons query
		// below does not wait on its own.
		if _, err := page.Timeout(s.cfg.ElementTimeout()).Element(s.sel.Calendar); err != nil {
			return fmt.Errorf("wait for calendar: %w", err)
		}

		dates, err := page.Elements(s.sel.AvailableDates)
		if err != nil {
			return fmt.Errorf("query available dates: %w", err)
		}
		if len(dates) == 0 {
			return retry.Permanent(fmt.Errorf("%w: no selectable dates", ErrNoSlotsAvailable))
		}

		first := dates.First()
		aria, err := first.Attribute("aria-label")
		if err != nil || aria == nil {
			return fmt.Errorf("read date label: %w", err)
		}
		label = *aria

		if err := first.Click(proto.InputMouseButtonLeft, 1); err != nil {
			return fmt.Errorf("click date: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	s.logger.Debug().Str("date_label", label).Msg("date selected")
	return label, nil
}

// SelectTimeSlot clicks the first enabled time slot and advances past the
// Next confirmation. The start time is read before clicking because the
// button's attributes change once it is selected.
func (s *Session) SelectTimeSlot(ctx context.Context, dateLabel string) (time.Time, error) {
	if s.page == nil {
		return time.Time{}, ErrSessionClosed
	}

	var slotTime time.Time
	err := retry.Do(ctx, s.retry, func() error {
		page := s.page.Context(ctx)

		if _, err := page.Timeout(s.cfg.ElementTimeout()).Element(s.sel.TimeSlots); err != nil {
			return fmt.Errorf("wait for time slots: %w", err)
		}

		slots, err := page.Elements(s.sel.TimeSlots)
		if err != nil {
			return fmt.Errorf("query time slots: %w", err)
		}
		if len(slots) == 0 {
			return retry.Permanent(fmt.Errorf("%w: no selectable times", ErrNoSlotsAvailable))
		}

		first := slots.First()
		startText, err := slotStartTime(first)
		if err != nil {
			return err
		}

		parsed, err := ParseSlotTime(dateLabel, startText, time.Now())
		if err != nil {
			return retry.Permanent(err)
		}

		if err := first.Click(proto.InputMouseButtonLeft, 1); err != nil {
			return fmt.Errorf("click time slot: %w", err)
		}

		next, err := page.Timeout(s.cfg.ElementTimeout()).Element(s.sel.NextButton)
		if err != nil {
			return fmt.Errorf("wait for next button: %w", err)
		}
		if err := next.Click(proto.InputMouseButtonLeft, 1); err != nil {
			return fmt.Errorf("click next button: %w", err)
		}

		slotTime = parsed
		return nil
	})
	if err != nil {
		return time.Time{}, err
	}

	s.logger.Debug().Time("slot", slotTime).Msg("time slot selected")
	return slotTime, nil
}

// slotStartTime prefers the data-start-time attribute and falls back to the
// button's visible text.
func slotStartTime(el *rod.Element) (string, error) {
	if attr, err := el.Attribute("data-start-time"); err == nil && attr != nil && *attr != "" {
		return *attr, nil
	}
	text, err := el.Text()
	if err != nil {
		return "", fmt.Errorf("read slot start time: %w", err)
	}
	return text, nil
}

// FillForm types the invitee details into the booking form. Notes length is
// validated up front so oversized notes fail before anything is typed.
func (s *Session) FillForm(ctx context.Context, details models.FormDetails) error {
	if s.page == nil {
		return ErrSessionClosed
	}

	notes := strings.TrimSpace(details.Notes)
	if len(details.Notes) > models.MaxNotesLength {
		return fmt.Errorf("%w: %d characters", ErrNotesTooLong, len(details.Notes))
	}

	page := s.page.Context(ctx)

	if _, err := page.Timeout(s.cfg.ElementTimeout()).Element(s.sel.Form); err != nil {
		return fmt.Errorf("wait for booking form: %w", err)
	}

	if err := s.typeInto(page, s.sel.NameInput, details.Name); err != nil {
		return fmt.Errorf("fill name: %w", err)
	}
	if err := s.typeInto(page, s.sel.EmailInput, details.Email); err != nil {
		return fmt.Errorf("fill email: %w", err)
	}

	if len(details.GuestEmails) > 0 {
		if err := s.addGuests(ctx, page, details.GuestEmails); err != nil {
			return err
		}
	}

	if notes != "" {
		if err := s.typeInto(page, s.sel.NotesInput, notes); err != nil {
			return fmt.Errorf("fill notes: %w", err)
		}
	}

	return nil
}

// addGuests opens the guest input and submits each address, waiting for the
// page to acknowledge one guest before typing the next.
func (s *Session) addGuests(ctx context.Context, page *rod.Page, guests []string) error {
	// The control has no stable id or data attribute; match by visible text.
	addButton, err := page.Timeout(s.cfg.ElementTimeout()).ElementR("button", s.sel.AddGuestsText)
	if err != nil {
		return fmt.Errorf("find add-guests button: %w", err)
	}
	if err := addButton.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("click add-guests button: %w", err)
	}

	for _, guest := range guests {
		guest := guest
		err := retry.Do(ctx, s.retry, func() error {
			el, err := page.Timeout(s.cfg.ElementTimeout()).Element(s.sel.GuestInput)
			if err != nil {
				return fmt.Errorf("wait for guest input: %w", err)
			}
			if err := el.SelectAllText(); err != nil {
				return fmt.Errorf("focus guest input: %w", err)
			}
			if err := el.Input(guest); err != nil {
				return fmt.Errorf("type guest email: %w", err)
			}
			if err := el.Type(input.Enter); err != nil {
				return fmt.Errorf("submit guest email: %w", err)
			}

			// The address must show up in the added-guest list before the
			// next one goes in, otherwise entries get swallowed.
			_, err = page.Timeout(s.cfg.ElementTimeout()).ElementR(s.sel.AddedGuest, regexp.QuoteMeta(guest))
			if err != nil {
				return fmt.Errorf("guest %s not acknowledged: %w", guest, err)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("add guest: %w", err)
		}
	}

	return nil
}

func (s *Session) typeInto(page *rod.Page, selector, text string) error {
	el, err := page.Timeout(s.cfg.ElementTimeout()).Element(selector)
	if err != nil {
		return err
	}
	return el.Input(text)
}

// Submit clicks the schedule button and waits briefly for a confirmation
// view. Some confirmation flows stay in-page, so a missing confirmation
// element is tolerated and only logged.
func (s *Session) Submit(ctx context.Context) error {
	if s.page == nil {
		return ErrSessionClosed
	}

	page := s.page.Context(ctx)

	err := retry.Do(ctx, s.retry, func() error {
		btn, err := page.Timeout(s.cfg.ElementTimeout()).Element(s.sel.SubmitButton)
		if err != nil {
			return fmt.Errorf("wait for submit button: %w", err)
		}
		return btn.Click(proto.InputMouseButtonLeft, 1)
	})
	if err != nil {
		return fmt.Errorf("submit form: %w", err)
	}

	if _, err := page.Timeout(s.cfg.SubmitWait()).Element(s.sel.Confirmation); err != nil {
		s.logger.Debug().Err(err).Msg("no confirmation element observed after submit")
	}

	return nil
}
