package cascade

import (
	"context"
	"errors"
	"fmt"

	"github.com/wolfman30/booking-cascade/internal/schedule"
)

// ID returns the id the controller was created with.
func (c *Controller) ID() string {
	return c.id
}

func (c *Controller) today() schedule.Date {
	return schedule.DateOf(c.clock.Now())
}

func (c *Controller) loadSpecialties() {
	c.setField(FieldSpecialty, FieldState{Status: StatusLoading, Placeholder: c.messages.Loading})
	c.fetch(FieldSpecialty, "", func(ctx context.Context) func() {
		specialties, err := c.gateway.FetchSpecialties(ctx)
		return func() {
			if err != nil {
				c.logger.Warn("specialty catalog load failed", "error", err)
				c.setField(FieldSpecialty, FieldState{Status: StatusError, Placeholder: c.messages.SpecialtiesFailed})
				c.notice(NoticeError, FieldSpecialty, c.messages.SpecialtiesFailed)
				return
			}
			opts := make([]Option, 0, len(specialties))
			for _, s := range specialties {
				opts = append(opts, Option{Value: s.ID, Label: s.Name})
			}
			c.setField(FieldSpecialty, FieldState{
				Status:      StatusPopulated,
				Options:     opts,
				Placeholder: c.messages.SpecialtyPlaceholder,
			})
		}
	})
}

// resetBelowSpecialty clears provider, date and time and abandons their fetches.
func (c *Controller) resetBelowSpecialty() {
	c.invalidate(FieldProvider)
	c.setField(FieldProvider, FieldState{Status: StatusDisabled, Placeholder: c.messages.ProviderPlaceholder})
	c.resetBelowProvider(false)
}

// resetBelowProvider clears date and time. The date stays enabled when a
// provider is selected.
func (c *Controller) resetBelowProvider(dateEnabled bool) {
	date := FieldState{Status: StatusDisabled}
	if dateEnabled {
		date = FieldState{Status: StatusEmpty, Min: c.today().String()}
	}
	c.setField(FieldDate, date)
	c.resetTime()
}

func (c *Controller) resetTime() {
	c.invalidate(FieldTime)
	c.slots = nil
	c.setField(FieldTime, FieldState{Status: StatusDisabled, Placeholder: c.messages.TimePlaceholder})
}

func (c *Controller) onSpecialtyChanged(specialtyID string) error {
	field := c.state.Specialty
	if specialtyID != "" {
		if field.Status != StatusPopulated {
			return fmt.Errorf("%w: %s", ErrFieldDisabled, FieldSpecialty)
		}
		if !field.HasOption(specialtyID) {
			return fmt.Errorf("%w: specialty %q", ErrUnknownOption, specialtyID)
		}
	}

	field.Value = specialtyID
	c.setField(FieldSpecialty, field)
	c.resetBelowSpecialty()
	if specialtyID == "" {
		return nil
	}

	c.setField(FieldProvider, FieldState{Status: StatusLoading, Placeholder: c.messages.Loading})
	c.fetch(FieldProvider, specialtyID, func(ctx context.Context) func() {
		providers, err := c.gateway.FetchProviders(ctx, specialtyID)
		return func() {
			if err != nil {
				c.logger.Warn("provider load failed", "specialty_id", specialtyID, "error", err)
				c.setField(FieldProvider, FieldState{Status: StatusError, Placeholder: c.messages.ProvidersFailed})
				c.notice(NoticeError, FieldProvider, c.messages.ProvidersFailed)
				return
			}
			opts := make([]Option, 0, len(providers))
			for _, p := range providers {
				if p.SpecialtyID != specialtyID {
					continue
				}
				opts = append(opts, Option{Value: p.ID, Label: p.FullName})
			}
			placeholder := c.messages.ProviderPlaceholder
			if len(opts) == 0 {
				placeholder = c.messages.NoProviders
			}
			c.setField(FieldProvider, FieldState{Status: StatusPopulated, Options: opts, Placeholder: placeholder})
		}
	})
	return nil
}

func (c *Controller) onProviderChanged(providerID string) error {
	field := c.state.Provider
	if providerID != "" {
		if field.Status != StatusPopulated {
			return fmt.Errorf("%w: %s", ErrFieldDisabled, FieldProvider)
		}
		if !field.HasOption(providerID) {
			return fmt.Errorf("%w: provider %q", ErrUnknownOption, providerID)
		}
	}

	field.Value = providerID
	c.setField(FieldProvider, field)
	c.resetBelowProvider(providerID != "")
	return nil
}

func (c *Controller) onDateChanged(value string) error {
	field := c.state.Date
	if !field.Enabled() {
		return fmt.Errorf("%w: %s", ErrFieldDisabled, FieldDate)
	}
	today := c.today()
	field.Min = today.String()

	if value == "" {
		field.Value = ""
		field.Status = StatusEmpty
		c.setField(FieldDate, field)
		c.resetTime()
		return nil
	}

	date, err := schedule.ParseDate(value)
	if err != nil {
		c.rejectDate(field, c.messages.InvalidDate)
		return err
	}
	if date.Before(today) {
		c.rejectDate(field, c.messages.PastDate)
		return fmt.Errorf("%w: %s < %s", ErrDateOutOfRange, date, today)
	}

	field.Value = date.String()
	field.Status = StatusPopulated
	c.setField(FieldDate, field)
	c.resetTime()

	providerID := c.state.Provider.Value
	if providerID == "" {
		return nil
	}
	c.setField(FieldTime, FieldState{Status: StatusLoading, Placeholder: c.messages.Loading})
	c.fetch(FieldTime, providerID+"|"+date.String(), func(ctx context.Context) func() {
		slots, err := c.gateway.FetchSlots(ctx, providerID, date)
		return func() {
			if err != nil {
				c.logger.Warn("slot load failed", "provider_id", providerID, "date", date.String(), "error", err)
				c.setField(FieldTime, FieldState{Status: StatusError, Placeholder: c.messages.SlotsFailed})
				c.notice(NoticeError, FieldTime, c.messages.SlotsFailed)
				return
			}
			c.slots = slots
			c.publishSlots(date, "")
		}
	})
	return nil
}

func (c *Controller) rejectDate(field FieldState, msg string) {
	field.Min = c.today().String()
	field.Value = ""
	field.Status = StatusEmpty
	c.setField(FieldDate, field)
	c.resetTime()
	c.notice(NoticeError, FieldDate, msg)
}

// publishSlots filters the last fetched slots against the clock and
// publishes them as the time field's options, keeping selected if it
// survives.
func (c *Controller) publishSlots(date schedule.Date, selected string) {
	filtered := schedule.FilterSlots(c.slots, date, c.clock.Now())
	opts := make([]Option, 0, len(filtered))
	for _, t := range schedule.Times(filtered) {
		opts = append(opts, Option{Value: t, Label: t})
	}

	fs := FieldState{Status: StatusPopulated, Options: opts, Placeholder: c.messages.TimePlaceholder}
	if len(opts) == 0 {
		fs.Placeholder = c.messages.NoSlots
	}
	if selected != "" && fs.HasOption(selected) {
		fs.Value = selected
	}
	c.setField(FieldTime, fs)
}

func (c *Controller) onTimeChanged(value string) error {
	field := c.state.Time
	if field.Status != StatusPopulated {
		return fmt.Errorf("%w: %s", ErrFieldDisabled, FieldTime)
	}
	if value == "" {
		field.Value = ""
		c.setField(FieldTime, field)
		return nil
	}

	tod, err := schedule.ParseTimeOfDay(value)
	if err != nil {
		return errors.Join(ErrUnknownOption, err)
	}
	value = tod.String()
	if !field.HasOption(value) {
		return fmt.Errorf("%w: time %q", ErrUnknownOption, value)
	}

	// The options were filtered when the slots arrived; the clock may have
	// moved past the chosen slot since.
	date, err := schedule.ParseDate(c.state.Date.Value)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrFieldDisabled, FieldDate)
	}
	now := c.clock.Now()
	if today := schedule.DateOf(now); today.After(date) {
		// The day rolled over while the page was open.
		c.rejectDate(c.state.Date, c.messages.PastDate)
		return fmt.Errorf("%w: %s < %s", ErrDateOutOfRange, date, today)
	}
	if schedule.DateOf(now) == date && !tod.After(schedule.TimeOfDayOf(now)) {
		c.publishSlots(date, "")
		c.notice(NoticeError, FieldTime, c.messages.SlotElapsed)
		return fmt.Errorf("%w: %s", ErrSlotElapsed, value)
	}

	field.Value = value
	c.setField(FieldTime, field)
	return nil
}
