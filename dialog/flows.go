package dialog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"clockbot/service"
	"clockbot/store"
)

// IdentityOps is the identity surface the flows need.
type IdentityOps interface {
	Sync(ctx context.Context) (int, error)
	Lookup(ctx context.Context, handle string) (store.Identity, bool, error)
	BindEmail(ctx context.Context, email, handle string) (bool, error)
	SetCredential(ctx context.Context, handle, credential string) error
}

// EntryOps is the time-entry surface the flows need.
type EntryOps interface {
	ProjectNames(ctx context.Context, clockifyUserID string) ([]string, error)
	Create(ctx context.Context, id store.Identity, in service.EntryInput) error
	StartNow(ctx context.Context, id store.Identity, project, description string) error
	EndNow(ctx context.Context, id store.Identity) error
}

// Flow names used by the bot's command bindings.
const (
	FlowRegistration = "registration"
	FlowCreateEntry  = "create_entry"
	FlowStartEntry   = "start_entry"
	FlowChangeKey    = "change_api_key"
)

// Deps bundles the collaborators the flow definitions close over.
type Deps struct {
	Identity IdentityOps
	Entries  EntryOps
	// Now supplies the current time for date keyboards; defaults to time.Now.
	Now func() time.Time
}

func (d *Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// Flows builds every conversational flow of the bot.
func (d *Deps) Flows() []*Flow {
	return []*Flow{
		d.RegistrationFlow(),
		d.CreateEntryFlow(),
		d.StartEntryFlow(),
		d.ChangeKeyFlow(),
	}
}

// noHandleMessage is sent to senders whose Telegram profile has no username.
// Identity rows are keyed by username, so such senders cannot be bound; an
// empty handle would also collide with the empty tg_username of pending rows.
const noHandleMessage = "Set a username in your Telegram profile settings, then try again."

// RegistrationFlow binds a Telegram account to a Clockify workspace member.
// Entering it first reconciles the workspace member list into the store,
// then short-circuits if the sender is already registered.
func (d *Deps) RegistrationFlow() *Flow {
	return &Flow{
		Name: FlowRegistration,
		Gate: func(ctx context.Context, s Sender) []Reply {
			if s.Handle == "" {
				return []Reply{{Text: noHandleMessage}}
			}
			if _, err := d.Identity.Sync(ctx); err != nil {
				return fail("Error syncing workspace users", err)
			}
			id, found, err := d.Identity.Lookup(ctx, s.Handle)
			if err != nil {
				return fail("Error looking up your account", err)
			}
			if found && id.Registered() {
				return []Reply{{Text: "You are already registered.", RemoveKeyboard: true}}
			}
			return nil
		},
		Steps: []Step{
			{
				Field:  fieldEmail,
				Prompt: "Enter your Clockify account email:",
				Collect: func(ctx context.Context, s Sender, _ Values, input string) (bool, []Reply) {
					matched, err := d.Identity.BindEmail(ctx, strings.TrimSpace(input), s.Handle)
					if err != nil {
						return true, fail("Error checking email", err)
					}
					if !matched {
						return true, []Reply{{Text: "Email not found in the workspace. Use /start to try again."}}
					}
					return false, nil
				},
			},
			{
				Field:  fieldAPIKey,
				Prompt: "Enter your Clockify API key:",
			},
		},
		Finish: func(ctx context.Context, s Sender, vals Values) []Reply {
			if err := d.Identity.SetCredential(ctx, s.Handle, vals[fieldAPIKey]); err != nil {
				return fail("Error saving API key", err)
			}
			return []Reply{{Text: "Registration complete. You can now track time.", RemoveKeyboard: true}}
		},
	}
}

// CreateEntryFlow collects project, description, and the four date/time
// fields, then creates one entry after an explicit confirmation.
func (d *Deps) CreateEntryFlow() *Flow {
	f := &Flow{
		Name:  FlowCreateEntry,
		Gate:  d.requireRegistered,
		Steps: d.entrySteps(),
		Confirm: &Confirm{
			Render: func(vals Values) string {
				return fmt.Sprintf(
					"Confirm the time entry:\nProject: %s\nDescription: %s\nStart: %s %s\nEnd: %s %s",
					vals[fieldProject], vals[fieldDescription],
					vals[fieldStartDate], vals[fieldStartTime],
					vals[fieldEndDate], vals[fieldEndTime],
				)
			},
			Accept: func(ctx context.Context, s Sender, vals Values) []Reply {
				id, found, err := d.Identity.Lookup(ctx, s.Handle)
				if err != nil || !found {
					return fail("Error looking up your account", err)
				}
				in := service.EntryInput{
					Project:     vals[fieldProject],
					Description: vals[fieldDescription],
					StartDate:   vals[fieldStartDate],
					StartTime:   vals[fieldStartTime],
					EndDate:     vals[fieldEndDate],
					EndTime:     vals[fieldEndTime],
				}
				if err := d.Entries.Create(ctx, id, in); err != nil {
					return fail("Error creating the time entry", err)
				}
				return []Reply{{Text: "Time entry created.", RemoveKeyboard: true}}
			},
			CancelText: "Time entry cancelled.",
		},
	}
	return f
}

// StartEntryFlow opens an entry at the current instant. Only project and
// description are collected and there is no confirmation gate.
func (d *Deps) StartEntryFlow() *Flow {
	steps := d.entrySteps()[:2]
	return &Flow{
		Name:  FlowStartEntry,
		Gate:  d.requireRegistered,
		Steps: steps,
		Finish: func(ctx context.Context, s Sender, vals Values) []Reply {
			id, found, err := d.Identity.Lookup(ctx, s.Handle)
			if err != nil || !found {
				return fail("Error looking up your account", err)
			}
			if err := d.Entries.StartNow(ctx, id, vals[fieldProject], vals[fieldDescription]); err != nil {
				return fail("Error starting the time entry", err)
			}
			return []Reply{{Text: "Time entry started.", RemoveKeyboard: true}}
		},
	}
}

// ChangeKeyFlow replaces a registered user's stored API key.
func (d *Deps) ChangeKeyFlow() *Flow {
	return &Flow{
		Name: FlowChangeKey,
		Gate: d.requireRegistered,
		Steps: []Step{
			{
				Field:  fieldAPIKey,
				Prompt: "Enter your new Clockify API key:",
			},
		},
		Finish: func(ctx context.Context, s Sender, vals Values) []Reply {
			if err := d.Identity.SetCredential(ctx, s.Handle, vals[fieldAPIKey]); err != nil {
				return fail("Error saving API key", err)
			}
			return []Reply{{Text: "API key updated.", RemoveKeyboard: true}}
		},
	}
}

// EndEntry closes the sender's currently open entry. Stateless: no session
// is ever created and any active flow is left untouched.
func (d *Deps) EndEntry(ctx context.Context, s Sender) []Reply {
	id, replies := d.registeredIdentity(ctx, s)
	if replies != nil {
		return replies
	}
	if err := d.Entries.EndNow(ctx, id); err != nil {
		if errors.Is(err, service.ErrNoOpenEntry) {
			return []Reply{{Text: "No time entry is currently in progress."}}
		}
		return fail("Error ending the time entry", err)
	}
	return []Reply{{Text: "Time entry ended."}}
}

// entrySteps is the shared step list of both entry flows; the open-ended
// flow uses only the first two.
func (d *Deps) entrySteps() []Step {
	return []Step{
		{
			Field:  fieldProject,
			Prompt: "Choose a project:",
			Choices: func(ctx context.Context, s Sender, _ Values) ([][]string, error) {
				id, found, err := d.Identity.Lookup(ctx, s.Handle)
				if err != nil {
					return nil, err
				}
				if !found {
					return nil, nil
				}
				names, err := d.Entries.ProjectNames(ctx, id.ClockifyUserID)
				if err != nil {
					return nil, err
				}
				return chunk(names, 1), nil
			},
			EmptyMessage: "No projects found.",
			ChoicesFail:  "Error fetching projects",
		},
		{
			Field:  fieldDescription,
			Prompt: "Enter a description:",
		},
		{
			Field:  fieldStartDate,
			Prompt: "Enter the start date (YYYY-MM-DD):",
			Choices: func(context.Context, Sender, Values) ([][]string, error) {
				return startDateChoices(d.now()), nil
			},
		},
		{
			Field:  fieldStartTime,
			Prompt: "Enter the start time (HH:MM):",
			Choices: func(context.Context, Sender, Values) ([][]string, error) {
				return timeChoices(), nil
			},
		},
		{
			Field:  fieldEndDate,
			Prompt: "Enter the end date (YYYY-MM-DD):",
			Choices: func(_ context.Context, _ Sender, vals Values) ([][]string, error) {
				return endDateChoices(d.now(), vals[fieldStartDate]), nil
			},
		},
		{
			Field:  fieldEndTime,
			Prompt: "Enter the end time (HH:MM):",
			Choices: func(_ context.Context, _ Sender, vals Values) ([][]string, error) {
				return endTimeChoices(vals), nil
			},
		},
	}
}

// requireRegistered blocks flow entry for senders without a stored API key.
func (d *Deps) requireRegistered(ctx context.Context, s Sender) []Reply {
	_, replies := d.registeredIdentity(ctx, s)
	return replies
}

func (d *Deps) registeredIdentity(ctx context.Context, s Sender) (store.Identity, []Reply) {
	if s.Handle == "" {
		return store.Identity{}, []Reply{{Text: noHandleMessage}}
	}
	id, found, err := d.Identity.Lookup(ctx, s.Handle)
	if err != nil {
		return store.Identity{}, fail("Error looking up your account", err)
	}
	if !found || !id.Registered() {
		return store.Identity{}, []Reply{{Text: "You are not registered yet. Use /start first."}}
	}
	return id, nil
}

func fail(prefix string, err error) []Reply {
	if err == nil {
		return []Reply{{Text: prefix + ".", RemoveKeyboard: true}}
	}
	return []Reply{{Text: fmt.Sprintf("%s: %v", prefix, err), RemoveKeyboard: true}}
}
