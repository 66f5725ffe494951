package service

import (
	"context"
	"fmt"
	"time"

	"clockbot/clockify"
	"clockbot/core/logger"
	"clockbot/store"

	"log/slog"
)

// TimeTracker is the Clockify surface the entry service uses.
type TimeTracker interface {
	ListProjects(ctx context.Context) ([]clockify.Project, error)
	CreateTimeEntry(ctx context.Context, userKey, userID, start, end, projectID, description string) (*clockify.TimeEntry, error)
	StartTimeEntry(ctx context.Context, userKey, userID, start, projectID, description string) (*clockify.TimeEntry, error)
	EndTimeEntry(ctx context.Context, userKey, userID, end string) (*clockify.TimeEntry, error)
}

// EntryInput carries the six values collected by the dated entry flow,
// exactly as the user typed them. Dates are expected as YYYY-MM-DD and
// times as HH:MM but malformed values are passed through and rejected by
// Clockify, not here.
type EntryInput struct {
	Project     string
	Description string
	StartDate   string
	StartTime   string
	EndDate     string
	EndTime     string
}

// EntryService creates, starts, and ends time entries on behalf of a
// registered identity.
type EntryService struct {
	clk TimeTracker
	loc *time.Location
}

// NewEntryService wires the service. The location is used to stamp the
// "current instant" for the start-now and end paths.
func NewEntryService(clk TimeTracker, loc *time.Location) *EntryService {
	if loc == nil {
		loc = time.UTC
	}
	return &EntryService{clk: clk, loc: loc}
}

// ProjectNames returns the names of the workspace projects the given
// Clockify user is a member of, in API order.
func (s *EntryService) ProjectNames(ctx context.Context, clockifyUserID string) ([]string, error) {
	projects, err := s.clk.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, p := range projects {
		for _, m := range p.Memberships {
			if m.UserID == clockifyUserID {
				names = append(names, p.Name)
				break
			}
		}
	}
	logger.LogEvent(ctx, logger.SVCEntries, slog.LevelDebug, "entries.projects",
		slog.String("status", "ok"),
		slog.Int("projects", len(names)),
	)
	return names, nil
}

// Create issues a single create-entry call. Start and end instants are
// assembled verbatim from the collected date and time text, stamped as UTC
// without conversion.
func (s *EntryService) Create(ctx context.Context, id store.Identity, in EntryInput) error {
	projectID, err := s.resolveProjectID(ctx, in.Project)
	if err != nil {
		return err
	}
	start := fmt.Sprintf("%sT%s:00Z", in.StartDate, in.StartTime)
	end := fmt.Sprintf("%sT%s:00Z", in.EndDate, in.EndTime)

	entry, err := s.clk.CreateTimeEntry(ctx, id.APIKey, id.ClockifyUserID, start, end, projectID, in.Description)
	if err != nil {
		return err
	}
	logger.LogEvent(ctx, logger.SVCEntries, slog.LevelInfo, "entries.create",
		slog.String("status", "ok"),
		slog.String("project", logger.Sanitize(in.Project)),
		slog.String("entry_id", entry.ID),
	)
	return nil
}

// StartNow opens an entry starting at the current instant in the configured
// timezone.
func (s *EntryService) StartNow(ctx context.Context, id store.Identity, project, description string) error {
	projectID, err := s.resolveProjectID(ctx, project)
	if err != nil {
		return err
	}
	start := s.now()

	entry, err := s.clk.StartTimeEntry(ctx, id.APIKey, id.ClockifyUserID, start, projectID, description)
	if err != nil {
		return err
	}
	logger.LogEvent(ctx, logger.SVCEntries, slog.LevelInfo, "entries.start",
		slog.String("status", "ok"),
		slog.String("project", logger.Sanitize(project)),
		slog.String("entry_id", entry.ID),
	)
	return nil
}

// EndNow closes the user's currently open entry at the current instant.
// Clockify decides which entry is open; a 404 maps to ErrNoOpenEntry.
func (s *EntryService) EndNow(ctx context.Context, id store.Identity) error {
	end := s.now()

	entry, err := s.clk.EndTimeEntry(ctx, id.APIKey, id.ClockifyUserID, end)
	if err != nil {
		if clockify.IsNotFound(err) {
			return ErrNoOpenEntry
		}
		return err
	}
	logger.LogEvent(ctx, logger.SVCEntries, slog.LevelInfo, "entries.end",
		slog.String("status", "ok"),
		slog.String("entry_id", entry.ID),
	)
	return nil
}

func (s *EntryService) now() string {
	return time.Now().In(s.loc).Format(time.RFC3339)
}

func (s *EntryService) resolveProjectID(ctx context.Context, name string) (string, error) {
	projects, err := s.clk.ListProjects(ctx)
	if err != nil {
		return "", err
	}
	for _, p := range projects {
		if p.Name == name {
			return p.ID, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrProjectNotFound, name)
}
