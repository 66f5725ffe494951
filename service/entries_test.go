package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clockbot/clockify"
	"clockbot/store"
)

type trackerCall struct {
	op          string
	userKey     string
	userID      string
	start       string
	end         string
	projectID   string
	description string
}

type fakeTracker struct {
	projects []clockify.Project
	endErr   error
	calls    []trackerCall
}

func (f *fakeTracker) ListProjects(context.Context) ([]clockify.Project, error) {
	return f.projects, nil
}

func (f *fakeTracker) CreateTimeEntry(_ context.Context, userKey, userID, start, end, projectID, description string) (*clockify.TimeEntry, error) {
	f.calls = append(f.calls, trackerCall{"create", userKey, userID, start, end, projectID, description})
	return &clockify.TimeEntry{ID: "e1"}, nil
}

func (f *fakeTracker) StartTimeEntry(_ context.Context, userKey, userID, start, projectID, description string) (*clockify.TimeEntry, error) {
	f.calls = append(f.calls, trackerCall{"start", userKey, userID, start, "", projectID, description})
	return &clockify.TimeEntry{ID: "e2"}, nil
}

func (f *fakeTracker) EndTimeEntry(_ context.Context, userKey, userID, end string) (*clockify.TimeEntry, error) {
	f.calls = append(f.calls, trackerCall{op: "end", userKey: userKey, userID: userID, end: end})
	if f.endErr != nil {
		return nil, f.endErr
	}
	return &clockify.TimeEntry{ID: "e3"}, nil
}

func memberProjects() []clockify.Project {
	return []clockify.Project{
		{ID: "p1", Name: "Alpha", Memberships: []clockify.Membership{{UserID: "u1"}}},
		{ID: "p2", Name: "Beta", Memberships: []clockify.Membership{{UserID: "u2"}}},
		{ID: "p3", Name: "Gamma", Memberships: []clockify.Membership{{UserID: "u1"}, {UserID: "u2"}}},
	}
}

func testIdentity() store.Identity {
	return store.Identity{ClockifyUserID: "u1", APIKey: "KEY", TGUsername: "alice", Email: "alice@x.com"}
}

func TestProjectNamesFiltersByMembership(t *testing.T) {
	clk := &fakeTracker{projects: memberProjects()}
	svc := NewEntryService(clk, time.UTC)

	names, err := svc.ProjectNames(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Alpha", "Gamma"}, names)

	names, err = svc.ProjectNames(context.Background(), "u9")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestCreateStampsInstantsVerbatim(t *testing.T) {
	clk := &fakeTracker{projects: memberProjects()}
	svc := NewEntryService(clk, time.UTC)

	err := svc.Create(context.Background(), testIdentity(), EntryInput{
		Project:     "Alpha",
		Description: "sprint review",
		StartDate:   "2026-08-27",
		StartTime:   "09:30",
		EndDate:     "2026-08-27",
		EndTime:     "11:00",
	})
	require.NoError(t, err)

	require.Len(t, clk.calls, 1)
	call := clk.calls[0]
	assert.Equal(t, "create", call.op)
	assert.Equal(t, "KEY", call.userKey)
	assert.Equal(t, "u1", call.userID)
	assert.Equal(t, "2026-08-27T09:30:00Z", call.start)
	assert.Equal(t, "2026-08-27T11:00:00Z", call.end)
	assert.Equal(t, "p1", call.projectID)
	assert.Equal(t, "sprint review", call.description)
}

func TestCreateUnknownProject(t *testing.T) {
	clk := &fakeTracker{projects: memberProjects()}
	svc := NewEntryService(clk, time.UTC)

	err := svc.Create(context.Background(), testIdentity(), EntryInput{Project: "Delta"})
	assert.ErrorIs(t, err, ErrProjectNotFound)
	assert.Empty(t, clk.calls)
}

func TestStartNowUsesZonedCurrentInstant(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Moscow")
	require.NoError(t, err)
	clk := &fakeTracker{projects: memberProjects()}
	svc := NewEntryService(clk, loc)

	require.NoError(t, svc.StartNow(context.Background(), testIdentity(), "Gamma", "standup"))

	require.Len(t, clk.calls, 1)
	call := clk.calls[0]
	assert.Equal(t, "start", call.op)
	assert.Equal(t, "p3", call.projectID)

	stamp, err := time.Parse(time.RFC3339, call.start)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), stamp, time.Minute)
	_, offset := stamp.Zone()
	assert.Equal(t, 3*60*60, offset)
}

func TestEndNowMapsNotFound(t *testing.T) {
	clk := &fakeTracker{endErr: &clockify.APIError{StatusCode: 404, Body: "no entry"}}
	svc := NewEntryService(clk, time.UTC)

	err := svc.EndNow(context.Background(), testIdentity())
	assert.ErrorIs(t, err, ErrNoOpenEntry)
}

func TestEndNowPassesThroughOtherErrors(t *testing.T) {
	clk := &fakeTracker{endErr: &clockify.APIError{StatusCode: 500, Body: "boom"}}
	svc := NewEntryService(clk, time.UTC)

	err := svc.EndNow(context.Background(), testIdentity())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoOpenEntry)
}
