package dialog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clockbot/core/telegram/state"
	"clockbot/service"
	"clockbot/store"
)

type fakeIdentity struct {
	rows      map[string]store.Identity // by handle
	byEmail   map[string]string         // email -> handle key in rows
	syncCalls int
	syncErr   error
}

func newFakeIdentity() *fakeIdentity {
	return &fakeIdentity{
		rows:    make(map[string]store.Identity),
		byEmail: make(map[string]string),
	}
}

func (f *fakeIdentity) Sync(context.Context) (int, error) {
	f.syncCalls++
	return 0, f.syncErr
}

func (f *fakeIdentity) Lookup(_ context.Context, handle string) (store.Identity, bool, error) {
	id, ok := f.rows[handle]
	return id, ok, nil
}

func (f *fakeIdentity) BindEmail(_ context.Context, email, handle string) (bool, error) {
	key, ok := f.byEmail[email]
	if !ok {
		return false, nil
	}
	id := f.rows[key]
	delete(f.rows, key)
	id.TGUsername = handle
	f.rows[handle] = id
	return true, nil
}

func (f *fakeIdentity) SetCredential(_ context.Context, handle, credential string) error {
	id, ok := f.rows[handle]
	if !ok {
		return service.ErrIdentityNotFound
	}
	id.APIKey = credential
	f.rows[handle] = id
	return nil
}

type fakeEntries struct {
	projects  []string
	listErr   error
	createErr error
	endErr    error

	created []service.EntryInput
	started []service.EntryInput
	ended   int
}

func (f *fakeEntries) ProjectNames(context.Context, string) ([]string, error) {
	return f.projects, f.listErr
}

func (f *fakeEntries) Create(_ context.Context, _ store.Identity, in service.EntryInput) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, in)
	return nil
}

func (f *fakeEntries) StartNow(_ context.Context, _ store.Identity, project, description string) error {
	f.started = append(f.started, service.EntryInput{Project: project, Description: description})
	return nil
}

func (f *fakeEntries) EndNow(context.Context, store.Identity) error {
	if f.endErr != nil {
		return f.endErr
	}
	f.ended++
	return nil
}

func registered(handle string) store.Identity {
	return store.Identity{ClockifyUserID: "u1", APIKey: "KEY", TGUsername: handle, Email: handle + "@x.com"}
}

func newTestEngine(t *testing.T, deps *Deps) *Engine {
	t.Helper()
	if deps.Now == nil {
		deps.Now = func() time.Time { return fixedNow }
	}
	sessions := state.NewMemoryManager(time.Minute)
	t.Cleanup(sessions.Close)
	e := NewEngine(sessions)
	e.Register(deps.Flows()...)
	return e
}

func texts(replies []Reply) []string {
	var out []string
	for _, r := range replies {
		out = append(out, r.Text)
	}
	return out
}

var alice = Sender{ID: 1, Handle: "alice"}

func TestRegistrationShortCircuitsWhenRegistered(t *testing.T) {
	ids := newFakeIdentity()
	ids.rows["alice"] = registered("alice")
	deps := &Deps{Identity: ids, Entries: &fakeEntries{}}
	e := newTestEngine(t, deps)

	replies := e.Begin(context.Background(), alice, FlowRegistration)

	assert.Contains(t, texts(replies), "You are already registered.")
	assert.False(t, e.InProgress(alice.ID))
	assert.Equal(t, 1, ids.syncCalls, "sync still runs on every registration trigger")
}

func TestRegistrationHappyPath(t *testing.T) {
	ids := newFakeIdentity()
	ids.rows["pending-u1"] = store.Identity{ClockifyUserID: "u1", Email: "alice@x.com"}
	ids.byEmail["alice@x.com"] = "pending-u1"
	deps := &Deps{Identity: ids, Entries: &fakeEntries{}}
	e := newTestEngine(t, deps)

	replies := e.Begin(context.Background(), alice, FlowRegistration)
	require.Contains(t, texts(replies), "Enter your Clockify account email:")
	require.True(t, e.InProgress(alice.ID))

	replies, handled := e.HandleText(context.Background(), alice, "alice@x.com")
	require.True(t, handled)
	require.Contains(t, texts(replies), "Enter your Clockify API key:")

	replies, handled = e.HandleText(context.Background(), alice, "KEY123")
	require.True(t, handled)
	assert.Contains(t, texts(replies), "Registration complete. You can now track time.")

	assert.Equal(t, "KEY123", ids.rows["alice"].APIKey)
	assert.False(t, e.InProgress(alice.ID))
}

func TestRegistrationUnknownEmailEndsFlow(t *testing.T) {
	ids := newFakeIdentity()
	deps := &Deps{Identity: ids, Entries: &fakeEntries{}}
	e := newTestEngine(t, deps)

	e.Begin(context.Background(), alice, FlowRegistration)
	replies, handled := e.HandleText(context.Background(), alice, "nobody@x.com")

	require.True(t, handled)
	assert.Contains(t, texts(replies)[0], "Email not found")
	assert.False(t, e.InProgress(alice.ID))
}

func TestFlowsRejectSenderWithoutUsername(t *testing.T) {
	ids := newFakeIdentity()
	// Pending rows carry an empty tg_username; a sender with no username
	// must never reach them.
	ids.rows[""] = store.Identity{ClockifyUserID: "u2", Email: "pending@x.com"}
	deps := &Deps{Identity: ids, Entries: &fakeEntries{}}
	e := newTestEngine(t, deps)
	anon := Sender{ID: 99}
	ctx := context.Background()

	replies := e.Begin(ctx, anon, FlowRegistration)
	assert.Contains(t, texts(replies)[0], "Set a username")
	assert.False(t, e.InProgress(anon.ID))
	assert.Zero(t, ids.syncCalls)

	replies = e.Begin(ctx, anon, FlowCreateEntry)
	assert.Contains(t, texts(replies)[0], "Set a username")
	assert.False(t, e.InProgress(anon.ID))

	replies = deps.EndEntry(ctx, anon)
	assert.Contains(t, texts(replies)[0], "Set a username")
}

func runDatedFlowToConfirm(t *testing.T, e *Engine) []Reply {
	t.Helper()
	ctx := context.Background()

	replies := e.Begin(ctx, alice, FlowCreateEntry)
	require.Contains(t, texts(replies), "Choose a project:")

	inputs := []string{"Alpha", "sprint review", "2026-08-27", "09:30", "2026-08-27", "11:00"}
	for _, in := range inputs {
		var handled bool
		replies, handled = e.HandleText(ctx, alice, in)
		require.True(t, handled, "input %q not consumed", in)
	}
	return replies
}

func TestDatedFlowSummaryAndSingleCreateCall(t *testing.T) {
	ids := newFakeIdentity()
	ids.rows["alice"] = registered("alice")
	entries := &fakeEntries{projects: []string{"Alpha", "Gamma"}}
	e := newTestEngine(t, &Deps{Identity: ids, Entries: entries})

	confirm := runDatedFlowToConfirm(t, e)
	require.Len(t, confirm, 1)
	summary := confirm[0].Text
	for _, v := range []string{"Alpha", "sprint review", "2026-08-27", "09:30", "11:00"} {
		assert.Contains(t, summary, v)
	}
	assert.Equal(t, confirmKeyboard, confirm[0].Choices)

	replies, handled := e.HandleText(context.Background(), alice, "YES")
	require.True(t, handled)
	assert.Contains(t, texts(replies), "Time entry created.")

	require.Len(t, entries.created, 1)
	assert.Equal(t, service.EntryInput{
		Project:     "Alpha",
		Description: "sprint review",
		StartDate:   "2026-08-27",
		StartTime:   "09:30",
		EndDate:     "2026-08-27",
		EndTime:     "11:00",
	}, entries.created[0])
	assert.False(t, e.InProgress(alice.ID))
}

func TestDatedFlowNegativeConfirmation(t *testing.T) {
	ids := newFakeIdentity()
	ids.rows["alice"] = registered("alice")
	entries := &fakeEntries{projects: []string{"Alpha"}}
	e := newTestEngine(t, &Deps{Identity: ids, Entries: entries})

	runDatedFlowToConfirm(t, e)
	replies, handled := e.HandleText(context.Background(), alice, "no")

	require.True(t, handled)
	assert.Contains(t, texts(replies), "Time entry cancelled.")
	assert.Empty(t, entries.created)
	assert.False(t, e.InProgress(alice.ID))
}

func TestDatedFlowCreateFailureStillDropsSession(t *testing.T) {
	ids := newFakeIdentity()
	ids.rows["alice"] = registered("alice")
	entries := &fakeEntries{projects: []string{"Alpha"}, createErr: assert.AnError}
	e := newTestEngine(t, &Deps{Identity: ids, Entries: entries})

	runDatedFlowToConfirm(t, e)
	replies, handled := e.HandleText(context.Background(), alice, "yes")

	require.True(t, handled)
	assert.Contains(t, texts(replies)[0], "Error creating the time entry")
	assert.False(t, e.InProgress(alice.ID))
}

func TestEntryFlowWithoutProjects(t *testing.T) {
	ids := newFakeIdentity()
	ids.rows["alice"] = registered("alice")
	entries := &fakeEntries{}
	e := newTestEngine(t, &Deps{Identity: ids, Entries: entries})

	replies := e.Begin(context.Background(), alice, FlowCreateEntry)

	assert.Contains(t, texts(replies), "No projects found.")
	assert.False(t, e.InProgress(alice.ID), "aborted entry must leave no session")
}

func TestEntryFlowRequiresRegistration(t *testing.T) {
	ids := newFakeIdentity()
	e := newTestEngine(t, &Deps{Identity: ids, Entries: &fakeEntries{}})

	replies := e.Begin(context.Background(), alice, FlowCreateEntry)

	assert.Contains(t, texts(replies)[0], "not registered")
	assert.False(t, e.InProgress(alice.ID))
}

func TestStartEntryFlowFiresWithoutConfirmation(t *testing.T) {
	ids := newFakeIdentity()
	ids.rows["alice"] = registered("alice")
	entries := &fakeEntries{projects: []string{"Alpha"}}
	e := newTestEngine(t, &Deps{Identity: ids, Entries: entries})
	ctx := context.Background()

	e.Begin(ctx, alice, FlowStartEntry)
	_, handled := e.HandleText(ctx, alice, "Alpha")
	require.True(t, handled)
	replies, handled := e.HandleText(ctx, alice, "standup")
	require.True(t, handled)

	assert.Contains(t, texts(replies), "Time entry started.")
	require.Len(t, entries.started, 1)
	assert.Equal(t, "Alpha", entries.started[0].Project)
	assert.Equal(t, "standup", entries.started[0].Description)
	assert.False(t, e.InProgress(alice.ID))
}

func TestEndEntryStateless(t *testing.T) {
	ids := newFakeIdentity()
	ids.rows["alice"] = registered("alice")
	entries := &fakeEntries{}
	deps := &Deps{Identity: ids, Entries: entries}

	replies := deps.EndEntry(context.Background(), alice)
	assert.Contains(t, texts(replies), "Time entry ended.")
	assert.Equal(t, 1, entries.ended)
}

func TestEndEntryNoOpenEntry(t *testing.T) {
	ids := newFakeIdentity()
	ids.rows["alice"] = registered("alice")
	entries := &fakeEntries{endErr: service.ErrNoOpenEntry}
	deps := &Deps{Identity: ids, Entries: entries}

	replies := deps.EndEntry(context.Background(), alice)
	assert.Contains(t, texts(replies), "No time entry is currently in progress.")
}

func TestChangeKeyFlow(t *testing.T) {
	ids := newFakeIdentity()
	ids.rows["alice"] = registered("alice")
	e := newTestEngine(t, &Deps{Identity: ids, Entries: &fakeEntries{}})
	ctx := context.Background()

	replies := e.Begin(ctx, alice, FlowChangeKey)
	require.Contains(t, texts(replies), "Enter your new Clockify API key:")

	replies, handled := e.HandleText(ctx, alice, "NEWKEY")
	require.True(t, handled)
	assert.Contains(t, texts(replies), "API key updated.")
	assert.Equal(t, "NEWKEY", ids.rows["alice"].APIKey)
}

func TestEndDateKeyboardMatchesStartConstraint(t *testing.T) {
	ids := newFakeIdentity()
	ids.rows["alice"] = registered("alice")
	entries := &fakeEntries{projects: []string{"Alpha"}}
	e := newTestEngine(t, &Deps{Identity: ids, Entries: entries})
	ctx := context.Background()

	e.Begin(ctx, alice, FlowCreateEntry)
	e.HandleText(ctx, alice, "Alpha")
	e.HandleText(ctx, alice, "work")
	e.HandleText(ctx, alice, "2026-08-28") // today per fixedNow
	replies, _ := e.HandleText(ctx, alice, "09:00")

	require.Len(t, replies, 1)
	assert.Equal(t, []string{"2026-08-28", "2026-08-29"}, flatten(replies[0].Choices))
}

func TestHandleTextWithoutSession(t *testing.T) {
	e := newTestEngine(t, &Deps{Identity: newFakeIdentity(), Entries: &fakeEntries{}})

	replies, handled := e.HandleText(context.Background(), alice, "hello")
	assert.False(t, handled)
	assert.Nil(t, replies)
}

func TestCancelCommand(t *testing.T) {
	ids := newFakeIdentity()
	ids.rows["alice"] = registered("alice")
	e := newTestEngine(t, &Deps{Identity: ids, Entries: &fakeEntries{projects: []string{"Alpha"}}})

	assert.Contains(t, texts(e.Cancel(alice)), "Nothing to cancel.")

	e.Begin(context.Background(), alice, FlowCreateEntry)
	require.True(t, e.InProgress(alice.ID))
	assert.Contains(t, texts(e.Cancel(alice)), "Cancelled.")
	assert.False(t, e.InProgress(alice.ID))
}
