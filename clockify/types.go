package clockify

// User is a Clockify workspace member as returned by the users endpoint.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Membership links a workspace user to a project.
type Membership struct {
	UserID string `json:"userId"`
}

// Project is a workspace project with its member list.
type Project struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Memberships []Membership `json:"memberships"`
}

// TimeEntry is the subset of a Clockify time entry the bot cares about.
type TimeEntry struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	ProjectID   string `json:"projectId"`
}

type createEntryRequest struct {
	Description string `json:"description"`
	Start       string `json:"start"`
	End         string `json:"end,omitempty"`
	ProjectID   string `json:"projectId"`
	Billable    bool   `json:"billable,omitempty"`
}

type endEntryRequest struct {
	End string `json:"end"`
}
