package model

import "strings"

// Ref is an {id, name} pair as embedded in Redmine resources.
type Ref struct {
	ID   int    `json:"id" yaml:"id"`
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
}

// Project is a remote project. FullName includes ancestor names.
type Project struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	Identifier string `json:"identifier"`
	Parent     *Ref   `json:"parent,omitempty"`
	FullName   string `json:"-"`
}

// Tracker is an issue kind (Bug, Feature, ...).
type Tracker struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Status is an issue status. Statuses are project-independent.
type Status struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	IsClosed bool   `json:"is_closed"`
}

// Version is a project version (milestone).
type Version struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// Member is a project membership. User is nil for group memberships.
type Member struct {
	ID    int  `json:"id"`
	User  *Ref `json:"user,omitempty"`
	Group *Ref `json:"group,omitempty"`
}

// ReferenceSet holds the lookup data for one project. Statuses and
// Projects are global and may be empty when only project-scoped data
// was fetched.
type ReferenceSet struct {
	ProjectID int
	Projects  []Project
	Trackers  []Tracker
	Statuses  []Status
	Versions  []Version
	Members   []Member
}

// Users returns the member users in membership order, skipping groups.
func (r *ReferenceSet) Users() []Ref {
	users := make([]Ref, 0, len(r.Members))
	for _, m := range r.Members {
		if m.User == nil {
			continue
		}
		users = append(users, *m.User)
	}
	return users
}

// ResolveProjectNames fills FullName for every project, joining the
// names of its ancestors with " » ".
func ResolveProjectNames(projects []Project) {
	byID := make(map[int]*Project, len(projects))
	for i := range projects {
		byID[projects[i].ID] = &projects[i]
	}
	for i := range projects {
		var names []string
		seen := make(map[int]bool)
		for p := &projects[i]; p != nil && !seen[p.ID]; {
			seen[p.ID] = true
			names = append([]string{p.Name}, names...)
			if p.Parent == nil {
				break
			}
			parent, ok := byID[p.Parent.ID]
			if !ok {
				names = append([]string{p.Parent.Name}, names...)
				break
			}
			p = parent
		}
		projects[i].FullName = strings.Join(names, " » ")
	}
}
