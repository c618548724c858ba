// Package inmemdb implements the repositories in memory. Used by tests & the DEV "memory" engine.
package inmemdb

import (
	"sync"

	"github.com/google/uuid"

	"github.com/openstud/openstud/core/course"
	"github.com/openstud/openstud/core/user"
	"github.com/openstud/openstud/core/workspace"
)

type (
	DB struct {
		user      *userTable
		workspace *workspaceTables
		course    *courseTables
	}

	userTable struct {
		mu    sync.RWMutex
		table map[string]*user.User
	}

	workspaceTables struct {
		mu         sync.RWMutex
		workspaces map[string]*workspace.Workspace
		members    map[string]map[string]*workspace.Member // {workspaceID: {userID: member}}
		projects   map[string]*workspace.Project
		tasks      map[string]*workspace.Task
	}

	courseTables struct {
		mu      sync.RWMutex
		courses map[string]*course.Course
		notes   map[string]*course.Note
	}
)

func Open() *DB {
	return &DB{
		user: &userTable{table: make(map[string]*user.User)},
		workspace: &workspaceTables{
			workspaces: make(map[string]*workspace.Workspace),
			members:    make(map[string]map[string]*workspace.Member),
			projects:   make(map[string]*workspace.Project),
			tasks:      make(map[string]*workspace.Task),
		},
		course: &courseTables{
			courses: make(map[string]*course.Course),
			notes:   make(map[string]*course.Note),
		},
	}
}

func newID() string {
	return uuid.New().String()
}
