package tracker

import (
	"fmt"

	"github.com/papapumpkin/ccgtools/internal/enumdb"
)

// Context owns the three trackers of one reflection run.
type Context struct {
	Projects *Projects
	Headers  *Headers
	Enums    *Enums
}

// NewContext returns empty trackers. Projects named in skipped are ignored.
func NewContext(skipped []string) *Context {
	return &Context{
		Projects: NewProjects(skipped),
		Headers:  NewHeaders(),
		Enums:    NewEnums(),
	}
}

// LoadSnapshot registers every persisted record as deleted until observed.
func (c *Context) LoadSnapshot(snap *enumdb.Snapshot) error {
	if err := c.Projects.LoadPersisted(snap.Projects); err != nil {
		return err
	}
	if err := c.Headers.LoadPersisted(snap.HeaderFiles); err != nil {
		return err
	}
	return c.Enums.LoadPersisted(snap.Enums)
}

// Prepare runs the steps between discovery and reparsing: headers are bound
// to projects and persisted enums take their starting states.
func (c *Context) Prepare() error {
	if err := c.Headers.BindProjects(c.Projects); err != nil {
		return fmt.Errorf("binding header projects: %w", err)
	}
	if err := c.Enums.InitializeStartingStates(c.Headers); err != nil {
		return fmt.Errorf("initializing enum states: %w", err)
	}
	return nil
}

// Finish settles every enum's final state after reparsing.
func (c *Context) Finish() error {
	return c.Enums.ProcessFinalStates(c.Headers, c.Projects)
}

// Snapshot returns the records present this run.
func (c *Context) Snapshot() *enumdb.Snapshot {
	return &enumdb.Snapshot{
		Version:     enumdb.SnapshotVersion,
		Projects:    c.Projects.SaveRecords(),
		HeaderFiles: c.Headers.SaveRecords(),
		Enums:       c.Enums.SaveRecords(),
	}
}
