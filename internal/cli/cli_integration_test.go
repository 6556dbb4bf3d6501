//go:build integration

package cli

import (
	"testing"

	"bulletjournal-cli/internal/model"
)

func TestCLIIntegrationSmoke(t *testing.T) {
	c := newCLIEnv(t)
	if err := c.srv.Seed(); err != nil {
		t.Fatalf("seed: %v", err)
	}

	projects := dataMap(t, c.mustRun(t, "projects", "list"))
	owned, _ := projects["owned"].([]any)
	if len(owned) == 0 {
		t.Fatalf("expected seeded projects; got: %#v", projects)
	}

	p, err := c.srv.AddProject("Integration", model.ProjectTypeTodo, 0)
	if err != nil {
		t.Fatalf("add project: %v", err)
	}
	pid := itoa(p.ID)
	a := dataMap(t, c.mustRun(t, "tasks", "create", pid, "--name", "Item A", "--assignee", "amy", "--due", "2024-03-04"))
	aID := itoa(int64(a["id"].(float64)))
	b := dataMap(t, c.mustRun(t, "tasks", "create", pid, "--name", "Item B"))
	bID := itoa(int64(b["id"].(float64)))

	// Views materialize, then mutations fan out to them.
	c.mustRun(t, "views", "assignee", pid, "amy")
	c.mustRun(t, "views", "order", pid)
	c.mustRun(t, "views", "recent")
	c.mustRun(t, "views", "today")
	c.mustRun(t, "tasks", "status", aID, "in-progress", "--from", "assignee")
	views := dataMap(t, c.mustRun(t, "views", "show"))
	assignee, _ := views["assignee"].([]any)
	if len(assignee) != 1 || assignee[0].(map[string]any)["status"] != "IN_PROGRESS" {
		t.Fatalf("expected patched assignee view; got: %#v", views["assignee"])
	}

	c.mustRun(t, "tasks", "patch", bID, "--name", "Item B2")
	c.mustRun(t, "tasks", "drop", pid, bID, "on", aID)
	c.mustRun(t, "tasks", "get", aID)

	// Contents and revisions.
	content := dataMap(t, c.mustRun(t, "contents", "add", aID, "first", "draft"))
	cID := itoa(int64(content["id"].(float64)))
	c.mustRun(t, "contents", "edit", aID, cID, "second", "draft")
	list := c.mustRun(t, "contents", "list", aID)
	blocks, _ := list["data"].([]any)
	if len(blocks) != 1 {
		t.Fatalf("expected one content block; got: %#v", list["data"])
	}
	revs, _ := blocks[0].(map[string]any)["revisions"].([]any)
	if len(revs) == 0 {
		t.Fatalf("expected revisions; got: %#v", blocks[0])
	}
	rID := itoa(int64(revs[len(revs)-1].(map[string]any)["id"].(float64)))
	rev := dataMap(t, c.mustRun(t, "contents", "revision", aID, cID, rID))
	if rev["content"] != "second draft" {
		t.Fatalf("expected latest revision text; got: %#v", rev)
	}

	// Completion, completed pages and the session round trip.
	c.mustRun(t, "tasks", "complete-many", pid, aID)
	c.mustRun(t, "completed", "more", pid)
	page := dataMap(t, c.mustRun(t, "completed", "show", pid))
	if done, _ := page["tasks"].([]any); len(done) != 1 {
		t.Fatalf("expected the completed tree root; got: %#v", page)
	}
	c.mustRun(t, "completed", "show", pid, "--reset")

	c.mustRun(t, "notes", "list", pid)
	c.mustRun(t, "session", "show")
	c.mustRun(t, "session", "clear")
	c.mustRun(t, "config", "show")
}
