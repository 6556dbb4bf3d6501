package format

import (
	"bytes"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/fatih/color"

	"bulletjournal-cli/internal/model"
)

func TestWriteJSONEnvelope(t *testing.T) {
	var buf bytes.Buffer
	v := map[string]any{"data": model.TaskCollection{ProjectID: 1, Revision: `"x"`}}
	if err := Write(&buf, v, "json", false); err != nil {
		t.Fatalf("write: %v", err)
	}
	var got struct {
		Data model.TaskCollection `json:"data"`
	}
	if err := sonic.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	if got.Data.ProjectID != 1 || got.Data.Revision != `"x"` {
		t.Fatalf("unexpected %+v", got.Data)
	}
}

func TestWriteUnknownFormat(t *testing.T) {
	if err := Write(&bytes.Buffer{}, 1, "edn", false); err == nil {
		t.Fatalf("expected error")
	}
}

func TestWriteTextTaskTreeIndentsChildren(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	tasks := []model.Task{{ID: 1, Name: "parent", DueDate: "2024-03-04", SubTasks: []model.Task{{ID: 2, Name: "child", Status: model.TaskStatusOnHold}}}}
	if err := WriteText(&buf, map[string]any{"data": tasks}); err != nil {
		t.Fatalf("write: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "parent") || !strings.Contains(out, "2024-03-04") {
		t.Fatalf("missing parent row:\n%s", out)
	}
	if !strings.Contains(out, "  child") || !strings.Contains(out, "~") {
		t.Fatalf("expected indented on-hold child:\n%s", out)
	}
}

func TestWriteTextEmptyGroups(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	if err := WriteText(&buf, []model.ProjectItems{}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if strings.TrimSpace(buf.String()) != "none" {
		t.Fatalf("unexpected output %q", buf.String())
	}
}
