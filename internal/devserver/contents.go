package devserver

import (
	"net/http"
	"slices"
	"strings"

	"github.com/labstack/echo/v4"

	"bulletjournal-cli/internal/model"
)

type textBody struct {
	Text string `json:"text"`
}

// view renders a content block for listing: revision bodies are left out.
func (c content) view() model.Content {
	out := c.Content
	out.Revisions = make([]model.Revision, 0, len(c.revisions))
	for _, r := range c.revisions {
		rv := r.Revision
		rv.Content = nil
		out.Revisions = append(out.Revisions, rv)
	}
	return out
}

func (s *Server) contentList(taskID int64) []model.Content {
	out := make([]model.Content, 0, len(s.contents[taskID]))
	for _, c := range s.contents[taskID] {
		out = append(out, c.view())
	}
	return out
}

func (s *Server) knownTask(id int64) bool {
	if _, _, ok := s.locateTask(id); ok {
		return true
	}
	_, _, ok := s.locateCompleted(id)
	return ok
}

func (s *Server) getContents(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	if !s.knownTask(id) {
		return notFound("task", id)
	}
	return c.JSON(http.StatusOK, s.contentList(id))
}

func (s *Server) newRevision(text string) revision {
	return revision{
		Revision: model.Revision{ID: s.newID(), User: s.user, CreatedAt: s.now()},
		text:     text,
	}
}

func (s *Server) addContent(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	if _, _, ok := s.locateTask(id); !ok {
		return notFound("task", id)
	}
	var body textBody
	if err := decode(c, &body); err != nil {
		return err
	}
	if strings.TrimSpace(body.Text) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "text is required")
	}
	now := s.now()
	ct := content{
		Content: model.Content{
			ID:        s.newID(),
			Text:      body.Text,
			Owner:     s.user,
			CreatedAt: now,
			UpdatedAt: now,
		},
		revisions: []revision{s.newRevision(body.Text)},
	}
	s.contents[id] = append(s.contents[id], ct)
	return c.JSON(http.StatusCreated, ct.view())
}

func (s *Server) contentIndex(c echo.Context) (int64, int, error) {
	id, err := pathID(c, "id")
	if err != nil {
		return 0, 0, err
	}
	cid, err := pathID(c, "cid")
	if err != nil {
		return 0, 0, err
	}
	i := slices.IndexFunc(s.contents[id], func(ct content) bool { return ct.ID == cid })
	if i < 0 {
		return 0, 0, notFound("content", cid)
	}
	return id, i, nil
}

func (s *Server) updateContent(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, i, err := s.contentIndex(c)
	if err != nil {
		return err
	}
	var body textBody
	if err := decode(c, &body); err != nil {
		return err
	}
	list := slices.Clone(s.contents[id])
	ct := list[i]
	ct.Text = body.Text
	ct.UpdatedAt = s.now()
	ct.revisions = append(slices.Clone(ct.revisions), s.newRevision(body.Text))
	list[i] = ct
	s.contents[id] = list
	return c.JSON(http.StatusOK, s.contentList(id))
}

func (s *Server) deleteContent(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, i, err := s.contentIndex(c)
	if err != nil {
		return err
	}
	s.contents[id] = slices.Delete(slices.Clone(s.contents[id]), i, i+1)
	return c.JSON(http.StatusOK, s.contentList(id))
}

func (s *Server) getRevision(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, i, err := s.contentIndex(c)
	if err != nil {
		return err
	}
	rid, err := pathID(c, "rid")
	if err != nil {
		return err
	}
	for _, r := range s.contents[id][i].revisions {
		if r.ID == rid {
			out := r.Revision
			text := r.text
			out.Content = &text
			return c.JSON(http.StatusOK, out)
		}
	}
	return notFound("revision", rid)
}
