package tui

import (
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/ansi"
	"github.com/charmbracelet/glamour/styles"
)

var (
	mdRendererMu sync.Mutex
	// Keyed by style and wrap width. Auto style would probe the terminal, which can block.
	mdRenderers = map[string]*glamour.TermRenderer{}
)

// renderMarkdown renders content text for the preview pane. It falls back to the raw text
// when glamour cannot render it.
func renderMarkdown(md string, width int) string {
	md = strings.TrimSpace(md)
	if md == "" {
		return ""
	}
	width = max(width, 10)
	style := themeName()
	key := style + ":" + strconv.Itoa(width)

	mdRendererMu.Lock()
	r := mdRenderers[key]
	if r == nil {
		rr, err := glamour.NewTermRenderer(
			glamour.WithStyles(markdownStyleConfig(style)),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			mdRendererMu.Unlock()
			return md
		}
		mdRenderers[key] = rr
		r = rr
	}
	mdRendererMu.Unlock()

	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(out, "\n")
}

func markdownStyleConfig(style string) ansi.StyleConfig {
	cfg := styles.DarkStyleConfig
	pick := func(_, dark string) *string { return &dark }
	if style == "light" {
		cfg = styles.LightStyleConfig
		pick = func(light, _ string) *string { return &light }
	}
	zero := uint(0)
	cfg.Document.Margin = &zero

	text := pick(colorSurfaceFg.Light, colorSurfaceFg.Dark)
	cfg.Text.Color = text
	cfg.Heading.Color = text
	cfg.H1.Color = text
	cfg.H2.Color = text
	cfg.H3.Color = text
	link := pick(colorAccent.Light, colorAccent.Dark)
	underline := true
	cfg.Link.Color = link
	cfg.Link.Underline = &underline
	cfg.LinkText.Color = link
	cfg.CodeBlock.BackgroundColor = pick(colorControlBg.Light, colorControlBg.Dark)
	return cfg
}
