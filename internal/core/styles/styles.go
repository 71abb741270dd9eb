// Package styles provides shared lipgloss styles for CLI output.
package styles

import (
	"os"
	"sort"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/colonyops/workboard/internal/core/backlog"
	"github.com/colonyops/workboard/internal/core/worker"
)

// Palette defines a minimal semantic theme palette.
type Palette struct {
	Primary    lipgloss.Color
	Secondary  lipgloss.Color
	Foreground lipgloss.Color
	Muted      lipgloss.Color
	Success    lipgloss.Color
	Warning    lipgloss.Color
	Error      lipgloss.Color
}

// DefaultTheme is the name of the default theme.
const DefaultTheme = "tokyo-night"

var themes = map[string]Palette{
	"tokyo-night": {
		Primary:    lipgloss.Color("#7aa2f7"),
		Secondary:  lipgloss.Color("#7dcfff"),
		Foreground: lipgloss.Color("#c0caf5"),
		Muted:      lipgloss.Color("#565f89"),
		Success:    lipgloss.Color("#9ece6a"),
		Warning:    lipgloss.Color("#e0af68"),
		Error:      lipgloss.Color("#f7768e"),
	},
	"gruvbox": {
		Primary:    lipgloss.Color("#83a598"),
		Secondary:  lipgloss.Color("#8ec07c"),
		Foreground: lipgloss.Color("#ebdbb2"),
		Muted:      lipgloss.Color("#665c54"),
		Success:    lipgloss.Color("#b8bb26"),
		Warning:    lipgloss.Color("#fabd2f"),
		Error:      lipgloss.Color("#fb4934"),
	},
}

// ThemeNames returns sorted names of all built-in themes.
func ThemeNames() []string {
	names := make([]string, 0, len(themes))
	for name := range themes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetPalette returns the palette for the given theme name.
func GetPalette(name string) (Palette, bool) {
	p, ok := themes[name]
	return p, ok
}

// ColorEnabled reports whether output to f should be colored: f must be a
// terminal and NO_COLOR must be unset.
func ColorEnabled(f *os.File) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// Styles is a set of styles for one output stream.
type Styles struct {
	Header  lipgloss.Style
	Muted   lipgloss.Style
	Accent  lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
}

// New builds styles from p. With color disabled every style is a no-op.
func New(p Palette, color bool) Styles {
	if !color {
		plain := lipgloss.NewStyle()
		return Styles{Header: plain, Muted: plain, Accent: plain, Success: plain, Warning: plain, Error: plain}
	}
	return Styles{
		Header:  lipgloss.NewStyle().Foreground(p.Primary).Bold(true),
		Muted:   lipgloss.NewStyle().Foreground(p.Muted),
		Accent:  lipgloss.NewStyle().Foreground(p.Secondary),
		Success: lipgloss.NewStyle().Foreground(p.Success),
		Warning: lipgloss.NewStyle().Foreground(p.Warning),
		Error:   lipgloss.NewStyle().Foreground(p.Error).Bold(true),
	}
}

// ForFile builds styles for f using the named theme, falling back to the
// default theme for unknown names.
func ForFile(f *os.File, theme string) Styles {
	p, ok := GetPalette(theme)
	if !ok {
		p = themes[DefaultTheme]
	}
	return New(p, ColorEnabled(f))
}

func (s Styles) TaskStatus(st backlog.TaskStatus) string {
	switch st {
	case backlog.TaskDone:
		return s.Success.Render(string(st))
	case backlog.TaskInProgress, backlog.TaskReview:
		return s.Accent.Render(string(st))
	case backlog.TaskBlock:
		return s.Error.Render(string(st))
	case backlog.TaskPlan:
		return s.Muted.Render(string(st))
	}
	return string(st)
}

func (s Styles) ItemStatus(st backlog.ItemStatus) string {
	switch st {
	case backlog.ItemDone:
		return s.Success.Render(string(st))
	case backlog.ItemClaimed, backlog.ItemInProgress:
		return s.Accent.Render(string(st))
	case backlog.ItemPlan:
		return s.Muted.Render(string(st))
	}
	return string(st)
}

func (s Styles) WorkerStatus(st worker.Status) string {
	switch st {
	case worker.StatusIdle:
		return s.Muted.Render(string(st))
	case worker.StatusInProgress, worker.StatusBusy:
		return s.Accent.Render(string(st))
	case worker.StatusDone:
		return s.Success.Render(string(st))
	}
	return string(st)
}
