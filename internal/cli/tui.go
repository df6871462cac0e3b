package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/geoclear/engine/pkg/pipeline"
)

// List styles
var (
	listNormalStyle = lipgloss.NewStyle().Foreground(colorWhite)
	listDimStyle    = lipgloss.NewStyle().Foreground(colorDim)
)

// =============================================================================
// ConflictListModel - Interactive conflict browsing
// =============================================================================

// conflictRow is one conflict flattened for display, from the mover's side.
type conflictRow struct {
	Mover    string
	Other    string
	Kinds    []string
	Severity float64
	Shift    float64
	Vector   [2]float64
}

// ConflictListModel is the bubbletea model for browsing detected conflicts.
type ConflictListModel struct {
	Rows     []conflictRow
	Cursor   int
	Height   int
	Offset   int
	ShowInfo bool
}

// NewConflictListModel builds a browser over the conflicts in a pipeline
// result. Each conflict appears once, attributed to the displaced feature.
func NewConflictListModel(res *pipeline.Result) ConflictListModel {
	var rows []conflictRow
	for _, fr := range res.Results {
		for _, c := range fr.Conflicts {
			rows = append(rows, conflictRow{
				Mover:    fr.ID,
				Other:    c.OtherFeatureID,
				Kinds:    c.ConflictKinds,
				Severity: c.Severity,
				Shift:    fr.DisplacementMagnitude,
				Vector:   c.DisplacementVector,
			})
		}
	}
	return ConflictListModel{
		Rows:   rows,
		Cursor: 0,
		Height: 15,
		Offset: 0,
	}
}

func (m ConflictListModel) Init() tea.Cmd {
	return nil
}

func (m ConflictListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
				if m.Cursor < m.Offset {
					m.Offset = m.Cursor
				}
			}
		case "down", "j":
			if m.Cursor < len(m.Rows)-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		case "enter":
			m.ShowInfo = !m.ShowInfo
		}
	case tea.WindowSizeMsg:
		m.Height = msg.Height - 8
		if m.Height < 5 {
			m.Height = 5
		}
	}
	return m, nil
}

func (m ConflictListModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Detected Conflicts"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  ⏎ details  q quit"))
	b.WriteString("\n\n")

	if len(m.Rows) == 0 {
		b.WriteString(listDimStyle.Render("  No conflicts detected."))
		b.WriteString("\n")
		return b.String()
	}

	end := m.Offset + m.Height
	if end > len(m.Rows) {
		end = len(m.Rows)
	}

	rows := [][]string{}
	for i := m.Offset; i < end; i++ {
		r := m.Rows[i]

		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}

		kinds := strings.Join(r.Kinds, ", ")
		if kinds == "" {
			kinds = "—"
		}

		rows = append(rows, []string{
			cursor,
			r.Mover,
			r.Other,
			fmt.Sprintf("%.1f", r.Severity),
			kinds,
		})
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "Displaced", "Against", "Severity", "Conflict Types").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle
			}
			actualIdx := m.Offset + row
			if actualIdx == m.Cursor {
				return lipgloss.NewStyle().Foreground(colorCyan).Bold(true)
			}
			if col == 4 {
				return listDimStyle
			}
			return listNormalStyle
		})

	b.WriteString(t.Render())
	b.WriteString("\n")

	if m.ShowInfo && m.Cursor < len(m.Rows) {
		r := m.Rows[m.Cursor]
		b.WriteString("\n")
		b.WriteString(StyleDim.Render("  vector ") + StyleValue.Render(fmt.Sprintf("(%.3f, %.3f)", r.Vector[0], r.Vector[1])))
		b.WriteString(StyleDim.Render("  total shift ") + StyleValue.Render(fmt.Sprintf("%.3f", r.Shift)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", m.Cursor+1, len(m.Rows))))

	return b.String()
}
