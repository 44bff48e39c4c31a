package report

import (
	"fmt"
	"html/template"
	"strings"
	"time"
)

// Row is one employee line of an attendance grid, one cell per day.
type Row struct {
	PVID  string
	Name  string
	Cells []string
}

// Grid is a department attendance grid ready for rendering.
type Grid struct {
	Dept  string
	Year  int
	Month time.Month
	Rows  []Row
}

// Title is the document heading.
func (g Grid) Title() string {
	return fmt.Sprintf("Attendance for department %s, %d-%02d", g.Dept, g.Year, int(g.Month))
}

// Period is the short year-month label.
func (g Grid) Period() string {
	return fmt.Sprintf("%d-%02d", g.Year, int(g.Month))
}

// Days enumerates the day-of-month column headers.
func (g Grid) Days() []int {
	if len(g.Rows) == 0 {
		return nil
	}
	days := make([]int, len(g.Rows[0].Cells))
	for i := range days {
		days[i] = i + 1
	}
	return days
}

var gridTemplate = template.Must(template.New("grid").Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>{{.Title}}</title>
<style>
body { font-family: sans-serif; font-size: 9pt; }
h1 { font-size: 13pt; }
table { border-collapse: collapse; }
th, td { border: 1px solid #999; padding: 2px 4px; text-align: center; }
td.name { text-align: left; white-space: nowrap; }
</style></head><body>
<h1>{{.Title}}</h1>
<p>Period: {{.Period}}</p>
{{if .Rows}}<table>
<tr><th>Employee number</th><th>Employee name</th>{{range .Days}}<th>{{.}}</th>{{end}}</tr>
{{range .Rows}}<tr><td>{{.PVID}}</td><td class="name">{{.Name}}</td>{{range .Cells}}<td>{{.}}</td>{{end}}</tr>
{{end}}</table>
{{else}}<p>The query returned no records.</p>{{end}}
</body></html>
`))

// GridHTML renders the grid as a printable HTML page.
func GridHTML(g Grid) (string, error) {
	var buf strings.Builder
	if err := gridTemplate.Execute(&buf, g); err != nil {
		return "", err
	}
	return buf.String(), nil
}
