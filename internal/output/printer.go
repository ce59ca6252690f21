// Package output writes command results as styled text, JSON or YAML.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
	"github.com/systmms/envmanage/internal/awsenv"
	"github.com/systmms/envmanage/internal/config"
	"github.com/systmms/envmanage/internal/scope"
	"gopkg.in/yaml.v3"
)

// Environment is the structured form of show-env
type Environment struct {
	Instances []awsenv.Instance         `json:"instances" yaml:"instances"`
	Groups    []awsenv.AutoscalingGroup `json:"asgs" yaml:"asgs"`
}

// Printer renders results in the configured format
type Printer struct {
	out    io.Writer
	format config.Format

	title  lipgloss.Style
	name   lipgloss.Style
	kind   lipgloss.Style
	value  lipgloss.Style
	header lipgloss.Style
	muted  lipgloss.Style
}

// New creates a printer writing to w. Colors are used only when w is a
// terminal and noColor is false.
func New(w io.Writer, format config.Format, noColor bool) *Printer {
	r := lipgloss.NewRenderer(w)
	if noColor || !IsTerminal(w) {
		r.SetColorProfile(termenv.Ascii)
	}

	return &Printer{
		out:    w,
		format: format,
		title:  r.NewStyle().Foreground(lipgloss.Color("2")).Bold(true),
		name:   r.NewStyle().Foreground(lipgloss.Color("2")),
		kind:   r.NewStyle().Foreground(lipgloss.Color("12")),
		value:  r.NewStyle().Foreground(lipgloss.Color("9")),
		header: r.NewStyle().Bold(true),
		muted:  r.NewStyle().Foreground(lipgloss.Color("8")),
	}
}

// IsTerminal reports whether w is a terminal
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Structured reports whether results are written as JSON or YAML
func (p *Printer) Structured() bool {
	return p.format == config.FormatJSON || p.format == config.FormatYAML
}

// Banner prints the scope header that precedes text output
func (p *Printer) Banner(s scope.Scope) {
	if p.Structured() {
		return
	}
	fmt.Fprintf(p.out, "%s : %s\n%s : %s\n\n",
		p.header.Render("PRODUCT"), s.Product,
		p.header.Render("ENVIRONMENT"), s.Environment)
}

// Secrets prints one "name (type)" line per secret
func (p *Printer) Secrets(secrets []awsenv.Secret) error {
	if p.Structured() {
		if secrets == nil {
			secrets = []awsenv.Secret{}
		}
		return p.encode(secrets)
	}
	for _, s := range secrets {
		fmt.Fprintf(p.out, "%s (%s)\n", p.name.Render(s.Name), p.kind.Render(string(s.Kind)))
	}
	return nil
}

// Secret prints "name (type) = value"
func (p *Printer) Secret(s awsenv.Secret) error {
	if p.Structured() {
		return p.encode(s)
	}
	fmt.Fprintf(p.out, "%s (%s) = %s\n",
		p.name.Render(s.Name), p.kind.Render(string(s.Kind)), p.value.Render(s.Value))
	return nil
}

// Environment prints the instances table followed by the groups table.
// Launch times are shown in the local zone.
func (p *Printer) Environment(env Environment) error {
	if p.Structured() {
		if env.Instances == nil {
			env.Instances = []awsenv.Instance{}
		}
		if env.Groups == nil {
			env.Groups = []awsenv.AutoscalingGroup{}
		}
		return p.encode(env)
	}

	fmt.Fprintf(p.out, "%s\n\n", p.title.Render("Instances"))
	rows := make([][]string, 0, len(env.Instances))
	for _, i := range env.Instances {
		launch := ""
		if !i.LaunchTime.IsZero() {
			launch = i.LaunchTime.Local().Format(time.RFC3339)
		}
		rows = append(rows, []string{i.Name, i.ID, i.PrivateIP, i.Type, launch, i.State})
	}
	p.table([]string{"Name", "Instance ID", "Private IP", "Type", "Launch Time", "State"}, rows)

	fmt.Fprintf(p.out, "\n\n%s\n\n", p.title.Render("AutoScaling Groups"))
	rows = make([][]string, 0, len(env.Groups))
	for _, g := range env.Groups {
		rows = append(rows, []string{
			g.Name,
			strconv.Itoa(int(g.Min)),
			strconv.Itoa(int(g.Max)),
			strconv.Itoa(int(g.Desired)),
			strconv.Itoa(g.Instances),
			g.Status,
		})
	}
	p.table([]string{"Name", "Min", "Max", "Desired", "Instances", "Status"}, rows)
	return nil
}

// table writes left-aligned columns under a header and a dashed rule
func (p *Printer) table(headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if w := lipgloss.Width(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	rule := make([]string, len(headers))
	for i, h := range headers {
		rule[i] = strings.Repeat("-", lipgloss.Width(h))
	}

	p.row(widths, headers, p.header)
	p.row(widths, rule, p.muted)
	for _, row := range rows {
		p.row(widths, row, lipgloss.NewStyle())
	}
}

func (p *Printer) row(widths []int, cells []string, style lipgloss.Style) {
	var b strings.Builder
	for i, cell := range cells {
		if i == len(cells)-1 {
			b.WriteString(style.Render(cell))
			break
		}
		b.WriteString(padRight(style.Render(cell), widths[i]+2))
	}
	fmt.Fprintln(p.out, strings.TrimRight(b.String(), " "))
}

func (p *Printer) encode(v interface{}) error {
	switch p.format {
	case config.FormatYAML:
		enc := yaml.NewEncoder(p.out)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to encode YAML: %w", err)
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(p.out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to encode JSON: %w", err)
		}
		return nil
	}
}

// padRight pads s to width visible cells, ignoring ANSI sequences
func padRight(s string, width int) string {
	visible := lipgloss.Width(s)
	if visible >= width {
		return s
	}
	return s + strings.Repeat(" ", width-visible)
}
