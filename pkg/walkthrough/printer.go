package walkthrough

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

const rule = 60

// Printer writes the human-readable step report.
type Printer struct {
	w     io.Writer
	title *color.Color
	good  *color.Color
	bad   *color.Color
	dim   *color.Color
}

// NewPrinter creates a printer. When colorize is false no escape codes are
// written regardless of the terminal.
func NewPrinter(w io.Writer, colorize bool) *Printer {
	p := &Printer{
		w:     w,
		title: color.New(color.Bold),
		good:  color.New(color.FgGreen),
		bad:   color.New(color.FgRed),
		dim:   color.New(color.FgHiBlack),
	}
	for _, c := range []*color.Color{p.title, p.good, p.bad, p.dim} {
		if colorize {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// Banner prints text between two rules.
func (p *Printer) Banner(text string) {
	line := strings.Repeat("=", rule)
	fmt.Fprintln(p.w, line)
	p.title.Fprintln(p.w, text)
	fmt.Fprintln(p.w, line)
}

// Step announces step n.
func (p *Printer) Step(n int, name string) {
	p.title.Fprintf(p.w, "%d. Testing %s...\n", n, name)
}

// Field prints one indented "Key: value" line.
func (p *Printer) Field(key string, value interface{}) {
	fmt.Fprintf(p.w, "   %s: %v\n", key, value)
}

// Status prints the status line, green for 2xx and red otherwise.
func (p *Printer) Status(code int) {
	c := p.good
	if code < 200 || code >= 300 {
		c = p.bad
	}
	fmt.Fprint(p.w, "   Status: ")
	c.Fprintf(p.w, "%d\n", code)
}

// Success prints a positive result line.
func (p *Printer) Success(key, msg string) {
	fmt.Fprintf(p.w, "   %s: ", key)
	p.good.Fprintln(p.w, msg)
}

// Failure prints a negative result line.
func (p *Printer) Failure(key string, value interface{}) {
	fmt.Fprintf(p.w, "   %s: ", key)
	p.bad.Fprintf(p.w, "%v\n", value)
}

// Note prints a de-emphasised line.
func (p *Printer) Note(format string, args ...interface{}) {
	p.dim.Fprintf(p.w, "   "+format+"\n", args...)
}

// Blank ends a step block.
func (p *Printer) Blank() {
	fmt.Fprintln(p.w)
}

// Closing prints the final banner in green.
func (p *Printer) Closing(text string) {
	line := strings.Repeat("=", rule)
	fmt.Fprintln(p.w, line)
	p.good.Fprintln(p.w, text)
	fmt.Fprintln(p.w, line)
}

// Error prints a fatal diagnostic line.
func (p *Printer) Error(format string, args ...interface{}) {
	p.bad.Fprintf(p.w, "ERROR: "+format+"\n", args...)
}

// Line prints an unindented plain line.
func (p *Printer) Line(format string, args ...interface{}) {
	fmt.Fprintf(p.w, format+"\n", args...)
}
