// Package printer writes human readable status lines for CLI commands.
package printer

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/colonyops/workboard/internal/core/styles"
)

type ctxKey struct{}

// Printer writes prefixed, styled lines to an output stream.
type Printer struct {
	out io.Writer
	st  styles.Styles
}

func New(out io.Writer, st styles.Styles) *Printer {
	return &Printer{out: out, st: st}
}

// NewContext attaches p to ctx.
func NewContext(ctx context.Context, p *Printer) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// Ctx returns the printer attached to ctx, or a stdout printer.
func Ctx(ctx context.Context) *Printer {
	if p, ok := ctx.Value(ctxKey{}).(*Printer); ok {
		return p
	}
	return New(os.Stdout, styles.ForFile(os.Stdout, styles.DefaultTheme))
}

// Styles returns the styles the printer renders with.
func (p *Printer) Styles() styles.Styles {
	return p.st
}

func (p *Printer) Writer() io.Writer {
	return p.out
}

func (p *Printer) Printf(format string, args ...any) {
	_, _ = fmt.Fprintf(p.out, format+"\n", args...)
}

func (p *Printer) Headerf(format string, args ...any) {
	p.Printf("%s", p.st.Header.Render(fmt.Sprintf(format, args...)))
}

func (p *Printer) Successf(format string, args ...any) {
	p.line(p.st.Success.Render("✔"), format, args...)
}

func (p *Printer) Infof(format string, args ...any) {
	p.line(p.st.Accent.Render("•"), format, args...)
}

func (p *Printer) Warnf(format string, args ...any) {
	p.line(p.st.Warning.Render("!"), format, args...)
}

func (p *Printer) Errorf(format string, args ...any) {
	p.line(p.st.Error.Render("✘"), format, args...)
}

func (p *Printer) line(prefix, format string, args ...any) {
	_, _ = fmt.Fprintf(p.out, "%s %s\n", prefix, fmt.Sprintf(format, args...))
}
