package output

import (
	"fmt"
	"io"
	"log"
	"time"

	"github.com/fatih/color"

	"github.com/tdh8316/usernamescan/internal/probe"
	"github.com/tdh8316/usernamescan/internal/scan"
)

// Printer writes human-readable console lines.
type Printer struct {
	noColor bool
	verbose bool

	logger *log.Logger
}

func NewPrinter(w io.Writer, noColor, verbose bool) *Printer {
	return &Printer{
		noColor: noColor,
		verbose: verbose,
		logger:  log.New(w, "", 0),
	}
}

func (p *Printer) Header(handle string) {
	if p.noColor {
		p.logger.Printf("\nChecking %s on:", handle)
	} else {
		p.logger.Printf("\nChecking %s on:", color.HiGreenString(handle))
	}
}

func (p *Printer) Result(res scan.Result) {
	suffix := ""
	if p.verbose {
		suffix = fmt.Sprintf(" (attempts: %d, %s)", res.Attempts, res.Elapsed.Round(time.Millisecond))
		if res.Defaulted {
			suffix += " [default]"
		}
	}

	switch res.Status {
	case probe.Available:
		if p.noColor {
			p.logger.Printf("[+] %s: available %s%s", res.Name, res.SignupURL, suffix)
		} else {
			p.logger.Printf("[%s] %s: %s %s%s",
				color.HiGreenString("+"),
				color.HiWhiteString(res.Name),
				color.HiGreenString("available"),
				res.SignupURL,
				suffix,
			)
		}
	default:
		if p.noColor {
			p.logger.Printf("[-] %s: taken %s%s", res.Name, res.ProfileURL, suffix)
		} else {
			p.logger.Printf("[%s] %s: %s %s%s",
				color.HiRedString("-"),
				res.Name,
				color.HiYellowString("taken"),
				res.ProfileURL,
				suffix,
			)
		}
	}
}

// Outcome prints one unresolved attempt, which may be unknown.
func (p *Printer) Outcome(platformID string, o probe.Outcome) {
	if p.noColor {
		p.logger.Printf("[i] %s: %s", platformID, o)
		return
	}
	var s string
	switch o {
	case probe.Available:
		s = color.HiGreenString(o.String())
	case probe.Taken:
		s = color.HiYellowString(o.String())
	default:
		s = color.HiMagentaString(o.String())
	}
	p.logger.Printf("[%s] %s: %s", color.HiBlueString("i"), platformID, s)
}

func (p *Printer) Report(r *scan.Report) {
	p.Header(r.Username)
	for _, res := range r.Results {
		p.Result(res)
	}
	p.Summary(r)
}

func (p *Printer) Summary(r *scan.Report) {
	avail, taken := r.Count(probe.Available), r.Count(probe.Taken)
	if p.noColor {
		p.logger.Printf("%d available, %d taken", avail, taken)
		return
	}
	p.logger.Printf("%s available, %s taken",
		color.HiGreenString("%d", avail),
		color.HiYellowString("%d", taken),
	)
}

func (p *Printer) Info(format string, args ...any) {
	if p.noColor {
		p.logger.Printf("[!] "+format, args...)
		return
	}
	p.logger.Printf("[%s] %s", color.HiRedString("!"), color.HiYellowString(format, args...))
}

func (p *Printer) Failure(f scan.ValidationFailure) {
	if f.Err != nil {
		if p.noColor {
			p.logger.Printf("[-] %s: Failed with error [%s]", f.PlatformID, f.Err)
		} else {
			p.logger.Printf("[-] %s: %s [%s]", f.PlatformID, color.YellowString("Failed with error"), f.Err)
		}
		return
	}

	status := "Not working"
	if !p.noColor {
		status = color.RedString(status)
	}
	p.logger.Printf("[-] %s: %s (%s: expected taken, result is %s | %s: expected available, result is %s)",
		f.PlatformID, status,
		f.Claimed, f.ClaimedOutcome,
		f.Unclaimed, f.UnclaimedOutcome,
	)
}
