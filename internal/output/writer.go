// Package output renders scan reports as console text, JSON or Markdown.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"

	"github.com/tdh8316/usernamescan/internal/probe"
	"github.com/tdh8316/usernamescan/internal/scan"
)

type Format string

const (
	FormatText     Format = "text"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatText, FormatJSON, FormatMarkdown:
		return f, nil
	case "md":
		return FormatMarkdown, nil
	case "":
		return FormatText, nil
	}
	return "", fmt.Errorf("unknown output format %q (want text, json or markdown)", s)
}

// Render writes reports to w in format f. Text output honours noColor and
// verbose; the other formats ignore them.
func Render(w io.Writer, f Format, noColor, verbose bool, reports []*scan.Report) error {
	switch f {
	case FormatJSON:
		return WriteJSON(w, reports)
	case FormatMarkdown:
		return WriteMarkdown(w, reports)
	default:
		p := NewPrinter(w, noColor, verbose)
		for _, r := range reports {
			p.Report(r)
		}
		return nil
	}
}

// WriteJSON writes a single report as an object and several as an array.
func WriteJSON(w io.Writer, reports []*scan.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if len(reports) == 1 {
		return enc.Encode(reports[0])
	}
	return enc.Encode(reports)
}

func WriteMarkdown(w io.Writer, reports []*scan.Report) error {
	md := markdown.NewMarkdown(w)
	md.H1("Username availability")
	md.PlainText("")

	for _, r := range reports {
		md.H2(r.Username)
		md.PlainText("")
		md.Table(markdown.TableSet{
			Header: []string{"Property", "Value"},
			Rows: [][]string{
				{"Report", "`" + r.ID + "`"},
				{"Checked", r.StartedAt.Format("2006-01-02 15:04:05 MST")},
				{"Available", strconv.Itoa(r.Count(probe.Available))},
				{"Taken", strconv.Itoa(r.Count(probe.Taken))},
			},
		})
		md.PlainText("")

		rows := make([][]string, 0, len(r.Results))
		for _, res := range r.Results {
			link := res.ProfileURL
			if res.Status == probe.Available && res.SignupURL != "" {
				link = res.SignupURL
			}
			status := res.Status.String()
			if res.Defaulted {
				status += " (default)"
			}
			rows = append(rows, []string{res.Name, status, link})
		}
		md.Table(markdown.TableSet{
			Header: []string{"Platform", "Status", "Link"},
			Rows:   rows,
		})
		md.PlainText("")
	}

	return md.Build()
}
