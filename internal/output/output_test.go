package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tdh8316/usernamescan/internal/probe"
	"github.com/tdh8316/usernamescan/internal/scan"
)

func sampleReport() *scan.Report {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &scan.Report{
		ID:       "8d6f3c9a-0000-4000-8000-000000000001",
		Username: "someone",
		Results: []scan.Result{
			{PlatformID: "github", Name: "GitHub", Status: probe.Taken, ProfileURL: "https://github.com/someone", SignupURL: "https://github.com/signup", Attempts: 1},
			{PlatformID: "reddit", Name: "Reddit", Status: probe.Available, ProfileURL: "https://www.reddit.com/user/someone", SignupURL: "https://www.reddit.com/register/", Attempts: 2, Defaulted: true},
		},
		StartedAt:   start,
		CompletedAt: start.Add(time.Second),
	}
}

func TestParseFormat(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]Format{"": FormatText, "TEXT": FormatText, "json": FormatJSON, "md": FormatMarkdown, "markdown": FormatMarkdown} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("csv")
	assert.Error(t, err)
}

func TestPrinterPlain(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, FormatText, true, false, []*scan.Report{sampleReport()}))

	out := buf.String()
	assert.Contains(t, out, "Checking someone on:")
	assert.Contains(t, out, "[-] GitHub: taken https://github.com/someone\n")
	assert.Contains(t, out, "[+] Reddit: available https://www.reddit.com/register/\n")
	assert.Contains(t, out, "1 available, 1 taken")
	assert.NotContains(t, out, "attempts")
}

func TestPrinterVerbose(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	p := NewPrinter(&buf, true, true)
	p.Result(sampleReport().Results[1])
	assert.Contains(t, buf.String(), "(attempts: 2, 0s) [default]")

	buf.Reset()
	p.Outcome("twitch", probe.Unknown)
	assert.Equal(t, "[i] twitch: unknown\n", buf.String())
}

func TestPrinterFailure(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	p := NewPrinter(&buf, true, false)
	p.Failure(scan.ValidationFailure{
		PlatformID:       "steam",
		Claimed:          "gabelogannewell",
		Unclaimed:        "zzqwxyrandom123456",
		ClaimedOutcome:   probe.Available,
		UnclaimedOutcome: probe.Available,
	})
	p.Failure(scan.ValidationFailure{PlatformID: "linkedin", Err: errors.New("missing samples")})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "[-] steam: Not working (gabelogannewell: expected taken, result is available | zzqwxyrandom123456: expected available, result is available)", lines[0])
	assert.Equal(t, "[-] linkedin: Failed with error [missing samples]", lines[1])
}

func TestWriteJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, FormatJSON, false, false, []*scan.Report{sampleReport()}))

	var got struct {
		ID       string `json:"id"`
		Username string `json:"username"`
		Results  []struct {
			PlatformID string `json:"platformId"`
			Status     string `json:"status"`
			ProfileURL string `json:"profileUrl"`
			SignupURL  string `json:"signupUrl"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "someone", got.Username)
	require.Len(t, got.Results, 2)
	assert.Equal(t, "taken", got.Results[0].Status)
	assert.Equal(t, "available", got.Results[1].Status)
	assert.Equal(t, "https://github.com/someone", got.Results[0].ProfileURL)

	buf.Reset()
	require.NoError(t, WriteJSON(&buf, []*scan.Report{sampleReport(), sampleReport()}))
	var many []json.RawMessage
	require.NoError(t, json.Unmarshal(buf.Bytes(), &many))
	assert.Len(t, many, 2)
}

func TestWriteMarkdown(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, FormatMarkdown, false, false, []*scan.Report{sampleReport()}))

	out := buf.String()
	assert.Contains(t, out, "# Username availability")
	assert.Contains(t, out, "## someone")
	assert.Contains(t, out, "GitHub")
	assert.Contains(t, out, "available (default)")
	assert.Contains(t, out, "https://www.reddit.com/register/")
	assert.Contains(t, out, "Platform")
}
