package app

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runApp(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := RunWithInput(context.Background(), args, strings.NewReader(""), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func writePlatforms(t *testing.T, baseURL string) string {
	t.Helper()
	table := fmt.Sprintf(`version: "1.0.0"
platforms:
  - id: local
    name: Local
    profile_url: %[1]s/users/{}
    signup_url: %[1]s/join
    default: taken
    claimed: taken
    unclaimed: free
    probe:
      strategy: api
      url: %[1]s/users/{}
      taken_status: [200]
      available_status: [404]
`, baseURL)
	path := filepath.Join(t.TempDir(), "platforms.yaml")
	require.NoError(t, os.WriteFile(path, []byte(table), 0o600))
	return path
}

func TestRunPlatformsBuiltin(t *testing.T) {
	code, out, _ := runApp(t, "--no-color", "platforms")
	require.Equal(t, 0, code)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 15)
	assert.True(t, strings.HasPrefix(lines[0], "youtube"))
	assert.True(t, strings.HasPrefix(lines[14], "pinterest"))
}

func TestRunExitCodes(t *testing.T) {
	cases := []struct {
		name string
		args []string
		code int
	}{
		{"no command prints help", nil, 0},
		{"unknown flag", []string{"--nope"}, 2},
		{"unknown platform", []string{"check", "someone", "-p", "myspace"}, 2},
		{"missing config file", []string{"--config", "/does/not/exist.yaml", "platforms"}, 1},
		{"missing platforms file", []string{"--platforms-file", "/does/not/exist.yaml", "platforms"}, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, _, stderr := runApp(t, tc.args...)
			assert.Equal(t, tc.code, code, stderr)
			if tc.code != 0 {
				assert.Contains(t, stderr, "error: ")
			}
		})
	}
}

func TestRunCheckEndToEnd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/users/taken" {
			w.WriteHeader(http.StatusOK)
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	file := writePlatforms(t, srv.URL)

	code, out, stderr := runApp(t, "--no-color", "--platforms-file", file, "check", "taken", "-p", "local")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, out, "[-] Local: taken "+srv.URL+"/users/taken")

	code, out, stderr = runApp(t, "--no-color", "--platforms-file", file, "scan", "free", "-f", "json")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, out, `"status": "available"`)
	assert.Contains(t, out, `"signupUrl": "`+srv.URL+`/join"`)

	code, out, stderr = runApp(t, "--no-color", "--platforms-file", file, "validate")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, out, "[Done]")
}
