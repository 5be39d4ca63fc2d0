package server

import (
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tdh8316/usernamescan/internal/probe"
	"github.com/tdh8316/usernamescan/internal/scan"
)

type platformInfo struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	ProfileURL string `json:"profileUrl"`
	SignupURL  string `json:"signupUrl"`
	Default    string `json:"default"`
	Relay      bool   `json:"relay"`
}

type scanRequest struct {
	Username string `json:"username"`
}

type suggestionsRequest struct {
	Usernames []string `json:"usernames"`
	Platforms []string `json:"platforms"`
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) platforms(c *gin.Context) {
	ds := s.scanner.Platforms()
	out := make([]platformInfo, 0, len(ds))
	for _, d := range ds {
		out = append(out, platformInfo{
			ID:         d.ID,
			Name:       d.Name,
			ProfileURL: d.ProfileURL,
			SignupURL:  d.SignupURL,
			Default:    d.Default,
			Relay:      d.UsesRelay(),
		})
	}
	c.JSON(http.StatusOK, out)
}

// checkUsername answers {"status": ...} for one platform. raw=1 skips the
// retry policy and may answer "unknown".
func (s *Server) checkUsername(c *gin.Context) {
	handle := strings.TrimSpace(c.Query("username"))
	platformID := strings.TrimSpace(c.Query("platform"))
	if handle == "" || platformID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"status": probe.Unknown, "error": "username and platform are required"})
		return
	}

	var status probe.Outcome
	var err error
	if raw := c.Query("raw"); raw == "1" || raw == "true" {
		status, err = s.scanner.CheckRaw(c.Request.Context(), handle, platformID)
	} else {
		var res scan.Result
		res, err = s.scanner.Check(c.Request.Context(), handle, platformID)
		status = res.Status
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": status})
}

func (s *Server) scanGet(c *gin.Context) {
	s.scan(c, c.Query("username"))
}

func (s *Server) scanPost(c *gin.Context) {
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	s.scan(c, req.Username)
}

func (s *Server) scan(c *gin.Context, handle string) {
	handle = strings.TrimSpace(handle)
	if handle == "" {
		s.fail(c, scan.ErrEmptyHandle)
		return
	}

	if s.cache != nil {
		if v, ok := s.cache.Get(handle); ok {
			c.Header("X-Cache", "HIT")
			c.JSON(http.StatusOK, v.(*scan.Report))
			return
		}
	}

	ctx := c.Request.Context()
	report, err := s.scanner.Scan(ctx, handle)
	if err != nil {
		s.fail(c, err)
		return
	}
	// A cancelled request resolves to defaults; keep those out of the cache.
	if s.cache != nil && ctx.Err() == nil {
		s.cache.SetDefault(handle, report)
		c.Header("X-Cache", "MISS")
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) checkSuggestions(c *gin.Context) {
	var req suggestionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	handles := make([]string, 0, len(req.Usernames))
	for _, h := range req.Usernames {
		if h = strings.TrimSpace(h); h != "" && !slices.Contains(handles, h) {
			handles = append(handles, h)
		}
	}
	if len(handles) == 0 {
		s.fail(c, scan.ErrEmptyHandle)
		return
	}
	if len(handles) > maxSuggestions {
		c.JSON(http.StatusBadRequest, gin.H{"error": "too many usernames"})
		return
	}

	platforms := req.Platforms
	if len(platforms) == 0 {
		platforms = s.defaultSuggestionPlatforms()
	}

	reports, err := s.scanner.ScanMany(c.Request.Context(), handles, platforms)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, reports)
}

// defaultSuggestionPlatforms keeps the defaults the table actually has. A
// table with none of them checks every platform.
func (s *Server) defaultSuggestionPlatforms() []string {
	var out []string
	for _, d := range s.scanner.Platforms() {
		if slices.Contains(DefaultSuggestionPlatforms, d.ID) {
			out = append(out, d.ID)
		}
	}
	return out
}

func (s *Server) fail(c *gin.Context, err error) {
	_ = c.Error(err)
	switch {
	case errors.Is(err, scan.ErrEmptyHandle), errors.Is(err, scan.ErrUnknownPlatform):
		c.JSON(http.StatusBadRequest, gin.H{"status": probe.Unknown, "error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"status": probe.Unknown, "error": "internal error"})
	}
}
