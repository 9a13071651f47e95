package scenario

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/v0xg/bookcheck/internal/browser"
	"github.com/v0xg/bookcheck/internal/gifgen"
	"github.com/v0xg/bookcheck/internal/overlay"
)

// Artifact file names inside a scenario's directory.
const (
	ScreenshotFile = "screenshot.png"
	PageMapFile    = "page.json"
	DialogFile     = "dialog.json"
	RecordingFile  = "recording.gif"
)

// Slug turns a scenario name into a directory name.
func Slug(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// saveArtifacts records what the failed page looked like. Each artifact is
// best effort; a failed capture is logged and skipped. It returns the page
// map when one could be taken.
func (r *Runner) saveArtifacts(runID string, sc Scenario, s *browser.Session, res *Result, log *zap.Logger) *browser.PageMap {
	dir := filepath.Join(r.ArtifactsDir, runID, Slug(sc.Name))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Warn("create artifacts dir", zap.String("dir", dir), zap.Error(err))
		return nil
	}

	write := func(name string, data []byte) {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			log.Warn("write artifact", zap.String("path", path), zap.Error(err))
			return
		}
		res.Artifacts = append(res.Artifacts, path)
	}

	var page *browser.PageMap
	if d := s.UnexpectedDialog(); d != nil {
		// The open dialog blocks both the renderer and script evaluation.
		if data, err := json.MarshalIndent(d, "", "  "); err == nil {
			write(DialogFile, data)
		}
	} else {
		if png, err := s.Screenshot(); err != nil {
			log.Warn("capture screenshot", zap.Error(err))
		} else {
			write(ScreenshotFile, png)
		}

		pm, err := s.Snapshot()
		if err != nil {
			log.Warn("capture page map", zap.Error(err))
		} else if data, err := json.MarshalIndent(pm, "", "  "); err == nil {
			page = pm
			write(PageMapFile, data)
		}
	}

	if frames := s.Frames(); len(frames) > 0 {
		path := filepath.Join(dir, RecordingFile)
		size, err := gifgen.WriteFile(path, overlay.Apply(frames), r.GIF)
		if err != nil {
			log.Warn("write recording", zap.String("path", path), zap.Error(err))
		} else {
			log.Debug("recording written", zap.String("path", path), zap.Int64("bytes", size))
			res.Artifacts = append(res.Artifacts, path)
		}
	}

	return page
}
