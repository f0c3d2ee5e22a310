// Package deps reports whether the external executables lexisub shells out
// to are installed.
package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"lexisub/internal/config"
)

// Requirement defines an external binary a pipeline stage invokes.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Path        string `json:"path,omitempty"`
	Detail      string `json:"detail,omitempty"`
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		switch path, err := exec.LookPath(cmd); {
		case cmd == "":
			status.Detail = "command not configured"
		case err != nil:
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
		default:
			status.Available = true
			status.Path = path
		}
		results = append(results, status)
	}
	return results
}

// Requirements lists the binaries the configured backends need. Binaries
// used only by the fallback transcription backend are optional.
func Requirements(cfg *config.Config) []Requirement {
	reqs := []Requirement{{
		Name:        "FFmpeg",
		Command:     cfg.Extraction.FFmpegBinary,
		Description: "Cuts the chunk window into mono PCM audio",
	}}
	add := func(backend string, optional bool) {
		switch backend {
		case "whisperx":
			reqs = append(reqs, Requirement{
				Name:        "uvx",
				Command:     "uvx",
				Description: "Runs WhisperX transcription",
				Optional:    optional,
			})
		case "whispercpp":
			reqs = append(reqs, Requirement{
				Name:        "whisper.cpp",
				Command:     cfg.Transcription.WhisperCPPBinary,
				Description: "Runs whisper.cpp transcription",
				Optional:    optional,
			})
		}
	}
	add(cfg.Transcription.Backend, false)
	if fb := cfg.Transcription.FallbackBackend; fb != "" && fb != cfg.Transcription.Backend {
		add(fb, true)
	}
	return reqs
}

// MissingRequired returns the required dependencies that are unavailable.
func MissingRequired(statuses []Status) []Status {
	var missing []Status
	for _, s := range statuses {
		if !s.Available && !s.Optional {
			missing = append(missing, s)
		}
	}
	return missing
}
