package discovery

import (
	"context"
	"encoding/json"

	"github.com/wpmend-dev/wpmend-agent/internal/logger"
	"github.com/wpmend-dev/wpmend-agent/pkg/sshexec"
)

// Runner runs one sanitized command on an established session. The
// orchestrator binds it to a live substrate session before handing it over.
type Runner interface {
	Run(ctx context.Context, command string) (*sshexec.RunResult, error)
}

const Unknown = "unknown"

type OperatingSystem struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Arch    string `json:"arch"`
	Kernel  string `json:"kernel"`
}

type WebServer struct {
	Kind         string `json:"kind"`
	Version      string `json:"version"`
	ConfigPath   string `json:"config_path"`
	DocumentRoot string `json:"document_root"`
}

type ControlPanel struct {
	Kind    string `json:"kind"`
	Version string `json:"version"`
}

type PHP struct {
	Version    string   `json:"version"`
	Handler    string   `json:"handler"`
	Extensions []string `json:"extensions"`
}

type Database struct {
	Engine  string `json:"engine"`
	Version string `json:"version"`
}

type CacheLayer struct {
	Kind   string `json:"kind"`
	Active bool   `json:"active"`
}

type WordPress struct {
	Path         string `json:"path"`
	Version      string `json:"version"`
	Multisite    bool   `json:"multisite"`
	DatabaseName string `json:"database_name"`
}

// Snapshot is the structured picture of a target stack. Every field is
// populated; a probe that finds nothing leaves "unknown" or empty defaults,
// so partial visibility never blocks the orchestrator.
type Snapshot struct {
	OS           OperatingSystem `json:"os"`
	WebServer    WebServer       `json:"web_server"`
	ControlPanel ControlPanel    `json:"control_panel"`
	PHP          PHP             `json:"php"`
	Database     Database        `json:"database"`
	Caches       []CacheLayer    `json:"caches"`
	WordPress    WordPress       `json:"wordpress"`
}

func newSnapshot() *Snapshot {
	return &Snapshot{
		OS:           OperatingSystem{Name: Unknown, Version: Unknown, Arch: Unknown, Kernel: Unknown},
		WebServer:    WebServer{Kind: Unknown, Version: Unknown},
		ControlPanel: ControlPanel{Kind: "none"},
		PHP:          PHP{Version: Unknown, Handler: Unknown},
		Database:     Database{Engine: Unknown, Version: Unknown},
		WordPress:    WordPress{Version: Unknown},
	}
}

func (s *Snapshot) ToJSON() []byte {
	data, _ := json.Marshal(s)

	return data
}

type Discoverer struct {
	logger *logger.Logger
}

func NewDiscoverer(l *logger.Logger) *Discoverer {
	return &Discoverer{logger: l}
}

// Discover runs the probe table against the host. A probe whose command
// exits non-zero is a negative result, not an error; only transport failures
// propagate, so they can be retried by the caller.
func (d *Discoverer) Discover(ctx context.Context, runner Runner) (*Snapshot, error) {
	snap := newSnapshot()

	for _, p := range hostProbes {
		// control panels ship their own web server distribution, so once one
		// is identified the generic web-server probes are skipped
		if p.skip != nil && p.skip(snap) {
			continue
		}

		result, err := runner.Run(ctx, p.command)

		if err != nil {
			return nil, err
		}

		if result.ExitCode != 0 {
			d.logger.Debug().Msgf("probe %s: negative result (exit=%d)", p.name, result.ExitCode)

			continue
		}

		p.apply(result, snap)
	}

	return snap, nil
}

// DiscoverSite probes one WordPress installation. The path parameter is
// templated and sanitized before execution.
func (d *Discoverer) DiscoverSite(ctx context.Context, runner Runner, installPath string) (*WordPress, error) {
	wp := &WordPress{Path: installPath, Version: Unknown}

	for _, p := range siteProbes {
		command, err := sshexec.RenderTemplate(p.template, map[string]string{"path": installPath})

		if err != nil {
			return nil, err
		}

		result, err := runner.Run(ctx, command)

		if err != nil {
			return nil, err
		}

		if result.ExitCode != 0 {
			d.logger.Debug().Msgf("site probe %s: negative result (exit=%d)", p.name, result.ExitCode)

			continue
		}

		p.apply(result, wp)
	}

	return wp, nil
}
