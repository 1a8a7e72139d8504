package discovery

import (
	"regexp"
	"strings"

	"github.com/wpmend-dev/wpmend-agent/pkg/sshexec"
)

// This file enumerates the host and site probe tables. Every command must
// survive the substrate sanitizer, so probes are single binaries with flags:
// no pipes, no substitution, no redirection.

type hostProbe struct {
	name    string
	command string

	// skip suppresses a probe given what earlier probes already found.
	skip func(snap *Snapshot) bool

	apply func(result *sshexec.RunResult, snap *Snapshot)
}

type siteProbe struct {
	name     string
	template string

	apply func(result *sshexec.RunResult, wp *WordPress)
}

var (
	osReleasePattern     = regexp.MustCompile(`(?m)^NAME="?([^"\n]+)"?`)
	osVersionPattern     = regexp.MustCompile(`(?m)^VERSION_ID="?([^"\n]+)"?`)
	nginxVersionPattern  = regexp.MustCompile(`nginx/([0-9][0-9.]*)`)
	apacheVersionPattern = regexp.MustCompile(`Apache/([0-9][0-9.]*)`)
	phpVersionPattern    = regexp.MustCompile(`PHP ([0-9][0-9.]*)`)
	mysqlDistribPattern  = regexp.MustCompile(`Distrib ([0-9][0-9.]*)`)
	mysqlVerPattern      = regexp.MustCompile(`Ver ([0-9][0-9.]*)`)
	mariadbPattern       = regexp.MustCompile(`(?i)mariadb`)
	psqlVersionPattern   = regexp.MustCompile(`PostgreSQL\)? ([0-9][0-9.]*)`)
	cpanelVersionPattern = regexp.MustCompile(`([0-9][0-9.]+)`)
)

func controlPanelFound(snap *Snapshot) bool {
	return snap.ControlPanel.Kind != "none"
}

var hostProbes = []hostProbe{
	{
		name:    "os-release",
		command: "cat /etc/os-release",
		apply: func(result *sshexec.RunResult, snap *Snapshot) {
			if m := osReleasePattern.FindStringSubmatch(result.Stdout); m != nil {
				snap.OS.Name = m[1]
			}

			if m := osVersionPattern.FindStringSubmatch(result.Stdout); m != nil {
				snap.OS.Version = m[1]
			}
		},
	},
	{
		name:    "kernel",
		command: "uname -r",
		apply: func(result *sshexec.RunResult, snap *Snapshot) {
			snap.OS.Kernel = strings.TrimSpace(result.Stdout)
		},
	},
	{
		name:    "arch",
		command: "uname -m",
		apply: func(result *sshexec.RunResult, snap *Snapshot) {
			snap.OS.Arch = strings.TrimSpace(result.Stdout)
		},
	},

	// control panels first: most specific wins, and a panel implies its own
	// bundled web server
	{
		name:    "cpanel",
		command: "cat /usr/local/cpanel/version",
		apply: func(result *sshexec.RunResult, snap *Snapshot) {
			snap.ControlPanel.Kind = "cpanel"

			if m := cpanelVersionPattern.FindString(result.Stdout); m != "" {
				snap.ControlPanel.Version = m
			}
		},
	},
	{
		name:    "plesk",
		command: "plesk version",
		skip:    controlPanelFound,
		apply: func(result *sshexec.RunResult, snap *Snapshot) {
			snap.ControlPanel.Kind = "plesk"

			if m := cpanelVersionPattern.FindString(result.Stdout); m != "" {
				snap.ControlPanel.Version = m
			}
		},
	},
	{
		name:    "directadmin",
		command: "test -d /usr/local/directadmin",
		skip:    controlPanelFound,
		apply: func(result *sshexec.RunResult, snap *Snapshot) {
			snap.ControlPanel.Kind = "directadmin"
		},
	},
	{
		name:    "cyberpanel",
		command: "test -d /usr/local/CyberCP",
		skip:    controlPanelFound,
		apply: func(result *sshexec.RunResult, snap *Snapshot) {
			snap.ControlPanel.Kind = "cyberpanel"
		},
	},

	{
		name:    "litespeed",
		command: "test -d /usr/local/lsws",
		apply: func(result *sshexec.RunResult, snap *Snapshot) {
			snap.WebServer.Kind = "litespeed"
			snap.WebServer.ConfigPath = "/usr/local/lsws/conf/httpd_config.conf"
		},
	},
	{
		name:    "nginx",
		command: "nginx -v",
		skip: func(snap *Snapshot) bool {
			return snap.WebServer.Kind != Unknown
		},
		apply: func(result *sshexec.RunResult, snap *Snapshot) {
			// nginx prints its version banner on stderr
			if m := nginxVersionPattern.FindStringSubmatch(result.Stderr); m != nil {
				snap.WebServer.Kind = "nginx"
				snap.WebServer.Version = m[1]
				snap.WebServer.ConfigPath = "/etc/nginx/nginx.conf"
			}
		},
	},
	{
		name:    "apache",
		command: "apachectl -v",
		skip: func(snap *Snapshot) bool {
			return snap.WebServer.Kind != Unknown
		},
		apply: func(result *sshexec.RunResult, snap *Snapshot) {
			if m := apacheVersionPattern.FindStringSubmatch(result.Stdout); m != nil {
				snap.WebServer.Kind = "apache"
				snap.WebServer.Version = m[1]
				snap.WebServer.ConfigPath = "/etc/apache2/apache2.conf"
			}
		},
	},

	{
		name:    "php-version",
		command: "php -v",
		apply: func(result *sshexec.RunResult, snap *Snapshot) {
			if m := phpVersionPattern.FindStringSubmatch(result.Stdout); m != nil {
				snap.PHP.Version = m[1]
			}
		},
	},
	{
		name:    "php-fpm",
		command: "pgrep -x php-fpm",
		apply: func(result *sshexec.RunResult, snap *Snapshot) {
			snap.PHP.Handler = "php-fpm"
		},
	},
	{
		name:    "php-extensions",
		command: "php -m",
		apply: func(result *sshexec.RunResult, snap *Snapshot) {
			for _, line := range strings.Split(result.Stdout, "\n") {
				line = strings.TrimSpace(line)

				if line == "" || strings.HasPrefix(line, "Zend") || line == "Zend Modules" {
					continue
				}

				snap.PHP.Extensions = append(snap.PHP.Extensions, line)

				if strings.EqualFold(line, "Zend OPcache") || strings.EqualFold(line, "OPcache") {
					snap.Caches = append(snap.Caches, CacheLayer{Kind: "opcache", Active: true})
				}
			}
		},
	},

	{
		name:    "mysql",
		command: "mysql --version",
		apply: func(result *sshexec.RunResult, snap *Snapshot) {
			snap.Database.Engine = "mysql"

			if mariadbPattern.MatchString(result.Stdout) {
				snap.Database.Engine = "mariadb"
			}

			// mariadb reports the client in "Ver" and the server in "Distrib"
			if m := mysqlDistribPattern.FindStringSubmatch(result.Stdout); m != nil {
				snap.Database.Version = m[1]
			} else if m := mysqlVerPattern.FindStringSubmatch(result.Stdout); m != nil {
				snap.Database.Version = m[1]
			}
		},
	},
	{
		name:    "postgresql",
		command: "psql --version",
		skip: func(snap *Snapshot) bool {
			return snap.Database.Engine != Unknown
		},
		apply: func(result *sshexec.RunResult, snap *Snapshot) {
			snap.Database.Engine = "postgresql"

			if m := psqlVersionPattern.FindStringSubmatch(result.Stdout); m != nil {
				snap.Database.Version = m[1]
			}
		},
	},

	{
		name:    "redis",
		command: "redis-cli ping",
		apply: func(result *sshexec.RunResult, snap *Snapshot) {
			snap.Caches = append(snap.Caches, CacheLayer{
				Kind:   "redis",
				Active: strings.Contains(result.Stdout, "PONG"),
			})
		},
	},
	{
		name:    "memcached",
		command: "pgrep -x memcached",
		apply: func(result *sshexec.RunResult, snap *Snapshot) {
			snap.Caches = append(snap.Caches, CacheLayer{Kind: "memcached", Active: true})
		},
	},
}

var siteProbes = []siteProbe{
	{
		name:     "wp-version",
		template: "wp core version --path={{path}} --allow-root",
		apply: func(result *sshexec.RunResult, wp *WordPress) {
			wp.Version = strings.TrimSpace(result.Stdout)
		},
	},
	{
		name:     "wp-multisite",
		template: "wp core is-installed --network --path={{path}} --allow-root",
		apply: func(result *sshexec.RunResult, wp *WordPress) {
			wp.Multisite = true
		},
	},
	{
		name:     "wp-db-name",
		template: "wp config get DB_NAME --path={{path}} --allow-root",
		apply: func(result *sshexec.RunResult, wp *WordPress) {
			wp.DatabaseName = strings.TrimSpace(result.Stdout)
		},
	},
}
