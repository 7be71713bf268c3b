package config

import "github.com/oshokin/installtool/internal/domain/release"

// Default returns a starter configuration for the standard three-host fleet.
// It is what `installtool config init` writes. The RCC is the local machine.
func Default() *Config {
	return &Config{
		Hosts: []HostConfig{
			{
				ID:       string(release.HostRCC),
				Address:  "localhost:22",
				Username: "service",
				Prefixes: []string{
					"ckct-DataHandler",
					"ckct-imaging",
					"ckct-kmod",
					"ckct-logger",
					"ckct-motorControl",
					"ckct-mscp",
					"ckct-rcc_config",
					"ckct-ReconCC",
					"ckct-recorder",
					"ckct-tools",
					"ckct-utils",
					"ckct-utils49172",
				},
			},
			{
				ID:       string(release.HostDCC),
				Address:  "192.168.5.5:22",
				Username: "service",
				Prefixes: []string{
					"ckct-dasControl",
					"ckct-dcc_config",
					"ckct-DiscCC",
					"ckct-spellmanXRayControl",
				},
			},
			{
				ID:       string(release.HostBCC),
				Address:  "192.168.6.6:22",
				Username: "service",
				Prefixes: []string{
					"ckct-BaseCC",
					"ckct-bcc_config",
				},
			},
		},
		Manifest: "md5sums.txt",
		Search: SearchConfig{
			Root:    ".",
			Pattern: DefaultPattern,
		},
		SSH: SSHConfig{
			ConnectTimeout: DefaultConnectTimeout,
			KnownHosts:     "~/.ssh/known_hosts",
		},
		InstallCommand: DefaultInstallCommand,
		StagingPrefix:  DefaultStagingPrefix,
	}
}
