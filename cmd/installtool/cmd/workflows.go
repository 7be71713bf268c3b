package cmd

import (
	"github.com/spf13/cobra"

	"github.com/oshokin/installtool/internal/domain/release"
	"github.com/oshokin/installtool/internal/service/installer"
)

var (
	// hostNames restricts deploy to these hosts.
	hostNames []string
	// assumeYes skips the final pack list confirmation.
	assumeYes bool
	// passwordFile replaces interactive password prompts.
	passwordFile string

	// classifyCmd prints the pack list for the discovered packages.
	classifyCmd = &cobra.Command{
		Use:   "classify",
		Short: "Assign discovered packages to hosts and print the pack list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext()
			defer stop()

			_, err := installer.Classify(ctx, baseOptions(cmd))

			return err
		},
	}

	// verifyCmd checks discovered packages against the manifest.
	verifyCmd = &cobra.Command{
		Use:   "verify",
		Short: "Check every discovered package against the MD5 manifest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext()
			defer stop()

			_, err := installer.Verify(ctx, baseOptions(cmd))

			return err
		},
	}

	// deployCmd runs the full verify, classify and deploy sequence.
	deployCmd = &cobra.Command{
		Use:   "deploy",
		Short: "Verify, classify, upload and install packages on every host",
		Long: `Verifies every discovered package, shows the pack list and then deploys
the hosts one at a time in RCC, DCC, BCC order. Nothing is sent to any host
unless every package matches the manifest. When a host fails you are asked
whether to continue with the remaining hosts.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			hosts := make([]release.HostID, 0, len(hostNames))

			for _, name := range hostNames {
				id, err := release.ParseHostID(name)
				if err != nil {
					return err
				}

				hosts = append(hosts, id)
			}

			ctx, stop := signalContext()
			defer stop()

			options := baseOptions(cmd)
			options.Hosts = hosts
			options.AssumeYes = assumeYes
			options.PasswordFile = passwordFile

			_, err := installer.Deploy(ctx, options)

			return err
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	deployCmd.Flags().StringSliceVar(&hostNames, "host", nil, "deploy only to these hosts (RCC, DCC, BCC)")
	deployCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "skip the final pack list confirmation")
	deployCmd.Flags().StringVar(&passwordFile, "password-file", "", "read host passwords from this file")
}
