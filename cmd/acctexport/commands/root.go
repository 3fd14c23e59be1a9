package commands

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/systmms/acctexport/internal/config"
	"github.com/systmms/acctexport/internal/exporter"
)

// NewRootCommand builds the acctexport command. It takes no arguments and
// no flags beyond --help and --version; settings come from the settings
// file and ACCTEXPORT_* environment variables.
func NewRootCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "acctexport",
		Short: "Export accounts to a Bitwarden import file",
		Long: `acctexport reads the configured account files, resolves the fields listed
under each account's "` + exporter.ExportField + `" key, and writes ` + exporter.DefaultOutput + `
in the current directory for import into Bitwarden.

The file holds plaintext secrets. Import it and delete it.

Environment:
  ACCTEXPORT_CONFIG    settings file (default ` + config.DefaultPath() + `)
  ACCTEXPORT_DEBUG     print debug messages
  ACCTEXPORT_NO_COLOR  disable colored output`,
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := config.LoadEnv()
			if err != nil {
				return err
			}
			dir, err := os.Getwd()
			if err != nil {
				return err
			}
			return Export(cmd.Context(), Options{
				Env:    env,
				Dir:    dir,
				Stdout: cmd.OutOrStdout(),
				Stderr: cmd.ErrOrStderr(),
			})
		},
	}
}
