package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/giantswarm/kubewire/internal/k8s"
)

// rootCmd represents the base command for the kubewire application.
// It is assigned in init because subcommands read rootCmd.Version at run
// time, which a package-level initializer would turn into a cycle.
var rootCmd *cobra.Command

func init() {
	rootCmd = newRootCmd()
}

// newRootCmd builds the full command tree. Tests build their own tree so
// flag state does not leak between runs.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kubewire",
		Short: "Typed Kubernetes API client with streaming",
		Long: `kubewire talks to a Kubernetes API server directly over REST. It reads
objects, lists and deletes them, streams watch events and follows pod logs.

Connection settings default to the in-cluster service account. Every global
flag can also be set through a KUBEWIRE_ environment variable, for example
KUBEWIRE_SERVER or KUBEWIRE_CA_FILE.`,
		// SilenceUsage prevents Cobra from printing the usage message on errors that are handled by the application.
		SilenceUsage: true,
		// Execute prints errors itself, with their kind.
		SilenceErrors: true,
	}

	// SetVersionTemplate defines a custom template for displaying the version.
	// This is used when the --version flag is invoked.
	cmd.SetVersionTemplate(`{{printf "kubewire version %s\n" .Version}}`)

	addGlobalFlags(cmd.PersistentFlags())

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newSelfUpdateCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newDeleteCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newWhoamiCmd())

	return cmd
}

// SetVersion sets the version for the root command.
// This function is typically called from the main package to inject the application version at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

func currentVersion() string {
	if rootCmd.Version == "" {
		return "dev"
	}
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
// This function is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, formatError(err))
		os.Exit(1)
	}
}

// formatError prefixes err with its kind so scripts can tell a missing
// object from a bad token.
func formatError(err error) string {
	return fmt.Sprintf("Error (%s): %v", k8s.KindOf(err), err)
}
