package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/giantswarm/kubewire/internal/k8s"
	"github.com/giantswarm/kubewire/internal/logging"
)

// whoamiInfo is the resolved connection as printed by whoami.
type whoamiInfo struct {
	Server        string `json:"server"`
	Namespace     string `json:"namespace"`
	TrustSource   string `json:"trustSource"`
	CAFile        string `json:"caFile,omitempty"`
	Token         string `json:"token"`
	ServerVersion string `json:"serverVersion"`
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the resolved connection settings",
		Long: `Resolves the endpoint, credentials, namespace and trust the other
commands would use, then asks the API server for its version to confirm they
work. The bearer token is never printed, only its length.`,
		Args: cobra.NoArgs,
		RunE: runWhoami,
	}
}

func runWhoami(cmd *cobra.Command, _ []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	conn, err := s.client.Connection(ctx)
	if err != nil {
		return err
	}
	info, err := k8s.ServerVersion(ctx, s.client)
	if err != nil {
		return err
	}

	who := whoamiInfo{
		Server:        conn.BaseURL,
		Namespace:     conn.Namespace,
		TrustSource:   conn.Trust.Source,
		CAFile:        conn.Trust.CAFile,
		Token:         logging.SanitizeToken(conn.BearerToken),
		ServerVersion: info.GitVersion,
	}

	if s.output(outputName) == outputJSON {
		return printJSON(s.out, who)
	}

	tw := tabwriter.NewWriter(s.out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "Server:\t%s\n", who.Server)
	_, _ = fmt.Fprintf(tw, "Namespace:\t%s\n", who.Namespace)
	if who.CAFile != "" {
		_, _ = fmt.Fprintf(tw, "Trust:\t%s (%s)\n", who.TrustSource, who.CAFile)
	} else {
		_, _ = fmt.Fprintf(tw, "Trust:\t%s\n", who.TrustSource)
	}
	_, _ = fmt.Fprintf(tw, "Token:\t%s\n", who.Token)
	_, _ = fmt.Fprintf(tw, "Server version:\t%s\n", who.ServerVersion)
	return tw.Flush()
}
