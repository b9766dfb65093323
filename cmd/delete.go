package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/giantswarm/kubewire/internal/k8s"
)

func newDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete RESOURCE NAME",
		Short: "Delete a single object",
		Example: `  kubewire delete pod web-0
  kubewire delete deploy api --cascade foreground --grace-period 0`,
		Args: cobra.ExactArgs(2),
		RunE: runDelete,
	}

	cmd.Flags().Int64("grace-period", k8s.DefaultGracePeriodSeconds, "Seconds the object has to terminate gracefully")
	cmd.Flags().String("cascade", "", "Propagation policy for dependents: background, foreground or orphan")

	return cmd
}

// propagationPolicy maps a --cascade value to the API's policy name.
// Empty leaves the choice to the server.
func propagationPolicy(cascade string) (*metav1.DeletionPropagation, error) {
	if cascade == "" {
		return nil, nil
	}
	policy := metav1.DeletionPropagation(cases.Title(language.English).String(strings.ToLower(cascade)))
	switch policy {
	case metav1.DeletePropagationBackground, metav1.DeletePropagationForeground, metav1.DeletePropagationOrphan:
		return &policy, nil
	default:
		return nil, &k8s.ConfigError{Field: "cascade", Reason: fmt.Sprintf("unknown propagation policy %q", cascade)}
	}
}

func runDelete(cmd *cobra.Command, args []string) error {
	res, err := lookupResource(args[0])
	if err != nil {
		return err
	}

	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	policy, err := propagationPolicy(s.config.GetString("cascade"))
	if err != nil {
		return err
	}
	grace := s.config.GetInt64("grace-period")

	status, err := k8s.Delete(cmd.Context(), s.client, res, s.namespace(), args[1], k8s.DeleteOptions{
		GracePeriodSeconds: &grace,
		PropagationPolicy:  policy,
	})
	if err != nil {
		return err
	}

	if s.output(outputName) == outputJSON {
		return printJSON(s.out, status)
	}
	_, err = fmt.Fprintf(s.out, "%s/%s deleted\n", qualifiedKind(res, res.Kind), args[1])
	return err
}
