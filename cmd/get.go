package cmd

import (
	"github.com/spf13/cobra"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/giantswarm/kubewire/internal/k8s"
)

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get RESOURCE NAME",
		Short: "Fetch a single object",
		Long: `Fetches one object by name and prints it as JSON (or kind/name with -o name).

RESOURCE accepts plural, singular and short names, e.g. pods, pod or po.`,
		Example: `  kubewire get pod web-0
  kubewire get deploy api -n payments -o name`,
		Args: cobra.ExactArgs(2),
		RunE: runGet,
	}
}

func runGet(cmd *cobra.Command, args []string) error {
	res, err := lookupResource(args[0])
	if err != nil {
		return err
	}

	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	obj, err := k8s.Get[unstructured.Unstructured](cmd.Context(), s.client, res, s.namespace(), args[1])
	if err != nil {
		return err
	}
	return printObject(s.out, s.output(outputJSON), s.processor(), res, &obj)
}
