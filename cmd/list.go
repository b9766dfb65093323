package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/giantswarm/kubewire/internal/k8s"
)

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list RESOURCE",
		Short: "List objects of one resource type",
		Long: `Lists objects in the namespace (or all namespaces with -A). Without
--all-pages only the first page is printed when --limit is set.`,
		Example: `  kubewire list pods -l app=web
  kubewire list deployments -A --limit 100 --all-pages -o json`,
		Args: cobra.ExactArgs(1),
		RunE: runList,
	}

	cmd.Flags().StringP("selector", "l", "", "Label selector")
	cmd.Flags().String("field-selector", "", "Field selector")
	cmd.Flags().BoolP("all-namespaces", "A", false, "List across all namespaces")
	cmd.Flags().Int64("limit", 0, "Page size (0 lets the server decide)")
	cmd.Flags().Bool("all-pages", false, "Follow continue tokens until the list is exhausted")

	return cmd
}

func runList(cmd *cobra.Command, args []string) error {
	res, err := lookupResource(args[0])
	if err != nil {
		return err
	}

	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	opts := k8s.ListOptions{
		LabelSelector: s.config.GetString("selector"),
		FieldSelector: s.config.GetString("field-selector"),
		AllNamespaces: s.config.GetBool("all-namespaces"),
		Limit:         s.config.GetInt64("limit"),
	}

	var items []unstructured.Unstructured
	if s.config.GetBool("all-pages") {
		items, err = k8s.ListAll[unstructured.Unstructured](cmd.Context(), s.client, res, s.namespace(), opts)
	} else {
		var list *k8s.ObjectList[unstructured.Unstructured]
		list, err = k8s.List[unstructured.Unstructured](cmd.Context(), s.client, res, s.namespace(), opts)
		if list != nil {
			items = list.Items
			if list.Continue != "" {
				s.logger.Info("More items available, use --all-pages to fetch them")
			}
		}
	}
	if err != nil {
		return err
	}

	format := s.output(outputName)
	if format == outputJSON {
		objs := make([]map[string]any, 0, len(items))
		for i := range items {
			objs = append(objs, items[i].Object)
		}
		return printJSON(s.out, s.processor().ProcessList(res.Kind, objs))
	}
	for i := range items {
		if _, err := fmt.Fprintln(s.out, objectName(res, &items[i])); err != nil {
			return err
		}
	}
	return nil
}
