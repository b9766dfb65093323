package cmd

import (
	"context"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/watch"

	"github.com/giantswarm/kubewire/internal/k8s"
	"github.com/giantswarm/kubewire/internal/logging"
	"github.com/giantswarm/kubewire/internal/output"
)

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch RESOURCE...",
		Short: "Stream change events for one or more resource types",
		Long: `Opens one watch per resource type and prints events as they arrive.
Streams run concurrently; the command ends when every stream has ended,
when one fails, or on interrupt. Streams are not re-established.

With -o json each event is printed as one JSON line in the API's watch
format. Otherwise a line such as "Added pod/web-0" is printed.`,
		Example: `  kubewire watch pods -l app=web
  kubewire watch pods deployments -A --probe-addr :9090`,
		Args: cobra.MinimumNArgs(1),
		RunE: runWatch,
	}

	cmd.Flags().StringP("selector", "l", "", "Label selector")
	cmd.Flags().String("field-selector", "", "Field selector")
	cmd.Flags().BoolP("all-namespaces", "A", false, "Watch across all namespaces")
	cmd.Flags().String("resource-version", "", "Start watching after this resource version")
	cmd.Flags().Bool("bookmarks", false, "Request BOOKMARK events")
	cmd.Flags().String("probe-addr", "", "Serve /healthz, /readyz and /metrics on this address while watching")

	return cmd
}

func runWatch(cmd *cobra.Command, args []string) error {
	resources := make([]k8s.Resource, 0, len(args))
	for _, arg := range args {
		res, err := lookupResource(arg)
		if err != nil {
			return err
		}
		resources = append(resources, res)
	}

	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	opts := k8s.WatchOptions{
		LabelSelector:   s.config.GetString("selector"),
		FieldSelector:   s.config.GetString("field-selector"),
		AllNamespaces:   s.config.GetBool("all-namespaces"),
		ResourceVersion: s.config.GetString("resource-version"),
		AllowBookmarks:  s.config.GetBool("bookmarks"),
	}
	out := &lockedWriter{w: s.out}
	format := s.output(outputName)
	processor := s.processor()

	fns := make([]streamFunc, 0, len(resources))
	for _, res := range resources {
		fns = append(fns, func(ctx context.Context) error {
			return watchResource(ctx, s, res, opts, format, processor, out)
		})
	}
	return runStreams(cmd.Context(), s, s.config.GetString("probe-addr"), fns)
}

func watchResource(ctx context.Context, s *session, res k8s.Resource, opts k8s.WatchOptions, format string, processor *output.Processor, out *lockedWriter) error {
	stream, err := k8s.Watch[unstructured.Unstructured](ctx, s.client, res, s.namespace(), opts)
	if err != nil {
		return err
	}
	defer stream.Stop()

	title := cases.Title(language.English)
	for ev := range stream.Items() {
		line, err := renderEvent(res, ev, format, processor, title)
		if err != nil {
			return err
		}
		if err := out.Println(line); err != nil {
			return err
		}
	}

	s.logger.Debug("Watch ended", logging.ResourceType(res.Plural), "state", stream.State().String())
	return stream.Err()
}

// renderEvent formats one event. ERROR events carry a Status rather than
// a resource and are printed with its message.
func renderEvent(res k8s.Resource, ev k8s.WatchEvent[unstructured.Unstructured], format string, processor *output.Processor, title cases.Caser) (string, error) {
	if format == outputJSON {
		if ev.Type != watch.Error && ev.Object.Object != nil {
			ev.Object.Object = processor.Process(res.Kind, ev.Object.Object)
		}
		data, err := k8s.EncodeWatchEvent(ev)
		if err != nil {
			return "", err
		}
		return strings.TrimSuffix(string(data), "\n"), nil
	}

	eventType := title.String(strings.ToLower(string(ev.Type)))
	if ev.Type == watch.Error {
		msg := "unknown error"
		if status := ev.ErrorStatus(); status != nil && status.Message != "" {
			msg = status.Message
		}
		return eventType + " " + msg, nil
	}
	return eventType + " " + objectName(res, &ev.Object), nil
}
