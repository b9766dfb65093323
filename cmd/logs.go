package cmd

import (
	"context"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/spf13/cobra"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/utils/ptr"

	"github.com/giantswarm/kubewire/internal/k8s"
)

func newLogsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs POD",
		Short: "Print or follow the logs of a pod",
		Long: `Prints the log of one container of a pod. With --all-containers every
container is read concurrently and each line is prefixed with
"[container] ". With -f the log is followed until interrupted.`,
		Example: `  kubewire logs web-0 --tail 100
  kubewire logs web-0 -c sidecar -f --timestamps
  kubewire logs web-0 --all-containers --since 10m`,
		Args: cobra.ExactArgs(1),
		RunE: runLogs,
	}

	cmd.Flags().StringP("container", "c", "", "Container name (default: the pod's only container)")
	cmd.Flags().BoolP("follow", "f", false, "Keep the stream open and print new lines")
	cmd.Flags().Bool("previous", false, "Print the log of the previous container instance")
	cmd.Flags().Duration("since", 0, "Only lines newer than this duration, e.g. 5m")
	cmd.Flags().Int64("tail", -1, "Number of most recent lines to print (-1 for all)")
	cmd.Flags().Int64("limit-bytes", 0, "Maximum bytes of log to return (0 for no limit)")
	cmd.Flags().Bool("timestamps", false, "Prefix each line with its RFC3339 timestamp")
	cmd.Flags().Bool("all-containers", false, "Print the logs of every container in the pod")
	cmd.Flags().String("probe-addr", "", "Serve /healthz, /readyz and /metrics on this address while following")

	return cmd
}

// logOptions builds the request options shared by every container.
func logOptions(s *session) k8s.LogOptions {
	opts := k8s.LogOptions{
		Follow:     s.config.GetBool("follow"),
		Previous:   s.config.GetBool("previous"),
		Timestamps: s.config.GetBool("timestamps"),
	}
	if since := s.config.GetDuration("since"); since > 0 {
		opts.SinceSeconds = ptr.To(int64(math.Ceil(since.Seconds())))
	}
	if tail := s.config.GetInt64("tail"); tail >= 0 {
		opts.TailLines = ptr.To(tail)
	}
	if limit := s.config.GetInt64("limit-bytes"); limit > 0 {
		opts.LimitBytes = ptr.To(limit)
	}
	return opts
}

func runLogs(cmd *cobra.Command, args []string) error {
	pod := args[0]

	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	opts := logOptions(s)
	ctx := cmd.Context()

	if !s.config.GetBool("all-containers") {
		opts.Container = s.config.GetString("container")
		if !opts.Follow {
			text, err := k8s.GetLogs(ctx, s.client, pod, s.namespace(), opts)
			if err != nil {
				return err
			}
			_, err = io.WriteString(s.out, text)
			return err
		}
		out := &lockedWriter{w: s.out}
		return runStreams(ctx, s, s.config.GetString("probe-addr"), []streamFunc{
			func(ctx context.Context) error {
				return streamContainerLogs(ctx, s, pod, opts, "", out)
			},
		})
	}

	containers, err := podContainers(ctx, s, pod)
	if err != nil {
		return err
	}

	out := &lockedWriter{w: s.out}
	fns := make([]streamFunc, 0, len(containers))
	for _, name := range containers {
		containerOpts := opts
		containerOpts.Container = name
		prefix := fmt.Sprintf("[%s] ", name)
		fns = append(fns, func(ctx context.Context) error {
			return streamContainerLogs(ctx, s, pod, containerOpts, prefix, out)
		})
	}

	probeAddr := ""
	if opts.Follow {
		probeAddr = s.config.GetString("probe-addr")
	}
	return runStreams(ctx, s, probeAddr, fns)
}

// podContainers returns the init and regular container names of a pod.
func podContainers(ctx context.Context, s *session, name string) ([]string, error) {
	pod, err := k8s.Get[corev1.Pod](ctx, s.client, k8s.Pods, s.namespace(), name)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(pod.Spec.InitContainers)+len(pod.Spec.Containers))
	for _, c := range pod.Spec.InitContainers {
		names = append(names, c.Name)
	}
	for _, c := range pod.Spec.Containers {
		names = append(names, c.Name)
	}
	if len(names) == 0 {
		return nil, &k8s.ConfigError{Field: "pod", Reason: fmt.Sprintf("pod %q has no containers", name)}
	}
	return names, nil
}

func streamContainerLogs(ctx context.Context, s *session, pod string, opts k8s.LogOptions, prefix string, out *lockedWriter) error {
	start := time.Now()
	stream, err := k8s.StreamLogs(ctx, s.client, pod, s.namespace(), opts)
	if err != nil {
		return err
	}
	defer stream.Stop()

	for line := range stream.Items() {
		if err := out.Println(prefix + line); err != nil {
			return err
		}
	}

	s.logger.Debug("Log stream ended",
		"container", opts.Container,
		"state", stream.State().String(),
		"elapsed", time.Since(start))
	return stream.Err()
}
