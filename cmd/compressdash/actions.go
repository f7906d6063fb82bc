package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dharsanguruparan/compressdash/internal/model"
	"github.com/dharsanguruparan/compressdash/internal/syncctl"
	"github.com/dharsanguruparan/compressdash/internal/view"
)

func newJobsCmd(opts *rootOptions) *cobra.Command {
	var (
		status string
		page   int
	)
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Print one page of jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := model.ParseFilter(status)
			if err != nil {
				return err
			}
			sess, err := opts.newSession(filter)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if err := sess.ctrl.Start(ctx); err != nil {
				return err
			}
			defer sess.ctrl.Stop()
			snap, err := awaitLoaded(ctx, sess.store)
			if err != nil {
				return err
			}
			if page > 1 {
				if err := sess.ctrl.SetPage(page); err != nil {
					return err
				}
				snap = sess.store.Snapshot()
			}
			fmt.Fprint(cmd.OutOrStdout(), renderDashboard(view.Build(snap)))
			if snap.Err != "" {
				return errors.New(snap.Err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Filter by status: pending, processing, completed, failed")
	cmd.Flags().IntVar(&page, "page", 1, "Page to print")
	return cmd
}

func newUploadCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file>...",
		Short: "Upload images for compression",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, closeFiles, err := openImages(args)
			if err != nil {
				return err
			}
			defer closeFiles()
			sess, err := opts.newSession(model.FilterAll)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if err := sess.ctrl.Start(ctx); err != nil {
				return err
			}
			defer sess.ctrl.Stop()
			if _, err := awaitLoaded(ctx, sess.store); err != nil {
				return err
			}
			if err := sess.ctrl.Upload(ctx, files); err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), renderDashboard(view.Build(sess.store.Snapshot())))
			return nil
		},
	}
}

func newRetryCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <id>",
		Short: "Retry a failed job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			sess, err := opts.newSession(model.FilterAll)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if err := sess.ctrl.Start(ctx); err != nil {
				return err
			}
			defer sess.ctrl.Stop()
			if err := sess.ctrl.Retry(ctx, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Job #%d queued for retry.\n", id)
			return nil
		},
	}
}

func newDownloadCmd(opts *rootOptions) *cobra.Command {
	var (
		dir   string
		useS3 bool
	)
	cmd := &cobra.Command{
		Use:   "download <id>",
		Short: "Download a completed job's compressed image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			sess, err := opts.newSession(model.FilterAll)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			sink, err := buildSink(ctx, sess.cfg, dir, useS3)
			if err != nil {
				return err
			}
			if err := sess.ctrl.Start(ctx); err != nil {
				return err
			}
			defer sess.ctrl.Stop()
			snap, err := awaitLoaded(ctx, sess.store)
			if err != nil {
				return err
			}
			if snap.Err != "" {
				return errors.New(snap.Err)
			}
			job, ok := sess.ctrl.Lookup(id)
			if !ok {
				return fmt.Errorf("job #%d not found", id)
			}
			loc, err := sess.ctrl.Download(ctx, job, sink)
			if errors.Is(err, syncctl.ErrNotDownloadable) {
				return fmt.Errorf("job #%d is %s and has nothing to download", id, view.StatusLabel(job.Status))
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), loc)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "Target directory (env COMPRESSDASH_DOWNLOAD_DIR)")
	cmd.Flags().BoolVar(&useS3, "s3", false, "Store the image in the configured S3 bucket instead")
	return cmd
}
