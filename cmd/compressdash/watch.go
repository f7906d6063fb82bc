package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dharsanguruparan/compressdash/internal/artifact"
	"github.com/dharsanguruparan/compressdash/internal/events"
	"github.com/dharsanguruparan/compressdash/internal/model"
	"github.com/dharsanguruparan/compressdash/internal/storage"
	"github.com/dharsanguruparan/compressdash/internal/syncctl"
	"github.com/dharsanguruparan/compressdash/internal/view"
)

const clearScreen = "\033[H\033[2J"

var errQuit = errors.New("quit")

func newWatchCmd(opts *rootOptions) *cobra.Command {
	var (
		status string
		dir    string
		useS3  bool
		plain  bool
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Interactive job dashboard",
		Long: `watch renders the job table and keeps it current through background polling
(and live events when --events-url is set). Type commands at the prompt; "help"
lists them.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := model.ParseFilter(status)
			if err != nil {
				return err
			}
			sess, err := opts.newSession(filter)
			if err != nil {
				return err
			}
			sink, err := buildSink(cmd.Context(), sess.cfg, dir, useS3)
			if err != nil {
				return err
			}
			scr := &screen{out: cmd.OutOrStdout(), store: sess.store, clear: !plain}
			return runWatch(cmd.Context(), sess, sink, scr, cmd.InOrStdin())
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Initial status filter")
	cmd.Flags().StringVar(&dir, "dir", "", "Download directory (env COMPRESSDASH_DOWNLOAD_DIR)")
	cmd.Flags().BoolVar(&useS3, "s3", false, "Store downloads in the configured S3 bucket")
	cmd.Flags().BoolVar(&plain, "plain", false, "Do not clear the screen between frames")
	return cmd
}

func runWatch(ctx context.Context, sess *session, sink artifact.Sink, scr *screen, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := sess.ctrl.Start(ctx); err != nil {
		return err
	}
	defer sess.ctrl.Stop()

	// The stdin reader cannot be interrupted, so it lives outside the group
	// and simply stops being read once the group exits.
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return renderLoop(gctx, sess.store, scr)
	})
	if sess.cfg.EventsURL != "" {
		listener := events.NewListener(sess.cfg.EventsURL, sess.ctrl,
			events.WithLogger(sess.logger.With("component", "events")))
		g.Go(func() error {
			return listener.Run(gctx)
		})
	}
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case line, ok := <-lines:
				if !ok {
					return errQuit
				}
				if err := handleLine(gctx, g, sess, sink, scr, line); err != nil {
					return err
				}
			}
		}
	})

	err := g.Wait()
	if errors.Is(err, errQuit) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func renderLoop(ctx context.Context, store *storage.JobStore, scr *screen) error {
	ch, unsubscribe := store.Subscribe()
	defer unsubscribe()
	scr.draw()
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-ch:
			if !ok {
				return nil
			}
			scr.draw()
		}
	}
}

// handleLine runs one prompt command. Network actions run in the group so the
// prompt stays responsive; their failures are shown, never fatal.
func handleLine(ctx context.Context, g *errgroup.Group, sess *session, sink artifact.Sink, scr *screen, line string) error {
	cmd, err := parseCommand(line)
	if errors.Is(err, errEmptyCommand) {
		scr.draw()
		return nil
	}
	if err != nil {
		scr.setFlash(err.Error(), true)
		return nil
	}
	ctrl := sess.ctrl
	async := func(fn func() (string, error)) {
		g.Go(func() error {
			msg, err := fn()
			switch {
			case errors.Is(err, syncctl.ErrStopped), errors.Is(err, context.Canceled):
			case err != nil:
				scr.setFlash(syncctl.Message(err, err.Error()), true)
			case msg != "":
				scr.setFlash(msg, false)
			}
			return nil
		})
	}

	switch cmd.kind {
	case cmdQuit:
		return errQuit
	case cmdHelp:
		scr.setFlash(helpText, false)
	case cmdNext:
		return ignoreStopped(ctrl.NextPage())
	case cmdPrev:
		return ignoreStopped(ctrl.PrevPage())
	case cmdGoto:
		return ignoreStopped(ctrl.SetPage(cmd.page))
	case cmdFilter:
		async(func() (string, error) { return "", ctrl.SetFilter(ctx, cmd.filter) })
	case cmdRefresh:
		async(func() (string, error) { return "", ctrl.Refresh(ctx) })
	case cmdRetry:
		async(func() (string, error) {
			if err := ctrl.Retry(ctx, cmd.id); err != nil {
				return "", err
			}
			return fmt.Sprintf("Job #%d queued for retry.", cmd.id), nil
		})
	case cmdDownload:
		job, ok := ctrl.Lookup(cmd.id)
		if !ok {
			scr.setFlash(fmt.Sprintf("Job #%d is not in the current list.", cmd.id), true)
			return nil
		}
		async(func() (string, error) {
			loc, err := ctrl.Download(ctx, job, sink)
			if errors.Is(err, syncctl.ErrNotDownloadable) {
				return "", fmt.Errorf("job #%d has nothing to download yet", job.ID)
			}
			if err != nil {
				return "", err
			}
			return "Saved " + loc, nil
		})
	case cmdDetails:
		job, ok := ctrl.Lookup(cmd.id)
		if !ok {
			scr.setFlash(fmt.Sprintf("Job #%d is not in the current list.", cmd.id), true)
			return nil
		}
		scr.setFlash(renderDetails(job, time.Now()), false)
	case cmdUpload:
		files, closeFiles, err := openImages(cmd.paths)
		if err != nil {
			scr.setFlash(err.Error(), true)
			return nil
		}
		async(func() (string, error) {
			defer closeFiles()
			if err := ctrl.Upload(ctx, files); err != nil {
				return "", err
			}
			return "Upload complete.", nil
		})
	}
	return nil
}

func ignoreStopped(err error) error {
	if errors.Is(err, syncctl.ErrStopped) {
		return nil
	}
	return err
}

// screen serializes frame drawing between the render loop and command
// feedback.
type screen struct {
	mu       sync.Mutex
	out      io.Writer
	store    *storage.JobStore
	clear    bool
	flash    string
	flashErr bool
}

func (s *screen) setFlash(msg string, isErr bool) {
	s.mu.Lock()
	s.flash, s.flashErr = msg, isErr
	s.mu.Unlock()
	s.draw()
}

func (s *screen) draw() {
	s.mu.Lock()
	defer s.mu.Unlock()
	frame := renderDashboard(view.Build(s.store.Snapshot()))
	if s.flash != "" {
		style := flashStyle
		if s.flashErr {
			style = failedStyle
		}
		frame += "\n" + style.Render(s.flash) + "\n"
	}
	if s.clear {
		frame = clearScreen + frame
	}
	fmt.Fprint(s.out, frame+"\n> ")
}
