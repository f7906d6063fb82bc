package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dharsanguruparan/compressdash/internal/artifact"
	"github.com/dharsanguruparan/compressdash/internal/config"
	"github.com/dharsanguruparan/compressdash/internal/jobapi"
	"github.com/dharsanguruparan/compressdash/internal/model"
	"github.com/dharsanguruparan/compressdash/internal/storage"
	"github.com/dharsanguruparan/compressdash/internal/syncctl"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

// rootOptions holds the persistent flags. Zero values mean "use the
// environment".
type rootOptions struct {
	apiURL        string
	pollInterval  time.Duration
	itemsPerPage  int
	timeout       time.Duration
	escalateAfter int
	eventsURL     string
	logLevel      string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "compressdash: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "compressdash",
		Short: "Terminal dashboard for the image compression service",
		Long: `compressdash keeps a live view of image compression jobs: it polls the job
service, lets you filter and page through jobs, upload images, retry failed
jobs and download compressed results.`,
		SilenceUsage: true,
	}
	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.apiURL, "api-url", "", "Job service base URL (env COMPRESSDASH_API_URL)")
	flags.DurationVar(&opts.pollInterval, "poll-interval", 0, "Background poll interval (env COMPRESSDASH_POLL_INTERVAL)")
	flags.IntVar(&opts.itemsPerPage, "items-per-page", 0, "Jobs per page (env COMPRESSDASH_ITEMS_PER_PAGE)")
	flags.DurationVar(&opts.timeout, "timeout", 0, "Per-request timeout (env COMPRESSDASH_REQUEST_TIMEOUT)")
	flags.IntVar(&opts.escalateAfter, "escalate-after", -1, "Background failures before the error banner turns prominent, 0 disables (env COMPRESSDASH_ESCALATE_AFTER)")
	flags.StringVar(&opts.eventsURL, "events-url", "", "WebSocket URL for live job updates (env COMPRESSDASH_EVENTS_URL)")
	flags.StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error (env COMPRESSDASH_LOG_LEVEL)")

	cmd.AddCommand(
		newWatchCmd(opts),
		newJobsCmd(opts),
		newUploadCmd(opts),
		newRetryCmd(opts),
		newDownloadCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// loadConfig reads the environment and applies flag overrides.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if o.apiURL != "" {
		cfg.APIURL = o.apiURL
	}
	if o.pollInterval > 0 {
		cfg.PollInterval = o.pollInterval
	}
	if o.itemsPerPage > 0 {
		cfg.ItemsPerPage = o.itemsPerPage
	}
	if o.timeout > 0 {
		cfg.RequestTimeout = o.timeout
	}
	if o.escalateAfter >= 0 {
		cfg.EscalateAfter = o.escalateAfter
	}
	if o.eventsURL != "" {
		cfg.EventsURL = o.eventsURL
	}
	if o.logLevel != "" {
		var lvl slog.Level
		if err := lvl.UnmarshalText([]byte(o.logLevel)); err != nil {
			return nil, fmt.Errorf("invalid --log-level %q", o.logLevel)
		}
		cfg.LogLevel = lvl
	}
	cfg.Normalize()
	return cfg, nil
}

// session bundles what every command needs to talk to the job service.
type session struct {
	cfg    *config.Config
	logger *slog.Logger
	client *jobapi.Client
	store  *storage.JobStore
	ctrl   *syncctl.Controller
}

func (o *rootOptions) newSession(filter model.Filter) (*session, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	client, err := jobapi.New(cfg.APIURL,
		jobapi.WithTimeout(cfg.RequestTimeout),
		jobapi.WithLogger(logger.With("component", "jobapi")),
	)
	if err != nil {
		return nil, err
	}
	store := storage.NewJobStore(cfg.ItemsPerPage)
	ctrl := syncctl.New(client, store,
		syncctl.WithInterval(cfg.PollInterval),
		syncctl.WithEscalateAfter(cfg.EscalateAfter),
		syncctl.WithFilter(filter),
		syncctl.WithLogger(logger.With("component", "syncctl")),
	)
	return &session{cfg: cfg, logger: logger, client: client, store: store, ctrl: ctrl}, nil
}

// awaitLoaded blocks until the store leaves the loading state.
func awaitLoaded(ctx context.Context, store *storage.JobStore) (storage.Snapshot, error) {
	ch, cancel := store.Subscribe()
	defer cancel()
	for {
		if snap := store.Snapshot(); !snap.Loading {
			return snap, nil
		}
		select {
		case <-ctx.Done():
			return storage.Snapshot{}, ctx.Err()
		case _, ok := <-ch:
			if !ok {
				return store.Snapshot(), syncctl.ErrStopped
			}
		}
	}
}

// buildSink picks the artifact destination: S3 when requested and
// configured, else a local directory.
func buildSink(ctx context.Context, cfg *config.Config, dir string, useS3 bool) (artifact.Sink, error) {
	if useS3 {
		if !cfg.S3.Enabled() {
			return nil, fmt.Errorf("--s3 needs COMPRESSDASH_S3_ENDPOINT and COMPRESSDASH_S3_BUCKET")
		}
		sink, err := artifact.NewS3Sink(cfg.S3)
		if err != nil {
			return nil, err
		}
		if err := sink.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return sink, nil
	}
	if dir == "" {
		dir = cfg.DownloadDir
	}
	return artifact.NewFileSink(dir)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the compressdash version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "compressdash", version)
		},
	}
}
