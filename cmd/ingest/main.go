package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/stupiduntilnot/dataingest/internal/config"
	"github.com/stupiduntilnot/dataingest/internal/ingest"
	"github.com/stupiduntilnot/dataingest/internal/ledger"
	"github.com/stupiduntilnot/dataingest/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the command line and returns the process exit status:
// 0 on success, 1 when any command fails.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := &app{}
	cmd := newRootCmd(a)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	err := cmd.ExecuteContext(ctx)
	if cerr := a.teardown(); cerr != nil {
		fmt.Fprintf(stderr, "failed to close log: %v\n", cerr)
	}
	if err != nil {
		return 1
	}
	return 0
}

// app carries state shared between the persistent hooks and subcommands.
type app struct {
	configPath string
	source     string
	dataDir    string
	testSize   float64
	seed       int64
	logFile    string
	logLevel   string
	ledgerPath string
	noLedger   bool
	limit      int

	cfg      *config.Config
	logger   *zap.Logger
	closeLog func() error
}

// newRootCmd wires the commands to a. Post-run hooks are skipped when a
// command fails, so callers also run a.teardown after Execute returns.
func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "ingest",
		Short: "Fetch a CSV dataset, clean it, and write a train/test split",
		Long: `ingest loads a CSV document from a URL or path, drops placeholder columns,
renames the label and message columns, splits the rows into train and test
subsets with a fixed ratio and seed, and writes <data-dir>/raw/train.csv and
<data-dir>/raw/test.csv.

Settings come from the YAML file given by --config, then INGEST_* environment
variables, then flags.`,
		SilenceUsage:       true,
		PersistentPreRunE:  a.setup,
		PersistentPostRunE: a.finish,
		RunE:               a.runIngest,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "ingest.yaml", "YAML config file (missing file means defaults)")
	pf.StringVar(&a.logFile, "log-file", "", "log file, appended to")
	pf.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&a.ledgerPath, "ledger", "", "SQLite run ledger path")

	f := root.Flags()
	f.StringVar(&a.source, "source", "", "CSV source URL or path")
	f.StringVar(&a.dataDir, "data-dir", "", "output base directory")
	f.Float64Var(&a.testSize, "test-size", 0, "fraction of rows reserved for the test split")
	f.Int64Var(&a.seed, "seed", 0, "random seed for the split")
	f.BoolVar(&a.noLedger, "no-ledger", false, "do not record the run in the ledger")

	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent ingestion runs from the ledger",
		Args:  cobra.NoArgs,
		RunE:  a.listRuns,
	}
	runsCmd.Flags().IntVar(&a.limit, "limit", 20, "maximum number of runs to show")

	showCmd := &cobra.Command{
		Use:   "show [run-id]",
		Short: "Show one run with its output files",
		Args:  cobra.ExactArgs(1),
		RunE:  a.showRun,
	}

	root.AddCommand(runsCmd, showCmd)
	return root
}

func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	logger, closeLog, err := logging.New(logging.Options{
		Name:    cfg.Logging.Name,
		Level:   cfg.Logging.Level,
		File:    cfg.Logging.File,
		Console: cmd.OutOrStdout(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.logger, a.closeLog = logger, closeLog
	return nil
}

func (a *app) finish(cmd *cobra.Command, args []string) error {
	return a.teardown()
}

func (a *app) teardown() error {
	if a.closeLog == nil {
		return nil
	}
	closeLog := a.closeLog
	a.closeLog = nil
	return closeLog()
}

func (a *app) applyFlags(cmd *cobra.Command, cfg *config.Config) {
	changed := func(name string) bool {
		f := cmd.Flags().Lookup(name)
		return f != nil && f.Changed
	}
	if changed("source") {
		cfg.Source.URL = a.source
	}
	if changed("data-dir") {
		cfg.Output.DataDir = a.dataDir
	}
	if changed("test-size") {
		cfg.Split.TestSize = a.testSize
	}
	if changed("seed") {
		cfg.Split.Seed = a.seed
	}
	if changed("log-file") {
		cfg.Logging.File = a.logFile
	}
	if changed("log-level") {
		cfg.Logging.Level = a.logLevel
	}
	if changed("ledger") {
		cfg.Ledger.Path = a.ledgerPath
		cfg.Ledger.Enabled = true
	}
	if changed("no-ledger") && a.noLedger {
		cfg.Ledger.Enabled = false
	}
}

func (a *app) openLedger() (*sql.DB, error) {
	db, err := ledger.Open(a.cfg.Ledger.Path)
	if err != nil {
		return nil, err
	}
	if err := ledger.InitSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init ledger schema: %w", err)
	}
	return db, nil
}

func (a *app) runIngest(cmd *cobra.Command, args []string) error {
	var db *sql.DB
	if a.cfg.Ledger.Enabled {
		var err error
		db, err = a.openLedger()
		if err != nil {
			a.logger.Warn("Run ledger unavailable, continuing without it", zap.Error(err))
		} else {
			defer db.Close()
		}
	}

	report, err := ingest.New(a.cfg, a.logger, db).Run(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "run %s: %d rows -> %s (%d), %s (%d)\n",
		report.RunID, report.InputRows,
		report.Output.Train.Path, report.TrainRows,
		report.Output.Test.Path, report.TestRows,
	)
	return nil
}

func (a *app) listRuns(cmd *cobra.Command, args []string) error {
	db, err := a.openLedger()
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := ledger.ListRuns(db, a.limit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTARTED\tSTATUS\tTRAIN\tTEST\tSOURCE")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, formatUnix(r.StartedAt), r.Status,
			nullInt(r.TrainRows), nullInt(r.TestRows), r.Source)
	}
	return w.Flush()
}

func (a *app) showRun(cmd *cobra.Command, args []string) error {
	db, err := a.openLedger()
	if err != nil {
		return err
	}
	defer db.Close()

	run, err := ledger.GetRun(db, args[0])
	if err != nil {
		return err
	}
	outs, err := ledger.ListOutputs(db, run.ID)
	if err != nil {
		return fmt.Errorf("failed to list outputs: %w", err)
	}
	printRun(cmd.OutOrStdout(), run, outs)
	return nil
}

func printRun(w io.Writer, r *ledger.Run, outs []ledger.Output) {
	fmt.Fprintf(w, "run:       %s\n", r.ID)
	fmt.Fprintf(w, "status:    %s\n", r.Status)
	fmt.Fprintf(w, "source:    %s\n", r.Source)
	fmt.Fprintf(w, "data dir:  %s\n", r.DataDir)
	fmt.Fprintf(w, "split:     test_size=%v seed=%d\n", r.TestSize, r.Seed)
	fmt.Fprintf(w, "rows:      input=%s train=%s test=%s\n", nullInt(r.InputRows), nullInt(r.TrainRows), nullInt(r.TestRows))
	fmt.Fprintf(w, "started:   %s\n", formatUnix(r.StartedAt))
	if r.FinishedAt.Valid {
		fmt.Fprintf(w, "finished:  %s\n", formatUnix(r.FinishedAt.Int64))
	}
	if r.LastError.Valid {
		fmt.Fprintf(w, "error:     %s\n", r.LastError.String)
	}
	for _, o := range outs {
		fmt.Fprintf(w, "output:    %s rows=%d bytes=%d sha256=%s\n", o.Path, o.Rows, o.Bytes, o.SHA256)
	}
}

func formatUnix(sec int64) string {
	return time.Unix(sec, 0).UTC().Format(time.RFC3339)
}

func nullInt(v sql.NullInt64) string {
	if !v.Valid {
		return "-"
	}
	return fmt.Sprintf("%d", v.Int64)
}
