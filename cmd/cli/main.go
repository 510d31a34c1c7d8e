package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/nimasrn/statement-ledger/internal/config"
	"github.com/nimasrn/statement-ledger/internal/ledgercsv"
	"github.com/nimasrn/statement-ledger/internal/matcher"
	"github.com/nimasrn/statement-ledger/internal/model"
	"github.com/nimasrn/statement-ledger/internal/repository"
	"github.com/nimasrn/statement-ledger/internal/services"
	"github.com/nimasrn/statement-ledger/pkg/logger"
	"github.com/nimasrn/statement-ledger/pkg/pg"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	defer logger.Sync()
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var envPath string
	rootCmd := &cobra.Command{
		Use:     "ledger",
		Short:   "Statement ledger maintenance tools",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.Load(envPath)
		},
	}
	rootCmd.PersistentFlags().StringVar(&envPath, "env", "", "path to a .env file")

	rootCmd.AddCommand(newMigrateCommand(), newSweepCommand(), newCheckFileCommand())
	return rootCmd
}

func newMigrateCommand() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return pg.Migrate(config.Get().PostgresWrite(), dir)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "./migrations", "migrations directory")
	return cmd
}

func newSweepCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep-batches",
		Short: "Delete expired import batches; their transactions are kept",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := connect()
			if err != nil {
				return err
			}
			n, err := repository.NewImportBatchRepository(db).DeleteExpired(cmd.Context(), time.Now())
			if err != nil {
				return err
			}
			logger.Info("expired import batches removed", "count", n)
			return nil
		},
	}
}

type checkFileReport struct {
	File       string                   `json:"file"`
	Candidates int                      `json:"candidates"`
	Check      *model.CheckImportResult `json:"check"`
	Commit     *model.CommitResult      `json:"commit,omitempty"`
}

func newCheckFileCommand() *cobra.Command {
	var (
		userID   string
		doCommit bool
	)
	cmd := &cobra.Command{
		Use:   "check-file <statement.csv>",
		Short: "Parse a generic CSV statement and report likely duplicates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			candidates, err := ledgercsv.ReadGeneric(f)
			if err != nil {
				return err
			}

			db, err := connect()
			if err != nil {
				return err
			}
			transactions := repository.NewTransactionRepository(db)
			svc := services.NewImportService(transactions, repository.NewCategoryRepository(db),
				repository.NewImportBatchRepository(db), matcher.New(transactions, config.Get().DuplicateCheckWorkers),
				config.Get().ImportRetention)

			report := checkFileReport{File: args[0], Candidates: len(candidates)}
			if report.Check, err = svc.CheckImport(cmd.Context(), userID, candidates); err != nil {
				return err
			}
			if doCommit {
				if report.Commit, err = commitClean(cmd.Context(), svc, userID, args[0], candidates, report.Check); err != nil {
					return err
				}
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "owner of the statement")
	cmd.Flags().BoolVar(&doCommit, "commit", false, "import every candidate not flagged as a duplicate")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func commitClean(ctx context.Context, svc *services.ImportService, userID, path string, candidates []model.ImportTransaction, check *model.CheckImportResult) (*model.CommitResult, error) {
	flagged := make(map[int]bool, len(check.Duplicates))
	for _, d := range check.Duplicates {
		flagged[d.Index] = true
	}
	var selected []int
	for i := range candidates {
		if !flagged[i] {
			selected = append(selected, i)
		}
	}
	if len(selected) == 0 {
		logger.Info("nothing to import, every candidate was flagged", "file", path)
		return nil, nil
	}
	return svc.CommitImport(ctx, model.CommitImportRequest{
		UserID:          userID,
		Transactions:    candidates,
		SelectedIndices: selected,
		BatchInfo: &model.BatchInfo{
			Filename: filepath.Base(path),
			FileType: "csv",
			ParserID: ledgercsv.ParserID,
		},
	}, "")
}

func connect() (*pg.DB, error) {
	cfg := config.Get()
	db, err := pg.CreateReadWrite(cfg.PostgresRead(), cfg.PostgresWrite(), false)
	if err != nil {
		return nil, fmt.Errorf("connecting to pg: %w", err)
	}
	return db, nil
}
