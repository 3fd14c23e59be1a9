package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/systmms/acctexport/internal/archive"
	"github.com/systmms/acctexport/internal/config"
	dserrors "github.com/systmms/acctexport/internal/errors"
	"github.com/systmms/acctexport/internal/exporter"
	"github.com/systmms/acctexport/internal/logging"
	"github.com/systmms/acctexport/internal/metrics"
	"github.com/systmms/acctexport/internal/providers"
	"github.com/systmms/acctexport/internal/vault"
	"github.com/systmms/acctexport/pkg/provider"
)

// Options configures one export run.
type Options struct {
	Env    config.Env
	Dir    string // the output file is written here
	Stdout io.Writer
	Stderr io.Writer

	// Registry overrides the secret store types. Nil means the built-in set.
	Registry *providers.Registry
}

func (o Options) logger() *logging.Logger {
	if o.Stderr == nil || o.Stderr == os.Stderr {
		return logging.New(o.Env.Debug, o.Env.NoColor)
	}
	return logging.NewWithWriter(o.Stderr, o.Env.Debug, o.Env.NoColor)
}

// Export loads the settings, opens the account store and writes the
// Bitwarden CSV file into o.Dir.
func Export(ctx context.Context, o Options) (err error) {
	logger := o.logger()
	stdout := o.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	run := metrics.NewRun()

	cfg := &config.Config{Path: o.Env.SettingsPath(), Logger: logger}
	if err := cfg.Load(); err != nil {
		return err
	}
	settings := cfg.Settings
	logger.Debug("Using settings file %s", cfg.Path)

	if settings.LogFile != "" {
		logPath := settings.ResolvePath(settings.LogFile)
		runID, aerr := logger.AttachFile(logPath, settings.EncryptionRecipients, settings.LogFileMask.Mode())
		if aerr != nil {
			return dserrors.UserError{
				Message:    "Failed to open log file",
				Details:    aerr.Error(),
				Suggestion: "Check log_file and encryption_recipients in the settings file",
				Err:        aerr,
			}
		}
		defer func() {
			if cerr := logger.Close(); cerr != nil && err == nil {
				err = &dserrors.IOError{Op: "close", Path: logPath, Err: cerr}
			}
		}()
		logger.Debug("Run %s logging to %s", runID, logPath)
	}

	var stats exporter.Stats
	if settings.MetricsFile != "" {
		defer func() {
			run.Record(metrics.Result{
				AccountsScanned: stats.Scanned,
				RowsWritten:     stats.Written,
				Warnings:        stats.Warnings,
				Err:             err,
			})
			path := settings.ResolvePath(settings.MetricsFile)
			if werr := run.WriteTextfile(path); werr != nil {
				logger.Warn("Failed to write metrics file %s: %v", path, werr)
			}
		}()
	}

	var opts []vault.Option
	if o.Registry != nil {
		opts = append(opts, vault.WithRegistry(o.Registry))
	}
	store, err := vault.Open(ctx, settings, logger, opts...)
	if err != nil {
		return interrupted(err)
	}
	defer store.Close()

	if logger.DebugEnabled() {
		r := store.Resolver()
		for _, name := range r.StoreNames() {
			if verr := r.ValidateStore(ctx, name); verr != nil {
				logger.Debug("Secret store %s failed validation: %v", name, verr)
			} else {
				logger.Debug("Secret store %s is ready", name)
			}
		}
		derr := store.DescribeSecrets(ctx, func(acct *vault.Account, name string, meta provider.Metadata, err error) {
			switch {
			case err != nil:
				logger.Debug("%s (%s): secret %s cannot be checked: %v", acct.Name(), acct.File(), name, err)
			case !meta.Exists:
				logger.Debug("%s (%s): secret %s does not exist", acct.Name(), acct.File(), name)
			}
		})
		if derr != nil {
			return interrupted(derr)
		}
	}

	output := filepath.Join(o.Dir, exporter.DefaultOutput)
	exp := exporter.New(store.Resolve, logger)
	n, err := exp.Export(ctx, store.Accounts(ctx), output)
	stats = exp.Stats()
	if err != nil {
		logger.Debug("Export stopped after %d accounts, %d rows written", stats.Scanned, stats.Written)
		return interrupted(err)
	}

	if settings.ArchiveFile != "" {
		path := settings.ResolvePath(settings.ArchiveFile)
		data, serr := store.Snapshot(ctx, time.Now())
		if serr != nil {
			return interrupted(serr)
		}
		if werr := archive.Write(path, settings.ResolvePath(settings.PreviousArchiveFile), settings.EncryptionRecipients, data); werr != nil {
			return werr
		}
		logger.Debug("Wrote archive %s", path)
	}

	fmt.Fprintf(stdout, "Exported %d accounts to %s\n", n, output)
	fmt.Fprintf(stdout, "%s holds plaintext passwords. Delete it once Bitwarden has imported it.\n", exporter.DefaultOutput)
	return nil
}

func interrupted(err error) error {
	if errors.Is(err, context.Canceled) {
		return dserrors.ErrInterrupted
	}
	return err
}
