package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/peterh/liner"
	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"voltest/internal/config"
	"voltest/internal/tester"
	"voltest/internal/volume"
)

var (
	errMountpointRequired = errors.New("mountpoint is required")
	errNotAMountpoint     = errors.New("not a mountpoint (use --force to test a plain directory)")
	errConflictingFiles   = errors.New("test files from a previous run exist (run 'voltest clean' first)")
	errConfirmationDenied = errors.New("aborted by user")
)

// eventBufferSize decouples the engine's I/O loop from terminal rendering.
const eventBufferSize = 64

func testCommand(app *App) *Command {
	flags := flag.NewFlagSet("test", flag.ContinueOnError)
	fileSize := flags.Int64("file-size", 0, "Max test file size in MiB (overrides config)")
	blockSize := flags.Int64("block-size", 0, "Max block size in MiB (overrides config)")
	prefix := flags.String("prefix", "", "Test file name prefix (overrides config)")
	limit := flags.Int64("limit", 0, "Test at most this many MiB instead of all available space")
	force := flags.BoolP("force", "f", false, "Allow a plain directory instead of a mountpoint")
	yes := flags.BoolP("yes", "y", false, "Skip the confirmation prompt")

	return &Command{
		Flags: flags,
		Usage: "test <mountpoint> [flags]",
		Short: "Fill the volume with a test pattern and verify it",
		Long: `Fill all available space on the volume with test files, write a pseudo-random
pattern across them, and read everything back. The volume should be empty;
a partially full filesystem cannot be tested properly.

A failed verification reports the byte offset where the device starts losing
data. All test files are removed afterwards, even when the run fails or is
canceled with Ctrl-C.`,
		Exec: func(ctx context.Context, o *IO, args []string) error {
			if len(args) == 0 {
				return errMountpointRequired
			}

			target := args[0]

			cfg := app.Config
			if *fileSize != 0 {
				cfg.FileSizeMaxMB = *fileSize
			}

			if *blockSize != 0 {
				cfg.BlockSizeMaxMB = *blockSize
			}

			if *prefix != "" {
				cfg.FilePrefix = *prefix
			}

			if err := config.Validate(cfg); err != nil {
				return err
			}

			if err := checkTarget(app, target, *force); err != nil {
				return err
			}

			conflicts, err := volume.ConflictFiles(app.FS, target, cfg.FilePrefix)
			if err != nil {
				return err
			}

			if len(conflicts) > 0 {
				return fmt.Errorf("%w: %s", errConflictingFiles, strings.Join(conflicts, ", "))
			}

			space, err := volume.Usage(target)
			if err != nil {
				return err
			}

			totalBytes := space.Available
			if *limit > 0 && *limit*tester.MiB < totalBytes {
				totalBytes = *limit * tester.MiB
			}

			if !*yes {
				if err := confirm(o, volume.Label(app.FS, target), totalBytes); err != nil {
					return err
				}
			}

			return runTest(ctx, app, o, target, cfg, totalBytes)
		},
	}
}

// checkTarget ensures the test target is a mounted filesystem root, or at
// least an existing directory when forced.
func checkTarget(app *App, target string, force bool) error {
	info, err := app.FS.Stat(target)
	if err != nil {
		return err
	}

	if !info.IsDir() {
		return fmt.Errorf("%s: not a directory", target)
	}

	if force {
		return nil
	}

	mounted, err := volume.IsMountpoint(target)
	if err != nil {
		return err
	}

	if !mounted {
		return fmt.Errorf("%w: %s", errNotAMountpoint, target)
	}

	return nil
}

// confirm asks the user before filling the volume. Writing every free byte
// is destructive enough to warrant it.
func confirm(o *IO, label string, totalBytes int64) error {
	o.Printf("About to fill %s with %s of test data.\n", label, formatBytes(totalBytes))
	o.Println("The volume should be empty; all free space will be written.")

	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)

	answer, err := line.Prompt("Continue? [y/N] ")
	if err != nil {
		return errConfirmationDenied
	}

	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return nil
	default:
		return errConfirmationDenied
	}
}

// runTest drives the engine on a worker goroutine and renders its events on
// this one. SIGINT cancels cooperatively: the engine stops at its next
// checkpoint and cleans up its files.
func runTest(ctx context.Context, app *App, o *IO, target string, cfg config.Config, totalBytes int64) error {
	events := make(chan event, eventBufferSize)

	tst := tester.New(app.FS, target, tester.Options{
		FileSizeMax:  cfg.FileSizeMax(),
		BlockSizeMax: cfg.BlockSizeMax(),
		Prefix:       cfg.FilePrefix,
		Listener:     newChannelListener(events),
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case <-app.Signals:
			tst.Cancel()
		case <-ctx.Done():
		}
	}()

	var group errgroup.Group

	group.Go(func() error {
		defer close(events)

		return tst.Run(ctx, totalBytes)
	})

	group.Go(func() error {
		renderEvents(o, events)

		return nil
	})

	err := group.Wait()
	if errors.Is(err, tester.ErrFailed) {
		_, written := tst.Progress()

		return fmt.Errorf("%w after writing %s", err, formatBytes(written))
	}

	return err
}
