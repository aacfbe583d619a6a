package cli

import (
	"context"
	"path/filepath"
	"strings"

	flag "github.com/spf13/pflag"

	"voltest/internal/volume"
)

func cleanCommand(app *App) *Command {
	flags := flag.NewFlagSet("clean", flag.ContinueOnError)
	prefix := flags.String("prefix", "", "Test file name prefix (overrides config)")

	return &Command{
		Flags: flags,
		Usage: "clean <mountpoint> [flags]",
		Short: "Remove test files left behind by a crashed run",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			if len(args) == 0 {
				return errMountpointRequired
			}

			target := args[0]

			p := app.Config.FilePrefix
			if *prefix != "" {
				p = *prefix
			}

			conflicts, err := volume.ConflictFiles(app.FS, target, p)
			if err != nil {
				return err
			}

			removed := 0

			for _, name := range conflicts {
				// Directories matching the prefix are not ours to delete.
				if strings.HasSuffix(name, "/") {
					o.ErrPrintln("skipping directory:", name)

					continue
				}

				if err := app.FS.Remove(filepath.Join(target, name)); err != nil {
					o.ErrPrintln("cannot remove:", name+":", err)

					continue
				}

				removed++
			}

			o.Println("removed", removed, "test file(s)")

			return nil
		},
	}
}
