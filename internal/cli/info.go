package cli

import (
	"context"
	"strings"

	flag "github.com/spf13/pflag"

	"voltest/internal/volume"
)

func infoCommand(app *App) *Command {
	flags := flag.NewFlagSet("info", flag.ContinueOnError)

	return &Command{
		Flags: flags,
		Usage: "info <mountpoint>",
		Short: "Show capacity and test-file leftovers for a volume",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			if len(args) == 0 {
				return errMountpointRequired
			}

			target := args[0]

			space, err := volume.Usage(target)
			if err != nil {
				return err
			}

			mounted, err := volume.IsMountpoint(target)
			if err != nil {
				return err
			}

			o.Println("volume:    ", volume.Label(app.FS, target))
			o.Println("mountpoint:", yesNo(mounted))
			o.Println("total:     ", formatBytes(space.Total))
			o.Println("used:      ", formatBytes(space.Used))
			o.Println("available: ", formatBytes(space.Available))

			conflicts, err := volume.ConflictFiles(app.FS, target, app.Config.FilePrefix)
			if err != nil {
				return err
			}

			if len(conflicts) > 0 {
				o.Println()
				o.Println("leftover test files from a previous run (run 'voltest clean'):")
				o.Println("  " + strings.Join(conflicts, "\n  "))
			}

			return nil
		},
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}

	return "no"
}
