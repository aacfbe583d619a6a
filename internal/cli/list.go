package cli

import (
	"context"

	flag "github.com/spf13/pflag"

	"voltest/internal/volume"
)

func listCommand(app *App) *Command {
	flags := flag.NewFlagSet("list", flag.ContinueOnError)
	all := flags.BoolP("all", "a", false, "Include mounts whose capacity cannot be read")

	return &Command{
		Flags: flags,
		Usage: "list [flags]",
		Short: "List mounted volumes and their capacity",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			mounts, err := volume.Mountpoints(app.FS)
			if err != nil {
				return err
			}

			o.Printf("%-32s %-10s %10s %10s\n", "MOUNTPOINT", "TYPE", "TOTAL", "AVAIL")

			for _, m := range mounts {
				space, err := volume.Usage(m.Path)
				if err != nil {
					if *all {
						o.Printf("%-32s %-10s %10s %10s\n", m.Path, m.Type, "-", "-")
					}

					continue
				}

				o.Printf("%-32s %-10s %10s %10s\n",
					m.Path, m.Type, formatBytes(space.Total), formatBytes(space.Available))
			}

			return nil
		},
	}
}
