package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	flag "github.com/spf13/pflag"

	"voltest/internal/config"
)

var errConfigExists = errors.New("config file already exists")

const configFilePerms = 0o644

func initConfigCommand(app *App) *Command {
	flags := flag.NewFlagSet("init-config", flag.ContinueOnError)

	return &Command{
		Flags: flags,
		Usage: "init-config",
		Short: "Write a default project config file",
		Long:  "Write a default " + config.ConfigFileName + " to the working directory.",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			path := filepath.Join(app.WorkDir, config.ConfigFileName)

			exists, err := app.FS.Exists(path)
			if err != nil {
				return err
			}

			if exists {
				return fmt.Errorf("%w: %s", errConfigExists, path)
			}

			formatted, err := config.Format(config.Default())
			if err != nil {
				return err
			}

			if err := app.FS.WriteFileAtomic(path, []byte(formatted+"\n"), configFilePerms); err != nil {
				return err
			}

			o.Println(path)

			return nil
		},
	}
}

func printConfigCommand(app *App) *Command {
	flags := flag.NewFlagSet("print-config", flag.ContinueOnError)

	return &Command{
		Flags: flags,
		Usage: "print-config",
		Short: "Show resolved configuration",
		Exec: func(ctx context.Context, o *IO, args []string) error {
			formatted, err := config.Format(app.Config)
			if err != nil {
				return err
			}

			o.Println(formatted)

			o.Println("")
			o.Println("# Sources:")

			sources := app.Config.Sources
			if sources.Global != "" {
				o.Println("#   global:", sources.Global)
			}

			if sources.Project != "" {
				o.Println("#   project:", sources.Project)
			}

			if sources.Global == "" && sources.Project == "" {
				o.Println("#   (using defaults only)")
			}

			return nil
		},
	}
}
