// Package cli implements the voltest command line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"voltest/internal/config"
	"voltest/internal/fs"
)

const helpFlag = "--help"

// App carries the shared dependencies of all commands.
type App struct {
	FS      fs.FS
	Config  config.Config
	WorkDir string
	Env     map[string]string
	Signals <-chan os.Signal
	Stdin   io.Reader
}

// Run is the main entry point. Returns exit code.
func Run(in io.Reader, out, errOut io.Writer, args []string, env map[string]string, sigCh <-chan os.Signal) int {
	o := NewIO(out, errOut)

	if len(args) < 2 {
		// Command closures only touch the app when executed, so a zero App
		// is fine for help output.
		printUsage(o, commands(&App{}))

		return 0
	}

	flags, err := parseGlobalFlags(args[1:])
	if err != nil {
		o.ErrPrintln("error:", err)

		return 1
	}

	workDir := flags.workDir
	if workDir == "" {
		workDir, err = os.Getwd()
		if err != nil {
			o.ErrPrintln("error: cannot get working directory:", err)

			return 1
		}
	}

	cfg, err := config.Load(config.LoadInput{
		WorkDir:    workDir,
		ConfigPath: flags.configPath,
		Env:        env,
	})
	if err != nil {
		o.ErrPrintln("error:", err)

		return 1
	}

	app := &App{
		FS:      fs.NewReal(),
		Config:  cfg,
		WorkDir: workDir,
		Env:     env,
		Signals: sigCh,
		Stdin:   in,
	}

	cmds := commands(app)

	if len(flags.remaining) == 0 {
		printUsage(o, cmds)

		return 0
	}

	name := flags.remaining[0]
	if name == "-h" || name == helpFlag {
		printUsage(o, cmds)

		return 0
	}

	for _, cmd := range cmds {
		if cmd.Name() == name {
			return cmd.Run(context.Background(), o, flags.remaining[1:])
		}
	}

	o.ErrPrintln("error: unknown command:", name)
	printUsage(NewIO(errOut, errOut), cmds)

	return 1
}

// commands builds the command registry.
func commands(app *App) []*Command {
	return []*Command{
		testCommand(app),
		listCommand(app),
		infoCommand(app),
		cleanCommand(app),
		initConfigCommand(app),
		printConfigCommand(app),
	}
}

type globalFlags struct {
	workDir    string
	configPath string
	remaining  []string
}

func parseGlobalFlags(args []string) (globalFlags, error) {
	var flags globalFlags

	idx := 0
	for idx < len(args) {
		consumed, err := parseFlag(args, idx, &flags)
		if err != nil {
			return globalFlags{}, err
		}

		if consumed == 0 {
			// Not a flag, this is the command
			flags.remaining = args[idx:]

			break
		}

		idx += consumed
	}

	return flags, nil
}

// parseFlag tries to parse a flag at args[idx]. Returns number of args consumed (0 if not a flag).
func parseFlag(args []string, idx int, flags *globalFlags) (int, error) {
	arg := args[idx]

	// -C/--cwd flag (work directory)
	if (arg == "-C" || arg == "--cwd") && idx+1 < len(args) {
		flags.workDir = args[idx+1]

		return 2, nil
	}

	if after, ok := strings.CutPrefix(arg, "--cwd="); ok {
		flags.workDir = after

		return 1, nil
	}

	// -c/--config flag
	if (arg == "-c" || arg == "--config") && idx+1 < len(args) {
		flags.configPath = args[idx+1]

		return 2, nil
	}

	if after, ok := strings.CutPrefix(arg, "--config="); ok {
		flags.configPath = after

		return 1, nil
	}

	// -h/--help flags
	if arg == "-h" || arg == helpFlag {
		flags.remaining = []string{helpFlag}

		return len(args) - idx, nil
	}

	// Unknown flag
	if strings.HasPrefix(arg, "-") && arg != "-" {
		return 0, fmt.Errorf("unknown flag: %s", arg)
	}

	// Not a flag
	return 0, nil
}

func printUsage(o *IO, cmds []*Command) {
	o.Println(`voltest - true capacity tester for storage media

Fills an empty mounted filesystem with a test pattern and verifies the
readback to expose counterfeit or failing media.

Usage: voltest [options] <command> [args]

Options:
  -C, --cwd <dir>    Run as if started in <dir>
  -c, --config       Use specified config file

Commands:`)

	for _, cmd := range cmds {
		o.Println(cmd.HelpLine())
	}
}
