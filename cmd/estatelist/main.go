package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"estatelist/internal/config"
	applog "estatelist/internal/log"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// cli carries what every subcommand needs once the root has loaded config.
type cli struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	cfg     config.Config
	apiURL  string
	logOut  io.Writer
	closers []io.Closer
}

func run(args []string, in io.Reader, out, errOut io.Writer) error {
	cl := &cli{in: in, out: out, errOut: errOut}
	defer cl.close()
	root := newRootCmd(cl)
	root.SetArgs(args)
	return root.Execute()
}

func newRootCmd(cl *cli) *cobra.Command {
	root := &cobra.Command{
		Use:           "estatelist",
		Short:         "Browse and manage property listings",
		Long:          "estatelist serves the property listing web front end and manages listings from the terminal.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return cl.init(cmd)
		},
	}
	root.SetIn(cl.in)
	root.SetOut(cl.out)
	root.SetErr(cl.errOut)
	root.PersistentFlags().StringVar(&cl.apiURL, "api-url", "", "property collection URL (overrides API_URL)")

	root.AddCommand(newServeCmd(cl), newPropertiesCmd(cl))
	return root
}

// init loads config and installs the logger. serve logs to stdout (and LOG_FILE),
// the other commands log to stderr so their output stays clean.
func (cl *cli) init(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cl.apiURL != "" {
		cfg.APIURL = cl.apiURL
	}
	cl.cfg = cfg

	w := cl.errOut
	if cmd.Name() == "serve" {
		w = cl.out
		if cfg.LogFile != "" {
			f, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
			if err != nil {
				log.Printf("[warn] could not open log file %s: %v", cfg.LogFile, err)
			} else {
				cl.closers = append(cl.closers, f)
				w = io.MultiWriter(cl.out, f)
			}
		}
		log.SetOutput(w)
	}
	cl.logOut = w

	closer, err := applog.Setup(applog.Options{
		Writer:        w,
		Format:        cfg.LogFormat,
		Level:         applog.ParseLevel(cfg.LogLevel),
		FluentEnabled: cfg.FluentEnabled,
		FluentHost:    cfg.FluentHost,
		FluentPort:    cfg.FluentPort,
	})
	if err != nil {
		return fmt.Errorf("set up logging: %w", err)
	}
	// Flush fluent before closing the log file.
	cl.closers = append([]io.Closer{closer}, cl.closers...)
	return nil
}

func (cl *cli) close() {
	for _, c := range cl.closers {
		_ = c.Close()
	}
	cl.closers = nil
}
