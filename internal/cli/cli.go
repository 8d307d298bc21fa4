// Package cli implements the netcdfproc command line: conversion of a
// netCDF-4 file into JSON and CSV, and the header and dump debugging
// commands.
package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Grismar/netcdfproc"
)

// EnvPrefix prefixes the environment variables that set options, as in
// NETCDFPROC_CSV_DIR.
const EnvPrefix = "NETCDFPROC"

// option is a configuration value settable by flag, environment variable
// or configuration file.
type option struct {
	name, usage, shorthand string
	defaultVal             any
	flagsets               []*pflag.FlagSet
}

// Config holds the command tree and its configuration.
type Config struct {
	*viper.Viper
	Root *cobra.Command

	stdout, stderr io.Writer
}

// New builds the command tree. Output and diagnostics go to stdout and
// stderr.
func New(stdout, stderr io.Writer) *Config {
	cfg := &Config{Viper: viper.New(), stdout: stdout, stderr: stderr}

	cfg.Root = &cobra.Command{
		Use:   "netcdfproc [flags] INPUT",
		Short: "Process netCDF4 into JSON/csv.",
		Long: `netcdfproc converts a netCDF4 file into a JSON document holding its groups,
global attributes, variable attributes and data. One- and two-dimensional
variables can be written to CSV files named {input}.{variable}.csv instead.

Options can also be set in a configuration file (--config) or through
environment variables named NETCDFPROC_{option}.

An input file named like a subcommand (header, dump) is taken for the
subcommand; pass it with a directory, as in ./header.`,
		Args:              cobra.ArbitraryArgs,
		SilenceUsage:      true,
		DisableAutoGenTag: true,
		PersistentPreRunE: func(*cobra.Command, []string) error { return cfg.setConfig() },
		RunE: func(cmd *cobra.Command, args []string) error {
			return cfg.report(cfg.convert(cmd.Context(), args))
		},
	}
	cfg.Root.SetOut(stdout)
	cfg.Root.SetErr(stderr)
	header := cfg.headerCmd()
	dump := cfg.dumpCmd()
	cfg.Root.AddCommand(header, dump)

	options := []option{
		{
			name:       "config",
			usage:      "config specifies the configuration file location.",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{cfg.Root.PersistentFlags()},
		},
		{
			name:       "csv",
			usage:      "Output anything in a 1d or 2d array as a .csv instead of a JSON array.",
			shorthand:  "c",
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{cfg.Root.Flags()},
		},
		{
			name:       "csv_2d",
			usage:      "Output anything in a 2d array as a .csv instead of a JSON array (also -c2).",
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{cfg.Root.Flags()},
		},
		{
			name:       "out_file",
			usage:      "Instead of dumping to standard out, write JSON output to a file or blob URL.",
			shorthand:  "o",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{cfg.Root.Flags()},
		},
		{
			name:       "format",
			usage:      "Formatting string for csv output (no effect if no csv is written).",
			shorthand:  "f",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{cfg.Root.Flags()},
		},
		{
			name:       "csv_dir",
			usage:      "Directory or blob URL prefix the csv files are written to.",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{cfg.Root.Flags()},
		},
		{
			name:       "unpack",
			usage:      "Apply scale_factor and add_offset to packed variables.",
			defaultVal: true,
			flagsets:   []*pflag.FlagSet{cfg.Root.Flags(), header.Flags()},
		},
		{
			name:       "log_level",
			usage:      "Logging level: panic, fatal, error, warning, info, debug or trace.",
			defaultVal: "warning",
			flagsets:   []*pflag.FlagSet{cfg.Root.PersistentFlags()},
		},
		{
			name:       "offset",
			usage:      "Offset in file to start dumping from.",
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{dump.Flags()},
		},
		{
			name:       "length",
			usage:      "Number of bytes to dump.",
			defaultVal: 128,
			flagsets:   []*pflag.FlagSet{dump.Flags()},
		},
	}

	cfg.SetEnvPrefix(EnvPrefix)
	cfg.AutomaticEnv()
	for _, o := range options {
		for i, set := range o.flagsets {
			if i != 0 {
				set.AddFlag(o.flagsets[0].Lookup(o.name))
				continue
			}
			switch def := o.defaultVal.(type) {
			case string:
				set.StringP(o.name, o.shorthand, def, o.usage)
			case bool:
				set.BoolP(o.name, o.shorthand, def, o.usage)
			case int:
				set.IntP(o.name, o.shorthand, def, o.usage)
			default:
				panic(fmt.Sprintf("cli: option %s has unsupported type %T", o.name, def))
			}
			if err := cfg.BindPFlag(o.name, set.Lookup(o.name)); err != nil {
				panic(err)
			}
		}
	}
	return cfg
}

// Execute runs the command line args (without the program name).
func (cfg *Config) Execute(args []string) error {
	cfg.Root.SetArgs(NormalizeArgs(args))
	return cfg.Root.Execute()
}

// NormalizeArgs rewrites the two-letter short flag -c2 to --csv_2d.
func NormalizeArgs(args []string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		if a == "-c2" {
			a = "--csv_2d"
		}
		out[i] = a
	}
	return out
}

// setConfig reads the configuration file, if there is one.
func (cfg *Config) setConfig() error {
	if path := cfg.GetString("config"); path != "" {
		cfg.SetConfigFile(path)
		if err := cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("netcdfproc: problem reading configuration file: %w", err)
		}
	}
	return nil
}

// report prints precondition and type errors the way the converter
// reports them and lets other errors through to cobra.
func (cfg *Config) report(err error) error {
	var pre *netcdfproc.PreconditionError
	var typ *netcdfproc.TypeError
	switch {
	case errors.As(err, &pre):
		_, _ = fmt.Fprintln(cfg.stdout, "Assertion failed:", pre.Msg)
		return nil
	case errors.As(err, &typ):
		_, _ = fmt.Fprintln(cfg.stdout, "Unexpected type error:", typ.Msg)
		return nil
	}
	return err
}

// logger returns a logger writing to stderr at the configured level.
func (cfg *Config) logger() (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(strings.ToLower(cast.ToString(cfg.Get("log_level"))))
	if err != nil {
		return nil, err
	}
	log := logrus.New()
	log.SetOutput(cfg.stderr)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	log.SetLevel(level)
	return log, nil
}

func (cfg *Config) getBool(name string) (bool, error) {
	b, err := cast.ToBoolE(cfg.Get(name))
	if err != nil {
		return false, fmt.Errorf("option %s: %w", name, err)
	}
	return b, nil
}

func (cfg *Config) getInt(name string) (int, error) {
	n, err := cast.ToIntE(cfg.Get(name))
	if err != nil {
		return 0, fmt.Errorf("option %s: %w", name, err)
	}
	return n, nil
}
