// Command netcdfproc converts a netCDF4 file into JSON, optionally writing
// one- and two-dimensional variables to CSV files.
//
// Usage:
//
//	netcdfproc [-c] [-c2] [-f FORMAT] [-o OUT_FILE] INPUT
//	netcdfproc header INPUT
//	netcdfproc dump [--offset N] [--length N] INPUT
package main

import (
	"os"

	"github.com/Grismar/netcdfproc/internal/cli"
)

func main() {
	if err := cli.New(os.Stdout, os.Stderr).Execute(os.Args[1:]); err != nil {
		os.Exit(1)
	}
}
