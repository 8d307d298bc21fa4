package cli

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"

	"github.com/Grismar/netcdfproc"
	"github.com/Grismar/netcdfproc/internal/cloud"
)

// convert converts the input file and writes the JSON document to stdout
// or to --out_file.
func (cfg *Config) convert(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return &netcdfproc.PreconditionError{Msg: netcdfproc.MsgNoInput}
	}
	if ctx == nil {
		ctx = context.Background()
	}
	log, err := cfg.logger()
	if err != nil {
		return err
	}
	csv, err := cfg.getBool("csv")
	if err != nil {
		return err
	}
	csv2d, err := cfg.getBool("csv_2d")
	if err != nil {
		return err
	}
	unpack, err := cfg.getBool("unpack")
	if err != nil {
		return err
	}
	outFile := cast.ToString(cfg.Get("out_file"))

	sink := cloud.NewSink()
	defer func() {
		if err := sink.Close(); err != nil {
			log.WithError(err).Warn("closing output buckets")
		}
	}()

	opts := netcdfproc.Options{
		CSV1D:  csv,
		CSV2D:  csv || csv2d,
		Format: cast.ToString(cfg.Get("format")),
		CSVDir: cast.ToString(cfg.Get("csv_dir")),
		Raw:    !unpack,
		Create: sink.Create,
		Log:    log,
	}
	log.WithFields(logrus.Fields{"input": args[0], "csv_1d": opts.CSV1D, "csv_2d": opts.CSV2D}).Info("converting")

	rec, err := netcdfproc.ConvertFile(ctx, args[0], opts)
	if err != nil {
		return err
	}
	out, err := netcdfproc.MarshalIndent(rec)
	if err != nil {
		return err
	}
	if outFile == "" {
		_, err = cfg.stdout.Write(append(out, '\n'))
		return err
	}
	if err := sink.WriteFile(ctx, outFile, out); err != nil {
		return err
	}
	log.WithField("path", outFile).Info("wrote JSON")
	return nil
}
