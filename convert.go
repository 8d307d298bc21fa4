// Package netcdfproc converts netCDF-4 files into JSON documents, optionally
// writing one- and two-dimensional variables to CSV files next to them.
//
// A converted group is a record with four keys: "subgroups" (converted
// child groups), "global_attributes", "variables" (the attributes of each
// variable plus "__size", the extent of each dimension) and "data" (the
// values of each variable, or the path of the CSV file holding them).
package netcdfproc

import (
	"context"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/Grismar/netcdfproc/internal/cloud"
	"github.com/Grismar/netcdfproc/netcdf"
)

// ConvertFile converts the netCDF-4 file at path. The root group record
// carries the base name of path as the __source global attribute.
func ConvertFile(ctx context.Context, path string, opts Options) (*GroupRecord, error) {
	log := opts.logger()
	f, err := netcdf.Open(path, netcdf.WithUnpack(!opts.Raw), netcdf.WithLogger(log))
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	log.WithFields(logrus.Fields{"path": path, "data_model": f.DataModel()}).Debug("opened file")
	if f.DataModel() != netcdf.NetCDF4 {
		return nil, &PreconditionError{Msg: msgDataModel}
	}
	root, err := f.Root()
	if err != nil {
		return nil, err
	}

	base := filepath.Base(path)
	stem := base
	if opts.CSVDir != "" {
		stem = cloud.Join(opts.CSVDir, base)
	}
	rec, err := ProcessGroup(ctx, FromNetCDF(root), stem, opts)
	if err != nil {
		return nil, err
	}
	rec.GlobalAttributes.Set(keySource, base)
	return rec, nil
}
