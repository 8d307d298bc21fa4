package netcdfproc

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/Grismar/netcdfproc/netcdf"
)

// Group is the view of a netCDF group the converter walks.
type Group interface {
	Name() string
	// Path is the full path of the group, "/" for the root.
	Path() string
	Attributes() ([]netcdf.Attribute, error)
	Groups() ([]Group, error)
	Variables() ([]Variable, error)
	Dimensions() (map[string]netcdf.Dimension, error)
}

// Variable is the view of a netCDF variable the converter materializes.
type Variable interface {
	Name() string
	Attributes() ([]netcdf.Attribute, error)
	DimensionNames() []string
	Shape() []int
	Values() (*netcdf.Array, error)
}

// CreateFunc opens path for writing. The data is complete once the
// returned writer is closed without error.
type CreateFunc func(ctx context.Context, path string) (io.WriteCloser, error)

// Options controls a conversion.
type Options struct {
	// CSV1D and CSV2D write one- and two-dimensional variables to CSV
	// files instead of inlining them.
	CSV1D bool
	CSV2D bool
	// Format is the printf-style format of CSV cells, DefaultFormat when
	// empty.
	Format string
	// CSVDir is prepended to the CSV file names; a local directory or a
	// blob URL prefix. Empty means the working directory.
	CSVDir string
	// Raw disables applying scale_factor and add_offset.
	Raw bool
	// Create opens CSV files. Nil creates local files.
	Create CreateFunc
	// Log receives debug entries about the traversal. Nil discards them.
	Log logrus.FieldLogger
}

// DefaultFormat is the CSV cell format used when Options.Format is empty.
const DefaultFormat = "%.18e"

// discard receives the log entries of conversions without a logger.
var discard = func() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}()

func (o Options) logger() logrus.FieldLogger {
	if o.Log != nil {
		return o.Log
	}
	return discard
}

func (o Options) create(ctx context.Context, path string) (io.WriteCloser, error) {
	if o.Create != nil {
		return o.Create(ctx, path)
	}
	return createFile(ctx, path)
}

func (o Options) format() string {
	if o.Format == "" {
		return DefaultFormat
	}
	return o.Format
}

func createFile(_ context.Context, path string) (io.WriteCloser, error) {
	//nolint:gosec // G304: output paths are chosen by the user
	return os.Create(path)
}

// ProcessGroup converts g and everything below it. Subgroups are converted
// first, then the group attributes are copied, then every variable is
// materialized. CSV files are named after stem.
func ProcessGroup(ctx context.Context, g Group, stem string, opts Options) (*GroupRecord, error) {
	log := opts.logger()
	rec := &GroupRecord{}

	subgroups, err := g.Groups()
	if err != nil {
		return nil, err
	}
	for _, sub := range subgroups {
		r, err := ProcessGroup(ctx, sub, stem, opts)
		if err != nil {
			return nil, err
		}
		rec.Subgroups.Set(sub.Name(), r)
	}

	attrs, err := g.Attributes()
	if err != nil {
		return nil, err
	}
	for _, a := range attrs {
		rec.GlobalAttributes.Set(a.Name, a.Value)
	}

	vars, err := g.Variables()
	if err != nil {
		return nil, err
	}
	dims, err := g.Dimensions()
	if err != nil {
		return nil, err
	}
	for _, v := range vars {
		vr, data, err := ProcessVariable(ctx, v, dims, stem, opts)
		if err != nil {
			return nil, err
		}
		rec.Variables.Set(v.Name(), vr)
		rec.Data.Set(v.Name(), data)
	}

	log.WithFields(logrus.Fields{
		"group":      g.Path(),
		"subgroups":  rec.Subgroups.Len(),
		"attributes": rec.GlobalAttributes.Len(),
		"variables":  rec.Variables.Len(),
	}).Debug("processed group")
	return rec, nil
}

// ProcessVariable builds the record of v and materializes its values:
// inline, or written to {stem}.{name}.csv when v is one-dimensional and
// opts.CSV1D is set or two-dimensional and opts.CSV2D is set. dims is the
// dimension mapping of the enclosing group.
func ProcessVariable(ctx context.Context, v Variable, dims map[string]netcdf.Dimension, stem string, opts Options) (*VariableRecord, Data, error) {
	rec := &VariableRecord{}
	attrs, err := v.Attributes()
	if err != nil {
		return nil, nil, err
	}
	for _, a := range attrs {
		rec.Attributes.Set(a.Name, a.Value)
	}

	names := v.DimensionNames()
	if len(names) >= 3 {
		return nil, nil, &PreconditionError{Msg: msgDimensions}
	}
	if len(names) == 0 {
		rec.Size = []int{1}
	} else {
		rec.Size = make([]int, 0, len(names))
		for _, name := range names {
			d, ok := dims[name]
			if !ok {
				return nil, nil, fmt.Errorf("variable %s: dimension %q not found", v.Name(), name)
			}
			rec.Size = append(rec.Size, d.Size)
		}
	}

	a, err := v.Values()
	if err != nil {
		return nil, nil, err
	}
	rank := len(v.Shape())
	if !(rank == 1 && opts.CSV1D) && !(rank == 2 && opts.CSV2D) {
		return rec, Inline{Array: a}, nil
	}

	path := stem + "." + v.Name() + ".csv"
	if err := writeCSVFile(ctx, path, a, opts); err != nil {
		return nil, nil, err
	}
	opts.logger().WithFields(logrus.Fields{"variable": v.Name(), "path": path}).Debug("wrote csv")
	return rec, CSVRef{Path: path}, nil
}

func writeCSVFile(ctx context.Context, path string, a *netcdf.Array, opts Options) error {
	w, err := opts.create(ctx, path)
	if err != nil {
		return err
	}
	if err := WriteCSV(w, a, opts.format()); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}
