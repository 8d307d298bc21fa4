package cli

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Grismar/netcdfproc/netcdf"
)

func (cfg *Config) headerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "header INPUT",
		Short: "Print the structure of a netCDF file.",
		Long: `header prints the data model, dimensions, variables and attributes of every
group of a netCDF file, in the CDL notation of ncdump -h.`,
		Args:              cobra.ExactArgs(1),
		DisableAutoGenTag: true,
		RunE: func(_ *cobra.Command, args []string) error {
			log, err := cfg.logger()
			if err != nil {
				return err
			}
			unpack, err := cfg.getBool("unpack")
			if err != nil {
				return err
			}
			f, err := netcdf.Open(args[0], netcdf.WithUnpack(unpack), netcdf.WithLogger(log))
			if err != nil {
				return err
			}
			defer func() { _ = f.Close() }()
			return WriteHeader(cfg.stdout, filepath.Base(args[0]), f)
		},
	}
}

// WriteHeader writes the structure of f in CDL notation.
func WriteHeader(w io.Writer, name string, f *netcdf.File) error {
	hw := &headerWriter{w: w}
	hw.printf("netcdf %s {  // %s\n", name, f.DataModel())
	if f.DataModel() != netcdf.NetCDF4 && f.DataModel() != netcdf.NetCDF4Classic {
		hw.printf("}\n")
		return hw.err
	}
	err := f.Walk(func(path string, obj netcdf.Object) error {
		switch o := obj.(type) {
		case *netcdf.Group:
			depth := pathDepth(path)
			if err := hw.close(depth); err != nil {
				return err
			}
			return hw.open(o, depth)
		case *netcdf.Variable:
			return hw.variable(o)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := hw.close(0); err != nil {
		return err
	}
	hw.printf("}\n")
	return hw.err
}

// pathDepth is the nesting level of a group path: 0 for "/", 1 for "/a".
func pathDepth(path string) int {
	if path == "/" {
		return 0
	}
	return strings.Count(path, "/")
}

func indent(depth int) string { return strings.Repeat("  ", depth) }

// headerWriter prints the groups Walk visits. Walk reports a group before
// its variables and its subgroups after them, so the group attributes are
// printed when the next group starts.
type headerWriter struct {
	w      io.Writer
	err    error
	groups []openGroup
	vars   bool
}

// openGroup is a group on the path from the root to the group being
// printed; its index in headerWriter.groups is its depth.
type openGroup struct {
	g     *netcdf.Group
	attrs bool
}

func (hw *headerWriter) printf(format string, args ...any) {
	if hw.err == nil {
		_, hw.err = fmt.Fprintf(hw.w, format, args...)
	}
}

// open prints the header line and the dimensions of g.
func (hw *headerWriter) open(g *netcdf.Group, depth int) error {
	if depth > 0 {
		hw.printf("\n%sgroup: %s {\n", indent(depth-1), g.Name())
	}
	hw.groups = append(hw.groups, openGroup{g: g})
	hw.vars = false

	ind := indent(depth)
	dims, err := g.OwnDimensions()
	if err != nil {
		return err
	}
	if len(dims) > 0 {
		hw.printf("%sdimensions:\n", ind)
		for _, d := range dims {
			if d.Unlimited {
				hw.printf("%s\t%s = UNLIMITED ; // (%d currently)\n", ind, d.Name, d.Size)
			} else {
				hw.printf("%s\t%s = %d ;\n", ind, d.Name, d.Size)
			}
		}
	}
	return hw.err
}

// close finishes the open groups at depth and below: their attributes
// are printed, and every one but the root gets its closing brace.
func (hw *headerWriter) close(depth int) error {
	for len(hw.groups) > 0 {
		top := len(hw.groups) - 1
		if !hw.groups[top].attrs {
			if err := hw.attributes(hw.groups[top].g, top); err != nil {
				return err
			}
			hw.groups[top].attrs = true
		}
		if top < depth {
			break
		}
		if top > 0 {
			hw.printf("%s} // group %s\n", indent(top-1), hw.groups[top].g.Name())
		}
		hw.groups = hw.groups[:top]
	}
	return hw.err
}

func (hw *headerWriter) variable(v *netcdf.Variable) error {
	ind := indent(pathDepth(v.Group().Path()))
	if !hw.vars {
		hw.printf("%svariables:\n", ind)
		hw.vars = true
	}
	hw.printf("%s\t%s %s", ind, v.Type(), v.Name())
	if names := v.DimensionNames(); len(names) > 0 {
		hw.printf("(%s)", strings.Join(names, ", "))
	}
	hw.printf(" ;\n")
	attrs, err := v.Attributes()
	if err != nil {
		return err
	}
	for _, a := range attrs {
		hw.printf("%s\t\t%s:%s = %s ;\n", ind, v.Name(), a.Name, cdlValue(a))
	}
	return hw.err
}

func (hw *headerWriter) attributes(g *netcdf.Group, depth int) error {
	attrs, err := g.Attributes()
	if err != nil {
		return err
	}
	if len(attrs) == 0 {
		return hw.err
	}
	ind := indent(depth)
	if g.Parent() == nil {
		hw.printf("\n%s// global attributes:\n", ind)
	} else {
		hw.printf("\n%s// group attributes:\n", ind)
	}
	for _, a := range attrs {
		hw.printf("%s\t\t:%s = %s ;\n", ind, a.Name, cdlValue(a))
	}
	return hw.err
}

// cdlValue formats an attribute value: strings quoted, numbers separated
// by commas, float attributes suffixed with f.
func cdlValue(a netcdf.Attribute) string {
	suffix := ""
	if a.Type == netcdf.Float {
		suffix = "f"
	}
	switch v := a.Value.(type) {
	case string:
		return fmt.Sprintf("%q", v)
	case []string:
		quoted := make([]string, len(v))
		for i, s := range v {
			quoted[i] = fmt.Sprintf("%q", s)
		}
		return strings.Join(quoted, ", ")
	}
	arr := &netcdf.Array{Type: a.Type, Data: a.Value}
	if arr.Len() == 0 {
		return fmt.Sprint(a.Value) + suffix
	}
	parts := make([]string, arr.Len())
	for i := range parts {
		parts[i] = fmt.Sprint(arr.Value(i)) + suffix
	}
	return strings.Join(parts, ", ")
}
