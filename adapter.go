package netcdfproc

import "github.com/Grismar/netcdfproc/netcdf"

// FromNetCDF adapts a group of the netcdf reader to Group.
func FromNetCDF(g *netcdf.Group) Group {
	return ncGroup{g}
}

type ncGroup struct {
	*netcdf.Group
}

func (g ncGroup) Groups() ([]Group, error) {
	groups, err := g.Group.Groups()
	if err != nil {
		return nil, err
	}
	out := make([]Group, len(groups))
	for i, sub := range groups {
		out[i] = ncGroup{sub}
	}
	return out, nil
}

func (g ncGroup) Variables() ([]Variable, error) {
	vars, err := g.Group.Variables()
	if err != nil {
		return nil, err
	}
	out := make([]Variable, len(vars))
	for i, v := range vars {
		out[i] = v
	}
	return out, nil
}
