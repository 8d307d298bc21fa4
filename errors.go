package netcdfproc

// PreconditionError reports input the converter does not handle: a data
// model other than NETCDF4, a variable with more than two dimensions, or a
// missing input file.
type PreconditionError struct {
	Msg string
}

func (e *PreconditionError) Error() string { return e.Msg }

// TypeError reports a value that cannot be written as JSON or CSV.
type TypeError struct {
	Msg string
}

func (e *TypeError) Error() string { return e.Msg }

// Messages of the precondition errors.
const (
	msgDataModel  = "can only process netCDF4"
	msgDimensions = "unexpected number of dimensions (>2)"
	// MsgNoInput is reported when no input file is given.
	MsgNoInput = "No input file provided."
)
