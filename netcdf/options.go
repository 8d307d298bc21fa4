package netcdf

import (
	"io"

	"github.com/sirupsen/logrus"
)

// OpenOption configures how a file is read.
type OpenOption func(*options)

type options struct {
	unpack bool
	log    logrus.FieldLogger
}

func defaultOptions() options {
	discard := logrus.New()
	discard.SetOutput(io.Discard)
	return options{unpack: true, log: discard}
}

// WithUnpack controls whether variables carrying scale_factor or
// add_offset attributes are returned unpacked (raw*scale_factor+add_offset).
// The default is true.
func WithUnpack(unpack bool) OpenOption {
	return func(o *options) { o.unpack = unpack }
}

// WithLogger sets the logger that receives debug entries about objects the
// reader skips. Nil keeps the default discard logger.
func WithLogger(log logrus.FieldLogger) OpenOption {
	return func(o *options) {
		if log != nil {
			o.log = log
		}
	}
}
