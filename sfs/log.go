package sfs

import "github.com/sirupsen/logrus"

// logOpFailure records, at debug level, the internal sentinel error behind
// one of the public int64/bool operations' -1/false returns. The public API
// keeps the spec's C-style sentinel contract (SPEC_FULL.md §7); this is the
// only place the richer error ever surfaces.
func logOpFailure(op string, err error, fields logrus.Fields) {
	if fields == nil {
		fields = logrus.Fields{}
	}
	fields["op"] = op
	logrus.WithFields(fields).Debug(err)
}
