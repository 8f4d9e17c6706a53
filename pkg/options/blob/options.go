// Package blobopts provides options for the local blob store.
package blobopts

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/kart-io/docqa/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options contains blob store configuration.
type Options struct {
	// BaseDir is the root directory for stored files.
	BaseDir string `json:"base-dir" mapstructure:"base-dir"`

	// MaxFileSize is the maximum accepted file size in bytes.
	MaxFileSize int64 `json:"max-file-size" mapstructure:"max-file-size"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		BaseDir:     "/var/lib/docqa/blobs",
		MaxFileSize: 10 * 1024 * 1024,
	}
}

// AddFlags adds flags to the flagset.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.BaseDir, options.Join(prefixes...)+"blob.base-dir", o.BaseDir, "Root directory for stored blob files.")
	fs.Int64Var(&o.MaxFileSize, options.Join(prefixes...)+"blob.max-file-size", o.MaxFileSize, "Maximum accepted file size in bytes.")
}

// Validate validates the options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.BaseDir == "" {
		errs = append(errs, fmt.Errorf("blob base directory is required"))
	}
	if o.MaxFileSize <= 0 {
		errs = append(errs, fmt.Errorf("blob max file size must be positive"))
	}
	return errs
}
