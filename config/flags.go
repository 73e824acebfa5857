package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// BindFlags registers one flag per setting on fs, using the defaults as
// flag defaults. Only flags the user actually sets override other sources;
// see ApplyFlags.
func BindFlags(fs *pflag.FlagSet) {
	var d Config
	d.LoadDefaults()
	for _, f := range d.fields() {
		switch p := f.ptr.(type) {
		case *string:
			fs.String(f.flag, *p, f.usage)
		case *int:
			fs.Int(f.flag, *p, f.usage)
		case *bool:
			fs.Bool(f.flag, *p, f.usage)
		case *time.Duration:
			fs.Duration(f.flag, *p, f.usage)
		case *[]string:
			fs.StringSlice(f.flag, *p, f.usage)
		}
	}
}

// ApplyFlags copies every flag that was set on the command line into c.
func (c *Config) ApplyFlags(fs *pflag.FlagSet) error {
	for _, f := range c.fields() {
		if !fs.Changed(f.flag) {
			continue
		}
		flag := fs.Lookup(f.flag)
		if flag == nil {
			continue
		}
		raw := flag.Value.String()
		if sv, ok := flag.Value.(pflag.SliceValue); ok {
			raw = strings.Join(sv.GetSlice(), ",")
		}
		if err := f.set(raw); err != nil {
			return fmt.Errorf("flag --%s: %w", f.flag, err)
		}
	}
	return nil
}
