package artifact

import (
	"context"
	"fmt"
)

// Options selects and configures a Store backend.
type Options struct {
	Driver Driver
	FSRoot string // driver=fs: output directory
	S3     S3Config
}

// Open constructs the Store named by opts. An empty driver defaults to the
// local filesystem.
func Open(ctx context.Context, opts Options) (Store, error) {
	driver := opts.Driver
	if driver == "" {
		driver = DriverFilesystem
	}
	switch driver {
	case DriverFilesystem:
		return NewFilesystem(opts.FSRoot)
	case DriverS3:
		return NewS3(ctx, opts.S3)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown artifact driver %s", driver)
	}
}
