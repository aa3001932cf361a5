package runtime

import (
	"context"
	"io"
	"os"

	"github.com/harunnryd/navi/internal/config"
	naviErrors "github.com/harunnryd/navi/internal/errors"
)

// Options control how a one-shot command differs from the daemon.
type Options struct {
	// Local routes every delivery to the terminal instead of the user's
	// channel.
	Local bool
	// Output receives terminal deliveries. Defaults to stdout.
	Output io.Writer
	// IncludeNull registers the "null" channel, which records and drops.
	IncludeNull bool
}

func (o Options) withDefaults() Options {
	if o.Output == nil {
		o.Output = os.Stdout
	}
	return o
}

// Builder collects what NewRuntimeComponents needs so the commands can
// share one construction path.
type Builder struct {
	ctx  context.Context
	cfg  *config.Config
	opts Options
}

func NewRuntimeBuilder() *Builder {
	return &Builder{ctx: context.Background()}
}

func (b *Builder) WithContext(ctx context.Context) *Builder {
	if ctx != nil {
		b.ctx = ctx
	}
	return b
}

func (b *Builder) WithConfig(cfg *config.Config) *Builder {
	b.cfg = cfg
	return b
}

func (b *Builder) WithOptions(opts Options) *Builder {
	b.opts = opts
	return b
}

// Build wires the stores, oracle, channels and both loops. Nothing is
// started.
func (b *Builder) Build() (*RuntimeComponents, error) {
	if b.cfg == nil {
		return nil, naviErrors.InvalidInput("runtime config is required")
	}
	return NewRuntimeComponents(b.ctx, b.cfg, b.opts.withDefaults())
}
