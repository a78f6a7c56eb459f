package resource

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/freezedry/internal/link"
)

// rewriteChildren resolves every child of r concurrently and then commits
// the new targets in link order.
//
// A child that fails to resolve is reported to the observer and keeps its
// canonical absolute target. Fatal errors cancel the remaining siblings and
// are returned.
func (r *Resource) rewriteChildren(ctx context.Context) error {
	children, err := r.Resources(ctx)
	if err != nil {
		return err
	}
	if len(children) == 0 {
		return nil
	}

	targets := make([]string, len(children))
	resolved := make([]bool, len(children))

	g, gctx := errgroup.WithContext(ctx)
	for i, child := range children {
		g.Go(func() error {
			target, err := r.io.Resolver.ResolveURL(gctx, child)
			if err != nil {
				if IsFatal(gctx, err) {
					return err
				}
				child.logger().Warn("subresource left unresolved", slog.String("error", err.Error()))
				if r.io.Observer != nil {
					r.io.Observer.Failed(child, err)
				}
				return nil
			}
			targets[i] = target
			resolved[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	rw := link.NewRewrites()
	for i, child := range children {
		if !resolved[i] {
			continue
		}
		rw.Set(child.Link(), targets[i])
		if r.io.Observer != nil {
			r.io.Observer.Resolved(child, targets[i])
		}
	}
	rw.Commit(link.CommitOptions{KeepOriginalAttributes: r.opts.KeepOriginalAttributes})
	return nil
}
