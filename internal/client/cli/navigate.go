package cli

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/expertease/internal/client/guard"
)

// Open navigates to path. Protected paths go through their guard; when
// the guard redirects, the matching login runs and, once it succeeds, the
// guard is asked again for the original destination.
func (a *App) Open(ctx context.Context, path string) error {
	g, protected := guard.For(path)
	if !protected {
		a.navigate(path)
		return nil
	}

	d := g.Check(a.session.Snapshot(), path)
	switch d.Outcome {
	case guard.Allow:
		a.navigate(path)
		return nil
	case guard.Pending:
		a.say("Loading...")
		return nil
	}

	a.say("%s requires %s login.", path, g.Role())
	a.mu.Lock()
	a.location = d.LoginPath
	a.mu.Unlock()

	var err error
	if g.Role() == guard.RoleWorker {
		err = a.loginWorker(ctx)
	} else {
		err = a.loginUser(ctx)
	}
	if err != nil {
		return err
	}

	dest := g.Destination(d.ReturnTo)
	if again := g.Check(a.session.Snapshot(), dest); again.Outcome != guard.Allow {
		return fmt.Errorf("access to %s still denied after login", dest)
	}
	a.navigate(dest)
	return nil
}
