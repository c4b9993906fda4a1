package install

import (
	"context"
	"os"

	"github.com/cockroachdb/errors"

	"github.com/janekdeveloper/JanLauncher-sub000/internal/fsutil"
	"github.com/janekdeveloper/JanLauncher-sub000/internal/game"
	"github.com/janekdeveloper/JanLauncher-sub000/internal/store"
)

// Remove deletes an installed version unless a profile has it active.
func (o *Orchestrator) Remove(ctx context.Context, branch game.Branch, version game.Version) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if o.profiles != nil {
		inUse, err := o.profiles.InUse(branch, version)
		if err != nil {
			return errors.Wrap(err, "checking profiles")
		}

		if inUse {
			return errors.Wrapf(ErrVersionInUse, "%s %s", branch, version.ID())
		}
	}

	live := o.layout.VersionDir(branch, version)
	existed := fsutil.IsDir(live)

	if err := os.RemoveAll(live); err != nil {
		return errors.Wrapf(err, "removing %s", live)
	}

	if err := o.store.RemoveInstalled(branch, version); err != nil {
		return err
	}

	if !existed {
		return errors.Wrapf(store.ErrNotFound, "%s %s", branch, version.ID())
	}

	o.logger.Info("version removed", "branch", branch.String(), "version", version.ID())

	return nil
}
