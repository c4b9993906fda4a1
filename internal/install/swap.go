package install

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/cockroachdb/errors"

	"github.com/janekdeveloper/JanLauncher-sub000/internal/fsutil"
	"github.com/janekdeveloper/JanLauncher-sub000/internal/game"
	"github.com/janekdeveloper/JanLauncher-sub000/internal/userdata"
)

var osRename = os.Rename

// swapStep is one reversible action of the swap.
type swapStep struct {
	name string
	do   func() error
	undo func() error
}

// runSteps runs steps in order. On failure the completed steps are undone in
// reverse order; undo failures are attached as a secondary error.
func runSteps(steps []swapStep) error {
	done := make([]swapStep, 0, len(steps))

	for _, s := range steps {
		err := s.do()
		if err == nil {
			done = append(done, s)

			continue
		}

		var rollbackErr error

		for i := len(done) - 1; i >= 0; i-- {
			if done[i].undo == nil {
				continue
			}

			if undoErr := done[i].undo(); undoErr != nil {
				rollbackErr = errors.CombineErrors(rollbackErr, errors.Wrapf(undoErr, "undo %s", done[i].name))
			}
		}

		err = errors.Wrapf(err, "swap step %q", s.name)
		if rollbackErr != nil {
			err = errors.WithSecondaryError(err, rollbackErr)
		}

		return errors.Mark(err, ErrSwap)
	}

	return nil
}

// commit preserves user data from dataRoot and swaps the staged tree into live.
// The staging directory is gone afterwards whatever the outcome.
func (o *Orchestrator) commit(s *staged, live, dataRoot string) error {
	data, err := userdata.Preserve(dataRoot, s.dir+".userdata", o.preserve)
	if err != nil {
		_ = os.RemoveAll(s.dir)

		return err
	}

	defer func() {
		if err := userdata.Discard(data); err != nil {
			o.logger.Error("discarding user data backup", "error", err)
		}
	}()

	if err := o.swap(s.dir, live, data); err != nil {
		_ = os.RemoveAll(s.dir)

		return err
	}

	return nil
}

// swap moves live aside, promotes staging and restores user data. The
// backup is deleted only after every step succeeded.
func (o *Orchestrator) swap(staging, live string, data *userdata.Backup) error {
	backup := game.BackupPrefix(live) + strconv.FormatInt(o.now().UnixMilli(), 10)
	hadLive := fsutil.IsDir(live)

	steps := []swapStep{{
		name: "prepare branch directory",
		do:   func() error { return os.MkdirAll(filepath.Dir(live), fsutil.DirPermissions) },
	}}

	if hadLive {
		steps = append(steps, swapStep{
			name: "move live installation aside",
			do:   func() error { return o.rename(live, backup) },
			undo: func() error { return o.rename(backup, live) },
		})
	}

	steps = append(steps,
		swapStep{
			name: "promote staging",
			do:   func() error { return o.rename(staging, live) },
			undo: func() error { return o.rename(live, staging) },
		},
		swapStep{
			name: "restore user data",
			do:   func() error { return userdata.Restore(data, live) },
		},
	)

	if err := runSteps(steps); err != nil {
		return err
	}

	if hadLive {
		if err := os.RemoveAll(backup); err != nil {
			o.logger.Error("removing swap backup", "path", backup, "error", err)
		}
	}

	return nil
}
