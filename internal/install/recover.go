package install

import (
	"context"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/janekdeveloper/JanLauncher-sub000/internal/fsutil"
	"github.com/janekdeveloper/JanLauncher-sub000/internal/game"
)

// RecoveryReport lists what Recover changed.
type RecoveryReport struct {
	Restored       []string
	RemovedBackups []string
	RemovedStaging []string
}

// Empty reports whether Recover found nothing to do.
func (r *RecoveryReport) Empty() bool {
	return len(r.Restored) == 0 && len(r.RemovedBackups) == 0 && len(r.RemovedStaging) == 0
}

// Recover repairs the result of an interrupted swap. A live directory that
// is missing but has backups gets its newest backup back; backups of present
// live directories and abandoned staging trees are deleted.
//
// Only entries older than the stale age count as abandoned. Anything newer may
// belong to an install running in another process and is left untouched,
// together with every other backup of the same live directory.
func (o *Orchestrator) Recover(ctx context.Context) (*RecoveryReport, error) {
	cutoff := o.now().Add(-o.staleAfter)
	report := &RecoveryReport{}

	for _, branch := range game.Branches {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		if err := o.recoverBranch(branch, cutoff, report); err != nil {
			return report, err
		}
	}

	if err := o.removeStaleStaging(cutoff, report); err != nil {
		return report, err
	}

	if len(report.Restored) > 0 || len(report.RemovedBackups) > 0 {
		if _, err := o.store.RefreshIndex(); err != nil {
			return report, err
		}
	}

	if !report.Empty() {
		o.logger.Info("recovery finished",
			"restored", len(report.Restored),
			"removed_backups", len(report.RemovedBackups),
			"removed_staging", len(report.RemovedStaging),
		)
	}

	return report, nil
}

type backupEntry struct {
	name string
	at   time.Time
}

func (o *Orchestrator) recoverBranch(branch game.Branch, cutoff time.Time, report *RecoveryReport) error {
	dir := o.layout.BranchDir(branch)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}

		return errors.Wrapf(err, "listing %s", dir)
	}

	backups := make(map[string][]backupEntry)

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		base, at, ok := game.ParseBackupName(entry.Name())
		if !ok {
			continue
		}

		backups[base] = append(backups[base], backupEntry{name: entry.Name(), at: at})
	}

	for _, base := range slices.Sorted(maps.Keys(backups)) {
		found := backups[base]
		slices.SortFunc(found, func(a, b backupEntry) int { return b.at.Compare(a.at) })

		live := filepath.Join(dir, base)

		if !found[0].at.Before(cutoff) {
			o.logger.Debug("swap in progress, leaving backups", "path", live, "backup", found[0].name)

			continue
		}

		if !fsutil.IsDir(live) {
			if err := o.rename(filepath.Join(dir, found[0].name), live); err != nil {
				return errors.Wrapf(err, "restoring %s", live)
			}

			o.logger.Info("restored installation from swap backup", "path", live, "backup", found[0].name)
			report.Restored = append(report.Restored, live)
			found = found[1:]
		}

		for _, b := range found {
			path := filepath.Join(dir, b.name)
			if err := os.RemoveAll(path); err != nil {
				return errors.Wrapf(err, "removing backup %s", path)
			}

			report.RemovedBackups = append(report.RemovedBackups, path)
		}
	}

	return nil
}

// removeStaleStaging deletes staging entries whose name stamp and mtime are
// both older than cutoff.
func (o *Orchestrator) removeStaleStaging(cutoff time.Time, report *RecoveryReport) error {
	entries, err := os.ReadDir(o.layout.StagingDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}

		return errors.Wrap(err, "listing staging directory")
	}

	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}

		last := info.ModTime()
		if created, ok := game.StagingTime(entry.Name()); ok && created.After(last) {
			last = created
		}

		if !last.Before(cutoff) {
			continue
		}

		path := filepath.Join(o.layout.StagingDir(), entry.Name())
		if err := os.RemoveAll(path); err != nil {
			return errors.Wrapf(err, "removing stale staging %s", path)
		}

		report.RemovedStaging = append(report.RemovedStaging, path)
	}

	return nil
}
