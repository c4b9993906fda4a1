package install

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/janekdeveloper/JanLauncher-sub000/internal/butler"
	"github.com/janekdeveloper/JanLauncher-sub000/internal/fsutil"
	"github.com/janekdeveloper/JanLauncher-sub000/internal/game"
	"github.com/janekdeveloper/JanLauncher-sub000/internal/patch"
	"github.com/janekdeveloper/JanLauncher-sub000/internal/store"
	"github.com/janekdeveloper/JanLauncher-sub000/internal/telemetry"
	"github.com/janekdeveloper/JanLauncher-sub000/pkg/logger"
)

// maxStagingCollisions bounds retries when two runs pick the same staging name.
const maxStagingCollisions = 100

// sources are the installed versions an install draws from.
type sources struct {
	// patch is the chain start; nil means a full install.
	patch *store.Record

	// data is where user data comes from when the target has no live dir.
	data string
}

// staged is a fully applied and validated staging tree.
type staged struct {
	dir        string
	record     store.Record
	plan       patch.Plan
	downloaded int64
}

// Install brings (req.Branch, req.Version) to a valid live installation.
func (o *Orchestrator) Install(ctx context.Context, req Request, progress ProgressFunc) (*Result, error) {
	start := o.now()
	emit := o.emitter(req, progress)

	if err := o.validateRequest(req); err != nil {
		return nil, stageError(StageIdle, req, nil, err)
	}

	log := o.logger.With("branch", req.Branch.String(), "version", req.Version.ID())
	live := o.layout.VersionDir(req.Branch, req.Version)

	if !req.Force && o.isInstalled(req.Branch, req.Version) {
		log.Info("version already installed")

		o.metrics.ObserveInstall(req.Branch.String(), telemetry.InstallAlreadyInstalled, o.now().Sub(start))
		emit(Event{Stage: StageCommitted, Message: "already installed", Percent: 100})

		return &Result{
			Branch:           req.Branch,
			Version:          req.Version,
			Dir:              live,
			AlreadyInstalled: true,
			Duration:         o.now().Sub(start),
		}, nil
	}

	res, err := o.install(ctx, req, live, emit, log)
	if err != nil {
		log.Error("install failed", "error", err)

		o.metrics.ObserveInstall(req.Branch.String(), telemetry.InstallFailed, o.now().Sub(start))
		emit(Event{Stage: StageFailed, Message: err.Error(), Percent: -1})

		return nil, err
	}

	res.Duration = o.now().Sub(start)

	log.Info("install committed", "edges", len(res.Plan.Edges), "fallbacks", res.Fallbacks, "duration", res.Duration)

	o.metrics.ObserveInstall(req.Branch.String(), telemetry.InstallCommitted, res.Duration)
	emit(Event{Stage: StageCommitted, Message: live, Percent: 100})

	return res, nil
}

func (o *Orchestrator) install(
	ctx context.Context,
	req Request,
	live string,
	emit func(Event),
	log logger.Logger,
) (*Result, error) {
	emit(Event{Stage: StageResolvingPath, Message: "preparing patch tool", Percent: -1})

	if _, err := o.applier.Ensure(ctx); err != nil {
		return nil, stageError(StageResolvingPath, req, nil, err)
	}

	src := o.selectSources(req, log)
	runID := uuid.NewString()

	patchSource := src.patch
	if req.Force {
		patchSource = nil
	}

	var (
		result    *staged
		err       error
		fallbacks int
	)

	for {
		result, err = o.stage(ctx, req, patchSource, fallbacks > 0, runID, emit, log)
		if err == nil {
			break
		}

		if !o.canFallBack(ctx, err, fallbacks) {
			return nil, err
		}

		fallbacks++

		log.Error("incremental install failed, retrying as full install", "error", err, "fallback", fallbacks)
		o.metrics.ObserveFallback(req.Branch.String())
		emit(Event{Stage: StageRollingBack, Message: "retrying as full install", Percent: -1})

		patchSource = nil
	}

	emit(Event{Stage: StageFinalizing, Message: "swapping into place", Percent: -1})

	dataRoot := src.data
	if fsutil.IsDir(live) {
		dataRoot = live
	}

	if err := o.commit(result, live, dataRoot); err != nil {
		return nil, stageError(StageFinalizing, req, nil, err)
	}

	if err := o.store.MarkInstalled(result.record); err != nil {
		return nil, stageError(StageFinalizing, req, nil, err)
	}

	if req.Profile != "" && o.profiles != nil {
		if err := o.profiles.SetActiveVersion(req.Profile, req.Branch, req.Version); err != nil {
			return nil, stageError(StageFinalizing, req, nil, errors.Wrap(err, "recording active version"))
		}
	}

	return &Result{
		Branch:          req.Branch,
		Version:         req.Version,
		Dir:             live,
		Plan:            result.plan,
		Fallbacks:       fallbacks,
		BytesDownloaded: result.downloaded,
		Record:          &result.record,
	}, nil
}

// stage builds a validated tree for req in a fresh staging directory. The
// directory is removed on any failure.
func (o *Orchestrator) stage(
	ctx context.Context,
	req Request,
	source *store.Record,
	fullOnly bool,
	runID string,
	emit func(Event),
	log logger.Logger,
) (*staged, error) {
	emit(Event{Stage: StageResolvingPath, Message: "discovering patches", Percent: -1})

	g, err := o.discovery.Discover(ctx, req.Branch)
	if err != nil {
		return nil, stageError(StageResolvingPath, req, nil, err)
	}

	plan := o.plan(req, source, fullOnly, g)

	log.Info("patch plan resolved",
		"from", plan.From.ID(),
		"edges", len(plan.Edges),
		"full_install", plan.FullInstall(),
		"fell_back", plan.FellBack,
	)

	emit(Event{Stage: StageStaging, Message: fmt.Sprintf("%d patch(es) from %s", len(plan.Edges), plan.From.ID()), Percent: -1})

	dir, err := o.makeStaging(req)
	if err != nil {
		return nil, stageError(StageStaging, req, nil, err)
	}

	scratch := filepath.Join(o.layout.StagingDir(), runID+".butler")
	discard := func() {
		_ = os.RemoveAll(dir)
		_ = os.RemoveAll(scratch)
	}

	if !plan.FullInstall() {
		if err := fsutil.CopyTree(o.layout.VersionDir(req.Branch, source.Version), dir); err != nil {
			discard()

			return nil, stageError(StageStaging, req, nil, errors.Wrap(err, "copying source installation"))
		}
	}

	var downloaded int64

	for i, e := range plan.Edges {
		n, err := o.applyEdge(ctx, req, e, fmt.Sprintf("patch %d/%d %s", i+1, len(plan.Edges), e), dir, scratch, emit)
		downloaded += n

		if err != nil {
			discard()

			return nil, err
		}
	}

	_ = os.RemoveAll(scratch)

	size, err := fsutil.DirSize(dir)
	if err != nil {
		discard()

		return nil, stageError(StageFinalizing, req, nil, err)
	}

	rec := store.NewRecord(req.Branch, req.Version, o.now(), size)
	if err := o.store.WriteMetadata(dir, rec); err != nil {
		discard()

		return nil, stageError(StageFinalizing, req, nil, err)
	}

	return &staged{dir: dir, record: rec, plan: plan, downloaded: downloaded}, nil
}

// plan resolves the chain, forcing (0, target) when the walk would need a
// source tree that is not there.
func (*Orchestrator) plan(req Request, source *store.Record, fullOnly bool, g *patch.Graph) patch.Plan {
	if fullOnly {
		return patch.FullInstallPlan(req.Version, g)
	}

	var from game.Version
	if source != nil {
		from = source.Version
	}

	plan := patch.ResolvePlan(from, req.Version, g)
	if plan.Empty() {
		return patch.FullInstallPlan(req.Version, g)
	}

	if first := plan.Edges[0]; !first.IsFullInstall() && (source == nil || source.Version != first.Prev) {
		return patch.FullInstallPlan(req.Version, g)
	}

	return plan
}

func (o *Orchestrator) applyEdge(
	ctx context.Context,
	req Request,
	e patch.Edge,
	label string,
	dir, scratch string,
	emit func(Event),
) (int64, error) {
	artifact, n, err := o.fetch(ctx, req.Branch, e, label, emit)
	if err != nil {
		return n, stageError(StageDownloading, req, &e, err)
	}

	emit(Event{Stage: StageApplying, Message: label, Percent: -1})

	started := o.now()
	err = o.applier.Apply(ctx, artifact, dir, scratch)
	o.metrics.ObserveApply(req.Branch.String(), err == nil, o.now().Sub(started))

	if err != nil {
		return n, stageError(StageApplying, req, &e, err)
	}

	emit(Event{Stage: StageValidating, Message: label, Percent: -1})

	if err := o.validator.Check(dir); err != nil {
		return n, stageError(StageValidating, req, &e, errors.Mark(errors.Wrap(err, "validating staged tree"), ErrValidation))
	}

	return n, nil
}

// fetch downloads one artifact, retrying integrity failures.
func (o *Orchestrator) fetch(
	ctx context.Context,
	branch game.Branch,
	e patch.Edge,
	label string,
	emit func(Event),
) (string, int64, error) {
	var lastErr error

	for attempt := 1; attempt <= o.downloadAttempts; attempt++ {
		emit(Event{Stage: StageDownloading, Message: label, Percent: 0})

		milestones := &downloadMilestones{emit: emit, message: label}

		path, written, err := o.downloader.Fetch(ctx, branch, e, milestones.observe)
		if err == nil {
			return path, written, nil
		}

		lastErr = err

		if !errors.Is(err, patch.ErrIntegrity) || ctx.Err() != nil {
			break
		}

		o.logger.Error("artifact failed integrity check",
			"branch", branch.String(), "edge", e.String(), "attempt", attempt, "error", err)
	}

	return "", 0, lastErr
}

// canFallBack reports whether err came from an incremental edge whose
// failure a full reinstall may avoid.
func (o *Orchestrator) canFallBack(ctx context.Context, err error, done int) bool {
	if ctx.Err() != nil || done >= o.maxFallbacks {
		return false
	}

	if !errors.Is(err, butler.ErrPatchApply) && !errors.Is(err, ErrValidation) {
		return false
	}

	var se *StageError

	return errors.As(err, &se) && se.Edge != nil && !se.Edge.IsFullInstall()
}

// selectSources prefers the profile's active version, then the highest
// installed version below the target.
func (o *Orchestrator) selectSources(req Request, log logger.Logger) sources {
	var src sources

	if req.Profile != "" && o.profiles != nil {
		v, ok, err := o.profiles.ActiveVersion(req.Profile, req.Branch)

		switch {
		case err != nil:
			log.Error("reading profile", "profile", req.Profile, "error", err)
		case ok && v != req.Version && o.isInstalled(req.Branch, v):
			src.data = o.layout.VersionDir(req.Branch, v)

			if v < req.Version {
				if rec, err := o.store.ReadMetadata(req.Branch, v); err == nil {
					src.patch = rec
				}
			}
		}
	}

	if src.patch == nil {
		records, err := o.store.Installed(req.Branch)
		if err != nil {
			log.Error("reading version index", "error", err)
		}

		for i := len(records) - 1; i >= 0; i-- {
			r := records[i]
			if r.Version < req.Version && o.isInstalled(r.Branch, r.Version) {
				src.patch = &r

				break
			}
		}
	}

	if src.data == "" && src.patch != nil {
		src.data = o.layout.VersionDir(req.Branch, src.patch.Version)
	}

	if src.patch != nil {
		log.Debug("patch source selected", "source", src.patch.ID)
	}

	return src
}

// makeStaging creates a staging directory no other run owns.
func (o *Orchestrator) makeStaging(req Request) (string, error) {
	if err := os.MkdirAll(o.layout.StagingDir(), fsutil.DirPermissions); err != nil {
		return "", errors.Wrap(err, "creating staging root")
	}

	now := o.now()

	for i := range maxStagingCollisions {
		dir := o.layout.StagingPath(req.Branch, req.Version, now.Add(time.Duration(i)*time.Millisecond))

		err := os.Mkdir(dir, fsutil.DirPermissions)
		if err == nil {
			return dir, nil
		}

		if !os.IsExist(err) {
			return "", errors.Wrap(err, "creating staging directory")
		}
	}

	return "", errors.Newf("no free staging directory for %s %s", req.Branch, req.Version.ID())
}

func (o *Orchestrator) validateRequest(req Request) error {
	if _, err := game.ParseBranch(string(req.Branch)); err != nil {
		return err
	}

	if req.Version == 0 {
		return errors.Wrap(game.ErrConfig, "version must be positive")
	}

	return o.platform.Validate()
}

func (o *Orchestrator) emitter(req Request, progress ProgressFunc) func(Event) {
	log := o.logger.With("branch", req.Branch.String(), "version", req.Version.ID())
	last := StageIdle

	return func(ev Event) {
		if ev.Stage != last {
			log.Debug("install stage", "from", last.String(), "to", ev.Stage.String(), "message", ev.Message)
			last = ev.Stage
		}

		if progress != nil {
			progress(ev)
		}
	}
}
