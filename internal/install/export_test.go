package install

// SetRename replaces the rename used by the swap.
func SetRename(o *Orchestrator, fn func(oldpath, newpath string) error) {
	o.rename = fn
}
