// Explicit stubs for two capabilities left unresolved: clustered-index
// reordering and an audit-trail interface. Both are documented no-ops
// rather than silently absent, so a caller probing for the capability
// gets ErrNotImplemented instead of a successful call that did nothing.
package isam

// Cluster would physically reorder data rows to match index's key
// order (the historical iscluster call). Not implemented: the
// reclustering algorithm is left an open question and out of scope.
func (t *Table) Cluster(index int) error {
	return ErrNotImplemented
}

// Audit would enable a change-history trail alongside the table (the
// historical isaudit interface). Not implemented for the same reason
// as Cluster.
func (t *Table) Audit(path string, enable bool) error {
	return ErrNotImplemented
}
