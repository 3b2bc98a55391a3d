package capa

// DeriveStatus recomputes the workflow status from the children of the aggregate.
// It is pure and must run after every action item or verification mutation.
//
//	draft/open + any action item                         -> in_progress
//	all items completed + verification required          -> verification
//	latest verification effective                        -> closed
//	latest verification partial/not_effective            -> verification
//
// Anything else keeps the current status; terminal statuses never change.
func DeriveStatus(c CAPA) Status {
	if c.Status.IsTerminal() {
		return c.Status
	}

	if latest, ok := c.LatestVerification(); ok {
		if latest.Result == ResultEffective {
			return StatusClosed
		}
		return StatusVerification
	}

	if c.VerificationRequired && allActionItemsCompleted(c.ActionItems) {
		return StatusVerification
	}

	if len(c.ActionItems) > 0 && (c.Status == StatusDraft || c.Status == StatusOpen) {
		return StatusInProgress
	}

	return c.Status
}

func allActionItemsCompleted(items []ActionItem) bool {
	if len(items) == 0 {
		return false
	}
	for _, item := range items {
		if item.Status != ActionCompleted {
			return false
		}
	}
	return true
}
