// Package reconciler collapses the candidate records produced for one image
// into the final list.
//
// Two kinds of redundancy are removed:
//   - exact duplicates, identified by TransactionRecord.Key, where the first
//     record seen wins
//   - conflicting variants of one event, described by the conflict table in
//     the rule file, where only the preferred amount survives
//
// Example usage:
//
//	rec := reconciler.New(rules.Conflicts, log)
//	result := rec.Reconcile(candidates)
//	fmt.Printf("kept %d, dropped %d duplicates\n", len(result.Records), result.Duplicates)
package reconciler

import (
	"golang-transaction-extractor/internal/models"
	"golang-transaction-extractor/internal/rules"
	"golang-transaction-extractor/pkg/logger"
)

// Result is the reconciled record list with counters for reporting
type Result struct {
	Records           []*models.TransactionRecord `json:"records"`
	Duplicates        int                         `json:"duplicates"`
	ConflictsResolved int                         `json:"conflicts_resolved"`
	Groups            []DuplicateGroup            `json:"groups,omitempty"`
}

// DuplicateGroup lists the records dropped in favour of one kept record
type DuplicateGroup struct {
	Key     string                      `json:"key"`
	Kept    *models.TransactionRecord   `json:"kept,omitempty"`
	Dropped []*models.TransactionRecord `json:"dropped"`
	Reason  string                      `json:"reason"`
}

const (
	reasonDuplicate = "duplicate"
	reasonConflict  = "conflict"
)

// Reconciler deduplicates records and applies the conflict table
type Reconciler struct {
	conflicts []rules.ConflictRule
	logger    logger.Logger
}

// New creates a reconciler for the given conflict rules
func New(conflicts []rules.ConflictRule, log logger.Logger) *Reconciler {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Reconciler{
		conflicts: conflicts,
		logger:    log.WithComponent("reconciler"),
	}
}

// Reconcile returns the records that survive, in first-kept order. The input
// slice is not modified. Reconciling the output again yields the same list.
func (r *Reconciler) Reconcile(records []*models.TransactionRecord) *Result {
	present := r.preferredPresent(records)

	result := &Result{Records: make([]*models.TransactionRecord, 0, len(records))}
	groups := make(map[string]*DuplicateGroup)
	var order []string
	seen := make(map[string]*models.TransactionRecord, len(records))

	drop := func(key, reason string, kept, rec *models.TransactionRecord) {
		g, ok := groups[key]
		if !ok {
			g = &DuplicateGroup{Key: key, Kept: kept, Reason: reason}
			groups[key] = g
			order = append(order, key)
		}
		g.Dropped = append(g.Dropped, rec)
	}

	for _, rec := range records {
		if rec == nil {
			continue
		}

		if idx, rule, ok := r.ruleFor(rec); ok && rec.Amount != rule.PreferredAmount {
			if rule.Strict || present[idx] {
				result.ConflictsResolved++
				drop(conflictKey(rec), reasonConflict, nil, rec)
				r.logger.WithFields(logger.Fields{
					"title":     rec.Title,
					"datetime":  rec.DatetimeLabel,
					"amount":    rec.Amount,
					"preferred": rule.PreferredAmount,
				}).Debug("Dropped conflicting variant")
				continue
			}
		}

		key := rec.Key()
		if kept, dup := seen[key]; dup {
			result.Duplicates++
			drop(key, reasonDuplicate, kept, rec)
			continue
		}
		seen[key] = rec
		result.Records = append(result.Records, rec)
	}

	for _, key := range order {
		g := groups[key]
		if g.Reason == reasonConflict {
			probe := *g.Dropped[0]
			probe.Amount = r.preferredFor(&probe)
			g.Kept = seen[probe.Key()]
		}
		result.Groups = append(result.Groups, *g)
	}

	if result.Duplicates > 0 || result.ConflictsResolved > 0 {
		r.logger.WithFields(logger.Fields{
			"input":              len(records),
			"kept":               len(result.Records),
			"duplicates":         result.Duplicates,
			"conflicts_resolved": result.ConflictsResolved,
		}).Debug("Reconciled candidate records")
	}
	return result
}

// preferredPresent reports, per conflict rule, whether the preferred variant
// occurs among the records.
func (r *Reconciler) preferredPresent(records []*models.TransactionRecord) []bool {
	present := make([]bool, len(r.conflicts))
	for _, rec := range records {
		if rec == nil {
			continue
		}
		for i, rule := range r.conflicts {
			if rec.Amount == rule.PreferredAmount && rule.Matches(rec) {
				present[i] = true
			}
		}
	}
	return present
}

// ruleFor returns the first conflict rule matching the record
func (r *Reconciler) ruleFor(rec *models.TransactionRecord) (int, rules.ConflictRule, bool) {
	for i, rule := range r.conflicts {
		if rule.Matches(rec) {
			return i, rule, true
		}
	}
	return -1, rules.ConflictRule{}, false
}

func (r *Reconciler) preferredFor(rec *models.TransactionRecord) string {
	if _, rule, ok := r.ruleFor(rec); ok {
		return rule.PreferredAmount
	}
	return ""
}

func conflictKey(rec *models.TransactionRecord) string {
	return rec.Title + "_" + rec.DatetimeLabel
}
