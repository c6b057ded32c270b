package upload

// Ledger checks a document total against a fixed ceiling. It keeps no
// running counter; callers pass the aggregate recomputed from records.
type Ledger struct {
	Ceiling int64
}

func (l Ledger) Fits(aggregate, incoming int64) bool {
	return aggregate+incoming <= l.Ceiling
}

func (l Ledger) Remaining(aggregate int64) int64 {
	return l.Ceiling - aggregate
}

// Check returns a QuotaError when incoming does not fit, nil otherwise.
func (l Ledger) Check(aggregate, incoming int64) *QuotaError {
	if l.Fits(aggregate, incoming) {
		return nil
	}
	return &QuotaError{UploadSize: incoming, Remaining: l.Remaining(aggregate)}
}
