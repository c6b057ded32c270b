package upload

import (
	"context"
	"fmt"

	"jobboard/internal/pkg/logger"
)

// BatchResult is all-or-nothing: Success with Files, or the reasons nothing
// was stored.
type BatchResult struct {
	Success          bool               `json:"success"`
	Files            []*File            `json:"files,omitempty"`
	ValidationErrors []*ValidationError `json:"errors"`
	QuotaError       *QuotaError        `json:"quotaError,omitempty"`
}

// UploadBatch stores every candidate or none of them. Every candidate is
// checked and all rejections are reported in input order. The quota is only
// checked once every candidate passed.
func (s *Service) UploadBatch(ctx context.Context, ownerID int64, candidates []Candidate) (*BatchResult, error) {
	if len(candidates) == 0 {
		return nil, ErrEmptyBatch
	}
	if len(candidates) > s.opts.BatchLimit {
		s.drainAll(ctx, candidates)
		return nil, fmt.Errorf("%w: got %d, limit %d", ErrBatchTooLarge, len(candidates), s.opts.BatchLimit)
	}

	unlock, err := s.locker.Lock(ctx, ownerID)
	if err != nil {
		s.drainAll(ctx, candidates)
		return nil, fmt.Errorf("lock owner %d: %w", ownerID, err)
	}
	defer unlock()

	owner, err := s.repo.FindOwnerWithFiles(ctx, ownerID)
	if err != nil {
		s.drainAll(ctx, candidates)
		return nil, err
	}

	rules := s.opts.Rules
	result := &BatchResult{ValidationErrors: []*ValidationError{}}
	seen := make(map[string]struct{}, len(candidates))
	var aggregate, declared int64

	for _, c := range candidates {
		decision := Evaluate(rules, owner.Files, c)
		aggregate = decision.AggregateDocSize
		declared += c.Size

		switch {
		case !decision.Accepted:
			result.ValidationErrors = append(result.ValidationErrors, NewValidationError(c.FieldID, decision.Reason))
			continue
		case c.FileType.IsImage():
			result.ValidationErrors = append(result.ValidationErrors, NewValidationError(c.FieldID, KindImageInBatch))
			continue
		}
		if _, dup := seen[c.Name]; dup {
			result.ValidationErrors = append(result.ValidationErrors, NewValidationError(c.FieldID, KindDuplicateName))
			continue
		}
		seen[c.Name] = struct{}{}
	}

	if len(result.ValidationErrors) > 0 {
		s.drainAll(ctx, candidates)
		return result, nil
	}

	// With every candidate accepted, the last aggregate equals the owner's
	// current document total.
	ledger := rules.Ledger()
	if qe := ledger.Check(aggregate, declared); qe != nil {
		s.drainAll(ctx, candidates)
		result.QuotaError = qe
		return result, nil
	}

	written := make([]*Stored, 0, len(candidates))
	var stored int64
	for i, c := range candidates {
		st, verr, err := s.persist(ctx, owner, c)
		if err != nil || verr != nil {
			s.discardAll(ctx, owner.Username, written)
			s.drainAll(ctx, candidates[i+1:])
			if err != nil {
				return nil, err
			}
			result.ValidationErrors = append(result.ValidationErrors, verr)
			return result, nil
		}
		written = append(written, st)
		stored += st.Size
	}

	if qe := ledger.Check(aggregate, stored); qe != nil {
		s.discardAll(ctx, owner.Username, written)
		result.QuotaError = qe
		return result, nil
	}

	files := make([]*File, len(candidates))
	for i, c := range candidates {
		files[i] = s.newRecord(owner, c, written[i])
	}
	if err := s.repo.CreateFiles(ctx, files); err != nil {
		s.discardAll(ctx, owner.Username, written)
		return nil, fmt.Errorf("create file records: %w", err)
	}

	logger.InfoContext(ctx, "batch uploaded", "owner_id", owner.ID, "count", len(files), "size", stored)
	result.Success = true
	result.Files = files
	return result, nil
}

func (s *Service) drainAll(ctx context.Context, candidates []Candidate) {
	for _, c := range candidates {
		s.drain(ctx, c.Stream)
	}
}

func (s *Service) discardAll(ctx context.Context, ownerName string, written []*Stored) {
	for _, st := range written {
		s.discard(ctx, ownerName, st)
	}
}
