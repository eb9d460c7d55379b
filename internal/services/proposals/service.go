package proposals

import (
	"context"
	"sync"

	"github.com/ballothq/ballot/internal/proposal"
	"github.com/ballothq/ballot/internal/runtime"
	logpkg "github.com/ballothq/ballot/pkg/log"
)

// Service exposes the proposal operations. All mutating calls are
// serialized behind one mutex so each runs as an indivisible
// check-then-write cycle; no call observes another's partial mutation.
type Service struct {
	rt     *runtime.Runtime
	logger logpkg.Logger

	mu sync.Mutex
}

// New creates a proposals service with a default logger.
func New(rt *runtime.Runtime) *Service {
	logger := logpkg.NewLogger(logpkg.WithLevel(logpkg.InfoLevel))
	return NewWithLogger(rt, logger.With(logpkg.Component("proposals")))
}

// NewWithLogger creates a proposals service with a custom logger.
func NewWithLogger(rt *runtime.Runtime, logger logpkg.Logger) *Service {
	if logger == nil {
		logger = logpkg.NewLogger(logpkg.WithLevel(logpkg.InfoLevel))
		logger = logger.With(logpkg.Component("proposals"))
	}
	return &Service{rt: rt, logger: logger}
}

// CreateParams carries the caller-settable proposal fields.
type CreateParams struct {
	Description string
	IsActive    bool
}

// GetProposal returns a copy of the record at key. Reads are public; no
// caller identity is required.
func (s *Service) GetProposal(_ context.Context, key uint64) (*proposal.Proposal, bool, error) {
	return s.rt.Registry().Get(key)
}

// GetProposalCount returns the number of stored proposals.
func (s *Service) GetProposalCount(_ context.Context) uint64 {
	return s.rt.Registry().Count()
}

// CreateProposal writes a fresh record at key owned by caller: counters
// zeroed, voted set empty, description and active flag as given. A key
// already holding a record is overwritten (upsert) and the previous
// record is returned; nothing carries over from it.
func (s *Service) CreateProposal(_ context.Context, caller proposal.Principal, key uint64, params CreateParams) (*proposal.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	value := &proposal.Proposal{
		Description: params.Description,
		IsActive:    params.IsActive,
		Owner:       caller,
	}
	prev, err := s.rt.Registry().Put(key, value)
	if err != nil {
		s.logger.Error("create proposal failed",
			logpkg.Uint64("key", key),
			logpkg.Err(err),
		)
		return nil, err
	}

	s.logger.Info("created proposal",
		logpkg.Uint64("key", key),
		logpkg.Str("owner", string(caller)),
		logpkg.Bool("active", params.IsActive),
		logpkg.Bool("replaced", prev != nil),
	)
	return prev, nil
}

// EditProposal updates description and active flag at key, preserving
// owner, counters, and the voted set. Only the owner may edit.
func (s *Service) EditProposal(_ context.Context, caller proposal.Principal, key uint64, params CreateParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok, err := s.rt.Registry().Get(key)
	if err != nil {
		return err
	}
	if !ok {
		return proposal.ErrNoSuchProposal
	}
	if old.Owner != caller {
		return proposal.ErrAccessRejected
	}

	value := old.Clone()
	value.Description = params.Description
	value.IsActive = params.IsActive

	prev, err := s.rt.Registry().Put(key, value)
	if err != nil {
		return err
	}
	if prev == nil {
		// Existence was confirmed above; a missing prior record means the
		// store lost it mid-operation. Surface, never retry.
		s.logger.Error("edit found no prior record", logpkg.Uint64("key", key))
		return proposal.ErrUpdateConflict
	}

	s.logger.Info("edited proposal",
		logpkg.Uint64("key", key),
		logpkg.Bool("active", params.IsActive),
	)
	return nil
}

// EndProposal closes voting at key. Only the owner may close; closing an
// already-closed proposal succeeds and changes nothing else. The
// transition is one-way: no operation reactivates a closed proposal.
func (s *Service) EndProposal(_ context.Context, caller proposal.Principal, key uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok, err := s.rt.Registry().Get(key)
	if err != nil {
		return err
	}
	if !ok {
		return proposal.ErrNoSuchProposal
	}
	if old.Owner != caller {
		return proposal.ErrAccessRejected
	}

	value := old.Clone()
	value.IsActive = false

	prev, err := s.rt.Registry().Put(key, value)
	if err != nil {
		return err
	}
	if prev == nil {
		s.logger.Error("end found no prior record", logpkg.Uint64("key", key))
		return proposal.ErrUpdateConflict
	}

	s.logger.Info("ended proposal", logpkg.Uint64("key", key))
	return nil
}

// Vote records caller's one-time choice on the proposal at key. Checks
// run in order: record exists, caller has not voted, proposal is active.
func (s *Service) Vote(_ context.Context, caller proposal.Principal, key uint64, choice proposal.Choice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok, err := s.rt.Registry().Get(key)
	if err != nil {
		return err
	}
	if !ok {
		return proposal.ErrNoSuchProposal
	}
	if old.HasVoted(caller) {
		return proposal.ErrAlreadyVoted
	}
	if !old.IsActive {
		return proposal.ErrNotActive
	}

	value := old.Clone()
	value.ApplyChoice(choice)
	value.Voted = append(value.Voted, caller)

	prev, err := s.rt.Registry().Put(key, value)
	if err != nil {
		return err
	}
	if prev == nil {
		s.logger.Error("vote found no prior record", logpkg.Uint64("key", key))
		return proposal.ErrUpdateConflict
	}

	s.logger.Info("recorded vote",
		logpkg.Uint64("key", key),
		logpkg.Str("choice", choice.String()),
		logpkg.Int("voters", len(value.Voted)),
	)
	return nil
}
