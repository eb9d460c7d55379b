package proposals

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	cfgpkg "github.com/ballothq/ballot/internal/config"
	"github.com/ballothq/ballot/internal/proposal"
	"github.com/ballothq/ballot/internal/runtime"
	pebblestore "github.com/ballothq/ballot/internal/storage/pebble"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	rt, err := runtime.Open(runtime.Options{
		DataDir: t.TempDir(),
		Fsync:   pebblestore.FsyncModeAlways,
		Config:  cfgpkg.Default(),
	})
	if err != nil {
		t.Fatalf("open runtime: %v", err)
	}
	t.Cleanup(func() { _ = rt.Close() })
	return New(rt)
}

func mustCreate(t *testing.T, s *Service, caller proposal.Principal, key uint64, desc string, active bool) {
	t.Helper()
	if _, err := s.CreateProposal(context.Background(), caller, key, CreateParams{Description: desc, IsActive: active}); err != nil {
		t.Fatalf("create %d: %v", key, err)
	}
}

func rawRecord(t *testing.T, s *Service, key uint64) []byte {
	t.Helper()
	b, err := s.rt.Registry().RawGet(key)
	if err != nil {
		t.Fatalf("raw get %d: %v", key, err)
	}
	return b
}

func TestAbsentKeyBehavior(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	if _, ok, err := s.GetProposal(ctx, 99); err != nil || ok {
		t.Fatalf("get absent: ok=%v err=%v", ok, err)
	}
	if err := s.EditProposal(ctx, "a", 99, CreateParams{}); !errors.Is(err, proposal.ErrNoSuchProposal) {
		t.Fatalf("edit absent: %v", err)
	}
	if err := s.EndProposal(ctx, "a", 99); !errors.Is(err, proposal.ErrNoSuchProposal) {
		t.Fatalf("end absent: %v", err)
	}
	if err := s.Vote(ctx, "a", 99, proposal.ChoiceApprove); !errors.Is(err, proposal.ErrNoSuchProposal) {
		t.Fatalf("vote absent: %v", err)
	}
	if s.GetProposalCount(ctx) != 0 {
		t.Fatalf("count must be 0")
	}
}

func TestCreateInitializesRecord(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	mustCreate(t, s, "alice", 1, "D", true)

	pr, ok, err := s.GetProposal(ctx, 1)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if pr.Owner != "alice" || pr.Description != "D" || !pr.IsActive {
		t.Fatalf("unexpected record: %+v", pr)
	}
	if pr.Approve != 0 || pr.Reject != 0 || pr.Pass != 0 || len(pr.Voted) != 0 {
		t.Fatalf("counters/voted must start empty: %+v", pr)
	}
	if s.GetProposalCount(ctx) != 1 {
		t.Fatalf("count must be 1")
	}
}

func TestCreateUpsertReturnsPrevious(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	mustCreate(t, s, "alice", 1, "first", true)
	if err := s.Vote(ctx, "bob", 1, proposal.ChoiceApprove); err != nil {
		t.Fatalf("vote: %v", err)
	}

	// Anyone can overwrite by key; the fresh record inherits nothing.
	prev, err := s.CreateProposal(ctx, "mallory", 1, CreateParams{Description: "second", IsActive: false})
	if err != nil {
		t.Fatalf("recreate: %v", err)
	}
	if prev == nil || prev.Description != "first" || prev.Approve != 1 {
		t.Fatalf("previous record mismatch: %+v", prev)
	}

	pr, _, err := s.GetProposal(ctx, 1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if pr.Owner != "mallory" || pr.Approve != 0 || len(pr.Voted) != 0 {
		t.Fatalf("overwrite must start clean: %+v", pr)
	}
	if s.GetProposalCount(ctx) != 1 {
		t.Fatalf("overwrite must not grow count")
	}
}

func TestEditPreservesTalliesAndOwner(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	mustCreate(t, s, "alice", 1, "old", true)
	if err := s.Vote(ctx, "bob", 1, proposal.ChoiceReject); err != nil {
		t.Fatalf("vote: %v", err)
	}

	if err := s.EditProposal(ctx, "alice", 1, CreateParams{Description: "new", IsActive: false}); err != nil {
		t.Fatalf("edit: %v", err)
	}

	pr, _, err := s.GetProposal(ctx, 1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if pr.Description != "new" || pr.IsActive {
		t.Fatalf("edit fields not applied: %+v", pr)
	}
	if pr.Owner != "alice" || pr.Reject != 1 || len(pr.Voted) != 1 || pr.Voted[0] != "bob" {
		t.Fatalf("edit must preserve owner, tallies, voted: %+v", pr)
	}
}

func TestNonOwnerMutationsLeaveRecordByteIdentical(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	mustCreate(t, s, "alice", 1, "D", true)
	before := rawRecord(t, s, 1)

	if err := s.EditProposal(ctx, "eve", 1, CreateParams{Description: "hijack", IsActive: false}); !errors.Is(err, proposal.ErrAccessRejected) {
		t.Fatalf("edit by non-owner: %v", err)
	}
	if err := s.EndProposal(ctx, "eve", 1); !errors.Is(err, proposal.ErrAccessRejected) {
		t.Fatalf("end by non-owner: %v", err)
	}

	after := rawRecord(t, s, 1)
	if !bytes.Equal(before, after) {
		t.Fatalf("rejected mutations must leave stored bytes unchanged")
	}
}

func TestVoteOncePerPrincipal(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	mustCreate(t, s, "alice", 1, "D", true)

	if err := s.Vote(ctx, "bob", 1, proposal.ChoiceApprove); err != nil {
		t.Fatalf("first vote: %v", err)
	}
	if err := s.Vote(ctx, "bob", 1, proposal.ChoiceApprove); !errors.Is(err, proposal.ErrAlreadyVoted) {
		t.Fatalf("second vote: %v", err)
	}

	pr, _, err := s.GetProposal(ctx, 1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if pr.Approve != 1 {
		t.Fatalf("counter must move exactly once, got %d", pr.Approve)
	}
	if len(pr.Voted) != 1 || pr.Voted[0] != "bob" {
		t.Fatalf("voted set mismatch: %v", pr.Voted)
	}
}

func TestVotePassDecrements(t *testing.T) {
	// Pass subtracts from its tally while approve/reject add. Pinned so a
	// sign change is a deliberate, visible decision.
	s := newTestService(t)
	ctx := context.Background()

	mustCreate(t, s, "alice", 1, "D", true)
	if err := s.Vote(ctx, "bob", 1, proposal.ChoicePass); err != nil {
		t.Fatalf("vote: %v", err)
	}

	pr, _, err := s.GetProposal(ctx, 1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if pr.Pass != -1 {
		t.Fatalf("want pass == -1, got %d", pr.Pass)
	}
}

func TestAlreadyVotedCheckedBeforeInactive(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	mustCreate(t, s, "alice", 1, "D", true)
	if err := s.Vote(ctx, "bob", 1, proposal.ChoiceApprove); err != nil {
		t.Fatalf("vote: %v", err)
	}
	if err := s.EndProposal(ctx, "alice", 1); err != nil {
		t.Fatalf("end: %v", err)
	}

	// bob hits AlreadyVoted even though the proposal is now closed.
	if err := s.Vote(ctx, "bob", 1, proposal.ChoiceReject); !errors.Is(err, proposal.ErrAlreadyVoted) {
		t.Fatalf("want AlreadyVoted first, got %v", err)
	}
	// A fresh voter hits the activity gate.
	if err := s.Vote(ctx, "carol", 1, proposal.ChoiceReject); !errors.Is(err, proposal.ErrNotActive) {
		t.Fatalf("want NotActive, got %v", err)
	}
}

func TestEndProposalIdempotent(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	mustCreate(t, s, "alice", 1, "D", true)
	if err := s.Vote(ctx, "bob", 1, proposal.ChoiceApprove); err != nil {
		t.Fatalf("vote: %v", err)
	}

	if err := s.EndProposal(ctx, "alice", 1); err != nil {
		t.Fatalf("first end: %v", err)
	}
	if err := s.EndProposal(ctx, "alice", 1); err != nil {
		t.Fatalf("second end: %v", err)
	}
	// Still owner-gated when already closed.
	if err := s.EndProposal(ctx, "eve", 1); !errors.Is(err, proposal.ErrAccessRejected) {
		t.Fatalf("end by non-owner: %v", err)
	}

	pr, _, err := s.GetProposal(ctx, 1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if pr.IsActive || pr.Approve != 1 {
		t.Fatalf("double close must not disturb state: %+v", pr)
	}
}

func TestOversizedDescriptionRejected(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	long := strings.Repeat("x", 6000)
	if _, err := s.CreateProposal(ctx, "alice", 1, CreateParams{Description: long, IsActive: true}); !errors.Is(err, proposal.ErrRecordTooLarge) {
		t.Fatalf("create oversized: %v", err)
	}

	mustCreate(t, s, "alice", 2, "small", true)
	before := rawRecord(t, s, 2)
	if err := s.EditProposal(ctx, "alice", 2, CreateParams{Description: long, IsActive: true}); !errors.Is(err, proposal.ErrRecordTooLarge) {
		t.Fatalf("edit oversized: %v", err)
	}
	if !bytes.Equal(before, rawRecord(t, s, 2)) {
		t.Fatalf("rejected oversized edit must not change stored bytes")
	}
}

func TestLifecycleScenario(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	mustCreate(t, s, "A", 1, "D", true)

	pr, ok, err := s.GetProposal(ctx, 1)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if pr.Owner != "A" || pr.Approve != 0 || len(pr.Voted) != 0 {
		t.Fatalf("fresh record mismatch: %+v", pr)
	}

	if err := s.Vote(ctx, "B", 1, proposal.ChoiceApprove); err != nil {
		t.Fatalf("vote B: %v", err)
	}
	pr, _, _ = s.GetProposal(ctx, 1)
	if pr.Approve != 1 || len(pr.Voted) != 1 || pr.Voted[0] != "B" {
		t.Fatalf("after B vote: %+v", pr)
	}

	if err := s.Vote(ctx, "B", 1, proposal.ChoiceApprove); !errors.Is(err, proposal.ErrAlreadyVoted) {
		t.Fatalf("repeat vote: %v", err)
	}
	pr, _, _ = s.GetProposal(ctx, 1)
	if pr.Approve != 1 {
		t.Fatalf("approve moved on rejected vote: %+v", pr)
	}

	if err := s.EndProposal(ctx, "A", 1); err != nil {
		t.Fatalf("end: %v", err)
	}
	pr, _, _ = s.GetProposal(ctx, 1)
	if pr.IsActive {
		t.Fatalf("proposal must be closed")
	}

	if err := s.Vote(ctx, "C", 1, proposal.ChoiceReject); !errors.Is(err, proposal.ErrNotActive) {
		t.Fatalf("vote on closed: %v", err)
	}
}
