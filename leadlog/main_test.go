package leadlog

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"counselordev/leads"
	"counselordev/logger"
)

type fakeStore struct {
	err   error
	calls int
	last  leads.Lead
}

func (f *fakeStore) Append(ctx context.Context, lead leads.Lead) error {
	f.calls++
	f.last = lead
	return f.err
}

func testRouter(t *testing.T, primary, fallback Store) *Router {
	t.Helper()
	log := logger.Connect(logger.LoggerConnectProps{Production: false})
	return Connect(context.Background(), RouterConnectProps{Logger: log, Primary: primary, Fallback: fallback})
}

func testLead() leads.Lead {
	return leads.Lead{SessionID: "s-1", Fields: leads.FieldMap{"Country": "UK"}}
}

func TestPersistPrimarySuccess(t *testing.T) {
	primary := &fakeStore{}
	fallback := &fakeStore{}
	r := testRouter(t, primary, fallback)

	result := r.Persist(context.Background(), testLead())

	assert.Equal(t, PrimaryUsed, result)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 0, fallback.calls, "fallback must not be touched when primary succeeds")
	assert.Equal(t, "UK", primary.last.Fields["Country"])
}

func TestPersistFallsBackOnPrimaryFailure(t *testing.T) {
	primary := &fakeStore{err: errors.New("quota exceeded")}
	fallback := &fakeStore{}
	r := testRouter(t, primary, fallback)

	result := r.Persist(context.Background(), testLead())

	assert.Equal(t, FallbackUsed, result)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, fallback.calls)
	assert.Equal(t, "s-1", fallback.last.SessionID)
}

func TestPersistTotalFailure(t *testing.T) {
	primary := &fakeStore{err: errors.New("network down")}
	fallback := &fakeStore{err: errors.New("disk full")}
	r := testRouter(t, primary, fallback)

	result := r.Persist(context.Background(), testLead())

	assert.Equal(t, TotalFailure, result)
	// Single fallback hop only, no retries.
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, fallback.calls)
}

func TestPersistWithoutPrimaryConfigured(t *testing.T) {
	fallback := &fakeStore{}
	r := testRouter(t, nil, fallback)

	result := r.Persist(context.Background(), testLead())

	assert.Equal(t, FallbackUsed, result)
	assert.Equal(t, 1, fallback.calls)
}

func TestAuditTrailRecordsOutcomes(t *testing.T) {
	primary := &fakeStore{err: errors.New("auth error")}
	fallback := &fakeStore{}
	r := testRouter(t, primary, fallback)

	r.Persist(context.Background(), testLead())
	primary.err = nil
	r.Persist(context.Background(), leads.Lead{SessionID: "s-2"})

	audit := r.Audit()
	assert.Len(t, audit, 2)
	assert.Equal(t, "fallback", audit[0].Result)
	assert.Equal(t, "auth error", audit[0].PrimaryError)
	assert.Equal(t, "primary", audit[1].Result)
	assert.Empty(t, audit[1].PrimaryError)
}

func TestAuditTrailDropsOldestBeyondCap(t *testing.T) {
	r := testRouter(t, &fakeStore{}, &fakeStore{})

	for i := 0; i < maxAuditEntries+100; i++ {
		r.record(AuditEntry{SessionID: fmt.Sprintf("s-%d", i)})
	}

	audit := r.Audit()
	assert.Len(t, audit, maxAuditEntries)
	assert.Equal(t, "s-100", audit[0].SessionID, "oldest entries fall off first")
	assert.Equal(t, fmt.Sprintf("s-%d", maxAuditEntries+99), audit[len(audit)-1].SessionID)
}

func TestResultString(t *testing.T) {
	assert.Equal(t, "primary", PrimaryUsed.String())
	assert.Equal(t, "fallback", FallbackUsed.String())
	assert.Equal(t, "total_failure", TotalFailure.String())
}
