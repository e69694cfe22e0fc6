package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"pulsedeck/internal/membership/domain"
)

type mockLister struct {
	bulk      []domain.Membership
	bulkErr   error
	join      []domain.Membership
	joinErr   error
	bulkCalls int
	joinCalls int
}

func (m *mockLister) ListMembershipsByUser(ctx context.Context, userID string) ([]domain.Membership, error) {
	m.bulkCalls++
	return m.bulk, m.bulkErr
}

func (m *mockLister) ListMembershipsByUserJoin(ctx context.Context, userID string) ([]domain.Membership, error) {
	m.joinCalls++
	return m.join, m.joinErr
}

func TestResolver_Bulk(t *testing.T) {
	lister := &mockLister{bulk: []domain.Membership{{OrganizationID: "org-a"}}}
	var outcomes []string
	r := NewResolver(lister, nil).WithObserver(func(o string) { outcomes = append(outcomes, o) })

	got := r.Resolve(context.Background(), "user-1")
	assert.Len(t, got, 1)
	assert.Equal(t, 1, lister.bulkCalls)
	assert.Equal(t, 0, lister.joinCalls)
	assert.Equal(t, []string{"bulk"}, outcomes)
}

func TestResolver_FallsBackOnce(t *testing.T) {
	lister := &mockLister{
		bulkErr: errors.New("rpc missing"),
		join:    []domain.Membership{{OrganizationID: "org-a"}, {OrganizationID: "org-b"}},
	}
	r := NewResolver(lister, nil)

	got := r.Resolve(context.Background(), "user-1")
	assert.Len(t, got, 2)
	assert.Equal(t, 1, lister.bulkCalls)
	assert.Equal(t, 1, lister.joinCalls)
}

func TestResolver_BothFail(t *testing.T) {
	lister := &mockLister{bulkErr: errors.New("down"), joinErr: errors.New("still down")}
	var outcomes []string
	r := NewResolver(lister, nil).WithObserver(func(o string) { outcomes = append(outcomes, o) })

	got := r.Resolve(context.Background(), "user-1")
	assert.Empty(t, got)
	assert.Equal(t, 1, lister.bulkCalls, "no retries beyond the single fallback")
	assert.Equal(t, 1, lister.joinCalls)
	assert.Equal(t, []string{"failed"}, outcomes)
}

func TestResolver_EmptyUser(t *testing.T) {
	lister := &mockLister{}
	r := NewResolver(lister, nil)

	assert.Empty(t, r.Resolve(context.Background(), ""))
	assert.Equal(t, 0, lister.bulkCalls)
}
