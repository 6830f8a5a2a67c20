package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promaster/internal"
	"promaster/internal/cin7"
)

func staff() []cin7.User {
	inactive := false
	return []cin7.User{
		{ID: 42, FirstName: "Charlotte", LastName: "Meyer"},
		{ID: 43, FirstName: "Old", LastName: "Rep", IsActive: &inactive},
	}
}

func TestUserDirectorySkipsInactive(t *testing.T) {
	d := NewUserDirectory(staff())
	name, ok := d.Name(42)
	require.True(t, ok)
	assert.Equal(t, "Charlotte Meyer", name)

	_, ok = d.Name(43)
	assert.False(t, ok)
}

func TestBranchTable(t *testing.T) {
	branches := testBranches()
	assert.Equal(t, "Avondale", branches.Primary().Name)
	assert.Equal(t, 230, branches.ForRep(" charlotte meyer ").ID)
	assert.Equal(t, "Avondale", branches.ForRep("Someone Else").Name)
	assert.Equal(t, "Avondale", branches.ForRep("").Name)

	assert.Equal(t, 501, branches.MemberID(ip(501), branches.Primary()))
	assert.Equal(t, 3, branches.MemberID(nil, branches.Primary()))
	assert.Equal(t, 3, branches.MemberID(ip(0), branches.Primary()))

	_, err := NewBranchTable([]internal.Branch{{Name: "Avondale", ID: 3}}, map[string]string{"Sam": "Tauranga"})
	assert.Error(t, err)
	_, err = NewBranchTable(nil, nil)
	assert.Error(t, err)
}

func TestResolveFallsBackToAccountNumber(t *testing.T) {
	contacts := &fakeContacts{
		byAccount: map[string][]cin7.Contact{
			"AC01": {{ID: 501, FirstName: "Site 7", SalesPersonID: ip(42)}},
		},
	}
	r := NewEntityResolver(contacts, NewUserDirectory(staff()), testBranches(), quietLogger())

	got := r.Resolve(context.Background(), "Acme Builders - ac01")
	assert.Equal(t, "ACME BUILDERS - AC01", contacts.lastCompany)
	assert.Equal(t, "AC01", contacts.lastAccountNo)
	assert.Equal(t, "Site 7", got.ProjectName)
	require.NotNil(t, got.MemberID)
	assert.Equal(t, 501, *got.MemberID)
	require.NotNil(t, got.SalesRepID)
	assert.Equal(t, 42, *got.SalesRepID)
	assert.Equal(t, "Charlotte Meyer", got.SalesRepName)
	assert.Equal(t, "Hamilton", got.BranchName)
}

func TestResolveMemoizesPerToken(t *testing.T) {
	contacts := &fakeContacts{
		byCompany: map[string][]cin7.Contact{
			"ACME BUILDERS": {{ID: 501, FirstName: "Site 7"}},
		},
	}
	r := NewEntityResolver(contacts, NewUserDirectory(nil), testBranches(), quietLogger())

	first := r.Resolve(context.Background(), "Acme Builders")
	second := r.Resolve(context.Background(), "  acme   builders ")
	assert.Equal(t, first, second)
	assert.Equal(t, 1, contacts.companyCalls)
	assert.Equal(t, 0, contacts.accountCalls)
	assert.Equal(t, "Avondale", first.BranchName)
}

func TestResolveUnmatchedLandsOnPrimary(t *testing.T) {
	contacts := &fakeContacts{companyErr: errors.New("boom")}
	r := NewEntityResolver(contacts, NewUserDirectory(staff()), testBranches(), quietLogger())

	got := r.Resolve(context.Background(), "Nobody Ltd")
	assert.Equal(t, internal.ResolvedEntity{BranchName: "Avondale"}, got)
	assert.Equal(t, 1, contacts.accountCalls)

	assert.Equal(t, internal.ResolvedEntity{BranchName: "Avondale"}, r.Resolve(context.Background(), "   "))
}

func TestResolveInactiveRepUsesPrimary(t *testing.T) {
	contacts := &fakeContacts{
		byCompany: map[string][]cin7.Contact{
			"BETA LTD": {{ID: 77, FirstName: "Beta", SalesPersonID: ip(43)}},
		},
	}
	r := NewEntityResolver(contacts, NewUserDirectory(staff()), testBranches(), quietLogger())

	got := r.Resolve(context.Background(), "Beta Ltd")
	require.NotNil(t, got.SalesRepID)
	assert.Equal(t, 43, *got.SalesRepID)
	assert.Equal(t, "", got.SalesRepName)
	assert.Equal(t, "Avondale", got.BranchName)
}
