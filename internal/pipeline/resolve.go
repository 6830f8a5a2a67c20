package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"promaster/internal"
	"promaster/internal/cin7"
	"promaster/internal/util"
)

// ContactLookup is the Cin7 contact search used by the customer chain.
type ContactLookup interface {
	ContactsByCompany(ctx context.Context, company string) ([]cin7.Contact, error)
	ContactsByAccountNumber(ctx context.Context, account string) ([]cin7.Contact, error)
}

// UserDirectory maps active staff ids to "firstName lastName".
type UserDirectory struct {
	names map[int]string
}

func NewUserDirectory(users []cin7.User) UserDirectory {
	d := UserDirectory{names: make(map[int]string, len(users))}
	for _, u := range users {
		if !u.Active() || u.ID <= 0 {
			continue
		}
		if name := u.FullName(); name != "" {
			d.names[u.ID] = name
		}
	}
	return d
}

func (d UserDirectory) Name(id int) (string, bool) {
	name, ok := d.names[id]
	return name, ok
}

// BranchTable assigns branches from the sales rep's name. Reps not in the
// table, and unresolved reps, land on the primary branch.
type BranchTable struct {
	primary internal.Branch
	all     []internal.Branch
	byName  map[string]internal.Branch
	byRep   map[string]string
}

// NewBranchTable expects branches[0] to be the primary branch.
func NewBranchTable(branches []internal.Branch, repBranches map[string]string) (*BranchTable, error) {
	if len(branches) == 0 {
		return nil, errors.New("branch table is empty")
	}
	t := &BranchTable{
		primary: branches[0],
		all:     append([]internal.Branch(nil), branches...),
		byName:  make(map[string]internal.Branch, len(branches)),
		byRep:   make(map[string]string, len(repBranches)),
	}
	for _, b := range branches {
		t.byName[strings.ToLower(b.Name)] = b
	}
	for rep, branch := range repBranches {
		if _, ok := t.byName[strings.ToLower(branch)]; !ok {
			return nil, fmt.Errorf("sales rep %q mapped to unknown branch %q", rep, branch)
		}
		t.byRep[strings.ToLower(strings.TrimSpace(rep))] = strings.ToLower(branch)
	}
	return t, nil
}

func (t *BranchTable) Primary() internal.Branch { return t.primary }

// Branches lists every branch, primary first.
func (t *BranchTable) Branches() []internal.Branch { return t.all }

func (t *BranchTable) ForRep(repName string) internal.Branch {
	if branch, ok := t.byRep[strings.ToLower(strings.TrimSpace(repName))]; ok {
		return t.byName[branch]
	}
	return t.primary
}

// Branch looks a branch up by name, case-insensitively.
func (t *BranchTable) Branch(name string) (internal.Branch, bool) {
	b, ok := t.byName[strings.ToLower(strings.TrimSpace(name))]
	return b, ok
}

// MemberID is the resolved member when usable, else the branch default.
func (t *BranchTable) MemberID(resolved *int, branch internal.Branch) int {
	if resolved != nil && *resolved != 0 {
		return *resolved
	}
	return branch.DefaultMemberID
}

// EntityResolver turns an account token into a customer identity. Results
// are memoized per token for the lifetime of the resolver.
type EntityResolver struct {
	contacts ContactLookup
	users    UserDirectory
	branches *BranchTable
	logger   *slog.Logger
	memo     map[string]internal.ResolvedEntity
}

func NewEntityResolver(contacts ContactLookup, users UserDirectory, branches *BranchTable, logger *slog.Logger) *EntityResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &EntityResolver{
		contacts: contacts,
		users:    users,
		branches: branches,
		logger:   logger,
		memo:     map[string]internal.ResolvedEntity{},
	}
}

// Resolve runs company lookup, then account-number lookup on the trailing
// token. Lookup errors count as no match; a token nothing matches yields an
// empty identity on the primary branch.
func (r *EntityResolver) Resolve(ctx context.Context, accountToken string) internal.ResolvedEntity {
	key := util.CleanCompany(accountToken)
	if cached, ok := r.memo[key]; ok {
		return cached
	}

	entity := internal.ResolvedEntity{BranchName: r.branches.Primary().Name}
	if contact, ok := r.findContact(ctx, key, accountToken); ok {
		entity.ProjectName = strings.TrimSpace(contact.FirstName)
		if contact.ID != 0 {
			id := contact.ID
			entity.MemberID = &id
		}
		if contact.SalesPersonID != nil && *contact.SalesPersonID != 0 {
			rep := *contact.SalesPersonID
			entity.SalesRepID = &rep
			if name, ok := r.users.Name(rep); ok {
				entity.SalesRepName = name
			}
		}
		entity.BranchName = r.branches.ForRep(entity.SalesRepName).Name
	}

	r.memo[key] = entity
	return entity
}

func (r *EntityResolver) findContact(ctx context.Context, company, accountToken string) (cin7.Contact, bool) {
	if company == "" {
		return cin7.Contact{}, false
	}

	found, err := r.contacts.ContactsByCompany(ctx, company)
	if err != nil {
		r.logger.Warn("company lookup failed", "company", company, "err", err)
	} else if len(found) > 0 {
		return found[0], true
	}

	account := util.TrailingToken(accountToken)
	if account == "" {
		return cin7.Contact{}, false
	}
	found, err = r.contacts.ContactsByAccountNumber(ctx, account)
	if err != nil {
		r.logger.Warn("account lookup failed", "account", account, "err", err)
		return cin7.Contact{}, false
	}
	if len(found) > 0 {
		return found[0], true
	}
	r.logger.Info("customer unresolved", "account_token", accountToken)
	return cin7.Contact{}, false
}
