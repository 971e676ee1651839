package vault

import "github.com/ethereum/go-ethereum/common"

const (
	// RoleAdmin may change vault parameters, manage roles and pause the
	// module.
	RoleAdmin = "admin"
	// RoleLeverageDelegate may call the *For variants on behalf of position
	// owners.
	RoleLeverageDelegate = "leverage-delegate"
)

// roleTable is a flat role membership set checked before privileged bodies.
type roleTable struct {
	members map[string]map[common.Address]bool
}

func newRoleTable(admin common.Address) *roleTable {
	table := &roleTable{members: make(map[string]map[common.Address]bool)}
	if admin != (common.Address{}) {
		table.grant(RoleAdmin, admin)
	}
	return table
}

func (t *roleTable) grant(role string, addr common.Address) {
	set, ok := t.members[role]
	if !ok {
		set = make(map[common.Address]bool)
		t.members[role] = set
	}
	set[addr] = true
}

func (t *roleTable) revoke(role string, addr common.Address) {
	if set, ok := t.members[role]; ok {
		delete(set, addr)
	}
}

func (t *roleTable) has(role string, addr common.Address) bool {
	set, ok := t.members[role]
	return ok && set[addr]
}

// HasRole reports whether the address holds the role.
func (e *Engine) HasRole(role string, addr common.Address) bool {
	if e == nil || e.roles == nil {
		return false
	}
	return e.roles.has(role, addr)
}

// GrantRole adds an address to a role. Admin only.
func (e *Engine) GrantRole(caller common.Address, role string, addr common.Address) error {
	if err := e.requireRole(caller, RoleAdmin); err != nil {
		return err
	}
	e.roles.grant(role, addr)
	return nil
}

// RevokeRole removes an address from a role. Admin only.
func (e *Engine) RevokeRole(caller common.Address, role string, addr common.Address) error {
	if err := e.requireRole(caller, RoleAdmin); err != nil {
		return err
	}
	e.roles.revoke(role, addr)
	return nil
}

func (e *Engine) requireRole(caller common.Address, role string) error {
	if e == nil || e.roles == nil || !e.roles.has(role, caller) {
		return ErrMissingRole
	}
	return nil
}
