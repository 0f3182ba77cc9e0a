package auth

// Op names an API operation guarded by the policy table.
type Op string

const (
	OpBreakdownCreate          Op = "breakdown:create"
	OpBreakdownList            Op = "breakdown:list"
	OpBreakdownView            Op = "breakdown:view"
	OpBreakdownAccept          Op = "breakdown:accept"
	OpBreakdownDecline         Op = "breakdown:decline"
	OpBreakdownCancel          Op = "breakdown:cancel"
	OpBreakdownAdvance         Op = "breakdown:advance"
	OpBreakdownApproveEstimate Op = "breakdown:approve-estimate"
	OpBreakdownPrice           Op = "breakdown:price"
	OpBreakdownAttachPhoto     Op = "breakdown:attach-photo"

	OpMechanicRegister   Op = "mechanic:register"
	OpMechanicList       Op = "mechanic:list"
	OpMechanicNearby     Op = "mechanic:nearby"
	OpMechanicManage     Op = "mechanic:manage"
	OpMechanicDeactivate Op = "mechanic:deactivate"

	OpDisputeRaise   Op = "dispute:raise"
	OpDisputeList    Op = "dispute:list"
	OpDisputeView    Op = "dispute:view"
	OpDisputeResolve Op = "dispute:resolve"

	OpDispatchLogs Op = "dispatch:logs"
)

// Relation is the caller's relationship to the record under access. The
// handler establishes relations from domain data; the table decides which
// of them grant the operation.
type Relation string

const (
	// Owner marks the rider who reported the breakdown, a mechanic acting
	// on their own record, or the party who raised the dispute.
	Owner Relation = "owner"
	// Assigned marks the mechanic currently bound to the breakdown.
	Assigned Relation = "assigned"
	// Offered marks a mechanic while the breakdown is still up for offers.
	Offered Relation = "offered"
)

type rule struct {
	roles     []Role
	relations []Relation
}

var anyRole = []Role{RoleRider, RoleMechanic, RoleWorkshop, RoleAdmin}

// policy is the authorization table: per operation, the roles allowed
// outright and the relations that grant access regardless of role.
var policy = map[Op]rule{
	OpBreakdownCreate:          {roles: []Role{RoleRider, RoleAdmin}},
	OpBreakdownList:            {roles: anyRole},
	OpBreakdownView:            {roles: []Role{RoleAdmin}, relations: []Relation{Owner, Assigned, Offered}},
	OpBreakdownAccept:          {roles: []Role{RoleMechanic}},
	OpBreakdownDecline:         {roles: []Role{RoleMechanic}},
	OpBreakdownCancel:          {roles: []Role{RoleAdmin}, relations: []Relation{Owner}},
	OpBreakdownAdvance:         {roles: []Role{RoleAdmin}, relations: []Relation{Assigned}},
	OpBreakdownApproveEstimate: {roles: []Role{RoleAdmin}, relations: []Relation{Owner}},
	OpBreakdownPrice:           {roles: []Role{RoleAdmin}, relations: []Relation{Assigned}},
	OpBreakdownAttachPhoto:     {roles: []Role{RoleAdmin}, relations: []Relation{Owner}},

	OpMechanicRegister:   {roles: []Role{RoleMechanic, RoleAdmin}},
	OpMechanicList:       {roles: []Role{RoleAdmin}},
	OpMechanicNearby:     {roles: anyRole},
	OpMechanicManage:     {roles: []Role{RoleAdmin}, relations: []Relation{Owner}},
	OpMechanicDeactivate: {roles: []Role{RoleAdmin}},

	OpDisputeRaise:   {roles: anyRole},
	OpDisputeList:    {roles: anyRole},
	OpDisputeView:    {roles: []Role{RoleAdmin}, relations: []Relation{Owner}},
	OpDisputeResolve: {roles: []Role{RoleAdmin}},

	OpDispatchLogs: {roles: []Role{RoleAdmin}},
}

// Allowed consults the policy table: op is granted when the identity's role
// is listed for it, or when one of the relations the caller holds is
// listed. Unknown operations deny.
func Allowed(op Op, id Identity, held ...Relation) bool {
	r, ok := policy[op]
	if !ok {
		return false
	}
	if id.Is(r.roles...) {
		return true
	}
	for _, h := range held {
		for _, g := range r.relations {
			if h == g {
				return true
			}
		}
	}
	return false
}
