package domain

// Approval package states as reported by the routing service. The router owns
// this state machine; we only read it.
const (
	PackagePreRouting = "PRE_ROUTING"
	PackageRouting    = "ROUTING"
	PackageComplete   = "COMPLETE"
	PackageVoid       = "VOID"
)

// PackageActions is the permission set the router grants the requesting user
// on a package.
type PackageActions struct {
	CanEdit          bool `json:"canEdit"`
	CanVoid          bool `json:"canVoid"`
	CanSign          bool `json:"canSign"`
	CanInitiatorVoid bool `json:"canInitiatorVoid"`
}

// ApprovalPackage is the router's view of a workflow entry.
type ApprovalPackage struct {
	PackageID int            `json:"packageId"`
	State     string         `json:"state"`
	Actions   PackageActions `json:"actions"`
}
