package tools

// NewToolset registers every office tool for one seat. The registry holds all
// executors; which of them a role may see and call is decided by deps.Roles.
func NewToolset(deps Deps) *Registry {
	access := Access{Seat: deps.Seat, Roles: deps.Roles}
	r := NewRegistry()

	r.Register(&ListEmployeesTool{Access: access, Store: deps.Store})
	r.Register(&AddEmployeeTool{Access: access, Store: deps.Store})
	r.Register(&UpdateEmployeeTool{Access: access, Store: deps.Store})
	r.Register(&RemoveEmployeeTool{Access: access, Store: deps.Store})
	r.Register(&DepartmentStatsTool{Access: access, Store: deps.Store})
	r.Register(&ReportTool{Access: access, Store: deps.Store})

	r.Register(&LogActivityTool{Access: access, Bus: deps.Bus})
	r.Register(&BroadcastTool{Access: access, Bus: deps.Bus})
	r.Register(&ChangeChannelTool{Access: access, Bus: deps.Bus})
	r.Register(&ChannelHistoryTool{Access: access, Bus: deps.Bus})
	r.Register(&SendMessageTool{Access: access, Bus: deps.Bus})
	return r
}
