// ABOUTME: Query key families and the mutation-to-invalidation table.
// ABOUTME: Each admin mutation clears the query families whose data it changes.

package cache

// Query key families. Public families are shared by every visitor; admin
// families carry the session scope as their second element.
const (
	Services         = "services"
	Service          = "service"
	ServiceSteps     = "serviceSteps"
	ServiceDocuments = "serviceDocuments"
	ServiceFAQs      = "serviceFaqs"
	Categories       = "categories"
	Category         = "category"
	Search           = "search"

	AdminServices         = "admin-services"
	AdminServiceSteps     = "admin-service-steps"
	AdminCategories       = "admin-categories"
	AdminCategory         = "admin-category"
	AdminAgents           = "admin-agents"
	AdminUsers            = "admin-users"
	AdminUsersByCategory  = "admin-users-by-category"
	AdminUnclaimedTickets = "admin-unclaimed-tickets"
	AdminActiveTicket     = "admin-active-ticket"
	AdminProfile          = "admin-profile"
)

// Mutation names a write made through the admin back-office.
type Mutation string

const (
	CreateService   Mutation = "service.create"
	UpdateService   Mutation = "service.update"
	DeleteService   Mutation = "service.delete"
	PublishService  Mutation = "service.publish"
	ArchiveService  Mutation = "service.archive"
	ImportServices  Mutation = "service.import"
	CreateStep      Mutation = "step.create"
	UpdateStep      Mutation = "step.update"
	DeleteStep      Mutation = "step.delete"
	CreateCategory  Mutation = "category.create"
	UpdateCategory  Mutation = "category.update"
	DeleteCategory  Mutation = "category.delete"
	CreateAgent     Mutation = "agent.create"
	UpdateAgent     Mutation = "agent.update"
	DeactivateAgent Mutation = "agent.deactivate"
	AssignAgent     Mutation = "agent.assign_category"
	AgentOTP        Mutation = "agent.otp"
	CreateUser      Mutation = "user.create"
	AssignUserRoles Mutation = "user.assign_roles"
	AssignUserCat   Mutation = "user.assign_category"
	UserOTP         Mutation = "user.otp"
	ClaimTicket     Mutation = "ticket.claim"
	CloseTicket     Mutation = "ticket.close"
	SendTicketReply Mutation = "ticket.message"
)

var serviceFamilies = []string{AdminServices, Services, Service, Search}

var invalidations = map[Mutation][]string{
	CreateService:   serviceFamilies,
	UpdateService:   serviceFamilies,
	DeleteService:   serviceFamilies,
	PublishService:  serviceFamilies,
	ArchiveService:  serviceFamilies,
	ImportServices:  serviceFamilies,
	CreateStep:      {AdminServiceSteps, ServiceSteps},
	UpdateStep:      {AdminServiceSteps, ServiceSteps},
	DeleteStep:      {AdminServiceSteps, ServiceSteps},
	CreateCategory:  {AdminCategories, Categories},
	UpdateCategory:  {AdminCategories, Categories, AdminCategory, Category},
	DeleteCategory:  {AdminCategories, Categories},
	CreateAgent:     {AdminAgents},
	UpdateAgent:     {AdminAgents},
	DeactivateAgent: {AdminAgents},
	AssignAgent:     {AdminAgents},
	CreateUser:      {AdminUsers, AdminUsersByCategory},
	AssignUserRoles: {AdminUsers, AdminUsersByCategory},
	AssignUserCat:   {AdminUsers, AdminUsersByCategory},
	ClaimTicket:     {AdminUnclaimedTickets},
	CloseTicket:     {AdminUnclaimedTickets, AdminActiveTicket},
}

// Families returns the query families a mutation invalidates.
func Families(m Mutation) []string {
	return invalidations[m]
}

// InvalidateFor clears every query family touched by m.
func (c *Cache) InvalidateFor(m Mutation) int {
	families := invalidations[m]
	if len(families) == 0 {
		return 0
	}
	prefixes := make([]Key, len(families))
	for i, f := range families {
		prefixes[i] = Key{f}
	}
	return c.Invalidate(prefixes...)
}
