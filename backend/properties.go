package backend

import (
	propbooks "github.com/propbooks/propbooks-go"
)

// LandlordService is the /landlords/ resource.
type LandlordService struct {
	crud[Landlord]
}

var _ propbooks.Resource[Landlord] = (*LandlordService)(nil)

// UnitService is the /units/ resource. Filter by owner with
// Query.Filters["landlord"].
type UnitService struct {
	crud[Unit]
}

var _ propbooks.Resource[Unit] = (*UnitService)(nil)

// TenantService is the /tenants/ resource.
type TenantService struct {
	crud[Tenant]
}

var _ propbooks.Resource[Tenant] = (*TenantService)(nil)
