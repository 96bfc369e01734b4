package backend

import (
	"context"

	propbooks "github.com/propbooks/propbooks-go"
)

// UserService is the /users/ resource. New users arrive through
// invitations; Create is not served.
type UserService struct {
	crud[User]
}

var _ propbooks.Resource[User] = (*UserService)(nil)

// Deactivate disables the account and invalidates its sessions. The row
// stays for audit.
func (s *UserService) Deactivate(ctx context.Context, id string) (User, error) {
	return doAction[User](ctx, s.c, s.item(id)+"deactivate/", nil)
}

// InvitationService is the /invitations/ resource. Single invitations go
// through Create; the CSV bulk flow lives in the bulk package and sends one
// Create per row.
type InvitationService struct {
	crud[Invitation]
}

var _ propbooks.Resource[Invitation] = (*InvitationService)(nil)

// Resend re-emails a pending invitation and extends its expiry.
func (s *InvitationService) Resend(ctx context.Context, id string) (Invitation, error) {
	return doAction[Invitation](ctx, s.c, s.item(id)+"resend/", nil)
}

// Revoke cancels a pending invitation; its token stops working.
func (s *InvitationService) Revoke(ctx context.Context, id string) (Invitation, error) {
	return doAction[Invitation](ctx, s.c, s.item(id)+"revoke/", nil)
}
