// ABOUTME: Role resolution for conversation display
// ABOUTME: Picks the provider, the customer, and the non-admin party of a conversation

package chat

// ResolveProviderAndCustomer scans both participants for the provider and
// customer roles. Either result may be nil; a participant is only ever
// returned under its own role.
func ResolveProviderAndCustomer(c *Conversation) (provider, customer *UserRef) {
	u1, u2 := participantRefs(c)
	for _, u := range []*UserRef{u1, u2} {
		if u == nil {
			continue
		}
		switch u.Role {
		case RoleProvider:
			if provider == nil {
				provider = u
			}
		case RoleCustomer:
			if customer == nil {
				customer = u
			}
		}
	}
	return provider, customer
}

// ResolveOtherParty returns the participant the admin is talking to: the
// non-admin one. When neither is an admin it falls back to user1, and to
// user2 when user1 is absent.
func ResolveOtherParty(c *Conversation) *UserRef {
	u1, u2 := participantRefs(c)
	switch {
	case u1 != nil && u1.Role == RoleAdmin && u2 != nil:
		return u2
	case u2 != nil && u2.Role == RoleAdmin && u1 != nil:
		return u1
	case u1 != nil:
		return u1
	default:
		return u2
	}
}
