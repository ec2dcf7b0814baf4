package discord

import (
	"slices"

	"github.com/bwmarrin/discordgo"
)

// PermissionChecker gates privileged commands behind the analyst role.
type PermissionChecker struct {
	analystRoleID string
}

// NewPermissionChecker creates a PermissionChecker for the given role ID.
func NewPermissionChecker(analystRoleID string) *PermissionChecker {
	return &PermissionChecker{analystRoleID: analystRoleID}
}

// IsAnalyst reports whether the interaction author has the analyst role.
// With no role configured every user is an analyst. Interactions without a
// guild member (direct messages) are refused when a role is configured.
func (p *PermissionChecker) IsAnalyst(i *discordgo.InteractionCreate) bool {
	if p.analystRoleID == "" {
		return true
	}
	if i.Member == nil {
		return false
	}
	return slices.Contains(i.Member.Roles, p.analystRoleID)
}

// UserID extracts the user ID from an interaction in a guild or a DM.
func UserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}
