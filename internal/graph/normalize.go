package graph

import "strings"

// externalUPNMarker appears in the UPN of guest accounts invited from
// another tenant (alice_contoso.com#EXT#@fabrikam.onmicrosoft.com).
const externalUPNMarker = "#EXT#"

// userTypeGuest is the Graph userType of B2B guest accounts.
const userTypeGuest = "Guest"

// NormalizeEmail returns the join key for an email address: surrounding
// whitespace trimmed and lowercased. Exchange treats SMTP addresses
// case-insensitively, and the directory and mailbox APIs disagree on casing.
func NormalizeEmail(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// IsExternal reports whether the entry is a guest or externally invited account.
func (e *DirectoryEntry) IsExternal() bool {
	return strings.EqualFold(e.UserType, userTypeGuest) ||
		strings.Contains(strings.ToUpper(e.UserPrincipalName), externalUPNMarker)
}

// EmailKey returns the normalized mail address used for matching.
func (e *DirectoryEntry) EmailKey() string {
	return NormalizeEmail(e.Mail)
}

// EmailKey returns the normalized primary email address used for matching.
func (c *ContactRecord) EmailKey() string {
	return NormalizeEmail(c.PrimaryEmail())
}
