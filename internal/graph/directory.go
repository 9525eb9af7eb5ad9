package graph

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
)

// userSelectFields is the $select list for every directory user query.
var userSelectFields = []string{
	"id",
	"userPrincipalName",
	"displayName",
	"givenName",
	"surname",
	"mail",
	"businessPhones",
	"mobilePhone",
	"companyName",
	"department",
	"jobTitle",
	"accountEnabled",
	"assignedLicenses",
	"onPremisesSyncEnabled",
	"userType",
}

// userResponse mirrors the Graph API user JSON.
// Unexported; callers use DirectoryEntry via toEntry() normalization.
type userResponse struct {
	ID                    string            `json:"id"`
	UserPrincipalName     string            `json:"userPrincipalName"`
	DisplayName           string            `json:"displayName"`
	GivenName             string            `json:"givenName"`
	Surname               string            `json:"surname"`
	Mail                  string            `json:"mail"`
	BusinessPhones        []string          `json:"businessPhones"`
	MobilePhone           string            `json:"mobilePhone"`
	CompanyName           string            `json:"companyName"`
	Department            string            `json:"department"`
	JobTitle              string            `json:"jobTitle"`
	AccountEnabled        *bool             `json:"accountEnabled"`
	AssignedLicenses      []assignedLicense `json:"assignedLicenses"`
	OnPremisesSyncEnabled *bool             `json:"onPremisesSyncEnabled"`
	UserType              string            `json:"userType"`
}

type assignedLicense struct {
	SkuID string `json:"skuId"`
}

// toEntry normalizes a Graph API user response into a DirectoryEntry.
// A missing accountEnabled is treated as enabled: Graph omits it when the
// caller lacks permission to read it, and dropping every user would be worse.
func (u *userResponse) toEntry() DirectoryEntry {
	return DirectoryEntry{
		ID:                u.ID,
		UserPrincipalName: u.UserPrincipalName,
		DisplayName:       u.DisplayName,
		GivenName:         u.GivenName,
		Surname:           u.Surname,
		Mail:              u.Mail,
		BusinessPhones:    u.BusinessPhones,
		MobilePhone:       u.MobilePhone,
		CompanyName:       u.CompanyName,
		Department:        u.Department,
		JobTitle:          u.JobTitle,
		AccountEnabled:    u.AccountEnabled == nil || *u.AccountEnabled,
		Licensed:          len(u.AssignedLicenses) > 0,
		DirectorySynced:   u.OnPremisesSyncEnabled != nil && *u.OnPremisesSyncEnabled,
		UserType:          u.UserType,
	}
}

func userQuery() string {
	return fmt.Sprintf("$select=%s&$top=%d", strings.Join(userSelectFields, ","), listPageSize)
}

// UsersPager returns a lazy pager over every user in the tenant.
func (c *Client) UsersPager() *Pager[DirectoryEntry, userResponse] {
	return newPager(c, "/users?"+userQuery(), (*userResponse).toEntry)
}

// GroupMembersPager returns a lazy pager over the user members of a group.
// Non-user members (devices, nested groups) are filtered server-side by the
// microsoft.graph.user type cast.
func (c *Client) GroupMembersPager(groupID string) *Pager[DirectoryEntry, userResponse] {
	path := fmt.Sprintf("/groups/%s/members/microsoft.graph.user?%s", url.PathEscape(groupID), userQuery())

	return newPager(c, path, (*userResponse).toEntry)
}

// ListUsers returns a full snapshot of the tenant's users.
func (c *Client) ListUsers(ctx context.Context) ([]DirectoryEntry, error) {
	c.logger.Info("listing directory users")

	p := c.UsersPager()

	users, err := ListAll(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("graph: listing users: %w", err)
	}

	c.logger.Info("listed directory users",
		slog.Int("total", len(users)),
		slog.Int("pages", p.Pages()),
	)

	return users, nil
}

// ListGroupMembers returns a full snapshot of a group's user members.
func (c *Client) ListGroupMembers(ctx context.Context, groupID string) ([]DirectoryEntry, error) {
	c.logger.Info("listing group members", slog.String("group_id", groupID))

	p := c.GroupMembersPager(groupID)

	users, err := ListAll(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("graph: listing members of group %s: %w", groupID, err)
	}

	c.logger.Info("listed group members",
		slog.String("group_id", groupID),
		slog.Int("total", len(users)),
		slog.Int("pages", p.Pages()),
	)

	return users, nil
}

// GetUser fetches one user by object id or user principal name.
func (c *Client) GetUser(ctx context.Context, idOrUPN string) (*DirectoryEntry, error) {
	c.logger.Info("getting user", slog.String("user", idOrUPN))

	path := fmt.Sprintf("/users/%s?$select=%s", url.PathEscape(idOrUPN), strings.Join(userSelectFields, ","))

	var ur userResponse
	if err := c.getJSON(ctx, path, &ur); err != nil {
		return nil, err
	}

	entry := ur.toEntry()

	return &entry, nil
}

type organizationResponse struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// Organization returns the tenant's id and display name. It needs only
// Organization.Read.All or User.Read.All, so login uses it to verify that a
// freshly acquired token is accepted by the directory.
func (c *Client) Organization(ctx context.Context) (id, displayName string, err error) {
	var resp pageResponse[organizationResponse]
	if err := c.getJSON(ctx, "/organization?$select=id,displayName", &resp); err != nil {
		return "", "", err
	}

	if len(resp.Value) == 0 {
		return "", "", fmt.Errorf("graph: organization query returned no tenant")
	}

	return resp.Value[0].ID, resp.Value[0].DisplayName, nil
}
