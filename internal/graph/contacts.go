package graph

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var contactSelectFields = []string{
	"id",
	"parentFolderId",
	"displayName",
	"givenName",
	"surname",
	"emailAddresses",
	"businessPhones",
	"mobilePhone",
	"companyName",
	"department",
	"jobTitle",
	"categories",
	"createdDateTime",
}

// contactResponse mirrors the Graph API contact JSON.
// Unexported; callers use ContactRecord via toRecord() normalization.
type contactResponse struct {
	ID              string         `json:"id"`
	ParentFolderID  string         `json:"parentFolderId"`
	DisplayName     string         `json:"displayName"`
	GivenName       string         `json:"givenName"`
	Surname         string         `json:"surname"`
	EmailAddresses  []EmailAddress `json:"emailAddresses"`
	BusinessPhones  []string       `json:"businessPhones"`
	MobilePhone     string         `json:"mobilePhone"`
	CompanyName     string         `json:"companyName"`
	Department      string         `json:"department"`
	JobTitle        string         `json:"jobTitle"`
	Categories      []string       `json:"categories"`
	CreatedDateTime string         `json:"createdDateTime"`
}

// toRecord normalizes a Graph API contact response into a ContactRecord.
// Empty address entries are dropped so PrimaryEmail is the first real one.
func (r *contactResponse) toRecord() ContactRecord {
	rec := ContactRecord{
		ID:             r.ID,
		ParentFolderID: r.ParentFolderID,
		DisplayName:    r.DisplayName,
		GivenName:      r.GivenName,
		Surname:        r.Surname,
		BusinessPhones: r.BusinessPhones,
		MobilePhone:    r.MobilePhone,
		CompanyName:    r.CompanyName,
		Department:     r.Department,
		JobTitle:       r.JobTitle,
		Categories:     r.Categories,
	}

	for _, ea := range r.EmailAddresses {
		if strings.TrimSpace(ea.Address) != "" {
			rec.EmailAddresses = append(rec.EmailAddresses, ea.Address)
		}
	}

	if t, err := time.Parse(time.RFC3339, r.CreatedDateTime); err == nil {
		rec.CreatedAt = t.UTC()
	}

	return rec
}

type contactFolderResponse struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

func (f *contactFolderResponse) toFolder() ContactFolder {
	return ContactFolder{ID: f.ID, DisplayName: f.DisplayName}
}

// ContactsPath returns the collection path for a user's contacts, either the
// default contacts folder (folderID == "") or a specific contact folder.
func ContactsPath(userID, folderID string) string {
	if folderID == "" {
		return fmt.Sprintf("/users/%s/contacts", url.PathEscape(userID))
	}

	return fmt.Sprintf("/users/%s/contactFolders/%s/contacts", url.PathEscape(userID), url.PathEscape(folderID))
}

// ContactPath returns the path of a single contact.
func ContactPath(userID, contactID string) string {
	return fmt.Sprintf("/users/%s/contacts/%s", url.PathEscape(userID), url.PathEscape(contactID))
}

// ContactsPager returns a lazy pager over a user's contacts.
func (c *Client) ContactsPager(userID, folderID string) *Pager[ContactRecord, contactResponse] {
	path := fmt.Sprintf("%s?$select=%s&$top=%d",
		ContactsPath(userID, folderID), strings.Join(contactSelectFields, ","), listPageSize)

	return newPager(c, path, (*contactResponse).toRecord)
}

// ListContacts returns every contact in the given folder of a user's mailbox.
func (c *Client) ListContacts(ctx context.Context, userID, folderID string) ([]ContactRecord, error) {
	p := c.ContactsPager(userID, folderID)

	contacts, err := ListAll(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("graph: listing contacts of %s: %w", userID, err)
	}

	c.logger.Debug("listed contacts",
		slog.String("user_id", userID),
		slog.String("folder_id", folderID),
		slog.Int("total", len(contacts)),
		slog.Int("pages", p.Pages()),
	)

	return contacts, nil
}

// ListContactFolders returns the top-level contact folders of a user.
func (c *Client) ListContactFolders(ctx context.Context, userID string) ([]ContactFolder, error) {
	path := fmt.Sprintf("/users/%s/contactFolders?$select=id,displayName&$top=%d", url.PathEscape(userID), listPageSize)

	folders, err := ListAll(ctx, newPager(c, path, (*contactFolderResponse).toFolder))
	if err != nil {
		return nil, fmt.Errorf("graph: listing contact folders of %s: %w", userID, err)
	}

	return folders, nil
}

// CreateContactFolder creates a top-level contact folder.
func (c *Client) CreateContactFolder(ctx context.Context, userID, name string) (*ContactFolder, error) {
	c.logger.Info("creating contact folder",
		slog.String("user_id", userID),
		slog.String("name", name),
	)

	path := fmt.Sprintf("/users/%s/contactFolders", url.PathEscape(userID))

	var fr contactFolderResponse
	if err := c.sendJSON(ctx, http.MethodPost, path, map[string]string{"displayName": name}, &fr); err != nil {
		return nil, fmt.Errorf("graph: creating contact folder %q: %w", name, err)
	}

	folder := fr.toFolder()

	return &folder, nil
}

// DeleteContactFolder deletes a contact folder together with every contact
// inside it.
func (c *Client) DeleteContactFolder(ctx context.Context, userID, folderID string) error {
	c.logger.Info("deleting contact folder",
		slog.String("user_id", userID),
		slog.String("folder_id", folderID),
	)

	path := fmt.Sprintf("/users/%s/contactFolders/%s", url.PathEscape(userID), url.PathEscape(folderID))

	return c.sendJSON(ctx, http.MethodDelete, path, nil, nil)
}
