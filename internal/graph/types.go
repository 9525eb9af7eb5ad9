package graph

import "time"

// DirectoryEntry is a user record from the organizational directory.
// Fields are normalized from the Graph API response; callers never see raw API data.
type DirectoryEntry struct {
	ID                string
	UserPrincipalName string
	DisplayName       string
	GivenName         string
	Surname           string
	Mail              string // primary SMTP address; empty for mailbox-less accounts
	BusinessPhones    []string
	MobilePhone       string
	CompanyName       string
	Department        string
	JobTitle          string
	AccountEnabled    bool
	Licensed          bool // at least one license assigned
	DirectorySynced   bool // onPremisesSyncEnabled
	UserType          string
}

// ContactRecord is a contact stored in a user's mailbox.
type ContactRecord struct {
	ID             string
	ParentFolderID string
	DisplayName    string
	GivenName      string
	Surname        string
	EmailAddresses []string // first entry is the primary address
	BusinessPhones []string
	MobilePhone    string
	CompanyName    string
	Department     string
	JobTitle       string
	Categories     []string
	CreatedAt      time.Time
}

// PrimaryEmail returns the first email address, or "" when there is none.
func (c *ContactRecord) PrimaryEmail() string {
	if len(c.EmailAddresses) == 0 {
		return ""
	}

	return c.EmailAddresses[0]
}

// HasCategory reports whether the contact carries the given category label.
// Category labels compare exactly, as Outlook stores them.
func (c *ContactRecord) HasCategory(category string) bool {
	if category == "" {
		return false
	}

	for _, cat := range c.Categories {
		if cat == category {
			return true
		}
	}

	return false
}

// ContactFolder is a contact folder in a user's mailbox.
type ContactFolder struct {
	ID          string
	DisplayName string
}

// EmailAddress is the Graph emailAddress complex type.
type EmailAddress struct {
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`
}

// ContactPayload is the write body for creating or updating a contact.
type ContactPayload struct {
	GivenName      string         `json:"givenName"`
	Surname        string         `json:"surname"`
	DisplayName    string         `json:"displayName"`
	EmailAddresses []EmailAddress `json:"emailAddresses"`
	BusinessPhones []string       `json:"businessPhones"`
	MobilePhone    string         `json:"mobilePhone"`
	CompanyName    string         `json:"companyName"`
	Department     string         `json:"department"`
	JobTitle       string         `json:"jobTitle"`
	Categories     []string       `json:"categories"`
}
