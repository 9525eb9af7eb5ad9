package contactsync

import (
	"slices"
	"strings"

	"github.com/tonimelisma/contactsync/internal/graph"
)

// fingerprintSeparator joins fingerprint fields. It cannot appear in any
// directory attribute Graph returns, so field boundaries stay unambiguous.
const fingerprintSeparator = "\x1f"

// fingerprint summarizes the mutable fields compared between an existing
// contact and its directory entry. Comparison is exact: any whitespace or
// casing difference counts as a change.
func fingerprint(givenName, surname, jobTitle, department, company string, businessPhones []string, mobile string) string {
	return strings.Join([]string{
		givenName,
		surname,
		jobTitle,
		department,
		company,
		firstOrEmpty(businessPhones),
		mobile,
	}, fingerprintSeparator)
}

func entryFingerprint(e *graph.DirectoryEntry) string {
	return fingerprint(e.GivenName, e.Surname, e.JobTitle, e.Department, e.CompanyName, e.BusinessPhones, e.MobilePhone)
}

func recordFingerprint(c *graph.ContactRecord) string {
	return fingerprint(c.GivenName, c.Surname, c.JobTitle, c.Department, c.CompanyName, c.BusinessPhones, c.MobilePhone)
}

func firstOrEmpty(values []string) string {
	if len(values) == 0 {
		return ""
	}

	return values[0]
}

// displayNameFor picks the contact display name: the directory display
// name, else "Given Surname", else the mail address.
func displayNameFor(e *graph.DirectoryEntry) string {
	if name := strings.TrimSpace(e.DisplayName); name != "" {
		return name
	}

	if name := strings.TrimSpace(e.GivenName + " " + e.Surname); name != "" {
		return name
	}

	return e.Mail
}

// buildPayload converts a directory entry into a contact write body with
// the given categories.
func buildPayload(e *graph.DirectoryEntry, categories []string) graph.ContactPayload {
	name := displayNameFor(e)

	phones := e.BusinessPhones
	if phones == nil {
		phones = []string{}
	}

	if categories == nil {
		categories = []string{}
	}

	return graph.ContactPayload{
		GivenName:      e.GivenName,
		Surname:        e.Surname,
		DisplayName:    name,
		EmailAddresses: []graph.EmailAddress{{Address: strings.TrimSpace(e.Mail), Name: name}},
		BusinessPhones: slices.Clone(phones),
		MobilePhone:    e.MobilePhone,
		CompanyName:    e.CompanyName,
		Department:     e.Department,
		JobTitle:       e.JobTitle,
		Categories:     categories,
	}
}
