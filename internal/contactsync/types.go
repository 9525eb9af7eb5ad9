// Package contactsync implements the contact synchronization engine: the
// pure reconciliation and cleanup planners, the batch-with-fallback
// executor, and the per-user run loop that ties them to the Graph client.
package contactsync

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/tonimelisma/contactsync/internal/graph"
)

// DefaultCategory is the category label that marks contacts owned by contactsync.
const DefaultCategory = "Company Contacts"

// TargetUser is an account that receives the synchronized contact set.
type TargetUser struct {
	ID            string
	PrincipalName string
	Mail          string
	Enabled       bool
}

// TargetFromEntry derives a TargetUser from its directory record.
func TargetFromEntry(e *graph.DirectoryEntry) TargetUser {
	return TargetUser{
		ID:            e.ID,
		PrincipalName: e.UserPrincipalName,
		Mail:          e.Mail,
		Enabled:       e.AccountEnabled,
	}
}

// isSelf reports whether the directory entry is the target user's own record.
func (t *TargetUser) isSelf(e *graph.DirectoryEntry) bool {
	if e.ID != "" && e.ID == t.ID {
		return true
	}

	key := e.EmailKey()
	if key == "" {
		return false
	}

	return key == graph.NormalizeEmail(t.Mail) || key == graph.NormalizeEmail(t.PrincipalName)
}

// OpKind identifies the arm of an Operation.
type OpKind int

// Operation kinds.
const (
	OpCreate OpKind = iota + 1
	OpUpdate
	OpDelete
)

func (k OpKind) String() string {
	switch k {
	case OpCreate:
		return "create"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Operation is a pending contact mutation. The set of implementations is
// closed: CreateContact, UpdateContact and DeleteContact.
type Operation interface {
	Kind() OpKind
	// Token is the tracking token, unique per operation, used as the
	// $batch correlation id.
	Token() string
	UserID() string
	request() graph.Request
}

// opHeader carries the fields every operation has. Embedding it is what
// seals the Operation interface to this package.
type opHeader struct {
	token  string
	userID string
}

func newHeader(userID string) opHeader {
	return opHeader{token: uuid.NewString(), userID: userID}
}

func (h opHeader) Token() string  { return h.token }
func (h opHeader) UserID() string { return h.userID }

// CreateContact adds a new contact to a user's contact folder.
type CreateContact struct {
	opHeader
	FolderID string
	Contact  graph.ContactPayload
}

// NewCreate builds a CreateContact with a fresh tracking token.
func NewCreate(userID, folderID string, contact graph.ContactPayload) *CreateContact {
	return &CreateContact{opHeader: newHeader(userID), FolderID: folderID, Contact: contact}
}

// Kind implements Operation.
func (*CreateContact) Kind() OpKind { return OpCreate }

func (op *CreateContact) request() graph.Request {
	return graph.Request{
		ID:     op.token,
		Method: http.MethodPost,
		Path:   graph.ContactsPath(op.userID, op.FolderID),
		Body:   op.Contact,
	}
}

// UpdateContact rewrites the descriptive fields of an existing contact.
type UpdateContact struct {
	opHeader
	ContactID string
	Contact   graph.ContactPayload
}

// NewUpdate builds an UpdateContact with a fresh tracking token.
func NewUpdate(userID, contactID string, contact graph.ContactPayload) *UpdateContact {
	return &UpdateContact{opHeader: newHeader(userID), ContactID: contactID, Contact: contact}
}

// Kind implements Operation.
func (*UpdateContact) Kind() OpKind { return OpUpdate }

func (op *UpdateContact) request() graph.Request {
	return graph.Request{
		ID:     op.token,
		Method: http.MethodPatch,
		Path:   graph.ContactPath(op.userID, op.ContactID),
		Body:   op.Contact,
	}
}

// DeleteContact removes a contact. DisplayName is carried for logging only.
type DeleteContact struct {
	opHeader
	ContactID   string
	DisplayName string
}

// NewDelete builds a DeleteContact with a fresh tracking token.
func NewDelete(userID string, rec *graph.ContactRecord) *DeleteContact {
	return &DeleteContact{opHeader: newHeader(userID), ContactID: rec.ID, DisplayName: rec.DisplayName}
}

// Kind implements Operation.
func (*DeleteContact) Kind() OpKind { return OpDelete }

func (op *DeleteContact) request() graph.Request {
	return graph.Request{
		ID:     op.token,
		Method: http.MethodDelete,
		Path:   graph.ContactPath(op.userID, op.ContactID),
	}
}

// OperationResult is the outcome of one executed Operation.
type OperationResult struct {
	Op      Operation
	Status  int   // HTTP status, 0 when no response was received
	Err     error // nil on success
	Skipped bool  // dry run: the operation was not sent
}

// OK reports whether the operation was applied.
func (r *OperationResult) OK() bool {
	return r.Err == nil && !r.Skipped
}

// Result tallies the outcome of reconciling one user.
type Result struct {
	Created   int
	Updated   int
	Deleted   int
	Unchanged int
	Failed    int // operations that were sent and rejected
	Skipped   int // operations not sent (dry run or big-delete protection)
}

// Add accumulates another tally into r.
func (r *Result) Add(o Result) {
	r.Created += o.Created
	r.Updated += o.Updated
	r.Deleted += o.Deleted
	r.Unchanged += o.Unchanged
	r.Failed += o.Failed
	r.Skipped += o.Skipped
}

// record counts one executed operation.
func (r *Result) record(res *OperationResult) {
	switch {
	case res.Skipped:
		r.Skipped++
	case res.Err != nil:
		r.Failed++
	default:
		switch res.Op.Kind() {
		case OpCreate:
			r.Created++
		case OpUpdate:
			r.Updated++
		case OpDelete:
			r.Deleted++
		}
	}
}

// Summary is the tally of a whole run across all target users.
type Summary struct {
	RunID        string
	Users        int // target users processed
	SkippedUsers int // disabled or mailbox-less targets
	UserErrors   int // users whose processing failed
	Result
	FoldersDeleted int
	FolderContacts int // contacts removed implicitly with deleted folders
	Duration       time.Duration
}

// Errors returns the total error count reported at the end of a run.
func (s *Summary) Errors() int {
	return s.UserErrors + s.Failed
}
