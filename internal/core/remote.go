package core

import (
	"context"
	"fmt"
)

// RequestKind is the type of call made to the remote data service.
type RequestKind string

const (
	// RequestQuery runs a SOQL-style query and returns the first page.
	RequestQuery RequestKind = "query"

	// RequestQueryMore follows a NextRecordsURL cursor.
	RequestQueryMore RequestKind = "queryMore"

	// RequestSearch runs a SOSL-style search; all matches come back in one page.
	RequestSearch RequestKind = "search"

	// RequestRecentItems asks for the ids of recently touched objects of a type.
	RequestRecentItems RequestKind = "recentItems"

	// RequestRetrieve reads selected fields of one object.
	RequestRetrieve RequestKind = "retrieve"

	// RequestCreate inserts one object and returns its server id.
	RequestCreate RequestKind = "create"

	// RequestUpdate modifies one object.
	RequestUpdate RequestKind = "update"

	// RequestDelete removes one object.
	RequestDelete RequestKind = "delete"
)

// RemoteRequest describes one call to the remote data service.
type RemoteRequest struct {
	Kind RequestKind

	// ObjectType is the remote object type (e.g. "Contact").
	ObjectType string

	// ObjectID identifies the object for retrieve, update and delete.
	ObjectID string

	// Query is the query or search string.
	Query string

	// NextRecordsURL is the cursor returned by a previous query page.
	NextRecordsURL string

	// Fields is the body of create and update requests.
	Fields map[string]interface{}

	// FieldList is the projection of a retrieve request.
	FieldList []string
}

// RemoteResponse is the parsed payload of a successful call.
type RemoteResponse struct {
	StatusCode int

	// Records holds query, queryMore and search results.
	Records []map[string]interface{}

	// TotalSize is the total number of records the query matches across all pages.
	TotalSize int

	// NextRecordsURL is set when more pages are available.
	NextRecordsURL string

	// ID is the server id assigned by a create request.
	ID string

	// Record is the object read by a retrieve request.
	Record map[string]interface{}

	// RecentIDs holds the ids returned by a recentItems request.
	RecentIDs []string
}

// RemoteError is a failed call carrying the service status code.
type RemoteError struct {
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote request failed with status %d: %s", e.StatusCode, e.Message)
}

// RemoteClient sends requests to the remote data service.
// Authentication, token refresh and transport details live behind this interface.
type RemoteClient interface {
	// Send executes a request. Any non-success outcome is returned as an error,
	// typically a *RemoteError.
	Send(ctx context.Context, request *RemoteRequest) (*RemoteResponse, error)

	// Close releases resources held by the client.
	Close() error
}

// Account identifies the user a store and its sync managers belong to.
type Account struct {
	UserID      string `yaml:"user_id" json:"userId"`
	OrgID       string `yaml:"org_id" json:"orgId"`
	InstanceURL string `yaml:"instance_url,omitempty" json:"instanceUrl,omitempty"`
	AccessToken string `yaml:"-" json:"-"`
}

// Key returns the registry key for this account within a community.
// An empty communityID denotes the internal (non-community) scope.
func (a Account) Key(communityID string) string {
	if communityID == "" {
		communityID = "internal"
	}
	return fmt.Sprintf("%s:%s:%s", a.OrgID, a.UserID, communityID)
}
