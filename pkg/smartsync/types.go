package smartsync

import (
	"github.com/rzpsarthak13/smartsync/internal/core"
	apperrors "github.com/rzpsarthak13/smartsync/internal/errors"
	"github.com/rzpsarthak13/smartsync/internal/remote"
	"github.com/rzpsarthak13/smartsync/internal/store"
	"github.com/rzpsarthak13/smartsync/internal/syncmgr"
	"github.com/rzpsarthak13/smartsync/internal/syncstate"
)

// Store types.
type (
	Store     = store.Store
	IndexSpec = core.IndexSpec
	IndexType = core.IndexType
	QuerySpec = core.QuerySpec
	SortOrder = core.SortOrder
)

const (
	IndexString   = core.IndexTypeString
	IndexInteger  = core.IndexTypeInteger
	IndexFloating = core.IndexTypeFloating
	IndexJSON     = core.IndexTypeJSON

	Ascending  = core.Ascending
	Descending = core.Descending
)

// Sync types.
type (
	Account     = core.Account
	SyncManager = syncmgr.SyncManager
	SyncState   = syncstate.SyncState
	Target      = syncstate.Target
	Options     = syncstate.Options
	MergeMode   = syncstate.MergeMode
	Callback    = syncmgr.Callback
	SyncEvent   = core.SyncEvent
)

const (
	MergeOverwrite      = syncstate.MergeOverwrite
	MergeLeaveIfChanged = syncstate.MergeLeaveIfChanged
)

// RemoteService is the remote data service backed by memory or DynamoDB.
type RemoteService = remote.Service

// NewMemoryRemote returns an in-memory remote service, e.g. for demos and tests.
var NewMemoryRemote = remote.NewMemory

// Errors.
type (
	Error     = apperrors.AppError
	ErrorCode = apperrors.ErrorCode
)

var (
	NewIndexSpec        = core.NewIndexSpec
	BuildAllQuerySpec   = core.BuildAllQuerySpec
	BuildExactQuerySpec = core.BuildExactQuerySpec
	BuildRangeQuerySpec = core.BuildRangeQuerySpec
	BuildLikeQuerySpec  = core.BuildLikeQuerySpec
	BuildSmartQuerySpec = core.BuildSmartQuerySpec
	NewSOQLTarget       = syncstate.NewSOQLTarget
	NewSOSLTarget       = syncstate.NewSOSLTarget
	NewMRUTarget        = syncstate.NewMRUTarget
	NewOptions          = syncstate.NewOptions
	MarkCreated         = syncmgr.MarkCreated
	MarkUpdated         = syncmgr.MarkUpdated
	MarkDeleted         = syncmgr.MarkDeleted
	IsDirty             = syncmgr.IsDirty
	IsErrorCode         = apperrors.Is
	ErrorCodeOf         = apperrors.CodeOf
)
