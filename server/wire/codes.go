package wire

import (
	"errors"

	"github.com/rivulet/chat/server/store/types"
)

// Request opcodes. Every request starts with one of these.
const (
	NewMessageRequest uint32 = 101 + iota
	NewUserRequest
	NewConversationRequest
	GetUsersRequest
	GetAllConversationsRequest
	GetConversationsByIDRequest
	GetMessagesByIDRequest
	ServerInfoRequest
	AddUserInterestRequest
	RemoveUserInterestRequest
	AddConversationInterestRequest
	RemoveConversationInterestRequest
	AddUserToConversationRequest
	ChangePermissionRequest
	UserStatusUpdateRequest
	ConversationStatusUpdateRequest
	RelayReadRequest
	RelayWriteRequest
)

// Response opcodes, from a space disjoint with requests. NoMessage is the
// reserved reply to an unrecognized request code.
const (
	NoMessage uint32 = 201 + iota
	NewMessageResponse
	NewUserResponse
	NewConversationResponse
	GetUsersResponse
	GetAllConversationsResponse
	GetConversationsByIDResponse
	GetMessagesByIDResponse
	ServerInfoResponse
	AddUserInterestResponse
	RemoveUserInterestResponse
	AddConversationInterestResponse
	RemoveConversationInterestResponse
	AddUserToConversationResponse
	ChangePermissionResponse
	UserStatusUpdateResponse
	ConversationStatusUpdateResponse
	RelayReadResponse
	RelayWriteResponse
)

// Status bytes carried by responses whose operation reports a typed
// outcome rather than an entity.
const (
	StatusOK byte = iota
	StatusNotFound
	StatusAlreadyCurrentSetting
	StatusInsufficientPermission
	StatusSelfChange
	StatusNotInterested
	StatusIDInUse
	StatusFailed
)

// StatusOf maps an operation outcome to its wire status byte.
func StatusOf(err error) byte {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, types.ErrNotFound):
		return StatusNotFound
	case errors.Is(err, types.ErrAlreadyCurrentSetting):
		return StatusAlreadyCurrentSetting
	case errors.Is(err, types.ErrInsufficientPermission):
		return StatusInsufficientPermission
	case errors.Is(err, types.ErrSelfChange):
		return StatusSelfChange
	case errors.Is(err, types.ErrNotInterested):
		return StatusNotInterested
	case errors.Is(err, types.ErrIdInUse):
		return StatusIDInUse
	default:
		return StatusFailed
	}
}

// StatusError is the inverse of StatusOf: it rebuilds the typed outcome a
// status byte stands for, nil for StatusOK.
func StatusError(status byte) error {
	switch status {
	case StatusOK:
		return nil
	case StatusNotFound:
		return types.ErrNotFound
	case StatusAlreadyCurrentSetting:
		return types.ErrAlreadyCurrentSetting
	case StatusInsufficientPermission:
		return types.ErrInsufficientPermission
	case StatusSelfChange:
		return types.ErrSelfChange
	case StatusNotInterested:
		return types.ErrNotInterested
	case StatusIDInUse:
		return types.ErrIdInUse
	default:
		return errors.New("wire: operation failed")
	}
}
