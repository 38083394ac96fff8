package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Sync request scopes.
const (
	ScopeAccount = "account"
	ScopeUser    = "user"
	ScopeAll     = "all"
)

// SyncRequestMessage asks the worker to run a sync. It carries only
// identifiers; the worker loads everything else from the store.
type SyncRequestMessage struct {
	Scope       string    `json:"scope"`
	AccountID   int64     `json:"account_id,omitempty"`
	UserID      int64     `json:"user_id,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

func NewAccountSyncRequest(accountID int64) *SyncRequestMessage {
	return &SyncRequestMessage{Scope: ScopeAccount, AccountID: accountID, RequestedAt: time.Now()}
}

func NewUserSyncRequest(userID int64) *SyncRequestMessage {
	return &SyncRequestMessage{Scope: ScopeUser, UserID: userID, RequestedAt: time.Now()}
}

func NewFullSyncRequest() *SyncRequestMessage {
	return &SyncRequestMessage{Scope: ScopeAll, RequestedAt: time.Now()}
}

func (m *SyncRequestMessage) Validate() error {
	switch m.Scope {
	case ScopeAccount:
		if m.AccountID == 0 {
			return fmt.Errorf("account scope requires account_id")
		}
	case ScopeUser:
		if m.UserID == 0 {
			return fmt.Errorf("user scope requires user_id")
		}
	case ScopeAll:
	default:
		return fmt.Errorf("unknown scope %q", m.Scope)
	}
	return nil
}

func (m *SyncRequestMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func SyncRequestMessageFromJSON(data []byte) (*SyncRequestMessage, error) {
	var msg SyncRequestMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
