package amqp

import (
	"testing"
	"time"
)

func TestSyncRequestMessageValidate(t *testing.T) {
	tests := []struct {
		name    string
		msg     SyncRequestMessage
		wantErr bool
	}{
		{"account scope", SyncRequestMessage{Scope: ScopeAccount, AccountID: 7}, false},
		{"account scope missing id", SyncRequestMessage{Scope: ScopeAccount}, true},
		{"user scope", SyncRequestMessage{Scope: ScopeUser, UserID: 3}, false},
		{"user scope missing id", SyncRequestMessage{Scope: ScopeUser}, true},
		{"all scope", SyncRequestMessage{Scope: ScopeAll}, false},
		{"unknown scope", SyncRequestMessage{Scope: "everything"}, true},
		{"empty scope", SyncRequestMessage{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSyncRequestMessageJSON(t *testing.T) {
	msg := &SyncRequestMessage{
		Scope:       ScopeAccount,
		AccountID:   42,
		RequestedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	body, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	parsed, err := SyncRequestMessageFromJSON(body)
	if err != nil {
		t.Fatalf("SyncRequestMessageFromJSON() error = %v", err)
	}
	if parsed.Scope != msg.Scope || parsed.AccountID != msg.AccountID {
		t.Errorf("round trip = %+v, want %+v", parsed, msg)
	}
	if !parsed.RequestedAt.Equal(msg.RequestedAt) {
		t.Errorf("RequestedAt = %v, want %v", parsed.RequestedAt, msg.RequestedAt)
	}
}

func TestSyncRequestMessageFromJSONRejectsInvalid(t *testing.T) {
	for _, body := range []string{
		`{"scope": "everything"}`,
		`{"scope": "account"}`,
		`not json`,
	} {
		if _, err := SyncRequestMessageFromJSON([]byte(body)); err == nil {
			t.Errorf("SyncRequestMessageFromJSON(%q) succeeded, want error", body)
		}
	}
}

func TestNewSyncRequests(t *testing.T) {
	if msg := NewAccountSyncRequest(5); msg.Scope != ScopeAccount || msg.AccountID != 5 {
		t.Errorf("NewAccountSyncRequest() = %+v", msg)
	}
	if msg := NewUserSyncRequest(9); msg.Scope != ScopeUser || msg.UserID != 9 {
		t.Errorf("NewUserSyncRequest() = %+v", msg)
	}
	msg := NewFullSyncRequest()
	if msg.Scope != ScopeAll {
		t.Errorf("NewFullSyncRequest() = %+v", msg)
	}
	if msg.RequestedAt.IsZero() {
		t.Error("NewFullSyncRequest() RequestedAt should not be zero")
	}
}
