// internal/types/models_test.go
package types

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/kubeagentix/kubeagentix-ce-sub001/pkg/agent"
)

func TestStoredConversationJSONKeys(t *testing.T) {
	conv := StoredConversation{
		ID:        NewConversationID(),
		UserID:    "u1",
		Messages:  []agent.Message{{Role: agent.RoleUser, Content: "hello"}},
		Outcome:   OutcomeResolved,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	data, err := json.Marshal(conv)
	if err != nil {
		t.Fatal(err)
	}

	for _, key := range []string{`"userId":"u1"`, `"outcome":"resolved"`, `"toolCalls":null`, `"role":"user"`} {
		if !strings.Contains(string(data), key) {
			t.Errorf("expected %s in %s", key, data)
		}
	}
	if strings.Contains(string(data), `"tenantId"`) {
		t.Errorf("expected empty tenantId to be omitted: %s", data)
	}
}
