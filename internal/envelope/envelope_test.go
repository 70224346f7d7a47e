package envelope

import (
	"encoding/json"
	"testing"
)

func TestBatchJSONShape(t *testing.T) {
	b := NewBatch(&Session{ExternalID: "s1", Source: "claude-code", MessageCount: 2}, []Message{
		{
			SessionExternalID: "s1",
			ExternalID:        "m1-tool-t1",
			Role:              "assistant",
			Source:            "claude-code",
			Parts: []Part{{
				Type:    PartToolUse,
				Content: ToolUseContent{ToolName: "Bash", Args: map[string]interface{}{"command": "ls"}},
			}},
		},
	})

	data, err := b.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}

	session := decoded["sessions"].([]interface{})[0].(map[string]interface{})
	if session["externalId"] != "s1" || session["messageCount"] != 2.0 {
		t.Errorf("Unexpected session: %v", session)
	}
	if _, ok := session["title"]; ok {
		t.Error("Expected empty title to be omitted")
	}

	msg := decoded["messages"].([]interface{})[0].(map[string]interface{})
	if msg["sessionExternalId"] != "s1" || msg["externalId"] != "m1-tool-t1" {
		t.Errorf("Unexpected message: %v", msg)
	}
	if _, ok := msg["textContent"]; ok {
		t.Error("Expected empty textContent to be omitted")
	}
	part := msg["parts"].([]interface{})[0].(map[string]interface{})
	content := part["content"].(map[string]interface{})
	if part["type"] != "tool_use" || content["toolName"] != "Bash" {
		t.Errorf("Unexpected part: %v", part)
	}
	if _, ok := content["result"]; !ok {
		t.Error("Expected result key to be present even when nil")
	}
}

func TestNewBatch_NeverNullArrays(t *testing.T) {
	data, err := NewBatch(nil, nil).ToJSON()
	if err != nil {
		t.Fatalf("ToJSON failed: %v", err)
	}
	if string(data) != `{"sessions":[],"messages":[]}` {
		t.Errorf("Unexpected JSON: %s", data)
	}
}
